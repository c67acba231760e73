package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/parleybot/parley/internal/channel"
	"github.com/parleybot/parley/internal/message"
)

const errorNotice = "Sorry, I couldn't finish that request."

// Cache is the mutable history surface the router writes replies into.
type Cache interface {
	History
	AppendExchange(channelID string, user, assistant message.Message)
}

// Deliverer sends outbound replies back to the origin platform.
type Deliverer interface {
	Deliver(ctx context.Context, t channel.Type, out channel.Outbound) error
}

// Router sequences the registered processors for each dispatched message
// and resolves exactly one Result. Replies are appended to the cache as an
// atomic user/assistant pair before delivery; failures leave the cache
// untouched.
type Router struct {
	descriptors   []Descriptor
	fallback      Processor
	cache         Cache
	deliverer     Deliverer
	notifyOnError bool
	logger        *slog.Logger
	now           func() time.Time
}

// NewRouter builds a router over a fixed processor set. Descriptors are
// ordered by ascending priority; equal priorities keep registration order.
func NewRouter(log *slog.Logger, descriptors []Descriptor, fallback Processor, cache Cache, deliverer Deliverer, notifyOnError bool) *Router {
	if log == nil {
		log = slog.Default()
	}
	ordered := make([]Descriptor, len(descriptors))
	copy(ordered, descriptors)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	return &Router{
		descriptors:   ordered,
		fallback:      fallback,
		cache:         cache,
		deliverer:     deliverer,
		notifyOnError: notifyOnError,
		logger:        log.With(slog.String("component", "router")),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch runs the pipeline for one inbound message. It never returns an
// error to the bus: every fault, panics included, is absorbed into a Failed
// result so one bad message cannot take a worker down.
func (r *Router) Dispatch(ctx context.Context, in channel.Inbound) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("processor panic",
				slog.String("channel_id", in.Message.ChannelID),
				slog.Any("panic", rec),
			)
			result = Result{Kind: KindFailed, Reason: fmt.Sprintf("panic: %v", rec)}
		}
	}()

	result, final := r.run(ctx, in)
	r.apply(ctx, in, final, result)
	return result
}

// run selects and sequences processors, producing the single Result and the
// message as last rewritten by any Continue verdicts.
func (r *Router) run(ctx context.Context, in channel.Inbound) (Result, message.Message) {
	current := in.Message
	if current.IsEmpty() {
		return Result{Kind: KindSuppressed}, current
	}
	if !in.Addressed {
		return Result{Kind: KindSuppressed}, current
	}

	for _, desc := range r.descriptors {
		if !desc.Processor.Matches(current) {
			continue
		}
		decision, err := desc.Processor.Handle(ctx, current, r.cache)
		if err != nil {
			return failed(desc.Name, err), current
		}
		if decision.Verdict == VerdictContinue {
			if !decision.Message.IsEmpty() {
				current = decision.Message
			}
			continue
		}
		return decision.Result, current
	}

	decision, err := r.fallback.Handle(ctx, current, r.cache)
	if err != nil {
		return failed("fallback", err), current
	}
	return decision.Result, current
}

// apply performs the cache and delivery side effects for a resolved result.
func (r *Router) apply(ctx context.Context, in channel.Inbound, userMsg message.Message, result Result) {
	switch result.Kind {
	case KindReply:
		reply := message.Message{
			ID:          uuid.NewString(),
			ChannelID:   userMsg.ChannelID,
			AuthorID:    in.BotID,
			DisplayName: in.BotName,
			Role:        message.RoleAssistant,
			Content:     result.Content,
			Timestamp:   r.now(),
		}
		r.cache.AppendExchange(userMsg.ChannelID, userMsg, reply)
		// Delivery is best effort: the exchange stays recorded even when
		// the platform send fails.
		r.send(ctx, in, result.Content)

	case KindFailed:
		r.logger.Error("processing failed",
			slog.String("channel_id", userMsg.ChannelID),
			slog.String("reason", result.Reason),
		)
		if r.notifyOnError {
			r.send(ctx, in, errorNotice)
		}

	case KindSuppressed:
		if result.Notice != "" {
			r.send(ctx, in, result.Notice)
		}
	}
}

func (r *Router) send(ctx context.Context, in channel.Inbound, text string) {
	out := channel.Outbound{
		Target:    in.ReplyTarget,
		Text:      text,
		ReplyToID: in.ReplyToID,
	}
	if err := r.deliverer.Deliver(ctx, in.Platform, out); err != nil {
		r.logger.Error("outbound delivery failed",
			slog.String("channel", in.Platform.String()),
			slog.String("target", in.ReplyTarget),
			slog.Any("error", err),
		)
	}
}

func failed(stage string, err error) Result {
	return Result{
		Kind:   KindFailed,
		Reason: fmt.Sprintf("%s: %v", stage, err),
	}
}
