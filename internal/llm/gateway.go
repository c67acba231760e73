package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Gateway is the single retrying boundary in front of the completion
// service. Callers see one logical operation that succeeds or fails with a
// typed reason; transient failures are retried with exponential backoff up
// to a fixed ceiling, non-retryable failures surface immediately.
type Gateway struct {
	client      Completer
	maxAttempts int
	timeout     time.Duration
	logger      *slog.Logger

	// sleep is swappable so tests do not wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGateway(log *slog.Logger, client Completer, maxAttempts int, timeout time.Duration) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		client:      client,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		logger:      log.With(slog.String("component", "llm_gateway")),
		sleep:       sleepCtx,
	}
}

// Complete runs one logical completion. Each attempt carries its own
// timeout so a hung upstream surfaces as a timeout failure, never as a
// hung caller.
func (g *Gateway) Complete(ctx context.Context, prompts []Prompt) (string, error) {
	return g.run(ctx, "complete", func(ctx context.Context) (string, error) {
		return g.client.Complete(ctx, prompts)
	})
}

// Describe captions the image at url under the same retry and timeout
// policy as Complete. The wrapped client must support image description.
func (g *Gateway) Describe(ctx context.Context, url string) (string, error) {
	describer, ok := g.client.(Describer)
	if !ok {
		return "", &Error{Reason: ReasonBadRequest, Err: errors.New("client cannot describe images")}
	}
	return g.run(ctx, "describe", func(ctx context.Context) (string, error) {
		return describer.Describe(ctx, url)
	})
}

func (g *Gateway) run(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, backoff(attempt)); err != nil {
				return "", &Error{Reason: ReasonCanceled, Err: err}
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		text, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err

		var lerr *Error
		if !errors.As(err, &lerr) || !lerr.Retryable() {
			return "", err
		}
		if ctx.Err() != nil {
			return "", err
		}

		g.logger.Warn("attempt failed",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", g.maxAttempts),
			slog.String("reason", string(lerr.Reason)),
			slog.Any("error", lerr.Err),
		)
	}
	return "", lastErr
}

func backoff(attempt int) time.Duration {
	return time.Second << (attempt - 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
