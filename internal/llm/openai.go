package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/parleybot/parley/internal/config"
)

// OpenAIClient performs single chat-completion calls against an
// OpenAI-compatible endpoint. SDK-level retries are disabled so the Gateway
// stays the only place retry policy lives.
type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature float64
	logger      *slog.Logger
}

func NewOpenAIClient(log *slog.Logger, cfg config.LLMConfig) (*OpenAIClient, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      log.With(slog.String("component", "openai_client")),
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, prompts []Prompt) (string, error) {
	if len(prompts) == 0 {
		return "", &Error{Reason: ReasonBadRequest, Err: errors.New("empty prompt")}
	}

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    convertPrompts(prompts),
		Temperature: openai.Float(c.temperature),
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Reason: ReasonUpstream, Err: errors.New("no choices in response")}
	}

	c.logger.Debug("completion finished",
		slog.String("model", c.model),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.Int64("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &Error{Reason: ReasonUpstream, Err: errors.New("empty completion")}
	}
	return content, nil
}

const imageInstruction = "Describe this image succinctly for someone who cannot see it. Include any relevant text in the image."

// Describe asks the model to caption the image at url. The URL is passed
// straight through; the service reads GIFs from their first frame.
func (c *OpenAIClient) Describe(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", &Error{Reason: ReasonBadRequest, Err: errors.New("empty image url")}
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(imageInstruction),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}),
			}),
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Reason: ReasonUpstream, Err: errors.New("no choices in response")}
	}
	caption := strings.TrimSpace(resp.Choices[0].Message.Content)
	if caption == "" {
		return "", &Error{Reason: ReasonUpstream, Err: errors.New("empty caption")}
	}
	return caption, nil
}

func convertPrompts(prompts []Prompt) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(prompts))
	for _, p := range prompts {
		switch p.Role {
		case "system":
			out = append(out, openai.SystemMessage(p.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(p.Content))
		default:
			if p.Name != "" {
				out = append(out, openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Name: openai.String(p.Name),
						Content: openai.ChatCompletionUserMessageParamContentUnion{
							OfString: openai.String(p.Content),
						},
					},
				})
				continue
			}
			out = append(out, openai.UserMessage(p.Content))
		}
	}
	return out
}

// classify maps SDK and transport errors to gateway reason codes.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Reason: ReasonTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Reason: ReasonCanceled, Err: err}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return &Error{Reason: ReasonRateLimited, Err: err}
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return &Error{Reason: ReasonUnauthorized, Err: err}
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return &Error{Reason: ReasonBadRequest, Err: err}
		default:
			return &Error{Reason: ReasonUpstream, Err: err}
		}
	}
	return &Error{Reason: ReasonUpstream, Err: err}
}
