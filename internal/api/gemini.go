package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/lamim/exambank/internal/config"
)

// contentGenerator is the part of the genai client the backend uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient calls the Gemini API through the genai SDK
type GeminiClient struct {
	models      contentGenerator
	limiter     *RateLimiterPool
	retrier     *retrier
	logger      *slog.Logger
	model       string
	temperature float32
	maxTokens   int32
	rpm         int
	system      string
}

// NewGeminiClient creates a client for the fixed Gemini model
func NewGeminiClient(ctx context.Context, cfg *config.Config, apiKey string, limiter *RateLimiterPool, r *retrier, logger *slog.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: httpTimeout(cfg.Model)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGeminiClient(client.Models, cfg, limiter, r, logger), nil
}

func newGeminiClient(models contentGenerator, cfg *config.Config, limiter *RateLimiterPool, r *retrier, logger *slog.Logger) *GeminiClient {
	return &GeminiClient{
		models:      models,
		limiter:     limiter,
		retrier:     r,
		logger:      logger.With("component", "api", "backend", config.ProviderGemini),
		model:       config.GeminiModel,
		temperature: float32(cfg.Model.Temperature),
		maxTokens:   int32(cfg.Model.MaxOutputTokens),
		rpm:         cfg.Model.RateLimitPerMinute,
		system:      cfg.PromptTemplates.SystemPrompt,
	}
}

// Backend implements Service
func (c *GeminiClient) Backend() config.Provider {
	return config.ProviderGemini
}

// Invoke sends one prompt, with an optional document as inline data
func (c *GeminiClient) Invoke(ctx context.Context, prompt string, attachment *Attachment) (string, error) {
	parts := []*genai.Part{{Text: prompt}}
	if attachment != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				Data:     attachment.Data,
				MIMEType: attachment.BaseMIMEType(),
			},
		})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	temperature := c.temperature
	genCfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: c.maxTokens,
	}
	if c.system != "" {
		genCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: c.system}}}
	}

	return c.retrier.do(ctx, func(ctx context.Context) (string, error) {
		waited, err := c.limiter.Wait(ctx, "gemini:"+c.model, c.rpm)
		c.retrier.metrics.RecordRateLimiterWait(string(config.ProviderGemini), waited)
		if err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}

		resp, err := c.models.GenerateContent(ctx, c.model, contents, genCfg)
		if err != nil {
			return "", classifyGeminiError(err)
		}
		return responseText(resp)
	})
}

// classifyGeminiError maps SDK errors onto APIError so the retrier can tell
// transient failures from permanent ones.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Message:    apiErr.Message,
			StatusCode: apiErr.Code,
			Type:       apiErr.Status,
			Retryable:  isStatusCodeRetryable(apiErr.Code),
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &APIError{Message: err.Error(), Retryable: true}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", ErrEmptyResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrEmptyResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content (finish reason %s)", ErrEmptyResponse, candidate.FinishReason)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("%w: no text parts", ErrEmptyResponse)
	}
	return b.String(), nil
}
