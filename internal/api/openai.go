package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lamim/exambank/internal/config"
	"github.com/lamim/exambank/internal/util"
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint
type OpenAIClient struct {
	httpClient   *http.Client
	limiter      *RateLimiterPool
	retrier      *retrier
	logger       *slog.Logger
	baseURL      string
	apiKey       string
	model        string
	temperature  float64
	maxTokens    int
	rpm          int
	systemPrompt string
}

// NewOpenAIClient creates a client for the fixed OpenAI model
func NewOpenAIClient(cfg *config.Config, apiKey string, limiter *RateLimiterPool, r *retrier, logger *slog.Logger) *OpenAIClient {
	return &OpenAIClient{
		httpClient: &http.Client{
			Timeout: httpTimeout(cfg.Model),
		},
		limiter:      limiter,
		retrier:      r,
		logger:       logger.With("component", "api", "backend", config.ProviderOpenAI),
		baseURL:      cfg.Model.BaseURL,
		apiKey:       apiKey,
		model:        config.OpenAIModel,
		temperature:  cfg.Model.Temperature,
		maxTokens:    cfg.Model.MaxOutputTokens,
		rpm:          cfg.Model.RateLimitPerMinute,
		systemPrompt: cfg.PromptTemplates.SystemPrompt,
	}
}

// Backend implements Service
func (c *OpenAIClient) Backend() config.Provider {
	return config.ProviderOpenAI
}

// Invoke sends one prompt, with an optional document, and returns the
// assistant text with any reasoning blocks removed.
func (c *OpenAIClient) Invoke(ctx context.Context, prompt string, attachment *Attachment) (string, error) {
	req := ChatCompletionRequest{
		Model:       c.model,
		Messages:    c.buildMessages(prompt, attachment),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		N:           1,
	}

	return c.retrier.do(ctx, func(ctx context.Context) (string, error) {
		waited, err := c.limiter.Wait(ctx, "openai:"+c.model, c.rpm)
		c.retrier.metrics.RecordRateLimiterWait(string(config.ProviderOpenAI), waited)
		if err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}

		resp, err := c.doRequest(ctx, req)
		if err != nil {
			return "", err
		}

		choice := resp.Choices[0]
		if choice.Message.Refusal != "" || choice.FinishReason == "content_filter" {
			return "", fmt.Errorf("%w: %s", ErrContentBlocked, choice.Message.Refusal)
		}

		content := choice.Message.Content
		if util.ContainsThinkTags(content) {
			content = util.StripThinkTags(content)
			c.logger.Debug("Stripped reasoning block from response")
		}
		if strings.TrimSpace(content) == "" {
			return "", ErrEmptyResponse
		}
		return content, nil
	})
}

func (c *OpenAIClient) buildMessages(prompt string, attachment *Attachment) []Message {
	var messages []Message
	if c.systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: c.systemPrompt})
	}

	if attachment == nil {
		return append(messages, Message{Role: "user", Content: prompt})
	}

	parts := []ContentPart{{Type: "text", Text: prompt}}
	dataURL := fmt.Sprintf("data:%s;base64,%s", attachment.BaseMIMEType(), base64.StdEncoding.EncodeToString(attachment.Data))
	if strings.HasPrefix(attachment.BaseMIMEType(), "image/") {
		parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}})
	} else {
		parts = append(parts, ContentPart{Type: "file", File: &FilePart{Filename: attachment.Name, FileData: dataURL}})
	}
	return append(messages, Message{Role: "user", Content: parts})
}

func (c *OpenAIClient) doRequest(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	if err := json.NewEncoder(buf).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimSuffix(c.baseURL, "/") + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	c.logger.Debug("API request", "endpoint", endpoint, "body_bytes", buf.Len())

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
		}
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &APIError{
			Message:   fmt.Sprintf("failed to read response: %v", err),
			Retryable: true,
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		retryable := isStatusCodeRetryable(httpResp.StatusCode)

		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, &APIError{
				Message:    errResp.Error.Message,
				StatusCode: httpResp.StatusCode,
				Type:       errResp.Error.Type,
				Code:       errResp.Error.Code,
				Retryable:  retryable,
			}
		}

		return nil, &APIError{
			Message:    fmt.Sprintf("API request failed with status %d: %s", httpResp.StatusCode, util.TruncateString(string(respBody), 500)),
			StatusCode: httpResp.StatusCode,
			Retryable:  retryable,
		}
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrEmptyResponse)
	}

	c.logger.Debug("API response",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason)

	return &resp, nil
}
