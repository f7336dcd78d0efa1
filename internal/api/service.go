package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/lamim/exambank/internal/config"
	"github.com/lamim/exambank/internal/metrics"
)

var (
	// ErrContentBlocked is returned when the backend refuses to answer
	ErrContentBlocked = errors.New("content blocked by safety filters")
	// ErrEmptyResponse is returned when the backend answers without text
	ErrEmptyResponse = errors.New("empty response from model")
)

// Service is the prompt-in, text-out contract every stage talks to
type Service interface {
	Invoke(ctx context.Context, prompt string, attachment *Attachment) (string, error)
	Backend() config.Provider
}

// Attachment is a source document sent alongside a prompt
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// NewAttachment wraps raw bytes, detecting the MIME type from the content
func NewAttachment(name string, data []byte) *Attachment {
	return &Attachment{
		Name:     name,
		MIMEType: mimetype.Detect(data).String(),
		Data:     data,
	}
}

// LoadAttachment reads a document from disk
func LoadAttachment(path string) (*Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return NewAttachment(filepath.Base(path), data), nil
}

// IsText reports whether the attachment can be inlined into a prompt
func (a *Attachment) IsText() bool {
	for m := mimetype.Lookup(a.MIMEType); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// BaseMIMEType drops parameters such as charset from the MIME type
func (a *Attachment) BaseMIMEType() string {
	base, _, _ := strings.Cut(a.MIMEType, ";")
	return strings.TrimSpace(base)
}

// NewService builds the backend selected by secrets. Configuration problems
// are reported before any network call.
func NewService(ctx context.Context, cfg *config.Config, secrets *config.Secrets, logger *slog.Logger, collector *metrics.Collector) (Service, error) {
	provider, apiKey, err := secrets.Resolve()
	if err != nil {
		return nil, err
	}

	limiter := NewRateLimiterPool()
	r := newRetrier(string(provider), cfg.Model, logger, collector)

	logger.Info("Model service configured",
		"backend", provider,
		"model", provider.Model(),
		"rpm", cfg.Model.RateLimitPerMinute,
		"max_retries", cfg.Model.Retries())

	switch provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, apiKey, limiter, r, logger), nil
	default:
		return NewGeminiClient(ctx, cfg, apiKey, limiter, r, logger)
	}
}

func httpTimeout(m config.ModelConfig) time.Duration {
	return time.Duration(m.HTTPTimeoutSeconds) * time.Second
}
