package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrConfig marks every configuration problem found before a model call
var ErrConfig = errors.New("configuration error")

// Provider names a model backend
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Fixed model identifiers, one per backend
const (
	GeminiModel = "gemini-2.5-pro"
	OpenAIModel = "gpt-4.1"
)

// Environment variables read by LoadSecrets
const (
	EnvProvider     = "EXAMBANK_PROVIDER"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Model returns the fixed model identifier of the provider
func (p Provider) Model() string {
	switch p {
	case ProviderOpenAI:
		return OpenAIModel
	default:
		return GeminiModel
	}
}

// CredentialEnv returns the environment variable holding the provider's key
func (p Provider) CredentialEnv() string {
	switch p {
	case ProviderOpenAI:
		return EnvOpenAIAPIKey
	default:
		return EnvGeminiAPIKey
	}
}

// Config represents the complete application configuration
type Config struct {
	Model           ModelConfig      `toml:"model"`
	Packing         PackingConfig    `toml:"packing"`
	Formatting      FormattingConfig `toml:"formatting"`
	PromptTemplates PromptTemplates  `toml:"prompt_templates"`
}

// ModelConfig holds request settings shared by both backends
type ModelConfig struct {
	Temperature        float64 `toml:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens    int     `toml:"max_output_tokens" validate:"gte=1,lte=65536"`
	RateLimitPerMinute int     `toml:"rate_limit_per_minute" validate:"gte=1,lte=10000"`
	MaxRetries         int     `toml:"max_retries" validate:"gte=-1,lte=10"`  // 0 or -1 = no retries
	RetryBaseDelayMS   int     `toml:"retry_base_delay_ms" validate:"gte=1"`  // first backoff step
	HTTPTimeoutSeconds int     `toml:"http_timeout_seconds" validate:"gte=0"` // 0 = no timeout
	BaseURL            string  `toml:"base_url" validate:"omitempty,url"`     // OpenAI-compatible backend only
}

// Retries returns the number of retries after the first attempt
func (m ModelConfig) Retries() int {
	if m.MaxRetries < 0 {
		return 0
	}
	return m.MaxRetries
}

// PackingConfig bounds the number of parts grouped into one node
type PackingConfig struct {
	MinParts int `toml:"min_parts" validate:"gte=1"`
	MaxParts int `toml:"max_parts" validate:"gtefield=MinParts"`
}

// FormattingConfig holds the fixed fields written into every node
type FormattingConfig struct {
	Layer      int    `toml:"layer" validate:"gte=0"`
	Difficulty string `toml:"difficulty" validate:"required,max=64"`
}

// PromptTemplates holds all customizable prompt templates
type PromptTemplates struct {
	Extraction   string `toml:"extraction" validate:"required"`
	Filtering    string `toml:"filtering" validate:"required"`
	Solution     string `toml:"solution" validate:"required"`
	SystemPrompt string `toml:"system_prompt"` // Optional system instruction sent with every call
}

// Secrets holds credentials and the backend choice read from the environment
type Secrets struct {
	Provider Provider
	APIKeys  map[Provider]string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
	})
	return v
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}

// describe turns a validator failure into a config-key message
func describe(fe validator.FieldError) string {
	key := fe.Namespace()
	if i := strings.Index(key, "."); i >= 0 {
		key = key[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", key)
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s (got %v)", key, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL (got %v)", key, fe.Value())
	default:
		return fmt.Sprintf("%s must satisfy %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
}

// LoadSecrets loads the backend choice and credentials from environment variables
func LoadSecrets() *Secrets {
	secrets := &Secrets{
		Provider: Provider(strings.ToLower(strings.TrimSpace(os.Getenv(EnvProvider)))),
		APIKeys:  make(map[Provider]string),
	}
	if secrets.Provider == "" {
		secrets.Provider = ProviderGemini
	}

	if key := os.Getenv(EnvGeminiAPIKey); key != "" {
		secrets.APIKeys[ProviderGemini] = key
	}
	if key := os.Getenv(EnvOpenAIAPIKey); key != "" {
		secrets.APIKeys[ProviderOpenAI] = key
	}

	return secrets
}

// Resolve returns the selected provider and its credential. An unknown
// provider or a missing key is reported before any network call.
func (s *Secrets) Resolve() (Provider, string, error) {
	switch s.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return "", "", fmt.Errorf("%w: %s must be %q or %q (got %q)",
			ErrConfig, EnvProvider, ProviderGemini, ProviderOpenAI, s.Provider)
	}

	key := s.APIKeys[s.Provider]
	if key == "" {
		return "", "", fmt.Errorf("%w: %s is not set (required for provider %s)",
			ErrConfig, s.Provider.CredentialEnv(), s.Provider)
	}
	return s.Provider, key, nil
}
