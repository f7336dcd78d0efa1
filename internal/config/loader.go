package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is read when no --config flag is given
const DefaultPath = "exambank.toml"

// Load reads and parses the configuration file. A missing file is only an
// error when required is set; otherwise the defaults are used. The file is
// decoded over the defaults, so only keys present in it change anything and
// an explicit zero is kept.
func Load(configPath string, required bool) (*Config, error) {
	cfg := *Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config file: %w", ErrConfig, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("%w: failed to read config file: %w", ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid configuration: %w", ErrConfig, err)
	}

	if err := cfg.ValidateInputs(); err != nil {
		return nil, fmt.Errorf("%w: input validation failed: %w", ErrConfig, err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets the value of every optional configuration field
func applyDefaults(cfg *Config) {
	cfg.Model = ModelConfig{
		Temperature:        0.2,
		MaxOutputTokens:    16384,
		RateLimitPerMinute: 30,
		MaxRetries:         3,
		RetryBaseDelayMS:   2000,
		HTTPTimeoutSeconds: 300,
		BaseURL:            "https://api.openai.com/v1",
	}
	cfg.Packing = PackingConfig{MinParts: 4, MaxParts: 6}
	cfg.Formatting = FormattingConfig{Layer: 1, Difficulty: "medium"}
	cfg.PromptTemplates = PromptTemplates{
		Extraction:   GetDefaultExtractionTemplate(),
		Filtering:    GetDefaultFilteringTemplate(),
		Solution:     GetDefaultSolutionTemplate(),
		SystemPrompt: GetDefaultSystemPrompt(),
	}
}
