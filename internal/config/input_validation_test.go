package config

import (
	"strings"
	"testing"
)

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr string
	}{
		{"https://api.openai.com/v1", ""},
		{"http://localhost:8080/v1", ""},
		{"ftp://example.com", "http or https"},
		{"https://", "must have a host"},
		{"://bad", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := validateBaseURL(tt.url)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validateBaseURL(%q) unexpected error: %v", tt.url, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validateBaseURL(%q) error = %v, want substring %q", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateInputs_Templates(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"oversized", func(c *Config) { c.PromptTemplates.Solution = strings.Repeat("a", MaxTemplateSize+1) }, "exceeds maximum size"},
		{"control chars", func(c *Config) { c.PromptTemplates.Filtering = "bad\x00" }, "control characters"},
		{"unparseable", func(c *Config) { c.PromptTemplates.Extraction = "{{.Open" }, "extraction"},
		{"difficulty control chars", func(c *Config) { c.Formatting.Difficulty = "a\x07" }, "difficulty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.ValidateInputs()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateInputs() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateInputs() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}
