package config

import (
	"fmt"
	"net/url"
	"unicode"

	"github.com/lamim/exambank/internal/util"
)

// MaxTemplateSize is the maximum allowed size for template content
const MaxTemplateSize = 50 * 1024 // 50KB

// ValidateInputs performs additional validation on user-controllable fields
// that struct tags cannot express.
func (c *Config) ValidateInputs() error {
	if err := validateBaseURL(c.Model.BaseURL); err != nil {
		return err
	}

	if containsControlChars(c.Formatting.Difficulty) {
		return fmt.Errorf("formatting.difficulty contains invalid control characters")
	}

	return c.validateTemplates()
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("model.base_url is invalid: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("model.base_url must use http or https scheme (got %s)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("model.base_url must have a host")
	}

	return nil
}

// validateTemplates checks template sizes and that each template parses
func (c *Config) validateTemplates() error {
	templates := []struct {
		name  string
		value string
	}{
		{"extraction", c.PromptTemplates.Extraction},
		{"filtering", c.PromptTemplates.Filtering},
		{"solution", c.PromptTemplates.Solution},
		{"system_prompt", c.PromptTemplates.SystemPrompt},
	}

	for _, tmpl := range templates {
		if len(tmpl.value) > MaxTemplateSize {
			return fmt.Errorf("template '%s' exceeds maximum size of %d bytes (got %d)",
				tmpl.name, MaxTemplateSize, len(tmpl.value))
		}
		if containsControlChars(tmpl.value) {
			return fmt.Errorf("template '%s' contains invalid control characters", tmpl.name)
		}
		if err := util.ValidateTemplate(tmpl.value); err != nil {
			return fmt.Errorf("template '%s': %w", tmpl.name, err)
		}
	}

	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
