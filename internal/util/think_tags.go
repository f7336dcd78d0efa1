package util

import (
	"regexp"
	"strings"
)

// Reasoning models served through OpenAI-compatible gateways often prepend
// their chain of thought in tags. The braces inside it would otherwise be
// picked up by RepairAndParse as the start of the JSON object.
var (
	thinkTagRegex = regexp.MustCompile(`(?i)<think(?:ing)?>([\s\S]*?)</think(?:ing)?>`)
	// An opening tag whose block was cut off by the token limit
	danglingThinkRegex = regexp.MustCompile(`(?i)<think(?:ing)?>[\s\S]*$`)
)

// ContainsThinkTags checks if the response contains think/reasoning tags
func ContainsThinkTags(response string) bool {
	return thinkTagRegex.MatchString(response) || danglingThinkRegex.MatchString(response)
}

// StripThinkTags removes think/reasoning blocks and returns the remaining answer
func StripThinkTags(response string) string {
	result := thinkTagRegex.ReplaceAllString(response, "")
	result = danglingThinkRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}
