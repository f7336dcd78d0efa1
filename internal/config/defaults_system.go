package config

// GetDefaultSystemPrompt returns the system instruction sent with every model call
func GetDefaultSystemPrompt() string {
	return `You convert exam material into structured data for a practice question bank.
You always answer with a single JSON object and nothing else.
You never drop, merge or reorder questions unless explicitly asked to.`
}
