package config

// GetDefaultExtractionTemplate returns the default template for question extraction.
// Variables: .SourceName, .DocumentText (empty when the document is attached)
func GetDefaultExtractionTemplate() string {
	return `Extract every exam question from the document "{{.SourceName}}".

For each question return:
- "question": the shared stem or instructions, verbatim
- "answer": the answer to the whole question, if the document gives one
- "parts": the lettered or numbered sub-questions, each with "label", "text",
  "answer" and, when a part has its own sub-parts, "subparts" using the same shape

Keep mathematics as inline LaTeX between single dollar signs, e.g. $\frac{1}{2}$.
Escape every backslash for JSON (write \\frac, not \frac).
Do not solve questions that have no printed answer; leave "answer" empty.
{{if .DocumentText}}
DOCUMENT:
{{.DocumentText}}
{{end}}
Return ONLY a valid JSON object (no markdown, no additional text):
{"questions": [{"question": "...", "answer": "...", "parts": [{"label": "a", "text": "...", "answer": "...", "subparts": []}]}]}`
}

// GetDefaultFilteringTemplate returns the default template for question filtering.
// Variables: .Count, .Questions (one "[index] text" block per question)
func GetDefaultFilteringTemplate() string {
	return `Below are {{.Count}} exam questions, each prefixed with its index in square brackets.

Identify questions that cannot be practised as stand-alone text problems:
- questions that depend on a diagram, graph, table or image that is not reproduced
- duplicates of an earlier question
- questions that are incomplete or unreadable after extraction

QUESTIONS:
{{.Questions}}

Return ONLY a valid JSON object (no markdown, no additional text) listing the questions to remove:
{"removed": [{"index": 3, "reason": "refers to Figure 2"}]}
Return {"removed": []} if every question should be kept.`
}

// GetDefaultSolutionTemplate returns the default template for solution generation.
// Variables: .Count, .Questions (JSON array of the batch)
func GetDefaultSolutionTemplate() string {
	return `You are an experienced mathematics tutor. For each of the {{.Count}} questions below write:
- "title": a short topic title for the question (at most six words)
- for every part, in the same order as given:
  - "label": the part label, unchanged
  - "avatarIntro": one or two friendly sentences a tutor would say before starting the part
  - "stepByStepGuideline": an ordered list of short steps that lead to the answer

Keep mathematics as inline LaTeX between single dollar signs and escape every backslash for JSON.
Return exactly {{.Count}} questions, each with exactly as many parts as its input.

QUESTIONS:
{{.Questions}}

Return ONLY a valid JSON object (no markdown, no additional text):
{"questions": [{"title": "...", "parts": [{"label": "a", "avatarIntro": "...", "stepByStepGuideline": ["...", "..."]}]}]}`
}
