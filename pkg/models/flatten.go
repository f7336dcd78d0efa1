package models

// MainPartLabel is given to the synthesized part of a question that has none
const MainPartLabel = "main"

// ExtractedPart is a part as returned by the extraction prompt, possibly nested
type ExtractedPart struct {
	Label    string          `json:"label"`
	Text     string          `json:"text"`
	Answer   string          `json:"answer"`
	SubParts []ExtractedPart `json:"subparts,omitempty"`
}

// ExtractedQuestion is a question as returned by the extraction prompt
type ExtractedQuestion struct {
	Question string          `json:"question"`
	Answer   string          `json:"answer,omitempty"`
	Parts    []ExtractedPart `json:"parts"`
}

// Flatten turns nested extraction output into question records with a single
// ordered part list. A part with sub-parts is replaced by its sub-parts, each
// carrying the parent's label and text. A question without parts becomes a
// single part labelled MainPartLabel.
func Flatten(extracted []ExtractedQuestion) []QuestionRecord {
	records := make([]QuestionRecord, 0, len(extracted))
	for _, eq := range extracted {
		rec := QuestionRecord{Question: eq.Question}
		for _, p := range eq.Parts {
			rec.Parts = append(rec.Parts, flattenPart(p, "", "")...)
		}
		if len(rec.Parts) == 0 {
			rec.Parts = []Part{{
				Label:  MainPartLabel,
				Text:   eq.Question,
				Answer: eq.Answer,
			}}
		}
		records = append(records, rec)
	}
	return records
}

func flattenPart(p ExtractedPart, parentLabel, parentText string) []Part {
	if len(p.SubParts) == 0 {
		return []Part{{
			Label:       p.Label,
			Text:        p.Text,
			Answer:      p.Answer,
			ParentLabel: parentLabel,
			ParentText:  parentText,
		}}
	}

	label := p.Label
	if parentLabel != "" {
		label = parentLabel + "." + p.Label
	}
	text := p.Text
	if parentText != "" && text != "" {
		text = parentText + "\n" + text
	} else if text == "" {
		text = parentText
	}

	var out []Part
	for _, sp := range p.SubParts {
		out = append(out, flattenPart(sp, label, text)...)
	}
	return out
}
