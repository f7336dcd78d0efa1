// Package packing groups consecutive questions into nodes whose total part
// count targets a [Min, Max] window.
//
// The grouping is a single greedy pass with no reordering. It is not optimal
// bin packing: undersized groups are emitted as they fall, and a question
// that alone exceeds Max becomes its own oversized node rather than being
// split.
package packing

import (
	"fmt"
	"strings"

	"github.com/lamim/exambank/pkg/models"
)

const (
	// DefaultMinParts is the part count at which a question stands alone
	DefaultMinParts = 4
	// DefaultMaxParts is the largest part total a merged group may reach
	DefaultMaxParts = 6
)

// Options control node construction
type Options struct {
	TopicID     string
	StartNumber int
	Min         int
	Max         int
	Layer       int
	Difficulty  string
}

// Validate checks that the options describe a usable window
func (o Options) Validate() error {
	if o.Min < 1 {
		return fmt.Errorf("min parts must be at least 1 (got %d)", o.Min)
	}
	if o.Max < o.Min {
		return fmt.Errorf("max parts (%d) must not be below min parts (%d)", o.Max, o.Min)
	}
	if strings.TrimSpace(o.TopicID) == "" {
		return fmt.Errorf("topic id is required")
	}
	if o.StartNumber < 0 {
		return fmt.Errorf("starting node number must not be negative (got %d)", o.StartNumber)
	}
	return nil
}

// Plan groups question indices by part count. For each question in order:
//
//   - count >= min: flush the open group (even if undersized), then emit the
//     question alone
//   - open total + count <= max: add it to the open group
//   - otherwise: flush the open group and start a new one with it
//
// Any open group left at the end is flushed.
func Plan(counts []int, min, max int) [][]int {
	var groups [][]int
	var group []int
	partCount := 0

	flush := func() {
		if len(group) > 0 {
			groups = append(groups, group)
			group = nil
			partCount = 0
		}
	}

	for i, n := range counts {
		switch {
		case n >= min:
			flush()
			groups = append(groups, []int{i})
		case partCount+n <= max:
			group = append(group, i)
			partCount += n
		default:
			flush()
			group = []int{i}
			partCount = n
		}
	}
	flush()

	return groups
}

// Pack builds nodes from questions following Plan
func Pack(questions []models.QuestionRecord, opts Options) ([]models.Node, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid packing options: %w", err)
	}

	counts := make([]int, len(questions))
	for i, q := range questions {
		counts[i] = q.PartCount()
	}

	groups := Plan(counts, opts.Min, opts.Max)
	nodes := make([]models.Node, 0, len(groups))
	for i, group := range groups {
		members := make([]models.QuestionRecord, len(group))
		for j, idx := range group {
			members[j] = questions[idx]
		}
		nodes = append(nodes, buildNode(opts.StartNumber+i, members, opts))
	}

	return nodes, nil
}

// NodeID returns the composite id of a node
func NodeID(topicID string, nodeNumber int) string {
	return fmt.Sprintf("%s-node-%d", topicID, nodeNumber)
}

// PartID returns the composite id of a part within a node. questionIndex is
// 1-based within the node. The part's own label is used as written; a nested
// part is prefixed with its parent's label.
func PartID(nodeNumber, questionIndex int, p models.Part, position int) string {
	label := strings.TrimSpace(p.Label)
	if label == "" {
		label = fmt.Sprintf("p%d", position+1)
	}
	if parent := strings.TrimSpace(p.ParentLabel); parent != "" {
		label = parent + "." + label
	}
	return fmt.Sprintf("n%d-q%d-%s", nodeNumber, questionIndex, label)
}

// uniqueID returns id, or id with a numeric suffix when a part of the same
// node already took it.
func uniqueID(id string, taken map[string]bool) string {
	candidate := id
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d", id, n)
	}
	taken[candidate] = true
	return candidate
}

func buildNode(number int, members []models.QuestionRecord, opts Options) models.Node {
	var parts []models.PartRecord
	var titles []string
	taken := make(map[string]bool)
	seenTitle := make(map[string]bool)

	for qi, q := range members {
		if t := strings.TrimSpace(q.Title); t != "" && !seenTitle[t] {
			seenTitle[t] = true
			titles = append(titles, t)
		}

		for pi, p := range q.Parts {
			guideline := p.StepByStepGuideline
			if guideline == nil {
				guideline = []string{}
			}
			parts = append(parts, models.PartRecord{
				ID:                  uniqueID(PartID(number, qi+1, p, pi), taken),
				QuestionIndex:       qi + 1,
				Question:            q.Question,
				Label:               p.Label,
				Text:                p.Text,
				Answer:              p.Answer,
				ParentLabel:         p.ParentLabel,
				ParentText:          p.ParentText,
				StepByStepGuideline: guideline,
			})
		}
	}

	if len(parts) > 0 && len(members[0].Parts) > 0 {
		parts[0].AvatarIntro = members[0].Parts[0].AvatarIntro
	}

	title := strings.Join(titles, " / ")
	if title == "" {
		title = fmt.Sprintf("Node %d", number)
	}

	return models.Node{
		ID:               NodeID(opts.TopicID, number),
		NodeNumber:       number,
		Title:            title,
		Layer:            opts.Layer,
		ProblemsRequired: len(parts),
		Descriptor: models.NodeDescriptor{
			Difficulty:          opts.Difficulty,
			PreWrittenQuestions: parts,
		},
	}
}
