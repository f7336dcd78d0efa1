package models

// Part is a single answerable sub-question. Parts that came from a nested
// sub-part keep the parent's label and text for provenance.
type Part struct {
	Label               string   `json:"label" yaml:"label" validate:"required"`
	Text                string   `json:"text" yaml:"text" validate:"required"`
	Answer              string   `json:"answer" yaml:"answer"`
	ParentLabel         string   `json:"parentLabel,omitempty" yaml:"parentLabel,omitempty"`
	ParentText          string   `json:"parentText,omitempty" yaml:"parentText,omitempty"`
	AvatarIntro         string   `json:"avatarIntro,omitempty" yaml:"avatarIntro,omitempty"`
	StepByStepGuideline []string `json:"stepByStepGuideline,omitempty" yaml:"stepByStepGuideline,omitempty"`
}

// QuestionRecord is one source question with its flattened, ordered parts
type QuestionRecord struct {
	Question string `json:"question" yaml:"question" validate:"required"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Parts    []Part `json:"parts" yaml:"parts" validate:"required,min=1,dive"`
}

// PartCount returns the number of parts the question contributes to a node
func (q QuestionRecord) PartCount() int {
	return len(q.Parts)
}

// QuestionSet is the on-disk shape of the raw, filtered and solutions artifacts
type QuestionSet struct {
	Schema    string           `json:"schema"`
	Source    string           `json:"source,omitempty"`
	Questions []QuestionRecord `json:"questions" validate:"dive"`
}

// TotalParts sums the part counts of every question in the set
func (s QuestionSet) TotalParts() int {
	total := 0
	for _, q := range s.Questions {
		total += q.PartCount()
	}
	return total
}

// RemovedQuestion records one question dropped by the filtering stage
type RemovedQuestion struct {
	Index    int            `json:"index"`
	Reason   string         `json:"reason"`
	Question QuestionRecord `json:"question"`
}

// RemovalLog is written beside the filtered artifact
type RemovalLog struct {
	Schema  string            `json:"schema"`
	Input   string            `json:"input"`
	Kept    int               `json:"kept"`
	Removed []RemovedQuestion `json:"removed"`
}

// PartRecord is a part placed inside a node with its composite identifier
type PartRecord struct {
	ID                  string   `json:"id" yaml:"id"`
	QuestionIndex       int      `json:"questionIndex" yaml:"questionIndex"`
	Question            string   `json:"question" yaml:"question"`
	Label               string   `json:"label" yaml:"label"`
	Text                string   `json:"text" yaml:"text"`
	Answer              string   `json:"answer" yaml:"answer"`
	ParentLabel         string   `json:"parentLabel,omitempty" yaml:"parentLabel,omitempty"`
	ParentText          string   `json:"parentText,omitempty" yaml:"parentText,omitempty"`
	AvatarIntro         string   `json:"avatarIntro,omitempty" yaml:"avatarIntro,omitempty"`
	StepByStepGuideline []string `json:"stepByStepGuideline" yaml:"stepByStepGuideline"`
}

// NodeDescriptor carries the practice content of a node
type NodeDescriptor struct {
	Difficulty          string       `json:"difficulty" yaml:"difficulty"`
	PreWrittenQuestions []PartRecord `json:"preWrittenQuestions" yaml:"preWrittenQuestions"`
}

// Node is one grouped unit of the final question bank
type Node struct {
	ID               string         `json:"id" yaml:"id"`
	NodeNumber       int            `json:"nodeNumber" yaml:"nodeNumber"`
	Title            string         `json:"title" yaml:"title"`
	Layer            int            `json:"layer" yaml:"layer"`
	ProblemsRequired int            `json:"problemsRequired" yaml:"problemsRequired"`
	Descriptor       NodeDescriptor `json:"descriptor" yaml:"descriptor"`
}

// NodeSet is the final artifact written by the formatting stage
type NodeSet struct {
	Schema  string `json:"schema" yaml:"schema"`
	TopicID string `json:"topicId" yaml:"topicId"`
	Nodes   []Node `json:"nodes" yaml:"nodes"`
}

// FailedBatch describes one batch the model service could not process
type FailedBatch struct {
	BatchIndex    int              `json:"batchIndex"`
	FirstQuestion int              `json:"firstQuestion"` // 1-based, inclusive
	LastQuestion  int              `json:"lastQuestion"`  // 1-based, inclusive
	QuestionCount int              `json:"questionCount"`
	Error         string           `json:"error"`
	Diagnostics   []string         `json:"diagnostics,omitempty"`
	Questions     []QuestionRecord `json:"questions"`
}

// FailureManifest lists every batch that failed during a stage run
type FailureManifest struct {
	Schema             string        `json:"schema"`
	RunID              string        `json:"runId"`
	Stage              string        `json:"stage"`
	InputPath          string        `json:"inputPath"`
	OutputPath         string        `json:"outputPath"`
	BatchSize          int           `json:"batchSize"`
	TotalQuestions     int           `json:"totalQuestions"`
	SucceededQuestions int           `json:"succeededQuestions"`
	FailedBatches      []FailedBatch `json:"failedBatches"`
}

// FailedParts counts the parts held by every failed batch
func (m FailureManifest) FailedParts() int {
	total := 0
	for _, b := range m.FailedBatches {
		for _, q := range b.Questions {
			total += q.PartCount()
		}
	}
	return total
}
