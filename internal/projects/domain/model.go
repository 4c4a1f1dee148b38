package domain

import "time"

// StageType identifies one step of the fixed five-stage HACF pipeline.
type StageType string

const (
	StageTaskDefinition StageType = "task_definition"
	StageRefinement     StageType = "refinement"
	StageDevelopment    StageType = "development"
	StageOptimization   StageType = "optimization"
	StageFinalOutput    StageType = "final_output"
)

// StageOrder lists the stage types in pipeline order. Layer numbers
// exposed over HTTP are 1-based indexes into this slice.
var StageOrder = []StageType{
	StageTaskDefinition,
	StageRefinement,
	StageDevelopment,
	StageOptimization,
	StageFinalOutput,
}

// Order returns the 1-based position of the stage in the pipeline,
// or 0 for an unknown stage type.
func (s StageType) Order() int {
	for i, st := range StageOrder {
		if st == s {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether s is one of the five pipeline stages.
func (s StageType) Valid() bool {
	return s.Order() != 0
}

// Prev returns the stage immediately preceding s, or "" for the first
// stage and for unknown types.
func (s StageType) Prev() StageType {
	n := s.Order()
	if n <= 1 {
		return ""
	}
	return StageOrder[n-2]
}

// StageTypeForLayer maps a 1-based layer number to its stage type.
// Returns "" for out-of-range layers.
func StageTypeForLayer(layer int) StageType {
	if layer < 1 || layer > len(StageOrder) {
		return ""
	}
	return StageOrder[layer-1]
}

// Project is a single HACF project owned by a user. Progress is
// derived from stage completion, never stored.
type Project struct {
	PublicID    string    `json:"public_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Progress    float64   `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Stage holds the raw output of one pipeline stage. Unique per
// (project, stage_type). Content may be JSON or markdown-fenced code;
// the store does not interpret it.
type Stage struct {
	ProjectID string    `json:"-"`
	StageType StageType `json:"stage_type"`
	Content   string    `json:"content"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectFile is one named file extracted from a stage's raw output.
// Names are not unique: a later write for the same name replaces the
// earlier one.
type ProjectFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}
