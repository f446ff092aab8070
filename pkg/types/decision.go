// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SourceChoice is the selector's verdict for one catalog source.
type SourceChoice struct {
	Selected  bool   `json:"selected" yaml:"selected"`
	Rationale string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// SelectionDecision records which sources a run will query and why.
// Order lists every candidate (and excluded source) in catalog order; the
// aggregator queries selected sources in that order.
type SelectionDecision struct {
	Order   []string                `json:"order" yaml:"order"`
	Choices map[string]SourceChoice `json:"choices" yaml:"choices"`

	// Fallback is true when the decision came from the select-all path
	// rather than from the model.
	Fallback       bool   `json:"fallback" yaml:"fallback"`
	FallbackReason string `json:"fallback_reason,omitempty" yaml:"fallback_reason,omitempty"`
}

// Selected returns the selected source identifiers in Order.
func (d SelectionDecision) Selected() []string {
	var ids []string
	for _, id := range d.Order {
		if d.Choices[id].Selected {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsSelected reports whether id was selected.
func (d SelectionDecision) IsSelected(id string) bool {
	return d.Choices[id].Selected
}

// FilterDecision is the relevance verdict for one deduplicated record.
type FilterDecision struct {
	// Index is the record's position in the filter input.
	Index  int    `json:"index" yaml:"index"`
	Title  string `json:"title" yaml:"title"`
	Source string `json:"source" yaml:"source"`
	Keep   bool   `json:"keep" yaml:"keep"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Fallback is true when the verdict did not come from a parsed model
	// answer: the filter was disabled, the call failed, or the reply was
	// judged by keyword.
	Fallback bool `json:"fallback" yaml:"fallback"`
}

// SynthesisResult is the executive summary and ordered insights for a run.
type SynthesisResult struct {
	Summary  string   `json:"summary" yaml:"summary"`
	Insights []string `json:"insights" yaml:"insights"`
}

// ReportDocument is a rendered report and the file name it will be saved as.
type ReportDocument struct {
	Filename string `json:"filename" yaml:"filename"`
	Markdown string `json:"-" yaml:"-"`

	// AutoNamed is true when Filename was derived from the generation
	// timestamp rather than supplied by the caller. Auto-named reports are
	// never written over an existing file.
	AutoNamed bool `json:"auto_named" yaml:"auto_named"`
}
