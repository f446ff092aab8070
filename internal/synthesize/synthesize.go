// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synthesize asks the model for an executive summary and key
// insights over the filtered research records.
package synthesize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// ErrNoRecords is returned when there is nothing to synthesize.
var ErrNoRecords = errors.New("no records to synthesize")

const (
	contextAbstractLimit = 500
	contextAuthors       = 3
	maxTokens            = 4000
)

var synthesisPromptTmpl = template.Must(template.New("synthesis").Parse(`You are a research analyst synthesizing insights from academic papers and other sources.

Research Topic: {{.Topic}}

I have collected {{.Count}} research papers and sources on this topic. Analyze them and provide:

1. **Executive Summary**: A concise 2-3 paragraph overview of the current state of research in this area
2. **Key Insights**: {{.MinInsights}}-{{.MaxInsights}} specific, actionable insights or trends you observe from this research
3. **Notable Findings**: Any particularly interesting or significant findings that stand out

Research Papers:

{{.Context}}

Provide your analysis in a clear, structured format with the section headings above.
`))

// Options bounds the number of insights requested and kept.
type Options struct {
	MinInsights int
	MaxInsights int
}

func (o Options) withDefaults() Options {
	if o.MinInsights <= 0 {
		o.MinInsights = 5
	}
	if o.MaxInsights < o.MinInsights {
		o.MaxInsights = max(o.MinInsights, 7)
	}
	return o
}

// Synthesizer produces a SynthesisResult with a model.
type Synthesizer struct {
	llm    llm.Completer
	opts   Options
	logger *zap.Logger
}

// New returns a Synthesizer. logger may be nil.
func New(c llm.Completer, opts Options, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{llm: c, opts: opts.withDefaults(), logger: logger}
}

// Synthesize summarizes recs for topic. A failed or empty model reply is
// returned as an error; no summary is invented in its place.
func (s *Synthesizer) Synthesize(ctx context.Context, topic string, recs []types.ResultRecord) (types.SynthesisResult, error) {
	if len(recs) == 0 {
		return types.SynthesisResult{}, ErrNoRecords
	}

	var buf bytes.Buffer
	err := synthesisPromptTmpl.Execute(&buf, struct {
		Topic       string
		Count       int
		MinInsights int
		MaxInsights int
		Context     string
	}{topic, len(recs), s.opts.MinInsights, s.opts.MaxInsights, BuildContext(recs)})
	if err != nil {
		return types.SynthesisResult{}, fmt.Errorf("rendering synthesis prompt: %w", err)
	}

	text, err := s.llm.Complete(ctx, llm.Prompt{
		Purpose:   llm.PurposeSynthesize,
		Text:      buf.String(),
		MaxTokens: maxTokens,
	})
	if err != nil {
		return types.SynthesisResult{}, err
	}
	if strings.TrimSpace(text) == "" {
		return types.SynthesisResult{}, llm.ErrEmptyResponse
	}

	res := Parse(text, s.opts.MaxInsights)
	s.logger.Debug("synthesis parsed",
		zap.Int("summary_chars", len(res.Summary)),
		zap.Int("insights", len(res.Insights)))
	return res, nil
}

// BuildContext formats records as numbered blocks for the prompt.
func BuildContext(recs []types.ResultRecord) string {
	parts := make([]string, len(recs))
	for i, r := range recs {
		authors := "Unknown"
		if len(r.Authors) > 0 {
			n := min(len(r.Authors), contextAuthors)
			authors = strings.Join(r.Authors[:n], ", ")
			if len(r.Authors) > contextAuthors {
				authors += " et al."
			}
		}
		date := r.DateString()
		if date == "" {
			date = "unknown"
		}
		parts[i] = fmt.Sprintf("Paper %d:\nTitle: %s\nAuthors: %s\nDate: %s\nSource: %s\nAbstract: %s\nURL: %s",
			i+1, r.Title, authors, date, r.Source, llm.Snippet(r.Abstract, contextAbstractLimit), r.URL)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
