// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter asks the model whether each aggregated record is relevant
// to the research topic and drops the ones it rejects. The filter is
// lenient: any failure keeps the record.
package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// abstractLimit caps the abstract text sent per record.
const abstractLimit = 800

const (
	reasonDisabled = "relevance filter disabled"
	reasonKeyword  = "keyword match fallback"
	reasonMissing  = "no verdict returned for this record"
)

const judgeRules = `Rules for judging relevance:
1. The item should discuss concepts, methods, or applications directly related to the topic
2. Be lenient with industry news and practical tools; these are often highly relevant even if not academic
3. Items from completely different domains (astronomy, biology, physics) are NOT relevant unless they directly apply to the topic
4. For academic papers, the topic's key terms should appear meaningfully
5. For news or web articles about tools, companies, or practices in the field, be more permissive`

var singlePromptTmpl = template.Must(template.New("single").Parse(`You are a research relevance judge. Decide whether a paper or article is relevant to a research topic.

Research Topic: {{.Topic}}

Paper/Article to Evaluate:
Title: {{.Record.Title}}
Abstract: {{.Record.Abstract}}
Source: {{.Record.Source}}

Question: Is this paper/article directly relevant to the research topic?

` + judgeRules + `

Respond with ONLY a JSON object in this exact format:
{"relevant": true, "reason": "brief explanation in one sentence"}
`))

var batchPromptTmpl = template.Must(template.New("batch").Parse(`You are a research relevance judge. Decide whether each paper or article below is relevant to a research topic.

Research Topic: {{.Topic}}

Items to Evaluate:
{{range $i, $r := .Records}}
[{{$i}}] Title: {{$r.Title}}
Abstract: {{$r.Abstract}}
Source: {{$r.Source}}
{{end}}
` + judgeRules + `

Respond with ONLY a JSON object with one decision per item, using the bracketed index:
{"decisions": [{"index": 0, "relevant": true, "reason": "brief explanation"}]}
`))

// Options tunes how records are sent to the model.
type Options struct {
	// BatchSize is the number of records judged per model call. Values
	// below 2 judge one record per call.
	BatchSize int

	// Concurrency caps concurrent model calls. Zero means one at a time.
	Concurrency int
}

// Filter judges record relevance with a model.
type Filter struct {
	llm    llm.Completer
	opts   Options
	logger *zap.Logger
}

// New returns a Filter. logger may be nil.
func New(c llm.Completer, opts Options, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{llm: c, opts: opts, logger: logger}
}

// Apply returns the records judged relevant, in input order, and one
// decision per input record. When enabled is false the input is returned
// unchanged and every decision is a forced keep.
func (f *Filter) Apply(ctx context.Context, topic string, recs []types.ResultRecord, enabled bool) ([]types.ResultRecord, []types.FilterDecision) {
	decisions := make([]types.FilterDecision, len(recs))
	for i, r := range recs {
		decisions[i] = types.FilterDecision{Index: i, Title: r.Title, Source: r.Source, Keep: true, Fallback: true}
	}
	if !enabled {
		for i := range decisions {
			decisions[i].Reason = reasonDisabled
		}
		return recs, decisions
	}

	size := max(f.opts.BatchSize, 1)
	var g errgroup.Group
	g.SetLimit(max(f.opts.Concurrency, 1))
	for start := 0; start < len(recs); start += size {
		start, end := start, min(start+size, len(recs))
		g.Go(func() error {
			if size == 1 {
				decisions[start] = f.judgeOne(ctx, topic, recs[start], decisions[start])
			} else {
				f.judgeBatch(ctx, topic, recs[start:end], decisions[start:end])
			}
			return nil
		})
	}
	_ = g.Wait()

	var kept []types.ResultRecord
	for i, d := range decisions {
		if d.Keep {
			kept = append(kept, recs[i])
		} else {
			f.logger.Debug("record filtered out", zap.String("title", d.Title), zap.String("reason", d.Reason))
		}
	}
	return kept, decisions
}

type verdict struct {
	Relevant *bool  `json:"relevant"`
	Reason   string `json:"reason"`
}

func (f *Filter) judgeOne(ctx context.Context, topic string, r types.ResultRecord, d types.FilterDecision) types.FilterDecision {
	prompt, err := render(singlePromptTmpl, topic, []types.ResultRecord{r})
	if err != nil {
		d.Reason = err.Error()
		return d
	}
	out := llm.Ask(ctx, f.llm, llm.Prompt{
		Purpose:     llm.PurposeFilter,
		Text:        prompt,
		MaxTokens:   200,
		Temperature: 0.1,
	}, parseVerdict(d), d)
	if out.Err != nil {
		f.logger.Warn("relevance check failed, keeping record", zap.String("title", r.Title), zap.Error(out.Err))
		out.Value.Reason = "error: " + out.Err.Error()
	}
	return out.Value
}

// parseVerdict returns a parser that fills in d from a single-record reply.
// A reply that is not a JSON verdict is judged by keywordVerdict and stays
// marked as a fallback, so the parser never fails.
func parseVerdict(d types.FilterDecision) func(string) (types.FilterDecision, error) {
	return func(text string) (types.FilterDecision, error) {
		if v, err := llm.DecodeJSON[verdict](text); err == nil && v.Relevant != nil {
			d.Keep = *v.Relevant
			d.Reason = firstNonEmpty(v.Reason, "no reason provided")
			d.Fallback = false
			return d, nil
		}
		d.Keep = keywordVerdict(text)
		d.Reason = reasonKeyword
		d.Fallback = true
		return d, nil
	}
}

type batchReply struct {
	Decisions []struct {
		Index    *int   `json:"index"`
		Relevant *bool  `json:"relevant"`
		Reason   string `json:"reason"`
	} `json:"decisions"`
}

func (f *Filter) judgeBatch(ctx context.Context, topic string, recs []types.ResultRecord, ds []types.FilterDecision) {
	prompt, err := render(batchPromptTmpl, topic, recs)
	if err != nil {
		for i := range ds {
			ds[i].Reason = err.Error()
		}
		return
	}
	out := llm.Ask(ctx, f.llm, llm.Prompt{
		Purpose:     llm.PurposeFilter,
		Text:        prompt,
		MaxTokens:   200 * len(recs),
		Temperature: 0.1,
	}, llm.DecodeJSON[batchReply], batchReply{})
	switch {
	case errors.Is(out.Err, llm.ErrUnparseable):
		f.logger.Warn("unparseable batch verdict, keeping records", zap.Error(out.Err))
		for i := range ds {
			ds[i].Reason = "unparseable reply"
		}
		return
	case out.Err != nil:
		f.logger.Warn("batch relevance check failed, keeping records", zap.Int("records", len(recs)), zap.Error(out.Err))
		for i := range ds {
			ds[i].Reason = "error: " + out.Err.Error()
		}
		return
	}

	for i := range ds {
		ds[i].Reason = reasonMissing
	}
	for _, v := range out.Value.Decisions {
		if v.Index == nil || v.Relevant == nil || *v.Index < 0 || *v.Index >= len(ds) {
			continue
		}
		ds[*v.Index].Keep = *v.Relevant
		ds[*v.Index].Reason = firstNonEmpty(v.Reason, "no reason provided")
		ds[*v.Index].Fallback = false
	}
}

// keywordVerdict judges a reply that is not valid JSON. The record is kept
// unless the reply clearly says it is not relevant.
func keywordVerdict(text string) bool {
	l := strings.ToLower(text)
	if strings.Contains(l, "true") {
		return true
	}
	for _, neg := range []string{"false", "not relevant", "irrelevant"} {
		if strings.Contains(l, neg) {
			return false
		}
	}
	return true
}

func render(tmpl *template.Template, topic string, recs []types.ResultRecord) (string, error) {
	trimmed := make([]types.ResultRecord, len(recs))
	for i, r := range recs {
		r.Abstract = llm.Snippet(r.Abstract, abstractLimit)
		trimmed[i] = r
	}
	data := struct {
		Topic   string
		Record  types.ResultRecord
		Records []types.ResultRecord
	}{Topic: topic, Records: trimmed}
	if len(trimmed) > 0 {
		data.Record = trimmed[0]
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering relevance prompt: %w", err)
	}
	return buf.String(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
