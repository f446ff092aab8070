// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selector decides which catalog sources a research run queries.
// The model picks sources suited to the topic; every failure path selects
// all candidates instead.
package selector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/sources"
	"github.com/pdiddy/deep-research/pkg/types"
)

// MinSources is the fewest sources a model selection may choose when at
// least that many candidates exist.
const MinSources = 3

// Fallback reasons recorded on the decision.
const (
	ReasonDisabled  = "source selection disabled"
	ReasonTooFew    = "model selected too few sources"
	ReasonExcluded  = "excluded"
	ReasonNoReason  = "selected by model"
	ReasonNotChosen = "not selected by model"
)

var selectionPromptTmpl = template.Must(template.New("selection").Parse(`You are a research source selection expert. Analyze the research topic and select the most appropriate sources to search.

Research Topic: {{.Topic}}

Available Sources:
{{range .Sources}}- **{{.ID}}**: {{.Strengths}}
{{end}}
Your task:
1. Decide what type of information would be most valuable for this topic
2. Select {{.Min}}-7 sources that are most likely to have relevant, high-quality results
3. Consider whether the topic is academic, industry/practical, or mixed
4. Give a brief reason for each selection

Rules:
- Select at least {{.Min}} sources for coverage
- For industry or practical topics (tools, platforms, company practices, best practices), always include "web" and "news" alongside academic sources
- For academic or scientific topics, prioritize academic sources but still consider "web" for practical context
- For mixed topics, use a broad selection from academic and non-academic sources
- Do not select sources that are clearly irrelevant (for example europepmc for a pure computer science topic)
- When in doubt, include a source rather than exclude it

Respond with ONLY a JSON object in this exact format:
{"selected": ["source1", "source2"], "reasoning": {"source1": "reason for selection", "excluded_source": "reason for exclusion"}}
`))

// reply is the JSON object the model is asked to return.
type reply struct {
	Selected  []string          `json:"selected"`
	Reasoning map[string]string `json:"reasoning"`
}

var errTooFew = errors.New(ReasonTooFew)

// Selector chooses sources for a topic.
type Selector struct {
	llm    llm.Completer
	logger *zap.Logger
}

// New returns a Selector. logger may be nil.
func New(c llm.Completer, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{llm: c, logger: logger}
}

// Select returns the selection decision for topic. Candidates are the
// catalog sources not in excluded; excluded sources appear in the decision
// as not selected. When enabled is false, or the model fails, replies with
// something unusable, or picks fewer than MinSources known candidates while
// at least MinSources exist, every candidate is selected and the decision
// is marked as a fallback.
func (s *Selector) Select(ctx context.Context, topic string, cat *sources.Catalog, excluded []string, enabled bool) types.SelectionDecision {
	excluded = types.NormalizeIDs(excluded)
	descs := cat.Descriptors()
	candidates := lo.Filter(descs, func(d sources.Descriptor, _ int) bool {
		return !lo.Contains(excluded, d.ID)
	})
	ids := lo.Map(candidates, func(d sources.Descriptor, _ int) string { return d.ID })

	if !enabled {
		return selectAll(descs, excluded, ReasonDisabled)
	}
	if len(candidates) == 0 {
		return selectAll(descs, excluded, "no candidate sources")
	}

	prompt, err := renderPrompt(topic, candidates)
	if err != nil {
		s.logger.Warn("rendering selection prompt", zap.Error(err))
		return selectAll(descs, excluded, err.Error())
	}

	out := llm.Ask(ctx, s.llm, llm.Prompt{
		Purpose:     llm.PurposeSelect,
		Text:        prompt,
		MaxTokens:   500,
		Temperature: 0.2,
	}, func(text string) (reply, error) {
		return parseReply(text, ids)
	}, reply{})

	if out.Fallback {
		s.logger.Warn("source selection fell back to all sources", zap.Error(out.Err))
		return selectAll(descs, excluded, out.Err.Error())
	}

	d := types.SelectionDecision{Choices: make(map[string]types.SourceChoice, len(descs))}
	for _, desc := range descs {
		d.Order = append(d.Order, desc.ID)
		switch {
		case lo.Contains(excluded, desc.ID):
			d.Choices[desc.ID] = types.SourceChoice{Rationale: ReasonExcluded}
		case lo.Contains(out.Value.Selected, desc.ID):
			d.Choices[desc.ID] = types.SourceChoice{
				Selected:  true,
				Rationale: rationale(out.Value.Reasoning, desc.ID, ReasonNoReason),
			}
		default:
			d.Choices[desc.ID] = types.SourceChoice{
				Rationale: rationale(out.Value.Reasoning, desc.ID, ReasonNotChosen),
			}
		}
	}
	s.logger.Debug("sources selected", zap.Strings("selected", d.Selected()))
	return d
}

// parseReply decodes the model's answer and keeps only known candidate
// identifiers, in candidate order.
func parseReply(text string, candidates []string) (reply, error) {
	r, err := llm.DecodeJSON[reply](text)
	if err != nil {
		return reply{}, err
	}
	chosen := types.NormalizeIDs(r.Selected)
	r.Selected = lo.Filter(candidates, func(id string, _ int) bool {
		return lo.Contains(chosen, id)
	})
	if len(r.Selected) == 0 {
		return reply{}, errors.New("model selected no known sources")
	}
	if len(r.Selected) < MinSources && len(candidates) >= MinSources {
		return reply{}, fmt.Errorf("%w (%d)", errTooFew, len(r.Selected))
	}
	return r, nil
}

func rationale(reasons map[string]string, id, fallback string) string {
	for k, v := range reasons {
		if strings.EqualFold(k, id) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return fallback
}

// selectAll selects every catalog source that is not excluded.
func selectAll(descs []sources.Descriptor, excluded []string, reason string) types.SelectionDecision {
	d := types.SelectionDecision{
		Choices:        make(map[string]types.SourceChoice, len(descs)),
		Fallback:       true,
		FallbackReason: reason,
	}
	for _, desc := range descs {
		d.Order = append(d.Order, desc.ID)
		if lo.Contains(excluded, desc.ID) {
			d.Choices[desc.ID] = types.SourceChoice{Rationale: ReasonExcluded}
			continue
		}
		d.Choices[desc.ID] = types.SourceChoice{Selected: true, Rationale: reason}
	}
	return d
}

func renderPrompt(topic string, candidates []sources.Descriptor) (string, error) {
	var buf bytes.Buffer
	err := selectionPromptTmpl.Execute(&buf, struct {
		Topic   string
		Sources []sources.Descriptor
		Min     int
	}{topic, candidates, MinSources})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
