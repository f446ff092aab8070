// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rewrite turns a research topic into a search query tuned for
// academic databases and web search. Any failure keeps the topic as is.
package rewrite

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/llm"
)

var rewritePromptTmpl = template.Must(template.New("rewrite").Parse(`You are a search query optimizer. Rewrite a research topic into a better search query that returns relevant results from academic databases and web search engines.

Original topic: {{.}}

Instructions:
1. Identify the core research intent (for example market analysis, technical overview, academic survey)
2. Add 2-3 key synonyms or related terms that improve recall
3. Add exclusion terms prefixed with - to filter out irrelevant results (for example -resume -job -hiring when the topic is market research rather than job listings)
4. Keep the query concise, no more than 15 words excluding exclusion terms
5. Do NOT add quotes unless an exact phrase is critical
6. Optimize for precision: a focused query is better than a broad one

Respond with ONLY a JSON object in this exact format:
{"query": "your optimized search query here", "reasoning": "brief explanation of changes"}
`))

// Result is a rewritten query and the model's explanation.
type Result struct {
	Query     string `json:"query"`
	Reasoning string `json:"reasoning"`
}

// Rewriter produces search queries with a model.
type Rewriter struct {
	llm    llm.Completer
	logger *zap.Logger
}

// New returns a Rewriter. logger may be nil.
func New(c llm.Completer, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{llm: c, logger: logger}
}

// Rewrite returns the optimized query for topic. The outcome's Value is
// the topic itself whenever the model fails or returns no usable query.
func (r *Rewriter) Rewrite(ctx context.Context, topic string) llm.Outcome[Result] {
	fallback := Result{Query: topic}

	var buf bytes.Buffer
	if err := rewritePromptTmpl.Execute(&buf, topic); err != nil {
		return llm.Outcome[Result]{Value: fallback, Fallback: true, Err: err}
	}

	out := llm.Ask(ctx, r.llm, llm.Prompt{
		Purpose:     llm.PurposeRewrite,
		Text:        buf.String(),
		MaxTokens:   300,
		Temperature: 0.3,
	}, parse, fallback)
	if out.Fallback {
		r.logger.Warn("query rewrite failed, using topic", zap.Error(out.Err))
	}
	return out
}

func parse(text string) (Result, error) {
	res, err := llm.DecodeJSON[Result](text)
	if err != nil {
		return Result{}, err
	}
	res.Query = strings.Join(strings.Fields(res.Query), " ")
	if res.Query == "" {
		return Result{}, errors.New("rewritten query is empty")
	}
	res.Reasoning = strings.TrimSpace(res.Reasoning)
	return res, nil
}
