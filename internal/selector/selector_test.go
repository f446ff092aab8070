// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/sources"
	"github.com/pdiddy/deep-research/pkg/types"
)

type namedSource string

func (n namedSource) Name() string { return string(n) }

func (n namedSource) Search(context.Context, sources.Request) ([]types.ResultRecord, error) {
	return nil, nil
}

func testCatalog(t *testing.T, ids ...string) *sources.Catalog {
	t.Helper()
	var descs []sources.Descriptor
	for _, id := range ids {
		descs = append(descs, sources.Descriptor{ID: id, Strengths: "good for " + id, Source: namedSource(id)})
	}
	c, err := sources.NewCatalog(descs...)
	require.NoError(t, err)
	return c
}

func replying(text string, err error) llm.Completer {
	return llm.CompleterFunc(func(context.Context, llm.Prompt) (string, error) {
		return text, err
	})
}

func TestSelectUsesModelChoice(t *testing.T) {
	cat := testCatalog(t, "arxiv", "news", "web", "github", "reddit")
	var prompt llm.Prompt
	c := llm.CompleterFunc(func(_ context.Context, p llm.Prompt) (string, error) {
		prompt = p
		return "```json\n" + `{"selected":["web","ARXIV","news","nonsense"],"reasoning":{"web":"practical","github":"not needed"}}` + "\n```", nil
	})

	d := New(c, zaptest.NewLogger(t)).Select(context.Background(), "kubernetes autoscaling", cat, nil, true)

	assert.False(t, d.Fallback)
	assert.Equal(t, []string{"arxiv", "news", "web"}, d.Selected(), "catalog order, unknown ids dropped")
	assert.Equal(t, "practical", d.Choices["web"].Rationale)
	assert.Equal(t, ReasonNoReason, d.Choices["arxiv"].Rationale)
	assert.Equal(t, "not needed", d.Choices["github"].Rationale)
	assert.False(t, d.IsSelected("github"))

	assert.Equal(t, llm.PurposeSelect, prompt.Purpose)
	assert.Contains(t, prompt.Text, "Research Topic: kubernetes autoscaling")
	assert.Contains(t, prompt.Text, "- **reddit**: good for reddit")
}

func TestSelectFallsBackToAllMinusExcluded(t *testing.T) {
	ids := []string{"arxiv", "news", "web", "github", "reddit"}
	failures := map[string]llm.Completer{
		"call error":  replying("", errors.New("connection refused")),
		"unparseable": replying("I think arxiv is best", nil),
		"too few":     replying(`{"selected":["arxiv","news"]}`, nil),
		"none known":  replying(`{"selected":["scholar"]}`, nil),
	}
	exclusions := [][]string{nil, {"web"}, {"arxiv", "reddit"}, {"NEWS", "github", "arxiv", "web", "reddit"}}

	for name, c := range failures {
		for _, excluded := range exclusions {
			t.Run(name+"/"+strings.Join(excluded, ","), func(t *testing.T) {
				cat := testCatalog(t, ids...)
				d := New(c, nil).Select(context.Background(), "topic", cat, excluded, true)

				norm := types.NormalizeIDs(excluded)
				var want []string
				for _, id := range ids {
					if !contains(norm, id) {
						want = append(want, id)
					}
				}
				assert.Equal(t, want, d.Selected())
				assert.True(t, d.Fallback)
				assert.NotEmpty(t, d.FallbackReason)
				for _, id := range norm {
					assert.Equal(t, ReasonExcluded, d.Choices[id].Rationale)
				}
			})
		}
	}
}

func TestSelectDisabledSkipsModel(t *testing.T) {
	called := false
	c := llm.CompleterFunc(func(context.Context, llm.Prompt) (string, error) {
		called = true
		return "", nil
	})
	cat := testCatalog(t, "a", "b")
	d := New(c, nil).Select(context.Background(), "topic", cat, []string{"b"}, false)

	assert.False(t, called)
	assert.Equal(t, []string{"a"}, d.Selected())
	assert.Equal(t, ReasonDisabled, d.FallbackReason)
	assert.Equal(t, []string{"a", "b"}, d.Order)
}

func TestSelectFewCandidatesAcceptsSmallChoice(t *testing.T) {
	cat := testCatalog(t, "arxiv", "web")
	d := New(replying(`{"selected":["web"]}`, nil), nil).Select(context.Background(), "t", cat, nil, true)
	assert.False(t, d.Fallback)
	assert.Equal(t, []string{"web"}, d.Selected())
}

func TestSelectNeverSelectsExcluded(t *testing.T) {
	cat := testCatalog(t, "arxiv", "news", "web", "github")
	d := New(replying(`{"selected":["arxiv","news","web","github"]}`, nil), nil).
		Select(context.Background(), "t", cat, []string{"github"}, true)
	assert.Equal(t, []string{"arxiv", "news", "web"}, d.Selected())
	assert.Equal(t, ReasonExcluded, d.Choices["github"].Rationale)
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
