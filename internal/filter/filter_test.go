// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

func records(titles ...string) []types.ResultRecord {
	var out []types.ResultRecord
	for _, t := range titles {
		out = append(out, types.ResultRecord{Title: t, Abstract: "abstract of " + t, Source: "arxiv"})
	}
	return out
}

func titlesOf(recs []types.ResultRecord) []string {
	var out []string
	for _, r := range recs {
		out = append(out, r.Title)
	}
	return out
}

// byTitle answers single-record prompts based on the title in the prompt.
func byTitle(answers map[string]string) llm.Completer {
	return llm.CompleterFunc(func(_ context.Context, p llm.Prompt) (string, error) {
		for title, answer := range answers {
			if strings.Contains(p.Text, "Title: "+title+"\n") {
				return answer, nil
			}
		}
		return "", errors.New("unexpected prompt")
	})
}

func TestApplyDisabledReturnsInputUnchanged(t *testing.T) {
	called := false
	c := llm.CompleterFunc(func(context.Context, llm.Prompt) (string, error) {
		called = true
		return `{"relevant": false}`, nil
	})
	in := records("a", "b", "c")

	kept, ds := New(c, Options{}, nil).Apply(context.Background(), "topic", in, false)

	assert.False(t, called)
	assert.Equal(t, in, kept)
	require.Len(t, ds, 3)
	for i, d := range ds {
		assert.Equal(t, i, d.Index)
		assert.True(t, d.Keep)
		assert.True(t, d.Fallback)
		assert.Equal(t, reasonDisabled, d.Reason)
	}
}

func TestApplyPerRecord(t *testing.T) {
	c := byTitle(map[string]string{
		"Kubernetes autoscaling": `{"relevant": true, "reason": "on topic"}`,
		"Star formation":         "```json\n{\"relevant\": false, \"reason\": \"astronomy\"}\n```",
		"Cluster ops":            "Yes, this is relevant (true).",
		"Protein folding":        "Not relevant to the topic.",
	})
	in := records("Kubernetes autoscaling", "Star formation", "Cluster ops", "Protein folding")

	kept, ds := New(c, Options{Concurrency: 4}, zaptest.NewLogger(t)).Apply(context.Background(), "k8s", in, true)

	assert.Equal(t, []string{"Kubernetes autoscaling", "Cluster ops"}, titlesOf(kept))
	assert.Equal(t, "on topic", ds[0].Reason)
	assert.False(t, ds[0].Fallback)
	assert.Equal(t, "astronomy", ds[1].Reason)
	assert.False(t, ds[1].Keep)
	assert.Equal(t, reasonKeyword, ds[2].Reason)
	assert.True(t, ds[2].Keep)
	assert.False(t, ds[3].Keep)
}

func TestApplyKeepsOnCallFailure(t *testing.T) {
	c := llm.CompleterFunc(func(context.Context, llm.Prompt) (string, error) {
		return "", errors.New("connection refused")
	})
	in := records("a", "b")
	kept, ds := New(c, Options{}, nil).Apply(context.Background(), "topic", in, true)

	assert.Equal(t, in, kept)
	for _, d := range ds {
		assert.True(t, d.Keep)
		assert.True(t, d.Fallback)
		assert.Contains(t, d.Reason, "connection refused")
	}
}

func TestApplyPromptContents(t *testing.T) {
	var mu sync.Mutex
	var prompts []llm.Prompt
	c := llm.CompleterFunc(func(_ context.Context, p llm.Prompt) (string, error) {
		mu.Lock()
		prompts = append(prompts, p)
		mu.Unlock()
		return `{"relevant": true, "reason": "ok"}`, nil
	})
	in := []types.ResultRecord{{Title: "Long", Abstract: strings.Repeat("x", 2000), Source: "web"}}

	New(c, Options{}, nil).Apply(context.Background(), "edge computing", in, true)

	require.Len(t, prompts, 1)
	p := prompts[0]
	assert.Equal(t, llm.PurposeFilter, p.Purpose)
	assert.Equal(t, 200, p.MaxTokens)
	assert.InDelta(t, 0.1, p.Temperature, 1e-9)
	assert.Contains(t, p.Text, "Research Topic: edge computing")
	assert.Contains(t, p.Text, "Source: web")
	assert.NotContains(t, p.Text, strings.Repeat("x", abstractLimit+1))
}

func TestApplyBatched(t *testing.T) {
	var calls int
	var mu sync.Mutex
	c := llm.CompleterFunc(func(_ context.Context, p llm.Prompt) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		switch {
		case strings.Contains(p.Text, "Title: r0\n"):
			// r2 is missing from the reply; an out-of-range index is ignored.
			return `{"decisions":[{"index":0,"relevant":true,"reason":"yes"},{"index":1,"relevant":false,"reason":"no"},{"index":7,"relevant":false}]}`, nil
		default:
			return "", errors.New("timeout")
		}
	})
	in := records("r0", "r1", "r2", "r3", "r4")

	kept, ds := New(c, Options{BatchSize: 3}, nil).Apply(context.Background(), "t", in, true)

	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"r0", "r2", "r3", "r4"}, titlesOf(kept))
	assert.Equal(t, reasonMissing, ds[2].Reason)
	assert.True(t, ds[2].Fallback)
	assert.False(t, ds[1].Keep)
	assert.Contains(t, ds[3].Reason, "timeout")
}

func TestApplyBatchedUnparseableKeepsAll(t *testing.T) {
	c := llm.CompleterFunc(func(context.Context, llm.Prompt) (string, error) {
		return "all of them are fine", nil
	})
	in := records("a", "b")
	kept, ds := New(c, Options{BatchSize: 5}, nil).Apply(context.Background(), "t", in, true)
	assert.Equal(t, in, kept)
	for _, d := range ds {
		assert.True(t, d.Fallback)
		assert.Equal(t, "unparseable reply", d.Reason)
	}
}

func TestApplyPreservesInputOrder(t *testing.T) {
	answers := map[string]string{}
	var titles []string
	for i := 0; i < 20; i++ {
		title := fmt.Sprintf("record %02d", i)
		titles = append(titles, title)
		answers[title] = fmt.Sprintf(`{"relevant": %t}`, i%3 != 0)
	}
	kept, _ := New(byTitle(answers), Options{Concurrency: 8}, nil).Apply(context.Background(), "t", records(titles...), true)

	var want []string
	for i, title := range titles {
		if i%3 != 0 {
			want = append(want, title)
		}
	}
	assert.Equal(t, want, titlesOf(kept))
}

func TestKeywordVerdict(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{`relevant: true`, true},
		{`"relevant": false`, false},
		{"This is irrelevant.", false},
		{"Hmm, hard to say.", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keywordVerdict(tt.text), tt.text)
	}
}

func TestParseVerdict(t *testing.T) {
	base := types.FilterDecision{Index: 4, Keep: true, Fallback: true}
	tests := []struct {
		name     string
		reply    string
		keep     bool
		fallback bool
		reason   string
	}{
		{"json verdict", `{"relevant": false, "reason": "off topic"}`, false, false, "off topic"},
		{"json without reason", `{"relevant": true}`, true, false, "no reason provided"},
		{"json missing relevant", `{"reason": "unsure"}`, true, true, reasonKeyword},
		{"prose rejection", "Not relevant at all.", false, true, reasonKeyword},
		{"prose acceptance", "Probably fine.", true, true, reasonKeyword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseVerdict(base)(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, 4, d.Index)
			assert.Equal(t, tt.keep, d.Keep)
			assert.Equal(t, tt.fallback, d.Fallback)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}
