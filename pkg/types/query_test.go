// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNewResearchQuery(t *testing.T) {
	tests := []struct {
		name    string
		params  QueryParams
		wantErr bool
	}{
		{"valid", QueryParams{Topic: "quantum error correction", MaxResults: 10}, false},
		{"empty topic", QueryParams{Topic: "   ", MaxResults: 10}, true},
		{"zero max results", QueryParams{Topic: "x", MaxResults: 0}, true},
		{"max results too large", QueryParams{Topic: "x", MaxResults: 101}, true},
		{"upper bound", QueryParams{Topic: "x", MaxResults: 100}, false},
		{"inverted dates", QueryParams{Topic: "x", MaxResults: 5, DateFrom: date("2025-01-02"), DateTo: date("2025-01-01")}, true},
		{"equal dates", QueryParams{Topic: "x", MaxResults: 5, DateFrom: date("2025-01-01"), DateTo: date("2025-01-01")}, false},
		{"open upper bound", QueryParams{Topic: "x", MaxResults: 5, DateFrom: date("2025-01-01")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResearchQuery(tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewResearchQueryNormalizes(t *testing.T) {
	q, err := NewResearchQuery(QueryParams{
		Topic:      "  llm   agents ",
		MaxResults: 3,
		Excluded:   []string{"Reddit, github", "reddit", ""},
	})
	require.NoError(t, err)

	assert.Equal(t, "llm agents", q.Topic)
	assert.Equal(t, []string{"github", "reddit"}, q.Excluded)
	assert.True(t, q.IsExcluded("REDDIT"))
	assert.False(t, q.IsExcluded("arxiv"))
}

func TestEffectiveQuery(t *testing.T) {
	q, err := NewResearchQuery(QueryParams{Topic: "rust async", MaxResults: 1})
	require.NoError(t, err)
	assert.Equal(t, "rust async", q.EffectiveQuery())

	rewritten := q.WithSearchQuery(" rust async runtime tokio ")
	assert.Equal(t, "rust async runtime tokio", rewritten.EffectiveQuery())
	assert.Equal(t, "", q.SearchQuery, "original query must not change")
}

func TestDateRange(t *testing.T) {
	q := ResearchQuery{DateFrom: date("2024-01-01")}
	assert.Equal(t, "2024-01-01 to any", q.DateRange())
	assert.Equal(t, "any to any", ResearchQuery{}.DateRange())
}

func TestSelectionDecisionSelected(t *testing.T) {
	d := SelectionDecision{
		Order: []string{"arxiv", "web", "news"},
		Choices: map[string]SourceChoice{
			"arxiv": {Selected: true},
			"web":   {Selected: false, Rationale: "excluded"},
			"news":  {Selected: true},
		},
	}
	assert.Equal(t, []string{"arxiv", "news"}, d.Selected())
	assert.False(t, d.IsSelected("web"))
	assert.False(t, d.IsSelected("unknown"))
}

func TestRecordWithMeta(t *testing.T) {
	r := ResultRecord{Title: "t"}
	r2 := r.WithMeta(MetaStars, "42").WithMeta(MetaForks, "  ")

	assert.Nil(t, r.Metadata)
	assert.Equal(t, "42", r2.Meta(MetaStars))
	assert.Equal(t, "", r2.Meta(MetaForks))
	assert.Equal(t, "", ResultRecord{}.DateString())
	assert.Equal(t, "2024-03-05", ResultRecord{Date: date("2024-03-05")}.DateString())
}
