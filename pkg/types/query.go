// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Bounds on the per-source result limit.
const (
	MinResultsPerSource = 1
	MaxResultsPerSource = 100
)

// ErrInvalidQuery is wrapped by every validation failure from NewResearchQuery.
var ErrInvalidQuery = errors.New("invalid research query")

// QueryParams is the raw input used to build a ResearchQuery.
type QueryParams struct {
	Topic           string
	DateFrom        time.Time
	DateTo          time.Time
	MaxResults      int
	Excluded        []string
	SelectSources   bool
	FilterRelevance bool
}

// ResearchQuery is the validated input of one research run. It is a value
// type: methods that change it return a modified copy.
type ResearchQuery struct {
	// Topic is the user's research topic. Never empty.
	Topic string `json:"topic" yaml:"topic"`

	// SearchQuery is the rewritten query sent to sources, when query
	// rewriting produced one.
	SearchQuery string `json:"search_query,omitempty" yaml:"search_query,omitempty"`

	// DateFrom and DateTo bound publication dates. Zero means unbounded.
	DateFrom time.Time `json:"date_from,omitempty" yaml:"date_from,omitempty"`
	DateTo   time.Time `json:"date_to,omitempty" yaml:"date_to,omitempty"`

	// MaxResults is the per-source result limit (1 to 100).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// Excluded lists source identifiers that must never be queried.
	// Lowercase, sorted, without duplicates.
	Excluded []string `json:"excluded,omitempty" yaml:"excluded,omitempty"`

	// SelectSources enables model-driven source selection.
	SelectSources bool `json:"select_sources" yaml:"select_sources"`

	// FilterRelevance enables the model-driven relevance filter.
	FilterRelevance bool `json:"filter_relevance" yaml:"filter_relevance"`
}

// NewResearchQuery validates p and returns the resulting query.
func NewResearchQuery(p QueryParams) (ResearchQuery, error) {
	topic := strings.Join(strings.Fields(p.Topic), " ")
	if topic == "" {
		return ResearchQuery{}, fmt.Errorf("%w: topic is empty", ErrInvalidQuery)
	}
	if p.MaxResults < MinResultsPerSource || p.MaxResults > MaxResultsPerSource {
		return ResearchQuery{}, fmt.Errorf("%w: max results %d outside %d..%d",
			ErrInvalidQuery, p.MaxResults, MinResultsPerSource, MaxResultsPerSource)
	}
	if !p.DateFrom.IsZero() && !p.DateTo.IsZero() && p.DateFrom.After(p.DateTo) {
		return ResearchQuery{}, fmt.Errorf("%w: date-from %s is after date-to %s",
			ErrInvalidQuery, p.DateFrom.Format(DateLayout), p.DateTo.Format(DateLayout))
	}

	return ResearchQuery{
		Topic:           topic,
		DateFrom:        p.DateFrom,
		DateTo:          p.DateTo,
		MaxResults:      p.MaxResults,
		Excluded:        NormalizeIDs(p.Excluded),
		SelectSources:   p.SelectSources,
		FilterRelevance: p.FilterRelevance,
	}, nil
}

// EffectiveQuery returns the rewritten search query when present, otherwise the topic.
func (q ResearchQuery) EffectiveQuery() string {
	if q.SearchQuery != "" {
		return q.SearchQuery
	}
	return q.Topic
}

// WithSearchQuery returns a copy of q carrying the rewritten search query.
func (q ResearchQuery) WithSearchQuery(s string) ResearchQuery {
	q.SearchQuery = strings.TrimSpace(s)
	q.Excluded = append([]string(nil), q.Excluded...)
	return q
}

// IsExcluded reports whether the source id was excluded by the user.
func (q ResearchQuery) IsExcluded(id string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	i := sort.SearchStrings(q.Excluded, id)
	return i < len(q.Excluded) && q.Excluded[i] == id
}

// DateRange renders the date bounds for display, e.g. "2024-01-01 to any".
func (q ResearchQuery) DateRange() string {
	from, to := "any", "any"
	if !q.DateFrom.IsZero() {
		from = q.DateFrom.Format(DateLayout)
	}
	if !q.DateTo.IsZero() {
		to = q.DateTo.Format(DateLayout)
	}
	return from + " to " + to
}

// NormalizeIDs lowercases, trims, deduplicates, and sorts source identifiers.
// Comma-separated entries are split.
func NormalizeIDs(ids []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range ids {
		for _, id := range strings.Split(raw, ",") {
			id = strings.ToLower(strings.TrimSpace(id))
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
