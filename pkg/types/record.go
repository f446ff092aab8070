// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the deep-research pipeline:
// the research query, normalized result records, the per-stage decisions
// (source selection, relevance filtering), the synthesis output, the rendered
// report, and the process-wide settings.
package types

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used on the command line, in
// configuration, and in rendered reports.
const DateLayout = "2006-01-02"

// Metadata keys shared by source adapters and the report renderer.
const (
	MetaDOI         = "doi"
	MetaCitations   = "citations"
	MetaStars       = "stars"
	MetaForks       = "forks"
	MetaLanguage    = "language"
	MetaVenue       = "venue"
	MetaType        = "type"
	MetaAccess      = "access"
	MetaPoints      = "points"
	MetaComments    = "comments"
	MetaPublisher   = "publisher"
	MetaSubreddit   = "subreddit"
	MetaTopics      = "topics"
	MetaInterest    = "interest"
	MetaAlsoFoundIn = "also_found_in"
)

// ResultRecord is one discovered item normalized from a provider response.
// Records are produced by source adapters and merged only by the
// aggregator's deduplication step; every later stage treats them as
// read-only.
type ResultRecord struct {
	// Title is the paper, article, repository, or discussion title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the abstract, summary, or synthesized description.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Date is the publication or retrieval date. Zero when unknown.
	Date time.Time `json:"date,omitempty" yaml:"date,omitempty"`

	// Authors lists authors, owners, or posters in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// URL is the canonical link to the original resource.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Source is the catalog identifier of the adapter that produced the record.
	Source string `json:"source" yaml:"source"`

	// Metadata carries source-specific fields such as citation counts or
	// repository stars, keyed by the Meta* constants.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DateString returns the record date as YYYY-MM-DD, or "" when unknown.
func (r ResultRecord) DateString() string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.Format(DateLayout)
}

// Meta returns the metadata value for key, or "".
func (r ResultRecord) Meta(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}

// WithMeta returns a copy of r with key set to value. Empty values are
// ignored so adapters can set fields unconditionally.
func (r ResultRecord) WithMeta(key, value string) ResultRecord {
	value = strings.TrimSpace(value)
	if value == "" {
		return r
	}
	md := make(map[string]string, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		md[k] = v
	}
	md[key] = value
	r.Metadata = md
	return r
}
