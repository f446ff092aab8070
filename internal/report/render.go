// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders a research run as a Markdown document and writes
// it, with an optional YAML run manifest, to the output directory.
package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

const (
	abstractExcerpt = 500
	shownAuthors    = 3
	autoNamePrefix  = "research_report_"
	autoNameLayout  = "20060102_150405"
	generatedLayout = "2006-01-02 15:04:05 MST"
	missingURL      = "n/a"
)

// Labeler maps a source identifier to its report heading.
// *sources.Catalog satisfies it.
type Labeler interface {
	Label(id string) string
}

// Input is everything a report is rendered from.
type Input struct {
	Query     types.ResearchQuery
	Selection types.SelectionDecision
	Records   []types.ResultRecord
	Synthesis types.SynthesisResult

	// Model names the language model in the parameters and footer.
	Model string

	GeneratedAt time.Time

	// Labels supplies source headings. Nil title-cases identifiers.
	Labels Labeler

	// Filename overrides the timestamp-derived file name.
	Filename string
}

// Render formats in as a Markdown report. It is pure: equal inputs give
// byte-identical documents.
func Render(in Input) types.ReportDocument {
	var b strings.Builder
	label := labelFunc(in.Labels)

	fmt.Fprintf(&b, "# Research Report: %s\n\n", in.Query.Topic)
	writeParameters(&b, in, label)
	writeSelection(&b, in.Selection, label)

	b.WriteString("## Executive Summary\n\n")
	b.WriteString(strings.TrimSpace(in.Synthesis.Summary))
	b.WriteString("\n\n")

	if len(in.Synthesis.Insights) > 0 {
		b.WriteString("## Key Insights\n\n")
		for i, insight := range in.Synthesis.Insights {
			fmt.Fprintf(&b, "%d. %s\n", i+1, insight)
		}
		b.WriteString("\n")
	}

	if len(in.Records) > 0 {
		b.WriteString("## Sources\n\n")
		for _, g := range groupBySource(in.Records, in.Selection.Order) {
			fmt.Fprintf(&b, "### %s (%d found)\n\n", label(g.source), len(g.records))
			for i, r := range g.records {
				writeRecord(&b, i+1, r)
			}
		}
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "*Report generated by deep-research using %s via Ollama.*\n", modelName(in.Model))

	doc := types.ReportDocument{Filename: in.Filename, Markdown: b.String()}
	if doc.Filename == "" {
		doc.Filename = AutoName(in.GeneratedAt)
		doc.AutoNamed = true
	}
	return doc
}

// AutoName returns the timestamped report file name for t.
func AutoName(t time.Time) string {
	return autoNamePrefix + t.Format(autoNameLayout) + ".md"
}

func writeParameters(b *strings.Builder, in Input, label func(string) string) {
	b.WriteString("## Research Parameters\n\n")
	fmt.Fprintf(b, "- **Topic**: %s\n", in.Query.Topic)
	if in.Query.SearchQuery != "" && in.Query.SearchQuery != in.Query.Topic {
		fmt.Fprintf(b, "- **Search Query**: %s\n", in.Query.SearchQuery)
	}
	fmt.Fprintf(b, "- **Generated**: %s\n", in.GeneratedAt.Format(generatedLayout))
	fmt.Fprintf(b, "- **Model**: %s\n", modelName(in.Model))
	fmt.Fprintf(b, "- **Date Range**: %s\n", in.Query.DateRange())
	fmt.Fprintf(b, "- **Max Results per Source**: %d\n", in.Query.MaxResults)
	if sel := in.Selection.Selected(); len(sel) > 0 {
		fmt.Fprintf(b, "- **Sources Queried**: %s\n", strings.Join(lo.Map(sel, func(id string, _ int) string {
			return label(id)
		}), ", "))
	}
	fmt.Fprintf(b, "- **Results Analyzed**: %d\n\n", len(in.Records))
}

func writeSelection(b *strings.Builder, d types.SelectionDecision, label func(string) string) {
	if len(d.Order) == 0 {
		return
	}
	b.WriteString("## Source Selection\n\n")
	if d.Fallback {
		fmt.Fprintf(b, "All available sources were queried (%s).\n\n", tableCell(d.FallbackReason))
	}
	b.WriteString("| Source | Selected | Rationale |\n|---|---|---|\n")
	for _, id := range d.Order {
		c := d.Choices[id]
		fmt.Fprintf(b, "| %s | %s | %s |\n", label(id), yesNo(c.Selected), tableCell(c.Rationale))
	}
	b.WriteString("\n")
}

func writeRecord(b *strings.Builder, n int, r types.ResultRecord) {
	fmt.Fprintf(b, "#### %d. %s\n\n", n, r.Title)
	if len(r.Authors) > 0 {
		fmt.Fprintf(b, "- **Authors**: %s\n", formatAuthors(r.Authors))
	}
	if d := r.DateString(); d != "" {
		fmt.Fprintf(b, "- **Published**: %s\n", d)
	}
	fmt.Fprintf(b, "- **Source**: %s\n", r.Source)
	url := r.URL
	if url == "" {
		url = missingURL
	}
	fmt.Fprintf(b, "- **URL**: %s\n", url)
	for _, k := range sortedKeys(r.Metadata) {
		fmt.Fprintf(b, "- **%s**: %s\n", metaLabel(k), r.Metadata[k])
	}
	if abs := strings.TrimSpace(r.Abstract); abs != "" {
		fmt.Fprintf(b, "\n> %s\n", llm.Snippet(strings.Join(strings.Fields(abs), " "), abstractExcerpt))
	}
	b.WriteString("\n")
}

type sourceGroup struct {
	source  string
	records []types.ResultRecord
}

// groupBySource groups records by source, ordering groups by the selection
// order first and then by first appearance. Record order within a group is
// the input order.
func groupBySource(recs []types.ResultRecord, order []string) []sourceGroup {
	bySource := lo.GroupBy(recs, func(r types.ResultRecord) string { return r.Source })
	seen := make(map[string]bool, len(bySource))
	var groups []sourceGroup
	add := func(id string) {
		if seen[id] || len(bySource[id]) == 0 {
			return
		}
		seen[id] = true
		groups = append(groups, sourceGroup{source: id, records: bySource[id]})
	}
	for _, id := range order {
		add(id)
	}
	for _, r := range recs {
		add(r.Source)
	}
	return groups
}

func formatAuthors(authors []string) string {
	if len(authors) <= shownAuthors {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:shownAuthors], ", ") + " et al."
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}

// metaLabel turns a metadata key into a bold list label: "also_found_in"
// becomes "Also found in".
func metaLabel(key string) string {
	if key == types.MetaDOI {
		return "DOI"
	}
	s := strings.ReplaceAll(key, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func labelFunc(l Labeler) func(string) string {
	if l != nil {
		return l.Label
	}
	return func(id string) string {
		parts := strings.Split(id, "_")
		for i, p := range parts {
			if p != "" {
				parts[i] = strings.ToUpper(p[:1]) + p[1:]
			}
		}
		return strings.Join(parts, "_")
	}
}

func modelName(m string) string {
	if m == "" {
		return "an unnamed model"
	}
	return m
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func tableCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
