// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesize

import (
	"regexp"
	"strings"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

const (
	minInsightLen         = 10
	minFallbackInsightLen = 20
	maxHeaderLen          = 40
	fallbackSummaryLen    = 800
)

type section int

const (
	sectionNone section = iota
	sectionSummary
	sectionInsights
)

// Parse extracts the summary and insights from a free-text model reply.
// Section headings ("Executive Summary", "Key Insights", "Notable
// Findings") switch sections; bullets and numbering are stripped from
// insights. A reply without headings falls back to treating the first
// paragraph as the summary and bullet-like lines after it as insights.
// At most maxInsights insights are kept.
func Parse(text string, maxInsights int) types.SynthesisResult {
	var summary, insights []string
	current := sectionNone

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if s, ok := heading(line, current); ok {
			current = s
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch current {
		case sectionSummary:
			summary = append(summary, stripMarkup(line))
		case sectionInsights:
			if c := stripBullet(line); len(c) > minInsightLen {
				insights = append(insights, c)
			}
		}
	}

	if len(summary) == 0 && len(insights) == 0 {
		summary, insights = paragraphFallback(text)
	}

	res := types.SynthesisResult{Summary: strings.Join(summary, " ")}
	if res.Summary == "" {
		res.Summary = llm.Snippet(text, fallbackSummaryLen)
	}
	if maxInsights > 0 && len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	res.Insights = insights
	return res
}

// headingPhrases maps the section names a reply may use to the section
// they open.
var headingPhrases = map[string]section{
	"executive summary": sectionSummary,
	"summary":           sectionSummary,
	"key insights":      sectionInsights,
	"insights":          sectionInsights,
	"key findings":      sectionInsights,
	"notable findings":  sectionInsights,
}

// heading reports whether line is a section heading and which section it
// opens. A line that is exactly a section name is a heading. A line that
// only contains one counts when it is marked up as a heading ("#" prefix,
// bold, or a trailing colon). List items inside the insights section are
// always content.
func heading(line string, current section) (section, bool) {
	listed := listMarker.MatchString(line)
	if listed && current == sectionInsights {
		return sectionNone, false
	}

	h := strings.TrimSpace(strings.TrimLeft(line, "#"))
	marked := h != line
	h = listMarker.ReplaceAllString(h, "")
	colon := strings.HasSuffix(h, ":")
	h = strings.TrimSuffix(h, ":")
	bare := stripMarkup(h)
	bold := bare != strings.TrimSpace(h)
	if strings.HasSuffix(bare, ":") {
		colon = true
		bare = strings.TrimSuffix(bare, ":")
	}
	h = strings.ToLower(strings.TrimSpace(bare))
	if h == "" || len(h) > maxHeaderLen {
		return sectionNone, false
	}

	if s, ok := headingPhrases[h]; ok {
		return s, true
	}
	if !marked && !bold && !colon {
		return sectionNone, false
	}
	switch {
	case strings.Contains(h, "summary"):
		return sectionSummary, true
	case strings.Contains(h, "insights"), strings.Contains(h, "findings"):
		return sectionInsights, true
	}
	return sectionNone, false
}

func paragraphFallback(text string) (summary, insights []string) {
	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	if len(paras) == 0 {
		return nil, nil
	}
	summary = []string{strings.Join(strings.Fields(paras[0]), " ")}
	for _, p := range paras[1:] {
		for _, line := range strings.Split(p, "\n") {
			if c := stripBullet(line); len(c) > minFallbackInsightLen {
				insights = append(insights, c)
			}
		}
	}
	return summary, insights
}

var listMarker = regexp.MustCompile(`^(?:[•*\-]\s+|\d{1,3}[.)]\s+)+`)

// stripBullet removes list markers and numbering ("- ", "* ", "• ",
// "3. ") and surrounding emphasis.
func stripBullet(line string) string {
	return stripMarkup(listMarker.ReplaceAllString(strings.TrimSpace(line), ""))
}

// stripMarkup trims Markdown bold/italic markers wrapping a line.
func stripMarkup(s string) string {
	s = strings.TrimSpace(s)
	for _, m := range []string{"**", "__"} {
		if strings.HasPrefix(s, m) && strings.HasSuffix(s, m) && len(s) > 2*len(m) {
			s = strings.TrimSpace(s[len(m) : len(s)-len(m)])
		}
	}
	return s
}
