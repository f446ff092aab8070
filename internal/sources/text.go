// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/pdiddy/deep-research/pkg/types"
)

// stripHTML returns the text content of an HTML or JATS fragment with
// entities decoded and whitespace collapsed.
func stripHTML(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			// Tag boundaries separate words ("<p>a</p><p>b</p>" is "a b").
			b.WriteByte(' ')
		}
	}
}

// cleanText collapses whitespace and strips markup when present.
func cleanText(s string) string {
	if strings.ContainsAny(s, "<&") {
		return stripHTML(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	types.DateLayout,
	"2006-01",
	"2006",
}

// parseDate parses the date formats seen across providers. It returns the
// zero time when s is empty or unrecognized.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// yearDate returns January 1st of year, or zero for a non-positive year.
func yearDate(year int) time.Time {
	if year <= 0 {
		return time.Time{}
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// inRange reports whether t falls within the request's date bounds,
// comparing calendar days. Unknown dates are kept.
func inRange(t time.Time, req Request) bool {
	if t.IsZero() {
		return true
	}
	day := t.Format(types.DateLayout)
	if !req.DateFrom.IsZero() && day < req.DateFrom.Format(types.DateLayout) {
		return false
	}
	if !req.DateTo.IsZero() && day > req.DateTo.Format(types.DateLayout) {
		return false
	}
	return true
}

// doiURL returns a resolvable URL for a DOI that may already be a URL.
func doiURL(doi string) string {
	doi = strings.TrimSpace(doi)
	if doi == "" || strings.HasPrefix(doi, "http") {
		return doi
	}
	return "https://doi.org/" + doi
}

// bareDOI strips resolver prefixes and lowercases a DOI.
func bareDOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	for _, p := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, p)
	}
	return doi
}

// joinParts joins the non-empty parts with " | ", the separator used for
// descriptions synthesized from metadata.
func joinParts(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " | ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// excerpt truncates s to n runes without an ellipsis.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// capAuthors keeps at most n authors, dropping empty names.
func capAuthors(names []string, n int) []string {
	var out []string
	for _, a := range names {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
			if len(out) == n {
				break
			}
		}
	}
	return out
}

const maxAuthors = 10

// noAbstract is the placeholder used when a provider has no description.
const noAbstract = "No abstract available"
