// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/deep-research/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// Arxiv queries the arXiv Atom API.
type Arxiv struct {
	get    *getter
	parser *gofeed.Parser
}

// NewArxiv returns the arXiv source. arXiv asks clients to wait three
// seconds between calls.
func NewArxiv(d Deps) *Arxiv {
	return &Arxiv{
		get:    newGetter(d.withDefaults(), "arXiv", 3*time.Second, 1),
		parser: gofeed.NewParser(),
	}
}

// Name returns the source identifier.
func (a *Arxiv) Name() string { return "arxiv" }

// Search returns the newest submissions matching the query.
func (a *Arxiv) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	params := url.Values{}
	params.Set("search_query", buildArxivQuery(req))
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprint(min(req.MaxResults, 100)))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	body, err := a.get.fetch(ctx, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	feed, err := a.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing arXiv feed: %w", err)
	}

	var out []types.ResultRecord
	for _, item := range feed.Items {
		r := types.ResultRecord{
			Title:    item.Title,
			Abstract: cleanText(firstNonEmpty(item.Description, item.Content)),
			URL:      firstNonEmpty(item.Link, item.GUID),
		}
		if item.PublishedParsed != nil {
			r.Date = item.PublishedParsed.UTC()
		}
		if !inRange(r.Date, req) {
			continue
		}
		for _, p := range item.Authors {
			if p != nil {
				r.Authors = append(r.Authors, p.Name)
			}
		}
		r.Authors = capAuthors(r.Authors, maxAuthors)
		r = r.WithMeta(types.MetaDOI, arxivExtension(item, "doi")).
			WithMeta(types.MetaVenue, arxivExtension(item, "journal_ref"))
		out = append(out, r)
	}
	return out, nil
}

// buildArxivQuery constructs the search_query parameter. Date bounds are
// pushed to the API as a submittedDate range.
func buildArxivQuery(req Request) string {
	terms := strings.Fields(req.Query)
	for i, t := range terms {
		terms[i] = "all:" + t
	}
	q := strings.Join(terms, " AND ")
	if !req.DateFrom.IsZero() || !req.DateTo.IsZero() {
		from, to := "000001010000", "999912312359"
		if !req.DateFrom.IsZero() {
			from = req.DateFrom.Format("20060102") + "0000"
		}
		if !req.DateTo.IsZero() {
			to = req.DateTo.Format("20060102") + "2359"
		}
		q += fmt.Sprintf(" AND submittedDate:[%s TO %s]", from, to)
	}
	return q
}

// arxivExtension reads an arxiv: namespaced element such as arxiv:doi.
func arxivExtension(item *gofeed.Item, name string) string {
	if item.Extensions == nil {
		return ""
	}
	for _, ext := range item.Extensions["arxiv"][name] {
		if v := strings.TrimSpace(ext.Value); v != "" {
			return v
		}
	}
	return ""
}
