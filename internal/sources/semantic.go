// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// semanticScholarAPIBase is the Semantic Scholar paper search endpoint.
var semanticScholarAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticScholarFields = "title,abstract,url,authors,year,publicationDate,externalIds,citationCount,venue"

// SemanticScholar queries the Semantic Scholar Graph API.
type SemanticScholar struct {
	get    *getter
	apiKey string
}

// NewSemanticScholar returns the Semantic Scholar source. Unauthenticated
// clients share a low rate limit, so calls are spaced one second apart.
func NewSemanticScholar(d Deps) *SemanticScholar {
	d = d.withDefaults()
	return &SemanticScholar{
		get:    newGetter(d, "Semantic Scholar", time.Second, 1),
		apiKey: d.Keys.SemanticScholarAPIKey,
	}
}

// Name returns the source identifier.
func (s *SemanticScholar) Name() string { return "semantic_scholar" }

type s2Response struct {
	Data []s2Paper `json:"data"`
}

type s2Paper struct {
	Title           string         `json:"title"`
	Abstract        *string        `json:"abstract"`
	URL             string         `json:"url"`
	Year            int            `json:"year"`
	PublicationDate string         `json:"publicationDate"`
	Venue           string         `json:"venue"`
	CitationCount   int            `json:"citationCount"`
	ExternalIDs     map[string]any `json:"externalIds"`
	Authors         []s2Author     `json:"authors"`
}

type s2Author struct {
	Name string `json:"name"`
}

// Search returns papers matching the query, restricted to the request's
// year range when a date bound is set.
func (s *SemanticScholar) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	params := url.Values{}
	params.Set("query", req.Query)
	params.Set("limit", strconv.Itoa(min(req.MaxResults, 100)))
	params.Set("fields", semanticScholarFields)
	if yr := yearRange(req, "-"); yr != "" {
		params.Set("year", yr)
	}

	var header http.Header
	if s.apiKey != "" {
		header = http.Header{"x-api-key": {s.apiKey}}
	}

	var resp s2Response
	if err := s.get.getJSON(ctx, semanticScholarAPIBase+"?"+params.Encode(), header, &resp); err != nil {
		return nil, err
	}

	var out []types.ResultRecord
	for _, p := range resp.Data {
		abstract := noAbstract
		if p.Abstract != nil && *p.Abstract != "" {
			abstract = cleanText(*p.Abstract)
		}
		doi := externalID(p.ExternalIDs, "DOI")
		arxivID := externalID(p.ExternalIDs, "ArXiv")

		link := p.URL
		if link == "" && doi != "" {
			link = doiURL(doi)
		}
		if link == "" && arxivID != "" {
			link = "https://arxiv.org/abs/" + arxivID
		}

		date := parseDate(p.PublicationDate)
		if date.IsZero() {
			date = yearDate(p.Year)
		}

		r := types.ResultRecord{
			Title:    p.Title,
			Abstract: abstract,
			Date:     date,
			URL:      link,
		}
		for _, a := range p.Authors {
			r.Authors = append(r.Authors, a.Name)
		}
		r.Authors = capAuthors(r.Authors, maxAuthors)
		r = r.WithMeta(types.MetaDOI, doi).WithMeta(types.MetaVenue, p.Venue)
		if p.CitationCount > 0 {
			r = r.WithMeta(types.MetaCitations, strconv.Itoa(p.CitationCount))
		}
		out = append(out, r)
	}
	return out, nil
}

// externalID returns a string identifier from an externalIds object, whose
// values may be strings or numbers depending on the key.
func externalID(ids map[string]any, key string) string {
	switch v := ids[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// yearRange renders the request's date bounds as "from<sep>to" years, or ""
// when unbounded.
func yearRange(req Request, sep string) string {
	if req.DateFrom.IsZero() && req.DateTo.IsZero() {
		return ""
	}
	from, to := "", ""
	if !req.DateFrom.IsZero() {
		from = strconv.Itoa(req.DateFrom.Year())
	}
	if !req.DateTo.IsZero() {
		to = strconv.Itoa(req.DateTo.Year())
	}
	return fmt.Sprintf("%s%s%s", from, sep, to)
}
