// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// coreAPIBase is the CORE v3 works search endpoint.
var coreAPIBase = "https://api.core.ac.uk/v3/search/works/"

// Core queries the CORE open access aggregator.
type Core struct {
	get    *getter
	apiKey string
}

// NewCore returns the CORE source. Anonymous clients are limited to ten
// requests per minute.
func NewCore(d Deps) *Core {
	d = d.withDefaults()
	return &Core{
		get:    newGetter(d, "CORE", 6*time.Second, 1),
		apiKey: d.Keys.CoreAPIKey,
	}
}

// Name returns the source identifier.
func (c *Core) Name() string { return "core" }

type coreResponse struct {
	Results []coreWork `json:"results"`
}

type coreWork struct {
	ID            json.Number       `json:"id"`
	Title         string            `json:"title"`
	Abstract      string            `json:"abstract"`
	DOI           string            `json:"doi"`
	DownloadURL   string            `json:"downloadUrl"`
	PublishedDate string            `json:"publishedDate"`
	YearPublished int               `json:"yearPublished"`
	DocumentType  string            `json:"documentType"`
	CitationCount int               `json:"citationCount"`
	Authors       []json.RawMessage `json:"authors"`
	DataProviders []struct {
		Name string `json:"name"`
	} `json:"dataProviders"`
}

// Search returns open access works matching the query.
func (c *Core) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	q := req.Query
	if !req.DateFrom.IsZero() || !req.DateTo.IsZero() {
		from, to := 1900, 2100
		if !req.DateFrom.IsZero() {
			from = req.DateFrom.Year()
		}
		if !req.DateTo.IsZero() {
			to = req.DateTo.Year()
		}
		if from == to {
			q += fmt.Sprintf(" AND yearPublished:%d", from)
		} else {
			q += fmt.Sprintf(" AND yearPublished>=%d AND yearPublished<=%d", from, to)
		}
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", strconv.Itoa(min(req.MaxResults, 100)))

	var header http.Header
	if c.apiKey != "" {
		header = http.Header{"Authorization": {"Bearer " + c.apiKey}}
	}

	var resp coreResponse
	if err := c.get.getJSON(ctx, coreAPIBase+"?"+params.Encode(), header, &resp); err != nil {
		return nil, err
	}

	var out []types.ResultRecord
	for _, w := range resp.Results {
		abstract := cleanText(w.Abstract)
		provider := ""
		if len(w.DataProviders) > 0 {
			provider = w.DataProviders[0].Name
		}
		if abstract == "" {
			abstract = joinParts(
				prefixed("Type: ", w.DocumentType),
				prefixed("Repository: ", provider),
				prefixed("Citations: ", countString(w.CitationCount)),
			)
		}
		if abstract == "" {
			abstract = noAbstract
		}

		date := parseDate(w.PublishedDate)
		if date.IsZero() {
			date = yearDate(w.YearPublished)
		}

		link := firstNonEmpty(doiURL(w.DOI), w.DownloadURL)
		if link == "" && w.ID.String() != "" {
			link = "https://core.ac.uk/works/" + w.ID.String()
		}

		r := types.ResultRecord{
			Title:    w.Title,
			Abstract: abstract,
			Date:     date,
			URL:      link,
			Authors:  capAuthors(coreAuthors(w.Authors), maxAuthors),
		}
		r = r.WithMeta(types.MetaDOI, bareDOI(w.DOI)).
			WithMeta(types.MetaType, w.DocumentType).
			WithMeta(types.MetaVenue, provider).
			WithMeta(types.MetaCitations, countString(w.CitationCount))
		out = append(out, r)
	}
	return out, nil
}

// coreAuthors accepts both {"name": "..."} objects and bare strings.
func coreAuthors(raw []json.RawMessage) []string {
	var names []string
	for _, m := range raw {
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(m, &obj); err == nil && obj.Name != "" {
			names = append(names, obj.Name)
			continue
		}
		var s string
		if err := json.Unmarshal(m, &s); err == nil {
			names = append(names, s)
		}
	}
	return names
}
