// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint.
var openAlexAPIBase = "https://api.openalex.org/works"

// defaultPoliteEmail joins the OpenAlex and Crossref polite pools when no
// contact address is configured.
const defaultPoliteEmail = "research@example.org"

// OpenAlex queries the OpenAlex works index.
type OpenAlex struct {
	get    *getter
	mailto string
}

// NewOpenAlex returns the OpenAlex source.
func NewOpenAlex(d Deps) *OpenAlex {
	d = d.withDefaults()
	return &OpenAlex{
		get:    newGetter(d, "OpenAlex", 100*time.Millisecond, 5),
		mailto: firstNonEmpty(d.Keys.OpenAlexMailto, d.Keys.CrossrefMailto, defaultPoliteEmail),
	}
}

// Name returns the source identifier.
func (o *OpenAlex) Name() string { return "openalex" }

type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string           `json:"id"`
	DOI                   string           `json:"doi"`
	Title                 string           `json:"title"`
	PublicationDate       string           `json:"publication_date"`
	PublicationYear       int              `json:"publication_year"`
	CitedByCount          int              `json:"cited_by_count"`
	Type                  string           `json:"type"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	Authorships           []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PrimaryLocation *struct {
		Source *struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	OpenAccess struct {
		IsOA bool `json:"is_oa"`
	} `json:"open_access"`
}

// Search returns the newest works matching the query.
func (o *OpenAlex) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	params := url.Values{}
	params.Set("search", req.Query)
	params.Set("per-page", strconv.Itoa(min(req.MaxResults, 100)))
	params.Set("sort", "publication_date:desc")
	params.Set("mailto", o.mailto)

	var filters []string
	if !req.DateFrom.IsZero() {
		filters = append(filters, "from_publication_date:"+req.DateFrom.Format(types.DateLayout))
	}
	if !req.DateTo.IsZero() {
		filters = append(filters, "to_publication_date:"+req.DateTo.Format(types.DateLayout))
	}
	if len(filters) > 0 {
		params.Set("filter", strings.Join(filters, ","))
	}

	var resp openAlexResponse
	if err := o.get.getJSON(ctx, openAlexAPIBase+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	var out []types.ResultRecord
	for _, w := range resp.Results {
		abstract := invertedAbstract(w.AbstractInvertedIndex)
		if abstract == "" {
			abstract = noAbstract
		}
		date := parseDate(w.PublicationDate)
		if date.IsZero() {
			date = yearDate(w.PublicationYear)
		}

		r := types.ResultRecord{
			Title:    w.Title,
			Abstract: abstract,
			Date:     date,
			URL:      firstNonEmpty(w.DOI, w.ID),
		}
		for _, a := range w.Authorships {
			r.Authors = append(r.Authors, a.Author.DisplayName)
		}
		r.Authors = capAuthors(r.Authors, maxAuthors)

		r = r.WithMeta(types.MetaDOI, bareDOI(w.DOI)).WithMeta(types.MetaType, w.Type)
		if w.CitedByCount > 0 {
			r = r.WithMeta(types.MetaCitations, strconv.Itoa(w.CitedByCount))
		}
		if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
			r = r.WithMeta(types.MetaVenue, w.PrimaryLocation.Source.DisplayName)
		}
		if w.OpenAccess.IsOA {
			r = r.WithMeta(types.MetaAccess, "open")
		}
		out = append(out, r)
	}
	return out, nil
}

// invertedAbstract rebuilds plain text from OpenAlex's inverted index
// ({"word": [positions...]}).
func invertedAbstract(idx map[string][]int) string {
	if len(idx) == 0 {
		return ""
	}
	type wordAt struct {
		pos  int
		word string
	}
	var words []wordAt
	for w, positions := range idx {
		for _, p := range positions {
			words = append(words, wordAt{p, w})
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}
	return cleanText(strings.Join(parts, " "))
}
