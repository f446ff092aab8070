// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// dblpAPIBase is the DBLP publication search endpoint.
var dblpAPIBase = "https://dblp.org/search/publ/api"

// DBLP queries the DBLP computer science bibliography.
type DBLP struct {
	get *getter
}

// NewDBLP returns the DBLP source.
func NewDBLP(d Deps) *DBLP {
	return &DBLP{get: newGetter(d.withDefaults(), "DBLP", time.Second, 2)}
}

// Name returns the source identifier.
func (b *DBLP) Name() string { return "dblp" }

type dblpResponse struct {
	Result struct {
		Hits struct {
			Hit []struct {
				Info dblpInfo `json:"info"`
			} `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

type dblpInfo struct {
	Title   string `json:"title"`
	Venue   string `json:"venue"`
	Year    string `json:"year"`
	Type    string `json:"type"`
	Pages   string `json:"pages"`
	Access  string `json:"access"`
	DOI     string `json:"doi"`
	EE      string `json:"ee"`
	URL     string `json:"url"`
	Authors struct {
		Author dblpAuthors `json:"author"`
	} `json:"authors"`
}

// dblpAuthors decodes DBLP's author field, which is a single object when a
// publication has one author and a list otherwise.
type dblpAuthors []string

func (a *dblpAuthors) UnmarshalJSON(data []byte) error {
	type author struct {
		Text string `json:"text"`
	}
	var list []author
	if err := json.Unmarshal(data, &list); err == nil {
		for _, x := range list {
			*a = append(*a, x.Text)
		}
		return nil
	}
	var one author
	if err := json.Unmarshal(data, &one); err == nil {
		*a = dblpAuthors{one.Text}
		return nil
	}
	// Any other shape degrades to no authors.
	*a = nil
	return nil
}

// Search returns publications matching the query. DBLP has no date filter,
// so bounds are applied to the publication year client-side.
func (b *DBLP) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("format", "json")
	params.Set("h", strconv.Itoa(min(req.MaxResults, 1000)))

	var resp dblpResponse
	if err := b.get.getJSON(ctx, dblpAPIBase+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	var out []types.ResultRecord
	for _, hit := range resp.Result.Hits.Hit {
		info := hit.Info
		year, _ := strconv.Atoi(info.Year)
		date := yearDate(year)
		if !inRange(date, req) {
			continue
		}

		access := ""
		switch info.Access {
		case "open":
			access = "Open Access"
		case "":
		default:
			access = "Closed Access"
		}
		abstract := joinParts(
			prefixed("Published in: ", info.Venue),
			prefixed("Type: ", info.Type),
			prefixed("Pages: ", info.Pages),
			prefixed("Access: ", access),
		)
		if abstract == "" {
			abstract = noAbstract
		}

		r := types.ResultRecord{
			// DBLP titles end with a period.
			Title:    strings.TrimSuffix(strings.TrimSpace(info.Title), "."),
			Abstract: abstract,
			Date:     date,
			URL:      firstNonEmpty(doiURL(info.DOI), info.EE, info.URL),
			Authors:  capAuthors(info.Authors.Author, maxAuthors),
		}
		r = r.WithMeta(types.MetaDOI, bareDOI(info.DOI)).
			WithMeta(types.MetaVenue, info.Venue).
			WithMeta(types.MetaType, info.Type).
			WithMeta(types.MetaAccess, info.Access)
		out = append(out, r)
	}
	return out, nil
}
