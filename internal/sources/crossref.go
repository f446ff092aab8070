// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// crossrefAPIBase is the Crossref works endpoint.
var crossrefAPIBase = "https://api.crossref.org/works"

const crossrefSelect = "DOI,title,author,published,issued,abstract,URL,container-title,type,is-referenced-by-count"

// Crossref queries Crossref publisher metadata.
type Crossref struct {
	get    *getter
	mailto string
}

// NewCrossref returns the Crossref source, using the polite pool.
func NewCrossref(d Deps) *Crossref {
	d = d.withDefaults()
	return &Crossref{
		get:    newGetter(d, "Crossref", 100*time.Millisecond, 5),
		mailto: firstNonEmpty(d.Keys.CrossrefMailto, defaultPoliteEmail),
	}
}

// Name returns the source identifier.
func (c *Crossref) Name() string { return "crossref" }

type crossrefResponse struct {
	Message struct {
		Items []crossrefItem `json:"items"`
	} `json:"message"`
}

type crossrefItem struct {
	DOI            string         `json:"DOI"`
	Title          []string       `json:"title"`
	Abstract       string         `json:"abstract"`
	URL            string         `json:"URL"`
	ContainerTitle []string       `json:"container-title"`
	Type           string         `json:"type"`
	Citations      int            `json:"is-referenced-by-count"`
	Published      *crossrefDate  `json:"published"`
	Issued         *crossrefDate  `json:"issued"`
	Author         []crossrefName `json:"author"`
}

type crossrefDate struct {
	DateParts [][]*int `json:"date-parts"`
}

type crossrefName struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

// Search returns the most relevant works that carry an abstract.
func (c *Crossref) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	filters := []string{"has-abstract:true"}
	if !req.DateFrom.IsZero() {
		filters = append(filters, "from-pub-date:"+req.DateFrom.Format(types.DateLayout))
	}
	if !req.DateTo.IsZero() {
		filters = append(filters, "until-pub-date:"+req.DateTo.Format(types.DateLayout))
	}

	params := url.Values{}
	params.Set("query.bibliographic", req.Query)
	params.Set("rows", strconv.Itoa(min(req.MaxResults, 1000)))
	params.Set("sort", "relevance")
	params.Set("order", "desc")
	params.Set("select", crossrefSelect)
	params.Set("filter", strings.Join(filters, ","))
	params.Set("mailto", c.mailto)

	header := http.Header{"User-Agent": {fmt.Sprintf("deep-research (mailto:%s)", c.mailto)}}

	var resp crossrefResponse
	if err := c.get.getJSON(ctx, crossrefAPIBase+"?"+params.Encode(), header, &resp); err != nil {
		return nil, err
	}

	var out []types.ResultRecord
	for _, it := range resp.Message.Items {
		if len(it.Title) == 0 {
			continue
		}
		venue := ""
		if len(it.ContainerTitle) > 0 {
			venue = it.ContainerTitle[0]
		}

		abstract := cleanText(it.Abstract)
		if abstract == "" {
			abstract = joinParts(
				prefixed("Published in: ", venue),
				prefixed("Type: ", typeDisplay(it.Type)),
				prefixed("Citations: ", countString(it.Citations)),
			)
		}
		if abstract == "" {
			abstract = noAbstract
		}

		date := it.Published.time()
		if date.IsZero() {
			date = it.Issued.time()
		}

		r := types.ResultRecord{
			Title:    it.Title[0],
			Abstract: abstract,
			Date:     date,
			URL:      firstNonEmpty(it.URL, doiURL(it.DOI)),
		}
		for _, a := range it.Author {
			if a.Family != "" {
				r.Authors = append(r.Authors, strings.TrimSpace(a.Given+" "+a.Family))
			}
		}
		r.Authors = capAuthors(r.Authors, maxAuthors)
		r = r.WithMeta(types.MetaDOI, bareDOI(it.DOI)).
			WithMeta(types.MetaVenue, venue).
			WithMeta(types.MetaType, it.Type).
			WithMeta(types.MetaCitations, countString(it.Citations))
		out = append(out, r)
	}
	return out, nil
}

// time converts Crossref date-parts ([[year, month, day]], trailing parts
// optional) into a time.
func (d *crossrefDate) time() time.Time {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 || d.DateParts[0][0] == nil {
		return time.Time{}
	}
	parts := d.DateParts[0]
	ymd := [3]int{*parts[0], 1, 1}
	for i := 1; i < len(parts) && i < 3; i++ {
		if parts[i] != nil && *parts[i] > 0 {
			ymd[i] = *parts[i]
		}
	}
	return time.Date(ymd[0], time.Month(ymd[1]), ymd[2], 0, 0, 0, 0, time.UTC)
}

// typeDisplay turns "journal-article" into "Journal Article".
func typeDisplay(t string) string {
	words := strings.Fields(strings.ReplaceAll(t, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func prefixed(prefix, v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return prefix + v
}

// countString formats positive counts; zero is treated as unknown.
func countString(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
