// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// hackerNewsAPIBase is the Hacker News Algolia search endpoint.
var hackerNewsAPIBase = "https://hn.algolia.com/api/v1/search"

// HackerNews queries Hacker News stories through Algolia.
type HackerNews struct {
	get *getter
}

// NewHackerNews returns the Hacker News source.
func NewHackerNews(d Deps) *HackerNews {
	return &HackerNews{get: newGetter(d.withDefaults(), "Hacker News", 100*time.Millisecond, 5)}
}

// Name returns the source identifier.
func (h *HackerNews) Name() string { return "hackernews" }

type hnResponse struct {
	Hits []struct {
		ObjectID    string `json:"objectID"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		Author      string `json:"author"`
		CreatedAt   string `json:"created_at"`
		Points      int    `json:"points"`
		NumComments int    `json:"num_comments"`
		StoryText   string `json:"story_text"`
	} `json:"hits"`
}

// Search returns stories matching the query. Date bounds are sent as a
// numeric filter on the creation timestamp.
func (h *HackerNews) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	params := url.Values{}
	params.Set("query", req.Query)
	params.Set("tags", "story")
	params.Set("hitsPerPage", strconv.Itoa(min(req.MaxResults, 50)))
	if f := hnNumericFilters(req); f != "" {
		params.Set("numericFilters", f)
	}

	var resp hnResponse
	if err := h.get.getJSON(ctx, hackerNewsAPIBase+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	var out []types.ResultRecord
	for _, hit := range resp.Hits {
		discussion := "https://news.ycombinator.com/item?id=" + hit.ObjectID
		abstract := excerpt(cleanText(hit.StoryText), 500)
		if abstract == "" {
			abstract = fmt.Sprintf("%d points, %d comments on HN", hit.Points, hit.NumComments)
		}
		r := types.ResultRecord{
			Title:    hit.Title,
			Abstract: abstract,
			Date:     parseDate(hit.CreatedAt),
			URL:      firstNonEmpty(hit.URL, discussion),
		}
		if hit.Author != "" {
			r.Authors = []string{hit.Author}
		}
		r = r.WithMeta(types.MetaPoints, strconv.Itoa(hit.Points)).
			WithMeta(types.MetaComments, strconv.Itoa(hit.NumComments))
		out = append(out, r)
	}
	return out, nil
}

func hnNumericFilters(req Request) string {
	var f []string
	if !req.DateFrom.IsZero() {
		f = append(f, fmt.Sprintf("created_at_i>=%d", req.DateFrom.Unix()))
	}
	if !req.DateTo.IsZero() {
		f = append(f, fmt.Sprintf("created_at_i<=%d", req.DateTo.Add(24*time.Hour-time.Second).Unix()))
	}
	return strings.Join(f, ",")
}
