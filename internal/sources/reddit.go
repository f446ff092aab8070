// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// redditAPIBase is the Reddit public search endpoint.
var redditAPIBase = "https://www.reddit.com/search.json"

// Reddit queries Reddit posts through the public JSON API.
type Reddit struct {
	get *getter
	now func() time.Time
}

// NewReddit returns the Reddit source.
func NewReddit(d Deps) *Reddit {
	d = d.withDefaults()
	return &Reddit{get: newGetter(d, "Reddit", 2*time.Second, 1), now: d.Now}
}

// Name returns the source identifier.
func (r *Reddit) Name() string { return "reddit" }

type redditResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Subreddit   string  `json:"subreddit"`
				Author      string  `json:"author"`
				Permalink   string  `json:"permalink"`
				URL         string  `json:"url"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Search returns link posts matching the query. Reddit only offers coarse
// time windows, so exact bounds are applied client-side.
func (r *Reddit) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("sort", "relevance")
	params.Set("limit", strconv.Itoa(min(req.MaxResults, 100)))
	params.Set("type", "link")
	params.Set("t", redditTimeFilter(req.DateFrom, r.now()))

	var resp redditResponse
	if err := r.get.getJSON(ctx, redditAPIBase+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	var out []types.ResultRecord
	for _, child := range resp.Data.Children {
		p := child.Data
		var date time.Time
		if p.CreatedUTC > 0 {
			date = time.Unix(int64(p.CreatedUTC), 0).UTC()
		}
		if !inRange(date, req) {
			continue
		}

		link := p.URL
		if p.Permalink != "" {
			link = "https://www.reddit.com" + p.Permalink
		}

		rec := types.ResultRecord{
			Title: p.Title,
			Abstract: joinParts(
				prefixed("r/", p.Subreddit),
				fmt.Sprintf("Score: %d | Comments: %d", p.Score, p.NumComments),
				excerpt(cleanText(p.Selftext), 500),
			),
			Date: date,
			URL:  link,
		}
		if p.Author != "" && p.Author != "[deleted]" {
			rec.Authors = []string{"u/" + p.Author}
		}
		rec = rec.WithMeta(types.MetaSubreddit, p.Subreddit).
			WithMeta(types.MetaPoints, strconv.Itoa(p.Score)).
			WithMeta(types.MetaComments, strconv.Itoa(p.NumComments))
		out = append(out, rec)
	}
	return out, nil
}

// redditTimeFilter maps a lower date bound to Reddit's "t" window.
func redditTimeFilter(from, now time.Time) string {
	if from.IsZero() {
		return "year"
	}
	days := now.Sub(from).Hours() / 24
	switch {
	case days <= 1:
		return "day"
	case days <= 7:
		return "week"
	case days <= 30:
		return "month"
	case days <= 365:
		return "year"
	default:
		return "all"
	}
}
