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

// newsSearchBase is the Google News RSS search endpoint.
var newsSearchBase = "https://news.google.com/rss/search"

// News searches recent news coverage through the Google News RSS feed.
type News struct {
	get    *getter
	parser *gofeed.Parser
}

// NewNews returns the news source.
func NewNews(d Deps) *News {
	return &News{
		get:    newGetter(d.withDefaults(), "Google News", time.Second, 1),
		parser: gofeed.NewParser(),
	}
}

// Name returns the source identifier.
func (n *News) Name() string { return "news" }

// Search returns news items matching the query. Date bounds are pushed into
// the query with after:/before: operators and re-checked client-side.
func (n *News) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	q := req.Query
	if !req.DateFrom.IsZero() {
		q += " after:" + req.DateFrom.Format(types.DateLayout)
	}
	if !req.DateTo.IsZero() {
		q += " before:" + req.DateTo.AddDate(0, 0, 1).Format(types.DateLayout)
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	body, err := n.get.fetch(ctx, newsSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	feed, err := n.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing news feed: %w", err)
	}

	var out []types.ResultRecord
	for _, item := range feed.Items {
		var date time.Time
		if item.PublishedParsed != nil {
			date = item.PublishedParsed.UTC()
		}
		if !inRange(date, req) {
			continue
		}

		title, publisher := splitHeadline(item.Title)

		abstract := cleanText(item.Description)
		if abstract == "" || strings.EqualFold(abstract, item.Title) {
			abstract = prefixed("News coverage from ", publisher)
		}

		r := types.ResultRecord{
			Title:    title,
			Abstract: abstract,
			Date:     date,
			URL:      item.Link,
		}
		if publisher != "" {
			r.Authors = []string{publisher}
		}
		r = r.WithMeta(types.MetaPublisher, publisher)
		out = append(out, r)
	}
	return out, nil
}

// splitHeadline separates Google News headlines of the form
// "Headline - Publisher".
func splitHeadline(s string) (title, publisher string) {
	s = cleanText(s)
	i := strings.LastIndex(s, " - ")
	if i <= 0 {
		return s, ""
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+3:])
}
