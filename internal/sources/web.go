// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/pdiddy/deep-research/pkg/types"
)

// webSearchBase is the DuckDuckGo HTML search endpoint.
var webSearchBase = "https://html.duckduckgo.com/html/"

// Web searches the general web through DuckDuckGo's HTML endpoint.
type Web struct {
	get *getter
}

// NewWeb returns the web search source.
func NewWeb(d Deps) *Web {
	return &Web{get: newGetter(d.withDefaults(), "DuckDuckGo", time.Second, 1)}
}

// Name returns the source identifier.
func (w *Web) Name() string { return "web" }

// Search returns organic web results for the query. The HTML endpoint has
// no date filter, and results carry no dates, so bounds are ignored.
func (w *Web) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	params := url.Values{}
	params.Set("q", req.Query)

	body, err := w.get.fetch(ctx, webSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing DuckDuckGo results: %w", err)
	}

	var out []types.ResultRecord
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if len(out) >= req.MaxResults {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, "result") && !hasClass(n, "result--ad") {
			if r, ok := parseWebResult(n); ok {
				out = append(out, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return out, nil
}

// parseWebResult extracts one organic result block.
func parseWebResult(n *html.Node) (types.ResultRecord, bool) {
	var r types.ResultRecord
	var traverse func(*html.Node)
	traverse = func(c *html.Node) {
		if c.Type == html.ElementNode {
			switch {
			case hasClass(c, "result__a") && r.Title == "":
				r.Title = textContent(c)
				r.URL = decodeDDGLink(attr(c, "href"))
				return
			case hasClass(c, "result__snippet") && r.Abstract == "":
				r.Abstract = textContent(c)
				return
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			traverse(k)
		}
	}
	traverse(n)
	return r, r.Title != "" && r.URL != ""
}

// decodeDDGLink unwraps DuckDuckGo's redirect links
// ("//duckduckgo.com/l/?uddg=<target>") to the target URL.
func decodeDDGLink(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var traverse func(*html.Node)
	traverse = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			traverse(k)
		}
	}
	traverse(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
