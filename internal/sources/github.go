// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pdiddy/deep-research/pkg/types"
)

// githubAPIBase is the GitHub repository search endpoint.
var githubAPIBase = "https://api.github.com/search/repositories"

// GitHub queries GitHub repository search.
type GitHub struct {
	get   *getter
	token string
}

// NewGitHub returns the GitHub source. Unauthenticated search allows ten
// requests per minute.
func NewGitHub(d Deps) *GitHub {
	d = d.withDefaults()
	return &GitHub{
		get:   newGetter(d, "GitHub", 6*time.Second, 2),
		token: d.Keys.GitHubToken,
	}
}

// Name returns the source identifier.
func (g *GitHub) Name() string { return "github" }

type githubResponse struct {
	Items []struct {
		Name        string   `json:"name"`
		FullName    string   `json:"full_name"`
		HTMLURL     string   `json:"html_url"`
		Description string   `json:"description"`
		Stars       int      `json:"stargazers_count"`
		Forks       int      `json:"forks_count"`
		Language    string   `json:"language"`
		Topics      []string `json:"topics"`
		PushedAt    string   `json:"pushed_at"`
		UpdatedAt   string   `json:"updated_at"`
		Owner       struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"items"`
}

// Search returns the most-starred repositories matching the query, limited
// to repositories pushed within the request's date bounds.
func (g *GitHub) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	params := url.Values{}
	params.Set("q", req.Query+githubPushedQualifier(req))
	params.Set("sort", "stars")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(min(req.MaxResults, 100)))

	header := http.Header{"Accept": {"application/vnd.github+json"}}
	if g.token != "" {
		header.Set("Authorization", "Bearer "+g.token)
	}

	var resp githubResponse
	if err := g.get.getJSON(ctx, githubAPIBase+"?"+params.Encode(), header, &resp); err != nil {
		return nil, err
	}

	var out []types.ResultRecord
	for _, repo := range resp.Items {
		var stats []string
		if repo.Stars > 0 {
			stats = append(stats, "Stars: "+humanize.Comma(int64(repo.Stars)))
		}
		if repo.Forks > 0 {
			stats = append(stats, "Forks: "+humanize.Comma(int64(repo.Forks)))
		}
		if repo.Language != "" {
			stats = append(stats, "Language: "+repo.Language)
		}
		topics := repo.Topics
		if len(topics) > 5 {
			topics = topics[:5]
		}

		abstract := joinParts(
			excerpt(cleanText(repo.Description), 300),
			strings.Join(stats, " | "),
			prefixed("Topics: ", strings.Join(topics, ", ")),
		)
		if abstract == "" {
			abstract = "No description available"
		}

		r := types.ResultRecord{
			Title:    firstNonEmpty(repo.FullName, repo.Name),
			Abstract: abstract,
			Date:     parseDate(firstNonEmpty(repo.PushedAt, repo.UpdatedAt)),
			URL:      repo.HTMLURL,
		}
		if repo.Owner.Login != "" {
			r.Authors = []string{repo.Owner.Login}
		}
		r = r.WithMeta(types.MetaStars, strconv.Itoa(repo.Stars)).
			WithMeta(types.MetaForks, strconv.Itoa(repo.Forks)).
			WithMeta(types.MetaLanguage, repo.Language).
			WithMeta(types.MetaTopics, strings.Join(repo.Topics, ", "))
		out = append(out, r)
	}
	return out, nil
}

func githubPushedQualifier(req Request) string {
	from, to := req.DateFrom, req.DateTo
	switch {
	case !from.IsZero() && !to.IsZero():
		return " pushed:" + from.Format(types.DateLayout) + ".." + to.Format(types.DateLayout)
	case !from.IsZero():
		return " pushed:>=" + from.Format(types.DateLayout)
	case !to.IsZero():
		return " pushed:<=" + to.Format(types.DateLayout)
	default:
		return ""
	}
}
