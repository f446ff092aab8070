// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/pkg/types"
)

// --- Hacker News ---

func TestHackerNewsSearch(t *testing.T) {
	body := `{"hits":[
		{"objectID":"1","title":"Show HN: Tool","url":"https://tool.dev","author":"pg",
		 "created_at":"2024-05-01T12:00:00.000Z","points":120,"num_comments":45,"story_text":null},
		{"objectID":"2","title":"Ask HN: Advice?","url":"","author":"dang",
		 "created_at":"2024-05-02T12:00:00.000Z","points":3,"num_comments":1,"story_text":"<p>Looking for advice</p>"}
	]}`
	var captured *http.Request
	ts := serveBody(t, "application/json", body, &captured)
	useBase(t, &hackerNewsAPIBase, ts.URL)

	recs, err := NewHackerNews(testDeps(ts)).Search(context.Background(), Request{
		Query: "tool", MaxResults: 80, DateFrom: day(2024, 5, 1), DateTo: day(2024, 5, 31),
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "120 points, 45 comments on HN", recs[0].Abstract)
	assert.Equal(t, "https://tool.dev", recs[0].URL)
	assert.Equal(t, "120", recs[0].Meta(types.MetaPoints))

	assert.Equal(t, "Looking for advice", recs[1].Abstract)
	assert.Equal(t, "https://news.ycombinator.com/item?id=2", recs[1].URL)

	q := captured.URL.Query()
	assert.Equal(t, "50", q.Get("hitsPerPage"))
	assert.Equal(t, "story", q.Get("tags"))
	from, to := day(2024, 5, 1).Unix(), day(2024, 6, 1).Unix()-1
	assert.Equal(t, fmt.Sprintf("created_at_i>=%d,created_at_i<=%d", from, to), q.Get("numericFilters"))
}

// --- Reddit ---

func TestRedditTimeFilter(t *testing.T) {
	now := day(2024, 6, 1)
	tests := []struct {
		from time.Time
		want string
	}{
		{time.Time{}, "year"},
		{now.Add(-12 * time.Hour), "day"},
		{now.AddDate(0, 0, -5), "week"},
		{now.AddDate(0, 0, -20), "month"},
		{now.AddDate(0, -6, 0), "year"},
		{now.AddDate(-3, 0, 0), "all"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, redditTimeFilter(tt.from, now), tt.from.String())
	}
}

func TestRedditSearch(t *testing.T) {
	body := `{"data":{"children":[
		{"data":{"title":"Which vector DB?","selftext":"We tried several.","subreddit":"MachineLearning",
		 "author":"alice","permalink":"/r/MachineLearning/comments/abc/which/","url":"https://example.com",
		 "score":42,"num_comments":17,"created_utc":1714564800}},
		{"data":{"title":"Deleted","subreddit":"golang","author":"[deleted]","permalink":"/r/golang/comments/def/",
		 "score":1,"num_comments":0,"created_utc":1714651200}},
		{"data":{"title":"Too old","subreddit":"golang","author":"bob","permalink":"/r/golang/comments/old/",
		 "created_utc":1500000000}}
	]}}`
	var captured *http.Request
	ts := serveBody(t, "application/json", body, &captured)
	useBase(t, &redditAPIBase, ts.URL)

	recs, err := NewReddit(testDeps(ts)).Search(context.Background(), Request{
		Query: "vector db", MaxResults: 10, DateFrom: day(2024, 1, 1),
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "https://www.reddit.com/r/MachineLearning/comments/abc/which/", recs[0].URL)
	assert.Equal(t, []string{"u/alice"}, recs[0].Authors)
	assert.Equal(t, "r/MachineLearning | Score: 42 | Comments: 17 | We tried several.", recs[0].Abstract)
	assert.Empty(t, recs[1].Authors)

	assert.Equal(t, "year", captured.URL.Query().Get("t"))
}

// --- GitHub ---

func TestGitHubSearch(t *testing.T) {
	body := `{"items":[
		{"name":"kit","full_name":"acme/kit","html_url":"https://github.com/acme/kit","description":"A toolkit",
		 "stargazers_count":12345,"forks_count":678,"language":"Go","topics":["cli","tools"],
		 "pushed_at":"2024-05-20T10:00:00Z","owner":{"login":"acme"}},
		{"name":"bare","full_name":"x/bare","html_url":"https://github.com/x/bare","description":null,
		 "stargazers_count":0,"forks_count":0,"updated_at":"2024-04-01T00:00:00Z","owner":{"login":"x"}}
	]}`
	var captured *http.Request
	ts := serveBody(t, "application/json", body, &captured)
	useBase(t, &githubAPIBase, ts.URL)

	d := testDeps(ts)
	d.Keys.GitHubToken = "gh-token"
	recs, err := NewGitHub(d).Search(context.Background(), Request{
		Query: "toolkit", MaxResults: 5, DateFrom: day(2024, 1, 1), DateTo: day(2024, 6, 1),
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "acme/kit", recs[0].Title)
	assert.Equal(t, "A toolkit | Stars: 12,345 | Forks: 678 | Language: Go | Topics: cli, tools", recs[0].Abstract)
	assert.Equal(t, "12345", recs[0].Meta(types.MetaStars))
	assert.Equal(t, "2024-05-20", recs[0].DateString())

	assert.Equal(t, "No description available", recs[1].Abstract)
	assert.Equal(t, "2024-04-01", recs[1].DateString(), "falls back to updated_at")

	assert.Equal(t, "toolkit pushed:2024-01-01..2024-06-01", captured.URL.Query().Get("q"))
	assert.Equal(t, "Bearer gh-token", captured.Header.Get("Authorization"))
	assert.Equal(t, "application/vnd.github+json", captured.Header.Get("Accept"))
}

// --- Web ---

const ddgPage = `<html><body>
<div class="result results_links result--ad">
  <a class="result__a" href="https://ads.example.com">Sponsored</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fblog.example.com%2Fpost&amp;rut=x">Engineering <b>Blog</b> Post</a></h2>
  <a class="result__snippet" href="#">How we scaled <b>search</b>.</a>
</div>
<div class="result results_links">
  <a class="result__a" href="https://docs.example.org/guide">Guide</a>
  <div class="result__snippet">Official guide.</div>
</div>
<div class="result"><a class="result__a" href="javascript:void(0)">Broken</a></div>
</body></html>`

func TestWebSearch(t *testing.T) {
	var captured *http.Request
	ts := serveBody(t, "text/html", ddgPage, &captured)
	useBase(t, &webSearchBase, ts.URL)

	recs, err := NewWeb(testDeps(ts)).Search(context.Background(), Request{Query: "scaling search", MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, recs, 2, "ads and unusable links skipped")

	assert.Equal(t, "Engineering Blog Post", recs[0].Title)
	assert.Equal(t, "https://blog.example.com/post", recs[0].URL)
	assert.Equal(t, "How we scaled search .", recs[0].Abstract)
	assert.Equal(t, "https://docs.example.org/guide", recs[1].URL)

	assert.Equal(t, "scaling search", captured.URL.Query().Get("q"))
}

func TestWebSearchRespectsMax(t *testing.T) {
	ts := serveBody(t, "text/html", ddgPage, nil)
	useBase(t, &webSearchBase, ts.URL)

	recs, err := NewWeb(testDeps(ts)).Search(context.Background(), Request{Query: "q", MaxResults: 1})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestDecodeDDGLink(t *testing.T) {
	assert.Equal(t, "https://a.com/x", decodeDDGLink("//duckduckgo.com/l/?uddg=https%3A%2F%2Fa.com%2Fx"))
	assert.Equal(t, "http://plain.org", decodeDDGLink("http://plain.org"))
	assert.Equal(t, "", decodeDDGLink("/relative"))
	assert.Equal(t, "", decodeDDGLink(""))
}

// --- News ---

const newsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Google News</title>
<item>
  <title>Chipmaker unveils new AI accelerator - Tech Daily</title>
  <link>https://news.example.com/a</link>
  <pubDate>Mon, 13 May 2024 09:00:00 GMT</pubDate>
  <description>Chipmaker unveils new AI accelerator - Tech Daily</description>
</item>
<item>
  <title>Regulators weigh rules - Policy Times</title>
  <link>https://news.example.com/b</link>
  <pubDate>Tue, 14 May 2024 09:00:00 GMT</pubDate>
  <description>&lt;p&gt;Lawmakers met on Tuesday.&lt;/p&gt;</description>
</item>
<item>
  <title>Old story - Archive</title>
  <link>https://news.example.com/c</link>
  <pubDate>Tue, 14 May 2019 09:00:00 GMT</pubDate>
</item>
</channel></rss>`

func TestNewsSearch(t *testing.T) {
	var captured *http.Request
	ts := serveBody(t, "application/rss+xml", newsFeed, &captured)
	useBase(t, &newsSearchBase, ts.URL)

	recs, err := NewNews(testDeps(ts)).Search(context.Background(), Request{
		Query: "ai chips", MaxResults: 10, DateFrom: day(2024, 5, 1), DateTo: day(2024, 5, 31),
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Chipmaker unveils new AI accelerator", recs[0].Title)
	assert.Equal(t, "News coverage from Tech Daily", recs[0].Abstract)
	assert.Equal(t, []string{"Tech Daily"}, recs[0].Authors)
	assert.Equal(t, "Lawmakers met on Tuesday.", recs[1].Abstract)

	assert.Equal(t, "ai chips after:2024-05-01 before:2024-06-01", captured.URL.Query().Get("q"))
}

func TestSplitHeadline(t *testing.T) {
	title, pub := splitHeadline("A - B - Publisher")
	assert.Equal(t, "A - B", title)
	assert.Equal(t, "Publisher", pub)

	title, pub = splitHeadline("No publisher")
	assert.Equal(t, "No publisher", title)
	assert.Empty(t, pub)
}

// --- Google Trends ---

func trendsServer(t *testing.T, captured *[]*http.Request) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = append(*captured, r)
		switch {
		case r.URL.Path == "/explore":
			fmt.Fprint(w, `)]}'
{"widgets":[
 {"id":"TIMESERIES","token":"ts-token","request":{"time":"2024-01-01 2024-06-01"}},
 {"id":"RELATED_QUERIES","token":"rq-token","request":{"restriction":{}}},
 {"id":"RELATED_TOPICS","token":"rt-token","request":{"restriction":{}}}
]}`)
		case r.URL.Path == "/widgetdata/multiline":
			fmt.Fprint(w, `)]}',
{"default":{"timelineData":[
 {"time":"1704067200","value":[20]},{"time":"1704672000","value":[25]},
 {"time":"1705276800","value":[40]},{"time":"1705881600","value":[60]},
 {"time":"1706486400","value":[80]},{"time":"1707091200","value":[90]},
 {"time":"1707696000","value":[85]},{"time":"1708300800","value":[95]}
]}}`)
		case r.URL.Path == "/widgetdata/relatedsearches" && r.URL.Query().Get("token") == "rq-token":
			fmt.Fprint(w, `)]}',
{"default":{"rankedList":[
 {"rankedKeyword":[{"query":"rust vs go","value":100,"formattedValue":"100"},{"query":"rust book","value":60,"formattedValue":"60"}]},
 {"rankedKeyword":[{"query":"rust 2024 edition","value":0,"formattedValue":"Breakout"},{"query":"rust jobs","value":250,"formattedValue":"+250%"}]}
]}}`)
		case r.URL.Path == "/widgetdata/relatedsearches":
			fmt.Fprint(w, `)]}',
{"default":{"rankedList":[
 {"rankedKeyword":[]},
 {"rankedKeyword":[{"topic":{"title":"WebAssembly","type":"Topic"},"value":300,"formattedValue":"+300%"}]}
]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestTrendsSearch(t *testing.T) {
	var captured []*http.Request
	ts := trendsServer(t, &captured)
	useBase(t, &trendsAPIBase, ts.URL)

	recs, err := NewTrends(testDeps(ts)).Search(context.Background(), Request{
		Query: "rust", MaxResults: 4, DateFrom: day(2024, 1, 1),
	})
	require.NoError(t, err)

	titles := make([]string, len(recs))
	for i, r := range recs {
		titles[i] = r.Title
	}
	assert.Equal(t, []string{
		"Google Trends: Interest over time for 'rust'",
		"Related query: rust vs go",
		"Related query: rust book",
		"Rising query: rust 2024 edition",
		"Rising query: rust jobs",
		"Rising topic: WebAssembly",
	}, titles)

	interest := recs[0]
	assert.Contains(t, interest.Abstract, "Trend: Rising")
	assert.Contains(t, interest.Abstract, "Current interest: 95/100")
	assert.Contains(t, interest.Abstract, "Peak: 95/100. Low: 20/100.")
	assert.Contains(t, interest.Abstract, "Period: 2024-01-01 to 2024-02-19.")
	assert.Equal(t, "95", interest.Meta(types.MetaInterest))
	assert.Equal(t, "https://trends.google.com/trends/explore?q=rust", interest.URL)

	assert.Contains(t, recs[3].Abstract, "Growth: Breakout.")
	assert.Contains(t, recs[4].Abstract, "Growth: 250% increase.")
	assert.Contains(t, recs[5].Abstract, "Type: Topic.")

	require.NotEmpty(t, captured)
	explore := captured[0].URL.Query().Get("req")
	assert.Contains(t, explore, `"time":"2024-01-01 2024-06-01"`, "date-to defaults to now")
	assert.Contains(t, explore, `"keyword":"rust"`)
}

func TestTrendsDateToOnly(t *testing.T) {
	var captured []*http.Request
	ts := trendsServer(t, &captured)
	useBase(t, &trendsAPIBase, ts.URL)

	recs, err := NewTrends(testDeps(ts)).Search(context.Background(), Request{
		Query: "rust", MaxResults: 4, DateTo: day(2024, 2, 1),
	})
	require.NoError(t, err)

	require.NotEmpty(t, captured)
	explore := captured[0].URL.Query().Get("req")
	assert.Contains(t, explore, `"time":"2023-02-01 2024-02-01"`)

	// The interest series ends on 2024-02-19, after the requested range.
	require.Len(t, recs, 5)
	for _, r := range recs {
		assert.NotContains(t, r.Title, "Interest over time")
	}
}

func TestTrendsTimeframe(t *testing.T) {
	tr := NewTrends(Deps{Now: func() time.Time { return day(2024, 6, 1) }})
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"no dates", Request{}, "today 12-m"},
		{"from only", Request{DateFrom: day(2024, 1, 1)}, "2024-01-01 2024-06-01"},
		{"both", Request{DateFrom: day(2023, 1, 1), DateTo: day(2023, 12, 31)}, "2023-01-01 2023-12-31"},
		{"to only", Request{DateTo: day(2023, 3, 31)}, "2022-03-31 2023-03-31"},
		{"to only near epoch", Request{DateTo: day(2004, 6, 1)}, "2004-01-01 2004-06-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.timeframe(tt.req))
		})
	}
}

func TestTrendsWidgetFailuresAreSkipped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/explore" {
			fmt.Fprint(w, `)]}'`+"\n"+`{"widgets":[{"id":"TIMESERIES","token":"t","request":{}}]}`)
			return
		}
		http.Error(w, "quota", http.StatusBadRequest)
	}))
	defer ts.Close()
	useBase(t, &trendsAPIBase, ts.URL)

	recs, err := NewTrends(testDeps(ts)).Search(context.Background(), Request{Query: "niche", MaxResults: 5})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestTrendsExploreFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>blocked</html>")
	}))
	defer ts.Close()
	useBase(t, &trendsAPIBase, ts.URL)

	_, err := NewTrends(testDeps(ts)).Search(context.Background(), Request{Query: "x", MaxResults: 5})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Google Trends"))
}

func TestSummarizeSeries(t *testing.T) {
	tests := []struct {
		name   string
		series []int
		want   string
	}{
		{"rising", []int{10, 10, 20, 30, 40, 50, 60, 70}, "Rising"},
		{"declining", []int{80, 70, 60, 50, 40, 30, 20, 10}, "Declining"},
		{"stable", []int{50, 52, 49, 51, 50, 48, 52, 50}, "Stable"},
		{"short", []int{1, 2}, "Insufficient data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarizeSeries(tt.series).direction)
		})
	}
}
