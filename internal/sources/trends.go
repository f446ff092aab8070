// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/pkg/types"
)

// trendsAPIBase is the Google Trends internal API root.
var trendsAPIBase = "https://trends.google.com/trends/api"

// trendsEpoch is the first day Google Trends has data for.
var trendsEpoch = time.Date(2004, 1, 1, 0, 0, 0, 0, time.UTC)

// Trends summarizes Google Trends search interest for the query: interest
// over time plus top and rising related queries and rising related topics.
type Trends struct {
	get    *getter
	now    func() time.Time
	logger *zap.Logger
}

// NewTrends returns the Google Trends source.
func NewTrends(d Deps) *Trends {
	d = d.withDefaults()
	return &Trends{
		get:    newGetter(d, "Google Trends", time.Second, 4),
		now:    d.Now,
		logger: d.Logger,
	}
}

// Name returns the source identifier.
func (t *Trends) Name() string { return "google_trends" }

type trendsWidget struct {
	ID      string          `json:"id"`
	Token   string          `json:"token"`
	Request json.RawMessage `json:"request"`
}

type trendsRanked struct {
	Query          string `json:"query"`
	Value          int    `json:"value"`
	FormattedValue string `json:"formattedValue"`
	Topic          struct {
		Title string `json:"title"`
		Type  string `json:"type"`
	} `json:"topic"`
}

// Search fetches the explore widgets, then each widget's data. Individual
// widget failures are skipped; only the explore call failing is an error.
func (t *Trends) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	keyword := excerpt(req.Query, 100)
	widgets, err := t.explore(ctx, keyword, t.timeframe(req))
	if err != nil {
		return nil, err
	}

	var out []types.ResultRecord
	if w, ok := widgets["TIMESERIES"]; ok {
		if r, err := t.interest(ctx, keyword, w); err != nil {
			t.logger.Debug("trends interest over time unavailable", zap.Error(err))
		} else if r != nil {
			out = append(out, *r)
		}
	}

	half := max(req.MaxResults/2, 1)
	if w, ok := widgets["RELATED_QUERIES"]; ok {
		top, rising, err := t.ranked(ctx, w)
		if err != nil {
			t.logger.Debug("trends related queries unavailable", zap.Error(err))
		}
		for _, k := range head(top, half) {
			out = append(out, trendsRecord("Related query: "+k.Query,
				fmt.Sprintf("Top related Google Trends query for '%s'. Relative interest score: %d/100.", keyword, k.Value),
				k.Query))
		}
		for _, k := range head(rising, half) {
			out = append(out, trendsRecord("Rising query: "+k.Query,
				fmt.Sprintf("Rising Google Trends query for '%s'. Growth: %s. This indicates growing interest in this area.", keyword, growth(k)),
				k.Query))
		}
	}

	if w, ok := widgets["RELATED_TOPICS"]; ok {
		_, rising, err := t.ranked(ctx, w)
		if err != nil {
			t.logger.Debug("trends related topics unavailable", zap.Error(err))
		}
		for _, k := range head(rising, max(req.MaxResults-len(out), 3)) {
			out = append(out, trendsRecord("Rising topic: "+k.Topic.Title,
				fmt.Sprintf("Rising Google Trends topic related to '%s'. Type: %s. Growth: %s.", keyword, k.Topic.Type, growth(k)),
				k.Topic.Title))
		}
	}
	return lo.Filter(out, func(r types.ResultRecord, _ int) bool { return inRange(r.Date, req) }), nil
}

// timeframe renders the explore window. An end date without a start looks
// back one year, never before trendsEpoch.
func (t *Trends) timeframe(req Request) string {
	switch {
	case !req.DateFrom.IsZero() && !req.DateTo.IsZero():
		return req.DateFrom.Format(types.DateLayout) + " " + req.DateTo.Format(types.DateLayout)
	case !req.DateFrom.IsZero():
		return req.DateFrom.Format(types.DateLayout) + " " + t.now().Format(types.DateLayout)
	case !req.DateTo.IsZero():
		from := req.DateTo.AddDate(-1, 0, 0)
		if from.Before(trendsEpoch) {
			from = trendsEpoch
		}
		return from.Format(types.DateLayout) + " " + req.DateTo.Format(types.DateLayout)
	default:
		return "today 12-m"
	}
}

func (t *Trends) explore(ctx context.Context, keyword, timeframe string) (map[string]trendsWidget, error) {
	payload, err := json.Marshal(map[string]any{
		"comparisonItem": []map[string]string{{"keyword": keyword, "geo": "", "time": timeframe}},
		"category":       0,
		"property":       "",
	})
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("hl", "en-US")
	params.Set("tz", "360")
	params.Set("req", string(payload))

	var resp struct {
		Widgets []trendsWidget `json:"widgets"`
	}
	if err := t.getGuarded(ctx, trendsAPIBase+"/explore?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	widgets := make(map[string]trendsWidget)
	for _, w := range resp.Widgets {
		if _, seen := widgets[w.ID]; !seen {
			widgets[w.ID] = w
		}
	}
	return widgets, nil
}

func (t *Trends) widgetURL(kind string, w trendsWidget) string {
	params := url.Values{}
	params.Set("hl", "en-US")
	params.Set("tz", "360")
	params.Set("req", string(w.Request))
	params.Set("token", w.Token)
	return trendsAPIBase + "/widgetdata/" + kind + "?" + params.Encode()
}

func (t *Trends) interest(ctx context.Context, keyword string, w trendsWidget) (*types.ResultRecord, error) {
	var resp struct {
		Default struct {
			TimelineData []struct {
				Time  string `json:"time"`
				Value []int  `json:"value"`
			} `json:"timelineData"`
		} `json:"default"`
	}
	if err := t.getGuarded(ctx, t.widgetURL("multiline", w), &resp); err != nil {
		return nil, err
	}

	var series []int
	var first, last time.Time
	for _, p := range resp.Default.TimelineData {
		if len(p.Value) == 0 {
			continue
		}
		series = append(series, p.Value[0])
		if secs, err := strconv.ParseInt(p.Time, 10, 64); err == nil {
			ts := time.Unix(secs, 0).UTC()
			if first.IsZero() {
				first = ts
			}
			last = ts
		}
	}
	if len(series) == 0 {
		return nil, nil
	}

	s := summarizeSeries(series)
	abstract := fmt.Sprintf(
		"Google Trends interest over time for '%s'. Trend: %s. Current interest: %d/100. Average: %.0f/100. Peak: %d/100. Low: %d/100.",
		keyword, s.direction, s.latest, s.avg, s.peak, s.low)
	if !first.IsZero() {
		abstract += fmt.Sprintf(" Period: %s to %s.", first.Format(types.DateLayout), last.Format(types.DateLayout))
	}

	r := trendsRecord(fmt.Sprintf("Google Trends: Interest over time for '%s'", keyword), abstract, keyword)
	r.Date = last
	r = r.WithMeta(types.MetaInterest, strconv.Itoa(s.latest))
	return &r, nil
}

// ranked returns the top and rising lists of a related-queries or
// related-topics widget.
func (t *Trends) ranked(ctx context.Context, w trendsWidget) (top, rising []trendsRanked, err error) {
	var resp struct {
		Default struct {
			RankedList []struct {
				RankedKeyword []trendsRanked `json:"rankedKeyword"`
			} `json:"rankedList"`
		} `json:"default"`
	}
	if err := t.getGuarded(ctx, t.widgetURL("relatedsearches", w), &resp); err != nil {
		return nil, nil, err
	}
	lists := resp.Default.RankedList
	if len(lists) > 0 {
		top = lists[0].RankedKeyword
	}
	if len(lists) > 1 {
		rising = lists[1].RankedKeyword
	}
	return top, rising, nil
}

// getGuarded fetches a Trends endpoint and decodes it after removing the
// anti-JSON-hijacking prefix (")]}'" or ")]}',").
func (t *Trends) getGuarded(ctx context.Context, rawURL string, v any) error {
	body, err := t.get.fetch(ctx, rawURL, nil)
	if err != nil {
		return err
	}
	i := bytes.IndexByte(body, '{')
	if i < 0 {
		return fmt.Errorf("parsing Google Trends response: no JSON object")
	}
	if err := json.Unmarshal(body[i:], v); err != nil {
		return fmt.Errorf("parsing Google Trends response: %w", err)
	}
	return nil
}

type seriesSummary struct {
	latest, peak, low int
	avg               float64
	direction         string
}

// summarizeSeries computes interest statistics and the trend direction,
// comparing the mean of the last quarter of points against the first.
func summarizeSeries(series []int) seriesSummary {
	s := seriesSummary{latest: series[len(series)-1], peak: series[0], low: series[0]}
	sum := 0
	for _, v := range series {
		sum += v
		s.peak = max(s.peak, v)
		s.low = min(s.low, v)
	}
	s.avg = float64(sum) / float64(len(series))

	if len(series) < 4 {
		s.direction = "Insufficient data"
		return s
	}
	q := len(series) / 4
	firstQ, lastQ := mean(series[:q]), mean(series[len(series)-q:])
	switch {
	case lastQ > firstQ*1.2:
		s.direction = "Rising"
	case lastQ < firstQ*0.8:
		s.direction = "Declining"
	default:
		s.direction = "Stable"
	}
	return s
}

func mean(xs []int) float64 {
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func growth(k trendsRanked) string {
	if k.FormattedValue == "Breakout" {
		return "Breakout"
	}
	return fmt.Sprintf("%d%% increase", k.Value)
}

func head(ks []trendsRanked, n int) []trendsRanked {
	var out []trendsRanked
	for _, k := range ks {
		if len(out) == n {
			break
		}
		if k.Query != "" || k.Topic.Title != "" {
			out = append(out, k)
		}
	}
	return out
}

func trendsRecord(title, abstract, term string) types.ResultRecord {
	return types.ResultRecord{
		Title:    title,
		Abstract: abstract,
		URL:      "https://trends.google.com/trends/explore?q=" + url.QueryEscape(term),
	}
}
