// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/deep-research/internal/sources"
	"github.com/pdiddy/deep-research/pkg/types"
)

// mockSource returns canned records after an optional delay.
type mockSource struct {
	name    string
	records []types.ResultRecord
	err     error
	delay   time.Duration
	calls   atomic.Int32
	active  *atomic.Int32
	peak    *atomic.Int32
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Search(ctx context.Context, _ sources.Request) ([]types.ResultRecord, error) {
	m.calls.Add(1)
	if m.active != nil {
		n := m.active.Add(1)
		defer m.active.Add(-1)
		for {
			p := m.peak.Load()
			if n <= p || m.peak.CompareAndSwap(p, n) {
				break
			}
		}
	}
	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return m.records, m.err
}

func catalogOf(t *testing.T, srcs ...*mockSource) *sources.Catalog {
	t.Helper()
	var descs []sources.Descriptor
	for _, s := range srcs {
		descs = append(descs, sources.Descriptor{ID: s.name, Source: s})
	}
	c, err := sources.NewCatalog(descs...)
	require.NoError(t, err)
	return c
}

func selecting(ids ...string) types.SelectionDecision {
	d := types.SelectionDecision{Choices: map[string]types.SourceChoice{}}
	for _, id := range ids {
		d.Order = append(d.Order, id)
		d.Choices[id] = types.SourceChoice{Selected: true}
	}
	return d
}

func rec(title, url string) types.ResultRecord {
	return types.ResultRecord{Title: title, URL: url, Abstract: "about " + title}
}

var testReq = sources.Request{Query: "topic", MaxResults: 10}

func titles(recs []types.ResultRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title
	}
	return out
}

// --- Gather ---

func TestGatherOrderIndependentOfCompletion(t *testing.T) {
	slow := &mockSource{name: "slow", delay: 50 * time.Millisecond,
		records: []types.ResultRecord{rec("S1", "https://s/1"), rec("S2", "https://s/2")}}
	fast := &mockSource{name: "fast",
		records: []types.ResultRecord{rec("F1", "https://f/1")}}
	cat := catalogOf(t, slow, fast)

	var w bytes.Buffer
	out, err := New(cat, Options{}, zaptest.NewLogger(t)).Gather(context.Background(), testReq, selecting("slow", "fast"), &w)
	require.NoError(t, err)

	assert.Equal(t, []string{"S1", "S2", "F1"}, titles(out.Records))
	assert.Equal(t, []string{"slow", "fast"}, out.Queried)
	assert.Equal(t, map[string]int{"slow": 2, "fast": 1}, out.Counts)
	for _, r := range out.Records[:2] {
		assert.Equal(t, "slow", r.Source)
	}
	assert.Contains(t, w.String(), "slow: 2 results")
}

func TestGatherRunsOnlySelected(t *testing.T) {
	a := &mockSource{name: "a", records: []types.ResultRecord{rec("A", "https://a")}}
	b := &mockSource{name: "b", records: []types.ResultRecord{rec("B", "https://b")}}
	cat := catalogOf(t, a, b)

	sel := selecting("a", "b")
	sel.Choices["b"] = types.SourceChoice{Rationale: "excluded"}

	out, err := New(cat, Options{}, nil).Gather(context.Background(), testReq, sel, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles(out.Records))
	assert.Equal(t, int32(0), b.calls.Load())
}

func TestGatherRecordsFailures(t *testing.T) {
	ok := &mockSource{name: "ok", records: []types.ResultRecord{rec("Kept", "https://k")}}
	bad := &mockSource{name: "bad", err: errors.New("HTTP 500")}
	cat := catalogOf(t, ok, bad)

	var w bytes.Buffer
	out, err := New(cat, Options{}, nil).Gather(context.Background(), testReq, selecting("ok", "bad"), &w)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kept"}, titles(out.Records))
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "bad", out.Failures[0].Source)
	assert.Contains(t, out.Failures[0].Error, "HTTP 500")
	assert.Contains(t, w.String(), "warning: bad failed")
}

func TestGatherAllFailed(t *testing.T) {
	cat := catalogOf(t,
		&mockSource{name: "x", err: errors.New("timeout")},
		&mockSource{name: "y", err: errors.New("503")},
	)
	out, err := New(cat, Options{}, nil).Gather(context.Background(), testReq, selecting("x", "y"), &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	var u *sources.Unavailable
	assert.ErrorAs(t, err, &u)
	assert.Len(t, out.Failures, 2)
	assert.Empty(t, out.Records)
}

func TestGatherNoSelection(t *testing.T) {
	cat := catalogOf(t, &mockSource{name: "x"})
	_, err := New(cat, Options{}, nil).Gather(context.Background(), testReq, selecting(), &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrNoSourcesSelected)

	_, err = New(cat, Options{}, nil).Gather(context.Background(), testReq, selecting("unknown"), &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrNoSourcesSelected)
}

func TestGatherRespectsConcurrencyLimit(t *testing.T) {
	var active, peak atomic.Int32
	var srcs []*mockSource
	var ids []string
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		srcs = append(srcs, &mockSource{name: id, delay: 20 * time.Millisecond, active: &active, peak: &peak,
			records: []types.ResultRecord{rec(id, "https://x/"+id)}})
		ids = append(ids, id)
	}
	cat := catalogOf(t, srcs...)

	out, err := New(cat, Options{Concurrency: 2}, nil).Gather(context.Background(), testReq, selecting(ids...), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Len(t, out.Records, 5)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestGatherSourceTimeout(t *testing.T) {
	hang := &mockSource{name: "hang", delay: time.Minute}
	quick := &mockSource{name: "quick", records: []types.ResultRecord{rec("Q", "https://q")}}
	cat := catalogOf(t, hang, quick)

	out, err := New(cat, Options{SourceTimeout: 20 * time.Millisecond}, nil).
		Gather(context.Background(), testReq, selecting("hang", "quick"), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Q"}, titles(out.Records))
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "hang", out.Failures[0].Source)
}

func TestGatherCancelled(t *testing.T) {
	cat := catalogOf(t, &mockSource{name: "x", delay: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := New(cat, Options{}, nil).Gather(ctx, testReq, selecting("x"), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatSummary(t *testing.T) {
	var w bytes.Buffer
	FormatSummary(Output{
		Records:     make([]types.ResultRecord, 4),
		Queried:     []string{"a", "b", "c"},
		DupsRemoved: 2,
		Failures:    []Failure{{Source: "c"}},
	}, &w)
	assert.Equal(t, "4 results from 2 sources (2 duplicates removed), 1 failed\n", w.String())
}
