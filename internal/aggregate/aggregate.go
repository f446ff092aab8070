// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate queries the selected sources concurrently and merges
// their results into one deduplicated, deterministically ordered list.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/deep-research/internal/sources"
	"github.com/pdiddy/deep-research/pkg/types"
)

var (
	// ErrNoSourcesSelected is returned when the selection names no
	// catalog source.
	ErrNoSourcesSelected = errors.New("no sources selected")

	// ErrAllSourcesFailed is returned when every selected source failed.
	ErrAllSourcesFailed = errors.New("all selected sources failed")
)

// Failure records one source that produced no results for the run.
type Failure struct {
	Source string `json:"source" yaml:"source"`
	Error  string `json:"error" yaml:"error"`
}

// Output holds the merged records and per-source statistics.
type Output struct {
	Records []types.ResultRecord

	// Queried lists the sources that were run, in selection order.
	Queried []string

	// Counts is the number of records each source returned before
	// deduplication.
	Counts map[string]int

	DupsRemoved int
	Failures    []Failure
}

// Options tunes the fan-out.
type Options struct {
	// Concurrency caps how many sources run at once. Zero runs all.
	Concurrency int

	// SourceTimeout bounds each source call. Zero means no extra bound.
	SourceTimeout time.Duration
}

// Aggregator runs catalog sources for a selection.
type Aggregator struct {
	catalog *sources.Catalog
	opts    Options
	logger  *zap.Logger
}

// New returns an Aggregator over cat. logger may be nil.
func New(cat *sources.Catalog, opts Options, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{catalog: cat, opts: opts, logger: logger}
}

// Gather runs exactly the selected sources and merges their results.
// Records are ordered by selection order, then by each source's own order,
// regardless of which source finishes first. A failed source is recorded
// in Output.Failures and the run continues; only the failure of every
// source is an error. Progress lines are written to w.
func (a *Aggregator) Gather(ctx context.Context, req sources.Request, sel types.SelectionDecision, w io.Writer) (Output, error) {
	var descs []sources.Descriptor
	for _, id := range sel.Selected() {
		d, ok := a.catalog.Get(id)
		if !ok {
			a.logger.Warn("selected source is not in the catalog", zap.String("source", id))
			continue
		}
		descs = append(descs, d)
	}
	if len(descs) == 0 {
		return Output{}, ErrNoSourcesSelected
	}

	results := make([][]types.ResultRecord, len(descs))
	errs := make([]error, len(descs))

	var g errgroup.Group
	if a.opts.Concurrency > 0 {
		g.SetLimit(a.opts.Concurrency)
	}
	for i, d := range descs {
		i, d := i, d
		g.Go(func() error {
			sctx, cancel := a.sourceContext(ctx)
			defer cancel()
			start := time.Now()
			results[i], errs[i] = sources.Run(sctx, d.Source, req)
			a.logger.Debug("source finished",
				zap.String("source", d.ID),
				zap.Int("records", len(results[i])),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(errs[i]))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	out := Output{Counts: make(map[string]int, len(descs))}
	var all []types.ResultRecord
	var failed []error
	for i, d := range descs {
		out.Queried = append(out.Queried, d.ID)
		if errs[i] != nil {
			failed = append(failed, errs[i])
			out.Failures = append(out.Failures, Failure{Source: d.ID, Error: errs[i].Error()})
			a.logger.Warn("source failed", zap.String("source", d.ID), zap.Error(errs[i]))
			fmt.Fprintf(w, "  warning: %s failed: %v\n", d.ID, errs[i])
			continue
		}
		out.Counts[d.ID] = len(results[i])
		fmt.Fprintf(w, "  %s: %d results\n", d.ID, len(results[i]))
		all = append(all, results[i]...)
	}

	if len(failed) == len(descs) {
		return out, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(failed...))
	}

	out.Records, out.DupsRemoved = Deduplicate(all)
	return out, nil
}

func (a *Aggregator) sourceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.SourceTimeout > 0 {
		return context.WithTimeout(ctx, a.opts.SourceTimeout)
	}
	return context.WithCancel(ctx)
}

// FormatSummary writes a one-line summary of the gather step to w.
func FormatSummary(out Output, w io.Writer) {
	fmt.Fprintf(w, "%d results from %d sources", len(out.Records), len(out.Queried)-len(out.Failures))
	if out.DupsRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", out.DupsRemoved)
	}
	if len(out.Failures) > 0 {
		fmt.Fprintf(w, ", %d failed", len(out.Failures))
	}
	fmt.Fprintln(w)
}
