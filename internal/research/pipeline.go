// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research runs the full research pipeline for one topic: optional
// query rewriting, source selection, parallel gathering, relevance
// filtering, synthesis, and report output.
package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/aggregate"
	"github.com/pdiddy/deep-research/internal/archive"
	"github.com/pdiddy/deep-research/internal/filter"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/report"
	"github.com/pdiddy/deep-research/internal/rewrite"
	"github.com/pdiddy/deep-research/internal/selector"
	"github.com/pdiddy/deep-research/internal/sources"
	"github.com/pdiddy/deep-research/internal/synthesize"
	"github.com/pdiddy/deep-research/pkg/types"
)

const banner = "============================================================"

// Archiver stores completed runs. *archive.Store satisfies it.
type Archiver interface {
	Save(ctx context.Context, run archive.Run) error
}

// Deps holds everything a Pipeline is built from.
type Deps struct {
	Settings types.Settings
	Catalog  *sources.Catalog
	LLM      llm.Completer

	// Model names the model in the report. Defaults to Settings.LLM.Model.
	Model string

	// Archive receives every successful run when Settings.Archive.Enabled
	// is set. May be nil.
	Archive Archiver

	// Out receives human progress lines. Defaults to io.Discard.
	Out    io.Writer
	Logger *zap.Logger

	Now   func() time.Time
	NewID func() string
}

// Pipeline runs research queries.
type Pipeline struct {
	settings types.Settings
	catalog  *sources.Catalog
	model    string
	archive  Archiver
	out      io.Writer
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	rewriter   *rewrite.Rewriter
	selector   *selector.Selector
	aggregator *aggregate.Aggregator
	filter     *filter.Filter
	synth      *synthesize.Synthesizer
}

// Outcome is everything a successful run produced.
type Outcome struct {
	RunID        string
	ReportPath   string
	ManifestPath string

	Query     types.ResearchQuery
	Selection types.SelectionDecision
	Gathered  aggregate.Output
	Decisions []types.FilterDecision
	Records   []types.ResultRecord
	Synthesis types.SynthesisResult
	Document  types.ReportDocument
}

// New wires the pipeline stages from d.
func New(d Deps) (*Pipeline, error) {
	if d.Catalog == nil || d.Catalog.Len() == 0 {
		return nil, errors.New("research pipeline needs at least one source")
	}
	if d.LLM == nil {
		return nil, errors.New("research pipeline needs a model client")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Out == nil {
		d.Out = io.Discard
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Model == "" {
		d.Model = d.Settings.LLM.Model
	}

	s := d.Settings
	return &Pipeline{
		settings: s,
		catalog:  d.Catalog,
		model:    d.Model,
		archive:  d.Archive,
		out:      d.Out,
		logger:   d.Logger,
		now:      d.Now,
		newID:    d.NewID,

		rewriter: rewrite.New(d.LLM, d.Logger),
		selector: selector.New(d.LLM, d.Logger),
		aggregator: aggregate.New(d.Catalog, aggregate.Options{
			Concurrency:   s.Search.Concurrency,
			SourceTimeout: s.Search.Timeout,
		}, d.Logger),
		filter: filter.New(d.LLM, filter.Options{
			BatchSize:   s.Features.FilterBatchSize,
			Concurrency: s.Features.FilterConcurrency,
		}, d.Logger),
		synth: synthesize.New(d.LLM, synthesize.Options{
			MinInsights: s.Features.MinInsights,
			MaxInsights: s.Features.MaxInsights,
		}, d.Logger),
	}, nil
}

// Run researches q and writes the report, named outputName or a timestamped
// name when outputName is empty. Fatal errors are *StageError with
// credentials scrubbed. Nothing is written when the run fails or ctx is
// cancelled before the report is saved.
func (p *Pipeline) Run(ctx context.Context, q types.ResearchQuery, outputName string) (Outcome, error) {
	runID := p.newID()
	logger := p.logger.With(zap.String("run_id", runID))
	steps := newProgress(p.out, p.settings.Features.QueryRewrite)
	p.header(q)

	if p.settings.Features.QueryRewrite {
		steps.next("Rewriting search query...")
		res := p.rewriter.Rewrite(ctx, q.Topic)
		if !res.Fallback {
			q = q.WithSearchQuery(res.Value.Query)
			steps.detail("Search query: %s", q.EffectiveQuery())
		} else {
			steps.detail("Keeping the topic as the search query")
		}
		if err := ctx.Err(); err != nil {
			return Outcome{}, p.fail(StageRewrite, err)
		}
	}

	steps.next("Selecting sources...")
	sel := p.selector.Select(ctx, q.Topic, p.catalog, q.Excluded, q.SelectSources)
	if err := ctx.Err(); err != nil {
		return Outcome{}, p.fail(StageSelect, err)
	}
	steps.detail("Querying %d of %d sources: %s", len(sel.Selected()), p.catalog.Len(), strings.Join(sel.Selected(), ", "))
	logger.Info("sources selected", zap.Strings("sources", sel.Selected()), zap.Bool("fallback", sel.Fallback))

	steps.next("Searching sources...")
	gathered, err := p.aggregator.Gather(ctx, sources.RequestFor(q), sel, p.out)
	if errors.Is(err, aggregate.ErrAllSourcesFailed) {
		err = fmt.Errorf("%w: %w", ErrNoResults, err)
	}
	if err != nil {
		return Outcome{}, p.fail(StageGather, err)
	}
	fmt.Fprint(p.out, "      ")
	aggregate.FormatSummary(gathered, p.out)
	fmt.Fprintln(p.out)
	if len(gathered.Records) == 0 {
		return Outcome{}, p.fail(StageGather, ErrNoResults)
	}

	steps.next("Filtering for relevance...")
	kept, decisions := p.filter.Apply(ctx, q.Topic, gathered.Records, q.FilterRelevance)
	if err := ctx.Err(); err != nil {
		return Outcome{}, p.fail(StageFilter, err)
	}
	steps.detail("Kept %d of %d results", len(kept), len(gathered.Records))
	if len(kept) == 0 {
		return Outcome{}, p.fail(StageFilter, ErrNoResults)
	}

	steps.next(fmt.Sprintf("Analyzing research with %s...", p.model))
	syn, err := p.synth.Synthesize(ctx, q.Topic, kept)
	if err != nil {
		return Outcome{}, p.fail(StageSynthesize, err)
	}
	steps.detail("Generated %d insights", len(syn.Insights))

	steps.next("Writing report...")
	if err := ctx.Err(); err != nil {
		return Outcome{}, p.fail(StageSave, err)
	}
	generated := p.now()
	doc := report.Render(report.Input{
		Query:       q,
		Selection:   sel,
		Records:     kept,
		Synthesis:   syn,
		Model:       p.model,
		GeneratedAt: generated,
		Labels:      p.catalog,
		Filename:    outputName,
	})
	path, err := report.Save(doc, p.settings.Output.Dir)
	if err != nil {
		return Outcome{}, p.fail(StageSave, err)
	}
	steps.detail("Saved to: %s", path)
	logger.Info("report saved", zap.String("path", path), zap.Int("records", len(kept)))

	out := Outcome{
		RunID:      runID,
		ReportPath: path,
		Query:      q,
		Selection:  sel,
		Gathered:   gathered,
		Decisions:  decisions,
		Records:    kept,
		Synthesis:  syn,
		Document:   doc,
	}

	if p.settings.Output.Manifest {
		mpath := report.ManifestPath(path)
		err := report.WriteManifest(mpath, report.Manifest{
			RunID:             runID,
			GeneratedAt:       generated,
			Report:            path,
			Model:             p.model,
			Query:             q,
			Selection:         sel,
			Queried:           gathered.Queried,
			Counts:            gathered.Counts,
			DuplicatesRemoved: gathered.DupsRemoved,
			Failures:          gathered.Failures,
			Filter:            decisions,
			Records:           len(kept),
			Insights:          len(syn.Insights),
		})
		if err != nil {
			logger.Warn("manifest not written", zap.Error(err))
		} else {
			out.ManifestPath = mpath
		}
	}

	if p.settings.Archive.Enabled && p.archive != nil {
		err := p.archive.Save(ctx, archive.Run{
			ID:          runID,
			CreatedAt:   generated,
			Topic:       q.Topic,
			SearchQuery: q.SearchQuery,
			Model:       p.model,
			ReportPath:  path,
			Summary:     syn.Summary,
			Insights:    syn.Insights,
			Records:     kept,
		})
		if err != nil {
			logger.Warn("run not archived", zap.Error(err))
		}
	}

	p.footer(out)
	return out, nil
}

func (p *Pipeline) fail(stage Stage, err error) error {
	secrets := p.settings.Keys.Secrets()
	if k := p.settings.LLM.APIKey; k != "" {
		secrets = append(secrets, k)
	}
	p.logger.Debug("run failed", zap.String("stage", string(stage)), zap.Error(redact(err, secrets)))
	return &StageError{Stage: stage, Err: redact(err, secrets)}
}

func (p *Pipeline) header(q types.ResearchQuery) {
	fmt.Fprintf(p.out, "\n%s\nDeep Research Tool - Starting Analysis\n%s\n\n", banner, banner)
	fmt.Fprintf(p.out, "Topic: %s\n", q.Topic)
	fmt.Fprintf(p.out, "Max Results: %d\n", q.MaxResults)
	if !q.DateFrom.IsZero() {
		fmt.Fprintf(p.out, "Date From: %s\n", q.DateFrom.Format(types.DateLayout))
	}
	if !q.DateTo.IsZero() {
		fmt.Fprintf(p.out, "Date To: %s\n", q.DateTo.Format(types.DateLayout))
	}
	fmt.Fprintln(p.out)
}

func (p *Pipeline) footer(o Outcome) {
	fmt.Fprintf(p.out, "%s\nResearch analysis complete!\n%s\n\n", banner, banner)
	fmt.Fprintln(p.out, "Quick Summary:")
	fmt.Fprintf(p.out, "- Papers analyzed: %d\n", len(o.Records))
	fmt.Fprintf(p.out, "- Key insights: %d\n", len(o.Synthesis.Insights))
	fmt.Fprintf(p.out, "- Report location: %s\n\n", o.ReportPath)
}

// progress prints numbered step lines like "[2/5] Searching sources...".
type progress struct {
	w     io.Writer
	step  int
	total int
}

func newProgress(w io.Writer, withRewrite bool) *progress {
	total := 5
	if withRewrite {
		total++
	}
	return &progress{w: w, total: total}
}

func (p *progress) next(msg string) {
	p.step++
	fmt.Fprintf(p.w, "[%d/%d] %s\n", p.step, p.total, msg)
}

func (p *progress) detail(format string, args ...any) {
	fmt.Fprintf(p.w, "      "+format+"\n\n", args...)
}
