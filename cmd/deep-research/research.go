// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/archive"
	"github.com/pdiddy/deep-research/internal/research"
	"github.com/pdiddy/deep-research/pkg/types"
)

const showWidth = 100

func addResearchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("topic", "", "research topic (alternative to the positional argument)")
	f.Int("max-results", 0, "maximum results per source, 1 to 100 (default from config, 10)")
	f.String("date-from", "", "earliest publication date, YYYY-MM-DD (default from config, one year ago)")
	f.String("date-to", "", "latest publication date, YYYY-MM-DD")
	f.StringP("output", "o", "", "report filename (default research_report_<timestamp>.md)")
	f.StringSlice("exclude-source", nil, "source ids never to query (comma-separated)")
	f.Bool("no-source-selection", false, "query every enabled source instead of asking the model")
	f.Bool("no-relevance-filter", false, "keep every result instead of asking the model")
	f.Bool("rewrite-query", false, "let the model rewrite the topic into a search query")
	f.Bool("show", false, "render the finished report in the terminal")
	f.Bool("archive", false, "record this run in the local history database")
}

func runResearch(cmd *cobra.Command, a *app, args []string) error {
	f := cmd.Flags()
	flagTopic, _ := f.GetString("topic")
	topic := strings.Join(args, " ")
	switch {
	case topic != "" && flagTopic != "":
		return usagef("give the topic either as an argument or with --topic, not both")
	case topic == "":
		topic = flagTopic
	}
	if strings.TrimSpace(topic) == "" {
		return usagef("a research topic is required")
	}

	s, err := a.settings()
	if err != nil {
		return err
	}

	q, err := queryFromFlags(cmd, topic, s)
	if err != nil {
		return err
	}

	if rw, _ := f.GetBool("rewrite-query"); rw {
		s.Features.QueryRewrite = true
	}
	if ar, _ := f.GetBool("archive"); ar {
		s.Archive.Enabled = true
	}

	all := newCatalog(s, a.logger)
	if unknown := all.Unknown(q.Excluded); len(unknown) > 0 {
		a.logger.Warn("ignoring unknown excluded sources", zap.Strings("sources", unknown))
	}
	cat, unknown := all.Restrict(s.Search.EnabledSources)
	if len(unknown) > 0 {
		a.logger.Warn("ignoring unknown enabled sources", zap.Strings("sources", unknown))
	}
	completer, err := newCompleter(s.LLM, a.logger)
	if err != nil {
		return err
	}

	deps := research.Deps{
		Settings: s,
		Catalog:  cat,
		LLM:      completer,
		Out:      cmd.OutOrStdout(),
		Logger:   a.logger,
		Now:      now,
		NewID:    newID,
	}
	if s.Archive.Enabled {
		store, err := archive.Open(s.Archive.Path)
		if err != nil {
			a.logger.Warn("archive unavailable, run will not be recorded", zap.Error(err))
		} else {
			defer store.Close()
			deps.Archive = store
		}
	}

	p, err := research.New(deps)
	if err != nil {
		return err
	}

	output, _ := f.GetString("output")
	res, err := p.Run(cmd.Context(), q, output)
	if err != nil {
		return err
	}

	if show, _ := f.GetBool("show"); show {
		if err := renderMarkdown(cmd.OutOrStdout(), res.Document.Markdown); err != nil {
			a.logger.Warn("could not render report", zap.Error(err))
		}
	}
	return nil
}

// queryFromFlags validates the command line against the loaded defaults.
func queryFromFlags(cmd *cobra.Command, topic string, s types.Settings) (types.ResearchQuery, error) {
	f := cmd.Flags()

	maxResults := s.Search.MaxResults
	if f.Changed("max-results") {
		maxResults, _ = f.GetInt("max-results")
	}

	from, err := dateFlag(cmd, "date-from")
	if err != nil {
		return types.ResearchQuery{}, err
	}
	to, err := dateFlag(cmd, "date-to")
	if err != nil {
		return types.ResearchQuery{}, err
	}
	// The configured default never contradicts an explicit date-to.
	if !f.Changed("date-from") && (to.IsZero() || !s.Search.DefaultDateFrom.After(to)) {
		from = s.Search.DefaultDateFrom
	}

	excluded, _ := f.GetStringSlice("exclude-source")
	noSel, _ := f.GetBool("no-source-selection")
	noFilter, _ := f.GetBool("no-relevance-filter")

	return types.NewResearchQuery(types.QueryParams{
		Topic:           topic,
		DateFrom:        from,
		DateTo:          to,
		MaxResults:      maxResults,
		Excluded:        excluded,
		SelectSources:   s.Features.SourceSelection && !noSel,
		FilterRelevance: s.Features.RelevanceFilter && !noFilter,
	})
}

func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(types.DateLayout, raw)
	if err != nil {
		return time.Time{}, usagef("--%s %q is not a YYYY-MM-DD date", name, raw)
	}
	return t, nil
}

func renderMarkdown(w io.Writer, md string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithWordWrap(showWidth),
		glamour.WithStandardStyle("dark"),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}
