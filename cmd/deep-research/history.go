// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/archive"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived research runs or search their records",
		Long: `History reads the local run archive. Runs are recorded when the
archive is enabled in the config (archive.enabled) or with --archive.

Without flags it lists the most recent runs. With --search it finds
archived records whose title or abstract contains every search term.
With --run it shows one run in full.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if _, err := os.Stat(s.Archive.Path); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(w, "No archive at %s. Run with --archive to record runs.\n", s.Archive.Path)
				return nil
			}

			store, err := archive.Open(s.Archive.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if id, _ := cmd.Flags().GetString("run"); strings.TrimSpace(id) != "" {
				run, err := store.Load(cmd.Context(), strings.TrimSpace(id))
				if err != nil {
					return err
				}
				printRun(w, run)
				return nil
			}

			limit, _ := cmd.Flags().GetInt("limit")
			query, _ := cmd.Flags().GetString("search")
			if strings.TrimSpace(query) != "" {
				matches, err := store.Search(cmd.Context(), query, limit)
				if err != nil {
					return err
				}
				printMatches(w, matches)
				return nil
			}

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(w, runs)
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of runs or records to show")
	cmd.Flags().String("search", "", "search archived records by title and abstract")
	cmd.Flags().String("run", "", "show the archived run with this id")
	cmd.MarkFlagsMutuallyExclusive("run", "search")
	return cmd
}

func printRuns(w io.Writer, runs []archive.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No archived runs.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-16s  %7s  %8s  %s\n", "Run", "When", "Records", "Insights", "Topic")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-16s  %7d  %8d  %s\n",
			r.ID, humanize.Time(r.CreatedAt), r.Records, r.Insights, r.Topic)
	}
	fmt.Fprintf(w, "\n%d runs\n", len(runs))
}

func printMatches(w io.Writer, matches []archive.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matching records.")
		return
	}
	for i, m := range matches {
		fmt.Fprintf(w, "%d. %s [%s]\n", i+1, m.Record.Title, m.Record.Source)
		if m.Record.URL != "" {
			fmt.Fprintf(w, "   %s\n", m.Record.URL)
		}
		fmt.Fprintf(w, "   from %q, %s (run %s)\n", m.Topic, humanize.Time(m.CreatedAt), m.RunID)
	}
	fmt.Fprintf(w, "\n%d records\n", len(matches))
}

func printRun(w io.Writer, r archive.Run) {
	fmt.Fprintf(w, "Run:      %s\n", r.ID)
	fmt.Fprintf(w, "Topic:    %s\n", r.Topic)
	if r.SearchQuery != "" && r.SearchQuery != r.Topic {
		fmt.Fprintf(w, "Query:    %s\n", r.SearchQuery)
	}
	fmt.Fprintf(w, "When:     %s (%s)\n", r.CreatedAt.Format("2006-01-02 15:04"), humanize.Time(r.CreatedAt))
	if r.Model != "" {
		fmt.Fprintf(w, "Model:    %s\n", r.Model)
	}
	if r.ReportPath != "" {
		fmt.Fprintf(w, "Report:   %s\n", r.ReportPath)
	}

	if r.Summary != "" {
		fmt.Fprintf(w, "\nSummary\n\n%s\n", r.Summary)
	}
	if len(r.Insights) > 0 {
		fmt.Fprintln(w, "\nKey insights")
		fmt.Fprintln(w)
		for i, in := range r.Insights {
			fmt.Fprintf(w, "%d. %s\n", i+1, in)
		}
	}

	fmt.Fprintf(w, "\nRecords (%d)\n\n", len(r.Records))
	for i, rec := range r.Records {
		fmt.Fprintf(w, "%d. %s [%s]\n", i+1, rec.Title, rec.Source)
		if rec.URL != "" {
			fmt.Fprintf(w, "   %s\n", rec.URL)
		}
	}
}
