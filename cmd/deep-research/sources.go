// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/pkg/types"
)

func newSourcesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the sources deep-research can search",
		Long: `Sources lists every built-in source with the strengths the model sees
when it selects sources for a topic. Sources left out of
search.enabled_sources are marked disabled; sources named with
--exclude-source are marked excluded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings()
			if err != nil {
				return err
			}
			excluded, _ := cmd.Flags().GetStringSlice("exclude-source")
			q := types.ResearchQuery{Excluded: types.NormalizeIDs(excluded)}
			enabled := s.Search.EnabledSources

			w := cmd.OutOrStdout()
			cat := newCatalog(s, a.logger)
			if unknown := cat.Unknown(q.Excluded); len(unknown) > 0 {
				a.logger.Warn("ignoring unknown excluded sources", zap.Strings("sources", unknown))
			}
			for _, d := range cat.Descriptors() {
				var marks []string
				if len(enabled) > 0 && !lo.Contains(enabled, d.ID) {
					marks = append(marks, "disabled")
				}
				if q.IsExcluded(d.ID) {
					marks = append(marks, "excluded")
				}
				status := ""
				if len(marks) > 0 {
					status = " (" + strings.Join(marks, ", ") + ")"
				}
				fmt.Fprintf(w, "%-18s %s%s\n", d.ID, cat.Label(d.ID), status)
				if d.Strengths != "" {
					fmt.Fprintf(w, "%-18s %s\n", "", d.Strengths)
				}
			}
			fmt.Fprintf(w, "\n%d sources\n", cat.Len())
			return nil
		},
	}
	cmd.Flags().StringSlice("exclude-source", nil, "source ids to mark as excluded (comma-separated)")
	return cmd
}
