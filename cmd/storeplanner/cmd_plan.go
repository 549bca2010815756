/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"storeplanner/internal/domain"
	"storeplanner/internal/export"
	"storeplanner/internal/storage"
)

func newDashboardCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the per-axis scores",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			d, err := c.GetDashboard(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(d.FillAxisSummaries())
			}
			if d.Concept.Title != "" {
				fmt.Fprintf(out, "Concept: %s\n", d.Concept.Title)
				if d.Concept.Description != "" {
					fmt.Fprintln(out, d.Concept.Description)
				}
				fmt.Fprintln(out)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AXIS\tSCORE\tOK LINE\t")
			for _, p := range d.RadarPoints() {
				mark := ""
				if p.Value < p.OKLine {
					mark = "below"
				}
				fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%s\n", p.Label, p.Value, p.OKLine, mark)
			}
			_ = tw.Flush()
			if d.DetailProgress.Incomplete() {
				fmt.Fprintf(out, "\nDetail questions: %d/%d answered\n", d.DetailProgress.Answered, d.DetailProgress.Total)
			}
			if nf := d.NextFocus; nf != nil {
				fmt.Fprintf(out, "\nNext focus: %s\n", nf.AxisName)
				if nf.Message != "" {
					fmt.Fprintln(out, nf.Message)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the dashboard as JSON")
	return cmd
}

func newAxesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "axes",
		Short: "List the planning axes and their steps",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			axes, err := c.ListAxes(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ax := range axes {
				code := ax.Code
				if canon, ok := ax.Canonical(); ok {
					code = string(canon)
				}
				fmt.Fprintf(out, "%s (%s)\n", ax.Name, code)
				for _, st := range ax.Steps {
					fmt.Fprintf(out, "  %d. %s\n", st.Level, st.Title)
				}
			}
			return nil
		},
	}
}

func newAudienceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audience <type>",
		Short: "Rewrite the plan for an audience (family, staff, bank, public)",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]
			if !domain.ValidAudience(code) {
				var names []string
				for _, au := range domain.Audiences() {
					names = append(names, au.Code)
				}
				return usageError{fmt.Errorf("unknown audience %q (one of %s)", code, strings.Join(names, ", "))}
			}
			c, err := a.backend()
			if err != nil {
				return err
			}
			sum, err := c.GenerateAudienceSummary(cmd.Context(), code)
			if err != nil {
				return err
			}
			if cache := a.optionalCache(); cache != nil {
				if err := cache.Put(cmd.Context(), storage.Entry{Kind: storage.KindAudience, Key: code, Text: sum.Content}); err != nil {
					a.log.Warn("cache audience summary failed", slog.Any("err", err))
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum.Content)
			return nil
		},
	}
}

func newReportCmd(a *app) *cobra.Command {
	var (
		outPath string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export the plan as a PDF report",
		Long:  "Writes scores, mindmap progress and the cached summaries into a PDF. Use --font for Japanese text.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			d, err := c.GetDashboard(ctx)
			if err != nil {
				return err
			}
			st, err := c.GetMindmapState(ctx)
			if err != nil {
				return err
			}
			cache, err := a.openCache()
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			entries, err := cache.Recent(ctx, limit)
			if err != nil {
				return err
			}
			title := d.Concept.Title
			if title == "" {
				title = "StorePlanner"
			}
			r := export.Report{
				Title:     title,
				Generated: time.Now(),
				Dashboard: d,
				Progress:  st.Progress(),
				Summaries: entries,
			}
			if err := export.ExportReportPDF(r, outPath, export.PDFOptions{FontFile: a.fontFile}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "plan.pdf", "output file")
	cmd.Flags().IntVar(&limit, "limit", 200, "most recent cached texts to include")
	return cmd
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the local cache of finished summaries",
	}
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List cached texts, newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := a.openCache()
			if err != nil {
				return err
			}
			entries, err := cache.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tKEY\tTITLE\tUPDATED\tCHARS")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", e.Kind, e.Key, export.EntryHeading(e), e.UpdatedAt.Local().Format("2006-01-02 15:04"), len([]rune(e.Text)))
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "entries to show")

	rm := &cobra.Command{
		Use:   "rm <kind> <key>",
		Short: "Delete one cached text",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := storage.Kind(args[0])
			switch kind {
			case storage.KindSummary, storage.KindAdvice, storage.KindAudience:
			default:
				return usageError{fmt.Errorf("unknown kind %q", args[0])}
			}
			cache, err := a.openCache()
			if err != nil {
				return err
			}
			return cache.Delete(context.Background(), kind, args[1])
		},
	}
	path := &cobra.Command{
		Use:   "path",
		Short: "Print the cache file location",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.cfg.CachePath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.AddCommand(list, rm, path)
	return cmd
}
