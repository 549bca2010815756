/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"storeplanner/internal/domain"
	"storeplanner/internal/export"
	"storeplanner/internal/mindmap"
)

func newMindmapCmd(a *app) *cobra.Command {
	var (
		svgOut, pngOut string
		all, crop      bool
		scale          float64
	)
	cmd := &cobra.Command{
		Use:   "mindmap",
		Short: "Show mindmap progress and export the diagram",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			st, err := c.GetMindmapState(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printProgress(out, st.Progress())
			if svgOut == "" && pngOut == "" {
				return nil
			}

			cfg, err := a.layout()
			if err != nil {
				return err
			}
			var exp *mindmap.Expansion // nil shows every branch
			if !all {
				exp = mindmap.NewExpansion()
			}
			d := mindmap.Layout(cfg, st, exp)
			if svgOut != "" {
				if err := export.ExportMindmapSVG(d, svgOut, export.SVGOptions{Crop: crop}); err != nil {
					return err
				}
				fmt.Fprintln(out, "Wrote", svgOut)
			}
			if pngOut != "" {
				if err := export.ExportMindmapPNG(d, pngOut, export.PNGOptions{Crop: crop, Scale: scale}); err != nil {
					return err
				}
				fmt.Fprintln(out, "Wrote", pngOut)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&svgOut, "svg", "", "write the diagram as SVG")
	f.StringVar(&pngOut, "png", "", "write the diagram as PNG")
	f.BoolVar(&all, "all", true, "unfold every axis and step")
	f.BoolVar(&crop, "crop", false, "crop to the drawn nodes instead of the full canvas")
	f.Float64Var(&scale, "scale", 0.5, "PNG pixels per canvas unit")
	return cmd
}

func printProgress(w io.Writer, p map[domain.AxisCode]domain.Progress) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AXIS\tDONE\tIN PROGRESS\tPENDING\tRATIO")
	for _, ax := range domain.Axes() {
		pr := p[ax.Code]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.0f%%\n", ax.Name, pr.Completed, pr.InProgress, pr.Pending, pr.Ratio()*100)
	}
	_ = tw.Flush()
}
