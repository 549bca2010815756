/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"github.com/spf13/cobra"

	"storeplanner/internal/ui"
)

func newUICmd(a *app) *cobra.Command {
	var focusZoom float64
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Launch the desktop mindmap (build with -tags fyne for the full UI)",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			conn, err := a.connector()
			if err != nil {
				return err
			}
			cfg, err := a.layout()
			if err != nil {
				return err
			}
			return ui.Run(ui.Options{
				Session: ui.SessionOptions{
					Source:    c,
					Streams:   conn,
					Cache:     a.optionalCache(),
					Layout:    cfg,
					Viewport:  viewportOptions(a),
					Observer:  a.observer(),
					FocusZoom: focusZoom,
				},
				Scope: a.scope,
			})
		},
	}
	cmd.Flags().Float64Var(&focusZoom, "focus-zoom", 1.5, "scale used when centering the selected item")
	return cmd
}
