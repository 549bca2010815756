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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"storeplanner/internal/backend"
	"storeplanner/internal/domain"
	"storeplanner/internal/export"
	"storeplanner/internal/storage"
	"storeplanner/internal/stream"
	"storeplanner/internal/ui"
	"storeplanner/internal/viewport"
)

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <nodeId>",
		Short: "Stream the AI summary of a mindmap item",
		Long: `Prints the summary of a mindmap item (for example concept_step1_1-1) while it is
generated. A summary the backend already has is printed directly. When the stream fails
the last cached summary is shown instead.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, _, _, ok := domain.FindItem(id); !ok {
				return usageError{fmt.Errorf("unknown mindmap item %q", id)}
			}
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
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			s := ui.NewSession(ui.SessionOptions{
				Source:   c,
				Streams:  conn,
				Cache:    a.optionalCache(),
				Layout:   cfg,
				Viewport: viewportOptions(a),
				Observer: a.observer(),
			})
			defer s.Close()
			if err := s.Load(ctx); errors.Is(err, backend.ErrUnauthorized) {
				return err
			}

			s.Select(ctx, id)
			out := cmd.OutOrStdout()
			v := s.Summary(ctx)
			fmt.Fprintf(out, "# %s\n", v.Title)
			if v.Phase != stream.Streaming {
				fmt.Fprintln(out, v.Text)
				return nil
			}
			if follow(ctx, out, s.SummaryStream()) > 0 {
				fmt.Fprintln(out)
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			v = s.Summary(ctx)
			switch {
			case v.FromCache:
				fmt.Fprintf(cmd.ErrOrStderr(), "stream failed (%v); showing the last saved summary\n", v.Err)
				fmt.Fprintln(out, v.Text)
			case v.Phase == stream.Errored:
				return v.Err
			}
			return nil
		},
	}
}

// follow prints text as it arrives until the stream reaches a terminal phase or ctx ends.
// It returns the number of bytes printed.
func follow(ctx context.Context, w io.Writer, acc *stream.Accumulator) int {
	ch, unsubscribe := acc.Subscribe()
	defer unsubscribe()
	printed := 0
	for {
		select {
		case <-ctx.Done():
			return printed
		case st, ok := <-ch:
			if !ok {
				return printed
			}
			if len(st.Text) > printed {
				fmt.Fprint(w, st.Text[printed:])
				printed = len(st.Text)
			}
			if st.Phase.Terminal() {
				return printed
			}
		}
	}
}

func newAdviceCmd(a *app) *cobra.Command {
	var categories []string
	cmd := &cobra.Command{
		Use:   "advice <sessionId>",
		Short: "Stream the advice fields of a simulation session",
		Long: `Streams every advice category of a simulation session at the same time. Each field
succeeds or fails on its own; a failed field falls back to its cached text.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]
			conn, err := a.connector()
			if err != nil {
				return err
			}
			cats := categories
			if len(cats) == 0 {
				cats = a.cfg.Stream.AdviceCategories
			}
			cache := a.optionalCache()
			report := a.observer()
			set := stream.NewSet(conn, cats, stream.WithObserver(func(field, id string, st stream.State) {
				report(field, id, st)
				if !st.IsDone() || cache == nil {
					return
				}
				key := storage.AdviceKey(id, strings.TrimPrefix(field, "advice/"))
				if err := cache.Put(context.Background(), storage.Entry{Kind: storage.KindAdvice, Key: key, Text: st.Text}); err != nil {
					a.log.Warn("cache advice failed", slog.String("key", key), slog.Any("err", err))
				}
			}))
			defer set.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			set.StartAll(ctx, sessionID)
			states, waitErr := set.Wait(ctx)

			out := cmd.OutOrStdout()
			failed := 0
			for _, cat := range set.Fields() {
				st := states[cat]
				key := storage.AdviceKey(sessionID, cat)
				fmt.Fprintf(out, "## %s\n", export.EntryHeading(storage.Entry{Kind: storage.KindAdvice, Key: key}))
				switch st.Phase {
				case stream.Done:
					fmt.Fprintln(out, st.Text)
				case stream.Errored:
					failed++
					if st.Text != "" {
						fmt.Fprintln(out, st.Text)
					}
					fmt.Fprintf(out, "(failed: %s)\n", st.Message())
					if cache != nil {
						if e, ok, err := cache.Get(context.Background(), storage.KindAdvice, key); err == nil && ok {
							fmt.Fprintln(out, "(last saved advice)")
							fmt.Fprintln(out, e.Text)
						}
					}
				default:
					fmt.Fprintln(out, "(interrupted)")
				}
				fmt.Fprintln(out)
			}
			if waitErr != nil {
				return waitErr
			}
			if n := len(set.Fields()); n > 0 && failed == n {
				return fmt.Errorf("all %d advice streams failed", n)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&categories, "category", nil, "advice categories to stream (default from config)")
	return cmd
}

func viewportOptions(a *app) viewport.Options {
	v := a.cfg.Viewport
	return viewport.Options{MinScale: v.MinScale, MaxScale: v.MaxScale, ZoomStep: v.ZoomStep, WheelStep: v.WheelStep, FitMargin: v.FitMargin}
}
