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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storeplanner/internal/backend"
	"storeplanner/internal/config"
	"storeplanner/internal/crash"
	applog "storeplanner/internal/log"
	"storeplanner/internal/mindmap"
	"storeplanner/internal/storage"
	"storeplanner/internal/stream"
	"storeplanner/internal/telemetry"
	"storeplanner/internal/textlayout"
	"storeplanner/internal/version"
)

// app carries what every command shares: configuration, the backend client and the cache.
// Resources are opened on first use and released by close.
type app struct {
	scope *crash.Scope
	cfg   config.AppConfig
	token string
	log   *slog.Logger

	backendURL string
	fontFile   string

	client *backend.Client
	cache  *storage.Cache
}

func newRootCmd(scope *crash.Scope) (*cobra.Command, func()) {
	a := &app{scope: scope, log: applog.WithComponent("cli")}
	root := &cobra.Command{
		Use:   "storeplanner",
		Short: "Restaurant business-planning client",
		Long: `StorePlanner talks to the planning backend: it shows the eight-axis mindmap,
streams AI summaries and advice, and exports the plan as SVG, PNG or PDF.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.backendURL, "backend", "", "backend base URL (overrides config and "+config.EnvBackendURL+")")
	root.PersistentFlags().StringVar(&a.fontFile, "font", "", "TTF/OTF with Japanese glyphs for labels and reports")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	root.AddCommand(
		newVersionCmd(),
		newLoginCmd(a),
		newLogoutCmd(),
		newMindmapCmd(a),
		newSummaryCmd(a),
		newAdviceCmd(a),
		newDashboardCmd(a),
		newAxesCmd(a),
		newAudienceCmd(a),
		newReportCmd(a),
		newCacheCmd(a),
		newUICmd(a),
	)
	scope.OnCrash(a.close)
	return root, a.close
}

func (a *app) init() error {
	cfg, tok, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.backendURL != "" {
		cfg.Backend.BaseURL = a.backendURL
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	a.log = applog.WithComponent("cli")

	tc := telemetry.FromEnv()
	tc.OptIn = cfg.General.TelemetryOptIn
	telemetry.SetDefault(telemetry.New(tc))

	a.cfg, a.token = cfg, tok
	a.log.Debug("config loaded", slog.String("backend", cfg.Backend.BaseURL), slog.Bool("token", tok != ""))
	return nil
}

// backend returns the API client; without a stored token it fails like a 401 would.
func (a *app) backend() (*backend.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	if strings.TrimSpace(a.token) == "" {
		return nil, fmt.Errorf("no access token: %w", backend.ErrUnauthorized)
	}
	a.client = backend.NewFromConfig(a.cfg.Backend, a.token)
	return a.client, nil
}

func (a *app) connector() (stream.Connector, error) {
	c, err := a.backend()
	if err != nil {
		return nil, err
	}
	return stream.BackendConnector{Client: c}, nil
}

// openCache opens the summary cache at the configured path.
func (a *app) openCache() (*storage.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	path, err := a.cfg.CachePath()
	if err != nil {
		return nil, err
	}
	c, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	a.cache = c
	return c, nil
}

// optionalCache is openCache for commands that work without a cache.
func (a *app) optionalCache() *storage.Cache {
	c, err := a.openCache()
	if err != nil {
		a.log.Warn("summary cache unavailable", slog.Any("err", err))
		return nil
	}
	return c
}

// observer reports finished streams to telemetry.
func (a *app) observer() stream.Observer {
	return func(field, _ string, s stream.State) {
		telemetry.Default().StreamFinished(field, s.Phase.String(), len(s.Text))
	}
}

// layout is the mindmap layout, measuring labels with --font when given.
func (a *app) layout() (mindmap.Config, error) {
	cfg := mindmap.DefaultConfig()
	if a.fontFile == "" {
		return cfg, nil
	}
	lib := textlayout.NewFontLibrary()
	if err := lib.LoadFile("", false, a.fontFile); err != nil {
		return cfg, err
	}
	cfg.Fonts = textlayout.OTProvider{Lib: lib, Fallback: textlayout.BasicProvider{}}
	return cfg, nil
}

func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("close cache", slog.Any("err", err))
		}
		a.cache = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	t := telemetry.Default()
	t.Flush(ctx)
	t.Close()
}

// signalContext ends on Ctrl-C so streams are torn down instead of left dangling.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

// exactArgs is cobra.ExactArgs reported as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "StorePlanner")
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
