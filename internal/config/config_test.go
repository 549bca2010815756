/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

// isolate points the config directory at a temp dir and swaps in the in-memory keyring.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("AppData", dir)
	t.Setenv(EnvAccessToken, "")
	keyring.MockInit()
	return dir
}

func TestEnvOverridesBackendURL(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendURL, "https://example.test:8443")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Backend.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Backend.BaseURL = %q, want %q", got, want)
	}
	if name, ok := EnvOverrideFor("backend.base_url"); !ok || name != EnvBackendURL {
		t.Fatalf("EnvOverrideFor = %q, %v", name, ok)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestMergeKeepsViewportDefaultsForZeroValues(t *testing.T) {
	dst := Defaults()
	var src AppConfig
	src.Viewport.MaxScale = 10
	mergeInto(&dst, &src)
	if dst.Viewport.MaxScale != 10 {
		t.Fatalf("MaxScale not merged: %v", dst.Viewport.MaxScale)
	}
	if dst.Viewport.MinScale != 0.3 || dst.Viewport.ZoomStep != 1.25 || dst.Viewport.FitMargin != 0.9 {
		t.Fatalf("zero values overwrote defaults: %#v", dst.Viewport)
	}
	if len(dst.Stream.AdviceCategories) != 5 {
		t.Fatalf("advice categories lost: %v", dst.Stream.AdviceCategories)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/spl.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/spl.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/log/spl.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/log/spl.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestSaveAndLoadRoundTripsFileAndToken(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("config dir layout differs on this platform")
	}
	dir := isolate(t)
	cfg := Defaults()
	cfg.Backend.BaseURL = "https://planner.example"
	cfg.Viewport.MaxScale = 10
	if err := Save(cfg, "tok-123"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "storeplanner", "config.yaml")); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Backend.BaseURL != "https://planner.example" || got.Viewport.MaxScale != 10 {
		t.Fatalf("file values not loaded: %#v", got)
	}
	if tok != "tok-123" {
		t.Fatalf("token = %q", tok)
	}
}

func TestTokenLifecycle(t *testing.T) {
	isolate(t)
	if tok, err := LoadToken(); err != nil || tok != "" {
		t.Fatalf("expected empty token, got %q, %v", tok, err)
	}
	if err := SaveToken("  "); err == nil {
		t.Fatalf("expected error for blank token")
	}
	if err := SaveToken("abc"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	if tok, _ := LoadToken(); tok != "abc" {
		t.Fatalf("LoadToken = %q", tok)
	}
	t.Setenv(EnvAccessToken, "from-env")
	if tok, _ := LoadToken(); tok != "from-env" {
		t.Fatalf("env token should win, got %q", tok)
	}
	t.Setenv(EnvAccessToken, "")
	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("second ClearToken should succeed: %v", err)
	}
	if tok, _ := LoadToken(); tok != "" {
		t.Fatalf("token survived clear: %q", tok)
	}
}

func TestBackendTimeoutFallback(t *testing.T) {
	if got := (BackendConfig{}).Timeout(); got != 15*time.Second {
		t.Fatalf("default timeout = %v", got)
	}
	if got := (BackendConfig{TimeoutMs: 250}).Timeout(); got != 250*time.Millisecond {
		t.Fatalf("timeout = %v", got)
	}
}
