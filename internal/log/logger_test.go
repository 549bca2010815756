/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func resetLogger(t *testing.T) {
	t.Cleanup(func() { Init(Options{Level: "info", Console: os.Stderr}) })
}

func lastJSON(t *testing.T, b []byte) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(b), []byte("\n"))
	var m map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &m); err != nil {
		t.Fatalf("unmarshal %q: %v", b, err)
	}
	return m
}

func TestJSONSinksNeverSeeTickets(t *testing.T) {
	resetLogger(t)
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "spl.log")
	Init(Options{Level: "debug", Format: "json", Console: &console, File: file})

	streamURL := "http://h:8000/api/mindmap/node/n1/summary-stream?ticket=abc123&x=1"
	WithOperation(WithComponent("sse"), "dial").Warn("stream failed",
		"url", streamURL,
		"err", errors.New(`Get "`+streamURL+`": connection reset`),
		"token", "tok-9",
		slog.Group("req", slog.String("ticket", "abc123")),
	)

	fileBytes, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for name, out := range map[string][]byte{"console": console.Bytes(), "file": fileBytes} {
		if bytes.Contains(out, []byte("abc123")) || bytes.Contains(out, []byte("tok-9")) {
			t.Fatalf("%s sink leaked a credential: %s", name, out)
		}
		m := lastJSON(t, out)
		if m["app"] != "storeplanner" || m["component"] != "sse" || m["op"] != "dial" {
			t.Fatalf("%s: static attrs missing: %v", name, m)
		}
		if !strings.Contains(m["url"].(string), "ticket=REDACTED") || !strings.Contains(m["url"].(string), "x=1") {
			t.Fatalf("%s: url = %v", name, m["url"])
		}
		if m["token"] != "REDACTED" {
			t.Fatalf("%s: token = %v", name, m["token"])
		}
		if req, _ := m["req"].(map[string]any); req["ticket"] != "REDACTED" {
			t.Fatalf("%s: grouped ticket = %v", name, m["req"])
		}
	}
}

func TestConsoleLineFormat(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	Init(Options{Level: "info", Console: &buf})

	l := WithOperation(WithComponent("stream"), "run")
	l.Debug("hidden")
	l.Warn("stream ended early", "field", "summary", "auth", "Bearer xyz.123", "n", 3)

	line := buf.String()
	re := regexp.MustCompile(`^\d\d:\d\d:\d\d\.\d{3} WRN stream/run stream ended early field=summary auth="Bearer REDACTED" n=3\n$`)
	if !re.MatchString(line) {
		t.Fatalf("unexpected console line %q", line)
	}
}

func TestConsoleGroupsAndSource(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newConsoleHandler(&buf, slog.LevelInfo, true)).With("component", "viewport").WithGroup("fit")
	l.Info("fitted", "scale", 0.45, "ok", true)

	out := buf.String()
	for _, want := range []string{" INF viewport fitted", " fit.scale=0.45", " fit.ok=true", " src=logger_test.go:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestRequestIDFromContextIsLogged(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "json", Console: &buf})

	ctx := ContextWithRequestID(context.Background(), "req-42")
	if got := RequestID(ctx); got != "req-42" {
		t.Fatalf("RequestID = %q", got)
	}
	WithComponent("backend").InfoContext(ctx, "fetch")
	if m := lastJSON(t, buf.Bytes()); m["request_id"] != "req-42" || m["component"] != "backend" {
		t.Fatalf("unexpected record: %v", m)
	}
}

func TestRedactString(t *testing.T) {
	cases := map[string]string{
		`Get "http://h/s?ticket=abc&x=1": EOF`:  `Get "http://h/s?ticket=REDACTED&x=1": EOF`,
		"access_token=zz token=yy":              "access_token=REDACTED token=REDACTED",
		"Authorization: bearer eyJhbGci.x-y_z": "Authorization: Bearer REDACTED",
		"nothing to hide=here":                  "nothing to hide=here",
	}
	for in, want := range cases {
		if got := RedactString(in); got != want {
			t.Fatalf("RedactString(%q) = %q, want %q", in, got, want)
		}
	}
	if got := RedactURL("http://h/s?Ticket=abc"); strings.Contains(got, "abc") {
		t.Fatalf("RedactURL kept the ticket: %s", got)
	}
	if a := Scrub(slog.String("token", "")); a.Value.String() != "" {
		t.Fatalf("empty token should stay empty, got %v", a.Value)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SPL_LOG_LEVEL", "warn")
	t.Setenv("SPL_LOG_FORMAT", "json")
	t.Setenv("SPL_LOG_SOURCE", "1")
	t.Setenv("SPL_LOG_FILE", "")
	if o := FromEnv(); o.Level != "warn" || o.Format != "json" || !o.AddSource || o.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", o)
	}
	if parseLevel("WARNING") != slog.LevelWarn || parseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("parseLevel fallback broken")
	}
}
