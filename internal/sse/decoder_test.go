/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func collect(t *testing.T, in string) []Event {
	t.Helper()
	d := NewDecoder(strings.NewReader(in))
	var out []Event
	for {
		ev, err := d.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, ev)
	}
}

func TestDecoderNamedEvents(t *testing.T) {
	in := "event: summary_delta\ndata: {\"delta\":\"A\"}\n\n" +
		"event: summary_delta\r\ndata: {\"delta\":\"B\"}\r\n\r\n" +
		"event: done\n\n"
	got := collect(t, in)
	if len(got) != 3 {
		t.Fatalf("got %d events: %#v", len(got), got)
	}
	if got[0].Name != "summary_delta" || got[0].Data != `{"delta":"A"}` {
		t.Fatalf("first event = %#v", got[0])
	}
	if got[1].Data != `{"delta":"B"}` {
		t.Fatalf("CRLF event = %#v", got[1])
	}
	if got[2].Name != "done" || got[2].Data != "" {
		t.Fatalf("done event = %#v", got[2])
	}
}

func TestDecoderMultilineDataAndComments(t *testing.T) {
	in := ": keep-alive\n\ndata: line1\ndata:line2\nid: 7\nretry: 100\n\n"
	got := collect(t, in)
	if len(got) != 1 {
		t.Fatalf("got %#v", got)
	}
	ev := got[0]
	if ev.Name != "message" || ev.Data != "line1\nline2" || ev.ID != "7" {
		t.Fatalf("event = %#v", ev)
	}
}

func TestDecoderDropsUnterminatedBlock(t *testing.T) {
	got := collect(t, "event: summary_delta\ndata: {\"delta\":\"A\"}\n\nevent: done\ndata: x")
	if len(got) != 1 || got[0].Name != "summary_delta" {
		t.Fatalf("got %#v", got)
	}
}

func TestDecoderFieldWithoutColon(t *testing.T) {
	got := collect(t, "data\n\n")
	if len(got) != 1 || got[0].Data != "" || got[0].Name != "message" {
		t.Fatalf("got %#v", got)
	}
}

func TestRedactURL(t *testing.T) {
	got := RedactURL("http://h:8000/api/mindmap/node/n1/summary-stream?ticket=abc123&x=1")
	if strings.Contains(got, "abc123") {
		t.Fatalf("ticket leaked: %s", got)
	}
	if !strings.Contains(got, "ticket=REDACTED") || !strings.Contains(got, "x=1") {
		t.Fatalf("unexpected redaction: %s", got)
	}
	if plain := "http://h/a?b=c"; RedactURL(plain) != plain {
		t.Fatalf("untouched URL changed: %s", RedactURL(plain))
	}
}
