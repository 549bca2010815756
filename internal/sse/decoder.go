/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package sse reads server-sent event streams: a line decoder plus a small HTTP dialer.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// Event is one dispatched server-sent event. Name defaults to "message".
type Event struct {
	Name string
	Data string
	ID   string
}

// Decoder splits an event stream into Events.
type Decoder struct {
	r      *bufio.Reader
	lastID string
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// LastID returns the most recent id field seen on the stream.
func (d *Decoder) LastID() string { return d.lastID }

// Next returns the next complete event. A block ends at a blank line and is dispatched when
// it carried data or an explicit event name. An unterminated block at end of stream is
// dropped and io.EOF returned.
func (d *Decoder) Next() (Event, error) {
	var (
		name    string
		data    []string
		hasData bool
	)
	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			// an unterminated trailing line never completes a block
			return Event{}, err
		}
		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 {
			if !hasData && name == "" {
				continue
			}
			ev := Event{Name: name, Data: strings.Join(data, "\n"), ID: d.lastID}
			if ev.Name == "" {
				ev.Name = "message"
			}
			return ev, nil
		}
		if line[0] == ':' {
			continue
		}

		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = bytes.TrimPrefix(value, []byte(" "))
		}
		switch string(field) {
		case "event":
			name = string(value)
		case "data":
			data = append(data, string(value))
			hasData = true
		case "id":
			if bytes.IndexByte(value, 0) < 0 {
				d.lastID = string(value)
			}
		}
		// retry and unknown fields are ignored
	}
}
