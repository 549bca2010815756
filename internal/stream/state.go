/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package stream accumulates incrementally generated text pushed by the backend over an
// event stream. Each field runs the state machine idle -> streaming -> done | errored.
package stream

import (
	"errors"
	"fmt"
)

// Phase is a position in the per-field state machine.
type Phase int

const (
	Idle Phase = iota
	Streaming
	Done
	Errored
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no further changes happen in this phase.
func (p Phase) Terminal() bool { return p == Done || p == Errored }

// State is a snapshot of one field. Text only grows while streaming; Err is set iff Phase is Errored.
type State struct {
	Text  string
	Phase Phase
	Err   error
}

func (s State) IsStreaming() bool { return s.Phase == Streaming }
func (s State) IsDone() bool      { return s.Phase == Done }

// Message is the user-facing error text, empty unless errored.
func (s State) Message() string {
	if s.Err == nil {
		return ""
	}
	var se *ServerError
	if errors.As(s.Err, &se) {
		return se.Message
	}
	return s.Err.Error()
}

// ErrDisconnected is recorded when the stream ends before the completion event.
var ErrDisconnected = errors.New("connection closed before the stream completed")

// defaultServerMessage replaces an empty message in a server error event.
const defaultServerMessage = "the server reported an error"

// ServerError carries the message of an explicit error event.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "server error: " + e.Message }
