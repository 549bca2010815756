/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	applog "storeplanner/internal/log"
)

// Observer is told about every terminal transition of a field; id is the node or session id
// the stream was started for.
type Observer func(field, id string, s State)

type Option func(*Accumulator)

// WithObserver registers a callback for done/errored transitions. It runs on the reader
// goroutine and must not call Start, Reset or Close on the same accumulator.
func WithObserver(o Observer) Option { return func(a *Accumulator) { a.observer = o } }

// Accumulator owns at most one live connection and the state of a single field.
// All methods are safe for concurrent use; Start, Reset and Close run one at a time.
type Accumulator struct {
	conn     Connector
	target   Target
	observer Observer
	log      *slog.Logger

	life sync.Mutex // serializes Start, Reset and Close

	mu      sync.Mutex
	gen     uint64 // bumped by Start/Reset/Close; stale readers compare against it
	phase   Phase
	text    strings.Builder
	err     error
	closed  bool
	cancel  context.CancelFunc
	src     Source
	running chan struct{} // closed when the current reader goroutine exits
	changed chan struct{} // closed and replaced on every state change
	subs    map[chan State]struct{}
}

// New returns an idle accumulator for target.
func New(conn Connector, target Target, opts ...Option) *Accumulator {
	a := &Accumulator{
		conn:    conn,
		target:  target,
		log:     applog.WithComponent("stream").With("field", target.Name),
		changed: make(chan struct{}),
		subs:    make(map[chan State]struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Target returns the endpoints this accumulator streams from.
func (a *Accumulator) Target() Target { return a.target }

// State returns the current snapshot.
func (a *Accumulator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

func (a *Accumulator) snapshot() State {
	return State{Text: a.text.String(), Phase: a.phase, Err: a.err}
}

// Start begins streaming for id, closing any previous connection first. It returns immediately;
// ticket or connection failures end up in State as Errored. An empty id just resets to idle.
// Cancelling ctx while the field streams ends it as Errored with ctx.Err(), keeping the text.
func (a *Accumulator) Start(ctx context.Context, id string) {
	a.life.Lock()
	defer a.life.Unlock()
	a.stop()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.gen++
	gen := a.gen
	a.text.Reset()
	a.err = nil
	if id == "" {
		a.phase = Idle
		a.publish()
		a.mu.Unlock()
		return
	}
	a.phase = Streaming
	rctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	running := make(chan struct{})
	a.running = running
	a.publish()
	a.mu.Unlock()

	go func() {
		defer close(running)
		a.run(rctx, gen, id)
	}()
}

// Reset closes any connection and returns to idle with empty text.
func (a *Accumulator) Reset() {
	a.life.Lock()
	defer a.life.Unlock()
	a.stop()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	a.text.Reset()
	a.err = nil
	a.phase = Idle
	a.publish()
}

// Close tears the accumulator down: the connection is closed, the reader goroutine has exited
// when Close returns and subscriber channels are closed. The last state stays readable.
func (a *Accumulator) Close() {
	a.life.Lock()
	defer a.life.Unlock()
	a.stop()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	a.gen++
	if a.phase == Streaming {
		a.phase = Idle
	}
	for ch := range a.subs {
		close(ch)
		delete(a.subs, ch)
	}
	close(a.changed)
	a.changed = make(chan struct{})
}

// stop cancels the live reader, if any, and waits for it to exit.
func (a *Accumulator) stop() {
	a.mu.Lock()
	a.gen++
	cancel, src, running := a.cancel, a.src, a.running
	a.cancel, a.src, a.running = nil, nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if src != nil {
		_ = src.Close()
	}
	if running != nil {
		<-running
	}
}

// Wait blocks until the field is done, errored or idle, or ctx ends.
func (a *Accumulator) Wait(ctx context.Context) (State, error) {
	for {
		a.mu.Lock()
		s, ch := a.snapshot(), a.changed
		a.mu.Unlock()
		if s.Phase != Streaming {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-ch:
		}
	}
}

// Subscribe returns a channel that always holds the latest state (older unread states are
// dropped) and a function to unsubscribe. The channel is closed by Close or the cancel func.
func (a *Accumulator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		close(ch)
		return ch, func() {}
	}
	a.subs[ch] = struct{}{}
	ch <- a.snapshot()
	return ch, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, ok := a.subs[ch]; ok {
			delete(a.subs, ch)
			close(ch)
		}
	}
}

// publish wakes waiters and hands the new snapshot to subscribers. Callers hold mu.
func (a *Accumulator) publish() {
	s := a.snapshot()
	for ch := range a.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
	close(a.changed)
	a.changed = make(chan struct{})
}

func (a *Accumulator) run(ctx context.Context, gen uint64, id string) {
	l := applog.WithOperation(a.log, "run")
	src, err := a.conn.Connect(ctx, a.target, id)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			// stop() bumps gen before cancelling, so only a caller cancellation is still current
			a.finish(gen, id, Errored, cerr)
			return
		}
		l.Warn("connect failed", "err", err)
		a.finish(gen, id, Errored, err)
		return
	}

	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		_ = src.Close()
		return
	}
	a.src = src
	a.mu.Unlock()
	l.Debug("stream open")
	unwatch := context.AfterFunc(ctx, func() { _ = src.Close() })
	defer unwatch()

	for {
		ev, err := src.Next()
		if err != nil {
			if !a.current(gen) {
				return
			}
			if cerr := ctx.Err(); cerr != nil {
				l.Debug("stream cancelled", "err", cerr)
				a.finish(gen, id, Errored, cerr)
				return
			}
			l.Warn("stream ended early", "err", err)
			a.finish(gen, id, Errored, ErrDisconnected)
			return
		}
		switch ev.Name {
		case a.target.DeltaEvent:
			var p struct {
				Delta *string `json:"delta"`
			}
			if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
				l.Warn("skipping malformed delta frame", "err", err)
				continue
			}
			if p.Delta != nil && !a.appendText(gen, *p.Delta) {
				return
			}
		case "done":
			a.finish(gen, id, Done, nil)
			return
		case "error":
			msg, ok := serverMessage(ev.Data)
			if !ok {
				l.Warn("skipping malformed error frame")
				continue
			}
			a.finish(gen, id, Errored, &ServerError{Message: msg})
			return
		default:
			l.Debug("ignoring event", "event", ev.Name)
		}
	}
}

// serverMessage extracts the message of an error event; an empty payload gets the default text.
func serverMessage(data string) (string, bool) {
	if strings.TrimSpace(data) == "" {
		return defaultServerMessage, true
	}
	var p struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return "", false
	}
	if strings.TrimSpace(p.Message) == "" {
		return defaultServerMessage, true
	}
	return p.Message, true
}

func (a *Accumulator) current(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return gen == a.gen
}

func (a *Accumulator) appendText(gen uint64, delta string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen || a.phase != Streaming {
		return false
	}
	if delta == "" {
		return true
	}
	a.text.WriteString(delta)
	a.publish()
	return true
}

// finish moves a current streaming field into a terminal phase and releases the connection.
func (a *Accumulator) finish(gen uint64, id string, phase Phase, err error) {
	a.mu.Lock()
	if gen != a.gen || a.phase != Streaming {
		a.mu.Unlock()
		return
	}
	// the connection is gone by the time the terminal state is visible
	if a.src != nil {
		_ = a.src.Close()
		a.src = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.phase = phase
	a.err = err
	a.publish()
	s := a.snapshot()
	a.mu.Unlock()

	a.log.Debug("stream finished", "phase", phase.String(), "bytes", len(s.Text))
	if a.observer != nil {
		a.observer(a.target.Name, id, s)
	}
}
