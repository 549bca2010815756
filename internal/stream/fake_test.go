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
	"io"
	"sync"
	"sync/atomic"

	"storeplanner/internal/sse"
)

// scriptSource replays frames, then either blocks until closed or returns end.
type scriptSource struct {
	mu     sync.Mutex
	frames []sse.Event
	end    error // nil means block after the last frame
	closed chan struct{}
	once   sync.Once
	live   *atomic.Int32
}

func (s *scriptSource) Next() (sse.Event, error) {
	s.mu.Lock()
	if len(s.frames) > 0 {
		ev := s.frames[0]
		s.frames = s.frames[1:]
		s.mu.Unlock()
		return ev, nil
	}
	s.mu.Unlock()
	if s.end != nil {
		return sse.Event{}, s.end
	}
	<-s.closed
	return sse.Event{}, sse.ErrClosed
}

func (s *scriptSource) Close() error {
	s.once.Do(func() {
		close(s.closed)
		if s.live != nil {
			s.live.Add(-1)
		}
	})
	return nil
}

func (s *scriptSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// fakeConnector hands out one scripted source per id.
type fakeConnector struct {
	mu      sync.Mutex
	scripts map[string]func() ([]sse.Event, error)
	errs    map[string]error
	opened  []*scriptSource
	live    atomic.Int32
	maxLive atomic.Int32
	calls   atomic.Int32
}

func newFake() *fakeConnector {
	return &fakeConnector{scripts: map[string]func() ([]sse.Event, error){}, errs: map[string]error{}}
}

func (f *fakeConnector) script(id string, end error, frames ...sse.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[id] = func() ([]sse.Event, error) { return append([]sse.Event(nil), frames...), end }
}

func (f *fakeConnector) fail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
}

func (f *fakeConnector) Connect(ctx context.Context, t Target, id string) (Source, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	frames, end := []sse.Event(nil), error(nil)
	if sc, ok := f.scripts[id]; ok {
		frames, end = sc()
	} else {
		end = io.EOF
	}
	src := &scriptSource{frames: frames, end: end, closed: make(chan struct{}), live: &f.live}
	n := f.live.Add(1)
	for {
		m := f.maxLive.Load()
		if n <= m || f.maxLive.CompareAndSwap(m, n) {
			break
		}
	}
	f.opened = append(f.opened, src)
	return src, nil
}

func (f *fakeConnector) source(i int) *scriptSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.opened) {
		return nil
	}
	return f.opened[i]
}

func delta(s string) sse.Event { return sse.Event{Name: "summary_delta", Data: `{"delta":"` + s + `"}`} }

var (
	doneEv = sse.Event{Name: "done"}
)
