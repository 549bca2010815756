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
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"storeplanner/internal/backend"
	"storeplanner/internal/sse"
)

func waitState(t *testing.T, a *Accumulator) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := a.Wait(ctx)
	require.NoError(t, err, "field still streaming: %+v", s)
	return s
}

func TestTicketedStreamEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/mindmap/node/n1/summary-ticket":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"ticket":"abc123"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/mindmap/node/n1/summary-stream":
			if r.URL.Query().Get("ticket") != "abc123" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: summary_delta\ndata: {\"delta\":\"A\"}\n\n")
			fmt.Fprint(w, "event: summary_delta\ndata: {\"delta\":\"B\"}\n\n")
			fmt.Fprint(w, "event: done\ndata: {}\n\n")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	defer http.DefaultTransport.(*http.Transport).CloseIdleConnections()

	a := New(BackendConnector{Client: backend.NewClient(srv.URL, "tok")}, SummaryTarget())
	defer a.Close()
	a.Start(context.Background(), "n1")
	s := waitState(t, a)
	assert.Equal(t, "AB", s.Text)
	assert.True(t, s.IsDone())
	assert.False(t, s.IsStreaming())
	assert.NoError(t, s.Err)
	assert.Empty(t, s.Message())
}

func TestTicketUnauthorizedBecomesErrored(t *testing.T) {
	var streamHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/summary-stream") {
			streamHits.Add(1)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	defer http.DefaultTransport.(*http.Transport).CloseIdleConnections()

	a := New(BackendConnector{Client: backend.NewClient(srv.URL, "")}, SummaryTarget())
	defer a.Close()
	a.Start(context.Background(), "n1")
	s := waitState(t, a)
	assert.Equal(t, Errored, s.Phase)
	assert.ErrorIs(t, s.Err, backend.ErrUnauthorized)
	assert.Empty(t, s.Text)
	assert.Zero(t, streamHits.Load(), "stream must not be dialed without a ticket")
}

func TestMalformedDeltaIsSkipped(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.script("s", nil,
		delta("A"),
		sse.Event{Name: "summary_delta", Data: "{not json"},
		sse.Event{Name: "summary_delta", Data: `{"other":1}`},
		sse.Event{Name: "heartbeat"},
		delta("B"),
		doneEv,
	)
	a := New(f, SummaryTarget())
	defer a.Close()
	a.Start(context.Background(), "s")
	s := waitState(t, a)
	assert.Equal(t, "AB", s.Text)
	assert.Equal(t, Done, s.Phase)
}

func TestServerErrorKeepsPartialText(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.script("s", nil, delta("part"), sse.Event{Name: "error", Data: `{"message":"quota exceeded"}`}, delta("late"))
	a := New(f, SummaryTarget())
	defer a.Close()
	a.Start(context.Background(), "s")
	s := waitState(t, a)
	assert.Equal(t, Errored, s.Phase)
	assert.Equal(t, "part", s.Text)
	assert.Equal(t, "quota exceeded", s.Message())
	var se *ServerError
	require.ErrorAs(t, s.Err, &se)
	assert.True(t, f.source(0).isClosed())
}

func TestServerErrorPayloadVariants(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.script("empty", nil, sse.Event{Name: "error"})
	f.script("blank", nil, sse.Event{Name: "error", Data: `{"message":""}`})
	f.script("garbled", nil, sse.Event{Name: "error", Data: "<html>"}, delta("x"), doneEv)

	for id, want := range map[string]string{"empty": defaultServerMessage, "blank": defaultServerMessage} {
		a := New(f, SummaryTarget())
		a.Start(context.Background(), id)
		s := waitState(t, a)
		assert.Equal(t, Errored, s.Phase, id)
		assert.Equal(t, want, s.Message(), id)
		a.Close()
	}

	a := New(f, SummaryTarget())
	defer a.Close()
	a.Start(context.Background(), "garbled")
	s := waitState(t, a)
	assert.Equal(t, Done, s.Phase)
	assert.Equal(t, "x", s.Text)
}

func TestDisconnectBeforeDone(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.script("s", io.EOF, delta("half"))
	a := New(f, SummaryTarget())
	defer a.Close()
	a.Start(context.Background(), "s")
	s := waitState(t, a)
	assert.Equal(t, Errored, s.Phase)
	assert.ErrorIs(t, s.Err, ErrDisconnected)
	assert.Equal(t, "half", s.Text)
}

func TestCloseAfterDoneIsNotAnError(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.script("s", io.ErrUnexpectedEOF, delta("ok"), doneEv, delta("ignored"))
	var terminal []State
	a := New(f, SummaryTarget(), WithObserver(func(field, id string, s State) {
		assert.Equal(t, "summary", field)
		assert.Equal(t, "s", id)
		terminal = append(terminal, s)
	}))
	a.Start(context.Background(), "s")
	s := waitState(t, a)
	a.Close()
	assert.Equal(t, Done, s.Phase)
	assert.NoError(t, s.Err)
	assert.Equal(t, "ok", a.State().Text)
	assert.Equal(t, Done, a.State().Phase)
	require.Len(t, terminal, 1)
	assert.Equal(t, "ok", terminal[0].Text)
}

func TestConnectFailureBecomesErrored(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.fail("s", backend.ErrNoTicket)
	a := New(f, SummaryTarget())
	defer a.Close()
	a.Start(context.Background(), "s")
	s := waitState(t, a)
	assert.Equal(t, Errored, s.Phase)
	assert.ErrorIs(t, s.Err, backend.ErrNoTicket)
}

func TestRestartClosesPreviousConnection(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.script("first", nil, delta("old"))
	f.script("second", nil, delta("new"), doneEv)
	a := New(f, SummaryTarget())
	defer a.Close()

	a.Start(context.Background(), "first")
	require.Eventually(t, func() bool { return a.State().Text == "old" }, time.Second, 5*time.Millisecond)

	a.Start(context.Background(), "second")
	s := waitState(t, a)
	assert.Equal(t, "new", s.Text)
	assert.True(t, f.source(0).isClosed())
	assert.LessOrEqual(t, f.maxLive.Load(), int32(1))
	assert.Equal(t, int32(0), f.live.Load())
}

func TestEmptyIDStaysIdle(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	a := New(f, SummaryTarget())
	defer a.Close()
	a.Start(context.Background(), "")
	s := a.State()
	assert.Equal(t, Idle, s.Phase)
	assert.Equal(t, int32(0), f.calls.Load())
	s, err := a.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Idle, s.Phase)
}

func TestResetClearsState(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.script("s", nil, delta("zzz"))
	a := New(f, SummaryTarget())
	defer a.Close()
	a.Start(context.Background(), "s")
	require.Eventually(t, func() bool { return a.State().Text == "zzz" }, time.Second, 5*time.Millisecond)
	a.Reset()
	assert.Equal(t, State{Phase: Idle}, a.State())
	assert.True(t, f.source(0).isClosed())
}

func TestCloseTearsDownLiveStream(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.script("s", nil, delta("a"))
	a := New(f, SummaryTarget())
	ch, unsubscribe := a.Subscribe()
	defer unsubscribe()

	a.Start(context.Background(), "s")
	require.Eventually(t, func() bool { return a.State().Text == "a" }, time.Second, 5*time.Millisecond)
	a.Close()
	a.Close()
	assert.True(t, f.source(0).isClosed())
	assert.Equal(t, int32(0), f.live.Load())

	// drain; the channel must be closed
	for range ch {
	}
	a.Start(context.Background(), "s")
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestSubscribeSeesLatestState(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.script("s", nil, delta("x"), delta("y"), doneEv)
	a := New(f, SummaryTarget())
	defer a.Close()
	ch, unsubscribe := a.Subscribe()
	defer unsubscribe()
	first := <-ch
	assert.Equal(t, Idle, first.Phase)

	a.Start(context.Background(), "s")
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			if s.IsDone() {
				assert.Equal(t, "xy", s.Text)
				return
			}
		case <-deadline:
			t.Fatalf("never saw done, last state %+v", a.State())
		}
	}
}

func TestWaitHonorsContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.script("s", nil)
	a := New(f, SummaryTarget())
	defer a.Close()
	a.Start(context.Background(), "s")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s, err := a.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, Streaming, s.Phase)
}

func TestCallerCancelEndsStreamingField(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.script("n", nil, delta("A"))
	var terminal []State
	a := New(f, SummaryTarget(), WithObserver(func(_, _ string, s State) { terminal = append(terminal, s) }))

	ctx, cancel := context.WithCancel(context.Background())
	a.Start(ctx, "n")
	require.Eventually(t, func() bool { return a.State().Text == "A" }, time.Second, 5*time.Millisecond)
	cancel()

	s := waitState(t, a)
	assert.Equal(t, Errored, s.Phase)
	assert.ErrorIs(t, s.Err, context.Canceled)
	assert.Equal(t, "A", s.Text)
	assert.True(t, f.source(0).isClosed())

	// a fresh start after cancellation streams normally
	f.script("m", nil, delta("B"), doneEv)
	a.Start(context.Background(), "m")
	s = waitState(t, a)
	assert.Equal(t, Done, s.Phase)
	assert.Equal(t, "B", s.Text)

	a.Close()
	require.Len(t, terminal, 2)
	assert.Equal(t, Errored, terminal[0].Phase)
	assert.Equal(t, Done, terminal[1].Phase)
}

func TestConcurrentStartsKeepOneConnection(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFake()
	f.script("s", nil, delta("x"))
	a := New(f, SummaryTarget())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Start(context.Background(), "s")
		}()
	}
	wg.Wait()
	require.Eventually(t, func() bool { return a.State().Text == "x" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), f.live.Load())
	assert.LessOrEqual(t, f.maxLive.Load(), int32(1))

	a.Close()
	assert.Equal(t, int32(0), f.live.Load())
}

func TestPhaseStrings(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "errored", Errored.String())
	assert.True(t, Done.Terminal())
	assert.False(t, Streaming.Terminal())
}
