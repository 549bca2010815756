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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	applog "storeplanner/internal/log"
)

// StatusError reports a non-200 answer to the stream request.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string { return fmt.Sprintf("event stream: unexpected status %s", e.Status) }

// Dialer opens event streams. The zero value uses a client without a request timeout,
// so a stream stays open for as long as the server keeps it.
type Dialer struct {
	Client *http.Client
	Header http.Header
}

// Dial issues the GET request and returns once response headers arrived.
func (d *Dialer) Dial(ctx context.Context, rawURL string) (*Conn, error) {
	l := applog.WithComponent("sse")
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	for k, vs := range d.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	hc := d.Client
	if hc == nil {
		hc = &http.Client{}
	}
	resp, err := hc.Do(req)
	if err != nil {
		cancel()
		return nil, scrub(err, rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		cancel()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/event-stream") {
		l.Warn("unexpected content type", "content_type", ct, "url", RedactURL(rawURL))
	}
	l.Debug("stream open", "url", RedactURL(rawURL))
	return &Conn{body: resp.Body, dec: NewDecoder(resp.Body), cancel: cancel}, nil
}

// Conn is an open event stream. Next must be called from one goroutine; Close may be called
// from any goroutine and unblocks a pending Next.
type Conn struct {
	body   io.ReadCloser
	dec    *Decoder
	cancel context.CancelFunc
	once   sync.Once
	closed atomic.Bool
}

// Next blocks until the next event arrives. After Close it returns ErrClosed.
func (c *Conn) Next() (Event, error) {
	ev, err := c.dec.Next()
	if err != nil && c.closed.Load() {
		return Event{}, ErrClosed
	}
	return ev, err
}

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("event stream closed")

// Close releases the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		c.cancel()
		err = c.body.Close()
	})
	return err
}

// RedactURL masks credential query parameters so URLs can be logged.
func RedactURL(raw string) string { return applog.RedactURL(raw) }

// scrub rewrites the URL inside a transport error so the ticket does not leak into logs.
func scrub(err error, rawURL string) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return &url.Error{Op: ue.Op, URL: RedactURL(rawURL), Err: ue.Err}
	}
	return err
}
