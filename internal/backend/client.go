/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend talks to the planning API: an authenticated JSON fetch wrapper, stream
// ticket exchange and the typed read endpoints the client renders.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"storeplanner/internal/config"
	"storeplanner/internal/domain"
	applog "storeplanner/internal/log"
	"storeplanner/internal/sse"
)

var (
	// ErrUnauthorized means the access token is missing or rejected; the caller must log in again.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrNoTicket means the ticket endpoint failed or answered without a ticket.
	ErrNoTicket = errors.New("backend: no stream ticket")
)

// StatusError reports a non-success answer of a typed endpoint.
type StatusError struct {
	Method string
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("server %s %s: no usable response", e.Method, e.Path)
	}
	return fmt.Sprintf("server %s %s: status %d", e.Method, e.Path, e.Status)
}

// Client is a small HTTP client for the planning API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewFromConfig applies the configured timeout and TLS settings.
func NewFromConfig(cfg config.BackendConfig, token string) *Client {
	c := NewClient(cfg.BaseURL, token)
	c.client.Timeout = cfg.Timeout()
	if cfg.TLSInsecure {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev servers
		c.client.Transport = tr
	}
	return c
}

// StreamDialer returns an event-stream dialer sharing this client's transport.
// Streams have no overall timeout; they end when the server finishes or the caller closes them.
func (c *Client) StreamDialer() *sse.Dialer {
	return &sse.Dialer{Client: &http.Client{Transport: c.client.Transport}}
}

// Result is the outcome of Fetch. Data is nil whenever the answer was not a 2xx with a
// decodable JSON body; Status is 0 when no response arrived at all.
type Result[T any] struct {
	Data   *T
	Status int
}

func (r Result[T]) OK() bool           { return r.Data != nil }
func (r Result[T]) Unauthorized() bool { return r.Status == http.StatusUnauthorized }

// Fetch performs one JSON request. body, when non-nil, is sent as JSON. A transport failure
// is the only error; HTTP and decoding failures surface through Result.
func Fetch[T any](ctx context.Context, c *Client, method, path string, body any) (Result[T], error) {
	reqID := uuid.NewString()
	ctx = applog.ContextWithRequestID(ctx, reqID)
	l := applog.WithOperation(applog.WithComponent("backend"), "fetch")

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Result[T]{}, fmt.Errorf("encode request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return Result[T]{}, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return Result[T]{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		l.WarnContext(ctx, "request failed", "method", method, "path", u.Path, "err", err)
		return Result[T]{}, err
	}
	defer resp.Body.Close()
	l.DebugContext(ctx, "response", "method", method, "path", u.Path, "status", resp.StatusCode, "took", time.Since(start))

	res := Result[T]{Status: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return res, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		l.WarnContext(ctx, "read body", "path", u.Path, "err", err)
		return res, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		l.WarnContext(ctx, "undecodable response", "path", u.Path, "err", err)
		return res, nil
	}
	res.Data = &v
	return res, nil
}

// typed converts a Result into the value-or-error shape used by the endpoint helpers.
func typed[T any](r Result[T], err error, method, path string) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if r.Unauthorized() {
		return zero, ErrUnauthorized
	}
	if r.Data == nil {
		return zero, &StatusError{Method: method, Path: path, Status: r.Status}
	}
	return *r.Data, nil
}

type ticketResponse struct {
	Ticket string `json:"ticket"`
}

// StreamTicket exchanges the bearer token for a short-lived stream ticket at path.
func (c *Client) StreamTicket(ctx context.Context, path string) (string, error) {
	r, err := Fetch[ticketResponse](ctx, c, http.MethodPost, path, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoTicket, err)
	}
	if r.Unauthorized() {
		return "", ErrUnauthorized
	}
	if r.Data == nil {
		return "", fmt.Errorf("%w: status %d", ErrNoTicket, r.Status)
	}
	if strings.TrimSpace(r.Data.Ticket) == "" {
		return "", fmt.Errorf("%w: empty ticket", ErrNoTicket)
	}
	return r.Data.Ticket, nil
}

// StreamURL builds the absolute stream URL carrying the ticket as query credential.
func (c *Client) StreamURL(path, ticket string) string {
	return c.BaseURL + path + "?ticket=" + url.QueryEscape(ticket)
}

// SummaryTicketPath and SummaryStreamPath address the per-node summary stream.
func SummaryTicketPath(nodeID string) string {
	return "/api/mindmap/node/" + url.PathEscape(nodeID) + "/summary-ticket"
}

func SummaryStreamPath(nodeID string) string {
	return "/api/mindmap/node/" + url.PathEscape(nodeID) + "/summary-stream"
}

// AdviceTicketPath and AdviceStreamPath address one advice field of a simulation session.
func AdviceTicketPath(sessionID, category string) string {
	return "/api/advice/" + url.PathEscape(sessionID) + "/" + url.PathEscape(category) + "/ticket"
}

func AdviceStreamPath(sessionID, category string) string {
	return "/api/advice/" + url.PathEscape(sessionID) + "/" + url.PathEscape(category) + "/stream"
}

// GetDashboard fetches the score dashboard.
func (c *Client) GetDashboard(ctx context.Context) (domain.Dashboard, error) {
	r, err := Fetch[domain.Dashboard](ctx, c, http.MethodGet, "/dashboard", nil)
	return typed(r, err, http.MethodGet, "/dashboard")
}

type axisList struct {
	Axes []domain.AxisListItem `json:"axes"`
}

// ListAxes fetches the axis/step definitions.
func (c *Client) ListAxes(ctx context.Context) ([]domain.AxisListItem, error) {
	r, err := Fetch[axisList](ctx, c, http.MethodGet, "/axes", nil)
	l, err := typed(r, err, http.MethodGet, "/axes")
	return l.Axes, err
}

// GenerateAudienceSummary asks the backend to rewrite the plan for one audience.
func (c *Client) GenerateAudienceSummary(ctx context.Context, audience string) (domain.AudienceSummary, error) {
	if !domain.ValidAudience(audience) {
		return domain.AudienceSummary{}, fmt.Errorf("unknown summary audience %q", audience)
	}
	body := map[string]string{"summary_type": audience}
	r, err := Fetch[domain.AudienceSummary](ctx, c, http.MethodPost, "/summaries", body)
	return typed(r, err, http.MethodPost, "/summaries")
}
