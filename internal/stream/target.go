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
	"fmt"

	"storeplanner/internal/backend"
	"storeplanner/internal/sse"
)

// Target names the pair of endpoints one kind of stream uses.
type Target struct {
	Name       string
	TicketPath func(id string) string
	StreamPath func(id string) string
	// DeltaEvent is the event carrying {"delta": "..."} payloads.
	DeltaEvent string
}

// SummaryTarget streams the summary of one mindmap node; the id is the node id.
func SummaryTarget() Target {
	return Target{
		Name:       "summary",
		TicketPath: backend.SummaryTicketPath,
		StreamPath: backend.SummaryStreamPath,
		DeltaEvent: "summary_delta",
	}
}

// AdviceTarget streams one advice category; the id is the simulation session id.
func AdviceTarget(category string) Target {
	return Target{
		Name:       "advice/" + category,
		TicketPath: func(id string) string { return backend.AdviceTicketPath(id, category) },
		StreamPath: func(id string) string { return backend.AdviceStreamPath(id, category) },
		DeltaEvent: "summary_delta",
	}
}

// Source is an open event stream.
type Source interface {
	Next() (sse.Event, error)
	Close() error
}

// Connector opens the stream for a target and id, including any credential exchange.
type Connector interface {
	Connect(ctx context.Context, t Target, id string) (Source, error)
}

// BackendConnector exchanges a ticket with the backend and dials the ticketed stream URL.
type BackendConnector struct {
	Client *backend.Client
	Dialer *sse.Dialer
}

func (b BackendConnector) Connect(ctx context.Context, t Target, id string) (Source, error) {
	ticket, err := b.Client.StreamTicket(ctx, t.TicketPath(id))
	if err != nil {
		return nil, err
	}
	d := b.Dialer
	if d == nil {
		d = b.Client.StreamDialer()
	}
	conn, err := d.Dial(ctx, b.Client.StreamURL(t.StreamPath(id), ticket))
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", t.Name, err)
	}
	return conn, nil
}
