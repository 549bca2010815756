/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"storeplanner/internal/domain"
	"storeplanner/internal/geom"
	applog "storeplanner/internal/log"
	"storeplanner/internal/mindmap"
	"storeplanner/internal/storage"
	"storeplanner/internal/stream"
	"storeplanner/internal/viewport"
)

// MindmapSource loads the mindmap state; *backend.Client implements it.
type MindmapSource interface {
	GetMindmapState(ctx context.Context) (domain.MindmapState, error)
}

// SessionOptions wires a Session.
type SessionOptions struct {
	Source    MindmapSource
	Streams   stream.Connector
	Cache     *storage.Cache // optional
	Layout    mindmap.Config
	Viewport  viewport.Options
	Observer  stream.Observer // optional, e.g. telemetry
	FocusZoom float64         // scale used when focusing a node; default 1
}

// Session is the window-independent state of the mindmap screen: the loaded state, which
// branches are unfolded, the selected node, its summary stream and the viewport.
// View is owned by the UI goroutine; everything else is safe for concurrent use.
type Session struct {
	View *viewport.Controller

	src       MindmapSource
	cache     *storage.Cache
	layout    mindmap.Config
	focusZoom float64
	summary   *stream.Accumulator
	log       *slog.Logger

	mu       sync.Mutex
	state    domain.MindmapState
	exp      *mindmap.Expansion
	diagram  mindmap.Diagram
	selected string
}

// SummaryView is what the summary panel shows for the selected node.
type SummaryView struct {
	NodeID    string
	Title     string
	Text      string
	Phase     stream.Phase
	Err       error
	FromCache bool
}

func NewSession(opt SessionOptions) *Session {
	if opt.FocusZoom <= 0 {
		opt.FocusZoom = 1
	}
	s := &Session{
		View:      viewport.New(opt.Viewport),
		src:       opt.Source,
		cache:     opt.Cache,
		layout:    opt.Layout,
		focusZoom: opt.FocusZoom,
		log:       applog.WithComponent("ui"),
		exp:       mindmap.NewExpansion(),
	}
	user := opt.Observer
	s.summary = stream.New(opt.Streams, stream.SummaryTarget(), stream.WithObserver(func(field, id string, st stream.State) {
		if st.IsDone() {
			s.remember(id, st.Text)
		}
		if user != nil {
			user(field, id, st)
		}
	}))
	s.diagram = mindmap.Layout(s.layout, s.state, s.exp)
	return s
}

// Load fetches the mindmap state and lays the diagram out again. On failure the previous
// state stays.
func (s *Session) Load(ctx context.Context) error {
	st, err := s.src.GetMindmapState(ctx)
	if err != nil {
		s.log.Warn("load mindmap failed", slog.Any("err", err))
		return err
	}
	s.mu.Lock()
	s.state = st
	s.relayout()
	s.mu.Unlock()
	return nil
}

// relayout rebuilds the diagram. Callers hold mu.
func (s *Session) relayout() { s.diagram = mindmap.Layout(s.layout, s.state, s.exp) }

// Diagram returns the current layout.
func (s *Session) Diagram() mindmap.Diagram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diagram
}

// Progress returns per-axis completion of the loaded state.
func (s *Session) Progress() map[domain.AxisCode]domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Progress()
}

// Fit scales the whole canvas into a container of the given size.
func (s *Session) Fit(containerW, containerH float64) {
	s.View.FitToContainer(s.layout.Width, s.layout.Height, containerW, containerH)
}

// Tap handles a click at a screen point: axes and steps fold or unfold, items get selected.
// It reports the node hit, if any.
func (s *Session) Tap(ctx context.Context, x, y float64) (mindmap.Node, bool) {
	p := s.View.ToContent(geom.Pt{X: x, Y: y})
	s.mu.Lock()
	n, ok := s.diagram.HitTest(p)
	if ok && s.exp.Toggle(n) {
		s.relayout()
	}
	s.mu.Unlock()
	if ok && n.Kind == mindmap.ItemNode {
		s.Select(ctx, n.ID)
	}
	return n, ok
}

// Select makes an item node current. A summary the backend already has is shown directly;
// otherwise the summary is streamed. An empty id clears the selection.
func (s *Session) Select(ctx context.Context, nodeID string) {
	s.mu.Lock()
	s.selected = nodeID
	known := false
	if nodeID != "" {
		if s.exp.Reveal(nodeID) {
			s.relayout()
		}
		if n, ok := s.state.Node(nodeID); ok && n.Summary != nil && *n.Summary != "" {
			known = true
		}
	}
	s.mu.Unlock()

	if nodeID == "" || known {
		s.summary.Reset()
		return
	}
	s.summary.Start(ctx, nodeID)
}

// Focus centers a node on screen at the focus zoom, or the current scale if larger.
func (s *Session) Focus(nodeID string) bool {
	s.mu.Lock()
	n, ok := s.diagram.Node(nodeID)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.View.ZoomToPoint(n.Pos.X, n.Pos.Y, math.Max(s.focusZoom, s.View.Transform().Scale))
	return true
}

// Selected returns the selected node id.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SummaryStream exposes the accumulator so views can subscribe to it.
func (s *Session) SummaryStream() *stream.Accumulator { return s.summary }

// Summary resolves what to show for the selected node. A failed stream falls back to the
// cached text when there is one; the error is kept so the view can say it is stale.
func (s *Session) Summary(ctx context.Context) SummaryView {
	s.mu.Lock()
	id := s.selected
	node, known := s.state.Node(id)
	s.mu.Unlock()
	if id == "" {
		return SummaryView{}
	}
	v := SummaryView{NodeID: id, Title: itemTitle(id, node)}
	if known && node.Summary != nil && *node.Summary != "" {
		v.Text, v.Phase = *node.Summary, stream.Done
		return v
	}
	st := s.summary.State()
	v.Text, v.Phase, v.Err = st.Text, st.Phase, st.Err
	if st.Phase == stream.Errored && s.cache != nil {
		if e, ok, err := s.cache.Get(ctx, storage.KindSummary, id); err == nil && ok {
			v.Text, v.FromCache = e.Text, true
		}
	}
	return v
}

// Close tears down the summary stream.
func (s *Session) Close() { s.summary.Close() }

func (s *Session) remember(nodeID, text string) {
	if s.cache == nil || nodeID == "" {
		return
	}
	err := s.cache.Put(context.Background(), storage.Entry{Kind: storage.KindSummary, Key: nodeID, Text: text})
	if err != nil && !errors.Is(err, storage.ErrEmptyKey) {
		s.log.Warn("cache summary failed", slog.String("node", nodeID), slog.Any("err", err))
	}
}

func itemTitle(id string, n domain.MindmapNode) string {
	if n.Title != "" {
		return n.Title
	}
	if _, _, it, ok := domain.FindItem(id); ok {
		return it.Title
	}
	return id
}
