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
	"sync"

	"golang.org/x/sync/errgroup"
)

// Set runs one independent accumulator per advice category. Fields never affect each other:
// one field erroring leaves the others streaming.
type Set struct {
	order  []string
	fields map[string]*Accumulator
}

// NewSet builds an advice accumulator for every category, keeping their order.
func NewSet(conn Connector, categories []string, opts ...Option) *Set {
	s := &Set{fields: make(map[string]*Accumulator, len(categories))}
	for _, c := range categories {
		if _, dup := s.fields[c]; dup || c == "" {
			continue
		}
		s.order = append(s.order, c)
		s.fields[c] = New(conn, AdviceTarget(c), opts...)
	}
	return s
}

// Fields returns the categories in creation order.
func (s *Set) Fields() []string { return append([]string(nil), s.order...) }

// Field returns the accumulator for a category, or nil.
func (s *Set) Field(category string) *Accumulator { return s.fields[category] }

// StartAll starts every field for the same session.
func (s *Set) StartAll(ctx context.Context, sessionID string) {
	for _, c := range s.order {
		s.fields[c].Start(ctx, sessionID)
	}
}

// Wait blocks until every field left the streaming phase, or ctx ends. The returned map holds
// the latest snapshot of every field either way.
func (s *Set) Wait(ctx context.Context) (map[string]State, error) {
	var mu sync.Mutex
	out := make(map[string]State, len(s.order))
	eg, egCtx := errgroup.WithContext(ctx)
	for _, c := range s.order {
		c := c
		acc := s.fields[c]
		eg.Go(func() error {
			st, err := acc.Wait(egCtx)
			mu.Lock()
			out[c] = st
			mu.Unlock()
			return err
		})
	}
	err := eg.Wait()
	return out, err
}

// States returns a snapshot of all fields.
func (s *Set) States() map[string]State {
	out := make(map[string]State, len(s.order))
	for _, c := range s.order {
		out[c] = s.fields[c].State()
	}
	return out
}

// Close tears down every field concurrently.
func (s *Set) Close() {
	var wg sync.WaitGroup
	for _, c := range s.order {
		wg.Add(1)
		go func(a *Accumulator) {
			defer wg.Done()
			a.Close()
		}(s.fields[c])
	}
	wg.Wait()
}
