/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package mindmap

import "storeplanner/internal/domain"

// Expansion tracks which axes and steps are unfolded. Within one axis at most one step is
// open at a time; folding an axis folds its step too. A nil *Expansion shows everything.
type Expansion struct {
	axes  map[domain.AxisCode]bool
	steps map[domain.AxisCode]string
}

func NewExpansion() *Expansion {
	return &Expansion{axes: map[domain.AxisCode]bool{}, steps: map[domain.AxisCode]string{}}
}

func (e *Expansion) AxisOpen(a domain.AxisCode) bool {
	return e == nil || e.axes[a]
}

func (e *Expansion) StepOpen(a domain.AxisCode, stepID string) bool {
	return e == nil || (e.axes[a] && e.steps[a] == stepID)
}

// ToggleAxis opens or folds an axis.
func (e *Expansion) ToggleAxis(a domain.AxisCode) {
	if e.axes[a] {
		delete(e.axes, a)
		delete(e.steps, a)
		return
	}
	e.axes[a] = true
}

// ToggleStep opens a step (closing its open sibling) or folds it if already open.
func (e *Expansion) ToggleStep(a domain.AxisCode, stepID string) {
	if !e.axes[a] {
		return
	}
	if e.steps[a] == stepID {
		delete(e.steps, a)
		return
	}
	e.steps[a] = stepID
}

// Reveal opens the axis and step leading to an item node id.
func (e *Expansion) Reveal(nodeID string) bool {
	a, step, _, ok := domain.ParseNodeID(nodeID)
	if !ok {
		return false
	}
	e.axes[a] = true
	e.steps[a] = step
	return true
}

// Toggle applies a click on a node: axes and steps fold/unfold, other nodes are ignored.
// It reports whether the layout changed.
func (e *Expansion) Toggle(n Node) bool {
	switch n.Kind {
	case AxisNode:
		e.ToggleAxis(n.Axis)
		return true
	case StepNode:
		if !e.axes[n.Axis] {
			return false
		}
		e.ToggleStep(n.Axis, n.StepID)
		return true
	}
	return false
}
