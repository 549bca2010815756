/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

// NodeStatus is the progress of one mindmap node as reported by the backend.
type NodeStatus string

const (
	StatusPending    NodeStatus = "pending"
	StatusInProgress NodeStatus = "in_progress"
	StatusCompleted  NodeStatus = "completed"
)

// MindmapNode mirrors one entry of GET /api/mindmap/state.
type MindmapNode struct {
	NodeID   string     `json:"node_id"`
	AxisCode string     `json:"axis_code"`
	CardID   string     `json:"card_id"`
	Title    string     `json:"title"`
	Status   NodeStatus `json:"status"`
	Summary  *string    `json:"summary"`
}

type AxisNodes struct {
	AxisCode string        `json:"axis_code"`
	AxisName string        `json:"axis_name"`
	Nodes    []MindmapNode `json:"nodes"`
}

// MindmapState is the whole mindmap payload.
type MindmapState struct {
	Axes []AxisNodes `json:"axes"`
}

// Node finds a node by id.
func (s MindmapState) Node(id string) (MindmapNode, bool) {
	for _, a := range s.Axes {
		for _, n := range a.Nodes {
			if n.NodeID == id {
				return n, true
			}
		}
	}
	return MindmapNode{}, false
}

// StatusOf returns the status of a node, pending when the backend does not list it.
func (s MindmapState) StatusOf(id string) NodeStatus {
	if n, ok := s.Node(id); ok && n.Status != "" {
		return n.Status
	}
	return StatusPending
}

// Progress counts node states of one axis.
type Progress struct {
	Completed  int
	InProgress int
	Pending    int
}

func (p Progress) Total() int { return p.Completed + p.InProgress + p.Pending }

// Ratio is the completed share in [0,1]; zero for an empty axis.
func (p Progress) Ratio() float64 {
	if p.Total() == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total())
}

// Progress aggregates node states per canonical axis. Axis codes the client does not know
// are skipped.
func (s MindmapState) Progress() map[AxisCode]Progress {
	out := make(map[AxisCode]Progress, len(axisTable))
	for _, a := range s.Axes {
		code, ok := Canonical(a.AxisCode)
		if !ok {
			code, ok = Canonical(a.AxisName)
		}
		if !ok {
			continue
		}
		p := out[code]
		for _, n := range a.Nodes {
			switch n.Status {
			case StatusCompleted:
				p.Completed++
			case StatusInProgress:
				p.InProgress++
			default:
				p.Pending++
			}
		}
		out[code] = p
	}
	return out
}

// Colors is a fill/stroke/text triple used by the renderers.
type Colors struct {
	Fill   string
	Stroke string
	Text   string
}

// StatusColors returns the node colors for a status.
func StatusColors(s NodeStatus) Colors {
	switch s {
	case StatusCompleted:
		return Colors{Fill: "#22c55e", Stroke: "#16a34a", Text: "#ffffff"}
	case StatusInProgress:
		return Colors{Fill: "#f59e0b", Stroke: "#d97706", Text: "#ffffff"}
	default:
		return Colors{Fill: "#ffffff", Stroke: "#cbd5e1", Text: "#334155"}
	}
}
