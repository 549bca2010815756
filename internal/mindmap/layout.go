/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package mindmap lays out the planning mindmap: a center node, the eight axes on a ring,
// three steps fanned out behind each axis and the items fanned out behind each step.
package mindmap

import (
	"math"

	"storeplanner/internal/domain"
	"storeplanner/internal/geom"
	"storeplanner/internal/textlayout"
)

// Kind is the depth of a node in the diagram.
type Kind int

const (
	CenterNode Kind = iota
	AxisNode
	StepNode
	ItemNode
)

func (k Kind) String() string {
	switch k {
	case CenterNode:
		return "center"
	case AxisNode:
		return "axis"
	case StepNode:
		return "step"
	default:
		return "item"
	}
}

// CenterID is the id of the root node.
const CenterID = "center"

// Config holds canvas size, ring distances, node radii and fan angles.
type Config struct {
	Width, Height  float64
	Center         geom.Pt
	CenterRadius   float64
	AxisRadius     float64
	StepRadius     float64
	ItemRadius     float64
	AxisDistance   float64
	StepDistance   float64
	ItemDistance   float64
	StepSpread     float64 // total fan angle of the steps of one axis
	ItemSpreadBase float64 // fan angle of three items; scales with item count
	CenterTitle    string
	Fonts          textlayout.Provider
	CenterFont     textlayout.FontSpec
	AxisFont       textlayout.FontSpec
	StepFont       textlayout.FontSpec
	ItemFont       textlayout.FontSpec
}

func DefaultConfig() Config {
	return Config{
		Width:          3000,
		Height:         2600,
		Center:         geom.Pt{X: 1500, Y: 1300},
		CenterRadius:   80,
		AxisRadius:     65,
		StepRadius:     50,
		ItemRadius:     45,
		AxisDistance:   380,
		StepDistance:   180,
		ItemDistance:   140,
		StepSpread:     math.Pi * 0.5,
		ItemSpreadBase: math.Pi * 0.4,
		CenterTitle:    "開業プラン",
		Fonts:          textlayout.BasicProvider{},
		CenterFont:     textlayout.FontSpec{SizePt: 16, Bold: true},
		AxisFont:       textlayout.FontSpec{SizePt: 13, Bold: true},
		StepFont:       textlayout.FontSpec{SizePt: 12, Bold: true},
		ItemFont:       textlayout.FontSpec{SizePt: 10},
	}
}

// Node is one placed circle.
type Node struct {
	ID     string
	Kind   Kind
	Parent string
	Axis   domain.AxisCode
	StepID string
	ItemID string
	Title  string
	Pos    geom.Pt
	Radius float64
	Angle  float64 // direction from the parent, radians
	Color  string  // axis color
	Status domain.NodeStatus
	Label  textlayout.Label
}

// Bounds is the square around the circle.
func (n Node) Bounds() geom.Rect { return geom.Around(n.Pos, n.Radius) }

// Hit reports whether p lies inside the circle.
func (n Node) Hit(p geom.Pt) bool { return geom.Dist(n.Pos, p) <= n.Radius }

// Edge connects a parent to a child.
type Edge struct {
	From, To string
	Kind     Kind // kind of the child
	Color    string
}

// Diagram is a laid out mindmap. Nodes are ordered back to front: items, steps, axes, center.
type Diagram struct {
	Config Config
	Nodes  []Node
	Edges  []Edge
	index  map[string]int
}

// Node looks a node up by id.
func (d Diagram) Node(id string) (Node, bool) {
	i, ok := d.index[id]
	if !ok {
		return Node{}, false
	}
	return d.Nodes[i], true
}

// Canvas is the full drawing area.
func (d Diagram) Canvas() geom.Rect { return geom.R(0, 0, d.Config.Width, d.Config.Height) }

// Bounds is the union of all visible node circles.
func (d Diagram) Bounds() geom.Rect {
	var b geom.Rect
	for _, n := range d.Nodes {
		b = b.Union(n.Bounds())
	}
	return b
}

// HitTest returns the top-most node containing p (content coordinates).
func (d Diagram) HitTest(p geom.Pt) (Node, bool) {
	for i := len(d.Nodes) - 1; i >= 0; i-- {
		if d.Nodes[i].Hit(p) {
			return d.Nodes[i], true
		}
	}
	return Node{}, false
}

// fan returns the angle of child i of n spread symmetrically around base.
func fan(base, spread float64, i, n int) float64 {
	return base - spread/2 + spread*float64(i)/float64(max(n-1, 1))
}

// Layout places every node that exp shows; a nil exp shows everything. Item status comes from state.
func Layout(cfg Config, state domain.MindmapState, exp *Expansion) Diagram {
	if cfg.Fonts == nil {
		cfg.Fonts = textlayout.BasicProvider{}
	}
	label := func(spec textlayout.FontSpec, text string, r float64, lines int) textlayout.Label {
		return textlayout.WrapLabel(cfg.Fonts, spec, text, float32(r*1.6), lines)
	}

	var items, steps, axes []Node
	var edges []Edge
	all := domain.Axes()
	for ai, ax := range all {
		angle := -math.Pi/2 + 2*math.Pi*float64(ai)/float64(len(all))
		an := Node{
			ID: string(ax.Code), Kind: AxisNode, Parent: CenterID, Axis: ax.Code,
			Title: ax.Name, Pos: geom.Polar(cfg.Center, cfg.AxisDistance, angle),
			Radius: cfg.AxisRadius, Angle: angle, Color: ax.Color,
			Label: label(cfg.AxisFont, ax.Name, cfg.AxisRadius, 2),
		}
		axes = append(axes, an)
		edges = append(edges, Edge{From: CenterID, To: an.ID, Kind: AxisNode, Color: ax.Color})
		if !exp.AxisOpen(ax.Code) {
			continue
		}

		st := domain.Steps(ax.Code)
		for si, s := range st {
			sAngle := fan(angle, cfg.StepSpread, si, len(st))
			sn := Node{
				ID: string(ax.Code) + "_" + s.ID, Kind: StepNode, Parent: an.ID, Axis: ax.Code, StepID: s.ID,
				Title: s.Name, Pos: geom.Polar(an.Pos, cfg.StepDistance, sAngle),
				Radius: cfg.StepRadius, Angle: sAngle, Color: ax.Color,
				Label: label(cfg.StepFont, s.Name, cfg.StepRadius, 1),
			}
			steps = append(steps, sn)
			edges = append(edges, Edge{From: an.ID, To: sn.ID, Kind: StepNode, Color: ax.Color})
			if !exp.StepOpen(ax.Code, s.ID) {
				continue
			}

			spread := cfg.ItemSpreadBase * math.Min(float64(len(s.Items))/3, 1.5)
			for ii, it := range s.Items {
				iAngle := fan(sAngle, spread, ii, len(s.Items))
				id := domain.NodeID(ax.Code, s.ID, it.ID)
				in := Node{
					ID: id, Kind: ItemNode, Parent: sn.ID, Axis: ax.Code, StepID: s.ID, ItemID: it.ID,
					Title: it.Title, Pos: geom.Polar(sn.Pos, cfg.ItemDistance, iAngle),
					Radius: cfg.ItemRadius, Angle: iAngle, Color: ax.Color,
					Status: state.StatusOf(id),
					Label:  label(cfg.ItemFont, it.Title, cfg.ItemRadius, 3),
				}
				items = append(items, in)
				edges = append(edges, Edge{From: sn.ID, To: id, Kind: ItemNode, Color: ax.Color})
			}
		}
	}

	center := Node{
		ID: CenterID, Kind: CenterNode, Title: cfg.CenterTitle, Pos: cfg.Center, Radius: cfg.CenterRadius,
		Color: "#1d4ed8", Label: label(cfg.CenterFont, cfg.CenterTitle, cfg.CenterRadius, 2),
	}
	d := Diagram{Config: cfg, Edges: edges, index: map[string]int{}}
	d.Nodes = append(d.Nodes, items...)
	d.Nodes = append(d.Nodes, steps...)
	d.Nodes = append(d.Nodes, axes...)
	d.Nodes = append(d.Nodes, center)
	for i, n := range d.Nodes {
		d.index[n.ID] = i
	}
	return d
}
