/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package viewport turns pointer, wheel and button input into a pan/zoom transform
// for a diagram drawn inside a fixed-size container.
//
// Content point p is drawn at screen position Scale*p + (TranslateX, TranslateY).
// Mouse, touch and pen input all go through the same pointer API: one active pointer
// pans, two pinch-zoom. A Controller has a single owner and is not safe for concurrent use.
package viewport

import (
	"fmt"
	"math"

	"storeplanner/internal/geom"
)

// Transform is the current scale and translation.
type Transform struct {
	Scale      float64
	TranslateX float64
	TranslateY float64
}

// Matrix returns the content-to-screen affine transform.
func (t Transform) Matrix() geom.Affine2D {
	return geom.Translate(t.TranslateX, t.TranslateY).Mul(geom.Scale(t.Scale, t.Scale))
}

// CSS renders the transform the way a browser style attribute expects it.
func (t Transform) CSS() string {
	return fmt.Sprintf("translate(%gpx, %gpx) scale(%g)", t.TranslateX, t.TranslateY, t.Scale)
}

// Options bounds and tunes a Controller. Zero fields take DefaultOptions values. The scale
// range always contains 1: a MinScale above 1 or a MaxScale below 1 falls back to the default.
type Options struct {
	MinScale  float64
	MaxScale  float64
	ZoomStep  float64 // factor for ZoomIn/ZoomOut
	WheelStep float64 // factor per wheel notch
	FitMargin float64 // fraction of the container used by FitToContainer
}

func DefaultOptions() Options {
	return Options{MinScale: 0.3, MaxScale: 5, ZoomStep: 1.25, WheelStep: 1.1, FitMargin: 0.9}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if !(o.MinScale > 0 && o.MinScale <= 1) {
		o.MinScale = d.MinScale
	}
	if !(o.MaxScale >= 1) || math.IsInf(o.MaxScale, 0) {
		o.MaxScale = d.MaxScale
	}
	if !(o.ZoomStep > 1) || math.IsInf(o.ZoomStep, 0) {
		o.ZoomStep = d.ZoomStep
	}
	if !(o.WheelStep > 1) || math.IsInf(o.WheelStep, 0) {
		o.WheelStep = d.WheelStep
	}
	if !(o.FitMargin > 0 && o.FitMargin <= 1) {
		o.FitMargin = d.FitMargin
	}
	return o
}

// PointerID identifies one pointer (mouse button, finger, pen) for the length of a gesture.
type PointerID int64

// Mode is the gesture currently in progress.
type Mode int

const (
	Idle Mode = iota
	Panning
	Pinching
)

func (m Mode) String() string {
	switch m {
	case Panning:
		return "pan"
	case Pinching:
		return "pinch"
	default:
		return "idle"
	}
}

// pinchEpsilon is the smallest finger distance used as a pinch baseline.
const pinchEpsilon = 1e-6

// Controller owns one Transform and the transient gesture state that drives it.
type Controller struct {
	opts Options
	t    Transform

	base      float64 // scale chosen by the last FitToContainer
	container geom.Pt // container width/height from the last FitToContainer

	pointers  map[PointerID]geom.Pt
	anchor    geom.Pt // pan reference while one pointer is down
	pinchDist float64 // finger distance baseline while two pointers are down

	// OnInteractionEnd fires when the last pointer is released.
	OnInteractionEnd func()
}

// New returns a controller at scale 1 with no translation.
func New(opts Options) *Controller {
	c := &Controller{opts: opts.normalized(), pointers: make(map[PointerID]geom.Pt, 2), base: 1}
	c.t = Transform{Scale: c.clamp(1)}
	return c
}

func (c *Controller) Options() Options     { return c.opts }
func (c *Controller) Transform() Transform { return c.t }
func (c *Controller) BaseScale() float64   { return c.base }

// Mode reports the active gesture derived from the number of pointers down.
func (c *Controller) Mode() Mode {
	switch len(c.pointers) {
	case 1:
		return Panning
	case 2:
		return Pinching
	default:
		return Idle
	}
}

// ToContent maps a screen position back to content coordinates.
func (c *Controller) ToContent(screen geom.Pt) geom.Pt {
	inv, ok := c.t.Matrix().Invert()
	if !ok {
		return screen
	}
	return inv.Apply(screen)
}

// ToScreen maps a content position to the screen.
func (c *Controller) ToScreen(content geom.Pt) geom.Pt { return c.t.Matrix().Apply(content) }

func (c *Controller) clamp(v float64) float64 {
	return math.Min(math.Max(v, c.opts.MinScale), c.opts.MaxScale)
}

// setScale clamps v into range; NaN leaves the scale unchanged.
func (c *Controller) setScale(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.t.Scale = c.clamp(v)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// GestureStart registers a pointer. The second pointer starts a pinch; the first a pan.
// A third simultaneous pointer is ignored.
func (c *Controller) GestureStart(id PointerID, x, y float64) {
	if !finite(x, y) {
		return
	}
	if _, known := c.pointers[id]; !known && len(c.pointers) >= 2 {
		return
	}
	p := geom.Pt{X: x, Y: y}
	c.pointers[id] = p
	if len(c.pointers) == 2 {
		a, b := c.pair()
		c.pinchDist = geom.Dist(a, b)
		return
	}
	c.anchor = p
}

// GestureMove updates a pointer and applies the pan or pinch delta it implies.
func (c *Controller) GestureMove(id PointerID, x, y float64) {
	if _, known := c.pointers[id]; !known || !finite(x, y) {
		return
	}
	p := geom.Pt{X: x, Y: y}
	c.pointers[id] = p
	switch len(c.pointers) {
	case 1:
		c.t.TranslateX += p.X - c.anchor.X
		c.t.TranslateY += p.Y - c.anchor.Y
		c.anchor = p
	case 2:
		a, b := c.pair()
		d := geom.Dist(a, b)
		if c.pinchDist > pinchEpsilon {
			c.setScale(c.t.Scale * (d / c.pinchDist))
		}
		c.pinchDist = d
	}
}

// GestureEnd releases a pointer. Going from two pointers to one re-anchors the pan at the
// remaining pointer so the next move does not jump; releasing the last one ends the interaction.
func (c *Controller) GestureEnd(id PointerID) {
	if _, known := c.pointers[id]; !known {
		return
	}
	delete(c.pointers, id)
	c.pinchDist = 0
	switch len(c.pointers) {
	case 1:
		for _, p := range c.pointers {
			c.anchor = p
		}
	case 0:
		c.anchor = geom.Pt{}
		if c.OnInteractionEnd != nil {
			c.OnInteractionEnd()
		}
	}
}

// CancelGestures drops every pointer, e.g. when the window loses focus mid-drag.
func (c *Controller) CancelGestures() {
	if len(c.pointers) == 0 {
		return
	}
	for id := range c.pointers {
		delete(c.pointers, id)
	}
	c.anchor = geom.Pt{}
	c.pinchDist = 0
	if c.OnInteractionEnd != nil {
		c.OnInteractionEnd()
	}
}

// pair returns the two active pointers; only valid with exactly two down.
func (c *Controller) pair() (geom.Pt, geom.Pt) {
	var pts [2]geom.Pt
	i := 0
	for _, p := range c.pointers {
		if i < 2 {
			pts[i] = p
		}
		i++
	}
	return pts[0], pts[1]
}

func (c *Controller) ZoomIn()  { c.setScale(c.t.Scale * c.opts.ZoomStep) }
func (c *Controller) ZoomOut() { c.setScale(c.t.Scale / c.opts.ZoomStep) }

// Reset returns to scale 1 with no translation.
func (c *Controller) Reset() {
	c.t = Transform{Scale: 1}
}

// FitToContainer scales the content to fill FitMargin of the container and clears the
// translation. The resulting scale becomes the base scale for ZoomToPoint.
func (c *Controller) FitToContainer(contentW, contentH, containerW, containerH float64) {
	if !finite(contentW, contentH, containerW, containerH) || contentW <= 0 || contentH <= 0 || containerW <= 0 || containerH <= 0 {
		return
	}
	fit := math.Min(containerW/contentW, containerH/contentH) * c.opts.FitMargin
	c.setScale(fit)
	c.t.TranslateX, c.t.TranslateY = 0, 0
	c.base = c.t.Scale
	c.container = geom.Pt{X: containerW, Y: containerH}
}

// ZoomToPoint sets the scale and centers content point (x, y) in the container
// remembered by the last FitToContainer.
func (c *Controller) ZoomToPoint(x, y, targetScale float64) {
	if !finite(x, y, targetScale) {
		return
	}
	c.setScale(targetScale)
	cx, cy := c.container.X/2, c.container.Y/2
	c.t.TranslateX = cx - x*c.t.Scale
	c.t.TranslateY = cy - y*c.t.Scale
}

// WheelZoom zooms in for negative deltaY and out for positive deltaY.
func (c *Controller) WheelZoom(deltaY float64) {
	switch {
	case deltaY < 0:
		c.setScale(c.t.Scale * c.opts.WheelStep)
	case deltaY > 0:
		c.setScale(c.t.Scale / c.opts.WheelStep)
	}
}

// WheelZoomAt zooms like WheelZoom while keeping the content under screen point (x, y) fixed.
func (c *Controller) WheelZoomAt(deltaY, x, y float64) {
	if !finite(deltaY, x, y) {
		return
	}
	before := c.t.Scale
	c.WheelZoom(deltaY)
	if c.t.Scale == before {
		return
	}
	k := c.t.Scale / before
	c.t.TranslateX = x - (x-c.t.TranslateX)*k
	c.t.TranslateY = y - (y-c.t.TranslateY)*k
}
