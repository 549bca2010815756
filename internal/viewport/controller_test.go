/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package viewport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeplanner/internal/geom"
)

const eps = 1e-9

func TestNewStartsAtIdentity(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, Transform{Scale: 1}, c.Transform())
	assert.Equal(t, Idle, c.Mode())
	assert.Equal(t, DefaultOptions(), c.Options())
}

func TestZoomButtonsClampToRange(t *testing.T) {
	c := New(DefaultOptions())
	for i := 0; i < 50; i++ {
		c.ZoomIn()
	}
	assert.Equal(t, 5.0, c.Transform().Scale)
	for i := 0; i < 50; i++ {
		c.ZoomOut()
	}
	assert.Equal(t, 0.3, c.Transform().Scale)

	c.Reset()
	c.ZoomIn()
	assert.InDelta(t, 1.25, c.Transform().Scale, eps)
}

func TestWheelDirection(t *testing.T) {
	c := New(DefaultOptions())
	c.WheelZoom(-120)
	assert.InDelta(t, 1.1, c.Transform().Scale, eps)
	c.WheelZoom(120)
	assert.InDelta(t, 1.0, c.Transform().Scale, eps)
	c.WheelZoom(0)
	assert.InDelta(t, 1.0, c.Transform().Scale, eps)
}

func TestWheelZoomAtKeepsCursorContentFixed(t *testing.T) {
	c := New(DefaultOptions())
	cursor := geom.Pt{X: 200, Y: 150}
	under := c.ToContent(cursor)
	c.WheelZoomAt(-1, cursor.X, cursor.Y)
	got := c.ToScreen(under)
	assert.InDelta(t, cursor.X, got.X, 1e-6)
	assert.InDelta(t, cursor.Y, got.Y, 1e-6)
}

func TestSinglePointerPans(t *testing.T) {
	c := New(DefaultOptions())
	c.GestureStart(1, 10, 10)
	require.Equal(t, Panning, c.Mode())
	c.GestureMove(1, 30, 5)
	c.GestureMove(1, 40, 15)
	tr := c.Transform()
	assert.Equal(t, 30.0, tr.TranslateX)
	assert.Equal(t, 5.0, tr.TranslateY)
	assert.Equal(t, 1.0, tr.Scale)
}

func TestPinchScalesByDistanceRatio(t *testing.T) {
	c := New(DefaultOptions())
	c.GestureStart(1, 0, 0)
	c.GestureStart(2, 100, 0)
	require.Equal(t, Pinching, c.Mode())
	c.GestureMove(2, 200, 0)
	assert.InDelta(t, 2.0, c.Transform().Scale, eps)
	// baseline follows the fingers
	c.GestureMove(2, 300, 0)
	assert.InDelta(t, 3.0, c.Transform().Scale, eps)
	c.GestureMove(2, 10000, 0)
	assert.Equal(t, 5.0, c.Transform().Scale)
}

func TestPinchToPanDoesNotJump(t *testing.T) {
	c := New(DefaultOptions())
	c.GestureStart(1, 0, 0)
	c.GestureStart(2, 100, 0)
	c.GestureMove(2, 150, 0)
	c.GestureEnd(2)
	require.Equal(t, Panning, c.Mode())
	before := c.Transform()
	// first move from the remaining pointer's own position must not translate
	c.GestureMove(1, 0, 0)
	assert.Equal(t, before, c.Transform())
	c.GestureMove(1, 5, 7)
	assert.Equal(t, before.TranslateX+5, c.Transform().TranslateX)
	assert.Equal(t, before.TranslateY+7, c.Transform().TranslateY)
}

func TestThirdPointerAndUnknownMovesIgnored(t *testing.T) {
	c := New(DefaultOptions())
	c.GestureStart(1, 0, 0)
	c.GestureStart(2, 100, 0)
	c.GestureStart(3, 500, 500)
	assert.Equal(t, Pinching, c.Mode())
	c.GestureMove(3, 900, 900)
	c.GestureEnd(3)
	assert.Equal(t, Transform{Scale: 1}, c.Transform())
	assert.Equal(t, Pinching, c.Mode())
}

func TestCoincidentPinchStaysFinite(t *testing.T) {
	c := New(DefaultOptions())
	c.GestureStart(1, 50, 50)
	c.GestureStart(2, 50, 50)
	c.GestureMove(2, 80, 50)
	tr := c.Transform()
	assert.False(t, math.IsNaN(tr.Scale) || math.IsInf(tr.Scale, 0))
	assert.Equal(t, 1.0, tr.Scale)
	c.GestureMove(2, 50, 50)
	assert.Equal(t, 0.3, c.Transform().Scale)
}

func TestNaNInputsLeaveStateUntouched(t *testing.T) {
	c := New(DefaultOptions())
	c.GestureStart(1, math.NaN(), 0)
	assert.Equal(t, Idle, c.Mode())
	c.GestureStart(1, 0, 0)
	c.GestureMove(1, math.Inf(1), 0)
	c.ZoomToPoint(math.NaN(), 0, 2)
	c.WheelZoom(math.NaN())
	c.FitToContainer(math.NaN(), 100, 100, 100)
	assert.Equal(t, Transform{Scale: 1}, c.Transform())
}

func TestInteractionEndFiresOnLastRelease(t *testing.T) {
	c := New(DefaultOptions())
	ended := 0
	c.OnInteractionEnd = func() { ended++ }
	c.GestureStart(1, 0, 0)
	c.GestureStart(2, 10, 0)
	c.GestureEnd(1)
	assert.Equal(t, 0, ended)
	c.GestureEnd(2)
	assert.Equal(t, 1, ended)
	c.GestureEnd(2)
	assert.Equal(t, 1, ended)

	c.GestureStart(4, 0, 0)
	c.CancelGestures()
	assert.Equal(t, 2, ended)
	assert.Equal(t, Idle, c.Mode())
}

func TestFitToContainer(t *testing.T) {
	c := New(DefaultOptions())
	c.GestureStart(1, 0, 0)
	c.GestureMove(1, 40, 40)
	c.GestureEnd(1)
	c.FitToContainer(3000, 2600, 2400, 2000)
	tr := c.Transform()
	want := math.Min(2400.0/3000, 2000.0/2600) * 0.9
	assert.InDelta(t, want, tr.Scale, eps)
	assert.Equal(t, 0.0, tr.TranslateX)
	assert.Equal(t, 0.0, tr.TranslateY)
	assert.InDelta(t, want, c.BaseScale(), eps)

	// tiny containers clamp at the minimum
	c.FitToContainer(3000, 2600, 10, 10)
	assert.Equal(t, 0.3, c.Transform().Scale)

	c.FitToContainer(0, 100, 100, 100)
	assert.Equal(t, 0.3, c.Transform().Scale)
}

func TestZoomToPointCentersContent(t *testing.T) {
	c := New(DefaultOptions())
	c.FitToContainer(3000, 2600, 1000, 800)
	c.ZoomToPoint(1500, 1300, 2)
	tr := c.Transform()
	assert.Equal(t, 2.0, tr.Scale)
	center := c.ToScreen(geom.Pt{X: 1500, Y: 1300})
	assert.InDelta(t, 500, center.X, eps)
	assert.InDelta(t, 400, center.Y, eps)

	c.ZoomToPoint(0, 0, 99)
	assert.Equal(t, 5.0, c.Transform().Scale)
}

func TestResetAfterArbitraryInput(t *testing.T) {
	c := New(DefaultOptions())
	c.GestureStart(1, 3, 4)
	c.GestureMove(1, 300, -40)
	c.GestureStart(2, 0, 0)
	c.GestureMove(2, -50, 10)
	c.WheelZoom(-3)
	c.ZoomToPoint(10, 10, 4)
	c.Reset()
	assert.Equal(t, Transform{Scale: 1}, c.Transform())
}

func TestToContentInvertsMatrix(t *testing.T) {
	c := New(DefaultOptions())
	c.ZoomToPoint(100, 50, 2.5)
	p := geom.Pt{X: 123, Y: -45}
	back := c.ToContent(c.ToScreen(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
	assert.Contains(t, c.Transform().CSS(), "scale(2.5)")
}

func TestOptionsNormalization(t *testing.T) {
	o := Options{MinScale: 2, MaxScale: 1, ZoomStep: 0.5, FitMargin: 3}.normalized()
	assert.Equal(t, 0.3, o.MinScale)
	assert.Equal(t, 1.0, o.MaxScale)
	assert.Equal(t, 1.25, o.ZoomStep)
	assert.Equal(t, 1.1, o.WheelStep)
	assert.Equal(t, 0.9, o.FitMargin)
}

func TestScaleRangeAlwaysContainsOne(t *testing.T) {
	for _, o := range []Options{{MinScale: 2}, {MaxScale: 0.5}, {MinScale: 1.5, MaxScale: 0.8}} {
		c := New(o)
		assert.LessOrEqual(t, c.Options().MinScale, 1.0)
		assert.GreaterOrEqual(t, c.Options().MaxScale, 1.0)
		c.WheelZoom(-1e9)
		c.GestureStart(1, 10, 10)
		c.GestureMove(1, 40, 25)
		c.GestureEnd(1)
		c.Reset()
		assert.Equal(t, Transform{Scale: 1}, c.Transform(), "options %+v", o)
	}
}
