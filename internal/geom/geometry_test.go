/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import (
	"math"
	"testing"
)

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
}

func TestRectUnionIgnoresEmpty(t *testing.T) {
	var acc Rect
	acc = acc.Union(R(10, 10, 10, 10))
	acc = acc.Union(Around(Pt{0, 0}, 5))
	if acc != R(-5, -5, 25, 25) {
		t.Fatalf("unexpected union: %+v", acc)
	}
	if c := acc.Center(); c.X != 7.5 || c.Y != 7.5 {
		t.Fatalf("unexpected center: %+v", c)
	}
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 { // (1*2+10, 1*3+5)
		t.Fatalf("unexpected transform result: %+v", p)
	}
}

func TestAffineInvertRoundTrip(t *testing.T) {
	m := Translate(-40, 12).Mul(Scale(2.5, 2.5))
	inv, ok := m.Invert()
	if !ok {
		t.Fatalf("expected invertible matrix")
	}
	p := inv.Apply(m.Apply(Pt{3, -7}))
	if math.Abs(p.X-3) > 1e-9 || math.Abs(p.Y+7) > 1e-9 {
		t.Fatalf("round trip drifted: %+v", p)
	}
	if _, ok := Scale(0, 1).Invert(); ok {
		t.Fatalf("singular matrix reported invertible")
	}
}

func TestPolarAndDist(t *testing.T) {
	p := Polar(Pt{1, 1}, 2, math.Pi/2)
	if math.Abs(p.X-1) > 1e-9 || math.Abs(p.Y-3) > 1e-9 {
		t.Fatalf("unexpected polar point: %+v", p)
	}
	if d := Dist(Pt{0, 0}, Pt{3, 4}); d != 5 {
		t.Fatalf("Dist = %v", d)
	}
	if Round(1.26, 1) != 1.3 {
		t.Fatalf("Round failed")
	}
}
