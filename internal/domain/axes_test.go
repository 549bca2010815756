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

import "testing"

func TestCanonicalResolvesCodesAndNames(t *testing.T) {
	cases := []struct {
		in   string
		want AxisCode
	}{
		{"concept", Concept},
		{"funds", FundingPlan},
		{"funding_plan", FundingPlan},
		{"compliance", FundingPlan},
		{"equipment", InteriorExterior},
		{"interior_exterior", InteriorExterior},
		{"販促", Marketing},
		{"集客", Marketing},
		{"設備", InteriorExterior},
		{" menu ", Menu},
	}
	for _, tc := range cases {
		got, ok := Canonical(tc.in)
		if !ok || got != tc.want {
			t.Errorf("Canonical(%q) = %q, %v; want %q", tc.in, got, ok, tc.want)
		}
	}
	if _, ok := Canonical("unknown"); ok {
		t.Fatalf("unknown code resolved")
	}
	if _, ok := Canonical(""); ok {
		t.Fatalf("empty code resolved")
	}
}

func TestBackendCodeRoundTrip(t *testing.T) {
	for _, a := range Axes() {
		got, ok := Canonical(a.Code.BackendCode())
		if !ok || got != a.Code {
			t.Fatalf("round trip of %s via %q = %q", a.Code, a.Code.BackendCode(), got)
		}
	}
	if FundingPlan.BackendCode() != "funds" {
		t.Fatalf("funding plan backend code = %q", FundingPlan.BackendCode())
	}
}

func TestCatalogueShape(t *testing.T) {
	axes := Axes()
	if len(axes) != 8 {
		t.Fatalf("axes = %d", len(axes))
	}
	for _, a := range axes {
		st := Steps(a.Code)
		if len(st) != 3 {
			t.Fatalf("%s has %d steps", a.Code, len(st))
		}
		for _, s := range st {
			if n := len(s.Items); n < 3 || n > 5 {
				t.Fatalf("%s/%s has %d items", a.Code, s.ID, n)
			}
		}
	}
}

func TestNodeIDParse(t *testing.T) {
	id := NodeID(RevenueForecast, "step2", "10")
	if id != "revenue_forecast_step2_10" {
		t.Fatalf("NodeID = %q", id)
	}
	axis, step, item, ok := ParseNodeID(id)
	if !ok || axis != RevenueForecast || step != "step2" || item != "10" {
		t.Fatalf("ParseNodeID = %q %q %q %v", axis, step, item, ok)
	}
	if _, _, _, ok := ParseNodeID("revenue_forecast_step2"); ok {
		t.Fatalf("expected failure without item")
	}
	if _, _, _, ok := ParseNodeID("nope_step1_1"); ok {
		t.Fatalf("expected failure for unknown axis")
	}
	a, s, it, ok := FindItem("concept_step1_1-3")
	if !ok || a.Code != Concept || s.ID != "step1" || it.Title != "コア価値" {
		t.Fatalf("FindItem = %+v %+v %+v %v", a, s, it, ok)
	}
}
