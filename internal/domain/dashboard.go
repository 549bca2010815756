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

import "storeplanner/internal/geom"

// AxisSummary is the per-axis score block of GET /dashboard. Code is a backend code.
type AxisSummary struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Score          float64 `json:"score"`
	OKLine         float64 `json:"ok_line"`
	GrowthZone     float64 `json:"growth_zone"`
	Comment        string  `json:"comment"`
	NextStep       string  `json:"next_step"`
	Answered       int     `json:"answered"`
	TotalQuestions int     `json:"total_questions"`
	Missing        *int    `json:"missing,omitempty"`
}

type DetailProgress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// Incomplete reports whether detail questions remain unanswered.
func (p DetailProgress) Incomplete() bool { return p.Total > 0 && p.Answered < p.Total }

type NextFocus struct {
	AxisCode string `json:"axis_code"`
	AxisName string `json:"axis_name"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
}

type ConceptInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Dashboard is the GET /dashboard payload.
type Dashboard struct {
	Concept          ConceptInfo    `json:"concept"`
	Axes             []AxisSummary  `json:"axes"`
	DetailProgress   DetailProgress `json:"detail_progress"`
	NextFocus        *NextFocus     `json:"next_focus,omitempty"`
	OKLine           float64        `json:"ok_line"`
	GrowthZone       float64        `json:"growth_zone"`
	OwnerNote        string         `json:"owner_note,omitempty"`
	LatestStoreStory string         `json:"latest_store_story,omitempty"`
	UserEmail        string         `json:"user_email"`
}

// RadarPoint is one spoke of the score radar chart.
type RadarPoint struct {
	Code   AxisCode
	Label  string
	Value  float64
	OKLine float64
}

// RadarPoints returns one point per axis in display order. Each backend axis is consumed at
// most once; a backend entry whose code equals the current backend code wins over a legacy
// alias. Missing axes score zero.
func (d Dashboard) RadarPoints() []RadarPoint {
	used := make([]bool, len(d.Axes))
	pick := func(match func(AxisSummary) bool) (AxisSummary, bool) {
		for i, a := range d.Axes {
			if !used[i] && match(a) {
				used[i] = true
				return a, true
			}
		}
		return AxisSummary{}, false
	}

	out := make([]RadarPoint, 0, len(axisTable))
	for _, ax := range axisTable {
		p := RadarPoint{Code: ax.Code, Label: ax.Name, OKLine: d.OKLine}
		want := ax.Code.BackendCode()
		a, ok := pick(func(a AxisSummary) bool { return a.Code == want })
		if !ok {
			a, ok = pick(func(a AxisSummary) bool {
				c, known := Canonical(a.Code)
				return known && c == ax.Code
			})
		}
		if ok {
			p.Value = geom.Round(a.Score, 1)
		}
		out = append(out, p)
	}
	return out
}

// Placeholder texts for axes the backend has not scored yet.
const (
	unscoredComment  = "No score yet. Answer the detail questions to calculate."
	unscoredNextStep = "Open the detail questions for this axis to generate a score."
)

// FillAxisSummaries returns a copy with exactly one summary per axis in display order,
// synthesizing unscored entries for axes the backend omitted.
func (d Dashboard) FillAxisSummaries() Dashboard {
	byAxis := make(map[AxisCode]AxisSummary, len(d.Axes))
	for _, a := range d.Axes {
		c, ok := Canonical(a.Code)
		if !ok {
			continue
		}
		if _, dup := byAxis[c]; !dup {
			byAxis[c] = a
		}
	}
	okLine, growth := d.OKLine, d.GrowthZone
	if okLine == 0 {
		okLine = 5
	}
	if growth == 0 {
		growth = 6
	}
	filled := make([]AxisSummary, 0, len(axisTable))
	for _, ax := range axisTable {
		if a, ok := byAxis[ax.Code]; ok {
			filled = append(filled, a)
			continue
		}
		missing := 3
		filled = append(filled, AxisSummary{
			Code:           ax.Code.BackendCode(),
			Name:           ax.Name,
			OKLine:         okLine,
			GrowthZone:     growth,
			Comment:        unscoredComment,
			NextStep:       unscoredNextStep,
			TotalQuestions: 3,
			Missing:        &missing,
		})
	}
	d.Axes = filled
	return d
}

// AxisStep is a step definition as listed by GET /axes.
type AxisStep struct {
	Level        int    `json:"level"`
	Code         string `json:"code"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"display_order"`
}

// AxisListItem is one axis as listed by GET /axes.
type AxisListItem struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Steps       []AxisStep `json:"steps"`
}

// Canonical resolves the listed axis, trying the name before the code.
func (a AxisListItem) Canonical() (AxisCode, bool) {
	if c, ok := Canonical(a.Name); ok {
		return c, true
	}
	return Canonical(a.Code)
}

// AudienceSummary is the POST /summaries answer: a plan rewritten for one audience.
type AudienceSummary struct {
	SummaryType string `json:"summary_type"`
	Content     string `json:"content"`
	CreatedAt   string `json:"created_at"`
}

// Audience describes one summary audience.
type Audience struct {
	Code  string
	Label string
}

var audiences = []Audience{
	{"family", "家族向け"},
	{"staff", "従業員向け"},
	{"bank", "銀行向け"},
	{"public", "公的機関向け"},
}

func Audiences() []Audience { return append([]Audience(nil), audiences...) }

// ValidAudience reports whether code names a known summary audience.
func ValidAudience(code string) bool {
	for _, a := range audiences {
		if a.Code == code {
			return true
		}
	}
	return false
}
