/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Label measurement and wrapping for diagram nodes. Measurement goes through font.Face so
// the same code serves the deterministic built-in face and real OpenType fonts.

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FontSpec describes a requested font.
type FontSpec struct {
	Family string // logical family name
	SizePt float32
	Bold   bool
}

// Metrics provides font metrics in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float32
}

// LineHeight is the baseline-to-baseline distance.
func (m Metrics) LineHeight() float32 { return m.Ascent + m.Descent + m.LineGap }

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider uses x/image/basicfont Face7x13 for deterministic output. Wide (CJK) runes
// advance two cells so Japanese labels measure roughly like they render.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	return wideFace{f}, metricsOf(f)
}

func metricsOf(f font.Face) Metrics {
	m := f.Metrics()
	return Metrics{
		Ascent:  float32(m.Ascent.Round()),
		Descent: float32(m.Descent.Round()),
		LineGap: float32(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
}

type wideFace struct{ font.Face }

func (w wideFace) GlyphAdvance(r rune) (fixed.Int26_6, bool) {
	adv, ok := w.Face.GlyphAdvance(r)
	if isWide(r) {
		adv *= 2
	}
	return adv, ok
}

func isWide(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) ||
		(r >= 0xFF01 && r <= 0xFF60) || (r >= 0x3000 && r <= 0x303F)
}

func advance(face font.Face, s string) float32 {
	return float32(font.MeasureString(face, s).Ceil())
}

// Measure returns the single-line width and the line height of s.
func Measure(p Provider, spec FontSpec, s string) (w, h float32) {
	if p == nil {
		p = BasicProvider{}
	}
	face, met := p.Resolve(spec)
	return advance(face, s), met.Ascent + met.Descent
}

// Label is a wrapped node label.
type Label struct {
	Lines  []string
	Width  float32
	Height float32
}

const ellipsis = "…"

// WrapLabel breaks text into at most maxLines lines no wider than maxWidth. Text with spaces
// breaks between words; text without spaces (Japanese) breaks between runes. Overflow ends the
// last line with an ellipsis. maxLines <= 0 means unlimited.
func WrapLabel(p Provider, spec FontSpec, text string, maxWidth float32, maxLines int) Label {
	if p == nil {
		p = BasicProvider{}
	}
	face, met := p.Resolve(spec)
	text = strings.TrimSpace(text)
	var lb Label
	if text == "" {
		return lb
	}

	var units []string
	sep := ""
	if strings.ContainsRune(text, ' ') {
		units = strings.Fields(text)
		sep = " "
	} else {
		for _, r := range text {
			units = append(units, string(r))
		}
	}

	var lines []string
	cur := ""
	for _, u := range units {
		next := u
		if cur != "" {
			next = cur + sep + u
		}
		if cur != "" && maxWidth > 0 && advance(face, next) > maxWidth {
			lines = append(lines, cur)
			cur = u
			continue
		}
		cur = next
	}
	if cur != "" {
		lines = append(lines, cur)
	}

	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
		last := lines[maxLines-1]
		for last != "" && maxWidth > 0 && advance(face, last+ellipsis) > maxWidth {
			_, size := utf8.DecodeLastRuneInString(last)
			last = strings.TrimRight(last[:len(last)-size], " ")
		}
		lines[maxLines-1] = last + ellipsis
	}

	lb.Lines = lines
	for _, l := range lines {
		if w := advance(face, l); w > lb.Width {
			lb.Width = w
		}
	}
	lb.Height = float32(len(lines))*met.LineHeight() - met.LineGap
	return lb
}
