/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"storeplanner/internal/geom"
	"storeplanner/internal/mindmap"
)

// PNGOptions controls PNG export behavior.
// - Scale multiplies content coordinates into pixels (default 0.5).
// - Crop limits the image to the visible nodes plus Padding.
type PNGOptions struct {
	Scale      float64
	Crop       bool
	Padding    float64
	Background string
}

// RenderMindmap rasterizes the diagram. Labels are drawn with the diagram's font provider.
func RenderMindmap(d mindmap.Diagram, opt PNGOptions) *image.RGBA {
	if opt.Scale <= 0 {
		opt.Scale = 0.5
	}
	if opt.Padding <= 0 {
		opt.Padding = 40
	}
	if opt.Background == "" {
		opt.Background = "#f8fafc"
	}
	view := d.Canvas()
	if b := d.Bounds(); opt.Crop && !b.Empty() {
		view = b.Inset(-opt.Padding, -opt.Padding)
	}
	xf := geom.Scale(opt.Scale, opt.Scale).Mul(geom.Translate(-view.X, -view.Y))
	w := int(math.Ceil(view.W * opt.Scale))
	h := int(math.Ceil(view.H * opt.Scale))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(ParseHex(opt.Background)), image.Point{}, draw.Src)

	z := vector.NewRasterizer(w, h)
	for _, e := range d.Edges {
		from, ok1 := d.Node(e.From)
		to, ok2 := d.Node(e.To)
		if !ok1 || !ok2 {
			continue
		}
		c := ParseHex(e.Color)
		z.Reset(w, h)
		segment(z, xf.Apply(from.Pos), xf.Apply(to.Pos), math.Max(1, 2*opt.Scale))
		z.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 150}), image.Point{})
	}

	for _, n := range d.Nodes {
		fill, stroke, text := NodeColors(n)
		c := xf.Apply(n.Pos)
		r := n.Radius * opt.Scale
		sw := math.Max(1, strokeWidth(n.Kind)*opt.Scale)

		z.Reset(w, h)
		circle(z, c, r, false)
		z.Draw(img, img.Bounds(), image.NewUniform(ParseHex(fill)), image.Point{})
		z.Reset(w, h)
		circle(z, c, r, false)
		circle(z, c, r-sw, true)
		z.Draw(img, img.Bounds(), image.NewUniform(ParseHex(stroke)), image.Point{})

		drawLabel(img, d.Config, n, c, ParseHex(text))
	}
	return img
}

// ExportMindmapPNG writes the rasterized diagram to outPath.
func ExportMindmapPNG(d mindmap.Diagram, outPath string, opt PNGOptions) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	img := RenderMindmap(d, opt)
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// circle adds a polygonal circle; reverse winds it the other way so it cuts a hole.
func circle(z *vector.Rasterizer, c geom.Pt, r float64, reverse bool) {
	if r <= 0 {
		return
	}
	const n = 48
	for i := 0; i <= n; i++ {
		a := 2 * math.Pi * float64(i) / n
		if reverse {
			a = -a
		}
		p := geom.Polar(c, r, a)
		if i == 0 {
			z.MoveTo(float32(p.X), float32(p.Y))
			continue
		}
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
}

// segment adds a line of the given width as a quad.
func segment(z *vector.Rasterizer, a, b geom.Pt, width float64) {
	l := geom.Dist(a, b)
	if l == 0 {
		return
	}
	nx := -(b.Y - a.Y) / l * width / 2
	ny := (b.X - a.X) / l * width / 2
	z.MoveTo(float32(a.X+nx), float32(a.Y+ny))
	z.LineTo(float32(b.X+nx), float32(b.Y+ny))
	z.LineTo(float32(b.X-nx), float32(b.Y-ny))
	z.LineTo(float32(a.X-nx), float32(a.Y-ny))
	z.ClosePath()
}

func drawLabel(img *image.RGBA, cfg mindmap.Config, n mindmap.Node, c geom.Pt, col color.RGBA) {
	if len(n.Label.Lines) == 0 || cfg.Fonts == nil {
		return
	}
	spec := cfg.ItemFont
	switch n.Kind {
	case mindmap.CenterNode:
		spec = cfg.CenterFont
	case mindmap.AxisNode:
		spec = cfg.AxisFont
	case mindmap.StepNode:
		spec = cfg.StepFont
	}
	face, m := cfg.Fonts.Resolve(spec)
	lh := float64(m.LineHeight())
	y := c.Y - lh*float64(len(n.Label.Lines))/2 + float64(m.Ascent)
	dr := &font.Drawer{Dst: img, Src: image.NewUniform(col), Face: face}
	for _, line := range n.Label.Lines {
		adv := dr.MeasureString(line)
		x := c.X - float64(adv)/128
		dr.Dot = fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
		dr.DrawString(line)
		y += lh
	}
}

// ParseHex parses #rgb or #rrggbb; anything else is opaque black.
func ParseHex(s string) color.RGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if len(s) != 6 || err != nil {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
