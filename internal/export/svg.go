/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"storeplanner/internal/domain"
	applog "storeplanner/internal/log"
	"storeplanner/internal/mindmap"
)

// SVGOptions controls SVG export behavior.
// - Crop shrinks the viewBox to the visible nodes plus Padding instead of the whole canvas.
// - FontFamily is a hint only; fonts are not embedded.
type SVGOptions struct {
	Crop       bool
	Padding    float64
	Background string
	FontFamily string
}

func (o SVGOptions) withDefaults() SVGOptions {
	if o.Background == "" {
		o.Background = "#f8fafc"
	}
	if o.FontFamily == "" {
		o.FontFamily = "Hiragino Sans, Noto Sans JP, sans-serif"
	}
	if o.Padding <= 0 {
		o.Padding = 40
	}
	return o
}

// WriteMindmapSVG renders a laid out diagram as a standalone SVG document.
func WriteMindmapSVG(w io.Writer, d mindmap.Diagram, opt SVGOptions) error {
	opt = opt.withDefaults()
	view := d.Canvas()
	if b := d.Bounds(); opt.Crop && !b.Empty() {
		view = b.Inset(-opt.Padding, -opt.Padding)
	}

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%g\" height=\"%g\" viewBox=\"%g %g %g %g\">\n",
		view.W, view.H, view.X, view.Y, view.W, view.H)
	wf("  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\"/>\n", view.X, view.Y, view.W, view.H, escAttr(opt.Background))

	wf("  <g id=\"edges\" fill=\"none\">\n")
	for _, e := range d.Edges {
		from, ok1 := d.Node(e.From)
		to, ok2 := d.Node(e.To)
		if !ok1 || !ok2 {
			continue
		}
		width, dash := 2.0, ""
		if e.Kind == mindmap.ItemNode {
			width, dash = 1.5, " stroke-dasharray=\"4 3\""
		}
		wf("    <line x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\" stroke=\"%s\" stroke-width=\"%g\" stroke-opacity=\"0.6\"%s/>\n",
			from.Pos.X, from.Pos.Y, to.Pos.X, to.Pos.Y, escAttr(e.Color), width, dash)
	}
	wf("  </g>\n")

	wf("  <g id=\"nodes\" font-family=\"%s\" text-anchor=\"middle\">\n", escAttr(opt.FontFamily))
	for _, n := range d.Nodes {
		fill, stroke, text := NodeColors(n)
		wf("    <g id=\"%s\" data-kind=\"%s\">\n", escAttr(n.ID), n.Kind)
		wf("      <circle cx=\"%g\" cy=\"%g\" r=\"%g\" fill=\"%s\" stroke=\"%s\" stroke-width=\"%g\"/>\n",
			n.Pos.X, n.Pos.Y, n.Radius, fill, stroke, strokeWidth(n.Kind))
		size := fontSize(d.Config, n.Kind)
		lh := float64(size) * 1.25
		y := n.Pos.Y - lh*float64(len(n.Label.Lines)-1)/2 + float64(size)*0.35
		for _, line := range n.Label.Lines {
			wf("      <text x=\"%g\" y=\"%g\" font-size=\"%g\" fill=\"%s\">%s</text>\n", n.Pos.X, y, size, text, escText(line))
			y += lh
		}
		wf("    </g>\n")
	}
	wf("  </g>\n")
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ExportMindmapSVG writes the diagram to outPath, creating the directory if needed.
func ExportMindmapSVG(d mindmap.Diagram, outPath string, opt SVGOptions) error {
	l := applog.WithOperation(applog.WithComponent("export"), "mindmap_svg")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	var buf bytes.Buffer
	if err := WriteMindmapSVG(&buf, d, opt); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	l.Info("mindmap exported", slog.String("path", outPath), slog.Int("nodes", len(d.Nodes)))
	return nil
}

// NodeColors returns fill, stroke and text color. Items are colored by status, the other
// levels by their axis.
func NodeColors(n mindmap.Node) (fill, stroke, text string) {
	switch n.Kind {
	case mindmap.ItemNode:
		c := domain.StatusColors(n.Status)
		return c.Fill, c.Stroke, c.Text
	case mindmap.StepNode:
		return "#ffffff", n.Color, n.Color
	default:
		return n.Color, "#ffffff", "#ffffff"
	}
}

func strokeWidth(k mindmap.Kind) float64 {
	if k == mindmap.StepNode {
		return 3
	}
	return 2
}

func fontSize(cfg mindmap.Config, k mindmap.Kind) float32 {
	switch k {
	case mindmap.CenterNode:
		return cfg.CenterFont.SizePt
	case mindmap.AxisNode:
		return cfg.AxisFont.SizePt
	case mindmap.StepNode:
		return cfg.StepFont.SizePt
	default:
		return cfg.ItemFont.SizePt
	}
}

func escAttr(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, "&quot;"...)
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '\n':
			out = append(out, ' ')
		case '\r':
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
