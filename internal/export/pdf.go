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
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"storeplanner/internal/domain"
	applog "storeplanner/internal/log"
	"storeplanner/internal/storage"
)

// Report is the content of a plan report.
type Report struct {
	Title     string
	Generated time.Time
	Dashboard domain.Dashboard
	Progress  map[domain.AxisCode]domain.Progress
	Summaries []storage.Entry
}

// PDFOptions controls PDF export behavior.
// FontFile names a TTF with Japanese coverage; without it the built-in Helvetica is used and
// characters outside cp1252 cannot be shown.
type PDFOptions struct {
	FontFile string
}

const (
	margin    = 42.0
	fontBody  = "body"
	radarSize = 150.0
)

// WriteReportPDF renders the report as A4 pages onto w.
func WriteReportPDF(w io.Writer, r Report, opt PDFOptions) error {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	title := r.Title
	if title == "" {
		title = "Store plan"
	}

	family := "Helvetica"
	tr := func(s string) string { return s }
	if opt.FontFile != "" {
		pdf.AddUTF8Font(fontBody, "", opt.FontFile)
		family = fontBody
	} else {
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	if pdf.Err() {
		return fmt.Errorf("load font: %w", pdf.Error())
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor("storeplanner", false)
	pdf.SetFont(family, "", 11)
	pdf.AddPage()

	// title block
	pdf.SetFontSize(20)
	pdf.CellFormat(0, 28, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFontSize(9)
	pdf.SetTextColor(100, 116, 139)
	gen := r.Generated
	if gen.IsZero() {
		gen = time.Now()
	}
	pdf.CellFormat(0, 14, tr(gen.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.SetTextColor(15, 23, 42)
	if c := r.Dashboard.Concept; c.Title != "" {
		pdf.Ln(6)
		pdf.SetFontSize(13)
		pdf.CellFormat(0, 18, tr(c.Title), "", 1, "L", false, 0, "")
		pdf.SetFontSize(10)
		pdf.MultiCell(0, 14, tr(c.Description), "", "L", false)
	}

	// radar and score table
	pdf.Ln(10)
	points := r.Dashboard.RadarPoints()
	top := pdf.GetY()
	drawRadar(pdf, tr, points, margin+radarSize+20, top+radarSize+10, radarSize)
	pdf.SetY(top + 2*radarSize + 40)
	scoreTable(pdf, tr, r, points)

	if nf := r.Dashboard.NextFocus; nf != nil && nf.Message != "" {
		pdf.Ln(8)
		pdf.SetFontSize(12)
		pdf.CellFormat(0, 16, tr("Next focus: "+nf.AxisName), "", 1, "L", false, 0, "")
		pdf.SetFontSize(10)
		pdf.MultiCell(0, 14, tr(nf.Message), "", "L", false)
	}

	if len(r.Summaries) > 0 {
		pdf.AddPage()
		pdf.SetFontSize(16)
		pdf.CellFormat(0, 22, tr("Summaries"), "", 1, "L", false, 0, "")
		for _, e := range r.Summaries {
			pdf.Ln(4)
			pdf.SetFontSize(11)
			pdf.SetTextColor(29, 78, 216)
			pdf.CellFormat(0, 16, tr(EntryHeading(e)), "", 1, "L", false, 0, "")
			pdf.SetTextColor(15, 23, 42)
			pdf.SetFontSize(10)
			pdf.MultiCell(0, 14, tr(strings.TrimSpace(e.Text)), "", "L", false)
		}
	}

	if pdf.Err() {
		return fmt.Errorf("build pdf: %w", pdf.Error())
	}
	return pdf.Output(w)
}

// ExportReportPDF writes the report to outPath, creating the directory if needed.
func ExportReportPDF(r Report, outPath string, opt PDFOptions) error {
	l := applog.WithOperation(applog.WithComponent("export"), "report_pdf")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	if err := WriteReportPDF(f, r, opt); err != nil {
		_ = f.Close()
		return fmt.Errorf("write pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close pdf: %w", err)
	}
	l.Info("report exported", slog.String("path", outPath), slog.Int("summaries", len(r.Summaries)))
	return nil
}

// EntryHeading names a cached text for humans: "axis / step / item" for node summaries.
func EntryHeading(e storage.Entry) string {
	switch e.Kind {
	case storage.KindSummary:
		if ax, st, it, ok := domain.FindItem(e.Key); ok {
			return ax.Name + " / " + st.Name + " / " + it.Title
		}
	case storage.KindAdvice:
		if i := strings.LastIndexByte(e.Key, '/'); i >= 0 {
			cat := e.Key[i+1:]
			if code, ok := domain.Canonical(cat); ok {
				return "Advice / " + code.Name()
			}
			return "Advice / " + cat
		}
	case storage.KindAudience:
		for _, a := range domain.Audiences() {
			if a.Code == e.Key {
				return a.Label
			}
		}
	}
	return e.Key
}

func drawRadar(pdf *gofpdf.Fpdf, tr func(string) string, pts []domain.RadarPoint, cx, cy, size float64) {
	n := len(pts)
	if n < 3 {
		return
	}
	const maxScore = 10.0
	at := func(i int, v float64) gofpdf.PointType {
		a := -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
		r := size * math.Min(math.Max(v, 0), maxScore) / maxScore
		return gofpdf.PointType{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	ring := func(v float64) []gofpdf.PointType {
		out := make([]gofpdf.PointType, n)
		for i := range out {
			out[i] = at(i, v)
		}
		return out
	}

	pdf.SetLineWidth(0.5)
	pdf.SetDrawColor(203, 213, 225)
	for _, v := range []float64{2, 4, 6, 8, 10} {
		pdf.Polygon(ring(v), "D")
	}
	for i := range pts {
		p := at(i, maxScore)
		pdf.Line(cx, cy, p.X, p.Y)
	}

	if ok := pts[0].OKLine; ok > 0 {
		pdf.SetDrawColor(234, 88, 12)
		pdf.SetDashPattern([]float64{4, 3}, 0)
		pdf.Polygon(ring(ok), "D")
		pdf.SetDashPattern([]float64{}, 0)
	}

	scores := make([]gofpdf.PointType, n)
	for i, p := range pts {
		scores[i] = at(i, p.Value)
	}
	pdf.SetDrawColor(29, 78, 216)
	pdf.SetFillColor(147, 197, 253)
	pdf.SetAlpha(0.6, "Normal")
	pdf.Polygon(scores, "FD")
	pdf.SetAlpha(1, "Normal")

	pdf.SetFontSize(8)
	for i, p := range pts {
		lp := at(i, maxScore*1.18)
		label := tr(p.Label)
		w := pdf.GetStringWidth(label)
		pdf.Text(lp.X-w/2, lp.Y+3, label)
	}
}

func scoreTable(pdf *gofpdf.Fpdf, tr func(string) string, r Report, pts []domain.RadarPoint) {
	cols := []float64{180, 70, 70, 100}
	head := []string{"Axis", "Score", "OK line", "Progress"}
	pdf.SetFontSize(10)
	pdf.SetFillColor(241, 245, 249)
	for i, h := range head {
		pdf.CellFormat(cols[i], 18, tr(h), "B", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	for _, p := range pts {
		prog := ""
		if pr, ok := r.Progress[p.Code]; ok && pr.Total() > 0 {
			prog = fmt.Sprintf("%d/%d", pr.Completed, pr.Total())
		}
		pdf.CellFormat(cols[0], 16, tr(p.Label), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[1], 16, fmt.Sprintf("%.1f", p.Value), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[2], 16, fmt.Sprintf("%.1f", p.OKLine), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[3], 16, prog, "", 1, "L", false, 0, "")
	}
}
