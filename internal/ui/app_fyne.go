//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"runtime"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"storeplanner/internal/backend"
	"storeplanner/internal/crash"
	"storeplanner/internal/domain"
	"storeplanner/internal/export"
	applog "storeplanner/internal/log"
	"storeplanner/internal/mindmap"
	"storeplanner/internal/stream"
	"storeplanner/internal/version"
	"storeplanner/internal/viewport"
)

// Run opens the mindmap window: the diagram canvas on the left, the summary of the selected
// item and per-axis progress on the right.
func Run(opt Options) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")
	defer crash.Recover(opt.Scope)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := NewSession(opt.Session)
	opt.Scope.OnCrash(session.Close)

	title := opt.Title
	if title == "" {
		title = "StorePlanner"
	}
	fyneApp := app.NewWithID("storeplanner")
	w := fyneApp.NewWindow(title)
	// Restore window size from preferences (with sane minimums)
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1280)
	winH := prefs.IntWithFallback("window.height", 840)
	if winW < 800 {
		winW = 800
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	zoomLabel := widget.NewLabel("100%")
	mc := NewMindmapCanvas(ctx, session)
	mc.OnViewChanged = func(t viewport.Transform) {
		zoomLabel.SetText(fmt.Sprintf("%.0f%%", t.Scale*100))
	}

	// Summary panel (right)
	summaryTitle := widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	summaryState := widget.NewLabel("Select an item to see its summary.")
	summaryBody := widget.NewLabel("")
	summaryBody.Wrapping = fyne.TextWrapWord
	showSummary := func() {
		v := session.Summary(ctx)
		if v.NodeID == "" {
			return
		}
		summaryTitle.SetText(v.Title)
		summaryState.SetText(summaryStatus(v))
		summaryBody.SetText(v.Text)
	}
	updates, unsubscribe := session.SummaryStream().Subscribe()
	go func() {
		for range updates {
			fyne.Do(showSummary)
		}
	}()
	mc.OnNodeTapped = func(n mindmap.Node) {
		if n.Kind == mindmap.ItemNode {
			showSummary()
		}
	}

	// Progress per axis
	bars := make(map[domain.AxisCode]*widget.ProgressBar)
	progressBox := container.NewVBox(widget.NewLabelWithStyle("Progress", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}))
	for _, a := range domain.Axes() {
		b := widget.NewProgressBar()
		bars[a.Code] = b
		progressBox.Add(container.NewBorder(nil, nil, widget.NewLabel(a.Name), nil, b))
	}
	showProgress := func() {
		p := session.Progress()
		for code, b := range bars {
			b.SetValue(p[code].Ratio())
		}
	}

	reload := func() {
		status.SetText("Loading mindmap…")
		go func() {
			err := session.Load(ctx)
			fyne.Do(func() {
				if err != nil {
					status.SetText("Load failed: " + err.Error())
					if errors.Is(err, backend.ErrUnauthorized) {
						dialog.ShowInformation("Sign in", "Your session has expired. Run `storeplanner login` and reload.", w)
					}
					return
				}
				status.SetText("Mindmap loaded")
				showProgress()
				mc.Refresh()
			})
		}()
	}

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.ZoomInIcon(), func() { session.View.ZoomIn(); mc.changed() }),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() { session.View.ZoomOut(); mc.changed() }),
		widget.NewToolbarAction(theme.ZoomFitIcon(), mc.Fit),
		widget.NewToolbarAction(theme.ViewRestoreIcon(), func() { session.View.Reset(); mc.changed() }),
		widget.NewToolbarAction(theme.SearchIcon(), func() {
			if !session.Focus(session.Selected()) {
				status.SetText("Nothing selected")
				return
			}
			mc.changed()
		}),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ViewRefreshIcon(), reload),
	)

	exportItem := func(label, ext string, write func(d mindmap.Diagram, path string) error) *fyne.MenuItem {
		return fyne.NewMenuItem(label, func() {
			save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				if uc == nil {
					return
				}
				outPath := uc.URI().Path()
				_ = uc.Close()
				if err := write(session.Diagram(), outPath); err != nil {
					dialog.ShowError(err, w)
					return
				}
				status.SetText("Exported to " + outPath)
			}, w)
			save.SetFileName("mindmap" + ext)
			save.SetFilter(fstorage.NewExtensionFileFilter([]string{ext}))
			save.Show()
		})
	}
	exportMenu := fyne.NewMenu("Export",
		exportItem("Export Mindmap as SVG…", ".svg", func(d mindmap.Diagram, p string) error {
			return export.ExportMindmapSVG(d, p, export.SVGOptions{Crop: true})
		}),
		exportItem("Export Mindmap as PNG…", ".png", func(d mindmap.Diagram, p string) error {
			return export.ExportMindmapPNG(d, p, export.PNGOptions{Crop: true})
		}),
	)
	aboutItem := fyne.NewMenuItem("About StorePlanner", func() {
		exe, _ := os.Executable()
		info := fmt.Sprintf("StorePlanner\nVersion: %s\nOS: %s\nArch: %s\nGo: %s\nExecutable: %s",
			version.String(), runtime.GOOS, runtime.GOARCH, runtime.Version(), exe)
		dialog.ShowInformation("Installation Environment", info, w)
	})
	copyrightItem := fyne.NewMenuItem("Copyright…", func() {
		msg := fmt.Sprintf("StorePlanner\nCopyright © 2025-%d The StorePlanner Authors\n\nLicensed under the Apache License, Version 2.0.", time.Now().Year())
		dialog.ShowInformation("Copyright", msg, w)
	})
	w.SetMainMenu(fyne.NewMainMenu(exportMenu, fyne.NewMenu("About", aboutItem, copyrightItem)))

	header := container.NewVBox(summaryTitle, summaryState)
	right := container.NewBorder(header, progressBox, nil, nil, container.NewVScroll(summaryBody))
	split := container.NewHSplit(mc, right)
	split.SetOffset(0.68)
	top := container.NewBorder(nil, nil, nil, zoomLabel, toolbar)
	w.SetContent(container.NewBorder(top, status, nil, nil, split))

	// Persist preferences and tear the stream down on close
	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		unsubscribe()
		cancel()
		session.Close()
		w.Close()
	})

	reload()
	w.ShowAndRun()
	return nil
}

func summaryStatus(v SummaryView) string {
	switch {
	case v.FromCache:
		return "Offline: showing the last saved summary"
	case v.Phase == stream.Streaming:
		return "Generating…"
	case v.Phase == stream.Errored:
		return "Failed: " + stream.State{Err: v.Err}.Message()
	case v.Phase == stream.Done:
		return "Done"
	default:
		return ""
	}
}

// MindmapCanvas draws the session diagram through the session viewport and turns mouse
// input into viewport gestures and node taps.
type MindmapCanvas struct {
	widget.BaseWidget

	session  *Session
	ctx      context.Context
	dragging bool
	fitted   bool

	// OnNodeTapped fires after a tap hit a node, once folding and selection are applied.
	OnNodeTapped func(n mindmap.Node)
	// OnViewChanged fires after a pan, zoom or fit.
	OnViewChanged func(t viewport.Transform)
}

func NewMindmapCanvas(ctx context.Context, s *Session) *MindmapCanvas {
	mc := &MindmapCanvas{session: s, ctx: ctx}
	s.View.OnInteractionEnd = func() { mc.dragging = false }
	mc.ExtendBaseWidget(mc)
	return mc
}

func (m *MindmapCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 248, G: 250, B: 252, A: 255})
	sel := canvas.NewCircle(color.Transparent)
	sel.StrokeColor = color.RGBA{R: 37, G: 99, B: 235, A: 255}
	sel.StrokeWidth = 3
	sel.Hide()
	r := &mindmapRenderer{mc: m, bg: bg, sel: sel}
	r.rebuild()
	return r
}

// PreferredSize sets a decent default size for the widget.
func (m *MindmapCanvas) PreferredSize() fyne.Size { return fyne.NewSize(640, 480) }

// Resize fits the diagram the first time the canvas gets a real size.
func (m *MindmapCanvas) Resize(size fyne.Size) {
	m.BaseWidget.Resize(size)
	if !m.fitted && size.Width > 0 && size.Height > 0 {
		m.fitted = true
		m.Fit()
	}
}

// Fit scales the whole diagram into the canvas.
func (m *MindmapCanvas) Fit() {
	sz := m.Size()
	m.session.Fit(float64(sz.Width), float64(sz.Height))
	m.changed()
}

func (m *MindmapCanvas) changed() {
	m.Refresh()
	if m.OnViewChanged != nil {
		m.OnViewChanged(m.session.View.Transform())
	}
}

// Tapped folds or unfolds axes and steps, and selects items.
func (m *MindmapCanvas) Tapped(e *fyne.PointEvent) {
	n, ok := m.session.Tap(m.ctx, float64(e.Position.X), float64(e.Position.Y))
	m.Refresh()
	if ok && m.OnNodeTapped != nil {
		m.OnNodeTapped(n)
	}
}

// Dragged pans. The desktop driver reports one pointer, so it maps to pointer 0.
func (m *MindmapCanvas) Dragged(e *fyne.DragEvent) {
	v := m.session.View
	if !m.dragging {
		m.dragging = true
		v.GestureStart(0, float64(e.Position.X-e.Dragged.DX), float64(e.Position.Y-e.Dragged.DY))
	}
	v.GestureMove(0, float64(e.Position.X), float64(e.Position.Y))
	m.changed()
}

func (m *MindmapCanvas) DragEnd() {
	m.session.View.GestureEnd(0)
	m.dragging = false
}

// Scrolled zooms around the cursor; scrolling up zooms in.
func (m *MindmapCanvas) Scrolled(e *fyne.ScrollEvent) {
	m.session.View.WheelZoomAt(-float64(e.Scrolled.DY), float64(e.Position.X), float64(e.Position.Y))
	m.changed()
}

// mindmapRenderer keeps pools of lines, circles and texts sized to the largest diagram seen.
type mindmapRenderer struct {
	mc      *MindmapCanvas
	objects []fyne.CanvasObject
	bg      *canvas.Rectangle
	sel     *canvas.Circle
	edges   []*canvas.Line
	circles []*canvas.Circle
	labels  []*canvas.Text
}

func (r *mindmapRenderer) Destroy()                     {}
func (r *mindmapRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *mindmapRenderer) MinSize() fyne.Size           { return r.mc.PreferredSize() }
func (r *mindmapRenderer) Refresh()                     { r.Layout(r.mc.Size()); canvas.Refresh(r.mc) }

// minLabelSize hides labels that would be unreadable at the current zoom.
const minLabelSize = 5

func (r *mindmapRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))

	d := r.mc.session.Diagram()
	view := r.mc.session.View
	scale := float32(view.Transform().Scale)
	lines := 0
	for _, n := range d.Nodes {
		lines += len(n.Label.Lines)
	}
	r.grow(len(d.Edges), len(d.Nodes), lines)

	for i, e := range d.Edges {
		ln := r.edges[i]
		from, ok1 := d.Node(e.From)
		to, ok2 := d.Node(e.To)
		if !ok1 || !ok2 {
			ln.Hide()
			continue
		}
		a, b := view.ToScreen(from.Pos), view.ToScreen(to.Pos)
		c := export.ParseHex(e.Color)
		ln.StrokeColor = color.NRGBA{R: c.R, G: c.G, B: c.B, A: 150}
		ln.StrokeWidth = max(1, 2*scale)
		ln.Position1 = fyne.NewPos(float32(a.X), float32(a.Y))
		ln.Position2 = fyne.NewPos(float32(b.X), float32(b.Y))
		ln.Show()
		ln.Refresh()
	}
	for j := len(d.Edges); j < len(r.edges); j++ {
		r.edges[j].Hide()
	}

	li := 0
	r.sel.Hide()
	selected := r.mc.session.Selected()
	for i, n := range d.Nodes {
		fill, stroke, text := export.NodeColors(n)
		c := view.ToScreen(n.Pos)
		cx, cy := float32(c.X), float32(c.Y)
		rad := float32(n.Radius) * scale
		ci := r.circles[i]
		ci.FillColor = export.ParseHex(fill)
		ci.StrokeColor = export.ParseHex(stroke)
		ci.StrokeWidth = max(1, 2*scale)
		ci.Move(fyne.NewPos(cx-rad, cy-rad))
		ci.Resize(fyne.NewSize(2*rad, 2*rad))
		ci.Show()
		ci.Refresh()
		if n.ID == selected {
			ring := rad + 4
			r.sel.Move(fyne.NewPos(cx-ring, cy-ring))
			r.sel.Resize(fyne.NewSize(2*ring, 2*ring))
			r.sel.Show()
		}

		ts := labelSize(d.Config, n.Kind) * scale
		if ts < minLabelSize || len(n.Label.Lines) == 0 {
			continue
		}
		lh := ts * 1.2
		top := cy - lh*float32(len(n.Label.Lines))/2
		for j, line := range n.Label.Lines {
			t := r.labels[li]
			li++
			t.Text = line
			t.Color = export.ParseHex(text)
			t.TextSize = ts
			t.TextStyle = fyne.TextStyle{Bold: n.Kind != mindmap.ItemNode}
			t.Alignment = fyne.TextAlignCenter
			t.Move(fyne.NewPos(cx-rad, top+float32(j)*lh))
			t.Resize(fyne.NewSize(2*rad, lh))
			t.Show()
			t.Refresh()
		}
	}
	for j := len(d.Nodes); j < len(r.circles); j++ {
		r.circles[j].Hide()
	}
	for j := li; j < len(r.labels); j++ {
		r.labels[j].Hide()
	}
	r.sel.Refresh()
}

// grow extends the pools and rebuilds the draw order: background, edges, circles, labels,
// selection ring.
func (r *mindmapRenderer) grow(edges, nodes, labels int) {
	if edges <= len(r.edges) && nodes <= len(r.circles) && labels <= len(r.labels) {
		return
	}
	for len(r.edges) < edges {
		r.edges = append(r.edges, canvas.NewLine(color.Transparent))
	}
	for len(r.circles) < nodes {
		r.circles = append(r.circles, canvas.NewCircle(color.White))
	}
	for len(r.labels) < labels {
		r.labels = append(r.labels, canvas.NewText("", color.Black))
	}
	r.rebuild()
}

func (r *mindmapRenderer) rebuild() {
	objs := make([]fyne.CanvasObject, 0, 2+len(r.edges)+len(r.circles)+len(r.labels))
	objs = append(objs, r.bg)
	for _, o := range r.edges {
		objs = append(objs, o)
	}
	for _, o := range r.circles {
		objs = append(objs, o)
	}
	for _, o := range r.labels {
		objs = append(objs, o)
	}
	r.objects = append(objs, r.sel)
}

func labelSize(cfg mindmap.Config, k mindmap.Kind) float32 {
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
