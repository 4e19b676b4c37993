// Package pdf is the PDF vector backend, built on gofpdf.
//
// The page is the rendered size in points, so one pixel of the raster
// backends is one point here. Labels embed the registered font bytes for
// their face.
package pdf

import (
	"bytes"
	"context"
	"image/color"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jung-kurt/gofpdf"

	"github.com/matzehuels/mapprint/pkg/buildinfo"
	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/fonts"
	"github.com/matzehuels/mapprint/pkg/render"
)

// Renderer renders scenes to single-page PDF documents.
type Renderer struct {
	render.Vector
	Logger *log.Logger
}

// New returns the cairo-pdf renderer.
func New() *Renderer { return &Renderer{} }

func (*Renderer) Name() string        { return "cairo-pdf" }
func (*Renderer) Ext() string         { return ".pdf" }
func (*Renderer) ContentType() string { return "application/pdf" }

func (r *Renderer) Render(ctx context.Context, scene *render.Scene) (render.Output, error) {
	if err := scene.Validate(); err != nil {
		return render.Output{}, err
	}
	surf := NewSurface(scene.Size.Width, scene.Size.Height, scene.Fonts)
	p := &render.Painter{Scene: scene, Logger: r.Logger}
	if err := p.Paint(ctx, surf); err != nil {
		return render.Output{}, err
	}
	data, err := surf.Bytes()
	if err != nil {
		return render.Output{}, err
	}
	return render.Output{Data: data}, nil
}

// Surface draws on a gofpdf document.
type Surface struct {
	render.Path
	render.Paint

	doc    *gofpdf.Fpdf
	fonts  *fonts.Registry
	loaded map[string]bool
	w, h   float64
}

// NewSurface starts a w x h point document.
func NewSurface(w, h int, reg *fonts.Registry) *Surface {
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: float64(w), Ht: float64(h)},
	})
	doc.SetCreator("mapprint "+buildinfo.Version, true)
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()
	return &Surface{
		doc:    doc,
		fonts:  reg,
		loaded: make(map[string]bool),
		w:      float64(w),
		h:      float64(h),
	}
}

// Bytes finishes the document and returns it.
func (s *Surface) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.doc.Output(&buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "cairo-pdf")
	}
	return buf.Bytes(), nil
}

func (s *Surface) Clear(c color.NRGBA) {
	if c.A == 0 {
		return
	}
	s.setFill(c)
	s.doc.Rect(0, 0, s.w, s.h, "F")
}

func (s *Surface) Fill() {
	if !s.Empty() && s.FillColor.A > 0 {
		s.fill()
	}
	s.Reset()
}

func (s *Surface) Stroke() {
	if !s.Empty() {
		s.stroke()
	}
	s.Reset()
}

// FillStroke paints fill and stroke as separate operations so each keeps
// its own opacity.
func (s *Surface) FillStroke() {
	if !s.Empty() {
		if s.FillColor.A > 0 {
			s.fill()
		}
		s.stroke()
	}
	s.Reset()
}

func (s *Surface) fill() {
	s.setFill(s.FillColor)
	if s.writePath() {
		s.doc.DrawPath("F*")
	}
}

func (s *Surface) stroke() {
	st := s.StrokeStyle
	if s.StrokeColor.A == 0 || st.Width <= 0 {
		return
	}
	c := s.StrokeColor
	s.doc.SetDrawColor(int(c.R), int(c.G), int(c.B))
	s.doc.SetAlpha(render.Alpha(c), "Normal")
	s.doc.SetLineWidth(st.Width)
	s.doc.SetLineCapStyle(orDefault(st.Cap, "butt"))
	s.doc.SetLineJoinStyle(orDefault(st.Join, "miter"))
	s.doc.SetDashPattern(st.Dash, 0)
	if s.writePath() {
		s.doc.DrawPath("D")
	}
}

func (s *Surface) setFill(c color.NRGBA) {
	s.doc.SetFillColor(int(c.R), int(c.G), int(c.B))
	s.doc.SetAlpha(render.Alpha(c), "Normal")
}

func (s *Surface) writePath() bool {
	drawn := false
	for _, sp := range s.Subpaths {
		if len(sp.Points) < 2 {
			continue
		}
		s.doc.MoveTo(sp.Points[0].X, sp.Points[0].Y)
		for _, p := range sp.Points[1:] {
			s.doc.LineTo(p.X, p.Y)
		}
		if sp.Closed {
			s.doc.ClosePath()
		}
		drawn = true
	}
	return drawn
}

func (s *Surface) Text(x, y float64, text string, ts render.TextStyle) {
	family := s.useFont(ts.Face)
	s.doc.SetFont(family, "", ts.Size)
	w := s.doc.GetStringWidth(text)
	// Baseline sits half a cap height, approximated as 0.7 em, below y.
	ox, oy := x-w/2, y+ts.Size*0.35
	if ts.HaloRadius > 0 && ts.HaloFill.A > 0 {
		s.setText(ts.HaloFill)
		for _, off := range render.HaloOffsets(ts.HaloRadius) {
			s.doc.Text(ox+off.X, oy+off.Y, text)
		}
	}
	s.setText(ts.Fill)
	s.doc.Text(ox, oy, text)
}

func (s *Surface) setText(c color.NRGBA) {
	s.doc.SetTextColor(int(c.R), int(c.G), int(c.B))
	s.doc.SetAlpha(render.Alpha(c), "Normal")
}

// useFont embeds the font for face once and returns its family key.
func (s *Surface) useFont(face string) string {
	f, _ := s.fonts.Lookup(face)
	family := strings.ReplaceAll(strings.ToLower(f.Name), " ", "")
	if !s.loaded[family] {
		s.doc.AddUTF8FontFromBytes(family, "", f.Data)
		s.loaded[family] = true
	}
	return family
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
