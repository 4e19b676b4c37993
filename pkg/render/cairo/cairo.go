// Package cairo is the vector-quality raster backend, built on the gg 2D
// graphics library.
package cairo

import (
	"context"
	"image"
	"image/color"

	"github.com/charmbracelet/log"
	"github.com/fogleman/gg"

	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/render"
)

// Renderer renders scenes to RGBA images.
type Renderer struct {
	render.Raster
	Logger *log.Logger
}

// New returns the cairo renderer.
func New() *Renderer { return &Renderer{} }

func (*Renderer) Name() string { return "cairo" }

func (r *Renderer) Render(ctx context.Context, scene *render.Scene) (render.Output, error) {
	if err := scene.Validate(); err != nil {
		return render.Output{}, err
	}
	img := image.NewRGBA(image.Rect(0, 0, scene.Size.Width, scene.Size.Height))
	surf := NewSurface(gg.NewContextForRGBA(img), scene)
	p := &render.Painter{Scene: scene, Logger: r.Logger}
	if err := p.Paint(ctx, surf); err != nil {
		return render.Output{}, err
	}
	if surf.err != nil {
		return render.Output{}, errors.Wrap(errors.ErrCodeRender, surf.err, "cairo")
	}
	return render.Output{Image: img}, nil
}

// Surface draws on a gg context.
type Surface struct {
	render.Paint

	dc    *gg.Context
	scene *render.Scene
	empty bool
	err   error
}

// NewSurface wraps dc.
func NewSurface(dc *gg.Context, scene *render.Scene) *Surface {
	dc.SetFillRule(gg.FillRuleEvenOdd)
	return &Surface{dc: dc, scene: scene, empty: true}
}

func (s *Surface) Clear(c color.NRGBA) {
	s.dc.SetColor(c)
	s.dc.Clear()
}

func (s *Surface) MoveTo(x, y float64) {
	s.dc.NewSubPath()
	s.dc.MoveTo(x, y)
}

func (s *Surface) LineTo(x, y float64) {
	s.dc.LineTo(x, y)
	s.empty = false
}

func (s *Surface) ClosePath() { s.dc.ClosePath() }

func (s *Surface) Ellipse(cx, cy, rx, ry float64) {
	s.dc.NewSubPath()
	s.dc.DrawEllipse(cx, cy, rx, ry)
	s.empty = false
}

func (s *Surface) Fill() {
	if s.empty || s.FillColor.A == 0 {
		s.clearPath()
		return
	}
	s.dc.SetColor(s.FillColor)
	s.dc.Fill()
	s.empty = true
}

func (s *Surface) Stroke() {
	if s.empty || !s.applyStroke() {
		s.clearPath()
		return
	}
	s.dc.Stroke()
	s.empty = true
}

func (s *Surface) FillStroke() {
	if s.empty {
		s.clearPath()
		return
	}
	if s.FillColor.A > 0 {
		s.dc.SetColor(s.FillColor)
		s.dc.FillPreserve()
	}
	if s.applyStroke() {
		s.dc.Stroke()
	}
	s.clearPath()
}

func (s *Surface) applyStroke() bool {
	st := s.StrokeStyle
	if s.StrokeColor.A == 0 || st.Width <= 0 {
		return false
	}
	s.dc.SetColor(s.StrokeColor)
	s.dc.SetLineWidth(st.Width)
	s.dc.SetDash(st.Dash...)
	switch st.Cap {
	case "round":
		s.dc.SetLineCap(gg.LineCapRound)
	case "square":
		s.dc.SetLineCap(gg.LineCapSquare)
	default:
		s.dc.SetLineCap(gg.LineCapButt)
	}
	switch st.Join {
	case "round":
		s.dc.SetLineJoin(gg.LineJoinRound)
	default:
		s.dc.SetLineJoin(gg.LineJoinBevel)
	}
	return true
}

func (s *Surface) clearPath() {
	s.dc.ClearPath()
	s.empty = true
}

func (s *Surface) Text(x, y float64, text string, ts render.TextStyle) {
	face, err := s.scene.Fonts.Face(ts.Face, ts.Size)
	if err != nil {
		if s.err == nil {
			s.err = err
		}
		return
	}
	defer face.Close()
	s.dc.SetFontFace(face)

	if ts.HaloRadius > 0 && ts.HaloFill.A > 0 {
		s.dc.SetColor(ts.HaloFill)
		for _, off := range render.HaloOffsets(ts.HaloRadius) {
			s.dc.DrawStringAnchored(text, x+off.X, y+off.Y, 0.5, 0.5)
		}
	}
	s.dc.SetColor(ts.Fill)
	s.dc.DrawStringAnchored(text, x, y, 0.5, 0.5)
}
