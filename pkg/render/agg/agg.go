// Package agg is the anti-aliased scanline raster backend, built on
// rasterx.
package agg

import (
	"context"
	"image"
	"image/color"

	"github.com/charmbracelet/log"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/render"
)

const miterLimit = 4

// Renderer renders scenes to RGBA images.
type Renderer struct {
	render.Raster
	Logger *log.Logger
}

// New returns the agg renderer.
func New() *Renderer { return &Renderer{} }

func (*Renderer) Name() string { return "agg" }

// Render paints the scene into a new image.
func (r *Renderer) Render(ctx context.Context, scene *render.Scene) (render.Output, error) {
	if err := scene.Validate(); err != nil {
		return render.Output{}, err
	}
	img := image.NewRGBA(image.Rect(0, 0, scene.Size.Width, scene.Size.Height))
	surf := NewSurface(img, scene)
	p := &render.Painter{Scene: scene, Logger: r.Logger}
	if err := p.Paint(ctx, surf); err != nil {
		return render.Output{}, err
	}
	if surf.err != nil {
		return render.Output{}, errors.Wrap(errors.ErrCodeRender, surf.err, "agg")
	}
	return render.Output{Image: img}, nil
}

// Surface rasterizes paths into an RGBA image.
type Surface struct {
	render.Path
	render.Paint

	img    *image.RGBA
	scene  *render.Scene
	filler *rasterx.Filler
	dasher *rasterx.Dasher
	err    error
}

// NewSurface returns a surface drawing into img.
func NewSurface(img *image.RGBA, scene *render.Scene) *Surface {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	s := &Surface{
		img:    img,
		scene:  scene,
		filler: rasterx.NewFiller(w, h, scanner),
		dasher: rasterx.NewDasher(w, h, scanner),
	}
	s.filler.SetWinding(false)
	return s
}

func (s *Surface) Clear(c color.NRGBA) {
	render.FillImage(s.img, c)
}

func (s *Surface) Fill() {
	if !s.Empty() && s.FillColor.A > 0 {
		s.replay(s.filler)
		s.filler.SetColor(s.FillColor)
		s.filler.Draw()
		s.filler.Clear()
	}
	s.Reset()
}

func (s *Surface) Stroke() {
	s.stroke()
	s.Reset()
}

func (s *Surface) FillStroke() {
	if !s.Empty() && s.FillColor.A > 0 {
		s.replay(s.filler)
		s.filler.SetColor(s.FillColor)
		s.filler.Draw()
		s.filler.Clear()
	}
	s.stroke()
	s.Reset()
}

func (s *Surface) stroke() {
	st := s.StrokeStyle
	if s.Empty() || s.StrokeColor.A == 0 || st.Width <= 0 {
		return
	}
	s.dasher.SetStroke(
		render.Fixed(st.Width), render.Fixed(miterLimit),
		capFunc(st.Cap), capFunc(st.Cap), rasterx.FlatGap,
		joinMode(st.Join), st.Dash, 0,
	)
	s.replay(s.dasher)
	s.dasher.SetColor(s.StrokeColor)
	s.dasher.Draw()
	s.dasher.Clear()
}

// replay feeds the recorded path to a rasterx adder.
func (s *Surface) replay(a rasterx.Adder) {
	for _, sp := range s.Subpaths {
		if len(sp.Points) < 2 {
			continue
		}
		a.Start(pt(sp.Points[0]))
		for _, p := range sp.Points[1:] {
			a.Line(pt(p))
		}
		a.Stop(sp.Closed)
	}
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
	render.DrawText(s.img, face, x, y, text, ts)
}

func pt(p render.Point) fixed.Point26_6 {
	return render.FixedPoint(p)
}

func capFunc(name string) rasterx.CapFunc {
	switch name {
	case "round":
		return rasterx.RoundCap
	case "square":
		return rasterx.SquareCap
	}
	return rasterx.ButtCap
}

func joinMode(name string) rasterx.JoinMode {
	switch name {
	case "round":
		return rasterx.Round
	case "bevel":
		return rasterx.Bevel
	}
	return rasterx.MiterClip
}
