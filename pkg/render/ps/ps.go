// Package ps is the PostScript vector backend, built on the canvas library.
//
// The page is the rendered size in points, so one pixel of the raster
// backends is one point here. Labels are shaped with the registered font
// for their face and written as glyph outlines, so any script the font
// covers prints correctly. PostScript has no alpha channel; translucent
// paint is drawn opaque.
package ps

import (
	"bytes"
	"context"
	"image/color"

	"github.com/charmbracelet/log"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers"

	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/fonts"
	"github.com/matzehuels/mapprint/pkg/render"
)

// mmPerPt converts page points to canvas millimetres.
const mmPerPt = 25.4 / 72

// Renderer renders scenes to PostScript documents.
type Renderer struct {
	render.Vector
	Logger *log.Logger
}

// New returns the cairo-ps renderer.
func New() *Renderer { return &Renderer{} }

func (*Renderer) Name() string        { return "cairo-ps" }
func (*Renderer) Ext() string         { return ".ps" }
func (*Renderer) ContentType() string { return "application/postscript" }

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

// Surface replays drawing calls onto a canvas context. Pixel coordinates
// have their origin top-left; the canvas origin is bottom-left, so y is
// flipped on the way in.
type Surface struct {
	render.Path
	render.Paint

	c        *canvas.Canvas
	ctx      *canvas.Context
	fonts    *fonts.Registry
	families map[string]*canvas.FontFamily
	w, h     float64
	err      error
}

// NewSurface starts a w x h point document. Labels look faces up in reg.
func NewSurface(w, h int, reg *fonts.Registry) *Surface {
	if reg == nil {
		reg = fonts.New()
	}
	c := canvas.New(float64(w)*mmPerPt, float64(h)*mmPerPt)
	ctx := canvas.NewContext(c)
	ctx.SetFillRule(canvas.EvenOdd)
	return &Surface{
		c:        c,
		ctx:      ctx,
		fonts:    reg,
		families: make(map[string]*canvas.FontFamily),
		w:        float64(w),
		h:        float64(h),
	}
}

// Bytes writes the document and returns it.
func (s *Surface) Bytes() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	var buf bytes.Buffer
	if err := renderers.PS()(&buf, s.c); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "cairo-ps")
	}
	return buf.Bytes(), nil
}

func (s *Surface) Clear(c color.NRGBA) {
	if c.A == 0 {
		return
	}
	s.ctx.SetFillColor(c)
	s.ctx.SetStrokeColor(canvas.Transparent)
	s.ctx.DrawPath(0, 0, canvas.Rectangle(s.w*mmPerPt, s.h*mmPerPt))
}

func (s *Surface) Fill() {
	if !s.Empty() && s.FillColor.A > 0 {
		s.ctx.SetFillColor(s.FillColor)
		s.replay()
		s.ctx.Fill()
	}
	s.Reset()
}

func (s *Surface) Stroke() {
	if !s.Empty() && s.stroking() {
		s.setStroke()
		s.replay()
		s.ctx.Stroke()
	}
	s.Reset()
}

func (s *Surface) FillStroke() {
	if !s.Empty() {
		if s.FillColor.A > 0 {
			s.ctx.SetFillColor(s.FillColor)
			s.replay()
			s.ctx.Fill()
		}
		if s.stroking() {
			s.setStroke()
			s.replay()
			s.ctx.Stroke()
		}
	}
	s.Reset()
}

func (s *Surface) stroking() bool {
	return s.StrokeColor.A > 0 && s.StrokeStyle.Width > 0
}

func (s *Surface) setStroke() {
	st := s.StrokeStyle
	s.ctx.SetStrokeColor(s.StrokeColor)
	s.ctx.SetStrokeWidth(st.Width * mmPerPt)
	s.ctx.SetStrokeCapper(capper(st.Cap))
	s.ctx.SetStrokeJoiner(joiner(st.Join))
	dashes := make([]float64, len(st.Dash))
	for i, d := range st.Dash {
		dashes[i] = d * mmPerPt
	}
	s.ctx.SetDashes(0, dashes...)
}

// replay moves the recorded subpaths onto the canvas context.
func (s *Surface) replay() {
	for _, sp := range s.Subpaths {
		if len(sp.Points) < 2 {
			continue
		}
		for i, p := range sp.Points {
			x, y := s.toCanvas(p.X, p.Y)
			if i == 0 {
				s.ctx.MoveTo(x, y)
			} else {
				s.ctx.LineTo(x, y)
			}
		}
		if sp.Closed {
			s.ctx.Close()
		}
	}
}

func (s *Surface) toCanvas(x, y float64) (float64, float64) {
	return x * mmPerPt, (s.h - y) * mmPerPt
}

func (s *Surface) Text(x, y float64, text string, ts render.TextStyle) {
	family, ok := s.family(ts.Face)
	if !ok {
		return
	}
	// Baseline sits half a cap height, approximated as 0.7 em, below y.
	bx, by := s.toCanvas(x, y+ts.Size*0.35)
	if ts.HaloRadius > 0 && ts.HaloFill.A > 0 {
		halo := canvas.NewTextLine(family.Face(ts.Size, ts.HaloFill), text, canvas.Center)
		for _, off := range render.HaloOffsets(ts.HaloRadius) {
			s.ctx.DrawText(bx+off.X*mmPerPt, by-off.Y*mmPerPt, halo)
		}
	}
	s.ctx.DrawText(bx, by, canvas.NewTextLine(family.Face(ts.Size, ts.Fill), text, canvas.Center))
}

// family loads the registered font for face once. A font the canvas
// library cannot read fails the document.
func (s *Surface) family(face string) (*canvas.FontFamily, bool) {
	f, _ := s.fonts.Lookup(face)
	if fam, ok := s.families[f.Name]; ok {
		return fam, true
	}
	fam := canvas.NewFontFamily(f.Name)
	if err := fam.LoadFont(f.Data, 0, canvas.FontRegular); err != nil {
		if s.err == nil {
			s.err = errors.Wrap(errors.ErrCodeRender, err, "load font %s", f.Name)
		}
		return nil, false
	}
	s.families[f.Name] = fam
	return fam, true
}

func capper(name string) canvas.Capper {
	switch name {
	case "round":
		return canvas.RoundCap
	case "square":
		return canvas.SquareCap
	}
	return canvas.ButtCap
}

func joiner(name string) canvas.Joiner {
	switch name {
	case "round":
		return canvas.RoundJoin
	case "bevel":
		return canvas.BevelJoin
	}
	return canvas.MiterJoin
}
