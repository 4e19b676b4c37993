// Package svg is the SVG vector backend.
package svg

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mapprint/pkg/fonts"
	"github.com/matzehuels/mapprint/pkg/render"
)

// Renderer renders scenes to SVG documents.
type Renderer struct {
	render.Vector
	Logger *log.Logger
}

// New returns the cairo-svg renderer.
func New() *Renderer { return &Renderer{} }

func (*Renderer) Name() string        { return "cairo-svg" }
func (*Renderer) Ext() string         { return ".svg" }
func (*Renderer) ContentType() string { return "image/svg+xml" }

func (r *Renderer) Render(ctx context.Context, scene *render.Scene) (render.Output, error) {
	if err := scene.Validate(); err != nil {
		return render.Output{}, err
	}
	surf := NewSurface(scene)
	p := &render.Painter{Scene: scene, Logger: r.Logger}
	if err := p.Paint(ctx, surf); err != nil {
		return render.Output{}, err
	}
	return render.Output{Data: surf.Bytes()}, nil
}

// Surface writes drawing calls as SVG elements.
type Surface struct {
	render.Path
	render.Paint

	buf   bytes.Buffer
	w, h  int
	fonts *fonts.Registry
}

// NewSurface starts a document of the scene's pixel size.
func NewSurface(scene *render.Scene) *Surface {
	s := &Surface{w: scene.Size.Width, h: scene.Size.Height, fonts: scene.Fonts}
	s.buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&s.buf, `<svg xmlns="http://www.w3.org/2000/svg" version="1.1" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		s.w, s.h, s.w, s.h)
	return s
}

// Bytes closes the document and returns it.
func (s *Surface) Bytes() []byte {
	s.buf.WriteString("</svg>\n")
	return s.buf.Bytes()
}

func (s *Surface) Clear(c color.NRGBA) {
	if c.A == 0 {
		return
	}
	fmt.Fprintf(&s.buf, `  <rect x="0" y="0" width="%d" height="%d"%s/>`+"\n", s.w, s.h, paintAttrs("fill", c))
}

func (s *Surface) Fill() {
	if !s.Empty() && s.FillColor.A > 0 {
		s.writePath(paintAttrs("fill", s.FillColor) + ` fill-rule="evenodd"`)
	}
	s.Reset()
}

func (s *Surface) Stroke() {
	if !s.Empty() && s.StrokeColor.A > 0 && s.StrokeStyle.Width > 0 {
		s.writePath(` fill="none"` + s.strokeAttrs())
	}
	s.Reset()
}

func (s *Surface) FillStroke() {
	if s.Empty() {
		s.Reset()
		return
	}
	attrs := ` fill="none"`
	if s.FillColor.A > 0 {
		attrs = paintAttrs("fill", s.FillColor) + ` fill-rule="evenodd"`
	}
	if s.StrokeColor.A > 0 && s.StrokeStyle.Width > 0 {
		attrs += s.strokeAttrs()
	}
	s.writePath(attrs)
	s.Reset()
}

func (s *Surface) writePath(attrs string) {
	fmt.Fprintf(&s.buf, `  <path d="%s"%s/>`+"\n", pathData(s.Subpaths), attrs)
}

func (s *Surface) strokeAttrs() string {
	st := s.StrokeStyle
	var b strings.Builder
	b.WriteString(paintAttrs("stroke", s.StrokeColor))
	fmt.Fprintf(&b, ` stroke-width="%s"`, num(st.Width))
	if st.Cap != "" && st.Cap != "butt" {
		fmt.Fprintf(&b, ` stroke-linecap="%s"`, st.Cap)
	}
	if st.Join != "" && st.Join != "miter" {
		fmt.Fprintf(&b, ` stroke-linejoin="%s"`, st.Join)
	}
	if len(st.Dash) > 0 {
		parts := make([]string, len(st.Dash))
		for i, d := range st.Dash {
			parts[i] = num(d)
		}
		fmt.Fprintf(&b, ` stroke-dasharray="%s"`, strings.Join(parts, ","))
	}
	return b.String()
}

func (s *Surface) Text(x, y float64, text string, ts render.TextStyle) {
	family := fonts.FallbackFontFamily
	if f, ok := s.fonts.Lookup(ts.Face); ok {
		family = fmt.Sprintf("'%s', %s", f.Family, fonts.FallbackFontFamily)
	}
	fmt.Fprintf(&s.buf, `  <text x="%s" y="%s" font-family="%s" font-size="%s" text-anchor="middle" dominant-baseline="central"%s`,
		num(x), num(y), escape(family), num(ts.Size), paintAttrs("fill", ts.Fill))
	if ts.HaloRadius > 0 && ts.HaloFill.A > 0 {
		fmt.Fprintf(&s.buf, `%s stroke-width="%s" stroke-linejoin="round" paint-order="stroke"`,
			paintAttrs("stroke", ts.HaloFill), num(2*ts.HaloRadius))
	}
	fmt.Fprintf(&s.buf, ">%s</text>\n", escape(text))
}

func pathData(subpaths []render.Subpath) string {
	var b strings.Builder
	for _, sp := range subpaths {
		if len(sp.Points) < 2 {
			continue
		}
		for i, p := range sp.Points {
			if i == 0 {
				b.WriteString("M")
			} else {
				b.WriteString(" L")
			}
			b.WriteString(num(p.X))
			b.WriteByte(' ')
			b.WriteString(num(p.Y))
		}
		if sp.Closed {
			b.WriteString(" Z")
		}
		b.WriteByte(' ')
	}
	return strings.TrimSpace(b.String())
}

func paintAttrs(attr string, c color.NRGBA) string {
	out := fmt.Sprintf(` %s="#%02x%02x%02x"`, attr, c.R, c.G, c.B)
	if c.A < 255 {
		out += fmt.Sprintf(` %s-opacity="%s"`, attr, num(render.Alpha(c)))
	}
	return out
}

// num formats coordinates with at most two decimals.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// escape makes s safe as character data or an attribute value. Characters
// XML cannot carry, such as C0 controls and invalid UTF-8, become U+FFFD.
func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
