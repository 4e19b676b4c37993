package render

import (
	"context"
	"image/color"
	"math"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/matzehuels/mapprint/pkg/datasource"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/style"
)

// labelMargin is how far outside the view, in pixels, features are still
// considered so that labels and wide strokes at the edge are drawn.
const labelMargin = 64

// Painter draws a scene onto a surface.
type Painter struct {
	Scene  *Scene
	Logger *log.Logger
}

type label struct {
	x, y float64
	text string
	ts   TextStyle
}

type painterState struct {
	scene  *Scene
	surf   Surface
	sx, sy float64
	view   geo.Envelope
	labels []label
}

// Paint draws background, layers and labels. Labels are drawn last, above
// all geometry.
func (p *Painter) Paint(ctx context.Context, surf Surface) error {
	s := p.Scene
	if err := s.Validate(); err != nil {
		return err
	}
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}

	bg := color.NRGBA{}
	if s.Map.Background != nil {
		bg = *s.Map.Background
	}
	surf.Clear(bg)

	st := &painterState{
		scene: s,
		surf:  surf,
		sx:    float64(s.Size.Width) / s.Envelope.Width(),
		sy:    float64(s.Size.Height) / s.Envelope.Height(),
	}
	st.view = s.Envelope.Expand(labelMargin / math.Min(st.sx, st.sy))

	denom := s.Denominator()
	for _, ld := range s.Layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !ld.Layer.Active(denom) || ld.Data == nil {
			continue
		}
		for _, name := range ld.Layer.Styles {
			sty, ok := s.Map.Styles[name]
			if !ok {
				logger.Warn("failed to find style", "layer", ld.Layer.Name, "style", name)
				continue
			}
			if !sty.Active(denom) {
				continue
			}
			st.drawStyle(sty, ld.Data.Features, denom)
		}
	}

	for _, l := range st.labels {
		surf.Text(l.x, l.y, l.text, l.ts)
	}
	return nil
}

func (st *painterState) drawStyle(sty *style.Style, features []datasource.Feature, denom float64) {
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		if !st.view.Intersects(geo.FromBound(f.Geometry.Bound())) {
			continue
		}
		for _, rule := range sty.Match(denom, f.Props) {
			for _, sym := range rule.Symbolizers {
				st.apply(sym, f.Geometry, f.Props, sty.Opacity)
			}
		}
	}
}

func (st *painterState) px(p orb.Point) (float64, float64) {
	e := st.scene.Envelope
	return (p[0] - e.MinX) * st.sx, (e.MaxY - p[1]) * st.sy
}

func (st *painterState) scale(v float64) float64 { return v * st.scene.ScaleFactor }

func (st *painterState) apply(sym style.Symbolizer, g orb.Geometry, props map[string]any, opacity float64) {
	switch sym := sym.(type) {
	case *style.PolygonSymbolizer:
		if !st.tracePolygons(g) {
			return
		}
		st.surf.SetFill(style.WithOpacity(sym.Fill, sym.Opacity*opacity))
		st.surf.Fill()

	case *style.LineSymbolizer:
		if !st.traceLines(g) {
			return
		}
		dash := make([]float64, len(sym.Dash))
		for i, d := range sym.Dash {
			dash[i] = st.scale(d)
		}
		st.surf.SetStroke(style.WithOpacity(sym.Stroke, sym.Opacity*opacity), StrokeStyle{
			Width: st.scale(sym.Width),
			Dash:  dash,
			Cap:   sym.LineCap,
			Join:  sym.LineJoin,
		})
		st.surf.Stroke()

	case *style.MarkersSymbolizer:
		rx, ry := st.scale(sym.Width)/2, st.scale(sym.Height)/2
		fill := style.WithOpacity(sym.Fill, sym.Opacity*opacity)
		stroke := style.WithOpacity(sym.Stroke, sym.Opacity*opacity)
		for _, p := range markerPoints(g) {
			x, y := st.px(p)
			st.surf.Ellipse(x, y, rx, ry)
			st.surf.SetFill(fill)
			if sym.StrokeWidth > 0 {
				st.surf.SetStroke(stroke, StrokeStyle{Width: st.scale(sym.StrokeWidth)})
				st.surf.FillStroke()
			} else {
				st.surf.Fill()
			}
		}

	case *style.TextSymbolizer:
		text := style.Label(sym.Text, props)
		if text == "" {
			return
		}
		p, ok := labelPoint(g, sym.Placement)
		if !ok {
			return
		}
		x, y := st.px(p)
		st.labels = append(st.labels, label{
			x:    x + st.scale(sym.DX),
			y:    y + st.scale(sym.DY),
			text: text,
			ts: TextStyle{
				Face:       sym.FaceName,
				Size:       st.scale(sym.Size),
				Fill:       style.WithOpacity(sym.Fill, sym.Opacity*opacity),
				HaloFill:   style.WithOpacity(sym.HaloFill, sym.Opacity*opacity),
				HaloRadius: st.scale(sym.HaloRadius),
			},
		})
	}
}

func (st *painterState) trace(ls []orb.Point, closed bool) bool {
	if len(ls) < 2 {
		return false
	}
	x, y := st.px(ls[0])
	st.surf.MoveTo(x, y)
	for _, p := range ls[1:] {
		x, y = st.px(p)
		st.surf.LineTo(x, y)
	}
	if closed {
		st.surf.ClosePath()
	}
	return true
}

// tracePolygons adds the rings of all polygonal parts of g.
func (st *painterState) tracePolygons(g orb.Geometry) bool {
	drawn := false
	switch g := g.(type) {
	case orb.Polygon:
		for _, r := range g {
			drawn = st.trace(r, true) || drawn
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			drawn = st.tracePolygons(poly) || drawn
		}
	case orb.Ring:
		drawn = st.trace(g, true)
	case orb.Bound:
		drawn = st.tracePolygons(g.ToPolygon())
	case orb.Collection:
		for _, c := range g {
			drawn = st.tracePolygons(c) || drawn
		}
	}
	return drawn
}

// traceLines adds lines and polygon outlines of g.
func (st *painterState) traceLines(g orb.Geometry) bool {
	drawn := false
	switch g := g.(type) {
	case orb.LineString:
		drawn = st.trace(g, false)
	case orb.MultiLineString:
		for _, ls := range g {
			drawn = st.trace(ls, false) || drawn
		}
	case orb.Polygon, orb.MultiPolygon, orb.Ring, orb.Bound:
		drawn = st.tracePolygons(g)
	case orb.Collection:
		for _, c := range g {
			drawn = st.traceLines(c) || drawn
		}
	}
	return drawn
}

// markerPoints returns points for point geometries, vertices for lines and
// centroids for polygons.
func markerPoints(g orb.Geometry) []orb.Point {
	switch g := g.(type) {
	case orb.Point:
		return []orb.Point{g}
	case orb.MultiPoint:
		return g
	case orb.LineString:
		return g
	case orb.MultiLineString:
		var out []orb.Point
		for _, ls := range g {
			out = append(out, ls...)
		}
		return out
	case orb.Polygon, orb.MultiPolygon, orb.Ring, orb.Bound:
		c, _ := planar.CentroidArea(g)
		return []orb.Point{c}
	case orb.Collection:
		var out []orb.Point
		for _, c := range g {
			out = append(out, markerPoints(c)...)
		}
		return out
	}
	return nil
}

// labelPoint picks a label anchor: the middle of the line for line
// placement on linear geometries, otherwise the centroid.
func labelPoint(g orb.Geometry, placement string) (orb.Point, bool) {
	switch g := g.(type) {
	case orb.Point:
		return g, true
	case orb.LineString:
		if placement == "line" {
			return midpoint(g), len(g) > 0
		}
	case orb.MultiLineString:
		if placement == "line" {
			longest := orb.LineString(nil)
			for _, ls := range g {
				if planar.Length(ls) > planar.Length(longest) {
					longest = ls
				}
			}
			return midpoint(longest), len(longest) > 0
		}
	}
	if g == nil {
		return orb.Point{}, false
	}
	c, _ := planar.CentroidArea(g)
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return orb.Point{}, false
	}
	return c, true
}

// midpoint returns the point halfway along ls.
func midpoint(ls orb.LineString) orb.Point {
	if len(ls) == 0 {
		return orb.Point{}
	}
	half := planar.Length(ls) / 2
	for i := 1; i < len(ls); i++ {
		d := planar.Distance(ls[i-1], ls[i])
		if d >= half && d > 0 {
			t := half / d
			return orb.Point{
				ls[i-1][0] + (ls[i][0]-ls[i-1][0])*t,
				ls[i-1][1] + (ls[i][1]-ls[i-1][1])*t,
			}
		}
		half -= d
	}
	return ls[len(ls)-1]
}
