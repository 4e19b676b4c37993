package style

import (
	"encoding/xml"
	"image/color"
	"strings"

	"github.com/matzehuels/mapprint/pkg/errors"
)

// Symbolizer describes how to draw a feature. The concrete types are
// [*PolygonSymbolizer], [*LineSymbolizer], [*MarkersSymbolizer] and
// [*TextSymbolizer].
type Symbolizer interface {
	Kind() string
}

// PolygonSymbolizer fills polygon interiors.
type PolygonSymbolizer struct {
	Fill    color.NRGBA
	Opacity float64
}

// LineSymbolizer strokes lines and polygon outlines.
type LineSymbolizer struct {
	Stroke   color.NRGBA
	Width    float64
	Opacity  float64
	Dash     []float64
	LineJoin string
	LineCap  string
	// Offset shifts the line perpendicular to its direction, in pixels.
	Offset float64
}

// MarkersSymbolizer draws an ellipse at points and line vertices.
type MarkersSymbolizer struct {
	Fill        color.NRGBA
	Stroke      color.NRGBA
	StrokeWidth float64
	Width       float64
	Height      float64
	Opacity     float64
}

// TextSymbolizer labels features.
type TextSymbolizer struct {
	Text       Expr
	FaceName   string
	Size       float64
	Fill       color.NRGBA
	HaloFill   color.NRGBA
	HaloRadius float64
	Opacity    float64
	// Placement is "point" (centroid) or "line" (midpoint of the line).
	Placement string
	DX, DY    float64
}

func (*PolygonSymbolizer) Kind() string { return "polygon" }
func (*LineSymbolizer) Kind() string    { return "line" }
func (*MarkersSymbolizer) Kind() string { return "markers" }
func (*TextSymbolizer) Kind() string    { return "text" }

var black = color.NRGBA{A: 255}

// buildSymbolizer returns nil for element names it does not know.
func buildSymbolizer(xs xmlSymbolizer) (Symbolizer, error) {
	a := attrs(xs.Attrs)
	name := xs.XMLName.Local
	var sym Symbolizer
	switch name {
	case "PolygonSymbolizer":
		sym = &PolygonSymbolizer{
			Fill:    a.color("fill", color.NRGBA{R: 128, G: 128, B: 128, A: 255}),
			Opacity: a.float("fill-opacity", 1),
		}
	case "LineSymbolizer":
		sym = &LineSymbolizer{
			Stroke:   a.color("stroke", black),
			Width:    a.float("stroke-width", 1),
			Opacity:  a.float("stroke-opacity", 1),
			Dash:     a.floats("stroke-dasharray"),
			LineJoin: a.str("stroke-linejoin", "miter"),
			LineCap:  a.str("stroke-linecap", "butt"),
			Offset:   a.float("offset", 0),
		}
	case "MarkersSymbolizer":
		w := a.float("width", 10)
		sym = &MarkersSymbolizer{
			Fill:        a.color("fill", color.NRGBA{R: 0, G: 0, B: 255, A: 255}),
			Stroke:      a.color("stroke", black),
			StrokeWidth: a.float("stroke-width", 0.5),
			Width:       w,
			Height:      a.float("height", w),
			Opacity:     a.float("opacity", 1),
		}
	case "TextSymbolizer":
		src := strings.TrimSpace(xs.Text)
		if src == "" {
			src = a.str("name", "")
		}
		if src == "" {
			return nil, errors.New(errors.ErrCodeInvalidStyle, "TextSymbolizer without text expression")
		}
		expr, err := ParseExpr(src)
		if err != nil {
			return nil, err
		}
		sym = &TextSymbolizer{
			Text:       expr,
			FaceName:   a.str("face-name", ""),
			Size:       a.float("size", 10),
			Fill:       a.color("fill", black),
			HaloFill:   a.color("halo-fill", color.NRGBA{R: 255, G: 255, B: 255, A: 255}),
			HaloRadius: a.float("halo-radius", 0),
			Opacity:    a.float("opacity", 1),
			Placement:  a.str("placement", "point"),
			DX:         a.float("dx", 0),
			DY:         a.float("dy", 0),
		}
	default:
		return nil, nil
	}
	if a.err != nil {
		return nil, errors.Wrap(errors.GetCode(a.err), a.err, "%s", name)
	}
	return sym, nil
}

// attrReader looks up attributes and records the first conversion error.
type attrReader struct {
	m   map[string]string
	err error
}

func attrs(list []xml.Attr) *attrReader {
	m := make(map[string]string, len(list))
	for _, at := range list {
		m[at.Name.Local] = at.Value
	}
	return &attrReader{m: m}
}

func (a *attrReader) str(key, def string) string {
	if v, ok := a.m[key]; ok {
		return strings.TrimSpace(v)
	}
	return def
}

func (a *attrReader) float(key string, def float64) float64 {
	v, ok := a.m[key]
	if !ok {
		return def
	}
	f, err := parseFloat(v)
	if err != nil && a.err == nil {
		a.err = errors.Wrap(errors.ErrCodeInvalidStyle, err, "attribute %s", key)
	}
	return f
}

func (a *attrReader) floats(key string) []float64 {
	v, ok := a.m[key]
	if !ok {
		return nil
	}
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]float64, 0, len(fields))
	for _, s := range fields {
		f, err := parseFloat(s)
		if err != nil {
			if a.err == nil {
				a.err = errors.Wrap(errors.ErrCodeInvalidStyle, err, "attribute %s", key)
			}
			return nil
		}
		out = append(out, f)
	}
	return out
}

func (a *attrReader) color(key string, def color.NRGBA) color.NRGBA {
	v, ok := a.m[key]
	if !ok {
		return def
	}
	c, err := ParseColor(v)
	if err != nil && a.err == nil {
		a.err = err
	}
	return c
}
