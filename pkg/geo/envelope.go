package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/paulmach/orb"

	"github.com/matzehuels/mapprint/pkg/errors"
)

// Envelope is an axis-aligned bounding box in map coordinates.
type Envelope struct {
	MinX float64 `json:"minx" bson:"minx"`
	MinY float64 `json:"miny" bson:"miny"`
	MaxX float64 `json:"maxx" bson:"maxx"`
	MaxY float64 `json:"maxy" bson:"maxy"`
}

// NewEnvelope returns the envelope spanned by two corners in any order.
func NewEnvelope(x0, y0, x1, y1 float64) Envelope {
	return Envelope{
		MinX: math.Min(x0, x1),
		MinY: math.Min(y0, y1),
		MaxX: math.Max(x0, x1),
		MaxY: math.Max(y0, y1),
	}
}

// FromBound converts an orb.Bound.
func FromBound(b orb.Bound) Envelope {
	return NewEnvelope(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

// ParseEnvelope parses four numbers separated by commas and/or whitespace:
// "minx,miny,maxx,maxy".
func ParseEnvelope(s string) (Envelope, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(parts) != 4 {
		return Envelope{}, errors.New(errors.ErrCodeInvalidEnvelope,
			"invalid envelope %q (want minx,miny,maxx,maxy)", s)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Envelope{}, errors.New(errors.ErrCodeInvalidEnvelope, "invalid envelope %q: bad number %q", s, p)
		}
		v[i] = f
	}
	return NewEnvelope(v[0], v[1], v[2], v[3]), nil
}

// Width returns the horizontal extent.
func (e Envelope) Width() float64 { return e.MaxX - e.MinX }

// Height returns the vertical extent.
func (e Envelope) Height() float64 { return e.MaxY - e.MinY }

// Center returns the centre point.
func (e Envelope) Center() orb.Point {
	return orb.Point{(e.MinX + e.MaxX) / 2, (e.MinY + e.MaxY) / 2}
}

// Valid reports whether the envelope has a positive, finite area.
func (e Envelope) Valid() bool {
	w, h := e.Width(), e.Height()
	return w > 0 && h > 0 && !math.IsInf(w, 0) && !math.IsInf(h, 0)
}

// Bound converts to an orb.Bound.
func (e Envelope) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{e.MinX, e.MinY}, Max: orb.Point{e.MaxX, e.MaxY}}
}

// Intersects reports whether the two envelopes overlap (touching counts).
func (e Envelope) Intersects(o Envelope) bool {
	return e.MinX <= o.MaxX && o.MinX <= e.MaxX && e.MinY <= o.MaxY && o.MinY <= e.MaxY
}

// Union returns the smallest envelope containing both.
func (e Envelope) Union(o Envelope) Envelope {
	return Envelope{
		MinX: math.Min(e.MinX, o.MinX),
		MinY: math.Min(e.MinY, o.MinY),
		MaxX: math.Max(e.MaxX, o.MaxX),
		MaxY: math.Max(e.MaxY, o.MaxY),
	}
}

// Expand grows the envelope by d on every side.
func (e Envelope) Expand(d float64) Envelope {
	return Envelope{MinX: e.MinX - d, MinY: e.MinY - d, MaxX: e.MaxX + d, MaxY: e.MaxY + d}
}

// FitAspect grows the envelope around its centre so that its aspect ratio
// matches size. Degenerate envelopes are returned unchanged.
func (e Envelope) FitAspect(size MapSize) Envelope {
	if !e.Valid() || !size.Valid() {
		return e
	}
	want := float64(size.Width) / float64(size.Height)
	have := e.Width() / e.Height()
	c := e.Center()

	if have > want {
		h := e.Width() / want
		return Envelope{MinX: e.MinX, MaxX: e.MaxX, MinY: c[1] - h/2, MaxY: c[1] + h/2}
	}
	w := e.Height() * want
	return Envelope{MinX: c[0] - w/2, MaxX: c[0] + w/2, MinY: e.MinY, MaxY: e.MaxY}
}

// Split cuts the envelope into a tiles grid. The result is row-major
// starting at the top-left tile, matching image tile order.
func (e Envelope) Split(tiles MapSize) []Envelope {
	if !tiles.Valid() {
		return nil
	}
	tw := e.Width() / float64(tiles.Width)
	th := e.Height() / float64(tiles.Height)

	out := make([]Envelope, 0, tiles.Width*tiles.Height)
	for row := 0; row < tiles.Height; row++ {
		for col := 0; col < tiles.Width; col++ {
			out = append(out, Envelope{
				MinX: e.MinX + float64(col)*tw,
				MaxX: e.MinX + float64(col+1)*tw,
				MinY: e.MaxY - float64(row+1)*th,
				MaxY: e.MaxY - float64(row)*th,
			})
		}
	}
	return out
}

// String formats the envelope as "minx,miny,maxx,maxy".
func (e Envelope) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return fmt.Sprintf("%s,%s,%s,%s", f(e.MinX), f(e.MinY), f(e.MaxX), f(e.MaxY))
}
