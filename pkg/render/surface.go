package render

import (
	"image/color"
	"math"
)

// Surface is a drawing target. Paths are built with MoveTo/LineTo/ClosePath
// (or Ellipse) and consumed by Fill, Stroke or FillStroke, which clear the
// current path. Fill uses the even-odd rule so polygon holes stay open
// regardless of ring orientation.
type Surface interface {
	// Clear paints the whole surface with c.
	Clear(c color.NRGBA)

	SetFill(c color.NRGBA)
	SetStroke(c color.NRGBA, st StrokeStyle)

	MoveTo(x, y float64)
	LineTo(x, y float64)
	ClosePath()
	Ellipse(cx, cy, rx, ry float64)

	Fill()
	Stroke()
	FillStroke()

	// Text draws s centred on (x, y).
	Text(x, y float64, s string, ts TextStyle)
}

// StrokeStyle describes how lines are stroked.
type StrokeStyle struct {
	Width float64
	Dash  []float64
	Cap   string // butt, round, square
	Join  string // miter, round, bevel
}

// TextStyle describes a label.
type TextStyle struct {
	Face       string
	Size       float64
	Fill       color.NRGBA
	HaloFill   color.NRGBA
	HaloRadius float64
}

// Point is a pixel-space coordinate.
type Point struct{ X, Y float64 }

// Subpath is a connected run of points.
type Subpath struct {
	Points []Point
	Closed bool
}

// Path records path construction calls. Backends embed it to implement
// the path half of [Surface] and replay the subpaths in their own terms.
type Path struct {
	Subpaths []Subpath
}

// MoveTo starts a new subpath.
func (p *Path) MoveTo(x, y float64) {
	p.Subpaths = append(p.Subpaths, Subpath{Points: []Point{{x, y}}})
}

// LineTo extends the current subpath, starting one if needed.
func (p *Path) LineTo(x, y float64) {
	if len(p.Subpaths) == 0 {
		p.MoveTo(x, y)
		return
	}
	sp := &p.Subpaths[len(p.Subpaths)-1]
	sp.Points = append(sp.Points, Point{x, y})
}

// ClosePath closes the current subpath.
func (p *Path) ClosePath() {
	if len(p.Subpaths) > 0 {
		p.Subpaths[len(p.Subpaths)-1].Closed = true
	}
}

// Ellipse adds a closed polygonal ellipse. The segment count grows with
// the radius so that curves stay smooth at any scale factor.
func (p *Path) Ellipse(cx, cy, rx, ry float64) {
	n := int(math.Ceil(math.Max(rx, ry) * 2))
	n = max(16, min(n, 256))
	p.MoveTo(cx+rx, cy)
	for i := 1; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		p.LineTo(cx+rx*math.Cos(a), cy+ry*math.Sin(a))
	}
	p.ClosePath()
}

// Empty reports whether there is nothing to draw.
func (p *Path) Empty() bool {
	for _, sp := range p.Subpaths {
		if len(sp.Points) > 1 {
			return false
		}
	}
	return true
}

// Reset clears the path.
func (p *Path) Reset() { p.Subpaths = p.Subpaths[:0] }

// Paint holds the current fill and stroke settings for backends.
type Paint struct {
	FillColor   color.NRGBA
	StrokeColor color.NRGBA
	StrokeStyle StrokeStyle
}

// SetFill sets the fill color.
func (p *Paint) SetFill(c color.NRGBA) { p.FillColor = c }

// SetStroke sets the stroke color and style.
func (p *Paint) SetStroke(c color.NRGBA, st StrokeStyle) {
	p.StrokeColor = c
	p.StrokeStyle = st
}

// Alpha returns the color's alpha as a fraction.
func Alpha(c color.NRGBA) float64 { return float64(c.A) / 255 }
