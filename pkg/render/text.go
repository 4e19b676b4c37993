package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// HaloOffsets returns the offsets at which a halo copy of a label is drawn
// for radius r: a ring of points, denser for larger radii.
func HaloOffsets(r float64) []Point {
	if r <= 0 {
		return nil
	}
	n := max(8, int(math.Ceil(2*math.Pi*r)))
	out := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		out = append(out, Point{r * math.Cos(a), r * math.Sin(a)})
	}
	return out
}

// DrawText draws s centred on (x, y) into dst with face, halo first.
func DrawText(dst draw.Image, face font.Face, x, y float64, s string, ts TextStyle) {
	d := &font.Drawer{Dst: dst, Face: face}
	w := d.MeasureString(s)
	m := face.Metrics()
	ox := x - float64(w)/128
	oy := y + float64(m.Ascent-m.Descent)/128

	if ts.HaloRadius > 0 && ts.HaloFill.A > 0 {
		d.Src = image.NewUniform(ts.HaloFill)
		for _, off := range HaloOffsets(ts.HaloRadius) {
			d.Dot = FixedPoint(Point{ox + off.X, oy + off.Y})
			d.DrawString(s)
		}
	}
	d.Src = image.NewUniform(ts.Fill)
	d.Dot = FixedPoint(Point{ox, oy})
	d.DrawString(s)
}

// FillImage paints every pixel of dst with c.
func FillImage(dst draw.Image, c color.NRGBA) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// Fixed converts v to 26.6 fixed point, rounding to the nearest 1/64.
func Fixed(v float64) fixed.Int26_6 { return fixed.Int26_6(math.Round(v * 64)) }

// FixedPoint converts p with [Fixed].
func FixedPoint(p Point) fixed.Point26_6 { return fixed.Point26_6{X: Fixed(p.X), Y: Fixed(p.Y)} }
