// Package rendertest provides scenes and a recording surface for testing
// renderers.
package rendertest

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/matzehuels/mapprint/pkg/datasource"
	"github.com/matzehuels/mapprint/pkg/fonts"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/render"
	"github.com/matzehuels/mapprint/pkg/style"
)

// Basic is a style on the envelope 0,0,10,10: a blue polygon over the left
// half, a black road along y=9 and a red city marker labelled "City" at
// (8, 2). The background is white.
const Basic = `<Map srs="+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs" background-color="white">
  <Style name="water">
    <Rule><PolygonSymbolizer fill="#0000ff"/></Rule>
  </Style>
  <Style name="roads">
    <Rule><LineSymbolizer stroke="black" stroke-width="2"/></Rule>
  </Style>
  <Style name="places">
    <Rule>
      <MarkersSymbolizer fill="red" width="6" height="6" stroke-width="0"/>
      <TextSymbolizer face-name="Go Regular" size="10" dy="-8">[name]</TextSymbolizer>
    </Rule>
  </Style>
  <Layer name="water">
    <StyleName>water</StyleName>
    <Datasource>
      <Parameter name="type">wkt</Parameter>
      <Parameter name="inline">POLYGON((0 0,5 0,5 10,0 10,0 0))</Parameter>
    </Datasource>
  </Layer>
  <Layer name="roads">
    <StyleName>roads</StyleName>
    <Datasource>
      <Parameter name="type">wkt</Parameter>
      <Parameter name="inline">LINESTRING(0 9,10 9)</Parameter>
    </Datasource>
  </Layer>
  <Layer name="places">
    <StyleName>places</StyleName>
    <Datasource>
      <Parameter name="type">geojson</Parameter>
      <Parameter name="inline">{"type":"Feature","properties":{"name":"City"},"geometry":{"type":"Point","coordinates":[8,2]}}</Parameter>
    </Datasource>
  </Layer>
</Map>`

// BasicEnvelope is the extent drawn by [Basic].
var BasicEnvelope = geo.NewEnvelope(0, 0, 10, 10)

// Scene parses src, loads its layers and sets the view.
func Scene(t testing.TB, src string, env geo.Envelope, size geo.MapSize, scale float64) *render.Scene {
	t.Helper()
	m, err := style.Parse(strings.NewReader(src), t.TempDir())
	if err != nil {
		t.Fatalf("parse style: %v", err)
	}
	loader := datasource.NewLoader(datasource.Default(), "", nil)
	s, err := render.LoadScene(context.Background(), m, loader, fonts.New())
	if err != nil {
		t.Fatalf("load scene: %v", err)
	}
	return s.WithView(env, size, scale)
}

// Near reports whether two colors differ by at most tol per channel.
func Near(a, b color.Color, tol uint8) bool {
	x := color.NRGBAModel.Convert(a).(color.NRGBA)
	y := color.NRGBAModel.Convert(b).(color.NRGBA)
	d := func(p, q uint8) bool { return math.Abs(float64(p)-float64(q)) <= float64(tol) }
	return d(x.R, y.R) && d(x.G, y.G) && d(x.B, y.B) && d(x.A, y.A)
}

// Recorder is a [render.Surface] that logs every paint operation as a
// line of text.
type Recorder struct {
	render.Path
	render.Paint

	Ops []string
}

func (r *Recorder) Clear(c color.NRGBA) {
	r.Ops = append(r.Ops, "clear "+style.Hex(c))
}

func (r *Recorder) Fill() {
	if !r.Empty() {
		r.Ops = append(r.Ops, fmt.Sprintf("fill %s %s", style.Hex(r.FillColor), r.points()))
	}
	r.Reset()
}

func (r *Recorder) Stroke() {
	if !r.Empty() {
		r.Ops = append(r.Ops, fmt.Sprintf("stroke %s %g %s", style.Hex(r.StrokeColor), r.StrokeStyle.Width, r.points()))
	}
	r.Reset()
}

func (r *Recorder) FillStroke() {
	if !r.Empty() {
		r.Ops = append(r.Ops, fmt.Sprintf("fillstroke %s %s %g", style.Hex(r.FillColor), style.Hex(r.StrokeColor), r.StrokeStyle.Width))
	}
	r.Reset()
}

func (r *Recorder) Text(x, y float64, s string, ts render.TextStyle) {
	r.Ops = append(r.Ops, fmt.Sprintf("text %q %g,%g %g", s, x, y, ts.Size))
}

// points lists the first subpath's points rounded to integers.
func (r *Recorder) points() string {
	var parts []string
	for _, p := range r.Subpaths[0].Points {
		parts = append(parts, fmt.Sprintf("%g,%g", math.Round(p.X), math.Round(p.Y)))
	}
	return strings.Join(parts, " ")
}

// Kinds returns the first word of each recorded op.
func (r *Recorder) Kinds() []string {
	out := make([]string, len(r.Ops))
	for i, op := range r.Ops {
		out[i], _, _ = strings.Cut(op, " ")
	}
	return out
}
