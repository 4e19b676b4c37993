package render_test

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/render"
	"github.com/matzehuels/mapprint/pkg/render/rendertest"
)

func paint(t *testing.T, scene *render.Scene) []string {
	t.Helper()
	rec := &rendertest.Recorder{}
	if err := (&render.Painter{Scene: scene}).Paint(context.Background(), rec); err != nil {
		t.Fatalf("Paint: %v", err)
	}
	return rec.Ops
}

func TestPaint(t *testing.T) {
	scene := rendertest.Scene(t, rendertest.Basic, rendertest.BasicEnvelope, geo.MapSize{Width: 100, Height: 100}, 1)
	ops := paint(t, scene)
	if len(ops) != 5 {
		t.Fatalf("got %d ops: %q", len(ops), ops)
	}

	want := []string{
		"clear #ffffff",
		"fill #0000ff 0,100 50,100 50,0 0,0 0,100",
		"stroke #000000 2 0,10 100,10",
	}
	if !reflect.DeepEqual(ops[:3], want) {
		t.Errorf("ops = %q, want prefix %q", ops[:3], want)
	}
	if !strings.HasPrefix(ops[3], "fill #ff0000 83,80 ") {
		t.Errorf("marker op = %q", ops[3])
	}
	if ops[4] != `text "City" 80,72 10` {
		t.Errorf("label op = %q", ops[4])
	}
}

func TestPaintScaleFactor(t *testing.T) {
	scene := rendertest.Scene(t, rendertest.Basic, rendertest.BasicEnvelope, geo.MapSize{Width: 200, Height: 200}, 2)
	ops := paint(t, scene)
	if len(ops) != 5 {
		t.Fatalf("got %d ops: %q", len(ops), ops)
	}
	if ops[2] != "stroke #000000 4 0,20 200,20" {
		t.Errorf("line op = %q", ops[2])
	}
	if ops[4] != `text "City" 160,144 20` {
		t.Errorf("label op = %q", ops[4])
	}
}

func TestPaintCullsOutsideView(t *testing.T) {
	scene := rendertest.Scene(t, rendertest.Basic, geo.NewEnvelope(20, 20, 30, 30), geo.MapSize{Width: 100, Height: 100}, 1)
	ops := paint(t, scene)
	if !reflect.DeepEqual(ops, []string{"clear #ffffff"}) {
		t.Errorf("ops = %q", ops)
	}
}

const labelsFirst = `<Map srs="+proj=longlat +datum=WGS84">
  <Style name="labels">
    <Rule><TextSymbolizer size="10">[name]</TextSymbolizer></Rule>
  </Style>
  <Style name="land">
    <Rule><PolygonSymbolizer fill="green"/></Rule>
  </Style>
  <Style name="hidden">
    <Rule>
      <MaxScaleDenominator>1</MaxScaleDenominator>
      <PolygonSymbolizer fill="red"/>
    </Rule>
  </Style>
  <Layer name="labels">
    <StyleName>labels</StyleName>
    <Datasource>
      <Parameter name="type">geojson</Parameter>
      <Parameter name="inline">{"type":"Feature","properties":{"name":"A"},"geometry":{"type":"Point","coordinates":[5,5]}}</Parameter>
    </Datasource>
  </Layer>
  <Layer name="land">
    <StyleName>land</StyleName>
    <StyleName>hidden</StyleName>
    <Datasource>
      <Parameter name="type">wkt</Parameter>
      <Parameter name="inline">POLYGON((1 1,9 1,9 9,1 9,1 1))</Parameter>
    </Datasource>
  </Layer>
</Map>`

func TestPaintLabelsLastAndScaleLimits(t *testing.T) {
	scene := rendertest.Scene(t, labelsFirst, rendertest.BasicEnvelope, geo.MapSize{Width: 100, Height: 100}, 1)
	rec := &rendertest.Recorder{}
	if err := (&render.Painter{Scene: scene}).Paint(context.Background(), rec); err != nil {
		t.Fatalf("Paint: %v", err)
	}
	want := []string{"clear", "fill", "text"}
	if got := rec.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("kinds = %v, want %v (ops %q)", got, want, rec.Ops)
	}
	if !strings.HasPrefix(rec.Ops[1], "fill #008000") {
		t.Errorf("fill op = %q", rec.Ops[1])
	}
}

func TestPaintCancelled(t *testing.T) {
	scene := rendertest.Scene(t, rendertest.Basic, rendertest.BasicEnvelope, geo.MapSize{Width: 100, Height: 100}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (&render.Painter{Scene: scene}).Paint(ctx, &rendertest.Recorder{})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSceneValidate(t *testing.T) {
	scene := rendertest.Scene(t, rendertest.Basic, rendertest.BasicEnvelope, geo.MapSize{Width: 10, Height: 10}, 1)
	tests := []struct {
		name string
		s    *render.Scene
		code errors.Code
	}{
		{"ok", scene, ""},
		{"size", scene.WithView(rendertest.BasicEnvelope, geo.MapSize{}, 1), errors.ErrCodeInvalidSize},
		{"envelope", scene.WithView(geo.NewEnvelope(1, 1, 1, 5), geo.MapSize{Width: 10, Height: 10}, 1), errors.ErrCodeInvalidEnvelope},
		{"scale", scene.WithView(rendertest.BasicEnvelope, geo.MapSize{Width: 10, Height: 10}, 0), errors.ErrCodeInvalidScale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.code == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("Validate = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestSceneZoomAll(t *testing.T) {
	scene := rendertest.Scene(t, rendertest.Basic, rendertest.BasicEnvelope, geo.MapSize{Width: 10, Height: 10}, 1)
	env, ok := scene.ZoomAll()
	if !ok {
		t.Fatal("ZoomAll found no extent")
	}
	if env != geo.NewEnvelope(0, 0, 10, 10) {
		t.Errorf("ZoomAll = %s", env)
	}
}

func TestPathEllipse(t *testing.T) {
	var p render.Path
	p.Ellipse(10, 10, 2, 2)
	if p.Empty() {
		t.Fatal("ellipse path is empty")
	}
	sp := p.Subpaths[0]
	if len(sp.Points) != 16 || !sp.Closed {
		t.Errorf("got %d points closed=%v", len(sp.Points), sp.Closed)
	}
	p.Reset()
	if !p.Empty() {
		t.Error("path not empty after Reset")
	}

	p.Ellipse(0, 0, 500, 500)
	if n := len(p.Subpaths[0].Points); n != 256 {
		t.Errorf("large ellipse has %d points, want 256", n)
	}
}

func TestHaloOffsets(t *testing.T) {
	if got := render.HaloOffsets(0); got != nil {
		t.Errorf("HaloOffsets(0) = %v", got)
	}
	if got := len(render.HaloOffsets(1)); got != 8 {
		t.Errorf("len(HaloOffsets(1)) = %d, want 8", got)
	}
	if got := len(render.HaloOffsets(3)); got != 19 {
		t.Errorf("len(HaloOffsets(3)) = %d, want 19", got)
	}
}

// stub fills its output red for views left of x=5 and blue otherwise.
type stub struct {
	render.Raster
	name string
}

func (s stub) Name() string { return s.name }

func (s stub) Render(_ context.Context, scene *render.Scene) (render.Output, error) {
	img := image.NewNRGBA(image.Rect(0, 0, scene.Size.Width, scene.Size.Height))
	c := color.NRGBA{B: 255, A: 255}
	if scene.Envelope.MinX < 5 {
		c = color.NRGBA{R: 255, A: 255}
	}
	render.FillImage(img, c)
	return render.Output{Image: img}, nil
}

type vector struct{ render.Vector }

func (vector) Name() string        { return "vec" }
func (vector) Ext() string         { return ".txt" }
func (vector) ContentType() string { return "text/plain" }
func (vector) Render(context.Context, *render.Scene) (render.Output, error) {
	return render.Output{Data: []byte("hello")}, nil
}

func TestRegistry(t *testing.T) {
	reg := render.NewRegistry()
	for _, n := range []string{"zeta", "cairo-pdf", "agg", "alpha", "cairo"} {
		reg.Register(stub{name: n})
	}
	want := []string{"agg", "cairo", "cairo-pdf", "alpha", "zeta"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}

	if r, err := reg.Lookup("cairo"); err != nil || r.Name() != "cairo" {
		t.Errorf("Lookup(cairo) = %v, %v", r, err)
	}
	_, err := reg.Lookup("grid")
	if !errors.Is(err, errors.ErrCodeUnknownRenderer) {
		t.Errorf("Lookup(grid) err = %v", err)
	}
	if !strings.Contains(err.Error(), "agg, cairo") {
		t.Errorf("error does not list renderers: %v", err)
	}
}

func TestRenderTiled(t *testing.T) {
	scene := rendertest.Scene(t, rendertest.Basic, rendertest.BasicEnvelope, geo.MapSize{Width: 4, Height: 2}, 1)
	ctx := context.Background()

	out, err := render.RenderTiled(ctx, stub{name: "stub"}, scene, geo.MapSize{Width: 2, Height: 1})
	if err != nil {
		t.Fatalf("RenderTiled: %v", err)
	}
	if b := out.Image.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Fatalf("bounds = %v", b)
	}
	red, blue := color.NRGBA{R: 255, A: 255}, color.NRGBA{B: 255, A: 255}
	for _, tc := range []struct {
		x, y int
		want color.NRGBA
	}{{0, 0, red}, {1, 1, red}, {2, 0, blue}, {3, 1, blue}} {
		if got := out.Image.At(tc.x, tc.y); !rendertest.Near(got, tc.want, 0) {
			t.Errorf("pixel %d,%d = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}

	if _, err := render.RenderTiled(ctx, stub{name: "stub"}, scene, geo.MapSize{Width: 3, Height: 1}); !errors.Is(err, errors.ErrCodeInvalidSize) {
		t.Errorf("uneven grid err = %v", err)
	}
	if _, err := render.RenderTiled(ctx, vector{}, scene, geo.MapSize{Width: 2, Height: 1}); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("vector tiles err = %v", err)
	}
	out, err = render.RenderTiled(ctx, vector{}, scene, geo.SingleTile)
	if err != nil || string(out.Data) != "hello" {
		t.Errorf("single tile = %q, %v", out.Data, err)
	}
}

func TestReporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	scene := rendertest.Scene(t, rendertest.Basic, rendertest.BasicEnvelope, geo.MapSize{Width: 8, Height: 6}, 2)
	r := stub{name: "agg"}
	out, err := r.Render(context.Background(), scene)
	if err != nil {
		t.Fatal(err)
	}

	res, err := render.Reporter{OutputDir: dir}.Report(r, out, "world", scene.Size, geo.SingleTile, 2)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	want := filepath.Join(dir, "world-4-3-2.0-agg.png")
	if res.ImagePath != want || res.State != render.StateOK {
		t.Errorf("result = %+v, want path %s", res, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "\x89PNG") {
		t.Error("output is not a PNG")
	}

	vres, err := render.Reporter{OutputDir: dir}.Report(vector{}, render.Output{Data: []byte("hello")}, "world", scene.Size, geo.SingleTile, 2)
	if err != nil {
		t.Fatalf("Report vector: %v", err)
	}
	if got, _ := os.ReadFile(vres.ImagePath); string(got) != "hello" {
		t.Errorf("vector output = %q", got)
	}
}

func TestReporterWriteError(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "world-4-3-1.0-vec.txt")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := render.Reporter{OutputDir: dir}.Report(vector{}, render.Output{Data: []byte("x")}, "world",
		geo.MapSize{Width: 4, Height: 3}, geo.SingleTile, 1)
	if !errors.Is(err, errors.ErrCodeIO) {
		t.Fatalf("err = %v", err)
	}
	if msg := errors.UserMessage(err); msg != "Cannot open file for writing: "+blocked {
		t.Errorf("message = %q", msg)
	}
}

func TestStateText(t *testing.T) {
	for s, want := range map[render.State]string{render.StateOK: "ok", render.StateError: "error", render.StateSkipped: "skipped"} {
		b, _ := s.MarshalText()
		if string(b) != want || s.String() != want {
			t.Errorf("%d: %q", s, b)
		}
	}
}

func TestFixedRounds(t *testing.T) {
	tests := []struct {
		v    float64
		want int32
	}{
		{1, 64},
		{0.999, 64},
		{1.0078125, 65}, // 64.5/64 rounds away from zero
		{-0.999, -64},
		{2.49 / 64, 2},
	}
	for _, tt := range tests {
		if got := render.Fixed(tt.v); int32(got) != tt.want {
			t.Errorf("Fixed(%g) = %d, want %d", tt.v, got, tt.want)
		}
	}
	p := render.FixedPoint(render.Point{X: 0.999, Y: -0.999})
	if p.X != 64 || p.Y != -64 {
		t.Errorf("FixedPoint = %v", p)
	}
}
