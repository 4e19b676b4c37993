package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb/project"

	"github.com/matzehuels/mapprint/pkg/errors"
)

func approx(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestParseMapSize(t *testing.T) {
	tests := []struct {
		in      string
		want    MapSize
		wantErr bool
	}{
		{"512,512", MapSize{512, 512}, false},
		{"800x600", MapSize{800, 600}, false},
		{" 1024 , 768 ", MapSize{1024, 768}, false},
		{"256X128", MapSize{256, 128}, false},

		{"512", MapSize{}, true},
		{"0,10", MapSize{}, true},
		{"-5,10", MapSize{}, true},
		{"a,b", MapSize{}, true},
		{"1,2,3", MapSize{}, true},
	}

	for _, tt := range tests {
		got, err := ParseMapSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMapSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseMapSize(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidSize) {
			t.Errorf("ParseMapSize(%q) code = %s", tt.in, errors.GetCode(err))
		}
	}
}

func TestParseMapSizes(t *testing.T) {
	got, err := ParseMapSizes("512,512; 1024,768;")
	if err != nil {
		t.Fatalf("ParseMapSizes: %v", err)
	}
	if len(got) != 2 || got[0] != (MapSize{512, 512}) || got[1] != (MapSize{1024, 768}) {
		t.Errorf("ParseMapSizes = %v", got)
	}

	if _, err := ParseMapSizes(";;"); err == nil {
		t.Error("empty size list should fail")
	}
	if _, err := ParseMapSizes("512,512;bad"); err == nil {
		t.Error("bad entry should fail")
	}
}

func TestParseScaleFactors(t *testing.T) {
	got, err := ParseScaleFactors([]string{"1.0", "2,1.5"})
	if err != nil {
		t.Fatalf("ParseScaleFactors: %v", err)
	}
	want := []float64{1, 2, 1.5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("scale[%d] = %g, want %g", i, got[i], want[i])
		}
	}

	for _, bad := range []string{"0", "-1", "abc", "NaN"} {
		if _, err := ParseScaleFactors([]string{bad}); err == nil {
			t.Errorf("ParseScaleFactors(%q) should fail", bad)
		}
	}
}

func TestTileSize(t *testing.T) {
	ts, err := MapSize{512, 256}.TileSize(MapSize{2, 2})
	if err != nil || ts != (MapSize{256, 128}) {
		t.Errorf("TileSize = %v, %v", ts, err)
	}
	if _, err := (MapSize{500, 256}).TileSize(MapSize{3, 1}); err == nil {
		t.Error("indivisible tiling should fail")
	}
	if _, err := (MapSize{500, 256}).TileSize(MapSize{0, 1}); err == nil {
		t.Error("empty tile grid should fail")
	}
}

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		in      string
		want    Envelope
		wantErr bool
	}{
		{"-180,-85,180,85", Envelope{-180, -85, 180, 85}, false},
		{"0 0 10 20", Envelope{0, 0, 10, 20}, false},
		{"10, 20, 0, 0", Envelope{0, 0, 10, 20}, false},
		{"1,2,3", Envelope{}, true},
		{"1,2,3,x", Envelope{}, true},
		{"", Envelope{}, true},
	}

	for _, tt := range tests {
		got, err := ParseEnvelope(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEnvelope(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseEnvelope(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEnvelopeString(t *testing.T) {
	e := Envelope{-20037508.34, -1.5, 20037508.34, 2}
	if got := e.String(); got != "-20037508.34,-1.5,20037508.34,2" {
		t.Errorf("String() = %q", got)
	}
	back, err := ParseEnvelope(e.String())
	if err != nil || back != e {
		t.Errorf("ParseEnvelope(String()) = %v, %v", back, err)
	}
}

func TestFitAspect(t *testing.T) {
	e := Envelope{0, 0, 100, 100}

	wide := e.FitAspect(MapSize{200, 100})
	if wide.Width() != 200 || wide.Height() != 100 || wide.Center() != e.Center() {
		t.Errorf("FitAspect wide = %v", wide)
	}

	tall := e.FitAspect(MapSize{100, 400})
	if tall.Width() != 100 || tall.Height() != 400 || tall.Center() != e.Center() {
		t.Errorf("FitAspect tall = %v", tall)
	}

	same := e.FitAspect(MapSize{50, 50})
	if same != e {
		t.Errorf("FitAspect square = %v", same)
	}
}

func TestSplit(t *testing.T) {
	e := Envelope{0, 0, 200, 100}
	parts := e.Split(MapSize{2, 2})
	if len(parts) != 4 {
		t.Fatalf("Split returned %d parts", len(parts))
	}

	want := []Envelope{
		{0, 50, 100, 100},  // top-left
		{100, 50, 200, 100}, // top-right
		{0, 0, 100, 50},    // bottom-left
		{100, 0, 200, 50},  // bottom-right
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("part %d = %v, want %v", i, parts[i], want[i])
		}
	}

	if got := e.Split(MapSize{1, 1}); len(got) != 1 || got[0] != e {
		t.Errorf("Split 1x1 = %v", got)
	}
}

func TestEnvelopeSetOps(t *testing.T) {
	a := Envelope{0, 0, 10, 10}
	b := Envelope{5, 5, 20, 20}
	c := Envelope{30, 30, 40, 40}

	if !a.Intersects(b) || a.Intersects(c) {
		t.Error("Intersects mismatch")
	}
	if u := a.Union(c); u != (Envelope{0, 0, 40, 40}) {
		t.Errorf("Union = %v", u)
	}
	if x := a.Expand(1); x != (Envelope{-1, -1, 11, 11}) {
		t.Errorf("Expand = %v", x)
	}
	if (Envelope{1, 1, 1, 5}).Valid() {
		t.Error("zero-width envelope should be invalid")
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name     string
		size     MapSize
		tiles    MapSize
		scale    float64
		renderer string
		ext      string
		want     string
	}{
		{"roads", MapSize{512, 512}, SingleTile, 1.0, "agg", ".png", "roads-512-512-1.0-agg.png"},
		{"roads", MapSize{1024, 1024}, SingleTile, 2.0, "cairo", ".png", "roads-512-512-2.0-cairo.png"},
		{"roads", MapSize{512, 256}, MapSize{2, 1}, 1.0, "agg", ".png", "roads-512-256-2x1-1.0-agg.png"},
		{"roads", MapSize{513, 512}, SingleTile, 2.0, "cairo-svg", ".svg", "roads-256.5-256-2.0-cairo-svg.svg"},
		{"x", MapSize{1000, 300}, SingleTile, 3.0, "cairo-pdf", ".pdf", "x-333.333-100-3.0-cairo-pdf.pdf"},
		{"x", MapSize{2000000, 10}, SingleTile, 1.0, "agg", ".png", "x-2e+06-10-1.0-agg.png"},
		{"x", MapSize{10, 10}, SingleTile, 1.25, "cairo-ps", ".ps", "x-8-8-1.2-cairo-ps.ps"},
	}

	for _, tt := range tests {
		got := FileName(tt.name, tt.size, tt.tiles, tt.scale, tt.renderer, tt.ext)
		if got != tt.want {
			t.Errorf("FileName(%v, %v, %g) = %q, want %q", tt.size, tt.tiles, tt.scale, got, tt.want)
		}
	}
}

func TestCommandValidate(t *testing.T) {
	cmd := Command{Style: "s", Size: MapSize{256, 256}, ScaleFactor: 1}
	if err := cmd.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cmd.Tiles != SingleTile {
		t.Errorf("Tiles default = %v", cmd.Tiles)
	}

	bad := []Command{
		{Size: MapSize{256, 256}, ScaleFactor: 1},
		{Style: "s", Size: MapSize{0, 256}, ScaleFactor: 1},
		{Style: "s", Size: MapSize{256, 256}, ScaleFactor: 0},
		{Style: "s", Size: MapSize{256, 256}, ScaleFactor: 1, Tiles: MapSize{3, 1}},
		{Style: "s", Size: MapSize{256, 256}, ScaleFactor: 1, Envelope: &Envelope{0, 0, 0, 1}},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("command %d should be invalid", i)
		}
	}
}

func TestParsePaper(t *testing.T) {
	tests := []struct {
		in      string
		want    PaperSize
		wantErr bool
	}{
		{"A4", PaperSize{210, 297}, false},
		{"a4-landscape", PaperSize{297, 210}, false},
		{"letter", PaperSize{215.9, 279.4}, false},
		{"100,50", PaperSize{100, 50}, false},
		{"b7", PaperSize{}, true},
		{"0,50", PaperSize{}, true},
	}
	for _, tt := range tests {
		got, err := ParsePaper(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePaper(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParsePaper(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildCommandZoom(t *testing.T) {
	zoom := 2.0
	// 256px at standard DPI is 25.4*256/StandardDPI mm.
	mm := 256 / StandardDPI * 25.4
	cmd, err := BuildCommand("world", PrintSpec{
		Zoom:  &zoom,
		Paper: PaperSize{mm, mm},
	})
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}

	if cmd.Size != (MapSize{256, 256}) {
		t.Errorf("Size = %v", cmd.Size)
	}
	if !approx(cmd.ScaleFactor, 1, 1e-12) {
		t.Errorf("ScaleFactor = %g", cmd.ScaleFactor)
	}
	// One zoom-2 tile spans a quarter of the world.
	world := 2 * math.Pi * EarthRadius
	if !approx(cmd.Envelope.Width(), world/4, 1e-3) || !approx(cmd.Envelope.Height(), world/4, 1e-3) {
		t.Errorf("Envelope = %v", cmd.Envelope)
	}
	if c := cmd.Envelope.Center(); !approx(c[0], 0, 1e-6) || !approx(c[1], 0, 1e-6) {
		t.Errorf("Center = %v", c)
	}
}

func TestBuildCommandDPIScalesPixelsNotGround(t *testing.T) {
	zoom := 10.0
	base := PrintSpec{Zoom: &zoom, Paper: PaperSize{100, 100}}
	hi := base
	hi.DPI = 2 * StandardDPI

	c1, err := BuildCommand("s", base)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := BuildCommand("s", hi)
	if err != nil {
		t.Fatal(err)
	}

	if !approx(c2.ScaleFactor, 2, 1e-12) {
		t.Errorf("ScaleFactor = %g", c2.ScaleFactor)
	}
	if c2.Size.Width != 2*c1.Size.Width && c2.Size.Width != 2*c1.Size.Width+1 && c2.Size.Width != 2*c1.Size.Width-1 {
		t.Errorf("pixel width %d vs %d", c2.Size.Width, c1.Size.Width)
	}
	if !approx(c1.Envelope.Width(), c2.Envelope.Width(), c1.Envelope.Width()*0.01) {
		t.Errorf("ground width changed with dpi: %g vs %g", c1.Envelope.Width(), c2.Envelope.Width())
	}
}

func TestBuildCommandScaleDenominator(t *testing.T) {
	spec := PrintSpec{
		Center:           [2]float64{10, 60},
		ScaleDenominator: 25000,
		Paper:            PaperSize{200, 100},
		DPI:              300,
	}
	cmd, err := BuildCommand("topo", spec)
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}

	// 200mm at 1:25000 is 5km on the ground, doubled by Mercator at 60°N.
	if !approx(cmd.Envelope.Width(), 10000, 1e-6) || !approx(cmd.Envelope.Height(), 5000, 1e-6) {
		t.Errorf("Envelope = %v (w=%g h=%g)", cmd.Envelope, cmd.Envelope.Width(), cmd.Envelope.Height())
	}
	if cmd.Size != (MapSize{2362, 1181}) {
		t.Errorf("Size = %v", cmd.Size)
	}
	center := project.WGS84.ToMercator(spec.Center)
	if c := cmd.Envelope.Center(); !approx(c[0], center[0], 1e-6) || !approx(c[1], center[1], 1e-6) {
		t.Errorf("Center = %v, want %v", c, center)
	}

	// The rendered scale denominator at the centre latitude matches.
	got := ScaleDenominator(*cmd.Envelope, cmd.Size, cmd.ScaleFactor, false) * math.Cos(60*math.Pi/180)
	if !approx(got, 25000, 25) {
		t.Errorf("ScaleDenominator = %g, want ~25000", got)
	}
}

func TestPrintSpecValidate(t *testing.T) {
	zoom := 3.0
	badZoom := 40.0
	tests := []struct {
		name string
		spec PrintSpec
	}{
		{"neither", PrintSpec{Paper: PaperSize{10, 10}}},
		{"both", PrintSpec{Zoom: &zoom, ScaleDenominator: 1000, Paper: PaperSize{10, 10}}},
		{"zoom range", PrintSpec{Zoom: &badZoom, Paper: PaperSize{10, 10}}},
		{"no paper", PrintSpec{Zoom: &zoom}},
		{"latitude", PrintSpec{Zoom: &zoom, Paper: PaperSize{10, 10}, Center: [2]float64{0, 89}}},
		{"negative dpi", PrintSpec{Zoom: &zoom, Paper: PaperSize{10, 10}, DPI: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.spec.Validate(); !errors.Is(err, errors.ErrCodeInvalidPrintSpec) {
				t.Errorf("Validate() = %v, want INVALID_PRINT_SPEC", err)
			}
		})
	}
}

func TestZoomForScaleRoundTrip(t *testing.T) {
	for _, z := range []float64{0, 5, 12.5, 18} {
		denom := Resolution(z) / StandardPixelSize
		if got := ZoomForScale(denom, 0); !approx(got, z, 1e-9) {
			t.Errorf("ZoomForScale(%g) = %g, want %g", denom, got, z)
		}
	}
}

func TestScaleDenominatorScaleFactor(t *testing.T) {
	env := Envelope{0, 0, 2800, 2800}
	d1 := ScaleDenominator(env, MapSize{100, 100}, 1, false)
	d2 := ScaleDenominator(env, MapSize{200, 200}, 2, false)
	if !approx(d1, 100000, 1e-6) || !approx(d1, d2, 1e-6) {
		t.Errorf("denominators %g, %g", d1, d2)
	}
}
