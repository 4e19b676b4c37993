package agg_test

import (
	"context"
	"image/color"
	"testing"

	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/render"
	"github.com/matzehuels/mapprint/pkg/render/agg"
	"github.com/matzehuels/mapprint/pkg/render/rendertest"
)

var (
	white = color.NRGBA{255, 255, 255, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
	black = color.NRGBA{0, 0, 0, 255}
	red   = color.NRGBA{255, 0, 0, 255}
)

func TestRender(t *testing.T) {
	scene := rendertest.Scene(t, rendertest.Basic, rendertest.BasicEnvelope, geo.MapSize{Width: 100, Height: 100}, 1)
	out, err := agg.New().Render(context.Background(), scene)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Image == nil || out.Data != nil {
		t.Fatal("agg must produce an image")
	}
	if b := out.Image.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Fatalf("bounds = %v", b)
	}

	tests := []struct {
		name string
		x, y int
		want color.NRGBA
	}{
		{"water", 25, 50, blue},
		{"background", 75, 50, white},
		{"road", 75, 10, black},
		{"marker", 80, 80, red},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := out.Image.At(tt.x, tt.y); !rendertest.Near(got, tt.want, 8) {
				t.Errorf("pixel %d,%d = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestRenderTiledMatchesDirect(t *testing.T) {
	scene := rendertest.Scene(t, rendertest.Basic, rendertest.BasicEnvelope, geo.MapSize{Width: 100, Height: 100}, 1)
	r := agg.New()
	tiled, err := render.RenderTiled(context.Background(), r, scene, geo.MapSize{Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("RenderTiled: %v", err)
	}
	for _, p := range [][2]int{{25, 50}, {75, 50}, {75, 10}, {10, 10}} {
		want := white
		if p[0] < 50 {
			want = blue
		}
		if p[1] == 10 {
			want = black
		}
		if got := tiled.Image.At(p[0], p[1]); !rendertest.Near(got, want, 8) {
			t.Errorf("pixel %v = %v, want %v", p, got, want)
		}
	}
}

func TestRenderInvalidScene(t *testing.T) {
	scene := rendertest.Scene(t, rendertest.Basic, rendertest.BasicEnvelope, geo.MapSize{}, 1)
	if _, err := agg.New().Render(context.Background(), scene); err == nil {
		t.Fatal("expected error for empty size")
	}
}
