package render

import (
	"context"
	"image"

	"golang.org/x/image/draw"

	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/geo"
)

// RenderTiled renders scene as a tiles grid and composes the tiles into
// one image. Each tile shows its share of the envelope at size/tiles
// pixels. A 1x1 grid renders directly. Only raster renderers support
// tiles, and the size must divide evenly.
func RenderTiled(ctx context.Context, r Renderer, scene *Scene, tiles geo.MapSize) (Output, error) {
	if tiles == (geo.MapSize{}) || tiles == geo.SingleTile {
		return r.Render(ctx, scene)
	}
	if !r.SupportsTiles() {
		return Output{}, errors.New(errors.ErrCodeUnsupported, "renderer %s does not support tiles", r.Name())
	}
	tileSize, err := scene.Size.TileSize(tiles)
	if err != nil {
		return Output{}, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, scene.Size.Width, scene.Size.Height))
	for i, env := range scene.Envelope.Split(tiles) {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		out, err := r.Render(ctx, scene.WithView(env, tileSize, scene.ScaleFactor))
		if err != nil {
			return Output{}, err
		}
		if out.Image == nil {
			return Output{}, errors.New(errors.ErrCodeRender, "renderer %s returned no image for tile %d", r.Name(), i)
		}
		col, row := i%tiles.Width, i/tiles.Width
		at := image.Pt(col*tileSize.Width, row*tileSize.Height)
		rect := image.Rectangle{Min: at, Max: at.Add(image.Pt(tileSize.Width, tileSize.Height))}
		draw.Draw(dst, rect, out.Image, out.Image.Bounds().Min, draw.Src)
	}
	return Output{Image: dst}, nil
}
