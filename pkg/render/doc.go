// Package render draws styled maps through interchangeable backends.
//
// # Overview
//
// Rendering is split in two halves:
//
//   - A [Painter] walks a [Scene] (a loaded style plus its datasets, the
//     extent to show, the pixel size and the scale factor) and issues
//     drawing calls on a [Surface].
//   - A [Renderer] owns a Surface implementation and turns the drawing
//     into an [Output]: an image for raster backends, encoded bytes for
//     vector backends.
//
// Backends live in subpackages and are collected in canonical order by
// [backends]:
//
//	reg := backends.Default()
//	r, err := reg.Lookup("agg")
//	out, err := render.RenderTiled(ctx, r, scene, geo.MapSize{Width: 2, Height: 2})
//	res, err := render.Reporter{OutputDir: "out"}.Report(r, out, "roads", scene.Size, tiles, 2.0)
//
// # Coordinates
//
// Map coordinates map to pixels with y pointing down:
//
//	x' = (x - minx) / width  * W
//	y' = (maxy - y) / height * H
//
// Symbolizer widths, marker sizes, text sizes and offsets are multiplied by
// the scene's scale factor.
//
// [backends]: github.com/matzehuels/mapprint/pkg/render/backends
package render
