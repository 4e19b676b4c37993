// Package pkg provides the core libraries for mapprint map rendering.
//
// # Overview
//
// mapprint renders map style files to raster and vector images at given
// extents, pixel sizes and scale factors, with several interchangeable
// renderers behind one interface. The pkg directory is organized into:
//
//  1. Domain logic: [geo], [style], [datasource], [fonts], [render]
//  2. Orchestration: [pipeline]
//  3. Outer surfaces: [report], [server]
//  4. Infrastructure: [cache], [errors], [observability], [buildinfo]
//
// # Architecture
//
// The typical data flow:
//
//	style XML
//	     ↓
//	[style] package (map, layers, rules, symbolizers)
//	     ↓
//	[datasource] package (GeoJSON, CSV, WKT, OSM features)
//	     ↓
//	[render] package (scene + view → agg, cairo, cairo-svg, cairo-ps, cairo-pdf)
//	     ↓
//	PNG/SVG/PS/PDF output, one [render.Result] per job
//
// # Quick Start
//
// Render one style at one size with the default renderer:
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	sum, err := runner.Run(ctx, pipeline.Config{
//	    Sizes:     []geo.MapSize{{Width: 800, Height: 600}},
//	    OutputDir: "out",
//	}, []string{"styles/world.xml"}, nil)
//
// Render a print for a page size and map scale:
//
//	cmd, _ := geo.BuildCommand("world", geo.PrintSpec{
//	    Center:           orb.Point{13.4, 52.5},
//	    ScaleDenominator: 25000,
//	    Paper:            geo.PaperSize{Width: 210, Height: 297},
//	    DPI:              300,
//	})
//	art, err := runner.Render(ctx, pipeline.Request{
//	    StylePath: "styles/world.xml",
//	    Command:   cmd,
//	    Renderer:  "cairo-pdf",
//	})
//
// # Main Packages
//
// [geo] - Map sizes, envelopes, paper sizes and render commands. Owns the
// output file naming scheme and the scale computations.
//
// [style] - The XML map description: layers, styles, rules with scale
// ranges and filters, symbolizers, colors and map parameters.
//
// [datasource] - Input plugins producing features for a layer, reprojected
// to the map's coordinate system.
//
// [fonts] - Font registry for labels, searched recursively from a directory.
//
// [render] - The renderer abstraction, scenes, tiled rendering and result
// reporting. Backends live in subpackages (agg, cairo, svg, ps, pdf).
//
// [pipeline] - Batch runs over styles × sizes × envelopes × scales × tiles ×
// renderers, and single renders for the print service. Both go through the
// render cache.
//
// [report] - Result sinks: console, compact console and MongoDB.
//
// [server] - HTTP print service on go-chi.
//
// [cache] - File, Redis and null caches with keyers and retry helpers.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...            # All tests
//	go test ./pkg/render/...     # Specific package
//
// [geo]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/geo
// [style]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/style
// [datasource]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/datasource
// [fonts]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/fonts
// [render]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/render
// [render.Result]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/render#Result
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/pipeline
// [report]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/report
// [server]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/server
// [cache]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/cache
// [errors]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/mapprint/pkg/buildinfo
package pkg
