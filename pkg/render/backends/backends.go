// Package backends assembles the built-in renderers.
package backends

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/mapprint/pkg/render"
	"github.com/matzehuels/mapprint/pkg/render/agg"
	"github.com/matzehuels/mapprint/pkg/render/cairo"
	"github.com/matzehuels/mapprint/pkg/render/pdf"
	"github.com/matzehuels/mapprint/pkg/render/ps"
	"github.com/matzehuels/mapprint/pkg/render/svg"
)

// Default returns a registry holding agg, cairo, cairo-svg, cairo-ps and
// cairo-pdf. logger receives per-render warnings and may be nil.
func Default(logger *log.Logger) *render.Registry {
	reg := render.NewRegistry()
	reg.Register(&agg.Renderer{Logger: logger})
	reg.Register(&cairo.Renderer{Logger: logger})
	reg.Register(&svg.Renderer{Logger: logger})
	reg.Register(&ps.Renderer{Logger: logger})
	reg.Register(&pdf.Renderer{Logger: logger})
	return reg
}
