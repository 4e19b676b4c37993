package render

import (
	"context"

	"github.com/matzehuels/mapprint/pkg/datasource"
	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/fonts"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/style"
)

// LayerData pairs a layer with its loaded features.
type LayerData struct {
	Layer *style.Layer
	Data  *datasource.Dataset
}

// Scene is everything a renderer needs for one image.
type Scene struct {
	Map         *style.Map
	Layers      []LayerData
	Fonts       *fonts.Registry
	Envelope    geo.Envelope
	Size        geo.MapSize // pixels
	ScaleFactor float64
}

// LoadScene loads the datasets of all enabled layers of m. The view
// (envelope, size and scale factor) is set with [Scene.WithView].
func LoadScene(ctx context.Context, m *style.Map, loader *datasource.Loader, reg *fonts.Registry) (*Scene, error) {
	if reg == nil {
		reg = fonts.New()
	}
	s := &Scene{Map: m, Fonts: reg, ScaleFactor: 1}
	for _, l := range m.Layers {
		if !l.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := loader.Load(ctx, m, l)
		if err != nil {
			return nil, err
		}
		s.Layers = append(s.Layers, LayerData{Layer: l, Data: ds})
	}
	return s, nil
}

// ZoomAll returns the union of the layer extents, or false when no layer
// has features.
func (s *Scene) ZoomAll() (geo.Envelope, bool) {
	var env geo.Envelope
	found := false
	for _, ld := range s.Layers {
		e, ok := ld.Data.Extent()
		if !ok {
			continue
		}
		if !found {
			env, found = e, true
			continue
		}
		env = env.Union(e)
	}
	return env, found
}

// WithView returns a copy of the scene showing env at size pixels.
func (s *Scene) WithView(env geo.Envelope, size geo.MapSize, scaleFactor float64) *Scene {
	c := *s
	c.Envelope = env
	c.Size = size
	c.ScaleFactor = scaleFactor
	return &c
}

// Validate checks that the view is drawable.
func (s *Scene) Validate() error {
	if s.Map == nil {
		return errors.New(errors.ErrCodeInternal, "scene has no map")
	}
	if s.Fonts == nil {
		return errors.New(errors.ErrCodeInternal, "scene has no font registry")
	}
	if !s.Size.Valid() {
		return errors.New(errors.ErrCodeInvalidSize, "invalid size %s", s.Size)
	}
	if !s.Envelope.Valid() {
		return errors.New(errors.ErrCodeInvalidEnvelope, "envelope %s has no area", s.Envelope)
	}
	if s.ScaleFactor <= 0 {
		return errors.New(errors.ErrCodeInvalidScale, "invalid scale factor %g", s.ScaleFactor)
	}
	return nil
}

// Denominator returns the scale denominator of the current view.
func (s *Scene) Denominator() float64 {
	return geo.ScaleDenominator(s.Envelope, s.Size, s.ScaleFactor, s.Map.Geographic())
}
