// Package datasource loads layer features for rendering.
//
// Each layer's <Datasource> names a plugin with its "type" parameter. The
// built-in plugins read GeoJSON, CSV, inline WKT and OSM XML:
//
//	loader := datasource.NewLoader(datasource.Default(), "plugins/input", logger)
//	ds, err := loader.Load(ctx, m, layer)
//
// Datasets are memoised per (type, source, projection) for the lifetime of
// a Loader, so a style rendered at many sizes and scales reads its files
// once.
package datasource

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/style"
)

// Feature is a geometry with attributes.
type Feature struct {
	Geometry orb.Geometry
	Props    map[string]any
}

// Dataset is the loaded content of one datasource.
type Dataset struct {
	Type     string
	Features []Feature
	Bound    orb.Bound
	empty    bool
}

// Extent returns the dataset's bounding box and false when it has no
// features.
func (d *Dataset) Extent() (geo.Envelope, bool) {
	if d == nil || d.empty {
		return geo.Envelope{}, false
	}
	return geo.FromBound(d.Bound), true
}

func newDataset(typ string, features []Feature) *Dataset {
	d := &Dataset{Type: typ, Features: features, empty: true}
	for i := range features {
		f := &features[i]
		if f.Props == nil {
			f.Props = map[string]any{}
		}
		f.Props[style.GeometryTypeField] = GeometryType(f.Geometry)
		if f.Geometry == nil {
			continue
		}
		if d.empty {
			d.Bound = f.Geometry.Bound()
			d.empty = false
		} else {
			d.Bound = d.Bound.Union(f.Geometry.Bound())
		}
	}
	return d
}

// GeometryType classifies a geometry the way style filters see it:
// 1 point, 2 line, 3 polygon, 4 collection, 0 unknown.
func GeometryType(g orb.Geometry) int {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return 1
	case orb.LineString, orb.MultiLineString:
		return 2
	case orb.Polygon, orb.MultiPolygon, orb.Ring, orb.Bound:
		return 3
	case orb.Collection:
		return 4
	}
	return 0
}

// Source is what a plugin reads: either a resolved file or inline content.
type Source struct {
	Path   string
	Inline string
	Params style.Parameters
}

// Plugin reads one datasource type.
type Plugin interface {
	Name() string
	Load(ctx context.Context, src Source) (*Dataset, error)
}

// Registry maps datasource type names to plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Default returns a registry with the built-in plugins.
func Default() *Registry {
	r := NewRegistry()
	r.Register(GeoJSON{})
	r.Register(CSV{})
	r.Register(WKT{})
	r.Register(OSM{})
	return r
}

// Register adds or replaces a plugin.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name()] = p
}

// Lookup returns the plugin for a type.
func (r *Registry) Lookup(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownPlugin,
			"could not create datasource for type: '%s' (available: %s)", name, strings.Join(r.namesLocked(), ", "))
	}
	return p, nil
}

// Names lists registered types in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Loader resolves, loads, projects and memoises layer datasources.
// It is safe for concurrent use.
type Loader struct {
	Registry  *Registry
	PluginDir string
	Logger    *log.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	once sync.Once
	ds   *Dataset
	err  error
}

// NewLoader creates a loader. pluginDir is searched for datasource files
// not found next to the style; it may be empty.
func NewLoader(reg *Registry, pluginDir string, logger *log.Logger) *Loader {
	if reg == nil {
		reg = Default()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{
		Registry:  reg,
		PluginDir: pluginDir,
		Logger:    logger,
		entries:   make(map[string]*entry),
	}
}

// Load returns the features of a layer in the map's coordinate system.
func (l *Loader) Load(ctx context.Context, m *style.Map, layer *style.Layer) (*Dataset, error) {
	params := layer.Datasource
	typ := params.Get("type")
	if typ == "" {
		return nil, errors.New(errors.ErrCodeDatasource, "layer %q: datasource has no type", layer.Name)
	}
	plugin, err := l.Registry.Lookup(typ)
	if err != nil {
		return nil, err
	}

	src := Source{Inline: params.Get("inline"), Params: params}
	if src.Inline == "" {
		file := params.Get("file")
		if file == "" {
			return nil, errors.New(errors.ErrCodeDatasource, "layer %q: %s datasource needs 'file' or 'inline'", layer.Name, typ)
		}
		base := m.BasePath
		if b := params.Get("base"); b != "" {
			base = b
		}
		if src.Path, err = ResolvePath(file, base, l.PluginDir); err != nil {
			return nil, err
		}
	}

	toMercator := layer.Geographic() && !m.Geographic()
	key := typ + "\x00" + src.Path + "\x00" + src.Inline
	if toMercator {
		key += "\x00merc"
	}

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	l.mu.Unlock()

	e.once.Do(func() {
		l.Logger.Debug("loading datasource", "layer", layer.Name, "type", typ, "file", src.Path)
		ds, err := plugin.Load(ctx, src)
		if err != nil {
			e.err = errors.Wrap(errors.ErrCodeDatasource, err, "layer %q", layer.Name)
			return
		}
		if toMercator {
			ds = ToMercator(ds)
		}
		l.Logger.Debug("loaded datasource", "layer", layer.Name, "features", len(ds.Features))
		e.ds = ds
	})
	if e.err != nil && ctx.Err() != nil {
		// A cancelled load is not memoised.
		l.mu.Lock()
		delete(l.entries, key)
		l.mu.Unlock()
	}
	return e.ds, e.err
}

// ToMercator returns a copy of ds with longitude/latitude geometries
// projected to Web Mercator. Latitudes are clamped to the Mercator limit.
func ToMercator(ds *Dataset) *Dataset {
	features := make([]Feature, len(ds.Features))
	for i, f := range ds.Features {
		features[i] = f
		if f.Geometry == nil {
			continue
		}
		g := orb.Clone(f.Geometry)
		g = project.Geometry(clampLat(g), project.WGS84.ToMercator)
		features[i].Geometry = g
	}
	return newDataset(ds.Type, features)
}

func clampLat(g orb.Geometry) orb.Geometry {
	clamp := func(p orb.Point) orb.Point {
		if p[1] > geo.MaxLatitude {
			p[1] = geo.MaxLatitude
		} else if p[1] < -geo.MaxLatitude {
			p[1] = -geo.MaxLatitude
		}
		return p
	}
	return mapPoints(g, clamp)
}

// mapPoints rewrites every point of g in place and returns it.
func mapPoints(g orb.Geometry, fn func(orb.Point) orb.Point) orb.Geometry {
	switch g := g.(type) {
	case orb.Point:
		return fn(g)
	case orb.MultiPoint:
		for i := range g {
			g[i] = fn(g[i])
		}
	case orb.LineString:
		for i := range g {
			g[i] = fn(g[i])
		}
	case orb.Ring:
		for i := range g {
			g[i] = fn(g[i])
		}
	case orb.MultiLineString:
		for i := range g {
			mapPoints(g[i], fn)
		}
	case orb.Polygon:
		for i := range g {
			mapPoints(g[i], fn)
		}
	case orb.MultiPolygon:
		for i := range g {
			mapPoints(g[i], fn)
		}
	case orb.Collection:
		for i := range g {
			g[i] = mapPoints(g[i], fn)
		}
	}
	return g
}
