package pipeline

import (
	"bytes"
	"context"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mapprint/pkg/cache"
	"github.com/matzehuels/mapprint/pkg/datasource"
	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/fonts"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/observability"
	"github.com/matzehuels/mapprint/pkg/render"
	"github.com/matzehuels/mapprint/pkg/render/backends"
	"github.com/matzehuels/mapprint/pkg/style"
)

// Runner executes render jobs with caching.
// Both the CLI and the print service use it.
//
// The Runner holds no per-run state: multiple goroutines can safely call
// it with different configurations.
type Runner struct {
	Cache       cache.Cache
	Keyer       cache.Keyer
	Logger      *log.Logger
	Renderers   *render.Registry
	Datasources *datasource.Registry
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:       c,
		Keyer:       keyer,
		Logger:      logger,
		Renderers:   backends.Default(logger),
		Datasources: datasource.Default(),
	}
}

// job is one size, envelope, scale, tiles and renderer combination of a
// loaded style.
type job struct {
	name     string
	hash     string
	fonts    string
	scene    *render.Scene
	renderer render.Renderer
	size     geo.MapSize // logical, before scaling
	envelope geo.Envelope
	scale    float64
	tiles    geo.MapSize
}

// Run renders every style in styles and calls report once per job as
// results arrive. A failed job is reported and the run moves on; the
// returned error is non-nil only for an invalid configuration or a
// cancelled context.
func (r *Runner) Run(ctx context.Context, cfg Config, styles []string, report func(render.Result)) (*Summary, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	renderers := make([]render.Renderer, 0, len(cfg.Renderers))
	for _, name := range cfg.Renderers {
		rd, err := r.Renderers.Lookup(name)
		if err != nil {
			return nil, err
		}
		renderers = append(renderers, rd)
	}
	reg, err := r.fontRegistry(cfg.FontDir)
	if err != nil {
		return nil, err
	}
	loader := datasource.NewLoader(r.Datasources, cfg.PluginDir, r.Logger)

	sum := &Summary{}
	var mu sync.Mutex
	emit := func(res render.Result) {
		mu.Lock()
		defer mu.Unlock()
		sum.add(res)
		if report != nil {
			report(res)
		}
	}

	var g errgroup.Group
	g.SetLimit(cfg.Jobs)
	for _, path := range styles {
		if ctx.Err() != nil {
			break
		}
		jobs, res := r.plan(ctx, cfg, path, renderers, loader, reg)
		if res != nil {
			emit(*res)
			continue
		}
		for _, j := range jobs {
			g.Go(func() error {
				emit(r.runJob(ctx, cfg, j))
				return nil
			})
		}
	}
	_ = g.Wait()
	return sum, ctx.Err()
}

// plan loads a style and expands it into jobs. A style that cannot run
// yields a single error or skipped result instead.
func (r *Runner) plan(ctx context.Context, cfg Config, path string, renderers []render.Renderer, loader *datasource.Loader, reg *fonts.Registry) ([]job, *render.Result) {
	name := style.Name(path)
	failed := func(err error) *render.Result {
		r.Logger.Error("style failed", "style", name, "err", err)
		return &render.Result{State: render.StateError, Name: name, Err: err, Reason: errors.UserMessage(err)}
	}

	m, err := style.Load(path)
	if err != nil {
		return nil, failed(err)
	}
	if !m.Parameters.Enabled() {
		r.Logger.Debug("style disabled", "style", name)
		return nil, &render.Result{State: render.StateSkipped, Name: name, Reason: "status=off"}
	}
	cfg, err = cfg.forStyle(m.Parameters)
	if err != nil {
		return nil, failed(err)
	}
	hash, err := StyleHash(path, m, cfg.PluginDir)
	if err != nil {
		return nil, failed(err)
	}
	// A style's own font directory must not leak into other styles.
	if m.FontDirectory != "" {
		if reg, err = r.fontRegistry(cfg.FontDir); err != nil {
			return nil, failed(err)
		}
	}
	scene, err := r.loadScene(ctx, m, loader, reg)
	if err != nil {
		return nil, failed(err)
	}
	fontPrint := fonts.Fingerprint(cfg.FontDir, m.FontDirectory)

	envelopes := cfg.Envelopes
	if len(envelopes) == 0 {
		env, ok := scene.ZoomAll()
		if !ok {
			return nil, failed(errors.New(errors.ErrCodeInvalidEnvelope, "style %s has no features to zoom to; set a bbox", name))
		}
		envelopes = []geo.Envelope{env}
	}

	var jobs []job
	for _, size := range cfg.Sizes {
		for _, env := range envelopes {
			for _, scale := range cfg.Scales {
				for _, tiles := range cfg.Tiles {
					for _, rd := range renderers {
						jobs = append(jobs, job{
							name:     name,
							hash:     hash,
							fonts:    fontPrint,
							scene:    scene,
							renderer: rd,
							size:     size,
							envelope: env,
							scale:    scale,
							tiles:    tiles,
						})
					}
				}
			}
		}
	}
	return jobs, nil
}

// runJob renders one job Iterations times and saves the last output.
func (r *Runner) runJob(ctx context.Context, cfg Config, j job) render.Result {
	rendered := j.size.Scale(j.scale)
	env := j.envelope.FitAspect(rendered)
	res := render.Result{
		Name:        j.name,
		Renderer:    j.renderer.Name(),
		ScaleFactor: j.scale,
		Size:        rendered,
		Tiles:       j.tiles,
		Envelope:    &env,
		Iterations:  cfg.Iterations,
	}
	fail := func(err error) render.Result {
		r.Logger.Error("render failed", "style", j.name, "renderer", res.Renderer, "size", rendered, "err", err)
		res.State = render.StateError
		res.Err = err
		res.Reason = errors.UserMessage(err)
		return res
	}

	if j.tiles.Tiled() && !j.renderer.SupportsTiles() {
		res.State = render.StateSkipped
		res.Reason = "renderer does not support tiles"
		return res
	}
	if _, err := rendered.TileSize(j.tiles); err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	rep := render.Reporter{OutputDir: cfg.OutputDir}
	key := r.Keyer.RenderKey(j.hash, cache.RenderKeyOpts{
		Renderer:    res.Renderer,
		Envelope:    env,
		Size:        rendered,
		Tiles:       j.tiles,
		ScaleFactor: j.scale,
		Fonts:       j.fonts,
	})
	if data, ok := r.lookup(ctx, key, cfg.Refresh); ok {
		saved, err := rep.ReportData(j.renderer, data, j.name, rendered, j.tiles, j.scale)
		if err != nil {
			return fail(err)
		}
		return r.complete(res, saved, 0, true)
	}

	scene := j.scene.WithView(env, rendered, j.scale)
	out, dur, err := r.render(ctx, j.name, j.renderer, scene, j.tiles, cfg.Iterations)
	if err != nil {
		return fail(err)
	}
	saved, err := rep.Report(j.renderer, out, j.name, rendered, j.tiles, j.scale)
	if err != nil {
		return fail(err)
	}
	r.store(ctx, key, out)
	return r.complete(res, saved, dur, false)
}

func (r *Runner) complete(res, saved render.Result, dur time.Duration, cached bool) render.Result {
	res.State = saved.State
	res.ImagePath = saved.ImagePath
	res.Duration = dur
	res.Cached = cached
	r.Logger.Debug("rendered", "style", res.Name, "renderer", res.Renderer, "path", res.ImagePath, "cached", cached, "duration", dur)
	return res
}

// render draws scene iterations times and returns the last output and the
// total duration.
func (r *Runner) render(ctx context.Context, name string, rd render.Renderer, scene *render.Scene, tiles geo.MapSize, iterations int) (render.Output, time.Duration, error) {
	hooks := observability.Render()
	hooks.OnRenderStart(ctx, name, rd.Name())

	var (
		out render.Output
		err error
	)
	start := time.Now()
	for i := 0; i < max(iterations, 1); i++ {
		if out, err = render.RenderTiled(ctx, rd, scene, tiles); err != nil {
			break
		}
	}
	dur := time.Since(start)
	hooks.OnRenderComplete(ctx, name, rd.Name(), dur, err)
	return out, dur, err
}

// loadScene loads the datasources of m and registers the map's font
// directory.
func (r *Runner) loadScene(ctx context.Context, m *style.Map, loader *datasource.Loader, reg *fonts.Registry) (*render.Scene, error) {
	hooks := observability.Render()
	hooks.OnLoadStart(ctx, m.Name)
	start := time.Now()

	if m.FontDirectory != "" {
		n, err := reg.RegisterDir(m.FontDirectory, true)
		if err != nil {
			r.Logger.Warn("cannot read font directory", "style", m.Name, "dir", m.FontDirectory, "err", err)
		} else {
			r.Logger.Debug("registered fonts", "style", m.Name, "dir", m.FontDirectory, "count", n)
		}
	}

	scene, err := render.LoadScene(ctx, m, loader, reg)
	layers := 0
	if scene != nil {
		layers = len(scene.Layers)
	}
	hooks.OnLoadComplete(ctx, m.Name, layers, time.Since(start), err)
	return scene, err
}

// fontRegistry returns a registry with the fonts of dir. An empty dir gives just
// the built-in fallback face.
func (r *Runner) fontRegistry(dir string) (*fonts.Registry, error) {
	reg := fonts.New()
	if dir == "" {
		return reg, nil
	}
	n, err := reg.RegisterDir(dir, true)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("registered fonts", "dir", dir, "count", n)
	return reg, nil
}

// lookup returns a cached artifact. Cache errors count as misses.
func (r *Runner) lookup(ctx context.Context, key string, refresh bool) ([]byte, bool) {
	if refresh {
		return nil, false
	}
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "render")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "render")
	return data, true
}

// store caches an encoded artifact. Failures are logged, not returned.
func (r *Runner) store(ctx context.Context, key string, out render.Output) {
	if _, off := r.Cache.(cache.NullCache); off {
		return
	}
	data, err := render.Encode(out)
	if err != nil {
		r.Logger.Warn("cannot encode artifact for cache", "err", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLRender); err != nil {
		r.Logger.Warn("cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "render", len(data))
}

// StyleHash hashes the style file at path together with the files its
// datasources read, so editing either invalidates cached renders.
// Datasource files that cannot be found are left out; loading reports them.
func StyleHash(path string, m *style.Map, pluginDir string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeIO, err, "read style %s", path)
	}
	var buf bytes.Buffer
	buf.Write(data)
	for _, l := range m.Layers {
		file := l.Datasource.Get("file")
		if file == "" {
			continue
		}
		base := m.BasePath
		if b := l.Datasource.Get("base"); b != "" {
			base = b
		}
		p, err := datasource.ResolvePath(file, base, pluginDir)
		if err != nil {
			continue
		}
		content, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		buf.WriteString(p)
		buf.Write(content)
	}
	return cache.Hash(buf.Bytes()), nil
}
