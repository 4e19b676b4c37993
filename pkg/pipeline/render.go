package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/mapprint/pkg/cache"
	"github.com/matzehuels/mapprint/pkg/datasource"
	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/fonts"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/render"
	"github.com/matzehuels/mapprint/pkg/style"
)

// Request asks for a single rendered artifact.
type Request struct {
	// StylePath is the style file to render.
	StylePath string
	Command   geo.Command
	Renderer  string
	FontDir   string
	PluginDir string
	Refresh   bool
}

// Artifact is an encoded render.
type Artifact struct {
	Data        []byte
	ContentType string
	Ext         string
	// FileName is the name the CLI would save the artifact under.
	FileName string
	Envelope geo.Envelope
	Duration time.Duration
	Cached   bool
}

// Render renders one command and returns the encoded output. Unlike
// [Runner.Run] nothing is written to disk. The command's size is the
// rendered pixel size; a nil envelope zooms to all layers.
func (r *Runner) Render(ctx context.Context, req Request) (*Artifact, error) {
	cmd := req.Command
	if req.Renderer == "" {
		req.Renderer = DefaultRenderer
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	rd, err := r.Renderers.Lookup(req.Renderer)
	if err != nil {
		return nil, err
	}
	if cmd.Tiles.Tiled() && !rd.SupportsTiles() {
		return nil, errors.New(errors.ErrCodeUnsupported, "renderer %s does not support tiles", rd.Name())
	}

	m, err := style.Load(req.StylePath)
	if err != nil {
		return nil, err
	}
	hash, err := StyleHash(req.StylePath, m, req.PluginDir)
	if err != nil {
		return nil, err
	}

	art := &Artifact{
		ContentType: rd.ContentType(),
		Ext:         rd.Ext(),
		FileName:    cmd.FileName(rd.Name(), rd.Ext()),
	}
	keyOpts := cache.RenderKeyOpts{
		Renderer:    rd.Name(),
		Size:        cmd.Size,
		Tiles:       cmd.Tiles,
		ScaleFactor: cmd.ScaleFactor,
		Fonts:       fonts.Fingerprint(req.FontDir, m.FontDirectory),
	}
	if cmd.Envelope != nil {
		keyOpts.Envelope = cmd.Envelope.FitAspect(cmd.Size)
	}
	key := r.Keyer.RenderKey(hash, keyOpts)
	if data, ok := r.lookup(ctx, key, req.Refresh); ok {
		art.Data = data
		art.Envelope = keyOpts.Envelope
		art.Cached = true
		return art, nil
	}

	reg, err := r.fontRegistry(req.FontDir)
	if err != nil {
		return nil, err
	}
	loader := datasource.NewLoader(r.Datasources, req.PluginDir, r.Logger)
	scene, err := r.loadScene(ctx, m, loader, reg)
	if err != nil {
		return nil, err
	}

	env := keyOpts.Envelope
	if cmd.Envelope == nil {
		all, ok := scene.ZoomAll()
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidEnvelope, "style %s has no features to zoom to; set a bbox", m.Name)
		}
		env = all.FitAspect(cmd.Size)
	}

	out, dur, err := r.render(ctx, m.Name, rd, scene.WithView(env, cmd.Size, cmd.ScaleFactor), cmd.Tiles, 1)
	if err != nil {
		return nil, err
	}
	data, err := render.Encode(out)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, render.Output{Data: data})

	art.Data = data
	art.Envelope = env
	art.Duration = dur
	return art, nil
}
