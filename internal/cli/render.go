package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/observability"
	"github.com/matzehuels/mapprint/pkg/pipeline"
	"github.com/matzehuels/mapprint/pkg/render/backends"
	"github.com/matzehuels/mapprint/pkg/report"
)

const (
	defaultFontDir   = "fonts"
	defaultPluginDir = "plugins/input"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	configPath    string
	styles        []string
	outputDir     string
	fonts         string
	plugins       string
	sizes         string   // "w,h;w,h"
	envelope      string   // "minx,miny,maxx,maxy"
	scales        []string // repeatable, comma-separated
	tiles         string   // "x,y;x,y"
	renderers     map[string]*bool
	fileRenderers []string
	iterations    int
	jobs          int
	duration      bool
	tui           bool
	refresh       bool
	cache         string
	mongoURI      string
}

// renderCommand creates the render command. Each style is rendered for
// every size, envelope, scale factor, tile grid and selected renderer;
// the process exits with the number of failed renders.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{renderers: make(map[string]*bool)}
	names := backends.Default(nil).Names()

	cmd := &cobra.Command{
		Use:   "render [style.xml...]",
		Short: "Render styles to images",
		Long: `Render map styles with one or more renderers.

Output files are named <style>-<width>-<height>-[<tx>x<ty>-]<scale>-<renderer><ext>
and written to --output-dir. Styles may override sizes, extents, scale factors and
tiles with map parameters, and are skipped with status=off.`,
		Example: `  mapprint render styles/world.xml --agg --cairo-pdf --size 800,600
  mapprint render --styles a.xml --styles b.xml -s 1 -s 2 --envelope -180,-85,180,85`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := loadFileConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.applyFile(fc, cmd.Flags().Changed)
			return c.runRender(cmd.Context(), &opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "TOML config file (default "+defaultConfigFile+" if present)")
	f.StringSliceVar(&opts.styles, "styles", nil, "styles to render (also positional)")
	f.StringVar(&opts.outputDir, "output-dir", pipeline.DefaultOutputDir, "directory for output files")
	f.StringVar(&opts.fonts, "fonts", defaultFontDir, "font search path")
	f.StringVar(&opts.plugins, "plugins", defaultPluginDir, "datasource search path")
	f.StringVar(&opts.sizes, "size", "", "size of output images, w,h (several separated by ;)")
	f.StringVar(&opts.envelope, "envelope", "", "bounding box in map coordinates, minx,miny,maxx,maxy")
	f.StringArrayVarP(&opts.scales, "scale-factor", "s", []string{"1.0"}, "scale factor (repeatable)")
	f.StringVar(&opts.tiles, "tiles", "", "tile grid, x,y (several separated by ;)")
	f.IntVarP(&opts.iterations, "iterations", "i", pipeline.DefaultIterations, "number of iterations for benchmarking")
	f.IntVarP(&opts.jobs, "jobs", "j", pipeline.DefaultJobs, "renders running in parallel")
	f.BoolVarP(&opts.duration, "duration", "d", false, "output rendering duration")
	f.BoolVar(&opts.tui, "tui", false, "show an interactive progress view")
	f.BoolVar(&opts.refresh, "refresh", false, "ignore cached renders")
	f.StringVar(&opts.cache, "cache", "", "cache backend: file (default), none, or a redis:// URL")
	f.StringVar(&opts.mongoURI, "report-mongo", "", "store results in MongoDB at this URI")
	for _, name := range names {
		opts.renderers[name] = f.Bool(name, false, "render with the "+name+" renderer")
	}

	return cmd
}

// applyFile fills options the command line did not set from fc.
func (o *renderOpts) applyFile(fc fileConfig, changed func(string) bool) {
	setString := func(flag string, dst *string, v string) {
		if v != "" && !changed(flag) {
			*dst = v
		}
	}
	setInt := func(flag string, dst *int, v int) {
		if v != 0 && !changed(flag) {
			*dst = v
		}
	}

	if len(fc.Styles) > 0 && !changed("styles") {
		o.styles = fc.Styles
	}
	setString("output-dir", &o.outputDir, fc.OutputDir)
	setString("fonts", &o.fonts, fc.Fonts)
	setString("plugins", &o.plugins, fc.Plugins)
	setString("size", &o.sizes, fc.Size)
	setString("envelope", &o.envelope, fc.Envelope)
	setString("tiles", &o.tiles, fc.Tiles)
	setString("cache", &o.cache, fc.Cache)
	setString("report-mongo", &o.mongoURI, fc.ReportMongo)
	setInt("iterations", &o.iterations, fc.Iterations)
	setInt("jobs", &o.jobs, fc.Jobs)
	if fc.Duration && !changed("duration") {
		o.duration = true
	}
	if len(fc.ScaleFactor) > 0 && !changed("scale-factor") {
		o.scales = nil
		for _, f := range fc.ScaleFactor {
			o.scales = append(o.scales, strconv.FormatFloat(f, 'g', -1, 64))
		}
	}
	o.fileRenderers = fc.Renderers
	// The font and plugin defaults are optional; a file or flag naming
	// them is not.
	o.fonts = optionalDir(o.fonts, defaultFontDir, changed("fonts") || fc.Fonts != "")
	o.plugins = optionalDir(o.plugins, defaultPluginDir, changed("plugins") || fc.Plugins != "")
}

func optionalDir(dir, def string, explicit bool) string {
	if explicit || dir != def {
		return dir
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return ""
	}
	return dir
}

// selectedRenderers returns the renderer flags that were set, in canonical
// order, falling back to the config file's list.
func (o *renderOpts) selectedRenderers(names []string) []string {
	var sel []string
	for _, name := range names {
		if on := o.renderers[name]; on != nil && *on {
			sel = append(sel, name)
		}
	}
	if len(sel) == 0 {
		return o.fileRenderers
	}
	return sel
}

// config converts the options into a run configuration.
func (o *renderOpts) config(names []string) (pipeline.Config, error) {
	cfg := pipeline.Config{
		Renderers:  o.selectedRenderers(names),
		Iterations: o.iterations,
		OutputDir:  o.outputDir,
		FontDir:    o.fonts,
		PluginDir:  o.plugins,
		Jobs:       o.jobs,
		Refresh:    o.refresh,
	}
	var err error
	if o.sizes != "" {
		if cfg.Sizes, err = geo.ParseMapSizes(o.sizes); err != nil {
			return cfg, err
		}
	}
	if o.tiles != "" {
		if cfg.Tiles, err = geo.ParseMapSizes(o.tiles); err != nil {
			return cfg, err
		}
	}
	if o.envelope != "" {
		env, err := geo.ParseEnvelope(o.envelope)
		if err != nil {
			return cfg, err
		}
		cfg.Envelopes = []geo.Envelope{env}
	}
	if cfg.Scales, err = geo.ParseScaleFactors(o.scales); err != nil {
		return cfg, err
	}
	return cfg, cfg.ValidateAndSetDefaults()
}

// runRender renders the styles and reports the results. A run with
// failures returns an ExitError carrying the failure count.
func (c *CLI) runRender(ctx context.Context, opts *renderOpts, args []string) error {
	logger := loggerFromContext(ctx)

	styles := append(append([]string(nil), args...), opts.styles...)
	if len(styles) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no input styles")
	}
	names := backends.Default(nil).Names()
	cfg, err := opts.config(names)
	if err != nil {
		return err
	}

	ch, err := c.newCache(ctx, opts.cache)
	if err != nil {
		return err
	}
	defer ch.Close()

	if c.verbose {
		observability.LogHooks{Logger: logger}.Register()
		defer observability.Reset()
	}

	runID := report.NewRunID()
	logger.Debug("starting run", "run", runID, "styles", len(styles), "renderers", cfg.Renderers, "jobs", cfg.Jobs)

	var stores report.Multi
	if opts.mongoURI != "" {
		sp := newSpinnerWithContext(ctx, "Connecting to mongo...")
		sp.Start()
		m, err := report.NewMongo(ctx, opts.mongoURI, runID)
		sp.Stop()
		if err != nil {
			return err
		}
		defer m.Close(context.WithoutCancel(ctx))
		stores = append(stores, m)
	}

	runner := pipeline.NewRunner(ch, nil, logger)
	prog := newProgress(logger)

	var sum *pipeline.Summary
	if opts.tui {
		sum, err = runWithTUI(ctx, runner, cfg, styles, stores, c.Stdout, opts.duration)
		if sum != nil {
			fmt.Fprintln(c.Stdout, report.Totals(sum))
		}
	} else {
		var console report.Sink = report.NewShort(c.Stdout)
		if c.verbose {
			console = report.NewConsole(c.Stdout, opts.duration)
		}
		stores = append(report.Multi{console}, stores...)
		sum, err = runner.Run(ctx, cfg, styles, stores.Report)
	}
	if sum != nil {
		if ferr := stores.Finish(context.WithoutCancel(ctx), sum); ferr != nil {
			logger.Error("storing results failed", "err", ferr)
		}
	}
	if err != nil {
		return err
	}

	prog.done(fmt.Sprintf("Rendered %d images", sum.OK))
	if code := sum.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
