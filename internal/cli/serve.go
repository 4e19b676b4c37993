package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mapprint/pkg/cache"
	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/observability"
	"github.com/matzehuels/mapprint/pkg/pipeline"
	"github.com/matzehuels/mapprint/pkg/server"
)

const defaultAddr = ":8080"

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	configPath string
	addr       string
	stylesDir  string
	fonts      string
	plugins    string
	renderer   string
	timeout    time.Duration
	maxPixels  int
	cache      string
}

// serveCommand creates the serve command running the HTTP print service.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the renderers over HTTP",
		Long: `Serve styles from a directory over HTTP.

  GET  /render/{style}?size=800,600&bbox=...&renderer=cairo-pdf
  GET  /render/{style}?center=lon,lat&zoom=5&paper=a4&dpi=150
  POST /print   {"style": "world", "center": [lon, lat], "scale_denominator": 5e6, "paper": {...}}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := loadFileConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.applyFile(fc, cmd.Flags().Changed)
			return c.runServe(cmd.Context(), &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "TOML config file (default "+defaultConfigFile+" if present)")
	f.StringVar(&opts.addr, "addr", defaultAddr, "listen address")
	f.StringVar(&opts.stylesDir, "styles-dir", "styles", "directory of styles that requests may name")
	f.StringVar(&opts.fonts, "fonts", defaultFontDir, "font search path")
	f.StringVar(&opts.plugins, "plugins", defaultPluginDir, "datasource search path")
	f.StringVar(&opts.renderer, "renderer", pipeline.DefaultRenderer, "renderer used when a request names none")
	f.DurationVar(&opts.timeout, "timeout", server.DefaultRenderTimeout, "render timeout per request")
	f.IntVar(&opts.maxPixels, "max-pixels", server.DefaultMaxPixels, "largest image a request may ask for, in pixels")
	f.StringVar(&opts.cache, "cache", "", "cache backend: file (default), none, or a redis:// URL")

	return cmd
}

// applyFile fills options the command line did not set from fc.
func (o *serveOpts) applyFile(fc fileConfig, changed func(string) bool) {
	set := func(flag string, dst *string, v string) {
		if v != "" && !changed(flag) {
			*dst = v
		}
	}
	set("addr", &o.addr, fc.Serve.Addr)
	set("styles-dir", &o.stylesDir, fc.Serve.StylesDir)
	set("renderer", &o.renderer, fc.Serve.Renderer)
	set("fonts", &o.fonts, fc.Fonts)
	set("plugins", &o.plugins, fc.Plugins)
	set("cache", &o.cache, fc.Cache)
	if fc.Serve.Timeout.Duration > 0 && !changed("timeout") {
		o.timeout = fc.Serve.Timeout.Duration
	}
	if fc.Serve.MaxPixels > 0 && !changed("max-pixels") {
		o.maxPixels = fc.Serve.MaxPixels
	}
	o.fonts = optionalDir(o.fonts, defaultFontDir, changed("fonts") || fc.Fonts != "")
	o.plugins = optionalDir(o.plugins, defaultPluginDir, changed("plugins") || fc.Plugins != "")
}

func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	logger := loggerFromContext(ctx)

	st, err := os.Stat(opts.stylesDir)
	if err != nil || !st.IsDir() {
		return errors.New(errors.ErrCodeInvalidPath, "styles directory %s not found", opts.stylesDir)
	}
	styles, _ := filepath.Glob(filepath.Join(opts.stylesDir, "*.xml"))

	ch, err := c.newCache(ctx, opts.cache)
	if err != nil {
		return err
	}
	defer ch.Close()

	runner := pipeline.NewRunner(ch, cache.NewScopedKeyer(cache.NewDefaultKeyer(), "serve"), logger)
	if _, err := runner.Renderers.Lookup(opts.renderer); err != nil {
		return err
	}
	observability.LogHooks{Logger: logger}.Register()
	defer observability.Reset()

	srv := server.New(runner, server.Config{
		StylesDir:       opts.stylesDir,
		FontDir:         opts.fonts,
		PluginDir:       opts.plugins,
		DefaultRenderer: opts.renderer,
		RenderTimeout:   opts.timeout,
		MaxPixels:       opts.maxPixels,
	}, logger)

	printSuccess("Serving %s", StyleLink.Render(listenURL(opts.addr)))
	printKeyValue("styles", opts.stylesDir)
	printKeyValue("renderers", strings.Join(runner.Renderers.Names(), ", "))
	if len(styles) == 0 {
		printWarning("No styles in %s", opts.stylesDir)
	} else {
		name := strings.TrimSuffix(filepath.Base(styles[0]), ".xml")
		printNextStep("Try", "curl -o map.png "+listenURL(opts.addr)+"/render/"+name)
	}

	return srv.ListenAndServe(ctx, opts.addr)
}

// listenURL turns a listen address into a URL for display.
func listenURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
