// Package cli implements the mapprint command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mapprint/pkg/buildinfo"
	"github.com/matzehuels/mapprint/pkg/cache"
	"github.com/matzehuels/mapprint/pkg/errors"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "mapprint"

	// defaultConfigFile is read from the working directory when --config
	// is not given.
	defaultConfigFile = appName + ".toml"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Stdout receives reports and command output.
	Stdout io.Writer

	verbose  bool
	logLevel string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Stdout: os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "mapprint renders map styles to images",
		Long: `mapprint renders map style files to PNG, SVG, PostScript and PDF at
given extents, sizes and scale factors, and serves the same renderers over HTTP.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.configureLogging(cmd.Flags().Changed("log")); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(withLogger(ctx, c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "verbose output and debug logging")
	root.PersistentFlags().StringVar(&c.logLevel, "log", "info", "log level (debug, info, warn, error, none)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// configureLogging applies --log, or --verbose when --log was not given.
func (c *CLI) configureLogging(explicit bool) error {
	if !explicit && c.verbose {
		c.SetLogLevel(LogDebug)
		return nil
	}
	level, err := parseLogLevel(c.logLevel)
	if err != nil {
		return err
	}
	c.SetLogLevel(level)
	return nil
}

// =============================================================================
// Exit Codes
// =============================================================================

// ExitError carries a process exit status for a run whose results were
// already reported.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// =============================================================================
// Cache Factory
// =============================================================================

// newCache opens the cache named by spec ("", "file", "none" or a redis
// URL). The file cache lives in the XDG cache directory; without one,
// rendering continues uncached.
func (c *CLI) newCache(ctx context.Context, spec string) (cache.Cache, error) {
	dir, err := cacheDir()
	if err != nil && (spec == "" || spec == "file") {
		c.Logger.Warn("no cache directory, caching disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	ch, err := cache.Open(spec, dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open cache")
	}
	if rc, ok := ch.(*cache.RedisCache); ok {
		sp := newSpinnerWithContext(ctx, "Connecting to redis...")
		sp.Start()
		err := rc.Ping(ctx)
		sp.Stop()
		if err != nil {
			_ = rc.Close()
			return nil, errors.Wrap(errors.ErrCodeIO, err, "redis cache unavailable")
		}
	}
	return ch, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/mapprint/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
