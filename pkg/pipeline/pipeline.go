// Package pipeline runs render jobs for a set of style files.
//
// A run expands every style into the cross product of sizes, envelopes,
// scale factors, tile grids and renderers, renders each combination and
// reports one [render.Result] per job. The CLI and the print service share
// the same [Runner], so caching and instrumentation behave identically.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	cfg := pipeline.Config{
//	    Renderers: []string{"agg", "cairo-svg"},
//	    Scales:    []float64{1, 2},
//	    OutputDir: "out",
//	}
//	sum, err := runner.Run(ctx, cfg, []string{"styles/world.xml"}, printResult)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.Exit(sum.ExitCode())
//
// Styles may override the sizes, envelopes, scales and tiles of a run with
// map-level parameters (sizes, bbox, scales, tiles), and opt out entirely
// with status=off.
package pipeline

import (
	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/render"
	"github.com/matzehuels/mapprint/pkg/style"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultIterations is how often each job renders. Only the last
	// output is saved; the duration covers all iterations.
	DefaultIterations = 1

	// DefaultRenderer is used when no renderer is selected.
	DefaultRenderer = "agg"

	// DefaultOutputDir is where images go when no directory is given.
	DefaultOutputDir = "./"

	// DefaultJobs is the number of jobs rendered concurrently.
	DefaultJobs = 1

	// MaxExitCode caps the failure count used as process exit status.
	// Larger codes collide with signal exits.
	MaxExitCode = 125
)

// DefaultSize is the map size used when neither the run nor the style
// names one.
var DefaultSize = geo.MapSize{Width: 512, Height: 512}

// =============================================================================
// Config
// =============================================================================

// Config holds the defaults of a run. Style parameters override Sizes,
// Envelopes, Scales and Tiles per style.
type Config struct {
	Sizes      []geo.MapSize  `json:"sizes,omitempty"`
	Envelopes  []geo.Envelope `json:"envelopes,omitempty"`
	Scales     []float64      `json:"scales,omitempty"`
	Tiles      []geo.MapSize  `json:"tiles,omitempty"`
	Iterations int            `json:"iterations,omitempty"`
	Renderers  []string       `json:"renderers,omitempty"`
	OutputDir  string         `json:"output_dir,omitempty"`
	FontDir    string         `json:"font_dir,omitempty"`
	PluginDir  string         `json:"plugin_dir,omitempty"`
	Jobs       int            `json:"jobs,omitempty"`

	// Refresh bypasses cached renders. Fresh renders are still cached.
	Refresh bool `json:"refresh,omitempty"`
}

// ValidateAndSetDefaults checks the configuration and fills in defaults.
func (c *Config) ValidateAndSetDefaults() error {
	if len(c.Sizes) == 0 {
		c.Sizes = []geo.MapSize{DefaultSize}
	}
	if len(c.Scales) == 0 {
		c.Scales = []float64{1.0}
	}
	if len(c.Tiles) == 0 {
		c.Tiles = []geo.MapSize{geo.SingleTile}
	}
	if len(c.Renderers) == 0 {
		c.Renderers = []string{DefaultRenderer}
	}
	if c.Iterations == 0 {
		c.Iterations = DefaultIterations
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Jobs <= 0 {
		c.Jobs = DefaultJobs
	}

	if c.Iterations < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "iterations must be positive, got %d", c.Iterations)
	}
	for _, s := range c.Sizes {
		if !s.Valid() {
			return errors.New(errors.ErrCodeInvalidSize, "invalid size %s", s)
		}
	}
	for _, t := range c.Tiles {
		if !t.Valid() {
			return errors.New(errors.ErrCodeInvalidSize, "invalid tile grid %s", t)
		}
	}
	for _, f := range c.Scales {
		if f <= 0 {
			return errors.New(errors.ErrCodeInvalidScale, "invalid scale factor %g", f)
		}
	}
	for _, e := range c.Envelopes {
		if !e.Valid() {
			return errors.New(errors.ErrCodeInvalidEnvelope, "envelope %s has no area", e)
		}
	}
	return nil
}

// forStyle returns the configuration for one style: its parameters
// replace the run's sizes, envelopes, scales and tiles.
func (c Config) forStyle(p style.Parameters) (Config, error) {
	sizes, err := p.Sizes()
	if err != nil {
		return c, err
	}
	if sizes != nil {
		c.Sizes = sizes
	}
	envs, err := p.Envelopes()
	if err != nil {
		return c, err
	}
	if envs != nil {
		c.Envelopes = envs
	}
	scales, err := p.Scales()
	if err != nil {
		return c, err
	}
	if scales != nil {
		c.Scales = scales
	}
	tiles, err := p.Tiles()
	if err != nil {
		return c, err
	}
	if tiles != nil {
		c.Tiles = tiles
	}
	return c, nil
}

// =============================================================================
// Summary
// =============================================================================

// Summary collects the results of a run.
type Summary struct {
	Results []render.Result
	OK      int
	Failed  int
	Skipped int
	Cached  int
}

func (s *Summary) add(r render.Result) {
	s.Results = append(s.Results, r)
	switch r.State {
	case render.StateOK:
		s.OK++
		if r.Cached {
			s.Cached++
		}
	case render.StateError:
		s.Failed++
	case render.StateSkipped:
		s.Skipped++
	}
}

// Failures returns the failed results in run order.
func (s *Summary) Failures() []render.Result {
	var out []render.Result
	for _, r := range s.Results {
		if r.State == render.StateError {
			out = append(out, r)
		}
	}
	return out
}

// ExitCode is the number of failed jobs, capped at [MaxExitCode].
func (s *Summary) ExitCode() int {
	return min(s.Failed, MaxExitCode)
}
