package render

import (
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/geo"
)

// State is the outcome of one render job.
type State int

const (
	StateOK State = iota
	StateError
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateError:
		return "error"
	case StateSkipped:
		return "skipped"
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Result describes one render job.
type Result struct {
	State       State         `json:"state" bson:"state"`
	Name        string        `json:"name" bson:"name"`
	Renderer    string        `json:"renderer" bson:"renderer"`
	ScaleFactor float64       `json:"scale_factor" bson:"scale_factor"`
	Size        geo.MapSize   `json:"size" bson:"size"`
	Tiles       geo.MapSize   `json:"tiles" bson:"tiles"`
	Envelope    *geo.Envelope `json:"envelope,omitempty" bson:"envelope,omitempty"`
	ImagePath   string        `json:"image_path,omitempty" bson:"image_path,omitempty"`
	Duration    time.Duration `json:"duration" bson:"duration"`
	Iterations  int           `json:"iterations" bson:"iterations"`
	Cached      bool          `json:"cached,omitempty" bson:"cached,omitempty"`
	Reason      string        `json:"reason,omitempty" bson:"reason,omitempty"`
	Err         error         `json:"-" bson:"-"`
}

// Reporter saves outputs into a directory and describes them.
type Reporter struct {
	OutputDir string
}

// Report creates the output directory, saves out under the name given by
// [geo.FileName] and returns an OK result. size is the rendered pixel size.
func (rp Reporter) Report(r Renderer, out Output, name string, size, tiles geo.MapSize, scale float64) (Result, error) {
	path, err := rp.path(r, name, size, tiles, scale)
	if err != nil {
		return Result{}, err
	}
	if err := r.Save(out, path); err != nil {
		return Result{}, err
	}
	return okResult(r, name, size, tiles, scale, path), nil
}

// ReportData is like [Reporter.Report] for an already encoded artifact,
// such as one read from a cache.
func (rp Reporter) ReportData(r Renderer, data []byte, name string, size, tiles geo.MapSize, scale float64) (Result, error) {
	path, err := rp.path(r, name, size, tiles, scale)
	if err != nil {
		return Result{}, err
	}
	if err := WriteFile(path, data); err != nil {
		return Result{}, err
	}
	return okResult(r, name, size, tiles, scale, path), nil
}

func (rp Reporter) path(r Renderer, name string, size, tiles geo.MapSize, scale float64) (string, error) {
	dir := rp.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeIO, err, "create output directory %s", dir)
	}
	return filepath.Join(dir, geo.FileName(name, size, tiles, scale, r.Name(), r.Ext())), nil
}

func okResult(r Renderer, name string, size, tiles geo.MapSize, scale float64, path string) Result {
	return Result{
		State:       StateOK,
		Name:        name,
		Renderer:    r.Name(),
		ScaleFactor: scale,
		Size:        size,
		Tiles:       tiles,
		ImagePath:   path,
	}
}
