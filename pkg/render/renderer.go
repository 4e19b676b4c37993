package render

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/matzehuels/mapprint/pkg/errors"
)

// Output is the product of one render: Image for raster renderers, Data
// for vector renderers.
type Output struct {
	Image image.Image
	Data  []byte
}

// Renderer is one backend.
type Renderer interface {
	Name() string
	// Ext is the output file extension including the dot.
	Ext() string
	ContentType() string
	// SupportsTiles reports whether the output can be composed from tiles.
	SupportsTiles() bool
	Render(ctx context.Context, scene *Scene) (Output, error)
	// Save writes out to path, replacing any existing file.
	Save(out Output, path string) error
}

// Encode returns the bytes that Save would write.
func Encode(out Output) ([]byte, error) {
	if out.Image == nil {
		return out.Data, nil
	}
	var buf bytes.Buffer
	if err := EncodePNG(&buf, out.Image); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Raster provides the file handling shared by raster backends.
type Raster struct{}

func (Raster) Ext() string         { return ".png" }
func (Raster) ContentType() string { return "image/png" }
func (Raster) SupportsTiles() bool { return true }

// Save writes out.Image as a 32-bit PNG.
func (Raster) Save(out Output, path string) error {
	if out.Image == nil {
		return errors.New(errors.ErrCodeInternal, "raster output has no image")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "Cannot open file for writing: %s", path)
	}
	if err := EncodePNG(f, out.Image); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "close %s", path)
	}
	return nil
}

// Vector provides the file handling shared by vector backends.
type Vector struct{}

func (Vector) SupportsTiles() bool { return false }

// Save writes out.Data to path.
func (Vector) Save(out Output, path string) error {
	return WriteFile(path, out.Data)
}

// WriteFile creates or truncates path and writes data.
func WriteFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "Cannot open file for writing: %s", path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "close %s", path)
	}
	return nil
}

// EncodePNG writes img as a 32-bit RGBA PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(w, img); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "encode png")
	}
	return nil
}

// Names of the built-in renderers in canonical order.
var canonicalOrder = []string{"agg", "cairo", "cairo-svg", "cairo-ps", "cairo-pdf"}

// Registry holds renderers by name. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{renderers: make(map[string]Renderer)}
}

// Register adds or replaces a renderer.
func (r *Registry) Register(rd Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[rd.Name()] = rd
}

// Lookup returns the renderer called name.
func (r *Registry) Lookup(name string) (Renderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.renderers[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownRenderer, "unknown renderer %q (available: %s)",
			name, strings.Join(r.namesLocked(), ", "))
	}
	return rd, nil
}

// Names lists the registered renderers: the built-ins in canonical order,
// then any others sorted by name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.renderers))
	seen := make(map[string]bool, len(r.renderers))
	for _, n := range canonicalOrder {
		if _, ok := r.renderers[n]; ok {
			names = append(names, n)
			seen[n] = true
		}
	}
	var extra []string
	for n := range r.renderers {
		if !seen[n] {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}
