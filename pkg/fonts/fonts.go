// Package fonts indexes TrueType and OpenType fonts by face name.
//
// Faces are named the way style files refer to them: family plus style
// ("DejaVu Sans Book", "Go Regular"). The full name from the font's name
// table is registered as an alias. The embedded Go Regular font is always
// available and is returned for faces that are not registered.
package fonts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/matzehuels/mapprint/pkg/cache"
	"github.com/matzehuels/mapprint/pkg/errors"
)

// FallbackName is the face used when a requested face is unknown.
const FallbackName = "Go Regular"

// FallbackFontFamily is the CSS font-family list written by vector outputs.
const FallbackFontFamily = `'DejaVu Sans', 'Go', sans-serif`

// Font is one registered font file.
type Font struct {
	Name   string
	Family string
	Style  string
	Path   string
	Data   []byte

	parsed *opentype.Font
}

// NewFace returns a face at size points for 72 DPI, so that one point is
// one pixel. Faces are not safe for concurrent use; callers create one per
// render.
func (f *Font) NewFace(size float64) (font.Face, error) {
	face, err := opentype.NewFace(f.parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "face %s at %gpt", f.Name, size)
	}
	return face, nil
}

// Registry maps face names to fonts. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	faces    map[string]*Font
	fallback *Font
}

var (
	fallbackOnce sync.Once
	fallbackFont *Font
	fallbackErr  error
)

func goRegular() (*Font, error) {
	fallbackOnce.Do(func() {
		fallbackFont, fallbackErr = parse(goregular.TTF, "")
	})
	return fallbackFont, fallbackErr
}

// New returns a registry holding only the fallback font.
func New() *Registry {
	r := &Registry{faces: make(map[string]*Font)}
	fb, err := goRegular()
	if err != nil {
		// goregular.TTF always parses.
		panic(err)
	}
	r.fallback = fb
	r.add(fb)
	return r
}

// RegisterDir registers every .ttf and .otf file under dir and returns how
// many faces were added. Unreadable fonts are skipped; a missing directory
// is an error.
func (r *Registry) RegisterDir(dir string, recursive bool) (int, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeFileNotFound, err, "font directory %s", dir)
	}
	if !st.IsDir() {
		return 0, errors.New(errors.ErrCodeInvalidPath, "font directory %s is not a directory", dir)
	}

	n := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".ttf", ".otf":
		default:
			return nil
		}
		if err := r.RegisterFile(path); err == nil {
			n++
		}
		return nil
	})
	return n, err
}

// RegisterFile registers a single font file.
func (r *Registry) RegisterFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "read font %s", path)
	}
	f, err := parse(data, path)
	if err != nil {
		return err
	}
	r.add(f)
	return nil
}

func parse(data []byte, path string) (*Font, error) {
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse font %s", path)
	}

	var buf sfnt.Buffer
	family, _ := parsed.Name(&buf, sfnt.NameIDFamily)
	style, _ := parsed.Name(&buf, sfnt.NameIDSubfamily)
	if family == "" {
		family = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if style == "" {
		style = "Regular"
	}
	return &Font{
		Name:   family + " " + style,
		Family: family,
		Style:  style,
		Path:   path,
		Data:   data,
		parsed: parsed,
	}, nil
}

func (r *Registry) add(f *Font) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faces[f.Name] = f
	var buf sfnt.Buffer
	if full, err := f.parsed.Name(&buf, sfnt.NameIDFull); err == nil && full != "" {
		if _, taken := r.faces[full]; !taken {
			r.faces[full] = f
		}
	}
}

// Lookup returns the font for a face name. Unknown or empty names return
// the fallback font and false.
func (r *Registry) Lookup(name string) (*Font, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.faces[name]; ok {
		return f, true
	}
	return r.fallback, false
}

// Face returns a new face for name at size.
func (r *Registry) Face(name string, size float64) (font.Face, error) {
	f, _ := r.Lookup(name)
	return f.NewFace(size)
}

// Bytes returns the font file data for name.
func (r *Registry) Bytes(name string) []byte {
	f, _ := r.Lookup(name)
	return f.Data
}

// Fingerprint identifies the font files under dirs by path, size and
// modification time, so that it changes when fonts are added, removed or
// replaced. Empty and missing directories contribute only their name.
func Fingerprint(dirs ...string) string {
	var b strings.Builder
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		fmt.Fprintf(&b, "dir %s\n", dir)
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".ttf", ".otf":
			default:
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			fmt.Fprintf(&b, "%s %d %d\n", path, info.Size(), info.ModTime().UnixNano())
			return nil
		})
	}
	if b.Len() == 0 {
		return ""
	}
	return cache.Hash([]byte(b.String()))
}

// Names lists registered face names, including aliases.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.faces))
	for n := range r.faces {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
