package fonts

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/matzehuels/mapprint/pkg/errors"
)

func TestFallback(t *testing.T) {
	r := New()
	f, ok := r.Lookup("DejaVu Sans Book")
	if ok {
		t.Error("unknown face should report false")
	}
	if f.Name != FallbackName {
		t.Errorf("fallback = %q", f.Name)
	}
	if len(r.Bytes("")) != len(goregular.TTF) {
		t.Error("Bytes should return fallback data")
	}

	face, err := r.Face("anything", 12)
	if err != nil {
		t.Fatal(err)
	}
	defer face.Close()
	if h := face.Metrics().Height.Ceil(); h < 12 || h > 20 {
		t.Errorf("12pt line height = %d", h)
	}
}

func TestRegisterDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	write(t, filepath.Join(sub, "GoBold.TTF"), gobold.TTF)
	write(t, filepath.Join(dir, "broken.ttf"), []byte("not a font"))
	write(t, filepath.Join(dir, "readme.txt"), []byte("x"))

	r := New()
	n, err := r.RegisterDir(dir, false)
	if err != nil || n != 0 {
		t.Errorf("non-recursive = %d, %v", n, err)
	}

	n, err = r.RegisterDir(dir, true)
	if err != nil || n != 1 {
		t.Fatalf("recursive = %d, %v", n, err)
	}
	f, ok := r.Lookup("Go Bold")
	if !ok || f.Family != "Go" || f.Style != "Bold" {
		t.Errorf("Lookup(Go Bold) = %+v, %v", f, ok)
	}

	if _, err := r.RegisterDir(filepath.Join(dir, "missing"), true); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing dir = %v", err)
	}
	if err := r.RegisterFile(filepath.Join(dir, "broken.ttf")); err == nil {
		t.Error("broken font should fail")
	}
}

func TestNames(t *testing.T) {
	names := New().Names()
	if len(names) == 0 || names[0] != FallbackName {
		t.Errorf("Names() = %v", names)
	}
}

func write(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	if got := Fingerprint(""); got != "" {
		t.Errorf("no dirs = %q", got)
	}
	empty := Fingerprint(dir)
	if empty == "" || empty != Fingerprint(dir) {
		t.Fatalf("fingerprint not stable: %q", empty)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if Fingerprint(dir) != empty {
		t.Error("non-font file changed the fingerprint")
	}
	if err := os.WriteFile(filepath.Join(dir, "bold.ttf"), gobold.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	if Fingerprint(dir) == empty {
		t.Error("new font left the fingerprint unchanged")
	}
}
