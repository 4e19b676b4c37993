package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mapprint/pkg/cache"
	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/observability"
	"github.com/matzehuels/mapprint/pkg/pipeline"
	"github.com/matzehuels/mapprint/pkg/render/rendertest"
)

func newTestServer(t *testing.T, c cache.Cache) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "basic.xml"), []byte(rendertest.Basic), 0o644); err != nil {
		t.Fatal(err)
	}
	logger := log.New(&bytes.Buffer{})
	runner := pipeline.NewRunner(c, cache.NewScopedKeyer(cache.NewDefaultKeyer(), "serve"), logger)
	srv := httptest.NewServer(New(runner, Config{StylesDir: dir}, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, buf.Bytes()
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := get(t, srv, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got map[string]string
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "ok" {
		t.Errorf("body = %s", body)
	}
	if !strings.HasPrefix(resp.Header.Get("Server"), "mapprint/") {
		t.Errorf("Server header = %q", resp.Header.Get("Server"))
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, nil)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestRenderers(t *testing.T) {
	srv := newTestServer(t, nil)
	_, body := get(t, srv, "/renderers")
	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		t.Fatal(err)
	}
	want := []string{"agg", "cairo", "cairo-svg", "cairo-ps", "cairo-pdf"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("renderers = %v, want %v", names, want)
	}
}

func TestRender(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name        string
		query       string
		contentType string
		width       int // checked for PNG responses
		height      int
	}{
		{"default renderer", "size=64,32", "image/png", 64, 32},
		{"scale factor", "size=50,40&scale-factor=2&bbox=0,0,10,10", "image/png", 100, 80},
		{"tiled", "size=64,64&tiles=2,2&renderer=cairo", "image/png", 64, 64},
		{"svg", "renderer=cairo-svg&size=100,100&bbox=0,0,10,10", "image/svg+xml", 0, 0},
		{"pdf on paper", "renderer=cairo-pdf&paper=a5&dpi=72", "application/pdf", 0, 0},
		{"postscript", "renderer=cairo-ps&size=80,60", "application/postscript", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, srv, "/render/basic?"+tt.query)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d: %s", resp.StatusCode, body)
			}
			if got := resp.Header.Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
			if resp.Header.Get("X-Cache") != "miss" {
				t.Errorf("X-Cache = %q", resp.Header.Get("X-Cache"))
			}
			if tt.width == 0 {
				return
			}
			img, err := png.Decode(bytes.NewReader(body))
			if err != nil {
				t.Fatal(err)
			}
			if b := img.Bounds(); b.Dx() != tt.width || b.Dy() != tt.height {
				t.Errorf("image is %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.width, tt.height)
			}
		})
	}
}

func TestRenderErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		path   string
		status int
		code   errors.Code
	}{
		{"unknown style", "/render/nope", http.StatusNotFound, errors.ErrCodeStyleNotFound},
		{"hidden file", "/render/.secret", http.StatusBadRequest, errors.ErrCodeInvalidStyle},
		{"bad size", "/render/basic?size=abc", http.StatusBadRequest, errors.ErrCodeInvalidSize},
		{"bad bbox", "/render/basic?bbox=1,2,3", http.StatusBadRequest, errors.ErrCodeInvalidEnvelope},
		{"unknown renderer", "/render/basic?renderer=grid", http.StatusBadRequest, errors.ErrCodeUnknownRenderer},
		{"vector tiles", "/render/basic?renderer=cairo-svg&tiles=2,2&size=64,64", http.StatusBadRequest, errors.ErrCodeUnsupported},
		{"uneven tiles", "/render/basic?tiles=3,3&size=64,64", http.StatusBadRequest, errors.ErrCodeInvalidSize},
		{"center without zoom", "/render/basic?center=5,5", http.StatusBadRequest, errors.ErrCodeInvalidPrintSpec},
		{"zero scale factor", "/render/basic?scale-factor=0", http.StatusBadRequest, errors.ErrCodeInvalidScale},
		{"huge size", "/render/basic?size=200000,200000", http.StatusBadRequest, errors.ErrCodeInvalidSize},
		{"huge scale factor", "/render/basic?size=1000,1000&scale-factor=400", http.StatusBadRequest, errors.ErrCodeInvalidSize},
		{"huge print", "/render/basic?center=0,0&zoom=3&paper=a0&dpi=20000", http.StatusBadRequest, errors.ErrCodeInvalidSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, srv, tt.path)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.status, body)
			}
			var eb errorBody
			if err := json.Unmarshal(body, &eb); err != nil {
				t.Fatalf("error body %q: %v", body, err)
			}
			if eb.Code != tt.code {
				t.Errorf("code = %s, want %s (%s)", eb.Code, tt.code, eb.Error)
			}
		})
	}
}

func TestMaxPixels(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "basic.xml"), []byte(rendertest.Basic), 0o644); err != nil {
		t.Fatal(err)
	}
	logger := log.New(&bytes.Buffer{})
	runner := pipeline.NewRunner(nil, nil, logger)
	srv := httptest.NewServer(New(runner, Config{StylesDir: dir, MaxPixels: 64 * 64}, logger).Handler())
	t.Cleanup(srv.Close)

	if resp, body := get(t, srv, "/render/basic?size=64,64"); resp.StatusCode != http.StatusOK {
		t.Errorf("64x64: status = %d: %s", resp.StatusCode, body)
	}
	resp, body := get(t, srv, "/render/basic?size=65,64")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("65x64: status = %d: %s", resp.StatusCode, body)
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		t.Fatal(err)
	}
	if eb.Code != errors.ErrCodeInvalidSize {
		t.Errorf("code = %s", eb.Code)
	}
}

func TestRenderCached(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, fc)
	const path = "/render/basic?renderer=cairo-svg&size=40,40&bbox=0,0,10,10"

	first, a := get(t, srv, path)
	second, b := get(t, srv, path)
	if first.Header.Get("X-Cache") != "miss" || second.Header.Get("X-Cache") != "hit" {
		t.Errorf("X-Cache = %q then %q", first.Header.Get("X-Cache"), second.Header.Get("X-Cache"))
	}
	if !bytes.Equal(a, b) {
		t.Error("cached response differs")
	}
}

func TestPrint(t *testing.T) {
	srv := newTestServer(t, nil)

	post := func(body string) (*http.Response, []byte) {
		resp, err := http.Post(srv.URL+"/print", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return resp, buf.Bytes()
	}

	resp, body := post(`{"style":"basic","renderer":"agg","center":[5,5],"zoom":3,"paper":{"width":50,"height":30},"dpi":72}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	img, err := png.Decode(bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	// 50x30 mm at 72 dpi
	if b := img.Bounds(); b.Dx() != 142 || b.Dy() != 85 {
		t.Errorf("image is %dx%d, want 142x85", b.Dx(), b.Dy())
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "basic-") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	bad := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{"style":`, http.StatusBadRequest},
		{"unknown field", `{"style":"basic","colour":"red"}`, http.StatusBadRequest},
		{"zoom and scale", `{"style":"basic","center":[0,0],"zoom":1,"scale_denominator":5000,"paper":{"width":10,"height":10}}`, http.StatusBadRequest},
		{"missing style", `{"style":"atlas","center":[0,0],"zoom":1,"paper":{"width":10,"height":10}}`, http.StatusNotFound},
		{"too large", `{"style":"basic","center":[0,0],"zoom":3,"paper":{"width":841,"height":1189},"dpi":20000}`, http.StatusBadRequest},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.status, body)
			}
		})
	}
}

type recordingHooks struct {
	observability.NoopServerHooks
	mu       sync.Mutex
	statuses []int
}

func (h *recordingHooks) OnResponse(_ context.Context, _, _ string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, status)
}

func TestServerHooks(t *testing.T) {
	observability.Reset()
	defer observability.Reset()
	hooks := &recordingHooks{}
	observability.SetServerHooks(hooks)

	srv := newTestServer(t, nil)
	get(t, srv, "/healthz")
	get(t, srv, "/render/missing")

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.statuses) != 2 || hooks.statuses[0] != 200 || hooks.statuses[1] != 404 {
		t.Errorf("statuses = %v", hooks.statuses)
	}
}

func TestCommandFromQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		size  geo.MapSize
		scale float64
		env   bool
	}{
		{"defaults", "", geo.MapSize{Width: 512, Height: 512}, 1, false},
		{"logical size is scaled", "size=100,50&scale-factor=2", geo.MapSize{Width: 200, Height: 100}, 2, false},
		{"dpi sets scale", "size=100,100&dpi=181.42857142857142", geo.MapSize{Width: 200, Height: 200}, 2, false},
		{"paper at dpi", "paper=a4&dpi=72", geo.MapSize{Width: 595, Height: 842}, 72 / geo.StandardDPI, false},
		{"print by zoom", "center=10,50&zoom=5&size=256,256", geo.MapSize{Width: 256, Height: 256}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			cmd, err := commandFromQuery("world", q)
			if err != nil {
				t.Fatal(err)
			}
			if cmd.Size != tt.size {
				t.Errorf("size = %s, want %s", cmd.Size, tt.size)
			}
			if d := cmd.ScaleFactor - tt.scale; d > 1e-9 || d < -1e-9 {
				t.Errorf("scale = %g, want %g", cmd.ScaleFactor, tt.scale)
			}
			if (cmd.Envelope != nil) != tt.env {
				t.Errorf("envelope = %v", cmd.Envelope)
			}
		})
	}
}
