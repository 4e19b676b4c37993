// Package server exposes the renderer over HTTP.
//
// Routes:
//
//	GET  /healthz          liveness and version
//	GET  /renderers        JSON list of renderer names
//	GET  /render/{style}   render a style; the view comes from query parameters
//	POST /print            render a JSON print request
//
// Styles are files in a single directory; a request names a style by its
// file name without extension and cannot reach outside that directory.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/mapprint/pkg/buildinfo"
	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/observability"
	"github.com/matzehuels/mapprint/pkg/pipeline"
)

const (
	// DefaultRenderTimeout bounds a single render request.
	DefaultRenderTimeout = 60 * time.Second

	// DefaultMaxPixels caps the output size of a single request, about an
	// A1 sheet at 300 dpi.
	DefaultMaxPixels = 100_000_000

	// maxBodyBytes limits POST /print bodies.
	maxBodyBytes = 1 << 20

	shutdownTimeout = 10 * time.Second
)

// Config configures the print service.
type Config struct {
	// StylesDir holds the style files that requests may name.
	StylesDir string
	FontDir   string
	PluginDir string
	// DefaultRenderer is used when a request names none.
	DefaultRenderer string
	RenderTimeout   time.Duration
	// MaxPixels caps width x height of the rendered image.
	MaxPixels int
}

// Server is the HTTP print service.
type Server struct {
	runner *pipeline.Runner
	cfg    Config
	logger *log.Logger
	router chi.Router
}

// New creates a server rendering with runner.
func New(runner *pipeline.Runner, cfg Config, logger *log.Logger) *Server {
	if cfg.DefaultRenderer == "" {
		cfg.DefaultRenderer = pipeline.DefaultRenderer
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = DefaultRenderTimeout
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{runner: runner, cfg: cfg, logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(instrument)
	r.Use(middleware.Recoverer)
	r.Use(serverHeader)

	r.Get("/healthz", s.handleHealth)
	r.Get("/renderers", s.handleRenderers)
	r.Get("/render/{style}", s.handleRender)
	r.Post("/print", s.handlePrint)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr, "styles", s.cfg.StylesDir)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != http.ErrServerClosed {
		return err
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

func (s *Server) handleRenderers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Renderers.Names())
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "style")
	path, err := s.stylePath(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	cmd, err := commandFromQuery(styleName(name), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, path, cmd, q.Get("renderer"))
}

// printRequest is the body of POST /print.
type printRequest struct {
	Style    string `json:"style"`
	Renderer string `json:"renderer,omitempty"`
	geo.PrintSpec
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	var req printRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidPrintSpec, err, "decode print request"))
		return
	}
	path, err := s.stylePath(req.Style)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cmd, err := geo.BuildCommand(styleName(req.Style), req.PrintSpec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, path, cmd, req.Renderer)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, path string, cmd geo.Command, renderer string) {
	if renderer == "" {
		renderer = s.cfg.DefaultRenderer
	}
	if err := s.checkSize(cmd.Size); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RenderTimeout)
	defer cancel()

	art, err := s.runner.Render(ctx, pipeline.Request{
		StylePath: path,
		Command:   cmd,
		Renderer:  renderer,
		FontDir:   s.cfg.FontDir,
		PluginDir: s.cfg.PluginDir,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", art.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(art.Data)))
	h.Set("Content-Disposition", `inline; filename="`+art.FileName+`"`)
	h.Set("X-Envelope", art.Envelope.String())
	if art.Cached {
		h.Set("X-Cache", "hit")
	} else {
		h.Set("X-Cache", "miss")
		h.Set("X-Render-Duration", art.Duration.String())
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(art.Data); err != nil {
		s.logger.Debug("write response", "err", err)
	}
}

// checkSize rejects images larger than the configured pixel budget.
func (s *Server) checkSize(size geo.MapSize) error {
	if float64(size.Width)*float64(size.Height) > float64(s.cfg.MaxPixels) {
		return errors.New(errors.ErrCodeInvalidSize,
			"image of %dx%d pixels exceeds the limit of %d pixels", size.Width, size.Height, s.cfg.MaxPixels)
	}
	return nil
}

// stylePath maps a style name to a file in the styles directory.
func (s *Server) stylePath(name string) (string, error) {
	if err := errors.ValidateStyleName(name); err != nil {
		return "", err
	}
	file := name
	if filepath.Ext(file) != ".xml" {
		file += ".xml"
	}
	path := filepath.Join(s.cfg.StylesDir, file)
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return "", errors.New(errors.ErrCodeStyleNotFound, "style %q not found", name)
	}
	return path, nil
}

func styleName(name string) string {
	return strings.TrimSuffix(name, ".xml")
}

// =============================================================================
// Responses
// =============================================================================

type errorBody struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code"`
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsInput(err), errors.Is(err, errors.ErrCodeUnsupported):
		return http.StatusBadRequest
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("bad request", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, status, errorBody{Error: errors.UserMessage(err), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// Middleware
// =============================================================================

const requestIDHeader = "X-Request-ID"

// requestID echoes the caller's request ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// instrument reports requests to the registered server hooks.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.Server()
		start := time.Now()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, time.Since(start))
	})
}

func serverHeader(next http.Handler) http.Handler {
	header := buildinfo.ServerHeader()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", header)
		next.ServeHTTP(w, r)
	})
}
