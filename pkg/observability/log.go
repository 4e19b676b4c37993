package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks implements every hook interface by writing debug records to a
// logger. The CLI registers it in verbose mode.
type LogHooks struct {
	Logger *log.Logger
}

func (h LogHooks) OnLoadStart(_ context.Context, style string) {
	h.Logger.Debug("loading style", "style", style)
}

func (h LogHooks) OnLoadComplete(_ context.Context, style string, layers int, d time.Duration, err error) {
	if err != nil {
		h.Logger.Debug("style load failed", "style", style, "err", err)
		return
	}
	h.Logger.Debug("style loaded", "style", style, "layers", layers, "duration", d)
}

func (h LogHooks) OnRenderStart(_ context.Context, style, renderer string) {
	h.Logger.Debug("render start", "style", style, "renderer", renderer)
}

func (h LogHooks) OnRenderComplete(_ context.Context, style, renderer string, d time.Duration, err error) {
	if err != nil {
		h.Logger.Debug("render failed", "style", style, "renderer", renderer, "err", err)
		return
	}
	h.Logger.Debug("render done", "style", style, "renderer", renderer, "duration", d)
}

func (h LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.Logger.Debug("cache hit", "type", keyType)
}

func (h LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.Logger.Debug("cache miss", "type", keyType)
}

func (h LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.Logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h LogHooks) OnRequest(_ context.Context, method, path string) {
	h.Logger.Debug("request", "method", method, "path", path)
}

func (h LogHooks) OnResponse(_ context.Context, method, path string, status int, d time.Duration) {
	h.Logger.Info("response", "method", method, "path", path, "status", status, "duration", d)
}

// Register installs h for all hook categories.
func (h LogHooks) Register() {
	SetRenderHooks(h)
	SetCacheHooks(h)
	SetServerHooks(h)
}

var (
	_ RenderHooks = LogHooks{}
	_ CacheHooks  = LogHooks{}
	_ ServerHooks = LogHooks{}
)
