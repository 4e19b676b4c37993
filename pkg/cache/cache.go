// Package cache stores rendered artifacts so that repeated runs with the
// same style, view and renderer skip rendering.
//
// Three backends share the [Cache] interface:
//   - [FileCache] for the CLI, under the XDG cache directory
//   - [RedisCache] for shared deployments of the print service
//   - [NullCache] when caching is disabled
//
// Keys are built by a [Keyer] from a hash of the inputs; see [RenderKey].
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache is a byte store with optional expiry.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the cache named by spec: "" or "file" for a FileCache in
// dir, "none" or "off" for a NullCache, and a redis:// or rediss:// URL
// for a RedisCache.
func Open(spec, dir string) (Cache, error) {
	switch {
	case spec == "" || spec == "file":
		fc, err := NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	case spec == "none" || spec == "off":
		return NewNullCache(), nil
	case strings.HasPrefix(spec, "redis://") || strings.HasPrefix(spec, "rediss://"):
		rc, err := NewRedisCache(spec)
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	return nil, &UnknownBackendError{Spec: spec}
}

// UnknownBackendError reports a cache spec that names no backend.
type UnknownBackendError struct{ Spec string }

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown cache backend %q (want file, none or a redis:// URL)", e.Spec)
}

// NullCache never stores anything.
type NullCache struct{}

// NewNullCache returns a cache that always misses.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }

var _ Cache = NullCache{}
