package cache

import (
	"time"

	"github.com/matzehuels/mapprint/pkg/geo"
)

// TTLRender is how long rendered artifacts stay cached. Keys change with
// the style and data, so the TTL only bounds disk usage.
const TTLRender = 7 * 24 * time.Hour

// RenderKeyOpts is everything besides the style that determines a
// rendered artifact.
type RenderKeyOpts struct {
	Renderer    string       `json:"renderer"`
	Envelope    geo.Envelope `json:"envelope"`
	Size        geo.MapSize  `json:"size"`
	Tiles       geo.MapSize  `json:"tiles"`
	ScaleFactor float64      `json:"scale_factor"`
	// Fonts fingerprints the font files available to labels.
	Fonts string `json:"fonts,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	// RenderKey identifies a rendered artifact. styleHash covers the style
	// file and every datasource it reads.
	RenderKey(styleHash string, opts RenderKeyOpts) string
}

// DefaultKeyer hashes key inputs under a type prefix.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) RenderKey(styleHash string, opts RenderKeyOpts) string {
	return hashKey("render", styleHash, opts)
}
