package style

import (
	"strconv"
	"strings"

	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/geo"
)

// Parameters is a string key/value list, used for map-level render settings
// and datasource configuration.
type Parameters map[string]string

// Get returns the trimmed value for key, or "".
func (p Parameters) Get(key string) string {
	return strings.TrimSpace(p[key])
}

// Has reports whether key is set to a non-empty value.
func (p Parameters) Has(key string) bool {
	return p.Get(key) != ""
}

// Bool parses a boolean value ("true", "yes", "on", "1"); def when unset.
func (p Parameters) Bool(key string, def bool) bool {
	switch strings.ToLower(p.Get(key)) {
	case "":
		return def
	case "true", "yes", "on", "1":
		return true
	}
	return false
}

// Float parses a number; def when unset.
func (p Parameters) Float(key string, def float64) (float64, error) {
	v := p.Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidStyle, err, "parameter %s", key)
	}
	return f, nil
}

// Enabled is false when the "status" parameter is "off".
func (p Parameters) Enabled() bool {
	return !strings.EqualFold(p.Get("status"), "off")
}

// Sizes returns the "sizes" parameter ("512,512;1024,768"), or nil.
func (p Parameters) Sizes() ([]geo.MapSize, error) {
	if !p.Has("sizes") {
		return nil, nil
	}
	return geo.ParseMapSizes(p.Get("sizes"))
}

// Tiles returns the "tiles" parameter, a list like "sizes", or nil.
func (p Parameters) Tiles() ([]geo.MapSize, error) {
	if !p.Has("tiles") {
		return nil, nil
	}
	return geo.ParseMapSizes(p.Get("tiles"))
}

// Envelopes returns the ';'-separated "bbox" parameter, or nil.
func (p Parameters) Envelopes() ([]geo.Envelope, error) {
	if !p.Has("bbox") {
		return nil, nil
	}
	var out []geo.Envelope
	for _, part := range strings.Split(p.Get("bbox"), ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		env, err := geo.ParseEnvelope(part)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// Scales returns the comma-separated "scales" parameter, or nil.
func (p Parameters) Scales() ([]float64, error) {
	if !p.Has("scales") {
		return nil, nil
	}
	return geo.ParseScaleFactors([]string{p.Get("scales")})
}
