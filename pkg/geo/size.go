package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/matzehuels/mapprint/pkg/errors"
)

// MapSize is a width/height pair in pixels (or tiles).
type MapSize struct {
	Width  int `json:"width" toml:"width" bson:"width"`
	Height int `json:"height" toml:"height" bson:"height"`
}

// SingleTile is the tile grid of an untiled render.
var SingleTile = MapSize{Width: 1, Height: 1}

// Valid reports whether both dimensions are positive.
func (s MapSize) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// String formats the size as "WxH".
func (s MapSize) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Scale multiplies both dimensions by f, rounding to the nearest pixel.
func (s MapSize) Scale(f float64) MapSize {
	return MapSize{
		Width:  int(math.Round(float64(s.Width) * f)),
		Height: int(math.Round(float64(s.Height) * f)),
	}
}

// Tiled reports whether the grid has more than one tile.
func (s MapSize) Tiled() bool {
	return s.Width > 1 || s.Height > 1
}

// TileSize divides s into a tiles grid. Both dimensions must divide evenly.
func (s MapSize) TileSize(tiles MapSize) (MapSize, error) {
	if !tiles.Valid() {
		return MapSize{}, errors.New(errors.ErrCodeInvalidSize, "invalid tile grid %s", tiles)
	}
	if s.Width%tiles.Width != 0 || s.Height%tiles.Height != 0 {
		return MapSize{}, errors.New(errors.ErrCodeInvalidSize,
			"size %s is not divisible into %s tiles", s, tiles)
	}
	return MapSize{Width: s.Width / tiles.Width, Height: s.Height / tiles.Height}, nil
}

// ParseMapSize parses a single "w,h" or "wxh" pair.
func ParseMapSize(s string) (MapSize, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == 'x' || r == 'X' || unicode.IsSpace(r)
	})
	if len(parts) != 2 {
		return MapSize{}, errors.New(errors.ErrCodeInvalidSize, "invalid size %q (want width,height)", s)
	}

	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return MapSize{}, errors.New(errors.ErrCodeInvalidSize, "invalid size %q (not an integer)", s)
	}

	size := MapSize{Width: w, Height: h}
	if !size.Valid() {
		return MapSize{}, errors.New(errors.ErrCodeInvalidSize, "invalid size %q (must be positive)", s)
	}
	return size, nil
}

// ParseMapSizes parses a ';'-separated list of sizes, e.g. "512,512;1024,768".
func ParseMapSizes(s string) ([]MapSize, error) {
	var sizes []MapSize
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		size, err := ParseMapSize(part)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
	}
	if len(sizes) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidSize, "no sizes in %q", s)
	}
	return sizes, nil
}

// ParseScaleFactors parses scale factors given as separate values or as
// comma-separated lists ("1.0,2.0").
func ParseScaleFactors(values []string) ([]float64, error) {
	var scales []float64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			f, err := strconv.ParseFloat(part, 64)
			if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
				return nil, errors.New(errors.ErrCodeInvalidScale, "invalid scale factor %q", part)
			}
			scales = append(scales, f)
		}
	}
	return scales, nil
}
