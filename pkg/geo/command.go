package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/matzehuels/mapprint/pkg/errors"
)

const (
	// EarthRadius is the WGS84 semi-major axis used by Web Mercator.
	EarthRadius = 6378137.0

	// StandardPixelSize is the OGC standardized rendering pixel, in metres.
	StandardPixelSize = 0.00028

	// StandardDPI is the resolution at which a scale factor of 1 applies.
	StandardDPI = 0.0254 / StandardPixelSize

	// TileSize is the pixel size of a Web Mercator zoom-level tile.
	TileSize = 256

	// MaxLatitude is the Web Mercator latitude limit.
	MaxLatitude = 85.0511287798066
)

// Command is one render job: which style, how many pixels, which part of the
// map and at what scale factor.
type Command struct {
	Style       string    `json:"style"`
	Size        MapSize   `json:"size"`
	Tiles       MapSize   `json:"tiles"`
	Envelope    *Envelope `json:"envelope,omitempty"`
	ScaleFactor float64   `json:"scale_factor"`
}

// Validate checks the command's invariants and fills in a 1x1 tile grid.
func (c *Command) Validate() error {
	if c.Style == "" {
		return errors.New(errors.ErrCodeInvalidStyle, "command has no style")
	}
	if !c.Size.Valid() {
		return errors.New(errors.ErrCodeInvalidSize, "invalid size %s", c.Size)
	}
	if c.ScaleFactor <= 0 {
		return errors.New(errors.ErrCodeInvalidScale, "invalid scale factor %g", c.ScaleFactor)
	}
	if c.Tiles == (MapSize{}) {
		c.Tiles = SingleTile
	}
	if _, err := c.Size.TileSize(c.Tiles); err != nil {
		return err
	}
	if c.Envelope != nil && !c.Envelope.Valid() {
		return errors.New(errors.ErrCodeInvalidEnvelope, "envelope %s has no area", c.Envelope)
	}
	return nil
}

// FileName returns the output file name for this command.
func (c Command) FileName(renderer, ext string) string {
	return FileName(c.Style, c.Size, c.Tiles, c.ScaleFactor, renderer, ext)
}

// PaperSize is a physical size in millimetres.
type PaperSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Landscape returns the paper rotated so that it is wider than tall.
func (p PaperSize) Landscape() PaperSize {
	if p.Width >= p.Height {
		return p
	}
	return PaperSize{Width: p.Height, Height: p.Width}
}

var papers = map[string]PaperSize{
	"a0":     {841, 1189},
	"a1":     {594, 841},
	"a2":     {420, 594},
	"a3":     {297, 420},
	"a4":     {210, 297},
	"a5":     {148, 210},
	"letter": {215.9, 279.4},
	"legal":  {215.9, 355.6},
}

// ParsePaper accepts a named size ("a4", "a3-landscape", "letter") or an
// explicit "width,height" in millimetres.
func ParsePaper(s string) (PaperSize, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	landscape := false
	if base, ok := strings.CutSuffix(name, "-landscape"); ok {
		name, landscape = base, true
	}
	if p, ok := papers[name]; ok {
		if landscape {
			p = p.Landscape()
		}
		return p, nil
	}

	parts := strings.Split(name, ",")
	if len(parts) != 2 {
		return PaperSize{}, errors.New(errors.ErrCodeInvalidPrintSpec, "unknown paper size %q", s)
	}
	w, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	h, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return PaperSize{}, errors.New(errors.ErrCodeInvalidPrintSpec, "invalid paper size %q", s)
	}
	return PaperSize{Width: w, Height: h}, nil
}

// PrintSpec describes a physical print around a centre point.
// Exactly one of Zoom and ScaleDenominator must be set.
type PrintSpec struct {
	Center           orb.Point `json:"center"` // lon/lat
	Zoom             *float64  `json:"zoom,omitempty"`
	ScaleDenominator float64   `json:"scale_denominator,omitempty"`
	Paper            PaperSize `json:"paper"`
	DPI              float64   `json:"dpi,omitempty"`
	Tiles            MapSize   `json:"tiles,omitempty"`
}

// Validate checks the print parameters and applies the default DPI.
func (p *PrintSpec) Validate() error {
	if p.DPI == 0 {
		p.DPI = StandardDPI
	}
	if p.DPI < 0 {
		return errors.New(errors.ErrCodeInvalidPrintSpec, "dpi must be positive")
	}
	if p.Paper.Width <= 0 || p.Paper.Height <= 0 {
		return errors.New(errors.ErrCodeInvalidPrintSpec, "paper size must be positive")
	}
	lon, lat := p.Center[0], p.Center[1]
	if lon < -180 || lon > 180 || math.Abs(lat) > MaxLatitude {
		return errors.New(errors.ErrCodeInvalidPrintSpec, "centre %g,%g outside Web Mercator bounds", lon, lat)
	}
	switch {
	case p.Zoom != nil && p.ScaleDenominator != 0:
		return errors.New(errors.ErrCodeInvalidPrintSpec, "zoom and scale denominator are mutually exclusive")
	case p.Zoom == nil && p.ScaleDenominator == 0:
		return errors.New(errors.ErrCodeInvalidPrintSpec, "either zoom or scale denominator is required")
	case p.Zoom != nil && (*p.Zoom < 0 || *p.Zoom > 30):
		return errors.New(errors.ErrCodeInvalidPrintSpec, "zoom %g out of range [0,30]", *p.Zoom)
	case p.ScaleDenominator < 0:
		return errors.New(errors.ErrCodeInvalidPrintSpec, "scale denominator must be positive")
	}
	return nil
}

// BuildCommand converts a print spec into a render command.
//
// The pixel size is the paper size at the requested DPI and the scale factor
// is DPI relative to [StandardDPI]. In zoom mode the ground resolution is
// that of the Web Mercator zoom level; in scale mode the paper size is
// multiplied by the denominator and stretched by 1/cos(latitude).
func BuildCommand(style string, p PrintSpec) (Command, error) {
	if err := p.Validate(); err != nil {
		return Command{}, err
	}

	scale := p.DPI / StandardDPI
	size := MapSize{
		Width:  int(math.Round(p.Paper.Width / 25.4 * p.DPI)),
		Height: int(math.Round(p.Paper.Height / 25.4 * p.DPI)),
	}
	if !size.Valid() {
		return Command{}, errors.New(errors.ErrCodeInvalidPrintSpec, "paper %gx%gmm at %g dpi has no pixels",
			p.Paper.Width, p.Paper.Height, p.DPI)
	}

	var groundW, groundH float64
	if p.Zoom != nil {
		res := Resolution(*p.Zoom)
		groundW = float64(size.Width) / scale * res
		groundH = float64(size.Height) / scale * res
	} else {
		stretch := 1 / math.Cos(p.Center[1]*math.Pi/180)
		groundW = p.Paper.Width / 1000 * p.ScaleDenominator * stretch
		groundH = p.Paper.Height / 1000 * p.ScaleDenominator * stretch
	}

	c := project.WGS84.ToMercator(p.Center)
	env := NewEnvelope(c[0]-groundW/2, c[1]-groundH/2, c[0]+groundW/2, c[1]+groundH/2)

	tiles := p.Tiles
	if tiles == (MapSize{}) {
		tiles = SingleTile
	}
	cmd := Command{Style: style, Size: size, Tiles: tiles, Envelope: &env, ScaleFactor: scale}
	return cmd, cmd.Validate()
}

// Resolution returns the Web Mercator ground resolution (metres per pixel)
// at the equator for a zoom level.
func Resolution(zoom float64) float64 {
	return 2 * math.Pi * EarthRadius / (TileSize * math.Pow(2, zoom))
}

// ScaleDenominator returns the map scale denominator for an envelope
// rendered at size with the given scale factor. Geographic envelopes are in
// degrees and converted to metres at the equator.
func ScaleDenominator(env Envelope, size MapSize, scaleFactor float64, geographic bool) float64 {
	if size.Width == 0 {
		return 0
	}
	res := env.Width() / float64(size.Width)
	if geographic {
		res *= 2 * math.Pi * EarthRadius / 360
	}
	return res / StandardPixelSize * scaleFactor
}

// ZoomForScale returns the fractional zoom level whose resolution yields
// the scale denominator at latitude lat.
func ZoomForScale(denominator, lat float64) float64 {
	res := denominator * StandardPixelSize / math.Cos(lat*math.Pi/180)
	return math.Log2(2 * math.Pi * EarthRadius / (TileSize * res))
}
