package server

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/pipeline"
)

// commandFromQuery builds a render command from GET /render parameters.
//
// With center, the view is a print: zoom or scale (denominator) fixes the
// ground resolution and paper plus dpi fix the pixel size. Without center,
// size is the logical pixel size, bbox the optional extent and
// scale-factor (or dpi) the rendering scale.
func commandFromQuery(style string, q url.Values) (geo.Command, error) {
	tiles := geo.SingleTile
	if v := q.Get("tiles"); v != "" {
		t, err := geo.ParseMapSize(v)
		if err != nil {
			return geo.Command{}, err
		}
		tiles = t
	}
	dpi, err := floatParam(q, "dpi", 0)
	if err != nil {
		return geo.Command{}, err
	}

	if q.Has("center") {
		spec, err := printSpecFromQuery(q, dpi)
		if err != nil {
			return geo.Command{}, err
		}
		spec.Tiles = tiles
		return geo.BuildCommand(style, spec)
	}

	size := pipeline.DefaultSize
	if v := q.Get("size"); v != "" {
		if size, err = geo.ParseMapSize(v); err != nil {
			return geo.Command{}, err
		}
	}
	scale, err := floatParam(q, "scale-factor", 1)
	if err != nil {
		return geo.Command{}, err
	}
	if dpi > 0 && !q.Has("scale-factor") {
		scale = dpi / geo.StandardDPI
	}
	if scale <= 0 || math.IsInf(scale, 0) {
		return geo.Command{}, errors.New(errors.ErrCodeInvalidScale, "invalid scale factor %g", scale)
	}

	cmd := geo.Command{Style: style, Size: size.Scale(scale), Tiles: tiles, ScaleFactor: scale}
	if v := q.Get("paper"); v != "" {
		paper, err := geo.ParsePaper(v)
		if err != nil {
			return geo.Command{}, err
		}
		d := dpi
		if d == 0 {
			d = geo.StandardDPI * scale
		}
		cmd.Size = geo.MapSize{
			Width:  int(math.Round(paper.Width / 25.4 * d)),
			Height: int(math.Round(paper.Height / 25.4 * d)),
		}
	}
	if v := q.Get("bbox"); v != "" {
		env, err := geo.ParseEnvelope(v)
		if err != nil {
			return geo.Command{}, err
		}
		cmd.Envelope = &env
	}
	return cmd, cmd.Validate()
}

// printSpecFromQuery reads center, zoom, scale and paper. Without paper,
// the size parameter is converted to millimetres at the given dpi.
func printSpecFromQuery(q url.Values, dpi float64) (geo.PrintSpec, error) {
	spec := geo.PrintSpec{DPI: dpi}
	center, err := parsePoint(q.Get("center"))
	if err != nil {
		return spec, err
	}
	spec.Center = center

	if q.Has("zoom") {
		z, err := floatParam(q, "zoom", 0)
		if err != nil {
			return spec, err
		}
		spec.Zoom = &z
	}
	if spec.ScaleDenominator, err = floatParam(q, "scale", 0); err != nil {
		return spec, err
	}

	switch {
	case q.Get("paper") != "":
		if spec.Paper, err = geo.ParsePaper(q.Get("paper")); err != nil {
			return spec, err
		}
	default:
		size := pipeline.DefaultSize
		if v := q.Get("size"); v != "" {
			if size, err = geo.ParseMapSize(v); err != nil {
				return spec, err
			}
		}
		d := dpi
		if d == 0 {
			d = geo.StandardDPI
		}
		spec.Paper = geo.PaperSize{
			Width:  float64(size.Width) / d * 25.4,
			Height: float64(size.Height) / d * 25.4,
		}
	}
	return spec, nil
}

func parsePoint(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, errors.New(errors.ErrCodeInvalidPrintSpec, "center must be lon,lat, got %q", s)
	}
	lon, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lat, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return orb.Point{}, errors.New(errors.ErrCodeInvalidPrintSpec, "center must be lon,lat, got %q", s)
	}
	return orb.Point{lon, lat}, nil
}

func floatParam(q url.Values, key string, def float64) (float64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return 0, errors.New(errors.ErrCodeInvalidInput, "invalid %s %q", key, v)
	}
	return f, nil
}
