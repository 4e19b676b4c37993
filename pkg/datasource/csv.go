package datasource

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/mapprint/pkg/errors"
)

// CSV reads delimited text with a header row. Geometry comes from a "wkt"
// or "geojson" column, or from x/y style coordinate columns (x/y, lon/lat,
// lng/lat, long/lat, longitude/latitude). Numeric cells become numbers.
//
// Parameters: "separator" (default ','), "headers" (comma-separated header
// names for files without a header row).
type CSV struct{}

func (CSV) Name() string { return "csv" }

var (
	xNames = []string{"x", "lon", "lng", "long", "longitude"}
	yNames = []string{"y", "lat", "latitude"}
)

func (CSV) Load(ctx context.Context, src Source) (*Dataset, error) {
	var r io.Reader = strings.NewReader(src.Inline)
	if src.Path != "" {
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeIO, err, "open %s", src.Path)
		}
		defer f.Close()
		r = f
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	if sep := src.Params.Get("separator"); sep != "" {
		if sep == `\t` {
			sep = "\t"
		}
		ru, size := utf8.DecodeRuneInString(sep)
		if size != len(sep) {
			return nil, errors.New(errors.ErrCodeDatasource, "csv separator must be one character, got %q", sep)
		}
		cr.Comma = ru
	}

	var header []string
	if h := src.Params.Get("headers"); h != "" {
		header = splitTrim(h)
	} else {
		rec, err := cr.Read()
		if err == io.EOF {
			return newDataset("csv", nil), nil
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatasource, err, "read csv header")
		}
		header = rec
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	geom := csvGeometry(header)
	if geom == nil {
		return nil, errors.New(errors.ErrCodeDatasource,
			"csv has no geometry column (want wkt, geojson, or x/y, lon/lat), got %v", header)
	}

	var features []Feature
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatasource, err, "read csv")
		}
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != len(header) {
			return nil, errors.New(errors.ErrCodeDatasource, "csv line %d: %d fields, header has %d", line, len(rec), len(header))
		}

		g, err := geom(rec)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatasource, err, "csv line %d", line)
		}
		props := make(map[string]any, len(header))
		for i, name := range header {
			props[name] = cellValue(rec[i])
		}
		features = append(features, Feature{Geometry: g, Props: props})
	}
	return newDataset("csv", features), nil
}

// csvGeometry returns the geometry extractor for a header, or nil.
func csvGeometry(header []string) func([]string) (orb.Geometry, error) {
	idx := func(names ...string) int {
		for i, h := range header {
			for _, n := range names {
				if strings.EqualFold(h, n) {
					return i
				}
			}
		}
		return -1
	}

	if i := idx("wkt"); i >= 0 {
		return func(rec []string) (orb.Geometry, error) {
			return wkt.Unmarshal(rec[i])
		}
	}
	if i := idx("geojson"); i >= 0 {
		return func(rec []string) (orb.Geometry, error) {
			g, err := geojson.UnmarshalGeometry([]byte(rec[i]))
			if err != nil {
				return nil, err
			}
			return g.Geometry(), nil
		}
	}
	xi, yi := idx(xNames...), idx(yNames...)
	if xi < 0 || yi < 0 {
		return nil
	}
	return func(rec []string) (orb.Geometry, error) {
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[xi]), 64)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatasource, err, "column %s", header[xi])
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[yi]), 64)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatasource, err, "column %s", header[yi])
		}
		return orb.Point{x, y}, nil
	}
}

func cellValue(s string) any {
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return s
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
