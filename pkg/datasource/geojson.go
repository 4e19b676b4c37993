package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/mapprint/pkg/errors"
)

// GeoJSON reads FeatureCollections, single Features or bare geometries.
type GeoJSON struct{}

func (GeoJSON) Name() string { return "geojson" }

func (GeoJSON) Load(ctx context.Context, src Source) (*Dataset, error) {
	data := []byte(src.Inline)
	if src.Path != "" {
		var err error
		if data, err = os.ReadFile(src.Path); err != nil {
			return nil, errors.Wrap(errors.ErrCodeIO, err, "read %s", src.Path)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatasource, err, "decode geojson")
	}

	var features []Feature
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatasource, err, "decode geojson")
		}
		features = make([]Feature, 0, len(fc.Features))
		for _, f := range fc.Features {
			features = append(features, fromGeoJSON(f))
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatasource, err, "decode geojson")
		}
		features = []Feature{fromGeoJSON(f)}
	default:
		g, err := geojson.UnmarshalGeometry(bytes.TrimSpace(data))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatasource, err, "decode geojson")
		}
		features = []Feature{{Geometry: g.Geometry()}}
	}
	return newDataset("geojson", features), nil
}

func fromGeoJSON(f *geojson.Feature) Feature {
	props := make(map[string]any, len(f.Properties)+1)
	for k, v := range f.Properties {
		props[k] = v
	}
	return Feature{Geometry: f.Geometry, Props: props}
}
