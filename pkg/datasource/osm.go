package datasource

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmxml"

	"github.com/matzehuels/mapprint/pkg/errors"
)

// OSM reads OpenStreetMap XML. Tagged nodes become points; ways become
// lines, or polygons when closed and tagged as areas. Relations are
// ignored. Feature attributes are the OSM tags plus "osm_id".
type OSM struct{}

func (OSM) Name() string { return "osm" }

func (OSM) Load(ctx context.Context, src Source) (*Dataset, error) {
	var r io.Reader = strings.NewReader(src.Inline)
	if src.Path != "" {
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeIO, err, "open %s", src.Path)
		}
		defer f.Close()
		r = f
	}

	scanner := osmxml.New(ctx, r)
	defer scanner.Close()

	coords := make(map[osm.NodeID]orb.Point)
	var points []Feature
	var ways []*osm.Way
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			coords[o.ID] = o.Point()
			if len(o.Tags) > 0 {
				points = append(points, Feature{Geometry: o.Point(), Props: tagProps(o.Tags, int64(o.ID))})
			}
		case *osm.Way:
			ways = append(ways, o)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatasource, err, "scan osm xml")
	}

	features := points
	for _, w := range ways {
		ls := make(orb.LineString, 0, len(w.Nodes))
		for _, wn := range w.Nodes {
			p, ok := coords[wn.ID]
			if !ok {
				if wn.Lat == 0 && wn.Lon == 0 {
					continue
				}
				p = orb.Point{wn.Lon, wn.Lat}
			}
			ls = append(ls, p)
		}
		if len(ls) < 2 {
			continue
		}

		var g orb.Geometry = ls
		if isArea(w, ls) {
			g = orb.Polygon{orb.Ring(ls)}
		}
		features = append(features, Feature{Geometry: g, Props: tagProps(w.Tags, int64(w.ID))})
	}
	return newDataset("osm", features), nil
}

func isArea(w *osm.Way, ls orb.LineString) bool {
	if len(ls) < 4 || !ls[0].Equal(ls[len(ls)-1]) {
		return false
	}
	if v := w.Tags.Find("area"); v != "" {
		return v == "yes"
	}
	return w.Tags.HasTag("building") || w.Tags.HasTag("landuse") ||
		w.Tags.HasTag("natural") || w.Tags.HasTag("leisure") ||
		w.Tags.HasTag("amenity")
}

func tagProps(tags osm.Tags, id int64) map[string]any {
	props := make(map[string]any, len(tags)+2)
	for _, t := range tags {
		props[t.Key] = t.Value
	}
	props["osm_id"] = float64(id)
	return props
}
