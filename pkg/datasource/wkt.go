package datasource

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/matzehuels/mapprint/pkg/errors"
)

// WKT reads one well-known-text geometry per line. Blank lines and lines
// starting with '#' are skipped. Each feature gets an "id" attribute with
// its 1-based line number.
type WKT struct{}

func (WKT) Name() string { return "wkt" }

func (WKT) Load(ctx context.Context, src Source) (*Dataset, error) {
	text := src.Inline
	if src.Path != "" {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeIO, err, "read %s", src.Path)
		}
		text = string(data)
	}

	var features []Feature
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		g, err := wkt.Unmarshal(s)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatasource, err, "line %d", line)
		}
		features = append(features, Feature{Geometry: g, Props: map[string]any{"id": float64(line)}})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "scan wkt")
	}
	return newDataset("wkt", features), nil
}
