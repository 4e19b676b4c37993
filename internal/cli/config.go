package cli

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/mapprint/pkg/errors"
)

// fileConfig is the optional TOML configuration. It supplies the same
// settings as the flags; a flag given on the command line wins.
//
//	styles     = ["styles/world.xml"]
//	output_dir = "out"
//	size       = "512,512;1024,768"
//	scale_factor = [1.0, 2.0]
//	renderers  = ["agg", "cairo-pdf"]
//	cache      = "redis://localhost:6379/0"
//
//	[serve]
//	addr       = ":8080"
//	styles_dir = "styles"
//	timeout    = "30s"
type fileConfig struct {
	Styles      []string  `toml:"styles"`
	OutputDir   string    `toml:"output_dir"`
	Fonts       string    `toml:"fonts"`
	Plugins     string    `toml:"plugins"`
	Size        string    `toml:"size"`
	Envelope    string    `toml:"envelope"`
	ScaleFactor []float64 `toml:"scale_factor"`
	Tiles       string    `toml:"tiles"`
	Renderers   []string  `toml:"renderers"`
	Iterations  int       `toml:"iterations"`
	Jobs        int       `toml:"jobs"`
	Duration    bool      `toml:"duration"`
	Cache       string    `toml:"cache"`
	ReportMongo string    `toml:"report_mongo"`

	Serve serveFileConfig `toml:"serve"`
}

type serveFileConfig struct {
	Addr      string   `toml:"addr"`
	StylesDir string   `toml:"styles_dir"`
	Renderer  string   `toml:"renderer"`
	Timeout   duration `toml:"timeout"`
	MaxPixels int      `toml:"max_pixels"`
}

// duration decodes TOML strings such as "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// loadFileConfig reads path, or mapprint.toml when path is empty and the
// file exists. A missing default file yields an empty configuration.
func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return fc, nil
		}
		return fc, errors.Wrap(errors.ErrCodeFileNotFound, err, "read config %s", path)
	}
	md, err := toml.Decode(string(data), &fc)
	if err != nil {
		return fc, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fc, errors.New(errors.ErrCodeInvalidInput, "config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return fc, nil
}
