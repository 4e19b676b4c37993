package style

import (
	"encoding/xml"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matzehuels/mapprint/pkg/errors"
)

// DefaultSRS is the spatial reference of maps that do not declare one.
const DefaultSRS = "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs"

// Map is a loaded style file.
type Map struct {
	Name          string
	SRS           string
	Background    *color.NRGBA
	FontDirectory string
	BasePath      string
	Styles        map[string]*Style
	Layers        []*Layer
	Parameters    Parameters
}

// Geographic reports whether map coordinates are longitude/latitude degrees.
func (m *Map) Geographic() bool { return IsGeographic(m.SRS) }

// Style is a named, ordered list of rules.
type Style struct {
	Name string
	// FirstMatch stops at the first matching rule (filter-mode="first").
	FirstMatch bool
	Opacity    float64
	Rules      []*Rule
}

// Rule is a filter plus the symbolizers applied to features that pass it.
type Rule struct {
	Name        string
	Filter      Expr
	Else        bool
	MinScale    float64
	MaxScale    float64
	Symbolizers []Symbolizer

	// Unsupported lists symbolizer element names that were skipped.
	Unsupported []string
}

// Active reports whether the rule applies at the given scale denominator.
// The range is [MinScale, MaxScale); zero bounds are open.
func (r *Rule) Active(denom float64) bool {
	if r.MinScale > 0 && denom < r.MinScale {
		return false
	}
	if r.MaxScale > 0 && denom >= r.MaxScale {
		return false
	}
	return true
}

// Match returns the rules that apply to a feature at the given scale.
// Else rules apply when no regular rule matched.
func (s *Style) Match(denom float64, props map[string]any) []*Rule {
	var out, elses []*Rule
	matched := false
	for _, r := range s.Rules {
		if !r.Active(denom) {
			continue
		}
		if r.Else {
			elses = append(elses, r)
			continue
		}
		if !Match(r.Filter, props) {
			continue
		}
		matched = true
		out = append(out, r)
		if s.FirstMatch {
			return out
		}
	}
	if !matched {
		return elses
	}
	return out
}

// Active reports whether any rule of the style applies at denom.
func (s *Style) Active(denom float64) bool {
	for _, r := range s.Rules {
		if r.Active(denom) {
			return true
		}
	}
	return false
}

// Layer binds a datasource to styles.
type Layer struct {
	Name       string
	SRS        string
	Enabled    bool
	Styles     []string
	Datasource Parameters
	MinScale   float64
	MaxScale   float64
}

// Active reports whether the layer is drawn at the given scale denominator.
func (l *Layer) Active(denom float64) bool {
	if !l.Enabled {
		return false
	}
	if l.MinScale > 0 && denom < l.MinScale {
		return false
	}
	if l.MaxScale > 0 && denom >= l.MaxScale {
		return false
	}
	return true
}

// Geographic reports whether the layer's data is in longitude/latitude.
func (l *Layer) Geographic() bool { return IsGeographic(l.SRS) }

// IsGeographic reports whether srs names a longitude/latitude system.
func IsGeographic(srs string) bool {
	s := strings.ToLower(srs)
	return strings.Contains(s, "epsg:4326") ||
		strings.Contains(s, "+proj=longlat") ||
		strings.Contains(s, "+proj=latlong")
}

// IsMercator reports whether srs names spherical Web Mercator.
func IsMercator(srs string) bool {
	s := strings.ToLower(srs)
	return strings.Contains(s, "epsg:3857") ||
		strings.Contains(s, "epsg:900913") ||
		strings.Contains(s, "+proj=merc")
}

// Load reads a style file. Relative paths inside the style resolve against
// the file's directory unless the map declares a base.
func Load(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeStyleNotFound, err, "style %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeIO, err, "open style %s", path)
	}
	defer f.Close()

	m, err := Parse(f, filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "load %s", path)
	}
	m.Name = Name(path)
	return m, nil
}

// Name returns the style name used in output file names: the file's base
// name without extension.
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// =============================================================================
// XML model
// =============================================================================

type xmlMap struct {
	XMLName       xml.Name        `xml:"Map"`
	SRS           string          `xml:"srs,attr"`
	Background    string          `xml:"background-color,attr"`
	FontDirectory string          `xml:"font-directory,attr"`
	Base          string          `xml:"base,attr"`
	Parameters    []xmlParam      `xml:"Parameters>Parameter"`
	Datasources   []xmlDatasource `xml:"Datasource"`
	Styles        []xmlStyle      `xml:"Style"`
	Layers        []xmlLayer      `xml:"Layer"`
}

type xmlParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlDatasource struct {
	Name   string     `xml:"name,attr"`
	Base   string     `xml:"base,attr"`
	Params []xmlParam `xml:"Parameter"`
}

type xmlStyle struct {
	Name       string    `xml:"name,attr"`
	FilterMode string    `xml:"filter-mode,attr"`
	Opacity    string    `xml:"opacity,attr"`
	Rules      []xmlRule `xml:"Rule"`
}

type xmlRule struct {
	Name        string          `xml:"name,attr"`
	Filter      *string         `xml:"Filter"`
	ElseFilter  *struct{}       `xml:"ElseFilter"`
	MinScale    string          `xml:"MinScaleDenominator"`
	MaxScale    string          `xml:"MaxScaleDenominator"`
	Symbolizers []xmlSymbolizer `xml:",any"`
}

type xmlSymbolizer struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
}

type xmlLayer struct {
	Name       string        `xml:"name,attr"`
	SRS        string        `xml:"srs,attr"`
	Status     string        `xml:"status,attr"`
	MinScale   string        `xml:"minimum-scale-denominator,attr"`
	MaxScale   string        `xml:"maximum-scale-denominator,attr"`
	StyleNames []string      `xml:"StyleName"`
	Datasource xmlDatasource `xml:"Datasource"`
}

// Parse decodes a style document. basePath is the directory relative
// datasource paths resolve against.
func Parse(r io.Reader, basePath string) (*Map, error) {
	var doc xmlMap
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidStyle, err, "parse style")
	}

	m := &Map{
		SRS:           strings.TrimSpace(doc.SRS),
		FontDirectory: doc.FontDirectory,
		BasePath:      basePath,
		Styles:        make(map[string]*Style, len(doc.Styles)),
		Parameters:    paramsOf(doc.Parameters),
	}
	if m.SRS == "" {
		m.SRS = DefaultSRS
	}
	if doc.Base != "" {
		m.BasePath = doc.Base
		if !filepath.IsAbs(doc.Base) {
			m.BasePath = filepath.Join(basePath, doc.Base)
		}
	}
	if m.FontDirectory != "" && !filepath.IsAbs(m.FontDirectory) {
		m.FontDirectory = filepath.Join(m.BasePath, m.FontDirectory)
	}
	if doc.Background != "" {
		c, err := ParseColor(doc.Background)
		if err != nil {
			return nil, err
		}
		m.Background = &c
	}

	for _, xs := range doc.Styles {
		s, err := buildStyle(xs)
		if err != nil {
			return nil, err
		}
		if _, dup := m.Styles[s.Name]; dup {
			return nil, errors.New(errors.ErrCodeInvalidStyle, "duplicate style %q", s.Name)
		}
		m.Styles[s.Name] = s
	}

	templates := make(map[string]Parameters, len(doc.Datasources))
	for _, ds := range doc.Datasources {
		if ds.Name == "" {
			return nil, errors.New(errors.ErrCodeInvalidStyle, "map-level datasource without name")
		}
		templates[ds.Name] = paramsOf(ds.Params)
	}

	for _, xl := range doc.Layers {
		l, err := buildLayer(xl, m, templates)
		if err != nil {
			return nil, err
		}
		m.Layers = append(m.Layers, l)
	}
	return m, nil
}

func buildStyle(xs xmlStyle) (*Style, error) {
	if xs.Name == "" {
		return nil, errors.New(errors.ErrCodeInvalidStyle, "style without name")
	}
	s := &Style{Name: xs.Name, Opacity: 1}
	switch xs.FilterMode {
	case "", "all":
	case "first":
		s.FirstMatch = true
	default:
		return nil, errors.New(errors.ErrCodeInvalidStyle, "style %q: unknown filter-mode %q", xs.Name, xs.FilterMode)
	}
	if xs.Opacity != "" {
		v, err := parseFloat(xs.Opacity)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidStyle, err, "style %q: opacity", xs.Name)
		}
		s.Opacity = v
	}

	for i, xr := range xs.Rules {
		r, err := buildRule(xr)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "style %q rule %d", xs.Name, i+1)
		}
		s.Rules = append(s.Rules, r)
	}
	return s, nil
}

func buildRule(xr xmlRule) (*Rule, error) {
	r := &Rule{Name: xr.Name, Else: xr.ElseFilter != nil}
	if xr.Filter != nil {
		if src := strings.TrimSpace(*xr.Filter); src != "" {
			e, err := ParseExpr(src)
			if err != nil {
				return nil, err
			}
			r.Filter = e
		}
	}

	var err error
	if r.MinScale, err = optFloat(xr.MinScale); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidStyle, err, "MinScaleDenominator")
	}
	if r.MaxScale, err = optFloat(xr.MaxScale); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidStyle, err, "MaxScaleDenominator")
	}

	for _, xs := range xr.Symbolizers {
		sym, err := buildSymbolizer(xs)
		if err != nil {
			return nil, err
		}
		if sym == nil {
			r.Unsupported = append(r.Unsupported, xs.XMLName.Local)
			continue
		}
		r.Symbolizers = append(r.Symbolizers, sym)
	}
	return r, nil
}

func buildLayer(xl xmlLayer, m *Map, templates map[string]Parameters) (*Layer, error) {
	l := &Layer{
		Name:    xl.Name,
		SRS:     strings.TrimSpace(xl.SRS),
		Enabled: !strings.EqualFold(xl.Status, "off") && xl.Status != "false" && xl.Status != "0",
		Styles:  make([]string, 0, len(xl.StyleNames)),
	}
	if l.SRS == "" {
		l.SRS = m.SRS
	}

	var err error
	if l.MinScale, err = optFloat(xl.MinScale); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidStyle, err, "layer %q: minimum-scale-denominator", xl.Name)
	}
	if l.MaxScale, err = optFloat(xl.MaxScale); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidStyle, err, "layer %q: maximum-scale-denominator", xl.Name)
	}

	for _, name := range xl.StyleNames {
		name = strings.TrimSpace(name)
		if _, ok := m.Styles[name]; !ok {
			return nil, errors.New(errors.ErrCodeInvalidStyle, "layer %q references unknown style %q", xl.Name, name)
		}
		l.Styles = append(l.Styles, name)
	}

	ds := Parameters{}
	if xl.Datasource.Base != "" {
		base, ok := templates[xl.Datasource.Base]
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidStyle, "layer %q references unknown datasource %q", xl.Name, xl.Datasource.Base)
		}
		for k, v := range base {
			ds[k] = v
		}
	}
	for k, v := range paramsOf(xl.Datasource.Params) {
		ds[k] = v
	}
	l.Datasource = ds
	return l, nil
}

func paramsOf(ps []xmlParam) Parameters {
	out := make(Parameters, len(ps))
	for _, p := range ps {
		out[p.Name] = strings.TrimSpace(p.Value)
	}
	return out
}

func optFloat(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return parseFloat(s)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
