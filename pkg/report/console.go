package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/mapprint/pkg/pipeline"
	"github.com/matzehuels/mapprint/pkg/render"
)

var (
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorWhite  = lipgloss.Color("255")
	colorDim    = lipgloss.Color("240")
	colorCyan   = lipgloss.Color("36")

	styleOK      = lipgloss.NewStyle().Foreground(colorGreen)
	styleError   = lipgloss.NewStyle().Foreground(colorRed)
	styleSkipped = lipgloss.NewStyle().Foreground(colorYellow)
	styleName    = lipgloss.NewStyle().Foreground(colorWhite)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
)

const (
	iconOK      = "✓"
	iconError   = "✗"
	iconSkipped = "-"
	iconArrow   = "→"
	iconCached  = "cached"
)

func icon(s render.State) string {
	switch s {
	case render.StateOK:
		return styleOK.Render(iconOK)
	case render.StateError:
		return styleError.Render(iconError)
	}
	return styleSkipped.Render(iconSkipped)
}

// Console prints one line per result.
type Console struct {
	w io.Writer
	// Durations adds the render time to each line.
	Durations bool
}

// NewConsole creates a verbose console report.
func NewConsole(w io.Writer, durations bool) *Console {
	return &Console{w: w, Durations: durations}
}

func (c *Console) Report(r render.Result) {
	fmt.Fprintln(c.w, Line(r, c.Durations))
}

func (c *Console) Finish(_ context.Context, sum *pipeline.Summary) error {
	fmt.Fprintln(c.w, Totals(sum))
	return nil
}

// Line formats a result as "✓ name renderer 512x512 x1.0 → path".
func Line(r render.Result, durations bool) string {
	parts := []string{icon(r.State), styleName.Render(r.Name)}
	if r.Renderer != "" {
		parts = append(parts,
			styleDim.Render(r.Renderer),
			styleDim.Render(r.Size.String()),
			styleDim.Render(fmt.Sprintf("x%.1f", r.ScaleFactor)))
		if r.Tiles.Tiled() {
			parts = append(parts, styleDim.Render("tiles "+r.Tiles.String()))
		}
	}
	switch r.State {
	case render.StateOK:
		parts = append(parts, styleDim.Render(iconArrow), r.ImagePath)
		if r.Cached {
			parts = append(parts, styleOK.Render(iconCached))
		} else if durations {
			parts = append(parts, styleNumber.Render(r.Duration.String()))
		}
	case render.StateError:
		parts = append(parts, styleError.Render(reason(r)))
	case render.StateSkipped:
		parts = append(parts, styleSkipped.Render(r.Reason))
	}
	return strings.Join(parts, " ")
}

// Totals formats the result counts of a run.
func Totals(sum *pipeline.Summary) string {
	line := fmt.Sprintf("%s rendered, %s failed, %s skipped",
		styleNumber.Render(fmt.Sprint(sum.OK)),
		styleNumber.Render(fmt.Sprint(sum.Failed)),
		styleNumber.Render(fmt.Sprint(sum.Skipped)))
	if sum.Cached > 0 {
		line += styleDim.Render(fmt.Sprintf(" (%d from cache)", sum.Cached))
	}
	return line
}

func reason(r render.Result) string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Reason
}

// Short prints one glyph per result and lists the failures at the end.
type Short struct {
	w io.Writer
}

// NewShort creates a compact console report.
func NewShort(w io.Writer) *Short {
	return &Short{w: w}
}

func (s *Short) Report(r render.Result) {
	fmt.Fprint(s.w, icon(r.State))
}

func (s *Short) Finish(_ context.Context, sum *pipeline.Summary) error {
	fmt.Fprintln(s.w)
	for _, r := range sum.Failures() {
		fmt.Fprintln(s.w, Line(r, false))
	}
	fmt.Fprintln(s.w, Totals(sum))
	return nil
}

var (
	_ Sink = (*Console)(nil)
	_ Sink = (*Short)(nil)
)
