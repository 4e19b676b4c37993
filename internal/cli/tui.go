package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/pipeline"
	"github.com/matzehuels/mapprint/pkg/render"
	"github.com/matzehuels/mapprint/pkg/report"
)

// =============================================================================
// Messages
// =============================================================================

type resultMsg render.Result

type runDoneMsg struct {
	sum *pipeline.Summary
	err error
}

type tickMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

// =============================================================================
// ProgressModel - Live list of finished jobs
// =============================================================================

// ProgressModel is the bubbletea model for the render progress view.
type ProgressModel struct {
	Lines     []string
	Durations bool
	Height    int

	OK, Failed, Skipped int

	frame      int
	done       bool
	cancelling bool
	cancel     context.CancelFunc
}

// NewProgressModel creates a progress view. cancel stops the run when the
// user quits.
func NewProgressModel(cancel context.CancelFunc, durations bool) ProgressModel {
	return ProgressModel{Durations: durations, Height: 15, cancel: cancel}
}

func (m ProgressModel) Init() tea.Cmd {
	return tick()
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil && !m.cancelling {
				m.cancel()
			}
			m.cancelling = true
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 4
		if m.Height < 5 {
			m.Height = 5
		}
	case resultMsg:
		r := render.Result(msg)
		switch r.State {
		case render.StateOK:
			m.OK++
		case render.StateError:
			m.Failed++
		default:
			m.Skipped++
		}
		m.Lines = append(m.Lines, report.Line(r, m.Durations))
	case runDoneMsg:
		m.done = true
		return m, tea.Quit
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder

	status := "Rendering"
	switch {
	case m.done:
		status = "Done"
	case m.cancelling:
		status = "Cancelling"
	}
	if m.done {
		b.WriteString(StyleTitle.Render(status))
	} else {
		frame := spinnerFrames[m.frame%len(spinnerFrames)]
		b.WriteString(styleIconSpinner.Render(frame) + " " + StyleTitle.Render(status))
	}
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %d ok · %d failed · %d skipped", m.OK, m.Failed, m.Skipped)))
	b.WriteString("\n\n")

	start := 0
	if !m.done && len(m.Lines) > m.Height {
		start = len(m.Lines) - m.Height
	}
	for _, line := range m.Lines[start:] {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if !m.done {
		b.WriteString("\n")
		b.WriteString(StyleDim.Render("q quit"))
	}
	return b.String()
}

// runWithTUI runs the styles behind a progress view written to w. Results
// also go to stores.
func runWithTUI(ctx context.Context, runner *pipeline.Runner, cfg pipeline.Config, styles []string,
	stores report.Multi, w io.Writer, durations bool) (*pipeline.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(cancel, durations), tea.WithOutput(w))
	done := make(chan runDoneMsg, 1)
	go func() {
		sum, err := runner.Run(ctx, cfg, styles, func(r render.Result) {
			stores.Report(r)
			p.Send(resultMsg(r))
		})
		msg := runDoneMsg{sum: sum, err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "progress view")
	}
	res := <-done
	return res.sum, res.err
}
