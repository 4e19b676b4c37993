// Package report writes render results to the terminal and to result
// stores.
//
// A [Sink] sees every result as it arrives and the run summary at the end:
//
//	sink := report.Multi{report.NewConsole(os.Stdout, true), mongo}
//	sum, err := runner.Run(ctx, cfg, styles, sink.Report)
//	err = sink.Finish(ctx, sum)
package report

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/matzehuels/mapprint/pkg/pipeline"
	"github.com/matzehuels/mapprint/pkg/render"
)

// Sink receives the results of one run.
type Sink interface {
	// Report is called once per job. Calls are serialised by the runner.
	Report(r render.Result)
	// Finish is called once after the last result.
	Finish(ctx context.Context, sum *pipeline.Summary) error
}

// NewRunID returns a fresh identifier for a run.
func NewRunID() string {
	return uuid.NewString()
}

// Multi fans results out to several sinks in order.
type Multi []Sink

func (m Multi) Report(r render.Result) {
	for _, s := range m {
		s.Report(r)
	}
}

// Finish finishes every sink and joins their errors.
func (m Multi) Finish(ctx context.Context, sum *pipeline.Summary) error {
	var errs []error
	for _, s := range m {
		if err := s.Finish(ctx, sum); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Discard ignores all results.
type Discard struct{}

func (Discard) Report(render.Result)                             {}
func (Discard) Finish(context.Context, *pipeline.Summary) error { return nil }

var (
	_ Sink = Multi(nil)
	_ Sink = Discard{}
)
