package report

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/geo"
	"github.com/matzehuels/mapprint/pkg/pipeline"
	"github.com/matzehuels/mapprint/pkg/render"
)

func results() []render.Result {
	return []render.Result{
		{
			State: render.StateOK, Name: "world", Renderer: "agg", ScaleFactor: 2,
			Size: geo.MapSize{Width: 1024, Height: 1024}, Tiles: geo.SingleTile,
			ImagePath: "out/world-512-512-2.0-agg.png", Duration: 1500 * time.Millisecond,
		},
		{
			State: render.StateOK, Name: "world", Renderer: "cairo-svg", ScaleFactor: 1,
			Size: geo.MapSize{Width: 512, Height: 512}, Tiles: geo.SingleTile,
			ImagePath: "out/world-512-512-1.0-cairo-svg.svg", Cached: true,
		},
		{
			State: render.StateError, Name: "roads", Renderer: "agg", ScaleFactor: 1,
			Size: geo.MapSize{Width: 512, Height: 512}, Err: stderrors.New("layer \"roads\": boom"),
		},
		{State: render.StateSkipped, Name: "draft", Reason: "status=off"},
	}
}

func summarize(rs []render.Result) *pipeline.Summary {
	s := &pipeline.Summary{Results: rs}
	for _, r := range rs {
		switch r.State {
		case render.StateOK:
			s.OK++
			if r.Cached {
				s.Cached++
			}
		case render.StateError:
			s.Failed++
		case render.StateSkipped:
			s.Skipped++
		}
	}
	return s
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)
	rs := results()
	for _, r := range rs {
		c.Report(r)
	}
	if err := c.Finish(context.Background(), summarize(rs)); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	tests := []struct {
		line int
		want []string
	}{
		{0, []string{"✓", "world", "agg", "1024x1024", "x2.0", "out/world-512-512-2.0-agg.png", "1.5s"}},
		{1, []string{"cairo-svg", "cached"}},
		{2, []string{"✗", "roads", "boom"}},
		{3, []string{"draft", "status=off"}},
		{4, []string{"2 rendered", "1 failed", "1 skipped", "(1 from cache)"}},
	}
	for _, tt := range tests {
		for _, w := range tt.want {
			if !strings.Contains(lines[tt.line], w) {
				t.Errorf("line %d = %q, want %q", tt.line, lines[tt.line], w)
			}
		}
	}
}

func TestConsoleWithoutDurations(t *testing.T) {
	line := Line(results()[0], false)
	if strings.Contains(line, "1.5s") {
		t.Errorf("line %q shows a duration", line)
	}
}

func TestShort(t *testing.T) {
	var buf bytes.Buffer
	s := NewShort(&buf)
	rs := results()
	for _, r := range rs {
		s.Report(r)
	}
	if err := s.Finish(context.Background(), summarize(rs)); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[0] != "✓✓✗-" {
		t.Errorf("glyphs = %q", lines[0])
	}
	if !strings.Contains(lines[1], "roads") {
		t.Errorf("failure line = %q", lines[1])
	}
}

type recordingSink struct {
	got      []string
	finished bool
	err      error
}

func (s *recordingSink) Report(r render.Result) { s.got = append(s.got, r.Name) }
func (s *recordingSink) Finish(context.Context, *pipeline.Summary) error {
	s.finished = true
	return s.err
}

func TestMulti(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{err: stderrors.New("disk full")}
	m := Multi{a, b, Discard{}}
	for _, r := range results() {
		m.Report(r)
	}
	err := m.Finish(context.Background(), summarize(results()))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Finish error = %v", err)
	}
	if !a.finished || !b.finished {
		t.Error("not every sink was finished")
	}
	if len(a.got) != 4 || len(b.got) != 4 {
		t.Errorf("sinks saw %d and %d results", len(a.got), len(b.got))
	}
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("run ID %q is not a UUID: %v", id, err)
	}
	if id == NewRunID() {
		t.Error("run IDs repeat")
	}
}

type fakeCollection struct {
	docs  []interface{}
	calls int
	err   error
}

func (f *fakeCollection) InsertMany(_ context.Context, docs []interface{}, _ ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.docs = append(f.docs, docs...)
	return &mongo.InsertManyResult{}, nil
}

func TestMongo(t *testing.T) {
	coll := &fakeCollection{}
	m := newMongo(nil, coll, "run-1")
	m.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	for _, r := range results() {
		m.Report(r)
	}
	if err := m.Finish(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(coll.docs) != 4 {
		t.Fatalf("inserted %d documents", len(coll.docs))
	}
	first := coll.docs[0].(Record)
	if first.RunID != "run-1" || first.StateName != "ok" || first.DurationMS != 1500 {
		t.Errorf("first record = %+v", first)
	}
	failed := coll.docs[2].(Record)
	if failed.Error == "" || failed.StateName != "error" {
		t.Errorf("failed record = %+v", failed)
	}

	// Records are flushed once.
	if err := m.Finish(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if coll.calls != 1 {
		t.Errorf("InsertMany called %d times", coll.calls)
	}
	if err := m.Close(context.Background()); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestMongoInsertError(t *testing.T) {
	coll := &fakeCollection{err: stderrors.New("not authorized")}
	m := newMongo(nil, coll, "run-2")
	m.Report(results()[0])
	err := m.Finish(context.Background(), nil)
	if !errors.Is(err, errors.ErrCodeIO) {
		t.Errorf("error = %v, want IO", err)
	}
	if coll.calls != 1 {
		t.Errorf("non-network error retried: %d calls", coll.calls)
	}
}

func TestNewMongoInvalidURI(t *testing.T) {
	_, err := NewMongo(context.Background(), "http://localhost:27017", "run")
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}
