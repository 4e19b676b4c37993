package report

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/matzehuels/mapprint/pkg/buildinfo"
	"github.com/matzehuels/mapprint/pkg/cache"
	"github.com/matzehuels/mapprint/pkg/errors"
	"github.com/matzehuels/mapprint/pkg/pipeline"
	"github.com/matzehuels/mapprint/pkg/render"
)

const (
	// DefaultDatabase and DefaultCollection locate benchmark history
	// unless the URI names a database.
	DefaultDatabase   = "mapprint"
	DefaultCollection = "results"

	connectTimeout = 10 * time.Second
)

// Record is the document stored per result.
type Record struct {
	RunID      string    `bson:"run_id"`
	Version    string    `bson:"version"`
	Time       time.Time `bson:"time"`
	StateName  string    `bson:"state_name"`
	Error      string    `bson:"error,omitempty"`
	DurationMS float64   `bson:"duration_ms"`

	render.Result `bson:",inline"`
}

// inserter is the part of *mongo.Collection the sink uses.
type inserter interface {
	InsertMany(ctx context.Context, docs []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// Mongo stores results in a MongoDB collection, one document per result,
// written in a single batch when the run finishes.
type Mongo struct {
	RunID string

	client  *mongo.Client
	coll    inserter
	records []interface{}
	now     func() time.Time
}

// NewMongo connects to uri and checks that the server answers. Results go
// to the database named in the URI, or [DefaultDatabase].
func NewMongo(ctx context.Context, uri, runID string) (*Mongo, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid mongo URI")
	}
	db := cs.Database
	if db == "" {
		db = DefaultDatabase
	}

	opts := options.Client().
		ApplyURI(uri).
		SetAppName("mapprint").
		SetServerSelectionTimeout(connectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "connect to mongo")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeIO, err, "mongo report: server unavailable")
	}
	return newMongo(client, client.Database(db).Collection(DefaultCollection), runID), nil
}

func newMongo(client *mongo.Client, coll inserter, runID string) *Mongo {
	return &Mongo{RunID: runID, client: client, coll: coll, now: time.Now}
}

func (m *Mongo) Report(r render.Result) {
	rec := Record{
		RunID:      m.RunID,
		Version:    buildinfo.Version,
		Time:       m.now().UTC(),
		StateName:  r.State.String(),
		DurationMS: float64(r.Duration) / float64(time.Millisecond),
		Result:     r,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	m.records = append(m.records, rec)
}

// Finish inserts the collected records, retrying on network errors.
func (m *Mongo) Finish(ctx context.Context, _ *pipeline.Summary) error {
	if len(m.records) == 0 {
		return nil
	}
	err := cache.RetryWithBackoff(ctx, func() error {
		_, err := m.coll.InsertMany(ctx, m.records)
		if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
			return cache.Retryable(err)
		}
		return err
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "store %d results in mongo", len(m.records))
	}
	m.records = nil
	return nil
}

// Close disconnects from the server.
func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

var _ Sink = (*Mongo)(nil)
