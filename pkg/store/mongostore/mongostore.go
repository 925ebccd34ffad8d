// Package mongostore implements the migration Store contract on a MongoDB
// collection. Writes go through a circuit breaker.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hazyhaar/taxomigrate/pkg/migration"
	"github.com/hazyhaar/taxomigrate/pkg/store"
)

// Config locates the collection.
type Config struct {
	URI        string
	Database   string
	Collection string
	Fields     store.Fields
}

// Store reads and updates records of one collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	fields store.Fields
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewClient connects to MongoDB and verifies the connection with a ping.
func NewClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(32).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	return client, nil
}

// Open connects and returns a Store bound to cfg.Database / cfg.Collection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is empty")
	}
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, errors.New("mongo database and collection are required")
	}
	client, err := NewClient(ctx, cfg.URI)
	if err != nil {
		return nil, err
	}
	s := New(client.Database(cfg.Database).Collection(cfg.Collection), cfg.Fields, logger)
	s.client = client
	return s, nil
}

// New wraps an existing collection handle.
func New(coll *mongo.Collection, fields store.Fields, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		coll:   coll,
		fields: fields.WithDefaults(),
		cb:     gobreaker.NewCircuitBreaker(breakerSettings("mongo-records", logger)),
		logger: logger,
	}
}

// Close disconnects the client opened by Open.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func breakerSettings(name string, logger *slog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, migration.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
}

// ListRecords implements migration.Store.
func (s *Store) ListRecords(ctx context.Context) ([]migration.Record, error) {
	opts := options.Find().SetProjection(bson.M{
		"_id":           1,
		s.fields.Labels: 1,
		s.fields.Backup: 1,
	})
	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", classify(err))
	}
	defer cursor.Close(ctx)

	var records []migration.Record
	for cursor.Next(ctx) {
		rec, err := recordFromRaw(s.fields, cursor.Current)
		if err != nil {
			s.logger.Warn("undecodable document", "record", rec.ID, "error", err)
		}
		records = append(records, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", classify(err))
	}
	return records, nil
}

// UpdateRecord implements migration.Store. Labels and the timestamp are set;
// the backup values are appended to those already stored (a scalar backup is
// kept as the first element), so a replayed write leaves the document unchanged.
func (s *Store) UpdateRecord(ctx context.Context, id string, u migration.Update) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		res, err := s.coll.UpdateOne(ctx, idFilter(id), updateDoc(s.fields, u))
		if err != nil {
			return nil, classify(err)
		}
		if res.MatchedCount == 0 {
			return nil, migration.ErrNotFound
		}
		return res, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("update %s: %w", id, errors.Join(migration.ErrUnavailable, err))
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	return nil
}

// toRecord maps a projected document onto a migration.Record.
func toRecord(f store.Fields, doc bson.M) migration.Record {
	rec := migration.Record{
		ID:     idString(doc["_id"]),
		Legacy: migration.DecodeLegacy(plain(doc[f.Labels])),
	}
	rec.Backup = migration.DecodeBackup(plain(doc[f.Backup]))
	return rec
}

// recordFromRaw decodes one cursor document. On failure the record keeps only
// its id and no legacy field, so the runner skips it.
func recordFromRaw(f store.Fields, raw bson.Raw) (migration.Record, error) {
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return migration.Record{ID: rawID(raw)}, err
	}
	return toRecord(f, doc), nil
}

func rawID(raw bson.Raw) string {
	v, err := raw.LookupErr("_id")
	if err != nil {
		return ""
	}
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if str, ok := v.StringValueOK(); ok {
		return str
	}
	return v.String()
}

// plain turns driver array types into []any.
func plain(v any) any {
	switch t := v.(type) {
	case primitive.A:
		return []any(t)
	default:
		return v
	}
}

func idString(v any) string {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// idFilter matches either an ObjectID or a plain string _id.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

// updateDoc builds a pipeline update. The stored backup is read as an array
// (missing or null as empty, any scalar as a one-element array) and the new
// values not already present are appended to it.
func updateDoc(f store.Fields, u migration.Update) mongo.Pipeline {
	labels := append([]string{}, u.Labels...)
	backup := append([]string{}, u.Backup...)
	field := "$" + f.Backup
	stored := bson.M{"$switch": bson.M{
		"branches": bson.A{
			bson.M{"case": bson.M{"$isArray": field}, "then": field},
			bson.M{"case": bson.M{"$in": bson.A{bson.M{"$type": field}, bson.A{"missing", "null"}}}, "then": bson.A{}},
		},
		"default": bson.A{field},
	}}
	merged := bson.M{"$let": bson.M{
		"vars": bson.M{"stored": stored},
		"in": bson.M{"$concatArrays": bson.A{
			"$$stored",
			bson.M{"$filter": bson.M{
				"input": bson.M{"$literal": backup},
				"cond":  bson.M{"$not": bson.A{bson.M{"$in": bson.A{"$$this", "$$stored"}}}},
			}},
		}},
	}}
	return mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			f.Labels:    bson.M{"$literal": labels},
			f.UpdatedAt: u.UpdatedAt,
			f.Backup:    merged,
		}}},
	}
}

// classify marks connectivity failures as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return errors.Join(migration.ErrUnavailable, err)
	}
	return err
}
