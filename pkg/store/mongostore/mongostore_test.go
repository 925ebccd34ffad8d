package mongostore

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hazyhaar/taxomigrate/pkg/migration"
	"github.com/hazyhaar/taxomigrate/pkg/store"
)

func TestToRecord(t *testing.T) {
	oid := primitive.NewObjectID()
	f := store.DefaultFields

	tests := []struct {
		name       string
		doc        bson.M
		wantID     string
		wantKind   migration.LegacyKind
		wantLabels []string
		wantBackup []string
	}{
		{
			name:       "array",
			doc:        bson.M{"_id": oid, "categories": primitive.A{"Britadores", "EPIs"}},
			wantID:     oid.Hex(),
			wantKind:   migration.LegacyMany,
			wantLabels: []string{"Britadores", "EPIs"},
		},
		{
			name:       "string with backup",
			doc:        bson.M{"_id": "u2", "categories": "Britadores, EPIs", "legacyCategories": primitive.A{"Britadores"}},
			wantID:     "u2",
			wantKind:   migration.LegacySingle,
			wantLabels: []string{"Britadores", "EPIs"},
			wantBackup: []string{"Britadores"},
		},
		{
			name:       "string backup",
			doc:        bson.M{"_id": "u5", "categories": primitive.A{"EPIs"}, "legacyCategories": "old free text"},
			wantID:     "u5",
			wantKind:   migration.LegacyMany,
			wantLabels: []string{"EPIs"},
			wantBackup: []string{"old free text"},
		},
		{
			name:     "absent",
			doc:      bson.M{"_id": "u3"},
			wantID:   "u3",
			wantKind: migration.LegacyNone,
		},
		{
			name:     "wrong type",
			doc:      bson.M{"_id": int32(7), "categories": int32(3)},
			wantID:   "7",
			wantKind: migration.LegacyNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := toRecord(f, tt.doc)
			if rec.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", rec.ID, tt.wantID)
			}
			if rec.Legacy.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", rec.Legacy.Kind, tt.wantKind)
			}
			if got := rec.Legacy.Labels(); tt.wantLabels != nil && !reflect.DeepEqual(got, tt.wantLabels) {
				t.Errorf("Labels() = %v, want %v", got, tt.wantLabels)
			}
			if !reflect.DeepEqual(rec.Backup, tt.wantBackup) {
				t.Errorf("Backup = %v, want %v", rec.Backup, tt.wantBackup)
			}
		})
	}
}

func TestIDFilter(t *testing.T) {
	oid := primitive.NewObjectID()
	got := idFilter(oid.Hex())
	want := bson.M{"_id": bson.M{"$in": bson.A{oid, oid.Hex()}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("idFilter(hex) = %v, want %v", got, want)
	}

	if got := idFilter("user-42"); !reflect.DeepEqual(got, bson.M{"_id": "user-42"}) {
		t.Errorf("idFilter(string) = %v", got)
	}
}

func TestUpdateDoc(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f := store.Fields{Labels: "tags", Backup: "oldTags", UpdatedAt: "modified"}
	got := updateDoc(f, migration.Update{
		Labels:    []string{"A > B"},
		Backup:    []string{"b"},
		UpdatedAt: at,
	})
	if len(got) != 1 || len(got[0]) != 1 || got[0][0].Key != "$set" {
		t.Fatalf("pipeline = %v, want a single $set stage", got)
	}
	set := got[0][0].Value.(bson.M)
	if !reflect.DeepEqual(set["tags"], bson.M{"$literal": []string{"A > B"}}) {
		t.Errorf("tags = %v", set["tags"])
	}
	if set["modified"] != at {
		t.Errorf("modified = %v", set["modified"])
	}

	merged := set["oldTags"].(bson.M)["$let"].(bson.M)
	stored := merged["vars"].(bson.M)["stored"].(bson.M)["$switch"].(bson.M)
	if !reflect.DeepEqual(stored["default"], bson.A{"$oldTags"}) {
		t.Errorf("scalar backup must become a one-element array, got %v", stored["default"])
	}
	branches := stored["branches"].(bson.A)
	if !reflect.DeepEqual(branches[0].(bson.M)["then"], "$oldTags") {
		t.Errorf("array backup must be kept as is, got %v", branches[0])
	}
	concat := merged["in"].(bson.M)["$concatArrays"].(bson.A)
	if concat[0] != "$$stored" {
		t.Errorf("stored values must come first, got %v", concat[0])
	}
	filter := concat[1].(bson.M)["$filter"].(bson.M)
	if !reflect.DeepEqual(filter["input"], bson.M{"$literal": []string{"b"}}) {
		t.Errorf("new backup values = %v", filter["input"])
	}

	empty := updateDoc(f, migration.Update{})
	lit := empty[0][0].Value.(bson.M)["tags"].(bson.M)["$literal"].([]string)
	if lit == nil {
		t.Error("nil labels must be written as an empty array")
	}
}

func TestRecordFromRaw(t *testing.T) {
	f := store.DefaultFields

	good, err := bson.Marshal(bson.M{"_id": "u2", "categories": "EPIs", "legacyCategories": "old free text"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	rec, err := recordFromRaw(f, good)
	if err != nil {
		t.Fatalf("recordFromRaw: %v", err)
	}
	if rec.ID != "u2" || rec.Legacy.Kind != migration.LegacySingle {
		t.Errorf("record = %+v", rec)
	}
	if !reflect.DeepEqual(rec.Backup, []string{"old free text"}) {
		t.Errorf("backup = %v, want the stored string", rec.Backup)
	}

	// _id is valid; the next string element claims more bytes than exist.
	var body []byte
	body = append(body, 0x02)
	body = append(body, "_id\x00"...)
	body = binary.LittleEndian.AppendUint32(body, 3)
	body = append(body, "u1\x00"...)
	body = append(body, 0x02)
	body = append(body, "x\x00"...)
	body = binary.LittleEndian.AppendUint32(body, 100)
	body = append(body, "ab\x00"...)
	body = append(body, 0x00)
	bad := binary.LittleEndian.AppendUint32(nil, uint32(len(body)+4))
	bad = append(bad, body...)

	rec, err = recordFromRaw(f, bson.Raw(bad))
	if err == nil {
		t.Fatal("expected a decode error")
	}
	if rec.ID != "u1" {
		t.Errorf("ID = %q, want u1", rec.ID)
	}
	if rec.Legacy.Present() {
		t.Error("an undecodable document must carry no legacy field")
	}
}

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}
	plainErr := errors.New("duplicate key")
	if got := classify(plainErr); errors.Is(got, migration.ErrUnavailable) {
		t.Errorf("classify(%v) marked transient", plainErr)
	}
}

func TestBreakerSettings(t *testing.T) {
	s := breakerSettings("test", slog.New(slog.NewTextHandler(io.Discard, nil)))

	if s.ReadyToTrip(gobreaker.Counts{Requests: 4, TotalFailures: 4, ConsecutiveFailures: 4}) {
		t.Error("should not trip after 4 consecutive failures")
	}
	if !s.ReadyToTrip(gobreaker.Counts{Requests: 6, TotalFailures: 6, ConsecutiveFailures: 6}) {
		t.Error("should trip after 6 consecutive failures")
	}
	if !s.ReadyToTrip(gobreaker.Counts{Requests: 10, TotalFailures: 6, ConsecutiveFailures: 1}) {
		t.Error("should trip at 60% failure ratio")
	}
	if !s.IsSuccessful(migration.ErrNotFound) {
		t.Error("a missing record is not a breaker failure")
	}
	if s.IsSuccessful(migration.ErrUnavailable) {
		t.Error("an unavailable store is a breaker failure")
	}
}

func TestBreakerOpensAndReportsUnavailable(t *testing.T) {
	cb := gobreaker.NewCircuitBreaker(breakerSettings("test", slog.New(slog.NewTextHandler(io.Discard, nil))))
	for i := 0; i < 6; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, migration.ErrUnavailable })
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	_, err := cb.Execute(func() (interface{}, error) { return nil, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
}
