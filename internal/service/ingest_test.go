package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/submeterhq/submeter-ingest/internal/db"
	"github.com/submeterhq/submeter-ingest/internal/reading"
	"go.uber.org/zap"
)

type readingKey struct {
	meterID uuid.UUID
	date    string
}

// fakeStore is an in-memory ReadingStore upholding the same
// one-row-per-(meter, date) constraint as the database schema.
type fakeStore struct {
	meters   map[string]*db.Meter
	readings map[readingKey]*db.MeterReading

	insertCalls int
	updateCalls int

	// hideExistingOnce makes the next lookup miss, simulating a concurrent
	// ingest that inserts between this call's lookup and its insert.
	hideExistingOnce bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		meters:   make(map[string]*db.Meter),
		readings: make(map[readingKey]*db.MeterReading),
	}
}

func (f *fakeStore) addMeter(meterNumber string, active bool) *db.Meter {
	meter := &db.Meter{ID: uuid.New(), MeterNumber: meterNumber, IsActive: active}
	f.meters[meterNumber] = meter
	return meter
}

func (f *fakeStore) FindActiveMeterByNumber(_ context.Context, meterNumber string) (*db.Meter, error) {
	meter, ok := f.meters[meterNumber]
	if !ok || !meter.IsActive {
		return nil, nil
	}
	return meter, nil
}

func (f *fakeStore) FindReadingByMeterAndDate(_ context.Context, meterID uuid.UUID, date string) (*db.MeterReading, error) {
	if f.hideExistingOnce {
		f.hideExistingOnce = false
		return nil, nil
	}
	r, ok := f.readings[readingKey{meterID, date}]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) InsertReading(_ context.Context, r *db.MeterReading) (uuid.UUID, error) {
	f.insertCalls++
	key := readingKey{r.MeterID, r.ReadingDate}
	if _, exists := f.readings[key]; exists {
		return uuid.Nil, fmt.Errorf("insert failed: %w", &pgconn.PgError{Code: "23505"})
	}

	stored := *r
	stored.ID = uuid.New()
	f.readings[key] = &stored
	return stored.ID, nil
}

func (f *fakeStore) UpdateReading(_ context.Context, id uuid.UUID, value float64, raw []byte, source string) error {
	f.updateCalls++
	for _, r := range f.readings {
		if r.ID == id {
			r.ReadingValue = value
			r.RawData = raw
			r.Source = source
			return nil
		}
	}
	return fmt.Errorf("no reading with id %s", id)
}

func (f *fakeStore) GetRecentReadingValues(_ context.Context, meterID uuid.UUID, _ int) ([]float64, error) {
	var values []float64
	for _, r := range f.readings {
		if r.MeterID == meterID {
			values = append(values, r.ReadingValue)
		}
	}
	return values, nil
}

type fakePublisher struct {
	events []any
	err    error
}

func (p *fakePublisher) PublishJSON(_ context.Context, event any) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func testReading(meterNumber string) reading.NormalizedReading {
	return reading.NormalizedReading{
		MeterNumber:  meterNumber,
		ReadingValue: 482.5,
		ReadingDate:  "2024-03-01",
		RawData:      map[string]any{"meter_number": meterNumber, "reading_value": 482.5},
		Source:       reading.SourceChineseDevice,
	}
}

func TestIngest_CreatesNewReading(t *testing.T) {
	store := newFakeStore()
	meter := store.addMeter("12345", true)
	publisher := &fakePublisher{}
	svc := NewIngestService(store, publisher, nil, zap.NewNop())

	result, err := svc.Ingest(context.Background(), testReading("12345"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if !result.Created {
		t.Error("Expected first ingest to report created")
	}
	if len(store.readings) != 1 {
		t.Fatalf("Expected 1 stored reading, got %d", len(store.readings))
	}

	stored := store.readings[readingKey{meter.ID, "2024-03-01"}]
	if stored == nil {
		t.Fatal("Expected reading stored under (meter, date) key")
	}
	if stored.ReadingValue != 482.5 || stored.Source != "chinese_device" {
		t.Errorf("Unexpected stored reading: %+v", stored)
	}
	if len(publisher.events) != 1 {
		t.Errorf("Expected 1 published event, got %d", len(publisher.events))
	}
}

func TestIngest_SecondCallUpdatesInPlace(t *testing.T) {
	store := newFakeStore()
	store.addMeter("12345", true)
	svc := NewIngestService(store, nil, nil, zap.NewNop())

	first, err := svc.Ingest(context.Background(), testReading("12345"))
	if err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}

	second, err := svc.Ingest(context.Background(), testReading("12345"))
	if err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}

	if !first.Created {
		t.Error("Expected first call to create")
	}
	if second.Created {
		t.Error("Expected second call to update, not create")
	}
	if first.ReadingID != second.ReadingID {
		t.Error("Expected reading identity to be preserved across re-ingestion")
	}
	if len(store.readings) != 1 {
		t.Errorf("Expected exactly one stored row, got %d", len(store.readings))
	}
}

func TestIngest_UpdateOverwritesValueAndSource(t *testing.T) {
	store := newFakeStore()
	meter := store.addMeter("12345", true)
	svc := NewIngestService(store, nil, nil, zap.NewNop())

	if _, err := svc.Ingest(context.Background(), testReading("12345")); err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}

	updated := testReading("12345")
	updated.ReadingValue = 500.0
	updated.Source = reading.SourceManual
	if _, err := svc.Ingest(context.Background(), updated); err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}

	stored := store.readings[readingKey{meter.ID, "2024-03-01"}]
	if stored.ReadingValue != 500.0 {
		t.Errorf("Expected value overwritten to 500.0, got %v", stored.ReadingValue)
	}
	if stored.Source != "manual" {
		t.Errorf("Expected source overwritten to manual, got %s", stored.Source)
	}
}

func TestIngest_MeterNotFound(t *testing.T) {
	store := newFakeStore()
	svc := NewIngestService(store, nil, nil, zap.NewNop())

	_, err := svc.Ingest(context.Background(), testReading("unknown"))
	if err == nil {
		t.Fatal("Expected error for unknown meter")
	}

	notFound, ok := err.(*MeterNotFoundError)
	if !ok {
		t.Fatalf("Expected *MeterNotFoundError, got %T", err)
	}
	if notFound.MeterNumber != "unknown" {
		t.Errorf("Expected meter number in error, got %q", notFound.MeterNumber)
	}
	if store.insertCalls != 0 || store.updateCalls != 0 {
		t.Error("Expected no writes for unknown meter")
	}
}

func TestIngest_InactiveMeterNotFound(t *testing.T) {
	store := newFakeStore()
	store.addMeter("12345", false)
	svc := NewIngestService(store, nil, nil, zap.NewNop())

	_, err := svc.Ingest(context.Background(), testReading("12345"))
	if _, ok := err.(*MeterNotFoundError); !ok {
		t.Fatalf("Expected *MeterNotFoundError for inactive meter, got %v", err)
	}
}

func TestIngest_UniqueViolationRetriesAsUpdate(t *testing.T) {
	store := newFakeStore()
	meter := store.addMeter("12345", true)
	svc := NewIngestService(store, nil, nil, zap.NewNop())

	// Simulate a concurrent ingest winning the insert race: the row exists
	// but this call's first lookup does not see it, so its insert hits the
	// unique constraint.
	racedID := uuid.New()
	store.hideExistingOnce = true
	store.readings[readingKey{meter.ID, "2024-03-01"}] = &db.MeterReading{
		ID:           racedID,
		MeterID:      meter.ID,
		ReadingDate:  "2024-03-01",
		ReadingValue: 1.0,
	}

	result, err := svc.Ingest(context.Background(), testReading("12345"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if result.Created {
		t.Error("Expected retry path to report an update")
	}
	if result.ReadingID != racedID {
		t.Error("Expected the racing row's identity to be reused")
	}
	if len(store.readings) != 1 {
		t.Errorf("Expected exactly one stored row, got %d", len(store.readings))
	}
	if got := store.readings[readingKey{meter.ID, "2024-03-01"}].ReadingValue; got != 482.5 {
		t.Errorf("Expected retried update to overwrite value, got %v", got)
	}
}

func TestIngest_PublishFailureDoesNotFailIngest(t *testing.T) {
	store := newFakeStore()
	store.addMeter("12345", true)
	publisher := &fakePublisher{err: fmt.Errorf("broker down")}
	svc := NewIngestService(store, publisher, nil, zap.NewNop())

	result, err := svc.Ingest(context.Background(), testReading("12345"))
	if err != nil {
		t.Fatalf("Expected ingest to succeed despite publish failure, got %v", err)
	}
	if !result.Created {
		t.Error("Expected reading to be created")
	}
}
