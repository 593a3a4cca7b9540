package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/submeterhq/submeter-ingest/internal/anomaly"
	"github.com/submeterhq/submeter-ingest/internal/db"
	"github.com/submeterhq/submeter-ingest/internal/reading"
	"github.com/submeterhq/submeter-ingest/internal/repository"
	"go.uber.org/zap"
)

// ReadingStore is the storage collaborator the reconciler writes through.
type ReadingStore interface {
	FindActiveMeterByNumber(ctx context.Context, meterNumber string) (*db.Meter, error)
	FindReadingByMeterAndDate(ctx context.Context, meterID uuid.UUID, readingDate string) (*db.MeterReading, error)
	InsertReading(ctx context.Context, r *db.MeterReading) (uuid.UUID, error)
	UpdateReading(ctx context.Context, id uuid.UUID, readingValue float64, rawData []byte, source string) error
	GetRecentReadingValues(ctx context.Context, meterID uuid.UUID, limit int) ([]float64, error)
}

// EventPublisher emits reading.ingested events after a successful write.
// Satisfied by *mq.Publisher.
type EventPublisher interface {
	PublishJSON(ctx context.Context, event any) error
}

// ReadingIngestedEvent is published after a reading is created or updated.
type ReadingIngestedEvent struct {
	ReadingID    string  `json:"reading_id"`
	MeterID      string  `json:"meter_id"`
	MeterNumber  string  `json:"meter_number"`
	ReadingValue float64 `json:"reading_value"`
	ReadingDate  string  `json:"reading_date"`
	Source       string  `json:"source"`
	Created      bool    `json:"created"`
}

// IngestResult identifies the stored reading and whether the call created a
// new row or overwrote an existing one.
type IngestResult struct {
	ReadingID uuid.UUID
	Created   bool
}

// IngestService reconciles normalized readings against the reading store:
// exactly one of insert or update per call, keyed by (meter_id, reading_date).
type IngestService struct {
	store     ReadingStore
	publisher EventPublisher
	detector  *anomaly.Detector
	logger    *zap.Logger
}

// NewIngestService creates a new ingest service. publisher and detector may
// be nil; both are advisory.
func NewIngestService(store ReadingStore, publisher EventPublisher, detector *anomaly.Detector, logger *zap.Logger) *IngestService {
	return &IngestService{
		store:     store,
		publisher: publisher,
		detector:  detector,
		logger:    logger,
	}
}

// Ingest resolves the reading's meter and performs the single write that
// upholds the one-row-per-(meter, date) invariant. Re-ingesting the same
// payload for the same day converges to the same stored state, reported as
// an update. A lost insert race against a concurrent ingest for the same key
// surfaces as a unique violation and is retried as an update.
func (s *IngestService) Ingest(ctx context.Context, nr reading.NormalizedReading) (IngestResult, error) {
	meter, err := s.store.FindActiveMeterByNumber(ctx, nr.MeterNumber)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to resolve meter: %w", err)
	}
	if meter == nil {
		return IngestResult{}, &MeterNotFoundError{MeterNumber: nr.MeterNumber}
	}

	rawData, err := json.Marshal(nr.RawData)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to marshal raw payload: %w", err)
	}

	s.checkAnomaly(ctx, meter, nr)

	result, err := s.reconcile(ctx, meter, nr, rawData)
	if err != nil {
		return IngestResult{}, err
	}

	s.publish(ctx, meter, nr, result)

	return result, nil
}

func (s *IngestService) reconcile(ctx context.Context, meter *db.Meter, nr reading.NormalizedReading, rawData []byte) (IngestResult, error) {
	existing, err := s.store.FindReadingByMeterAndDate(ctx, meter.ID, nr.ReadingDate)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to look up existing reading: %w", err)
	}

	if existing != nil {
		if err := s.store.UpdateReading(ctx, existing.ID, nr.ReadingValue, rawData, string(nr.Source)); err != nil {
			return IngestResult{}, err
		}
		return IngestResult{ReadingID: existing.ID, Created: false}, nil
	}

	id, err := s.store.InsertReading(ctx, &db.MeterReading{
		MeterID:      meter.ID,
		ReadingValue: nr.ReadingValue,
		ReadingDate:  nr.ReadingDate,
		RawData:      rawData,
		Source:       string(nr.Source),
	})
	if err == nil {
		return IngestResult{ReadingID: id, Created: true}, nil
	}

	if !repository.IsUniqueViolation(err) {
		return IngestResult{}, err
	}

	// A concurrent ingest for the same (meter, date) won the insert; fold
	// this call into an update of that row.
	existing, lookupErr := s.store.FindReadingByMeterAndDate(ctx, meter.ID, nr.ReadingDate)
	if lookupErr != nil {
		return IngestResult{}, fmt.Errorf("failed to re-read after unique violation: %w", lookupErr)
	}
	if existing == nil {
		return IngestResult{}, fmt.Errorf("unique violation but no existing reading for meter %s on %s: %w", meter.ID, nr.ReadingDate, err)
	}

	if err := s.store.UpdateReading(ctx, existing.ID, nr.ReadingValue, rawData, string(nr.Source)); err != nil {
		return IngestResult{}, err
	}

	return IngestResult{ReadingID: existing.ID, Created: false}, nil
}

// checkAnomaly flags suspicious values in logs only; it never rejects a
// reading.
func (s *IngestService) checkAnomaly(ctx context.Context, meter *db.Meter, nr reading.NormalizedReading) {
	if s.detector == nil {
		return
	}

	historical, err := s.store.GetRecentReadingValues(ctx, meter.ID, 10)
	if err != nil {
		s.logger.Warn("failed to get historical readings for anomaly check",
			zap.Error(err),
			zap.String("meter_number", meter.MeterNumber),
		)
		return
	}

	if isAnomaly, reason := s.detector.Check(nr.ReadingValue, historical); isAnomaly {
		s.logger.Warn("suspicious reading ingested",
			zap.String("meter_number", meter.MeterNumber),
			zap.Float64("reading_value", nr.ReadingValue),
			zap.String("reason", reason),
		)
	}
}

func (s *IngestService) publish(ctx context.Context, meter *db.Meter, nr reading.NormalizedReading, result IngestResult) {
	if s.publisher == nil {
		return
	}

	event := ReadingIngestedEvent{
		ReadingID:    result.ReadingID.String(),
		MeterID:      meter.ID.String(),
		MeterNumber:  meter.MeterNumber,
		ReadingValue: nr.ReadingValue,
		ReadingDate:  nr.ReadingDate,
		Source:       string(nr.Source),
		Created:      result.Created,
	}

	// Log and carry on: event delivery never fails the ingest.
	if err := s.publisher.PublishJSON(ctx, event); err != nil {
		s.logger.Error("failed to publish reading ingested event",
			zap.Error(err),
			zap.String("meter_number", meter.MeterNumber),
			zap.String("reading_id", event.ReadingID),
		)
	}
}
