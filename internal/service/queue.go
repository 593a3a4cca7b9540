package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/submeterhq/submeter-ingest/internal/logging"
	"github.com/submeterhq/submeter-ingest/internal/metrics"
	"github.com/submeterhq/submeter-ingest/internal/reading"
	"go.uber.org/zap"
)

// QueueEnvelope is the message shape delivered by the field gateway: the
// device payload already parsed to a generic object, plus provenance.
type QueueEnvelope struct {
	RequestID  string         `json:"request_id"`
	Source     string         `json:"source"`
	ReceivedAt time.Time      `json:"received_at"`
	Payload    map[string]any `json:"payload"`
}

// ProcessQueueMessage runs the validate/normalize/reconcile pipeline for one
// queue-delivered reading. Any returned error routes the message to the DLQ.
func (s *IngestService) ProcessQueueMessage(ctx context.Context, body []byte) error {
	start := time.Now()

	var env QueueEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		metrics.ObserveIngest("unknown", metrics.ResultDecodeError, time.Since(start))
		return fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	source := reading.Source(env.Source)
	if !source.Valid() {
		metrics.ObserveIngest(env.Source, metrics.ResultInvalid, time.Since(start))
		return fmt.Errorf("unknown reading source %q", env.Source)
	}

	reqLogger := logging.WithRequestID(s.logger, env.RequestID)

	validation := reading.Validate(env.Payload)
	if !validation.IsValid {
		metrics.ObserveIngest(env.Source, metrics.ResultInvalid, time.Since(start))
		reqLogger.Warn("rejected invalid reading payload",
			zap.String("source", env.Source),
			zap.Strings("errors", validation.Errors),
		)
		return fmt.Errorf("invalid meter reading data: %s", strings.Join(validation.Errors, "; "))
	}

	nr, err := reading.Normalize(env.Payload, source)
	if err != nil {
		metrics.ObserveIngest(env.Source, metrics.ResultInvalid, time.Since(start))
		return fmt.Errorf("failed to normalize reading: %w", err)
	}

	result, err := s.Ingest(ctx, nr)
	if err != nil {
		metrics.ObserveIngest(env.Source, ingestFailureResult(err), time.Since(start))
		return err
	}

	metrics.ObserveIngest(env.Source, ingestSuccessResult(result), time.Since(start))
	reqLogger.Info("queue reading ingested",
		zap.String("source", env.Source),
		zap.String("meter_number", nr.MeterNumber),
		zap.String("reading_id", result.ReadingID.String()),
		zap.Bool("created", result.Created),
	)

	return nil
}

func ingestSuccessResult(result IngestResult) string {
	if result.Created {
		return metrics.ResultCreated
	}
	return metrics.ResultUpdated
}

func ingestFailureResult(err error) string {
	var notFound *MeterNotFoundError
	if errors.As(err, &notFound) {
		return metrics.ResultMeterNotFound
	}
	return metrics.ResultStorageError
}
