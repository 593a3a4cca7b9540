package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/submeterhq/submeter-ingest/internal/cborx"
	"github.com/submeterhq/submeter-ingest/internal/metrics"
	"github.com/submeterhq/submeter-ingest/internal/reading"
	"github.com/submeterhq/submeter-ingest/internal/service"
	"go.uber.org/zap"
)

// IngestHandler serves the device ingestion endpoints.
type IngestHandler struct {
	ingest       *service.IngestService
	maxBodyBytes int64
	logger       *zap.Logger
}

type ingestResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ReadingID string `json:"reading_id"`
}

// ChineseDevice ingests a reading from a Chinese submetering device. The
// body carries CBOR bytes, or their hex/base64 text representation.
func (h *IngestHandler) ChineseDevice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	source := reading.SourceChineseDevice

	body, err := h.readBody(w, r)
	if err != nil {
		metrics.ObserveIngest(string(source), metrics.ResultDecodeError, time.Since(start))
		writeError(w, http.StatusBadRequest, "Failed to read request body", err.Error())
		return
	}

	payload, err := decodeCBORBody(body)
	if err != nil {
		h.logger.Warn("cbor decode failed", zap.Error(err))
		metrics.ObserveIngest(string(source), metrics.ResultDecodeError, time.Since(start))
		writeError(w, http.StatusBadRequest, "Failed to decode payload", err.Error())
		return
	}

	h.ingestPayload(w, r, payload, source, start)
}

// BadgerOrion ingests a reading from a Badger Orion submeter. The body is a
// JSON object as per the vendor's push API.
func (h *IngestHandler) BadgerOrion(w http.ResponseWriter, r *http.Request) {
	h.ingestJSON(w, r, reading.SourceBadgerOrion)
}

// Manual ingests a manually entered reading.
func (h *IngestHandler) Manual(w http.ResponseWriter, r *http.Request) {
	h.ingestJSON(w, r, reading.SourceManual)
}

func (h *IngestHandler) ingestJSON(w http.ResponseWriter, r *http.Request, source reading.Source) {
	start := time.Now()

	body, err := h.readBody(w, r)
	if err != nil {
		metrics.ObserveIngest(string(source), metrics.ResultDecodeError, time.Since(start))
		writeError(w, http.StatusBadRequest, "Failed to read request body", err.Error())
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		metrics.ObserveIngest(string(source), metrics.ResultDecodeError, time.Since(start))
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	h.ingestPayload(w, r, payload, source, start)
}

// ingestPayload runs the shared validate/normalize/reconcile steps and maps
// pipeline failures onto the response contract: 400 for validation, 404 for
// unknown meters, 500 for storage.
func (h *IngestHandler) ingestPayload(w http.ResponseWriter, r *http.Request, payload map[string]any, source reading.Source, start time.Time) {
	validation := reading.Validate(payload)
	if !validation.IsValid {
		metrics.ObserveIngest(string(source), metrics.ResultInvalid, time.Since(start))
		writeError(w, http.StatusBadRequest, "Invalid meter reading data", validation.Errors)
		return
	}

	nr, err := reading.Normalize(payload, source)
	if err != nil {
		metrics.ObserveIngest(string(source), metrics.ResultInvalid, time.Since(start))
		writeError(w, http.StatusBadRequest, "Invalid meter reading data", err.Error())
		return
	}

	result, err := h.ingest.Ingest(r.Context(), nr)
	if err != nil {
		var notFound *service.MeterNotFoundError
		if errors.As(err, &notFound) {
			metrics.ObserveIngest(string(source), metrics.ResultMeterNotFound, time.Since(start))
			writeError(w, http.StatusNotFound, "Meter not found: "+notFound.MeterNumber, nil)
			return
		}

		h.logger.Error("failed to ingest reading",
			zap.Error(err),
			zap.String("source", string(source)),
			zap.String("meter_number", nr.MeterNumber),
		)
		metrics.ObserveIngest(string(source), metrics.ResultStorageError, time.Since(start))
		writeError(w, http.StatusInternalServerError, "Failed to ingest data", err.Error())
		return
	}

	message := "Reading updated"
	metricResult := metrics.ResultUpdated
	if result.Created {
		message = "Reading created"
		metricResult = metrics.ResultCreated
	}
	metrics.ObserveIngest(string(source), metricResult, time.Since(start))

	h.logger.Info("reading ingested",
		zap.String("source", string(source)),
		zap.String("meter_number", nr.MeterNumber),
		zap.String("reading_id", result.ReadingID.String()),
		zap.Bool("created", result.Created),
	)

	writeJSON(w, http.StatusOK, ingestResponse{
		Success:   true,
		Message:   message,
		ReadingID: result.ReadingID.String(),
	})
}

func (h *IngestHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
}

// decodeCBORBody decodes the request body as CBOR. Text bodies (hex or
// base64 renderings of the CBOR bytes) are detected and converted first.
func decodeCBORBody(body []byte) (map[string]any, error) {
	decoded, err := cborx.DecodeBytes(body)
	if err != nil {
		// Some gateways post the bytes as hex or base64 text.
		text := strings.TrimSpace(string(body))
		var textErr error
		decoded, textErr = cborx.Decode(text)
		if textErr != nil {
			return nil, err
		}
	}

	payload, ok := decoded.(map[string]any)
	if !ok {
		return nil, errors.New("decoded payload is not an object")
	}
	return payload, nil
}
