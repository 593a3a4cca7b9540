// Package api exposes the HTTP surface of the ingest service: the device
// ingestion endpoints, a small admin API over the property/unit/tenant/meter
// tables, health, and metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/submeterhq/submeter-ingest/internal/config"
	"github.com/submeterhq/submeter-ingest/internal/metrics"
	"github.com/submeterhq/submeter-ingest/internal/repository"
	"github.com/submeterhq/submeter-ingest/internal/service"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and its routes.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the route table and the underlying http.Server.
func NewServer(cfg *config.Config, ingest *service.IngestService, repo *repository.Repository, logger *zap.Logger) *Server {
	ingestHandler := &IngestHandler{
		ingest:       ingest,
		maxBodyBytes: cfg.HTTP.MaxBodyBytes,
		logger:       logger,
	}
	adminHandler := &AdminHandler{repo: repo, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest/chinese-device", ingestHandler.ChineseDevice)
	mux.HandleFunc("POST /ingest/badger-orion", ingestHandler.BadgerOrion)
	mux.HandleFunc("POST /ingest/manual", ingestHandler.Manual)

	mux.HandleFunc("POST /api/properties", adminHandler.CreateProperty)
	mux.HandleFunc("GET /api/properties", adminHandler.ListProperties)
	mux.HandleFunc("POST /api/units", adminHandler.CreateUnit)
	mux.HandleFunc("GET /api/units", adminHandler.ListUnits)
	mux.HandleFunc("POST /api/tenants", adminHandler.CreateTenant)
	mux.HandleFunc("POST /api/tenants/{id}/move-out", adminHandler.MoveOutTenant)
	mux.HandleFunc("POST /api/meters", adminHandler.CreateMeter)
	mux.HandleFunc("GET /api/meters/{meterNumber}/readings", adminHandler.ListMeterReadings)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.HTTP.ListenAddr,
			Handler: mux,
		},
		logger: logger,
	}
}

// Handler returns the server's root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}
