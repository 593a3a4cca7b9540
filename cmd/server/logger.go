package main

import (
	"github.com/submeterhq/submeter-ingest/internal/config"
	"github.com/submeterhq/submeter-ingest/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
