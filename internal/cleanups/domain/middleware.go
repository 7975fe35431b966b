package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/pendergraft/cleanfi/internal/chains/evm"
)

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Get(ctx context.Context, id string) (*Cleanup, error) {
	start := time.Now()
	cleanup, err := m.next.Get(ctx, id)
	m.logger.Debug("Get",
		"id", id,
		"duration", time.Since(start),
		"error", err,
	)
	return cleanup, err
}

func (m *loggingMiddleware) PrepareUpload(ctx context.Context, req UploadRequest) (*evm.Transaction, error) {
	start := time.Now()
	tx, err := m.next.PrepareUpload(ctx, req)
	m.logger.Info("PrepareUpload",
		"proofRef", req.ProofRef,
		"duration", time.Since(start),
		"error", err,
	)
	return tx, err
}
