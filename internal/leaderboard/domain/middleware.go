package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/pendergraft/cleanfi/internal/auth"
)

// LoggingMiddleware returns a service middleware that logs writes with the
// name of the API key that made them.
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

func (m *loggingMiddleware) List(ctx context.Context, limit int) ([]Entry, error) {
	return m.next.List(ctx, limit)
}

func (m *loggingMiddleware) Get(ctx context.Context, address string) (*Entry, error) {
	return m.next.Get(ctx, address)
}

func (m *loggingMiddleware) Update(ctx context.Context, address string, req UpdateRequest) (*Entry, error) {
	start := time.Now()
	entry, err := m.next.Update(ctx, address, req)
	m.logger.Info("Update",
		"address", address,
		"cleanups", req.Cleanups,
		"votes", req.Votes,
		"key", auth.KeyName(ctx),
		"duration", time.Since(start),
		"error", err,
	)
	return entry, err
}

func (m *loggingMiddleware) Import(ctx context.Context, entries []ImportEntry) (int, error) {
	start := time.Now()
	n, err := m.next.Import(ctx, entries)
	m.logger.Info("Import",
		"entries", len(entries),
		"imported", n,
		"duration", time.Since(start),
		"error", err,
	)
	return n, err
}
