package domain

import (
	"context"
	"log/slog"
	"time"
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

func (m *loggingMiddleware) Describe(ctx context.Context, kind Kind, req DescribeRequest) (*Metadata, error) {
	start := time.Now()
	md, err := m.next.Describe(ctx, kind, req)
	m.logger.Debug("Describe",
		"action", kind,
		"duration", time.Since(start),
		"error", err,
	)
	return md, err
}

func (m *loggingMiddleware) Build(ctx context.Context, kind Kind, req BuildRequest) (*TransactionResponse, error) {
	start := time.Now()
	resp, err := m.next.Build(ctx, kind, req)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	m.logger.Log(ctx, level, "Build",
		"action", kind,
		"cleanupId", req.CleanupID,
		"type", req.Type,
		"duration", time.Since(start),
		"error", err,
	)
	return resp, err
}
