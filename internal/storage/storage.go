package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pendergraft/cleanfi/internal/config"
)

// LeaderboardStore handles leaderboard operations
type LeaderboardStore interface {
	UpsertLeaderboardEntry(ctx context.Context, e *LeaderboardEntry) error
	GetLeaderboardEntry(ctx context.Context, address string) (*LeaderboardEntry, error)
	ListLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	DeleteLeaderboardEntry(ctx context.Context, address string) error
}

// APIKeyStore handles API key operations
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, name string) (key string, err error)
	ValidateAPIKey(ctx context.Context, key string) (*APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	LeaderboardStore
	APIKeyStore

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}

// LeaderboardEntry is one contributor's totals. Rank is not stored; it is
// derived from the list order.
type LeaderboardEntry struct {
	Address    string // EIP-55 checksummed
	Cleanups   int64
	Votes      int64
	RewardsWei string // decimal wei
	UpdatedAt  string
}

// APIKey represents an API key
type APIKey struct {
	ID         string
	Name       string
	KeyHash    string
	CreatedAt  string
	LastUsedAt string
	RevokedAt  string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
