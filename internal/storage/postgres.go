package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const timestampLayout = "2006-01-02 15:04:05"

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Leaderboard
	CREATE TABLE IF NOT EXISTS leaderboard_entries (
		address TEXT PRIMARY KEY,
		cleanups BIGINT NOT NULL DEFAULT 0 CHECK (cleanups >= 0),
		votes BIGINT NOT NULL DEFAULT 0 CHECK (votes >= 0),
		rewards_wei TEXT NOT NULL DEFAULT '0' CHECK (rewards_wei ~ '^[0-9]+$'),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		last_used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_leaderboard_rank ON leaderboard_entries(cleanups DESC, votes DESC, address);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	s.logger.Debug("migrations applied", "driver", "postgres")
	return nil
}

// UpsertLeaderboardEntry inserts or replaces a contributor's totals
func (s *PostgresStore) UpsertLeaderboardEntry(ctx context.Context, e *LeaderboardEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leaderboard_entries (address, cleanups, votes, rewards_wei, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (address) DO UPDATE SET
			cleanups = EXCLUDED.cleanups,
			votes = EXCLUDED.votes,
			rewards_wei = EXCLUDED.rewards_wei,
			updated_at = EXCLUDED.updated_at`,
		e.Address, e.Cleanups, e.Votes, normalizeWei(e.RewardsWei),
	)
	if err != nil {
		return fmt.Errorf("upserting leaderboard entry: %w", err)
	}
	return nil
}

// GetLeaderboardEntry retrieves a contributor's totals
func (s *PostgresStore) GetLeaderboardEntry(ctx context.Context, address string) (*LeaderboardEntry, error) {
	var e LeaderboardEntry
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT address, cleanups, votes, rewards_wei, updated_at FROM leaderboard_entries WHERE address = $1",
		address,
	).Scan(&e.Address, &e.Cleanups, &e.Votes, &e.RewardsWei, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.UpdatedAt = updatedAt.UTC().Format(timestampLayout)
	return &e, nil
}

// ListLeaderboard returns the top entries in rank order
func (s *PostgresStore) ListLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, cleanups, votes, rewards_wei, updated_at
		FROM leaderboard_entries
		ORDER BY cleanups DESC, votes DESC, LOWER(address) ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		var updatedAt time.Time
		if err := rows.Scan(&e.Address, &e.Cleanups, &e.Votes, &e.RewardsWei, &updatedAt); err != nil {
			return nil, err
		}
		e.UpdatedAt = updatedAt.UTC().Format(timestampLayout)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteLeaderboardEntry removes a contributor
func (s *PostgresStore) DeleteLeaderboardEntry(ctx context.Context, address string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM leaderboard_entries WHERE address = $1", address)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAPIKey creates a new API key
func (s *PostgresStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES ($1, $2, $3)", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ak.CreatedAt = createdAt.UTC().Format(timestampLayout)
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all API keys
func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var createdAt time.Time
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &createdAt, &lastUsed); err != nil {
			return nil, err
		}
		k.CreatedAt = createdAt.UTC().Format(timestampLayout)
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.Time.UTC().Format(timestampLayout)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
