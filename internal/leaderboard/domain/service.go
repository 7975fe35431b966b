// Package domain contains the leaderboard of top CleanFi contributors.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/cleanfi/internal/chains/evm"
	"github.com/pendergraft/cleanfi/internal/observability/metrics"
	"github.com/pendergraft/cleanfi/internal/storage"
	"github.com/pendergraft/cleanfi/internal/validation"
)

// Common errors returned by the leaderboard service.
var (
	ErrNotFound       = errors.New("leaderboard entry not found")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidEntry   = errors.New("invalid leaderboard entry")
)

// Service defines the leaderboard service interface.
type Service interface {
	// List returns the top entries, ranked from 1.
	List(ctx context.Context, limit int) ([]Entry, error)

	// Get returns one contributor's totals, unranked.
	Get(ctx context.Context, address string) (*Entry, error)

	// Update replaces one contributor's totals.
	Update(ctx context.Context, address string, req UpdateRequest) (*Entry, error)

	// Import upserts a batch of entries, stopping at the first invalid one.
	Import(ctx context.Context, entries []ImportEntry) (int, error)
}

// Store is the storage the leaderboard needs.
type Store interface {
	UpsertLeaderboardEntry(ctx context.Context, e *storage.LeaderboardEntry) error
	GetLeaderboardEntry(ctx context.Context, address string) (*storage.LeaderboardEntry, error)
	ListLeaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error)
}

// service implements the Service interface.
type service struct {
	store  Store
	symbol string
}

// NewService creates a new leaderboard service. symbol is the native
// currency used when formatting rewards.
func NewService(store Store, symbol string) Service {
	if symbol == "" {
		symbol = "MON"
	}
	return &service{store: store, symbol: symbol}
}

// List returns the top entries. Limits outside 1..MaxLimit fall back to DefaultLimit.
func (s *service) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 || limit > MaxLimit {
		limit = DefaultLimit
	}

	rows, err := s.store.ListLeaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing leaderboard: %w", err)
	}

	entries := make([]Entry, len(rows))
	for i, row := range rows {
		entries[i] = s.toEntry(row)
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// Get returns one contributor's totals.
func (s *service) Get(ctx context.Context, address string) (*Entry, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	row, err := s.store.GetLeaderboardEntry(ctx, addr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting leaderboard entry: %w", err)
	}
	entry := s.toEntry(*row)
	return &entry, nil
}

// Update replaces one contributor's totals.
func (s *service) Update(ctx context.Context, address string, req UpdateRequest) (*Entry, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if req.Cleanups < 0 || req.Votes < 0 {
		return nil, fmt.Errorf("%w: counts must not be negative", ErrInvalidEntry)
	}
	wei, err := parseWei(req.RewardsWei)
	if err != nil {
		return nil, err
	}

	row := &storage.LeaderboardEntry{
		Address:    addr,
		Cleanups:   req.Cleanups,
		Votes:      req.Votes,
		RewardsWei: wei.String(),
	}
	if err := s.store.UpsertLeaderboardEntry(ctx, row); err != nil {
		metrics.LeaderboardUpdate("error")
		return nil, fmt.Errorf("updating leaderboard: %w", err)
	}
	metrics.LeaderboardUpdate("ok")

	entry := s.toEntry(*row)
	return &entry, nil
}

// Import upserts a batch of entries.
func (s *service) Import(ctx context.Context, entries []ImportEntry) (int, error) {
	for i, e := range entries {
		req := UpdateRequest{Cleanups: e.Cleanups, Votes: e.Votes, RewardsWei: e.RewardsWei}
		if e.Rewards != "" {
			if e.RewardsWei != "" {
				return i, fmt.Errorf("entry %d (%s): %w: set rewards or rewardsWei, not both", i, e.Address, ErrInvalidEntry)
			}
			wei, err := evm.ParseEther(e.Rewards)
			if err != nil {
				return i, fmt.Errorf("entry %d (%s): %w: %v", i, e.Address, ErrInvalidEntry, err)
			}
			req.RewardsWei = wei.String()
		}
		if _, err := s.Update(ctx, e.Address, req); err != nil {
			return i, fmt.Errorf("entry %d (%s): %w", i, e.Address, err)
		}
	}
	return len(entries), nil
}

func (s *service) toEntry(row storage.LeaderboardEntry) Entry {
	wei, ok := new(big.Int).SetString(row.RewardsWei, 10)
	if !ok {
		wei = new(big.Int)
	}
	return Entry{
		Address:    row.Address,
		Cleanups:   row.Cleanups,
		Votes:      row.Votes,
		Rewards:    evm.FormatEther(wei) + " " + s.symbol,
		RewardsWei: wei.String(),
		UpdatedAt:  row.UpdatedAt,
	}
}

func normalizeAddress(address string) (string, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return common.HexToAddress(address).Hex(), nil
}

func parseWei(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	wei, ok := new(big.Int).SetString(s, 10)
	if !ok || wei.Sign() < 0 || s[0] == '+' {
		return nil, fmt.Errorf("%w: rewardsWei %q is not a non-negative integer", ErrInvalidEntry, s)
	}
	return wei, nil
}
