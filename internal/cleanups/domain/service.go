// Package domain contains the read-through lookup of cleanup records and
// the calldata builder for proof uploads.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/pendergraft/cleanfi/internal/chains/evm"
	"github.com/pendergraft/cleanfi/internal/observability/metrics"
	"github.com/pendergraft/cleanfi/internal/validation"
)

// Common errors returned by the cleanup service.
var (
	ErrInvalidCleanupID = errors.New("invalid cleanup ID")
	ErrInvalidProofRef  = errors.New("invalid proof reference")
	ErrNotFound         = errors.New("cleanup not found")
	ErrNotConfigured    = errors.New("contract not configured")
	ErrUpstream         = errors.New("chain RPC failed")
)

// Service defines the cleanup service interface.
type Service interface {
	// Get reads a cleanup record by ID.
	Get(ctx context.Context, id string) (*Cleanup, error)

	// PrepareUpload returns the unsigned uploadCleanup transaction for a proof.
	PrepareUpload(ctx context.Context, req UploadRequest) (*evm.Transaction, error)
}

// Reader reads cleanup records from the contract. *evm.Contract implements it.
type Reader interface {
	Cleanup(ctx context.Context, id *big.Int) (*evm.Cleanup, error)
}

// Config configures the cleanup service.
type Config struct {
	Contract string
	ChainID  int64
	CacheTTL time.Duration
	Gateway  string
}

// service implements the Service interface.
type service struct {
	reader Reader
	cfg    Config
	cache  *cache
}

// NewService creates a new cleanup service. reader may be nil when no
// contract is configured; lookups then fail with ErrNotConfigured.
func NewService(reader Reader, cfg Config) Service {
	if cfg.Gateway == "" {
		cfg.Gateway = DefaultGateway
	}
	return &service{
		reader: reader,
		cfg:    cfg,
		cache:  newCache(cfg.CacheTTL),
	}
}

// Get reads a cleanup record by ID, serving from the cache when possible.
func (s *service) Get(ctx context.Context, rawID string) (*Cleanup, error) {
	id, err := validation.ParseCleanupID(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCleanupID, err)
	}
	if s.reader == nil {
		return nil, ErrNotConfigured
	}

	key := id.String()
	if cleanup, ok := s.cache.get(key); ok {
		metrics.CleanupLookup("hit")
		return cleanup, nil
	}

	record, err := s.reader.Cleanup(ctx, id)
	if err != nil {
		if errors.Is(err, evm.ErrCleanupNotFound) {
			metrics.CleanupLookup("not_found")
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		metrics.CleanupLookup("error")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	metrics.CleanupLookup("miss")

	cleanup := Cleanup{
		ID:        record.ID,
		Uploader:  record.Uploader.Hex(),
		ProofRef:  record.ProofRef,
		ProofURL:  s.cfg.Gateway + record.ProofRef,
		Upvotes:   record.Upvotes,
		Downvotes: record.Downvotes,
	}
	s.cache.put(key, cleanup)
	return &cleanup, nil
}

// PrepareUpload returns the unsigned uploadCleanup transaction for a proof.
func (s *service) PrepareUpload(ctx context.Context, req UploadRequest) (*evm.Transaction, error) {
	if err := validation.ValidateProofRef(req.ProofRef); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProofRef, err)
	}
	if s.cfg.Contract == "" {
		return nil, ErrNotConfigured
	}

	data, err := evm.PackUploadCleanup(req.ProofRef)
	if err != nil {
		return nil, fmt.Errorf("packing uploadCleanup: %w", err)
	}
	tx, err := evm.NewTransaction(s.cfg.Contract, nil, s.cfg.ChainID, data)
	if err != nil {
		return nil, err
	}
	metrics.TransactionBuilt("upload", s.cfg.ChainID)
	return tx, nil
}
