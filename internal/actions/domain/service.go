// Package domain contains the business logic of the Blink actions: the
// metadata shown before a vote and the unsigned transaction returned for it.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/cleanfi/internal/chains/evm"
	"github.com/pendergraft/cleanfi/internal/observability/metrics"
	"github.com/pendergraft/cleanfi/internal/validation"
)

// Common errors returned by the action service.
var (
	ErrMissingParam     = errors.New("missing required parameter")
	ErrInvalidCleanupID = errors.New("invalid cleanup ID")
	ErrInvalidVoteType  = errors.New("invalid vote type")
	ErrNotConfigured    = errors.New("contract not configured")
	ErrUnknownAction    = errors.New("unknown action")
)

// Service defines the action service interface.
type Service interface {
	// Describe returns the metadata for an action card.
	Describe(ctx context.Context, kind Kind, req DescribeRequest) (*Metadata, error)

	// Build returns the unsigned transaction for an action.
	Build(ctx context.Context, kind Kind, req BuildRequest) (*TransactionResponse, error)
}

// Config holds the values baked into every action response.
type Config struct {
	ChainID  int64
	Symbol   string
	Receiver string   // recipient of vote fees
	Fee      *big.Int // vote fee in wei
	Stake    *big.Int // stake-vote value in wei
	Contract string   // CleanFi contract; stake votes are refused when empty
	IconPath string   // absolute path or URL
}

// service implements the Service interface.
type service struct {
	cfg      Config
	feeText  string
	stakeTxt string
}

// NewService creates a new action service.
func NewService(cfg Config) Service {
	if cfg.Symbol == "" {
		cfg.Symbol = "MON"
	}
	return &service{
		cfg:      cfg,
		feeText:  evm.FormatEther(cfg.Fee) + " " + cfg.Symbol,
		stakeTxt: evm.FormatEther(cfg.Stake) + " " + cfg.Symbol,
	}
}

// Describe builds the metadata of an action card. No parameter is
// validated; absent values are rendered literally as "null".
func (s *service) Describe(ctx context.Context, kind Kind, req DescribeRequest) (*Metadata, error) {
	voteType := ParseVoteType(valueOrNull(req.Type))
	href := fmt.Sprintf("/api/actions/%s?cleanupId=%s&type=%s", kind, valueOrNull(req.CleanupID), valueOrNull(req.Type))

	var label, title, description string
	switch kind {
	case KindVote:
		label = fmt.Sprintf("%s (%s)", voteType.Label(), s.feeText)
		title = "Vote for Cleanup"
		description = fmt.Sprintf("Vote %s for this cleanup proof. Cost: %s", voteType.Label(), s.feeText)
	case KindStake:
		label = fmt.Sprintf("%s Stake (%s)", voteType.Label(), s.stakeTxt)
		title = "Stake on Cleanup"
		description = fmt.Sprintf("Stake %s to vote %s on this cleanup proof.", s.stakeTxt, voteType.Label())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, kind)
	}

	return &Metadata{
		Type:        "action",
		Icon:        s.iconURL(req.RequestURL),
		Label:       label,
		Title:       title,
		Description: description,
		Links: Links{
			Actions: []LinkedAction{{
				Type:  "transaction",
				Label: label,
				Href:  href,
			}},
		},
	}, nil
}

// Build returns the unsigned transaction for a vote or stake.
func (s *service) Build(ctx context.Context, kind Kind, req BuildRequest) (*TransactionResponse, error) {
	if req.CleanupID == "" || req.Type == "" {
		return nil, fmt.Errorf("%w: cleanupId=%q type=%q", ErrMissingParam, req.CleanupID, req.Type)
	}

	var (
		tx      *evm.Transaction
		message string
		err     error
	)
	switch kind {
	case KindVote:
		voteType := ParseVoteType(req.Type)
		tx, err = evm.NewTransaction(s.cfg.Receiver, s.cfg.Fee, s.cfg.ChainID, nil)
		message = fmt.Sprintf("Vote %s for Cleanup #%s - %s", voteType, req.CleanupID, s.feeText)
	case KindStake:
		tx, message, err = s.buildStake(req)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, kind)
	}
	if err != nil {
		return nil, err
	}

	serialized, err := tx.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serializing transaction: %w", err)
	}

	metrics.TransactionBuilt(string(kind), tx.ChainID)
	return &TransactionResponse{
		Type:        "transaction",
		Transaction: serialized,
		Message:     message,
	}, nil
}

func (s *service) buildStake(req BuildRequest) (*evm.Transaction, string, error) {
	id, err := validation.ParseCleanupID(req.CleanupID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCleanupID, err)
	}
	voteType, ok := ParseStrictVoteType(req.Type)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidVoteType, req.Type)
	}
	if s.cfg.Contract == "" || !common.IsHexAddress(s.cfg.Contract) {
		return nil, "", ErrNotConfigured
	}

	data, err := evm.PackVote(id, voteType.IsUpvote())
	if err != nil {
		return nil, "", fmt.Errorf("packing vote: %w", err)
	}
	tx, err := evm.NewTransaction(s.cfg.Contract, s.cfg.Stake, s.cfg.ChainID, data)
	if err != nil {
		return nil, "", err
	}
	return tx, fmt.Sprintf("Stake %s on Cleanup #%s - %s", voteType, id, s.stakeTxt), nil
}

// iconURL resolves the icon path against the request URL.
func (s *service) iconURL(base *url.URL) string {
	if strings.Contains(s.cfg.IconPath, "://") || base == nil {
		return s.cfg.IconPath
	}
	ref, err := url.Parse(s.cfg.IconPath)
	if err != nil {
		return s.cfg.IconPath
	}
	return base.ResolveReference(ref).String()
}

func valueOrNull(v *string) string {
	if v == nil {
		return "null"
	}
	return *v
}
