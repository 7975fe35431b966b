// Package server provides the HTTP server setup and wiring.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	actionsDomain "github.com/pendergraft/cleanfi/internal/actions/domain"
	actionsTransport "github.com/pendergraft/cleanfi/internal/actions/transport"
	"github.com/pendergraft/cleanfi/internal/auth"
	"github.com/pendergraft/cleanfi/internal/chains"
	"github.com/pendergraft/cleanfi/internal/chains/evm"
	cleanupsDomain "github.com/pendergraft/cleanfi/internal/cleanups/domain"
	cleanupsTransport "github.com/pendergraft/cleanfi/internal/cleanups/transport"
	"github.com/pendergraft/cleanfi/internal/config"
	leaderboardDomain "github.com/pendergraft/cleanfi/internal/leaderboard/domain"
	leaderboardTransport "github.com/pendergraft/cleanfi/internal/leaderboard/transport"
	"github.com/pendergraft/cleanfi/internal/middleware/logging"
	"github.com/pendergraft/cleanfi/internal/middleware/ratelimit"
	"github.com/pendergraft/cleanfi/internal/middleware/realip"
	"github.com/pendergraft/cleanfi/internal/middleware/security"
	"github.com/pendergraft/cleanfi/internal/observability/metrics"
	"github.com/pendergraft/cleanfi/internal/storage"
)

const actionsPrefix = "/api/actions"

//go:embed static/logo.svg
var static embed.FS

// Option customizes a Server.
type Option func(*Server)

// WithCaller replaces the JSON-RPC client used for contract reads.
func WithCaller(c evm.Caller) Option {
	return func(s *Server) { s.caller = c }
}

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	chain    chains.Chain
	caller   evm.Caller
	contract *evm.Contract
	limiter  *ratelimit.Limiter

	// Services typed via transport interfaces
	actionsSvc     actionsTransport.Service
	cleanupsSvc    cleanupsTransport.Service
	leaderboardSvc leaderboardTransport.Service

	actionsHandler *actionsTransport.Handler
}

// New creates a new server. The RPC endpoint is not contacted until the
// first contract read.
func New(cfg *config.Config, store storage.Store, logger *slog.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	registry := chains.DefaultRegistry()
	if cfg.Chain.ChainsFile != "" {
		if err := registry.LoadFile(cfg.Chain.ChainsFile); err != nil {
			return nil, err
		}
	}
	chain, err := registry.Resolve(cfg.Chain.ID, cfg.Chain.RPCURL)
	if err != nil {
		return nil, err
	}
	s.chain = chain

	fee, err := evm.ParseEther(cfg.Actions.VoteFee)
	if err != nil {
		return nil, fmt.Errorf("VOTE_FEE: %w", err)
	}
	stake, err := evm.ParseEther(cfg.Actions.VoteStake)
	if err != nil {
		return nil, fmt.Errorf("VOTE_STAKE: %w", err)
	}

	// A nil Reader keeps cleanup reads answering "not configured"
	var reader cleanupsDomain.Reader
	if cfg.Chain.ContractAddress != "" {
		if s.caller == nil {
			s.caller = evm.NewLazyCaller(chain.RPCURL)
		}
		s.contract = evm.NewContract(common.HexToAddress(cfg.Chain.ContractAddress), s.caller)
		reader = s.contract
	}

	actionsImpl := actionsDomain.NewService(actionsDomain.Config{
		ChainID:  chain.ID,
		Symbol:   chain.NativeSymbol,
		Receiver: cfg.Actions.Receiver,
		Fee:      fee,
		Stake:    stake,
		Contract: cfg.Chain.ContractAddress,
		IconPath: cfg.Actions.IconPath,
	})
	cleanupsImpl := cleanupsDomain.NewService(reader, cleanupsDomain.Config{
		Contract: cfg.Chain.ContractAddress,
		ChainID:  chain.ID,
		CacheTTL: time.Duration(cfg.Actions.CacheTTLSeconds) * time.Second,
		Gateway:  cfg.Actions.ProofGateway,
	})

	s.actionsSvc = actionsDomain.LoggingMiddleware(logger)(actionsImpl)
	s.cleanupsSvc = cleanupsDomain.LoggingMiddleware(logger)(cleanupsImpl)
	s.leaderboardSvc = leaderboardDomain.LoggingMiddleware(logger)(leaderboardDomain.NewService(store, chain.NativeSymbol))

	s.actionsHandler = actionsTransport.NewHandler(s.actionsSvc, actionsTransport.Options{
		Headers: actionsTransport.Headers{
			BlockchainIDs: chain.CAIP2(),
			Version:       cfg.Actions.Version,
		},
		StrictParams: cfg.Actions.StrictParams,
		Logger:       logger,
	})

	s.setupMiddleware()
	s.setupRoutes()

	logger.Info("server configured",
		"chain_id", chain.ID,
		"chain", chain.Name,
		"contract", cfg.Chain.ContractAddress,
		"receiver", cfg.Actions.Receiver,
	)
	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

// Chain returns the resolved target chain.
func (s *Server) Chain() chains.Chain {
	return s.chain
}

// Close releases the rate limiter and the RPC connection. The store is
// owned by the caller.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if lc, ok := s.caller.(*evm.LazyCaller); ok {
		lc.Close()
	}
}

func (s *Server) setupMiddleware() {
	// Order matters! Security middleware runs first to block malicious requests early.

	// 1. Real IP and public origin (every later stage reads them)
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. Security filter
	s.router.Use(security.FilterMiddleware(security.Config{
		FilterEnabled: s.cfg.Security.FilterEnabled,
		ExemptPaths:   security.DefaultExemptPaths,
		Reject:        rejecter(s.actionsHandler, http.StatusBadRequest, "BAD_REQUEST", "Invalid request"),
	}))

	// 3. Body size limit
	s.router.Use(security.MaxBodySizeMiddleware(s.cfg.Security.MaxBodySizeKB))

	// 4. Rate limiting
	limit, limiter := ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
		ExemptPaths:    []string{"/health", "/healthz", "/readyz", "/metrics"},
		Reject:         rejecter(s.actionsHandler, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests. Please try again later."),
	})
	s.limiter = limiter
	s.router.Use(limit)

	// 5. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	if s.cfg.Metrics.Enabled {
		s.router.Handle("/metrics", metrics.Handler())
	}
	if s.cfg.Actions.IconPath == "/logo.svg" {
		s.router.Get("/logo.svg", s.handleIcon)
	}

	// Blink actions and their discovery rules
	s.actionsHandler.RegisterDiscoveryRoute(s.router)
	s.router.Route(actionsPrefix, s.actionsHandler.RegisterRoutes)

	cleanupsHandler := cleanupsTransport.NewHandler(s.cleanupsSvc)
	leaderboardHandler := leaderboardTransport.NewHandler(s.leaderboardSvc)

	// Auth middleware for write operations
	requireAuth := func(r chi.Router) {
		if s.cfg.Auth.Type == "api-key" {
			r.Use(auth.Middleware(s.store, writeError))
		}
	}

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(corsMiddleware)
		// Only the REST API is compressed; action responses go out as is.
		r.Use(middleware.Compress(5))

		r.Route("/cleanups", cleanupsHandler.RegisterRoutes)

		r.Group(func(r chi.Router) {
			requireAuth(r)
			r.Get("/auth/whoami", s.handleWhoAmI)
		})

		// Leaderboard - split read/write
		r.Route("/leaderboard", func(r chi.Router) {
			leaderboardHandler.RegisterReadRoutes(r)

			r.Group(func(r chi.Router) {
				requireAuth(r)
				leaderboardHandler.RegisterWriteRoutes(r)
			})
		})
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWhoAmI reports the API key the request authenticated with. The CLI
// uses it to check a key before saving it.
func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	key := auth.GetAPIKeyFromContext(r.Context())
	if key == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "name": key.Name})
}

// readinessResponse is the /readyz body
type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReady checks the database and, when a contract is configured,
// that it has code on the target chain.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := readinessResponse{Status: "ok", Checks: map[string]string{}}

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness: storage unavailable", "error", err)
		resp.Checks["storage"] = "unavailable"
		resp.Status = "unavailable"
	} else {
		resp.Checks["storage"] = "ok"
	}

	if s.contract != nil {
		ok, err := s.contract.HasCode(ctx)
		switch {
		case err != nil:
			s.logger.Warn("readiness: chain unavailable", "error", err)
			resp.Checks["contract"] = "unavailable"
			resp.Status = "unavailable"
		case !ok:
			resp.Checks["contract"] = "no code at address"
			resp.Status = "unavailable"
		default:
			resp.Checks["contract"] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleIcon serves the default action icon.
func (s *Server) handleIcon(w http.ResponseWriter, r *http.Request) {
	data, err := static.ReadFile("static/logo.svg")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Icon unavailable")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
