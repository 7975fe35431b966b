// Package transport provides HTTP handlers for the Blink actions.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/cleanfi/internal/actions/domain"
	"github.com/pendergraft/cleanfi/internal/middleware/realip"
	"github.com/pendergraft/cleanfi/internal/observability/metrics"
)

// Service defines the action service interface for HTTP transport.
type Service interface {
	Describe(ctx context.Context, kind domain.Kind, req domain.DescribeRequest) (*domain.Metadata, error)
	Build(ctx context.Context, kind domain.Kind, req domain.BuildRequest) (*domain.TransactionResponse, error)
}

// Options configures a Handler.
type Options struct {
	Headers Headers

	// StrictParams answers a POST with missing parameters with 400 instead of 500.
	StrictParams bool

	Logger *slog.Logger
}

// Handler handles HTTP requests for the action endpoints.
type Handler struct {
	svc    Service
	opts   Options
	logger *slog.Logger
}

// NewHandler creates a new actions HTTP handler.
func NewHandler(svc Service, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, opts: opts, logger: logger}
}

// RegisterRoutes registers the action endpoints on a router mounted at
// /api/actions. Every method reaches Handle so rejected methods still carry
// the action headers.
func (h *Handler) RegisterRoutes(r chi.Router) {
	for _, kind := range []domain.Kind{domain.KindVote, domain.KindStake} {
		r.HandleFunc("/"+string(kind), h.adapt(kind))
	}
}

// RegisterDiscoveryRoute registers /actions.json on the root router.
func (h *Handler) RegisterDiscoveryRoute(r chi.Router) {
	r.Get("/actions.json", func(w http.ResponseWriter, r *http.Request) {
		write(w, h.Rules())
	})
}

// Handle resolves an action request. It has no side effects besides
// logging and metrics.
func (h *Handler) Handle(ctx context.Context, kind domain.Kind, req Request) Response {
	var resp Response
	switch req.Method {
	case http.MethodOptions:
		resp = Response{Status: http.StatusOK, Header: h.opts.Headers.Header()}
	case http.MethodGet:
		resp = h.describe(ctx, kind, req)
	case http.MethodPost:
		resp = h.build(ctx, kind, req)
	default:
		resp = h.errorResponse(http.StatusMethodNotAllowed, "Method not allowed")
	}
	metrics.ActionRequest(string(kind), req.Method, resp.Status)
	return resp
}

// Rules returns the /actions.json response.
func (h *Handler) Rules() Response {
	return h.jsonResponse(http.StatusOK, Rules{Rules: []Rule{{
		PathPattern: "/api/actions/**",
		APIPath:     "/api/actions/**",
	}}})
}

// Reject returns a writer for action requests refused before they reach
// the handler, e.g. by the rate limiter. The body keeps the action error
// schema and the protocol headers.
func (h *Handler) Reject(status int, message string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.errorResponse(status, message)
		metrics.ActionRequest(actionFromPath(r.URL.Path), r.Method, resp.Status)
		write(w, resp)
	}
}

// actionFromPath returns the action name from /api/actions/<name>.
func actionFromPath(path string) string {
	name := path[strings.LastIndex(path, "/")+1:]
	if name == "" {
		return "unknown"
	}
	return name
}

func (h *Handler) describe(ctx context.Context, kind domain.Kind, req Request) Response {
	md, err := h.svc.Describe(ctx, kind, domain.DescribeRequest{
		CleanupID:  optional(req.Query, "cleanupId"),
		Type:       optional(req.Query, "type"),
		RequestURL: req.URL,
	})
	if err != nil {
		return h.failure(kind, err)
	}
	return h.jsonResponse(http.StatusOK, md)
}

func (h *Handler) build(ctx context.Context, kind domain.Kind, req Request) Response {
	resp, err := h.svc.Build(ctx, kind, domain.BuildRequest{
		CleanupID: req.Query.Get("cleanupId"),
		Type:      req.Query.Get("type"),
	})
	if err != nil {
		return h.failure(kind, err)
	}
	return h.jsonResponse(http.StatusOK, resp)
}

// failure maps a service error to an action error response. Internal
// causes are logged, never returned.
func (h *Handler) failure(kind domain.Kind, err error) Response {
	switch {
	case errors.Is(err, domain.ErrMissingParam) && h.opts.StrictParams:
		return h.errorResponse(http.StatusBadRequest, "Missing required parameter")
	case errors.Is(err, domain.ErrInvalidCleanupID):
		return h.errorResponse(http.StatusBadRequest, "Invalid cleanup ID")
	case errors.Is(err, domain.ErrInvalidVoteType):
		return h.errorResponse(http.StatusBadRequest, "Invalid vote type")
	case errors.Is(err, domain.ErrNotConfigured):
		return h.errorResponse(http.StatusServiceUnavailable, "Contract not configured")
	}
	h.logger.Error("action request failed", "action", kind, "error", err)
	return h.errorResponse(http.StatusInternalServerError, "Internal server error")
}

func (h *Handler) errorResponse(status int, message string) Response {
	return h.jsonResponse(status, errorBody{Error: message})
}

func (h *Handler) jsonResponse(status int, v any) Response {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	body := []byte(`{"error":"Internal server error"}`)
	if err := enc.Encode(v); err != nil {
		h.logger.Error("encoding action response", "error", err)
		status = http.StatusInternalServerError
	} else {
		body = bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	}
	return Response{Status: status, Header: h.opts.Headers.Header(), Body: body}
}

// adapt turns Handle into a chi handler.
func (h *Handler) adapt(kind domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		write(w, h.Handle(r.Context(), kind, Request{
			Method: r.Method,
			URL:    requestURL(r),
			Query:  r.URL.Query(),
		}))
	}
}

// requestURL reconstructs the absolute URL of r from its public origin.
func requestURL(r *http.Request) *url.URL {
	u := *r.URL
	origin := realip.GetOrigin(r)
	u.Scheme = origin.Scheme
	u.Host = origin.Host
	return &u
}

func write(w http.ResponseWriter, resp Response) {
	for key, values := range resp.Header {
		w.Header()[key] = values
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		w.Write(resp.Body)
	}
}

// optional returns nil when key is absent from q.
func optional(q url.Values, key string) *string {
	values, ok := q[key]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}
