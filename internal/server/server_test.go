package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/cleanfi/internal/chains/evm"
	"github.com/pendergraft/cleanfi/internal/config"
	"github.com/pendergraft/cleanfi/internal/storage"
)

const (
	testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	uploader     = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

// fakeChain answers cleanups(id) for the IDs it holds and reports code at the contract.
type fakeChain struct {
	cleanups map[int64]evm.Cleanup
	code     []byte
	err      error
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	id := new(big.Int).SetBytes(msg.Data[4:36])
	c, ok := f.cleanups[id.Int64()]
	if !ok {
		c = evm.Cleanup{ID: new(big.Int), Upvotes: new(big.Int), Downvotes: new(big.Int)}
	}
	return evm.PackCleanupResult(c)
}

func (f *fakeChain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.code, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Storage = config.StorageConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "cleanfi.db")},
	}
	cfg.RateLimit.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Auth.Type = "api-key"
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) (*Server, storage.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.New(cfg.Storage, logger)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })

	srv, err := New(cfg, store, logger, opts...)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, srv *Server, method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestActions_Options(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := do(t, srv, http.MethodOptions, "/api/actions/vote", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "eip155:10143", rec.Header().Get("x-blockchain-ids"))
	assert.Equal(t, "2.0", rec.Header().Get("x-action-version"))
	assert.Empty(t, rec.Body.String())
}

func TestActions_NotCompressed(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))
	gzip := http.Header{"Accept-Encoding": {"gzip, deflate, br"}}

	rec := do(t, srv, http.MethodOptions, "/api/actions/vote", nil, gzip)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Empty(t, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/actions/vote?cleanupId=1&type=like", nil, gzip)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.True(t, json.Valid(rec.Body.Bytes()))

	rec = do(t, srv, http.MethodGet, "/api/v1/leaderboard", nil, http.Header{"Accept-Encoding": {"gzip"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestActions_GetMetadata(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := do(t, srv, http.MethodGet, "/api/actions/vote?cleanupId=1&type=like", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var md struct {
		Icon  string `json:"icon"`
		Label string `json:"label"`
		Links struct {
			Actions []struct {
				Href string `json:"href"`
			} `json:"actions"`
		} `json:"links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &md))
	assert.Equal(t, "http://example.com/logo.svg", md.Icon)
	assert.Equal(t, "👍 Like (0.001 MON)", md.Label)
	require.Len(t, md.Links.Actions, 1)
	assert.Equal(t, "/api/actions/vote?cleanupId=1&type=like", md.Links.Actions[0].Href)
}

func TestActions_PostTransaction(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := do(t, srv, http.MethodPost, "/api/actions/vote?cleanupId=7&type=like", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Transaction string `json:"transaction"`
		Message     string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Vote like for Cleanup #7 - 0.001 MON", resp.Message)

	tx, err := evm.DeserializeTransaction(resp.Transaction)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultReceiver, tx.To)
	assert.Equal(t, "1000000000000000", tx.Value.String())
	assert.Equal(t, int64(10143), tx.ChainID)
	assert.Empty(t, tx.Data)
}

func TestActions_PostMissingParams(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := do(t, srv, http.MethodPost, "/api/actions/vote?cleanupId=7", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())

	cfg := testConfig(t)
	cfg.Actions.StrictParams = true
	strict, _ := newTestServer(t, cfg)
	rec = do(t, strict, http.MethodPost, "/api/actions/vote?type=like", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActions_Stake(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chain.ContractAddress = testContract
	srv, _ := newTestServer(t, cfg, WithCaller(&fakeChain{}))

	rec := do(t, srv, http.MethodPost, "/api/actions/stake?cleanupId=3&type=dislike", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Transaction string `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	tx, err := evm.DeserializeTransaction(resp.Transaction)
	require.NoError(t, err)
	assert.Equal(t, testContract, tx.To)
	assert.Equal(t, evm.MethodID("vote"), tx.Data[:4])

	// Without a contract the stake action is unavailable
	plain, _ := newTestServer(t, testConfig(t))
	rec = do(t, plain, http.MethodPost, "/api/actions/stake?cleanupId=3&type=dislike", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestActionsJSON(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := do(t, srv, http.MethodGet, "/actions.json", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rules":[{"pathPattern":"/api/actions/**","apiPath":"/api/actions/**"}]}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	for _, path := range []string{"/health", "/healthz"} {
		rec := do(t, srv, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	}
}

func TestReady(t *testing.T) {
	t.Run("storage only", func(t *testing.T) {
		srv, _ := newTestServer(t, testConfig(t))
		rec := do(t, srv, http.MethodGet, "/readyz", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"storage":"ok"}}`, rec.Body.String())
	})

	tests := []struct {
		name     string
		chain    *fakeChain
		status   int
		contract string
	}{
		{"contract deployed", &fakeChain{code: []byte{0x60, 0x80}}, http.StatusOK, "ok"},
		{"no code", &fakeChain{}, http.StatusServiceUnavailable, "no code at address"},
		{"rpc down", &fakeChain{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Chain.ContractAddress = testContract
			srv, _ := newTestServer(t, cfg, WithCaller(tt.chain))

			rec := do(t, srv, http.MethodGet, "/readyz", nil, nil)
			assert.Equal(t, tt.status, rec.Code)

			var resp readinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.contract, resp.Checks["contract"])
			assert.Equal(t, "ok", resp.Checks["storage"])
		})
	}
}

func TestCleanups(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chain.ContractAddress = testContract
	chain := &fakeChain{cleanups: map[int64]evm.Cleanup{
		7: {
			ID:        big.NewInt(7),
			Uploader:  common.HexToAddress(uploader),
			ProofRef:  "QmProof",
			Upvotes:   big.NewInt(4),
			Downvotes: big.NewInt(1),
		},
	}}
	srv, _ := newTestServer(t, cfg, WithCaller(chain))

	rec := do(t, srv, http.MethodGet, "/api/v1/cleanups/7", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{
		"id": 7,
		"uploader": "`+uploader+`",
		"proofRef": "QmProof",
		"proofUrl": "https://ipfs.io/ipfs/QmProof",
		"upvotes": 4,
		"downvotes": 1
	}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/v1/cleanups/8", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/cleanups", bytes.NewBufferString(`{"proofRef":"QmNew"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tx, err := evm.DeserializeTransaction(rec.Body.String())
	require.NoError(t, err)
	assert.Equal(t, testContract, tx.To)
	assert.Equal(t, evm.MethodID("uploadCleanup"), tx.Data[:4])
}

func TestCleanups_NotConfigured(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := do(t, srv, http.MethodGet, "/api/v1/cleanups/7", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_CONFIGURED")
}

func TestLeaderboard_AuthOnWrites(t *testing.T) {
	srv, store := newTestServer(t, testConfig(t))
	ctx := context.Background()

	body := `{"cleanups":12,"votes":30,"rewardsWei":"25500000000000000000"}`

	rec := do(t, srv, http.MethodPut, "/api/v1/leaderboard/"+uploader, bytes.NewBufferString(body), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	key, err := store.CreateAPIKey(ctx, "ops")
	require.NoError(t, err)

	rec = do(t, srv, http.MethodPut, "/api/v1/leaderboard/"+uploader, bytes.NewBufferString(body),
		http.Header{"X-Api-Key": []string{key}})
	require.Equal(t, http.StatusOK, rec.Code)

	// Reads are public
	rec = do(t, srv, http.MethodGet, "/api/v1/leaderboard?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Data []struct {
			Rank    int    `json:"rank"`
			Address string `json:"address"`
			Rewards string `json:"rewards"`
		} `json:"data"`
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 5, list.Limit)
	require.Len(t, list.Data, 1)
	assert.Equal(t, 1, list.Data[0].Rank)
	assert.Equal(t, uploader, list.Data[0].Address)
	assert.Equal(t, "25.5 MON", list.Data[0].Rewards)
}

func TestWhoAmI(t *testing.T) {
	srv, store := newTestServer(t, testConfig(t))

	rec := do(t, srv, http.MethodGet, "/api/v1/auth/whoami", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	key, err := store.CreateAPIKey(context.Background(), "ci")
	require.NoError(t, err)

	rec = do(t, srv, http.MethodGet, "/api/v1/auth/whoami", nil, http.Header{"X-Api-Key": []string{key}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":true,"name":"ci"}`, rec.Body.String())
}

func TestLeaderboard_NoAuthMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Type = "none"
	srv, _ := newTestServer(t, cfg)

	rec := do(t, srv, http.MethodPut, "/api/v1/leaderboard/"+uploader, bytes.NewBufferString(`{"cleanups":1,"votes":0,"rewardsWei":"0"}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/auth/whoami", nil, nil)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())
}

func TestAPI_CORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := do(t, srv, http.MethodOptions, "/api/v1/leaderboard/"+uploader, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, POST, PUT, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
}

func TestRateLimit_ActionShapedRejection(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstSize: 1, CleanupMinutes: 1}
	srv, _ := newTestServer(t, cfg)

	rec := do(t, srv, http.MethodGet, "/api/actions/vote?cleanupId=1&type=like", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/actions/vote?cleanupId=1&type=like", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "eip155:10143", rec.Header().Get("x-blockchain-ids"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests. Please try again later."}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/v1/leaderboard", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")

	// Probes are never limited
	rec = do(t, srv, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityFilter(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := do(t, srv, http.MethodGet, "/wp-admin/", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_REQUEST")

	rec = do(t, srv, http.MethodGet, "/api/actions/vote%00", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "2.0", rec.Header().Get("x-action-version"))
	assert.JSONEq(t, `{"error":"Invalid request"}`, rec.Body.String())
}

func TestIcon(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := do(t, srv, http.MethodGet, "/logo.svg", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")
}

func TestMetrics_DisabledRouteAbsent(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t))

	rec := do(t, srv, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNew_ChainSelection(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chain.ID = 31337
	srv, _ := newTestServer(t, cfg)

	assert.Equal(t, "ETH", srv.Chain().NativeSymbol)
	rec := do(t, srv, http.MethodOptions, "/api/actions/vote", nil, nil)
	assert.Equal(t, "eip155:31337", rec.Header().Get("x-blockchain-ids"))

	rec = do(t, srv, http.MethodPost, "/api/actions/vote?cleanupId=1&type=dislike", nil, nil)
	assert.Contains(t, rec.Body.String(), "0.001 ETH")
}

func TestNew_ChainsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[chain]]
id = 11155111
name = "Sepolia"
rpc_url = "https://rpc.sepolia.org"
native_symbol = "ETH"
`), 0644))

	cfg := testConfig(t)
	cfg.Chain.ChainsFile = path
	cfg.Chain.ID = 11155111
	srv, _ := newTestServer(t, cfg)
	assert.Equal(t, "eip155:11155111", srv.Chain().CAIP2())
}

func TestNew_UnknownChain(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chain.ID = 424242

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.New(cfg.Storage, logger)
	require.NoError(t, err)
	defer store.Close()

	_, err = New(cfg, store, logger)
	assert.Error(t, err)
}
