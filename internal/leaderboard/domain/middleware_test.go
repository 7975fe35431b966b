package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/cleanfi/internal/auth"
	"github.com/pendergraft/cleanfi/internal/storage"
)

type staticKeys struct{}

func (staticKeys) ValidateAPIKey(ctx context.Context, key string) (*storage.APIKey, error) {
	return &storage.APIKey{ID: "k1", Name: "ops"}, nil
}

func TestLoggingMiddleware_UpdateLogsKeyName(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	svc := LoggingMiddleware(logger)(NewService(newMockStore(), "MON"))

	var updateErr error
	handler := auth.Middleware(staticKeys{}, func(w http.ResponseWriter, status int, code, message string) {
		w.WriteHeader(status)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, updateErr = svc.Update(r.Context(), alice, UpdateRequest{Cleanups: 3, Votes: 1, RewardsWei: "0"})
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/leaderboard/"+alice, nil)
	req.Header.Set("X-API-Key", "cfi_key_test")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NoError(t, updateErr)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "Update", entry["msg"])
	assert.Equal(t, "ops", entry["key"])
	assert.Equal(t, alice, entry["address"])
	assert.Equal(t, float64(3), entry["cleanups"])
}

func TestLoggingMiddleware_PassesReadsThrough(t *testing.T) {
	var logs bytes.Buffer
	store := newMockStore()
	svc := LoggingMiddleware(slog.New(slog.NewJSONHandler(&logs, nil)))(NewService(store, "MON"))

	n, err := svc.Import(context.Background(), []ImportEntry{{Address: bob, Cleanups: 1, Rewards: "1.5"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := svc.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1.5 MON", entries[0].Rewards)

	got, err := svc.Get(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Cleanups)

	assert.Contains(t, logs.String(), `"msg":"Import"`)
	assert.Contains(t, logs.String(), `"imported":1`)
}
