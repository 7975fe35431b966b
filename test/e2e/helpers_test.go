//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pendergraft/cleanfi/internal/chains/evm"
	"github.com/pendergraft/cleanfi/internal/config"
	"github.com/pendergraft/cleanfi/internal/server"
	"github.com/pendergraft/cleanfi/internal/storage"
	"github.com/pendergraft/cleanfi/pkg/client"
)

const (
	// contractAddress is where the stub contract is installed on anvil.
	contractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	// stubUploader is anvil's second dev account.
	stubUploader = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	stubProofRef = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	AnvilContainer    testcontainers.Container
	ConnString        string
	RPCURL            string
	TestServer        *httptest.Server
	Store             storage.Store
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("cleanfi"),
		postgres.WithUsername("cleanfi"),
		postgres.WithPassword("cleanfi"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return container, connString, nil
}

// setupAnvilE starts a Foundry anvil node and returns its HTTP endpoint
func setupAnvilE(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "ghcr.io/foundry-rs/foundry:latest",
			Entrypoint:   []string{"anvil"},
			Cmd:          []string{"--host", "0.0.0.0", "--chain-id", "31337"},
			ExposedPorts: []string{"8545/tcp"},
			WaitingFor:   wait.ForListeningPort("8545/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to start anvil container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "8545/tcp", "http")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get anvil endpoint: %w", err)
	}

	return container, endpoint, nil
}

// installStubContract puts runtime code at contractAddress that answers
// every call with the same cleanups() record.
func installStubContract(ctx context.Context, rpcURL string) error {
	ret, err := evm.PackCleanupResult(evm.Cleanup{
		ID:        big.NewInt(1),
		Uploader:  common.HexToAddress(stubUploader),
		ProofRef:  stubProofRef,
		Upvotes:   big.NewInt(3),
		Downvotes: big.NewInt(1),
	})
	if err != nil {
		return err
	}

	rc, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return err
	}
	defer rc.Close()

	return rc.CallContext(ctx, nil, "anvil_setCode", common.HexToAddress(contractAddress), hexutil.Encode(returnConstant(ret)))
}

// returnConstant assembles EVM code that copies ret into memory one word at
// a time (PUSH32 word, PUSH2 offset, MSTORE) and returns it.
func returnConstant(ret []byte) []byte {
	var code []byte
	for off := 0; off < len(ret); off += 32 {
		word := make([]byte, 32)
		copy(word, ret[off:])
		code = append(code, 0x7f) // PUSH32
		code = append(code, word...)
		code = append(code, 0x61, byte(off>>8), byte(off)) // PUSH2 off
		code = append(code, 0x52)                          // MSTORE
	}
	size := len(ret)
	code = append(code, 0x61, byte(size>>8), byte(size)) // PUSH2 size
	code = append(code, 0x60, 0x00)                      // PUSH1 0
	code = append(code, 0xf3)                            // RETURN
	return code
}

// startServerE starts the CleanFi server in-process against Postgres and anvil
func startServerE(connString, rpcURL string) (*httptest.Server, storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	cfg.Storage = config.StorageConfig{Type: "postgres", Postgres: config.PostgresConfig{URL: connString}}
	cfg.Auth.Type = "api-key"
	cfg.Logging = config.LoggingConfig{Level: "debug", Format: "text"}
	cfg.RateLimit.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Chain = config.ChainConfig{ID: 31337, RPCURL: rpcURL, ContractAddress: contractAddress}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create server: %w", err)
	}

	return httptest.NewServer(srv.Handler()), store, nil
}

// newClient creates a new API client for the test server
func newClient(apiKey string) *client.Client {
	return client.New(testCtx.TestServer.URL, apiKey)
}

// createTestAPIKey creates a test API key using the store directly
func createTestAPIKey(t *testing.T, name string) string {
	t.Helper()
	key, err := testCtx.Store.CreateAPIKey(context.Background(), name)
	require.NoError(t, err, "Failed to create API key")
	return key
}

// assertAPIError asserts that err is an APIError with the expected status
func assertAPIError(t *testing.T, err error, status int) *client.APIError {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError, got %T", err)
	require.Equal(t, status, apiErr.Status, "status mismatch")
	return apiErr
}
