package evm

import (
	"context"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/pendergraft/cleanfi/internal/observability/metrics"
)

// LazyCaller is a Caller that dials its RPC endpoint on first use and
// reuses the connection afterwards. A failed dial is retried on the next call.
type LazyCaller struct {
	rpcURL string

	mu     sync.Mutex
	client *ethclient.Client
}

// NewLazyCaller creates a LazyCaller for rpcURL without connecting.
func NewLazyCaller(rpcURL string) *LazyCaller {
	return &LazyCaller{rpcURL: rpcURL}
}

func (l *LazyCaller) get(ctx context.Context) (*ethclient.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.client != nil {
		return l.client, nil
	}
	client, err := Dial(ctx, l.rpcURL)
	if err != nil {
		return nil, err
	}
	l.client = client
	return client, nil
}

// CallContract executes a read-only call.
func (l *LazyCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	client, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveRPC("eth_call", time.Now())
	return client.CallContract(ctx, msg, blockNumber)
}

// CodeAt returns the code deployed at account.
func (l *LazyCaller) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	client, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveRPC("eth_getCode", time.Now())
	return client.CodeAt(ctx, account, blockNumber)
}

// Close releases the connection, if one was made.
func (l *LazyCaller) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		l.client.Close()
		l.client = nil
	}
}
