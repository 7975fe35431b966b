// Package evm provides the EVM side of CleanFi: native-unit arithmetic,
// unsigned transaction payloads and a client for the CleanFi contract.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// CleanFiABI is the subset of the deployed CleanFi contract interface used here.
const CleanFiABI = `[
	{"type":"function","name":"cleanups","stateMutability":"view",
	 "inputs":[{"name":"","type":"uint256"}],
	 "outputs":[
		{"name":"id","type":"uint256"},
		{"name":"uploader","type":"address"},
		{"name":"ipfsHash","type":"string"},
		{"name":"upvotes","type":"uint256"},
		{"name":"downvotes","type":"uint256"}]},
	{"type":"function","name":"uploadCleanup","stateMutability":"nonpayable",
	 "inputs":[{"name":"_ipfsHash","type":"string"}],"outputs":[]},
	{"type":"function","name":"vote","stateMutability":"payable",
	 "inputs":[{"name":"_cleanupId","type":"uint256"},{"name":"_isUpvote","type":"bool"}],"outputs":[]}
]`

var cleanFiABI = mustParseABI(CleanFiABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("evm: parsing CleanFi ABI: %v", err))
	}
	return parsed
}

// ErrCleanupNotFound is returned when the contract holds no cleanup for an ID.
// The contract reports this as a record with the zero uploader address.
var ErrCleanupNotFound = errors.New("cleanup not found")

// Cleanup is a cleanup record as stored on chain.
type Cleanup struct {
	ID        *big.Int
	Uploader  common.Address
	ProofRef  string
	Upvotes   *big.Int
	Downvotes *big.Int
}

// Caller is the read side of an Ethereum JSON-RPC client. *ethclient.Client
// satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Contract reads CleanFi state through a Caller.
type Contract struct {
	address common.Address
	caller  Caller
}

// NewContract binds a CleanFi contract at address.
func NewContract(address common.Address, caller Caller) *Contract {
	return &Contract{address: address, caller: caller}
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", rpcURL, err)
	}
	return client, nil
}

// Address returns the bound contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// Cleanup calls cleanups(id) at the latest block.
func (c *Contract) Cleanup(ctx context.Context, id *big.Int) (*Cleanup, error) {
	input, err := cleanFiABI.Pack("cleanups", id)
	if err != nil {
		return nil, fmt.Errorf("packing cleanups call: %w", err)
	}

	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling cleanups(%s): %w", id, err)
	}

	values, err := cleanFiABI.Unpack("cleanups", out)
	if err != nil {
		return nil, fmt.Errorf("unpacking cleanups(%s): %w", id, err)
	}
	if len(values) != 5 {
		return nil, fmt.Errorf("unpacking cleanups(%s): got %d values, want 5", id, len(values))
	}

	cleanup := &Cleanup{
		ID:        abi.ConvertType(values[0], new(big.Int)).(*big.Int),
		Uploader:  abi.ConvertType(values[1], common.Address{}).(common.Address),
		ProofRef:  abi.ConvertType(values[2], "").(string),
		Upvotes:   abi.ConvertType(values[3], new(big.Int)).(*big.Int),
		Downvotes: abi.ConvertType(values[4], new(big.Int)).(*big.Int),
	}
	if cleanup.Uploader == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s", ErrCleanupNotFound, id)
	}
	return cleanup, nil
}

// HasCode reports whether any bytecode is deployed at the contract address.
func (c *Contract) HasCode(ctx context.Context) (bool, error) {
	code, err := c.caller.CodeAt(ctx, c.address, nil)
	if err != nil {
		return false, fmt.Errorf("fetching code at %s: %w", c.address.Hex(), err)
	}
	return len(code) > 0, nil
}

// PackVote encodes a vote(cleanupId, isUpvote) call.
func PackVote(id *big.Int, isUpvote bool) ([]byte, error) {
	return cleanFiABI.Pack("vote", id, isUpvote)
}

// PackUploadCleanup encodes an uploadCleanup(proofRef) call.
func PackUploadCleanup(proofRef string) ([]byte, error) {
	return cleanFiABI.Pack("uploadCleanup", proofRef)
}

// PackCleanupResult ABI-encodes a cleanups() return value. Used by fakes
// that stand in for a node.
func PackCleanupResult(c Cleanup) ([]byte, error) {
	return cleanFiABI.Methods["cleanups"].Outputs.Pack(c.ID, c.Uploader, c.ProofRef, c.Upvotes, c.Downvotes)
}

// MethodID returns the 4-byte selector of a CleanFi method.
func MethodID(name string) []byte {
	m, ok := cleanFiABI.Methods[name]
	if !ok {
		return nil
	}
	return m.ID
}
