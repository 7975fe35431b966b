// Package chains describes the networks CleanFi can target and resolves
// them by chain ID.
package chains

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"
)

// NamespaceEIP155 is the CAIP-2 namespace for EVM chains
const NamespaceEIP155 = "eip155"

// Chain is a static network descriptor consumed by the wallet-facing layer.
type Chain struct {
	ID           int64  `toml:"id"`
	Name         string `toml:"name"`
	Namespace    string `toml:"namespace,omitempty"`
	RPCURL       string `toml:"rpc_url"`
	NativeSymbol string `toml:"native_symbol"`
	Decimals     int    `toml:"decimals,omitempty"`
	Testnet      bool   `toml:"testnet,omitempty"`
}

// CAIP2 returns the chain identifier in namespace:reference form, e.g. "eip155:10143".
func (c Chain) CAIP2() string {
	ns := c.Namespace
	if ns == "" {
		ns = NamespaceEIP155
	}
	return ns + ":" + strconv.FormatInt(c.ID, 10)
}

// Built-in networks
var (
	MonadTestnet = Chain{
		ID:           10143,
		Name:         "Monad Testnet",
		Namespace:    NamespaceEIP155,
		RPCURL:       "https://testnet-rpc.monad.xyz",
		NativeSymbol: "MON",
		Decimals:     18,
		Testnet:      true,
	}

	Hardhat = Chain{
		ID:           31337,
		Name:         "Hardhat",
		Namespace:    NamespaceEIP155,
		RPCURL:       "http://127.0.0.1:8545",
		NativeSymbol: "ETH",
		Decimals:     18,
		Testnet:      true,
	}
)

// Registry holds the known chain descriptors
type Registry struct {
	chains map[int64]Chain
}

// NewRegistry creates an empty chain registry
func NewRegistry() *Registry {
	return &Registry{
		chains: make(map[int64]Chain),
	}
}

// DefaultRegistry returns a registry with the target testnet and the
// local development chain.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(MonadTestnet)
	r.Register(Hardhat)
	return r
}

// Register adds or replaces a chain descriptor
func (r *Registry) Register(c Chain) {
	if c.Namespace == "" {
		c.Namespace = NamespaceEIP155
	}
	if c.Decimals == 0 {
		c.Decimals = 18
	}
	r.chains[c.ID] = c
}

// Get retrieves a chain descriptor by ID
func (r *Registry) Get(id int64) (Chain, bool) {
	c, ok := r.chains[id]
	return c, ok
}

// List returns all registered chains ordered by ID
func (r *Registry) List() []Chain {
	list := make([]Chain, 0, len(r.chains))
	for _, c := range r.chains {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// chainsFile is the on-disk layout of CHAINS_FILE:
//
//	[[chain]]
//	id = 10143
//	name = "Monad Testnet"
//	rpc_url = "https://testnet-rpc.monad.xyz"
//	native_symbol = "MON"
type chainsFile struct {
	Chain []Chain `toml:"chain"`
}

// LoadFile registers every chain declared in a TOML file. Entries with an
// existing ID replace the built-in descriptor.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading chains file: %w", err)
	}

	var f chainsFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return fmt.Errorf("parsing chains file: %w", err)
	}

	for i, c := range f.Chain {
		if c.ID <= 0 {
			return fmt.Errorf("chains file entry %d: id must be positive", i)
		}
		if c.RPCURL == "" {
			return fmt.Errorf("chains file entry %d (%d): rpc_url is required", i, c.ID)
		}
		if c.NativeSymbol == "" {
			return fmt.Errorf("chains file entry %d (%d): native_symbol is required", i, c.ID)
		}
		r.Register(c)
	}
	return nil
}

// Resolve returns the descriptor for id, with rpcOverride applied when set.
func (r *Registry) Resolve(id int64, rpcOverride string) (Chain, error) {
	c, ok := r.Get(id)
	if !ok {
		return Chain{}, fmt.Errorf("unknown chain ID %d", id)
	}
	if rpcOverride != "" {
		c.RPCURL = rpcOverride
	}
	return c, nil
}
