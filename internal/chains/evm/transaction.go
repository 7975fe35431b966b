package evm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrInvalidTransaction is returned when a serialized transaction cannot be decoded.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Transaction is an unsigned transaction request handed to a wallet for
// signing. Nonce, gas and fee fields are left for the wallet to fill in.
type Transaction struct {
	To      string
	Value   *big.Int
	ChainID int64
	Data    []byte
}

// transactionJSON is the wire schema:
//
//	{"to":"0x…","value":"<wei as decimal string>","chainId":<int>,"data":"0x…"}
//
// Value is a decimal string so clients without 256-bit integers can decode it.
type transactionJSON struct {
	To      string        `json:"to"`
	Value   string        `json:"value"`
	ChainID int64         `json:"chainId"`
	Data    hexutil.Bytes `json:"data"`
}

// NewTransaction builds an unsigned transaction, keeping the recipient in
// the textual form it was configured with.
func NewTransaction(to string, value *big.Int, chainID int64, data []byte) (*Transaction, error) {
	if !common.IsHexAddress(to) {
		return nil, fmt.Errorf("%w: recipient %q is not an address", ErrInvalidTransaction, to)
	}
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value", ErrInvalidTransaction)
	}
	if chainID <= 0 {
		return nil, fmt.Errorf("%w: chain ID must be positive", ErrInvalidTransaction)
	}
	return &Transaction{To: to, Value: value, ChainID: chainID, Data: data}, nil
}

// MarshalJSON implements json.Marshaler.
func (t Transaction) MarshalJSON() ([]byte, error) {
	value := "0"
	if t.Value != nil {
		value = t.Value.String()
	}
	data := t.Data
	if data == nil {
		data = []byte{}
	}
	return json.Marshal(transactionJSON{
		To:      t.To,
		Value:   value,
		ChainID: t.ChainID,
		Data:    data,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Transaction) UnmarshalJSON(b []byte) error {
	var raw transactionJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	value, ok := new(big.Int).SetString(raw.Value, 10)
	if !ok {
		return fmt.Errorf("%w: value %q is not a decimal integer", ErrInvalidTransaction, raw.Value)
	}
	t.To = raw.To
	t.Value = value
	t.ChainID = raw.ChainID
	t.Data = raw.Data
	return nil
}

// Serialize encodes the transaction into the string form embedded in
// action POST responses.
func (t *Transaction) Serialize() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DeserializeTransaction decodes the string produced by Serialize.
func DeserializeTransaction(s string) (*Transaction, error) {
	var t Transaction
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, err
	}
	return &t, nil
}
