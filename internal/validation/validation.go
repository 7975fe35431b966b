// Package validation provides input validation for CleanFi.
package validation

import (
	"errors"
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Amounts in native units: whole part plus at most 18 fractional digits (wei precision)
var amountRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,18})?$`)

// ValidateAddress validates an EVM address
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	for _, c := range addr[2:] {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return errors.New("invalid address: contains non-hex characters")
		}
	}
	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID int64) error {
	if chainID <= 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}

// ValidateActionVersion checks an action protocol version such as "2.0".
func ValidateActionVersion(v string) error {
	if v == "" {
		return errors.New("version cannot be empty")
	}
	if !semver.IsValid("v" + strings.TrimPrefix(v, "v")) {
		return errors.New("invalid version: must be in format MAJOR.MINOR")
	}
	return nil
}

// ValidateAmount checks a decimal amount of native units, e.g. "0.001".
func ValidateAmount(amount string) error {
	if !amountRegex.MatchString(amount) {
		return errors.New("invalid amount: must be a non-negative decimal with at most 18 fractional digits")
	}
	return nil
}

// ParseCleanupID parses a cleanup identifier. Identifiers are uint256 on
// chain and start at 1.
func ParseCleanupID(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("cleanup id is required")
	}
	id, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New("cleanup id must be a decimal integer")
	}
	if id.Sign() <= 0 {
		return nil, errors.New("cleanup id must be positive")
	}
	if id.BitLen() > 256 {
		return nil, errors.New("cleanup id out of range")
	}
	return id, nil
}

// ValidateProofRef validates a content-addressed proof reference (e.g. an IPFS CID)
func ValidateProofRef(ref string) error {
	if ref == "" {
		return errors.New("proof reference is required")
	}
	if len(ref) > 128 {
		return errors.New("proof reference too long (max 128 chars)")
	}
	if strings.ContainsAny(ref, " \t\r\n/?#") {
		return errors.New("proof reference contains invalid characters")
	}
	return nil
}
