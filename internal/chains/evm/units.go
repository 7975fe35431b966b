package evm

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidAmount is returned for amounts that cannot be represented in wei.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseUnits converts a decimal amount such as "0.001" into the smallest
// denomination, failing rather than rounding when precision would be lost.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	if amount == "" || strings.HasPrefix(amount, "-") || strings.HasPrefix(amount, "+") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" || len(frac) > decimals {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	for _, c := range digits {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
	}

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return v, nil
}

// ParseEther converts native units (18 decimals) to wei.
func ParseEther(amount string) (*big.Int, error) {
	return ParseUnits(amount, 18)
}

// MustParseEther is ParseEther for constants.
func MustParseEther(amount string) *big.Int {
	v, err := ParseEther(amount)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatUnits renders an amount in the smallest denomination as a decimal
// string with trailing zeros removed, e.g. 25500000000000000000 -> "25.5".
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	neg := v.Sign() < 0
	s := new(big.Int).Abs(v).String()
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}

	whole, frac := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// FormatEther renders wei as native units.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, 18)
}
