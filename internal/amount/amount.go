// Package amount converts user supplied native-unit amounts into exact
// on-chain base units and back.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the base-unit exponent of the reference chain (wei per ether).
const NativeDecimals = 18

const (
	// maxBaseUnitBits is the width of an on-chain uint256 value.
	maxBaseUnitBits = 256
	// maxDigits bounds the written significand, trailing zeros included.
	maxDigits = 100
	// maxExponent bounds scientific notation; 10^78 wei already overflows uint256.
	maxExponent = 78
)

// ErrInvalidAmount is returned for amounts that are empty, unparseable,
// non-positive or finer than one base unit.
var ErrInvalidAmount = errors.New("invalid amount")

// Parse validates a raw amount string and returns it as an exact decimal.
// No rounding is applied.
func Parse(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, trimmed)
	}
	// Bound the input before scaling: Shift and BigInt materialize 10^exp.
	if exp := d.Exponent(); exp > maxExponent || exp < -maxDigits {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, trimmed)
	}
	if d.NumDigits() > maxDigits {
		return decimal.Decimal{}, fmt.Errorf("%w: too many digits", ErrInvalidAmount)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if _, err := ToBaseUnits(d, NativeDecimals); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

// ToBaseUnits scales a native-unit amount by 10^decimals. Amounts that do not
// land on a whole base unit are rejected instead of being truncated, as are
// values that do not fit in a uint256.
func ToBaseUnits(d decimal.Decimal, decimals int) (*big.Int, error) {
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, decimals)
	}
	v := scaled.BigInt()
	if v.BitLen() > maxBaseUnitBits {
		return nil, fmt.Errorf("%w: exceeds %d-bit base unit range", ErrInvalidAmount, maxBaseUnitBits)
	}
	return v, nil
}

// FromBaseUnits renders base units as a native-unit decimal string without
// trailing zeros, e.g. 1500000000000000000 -> "1.5".
func FromBaseUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// Fiat multiplies a native amount by a unit price and rounds to places
// decimal places for display. The result is never used for on-chain values.
func Fiat(native, unitPrice decimal.Decimal, places int32) string {
	return native.Mul(unitPrice).StringFixed(places)
}
