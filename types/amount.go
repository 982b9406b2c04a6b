package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the number of decimals of the AGT token.
const DefaultDecimals uint8 = 18

// FormatUnits renders a base-unit amount as a decimal token amount, e.g.
// 1500000000000000000 with 18 decimals becomes "1.5".
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// ParseUnits converts a decimal token amount into base units. Amounts with more
// fractional digits than the token supports are rejected.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}
	return scaled.BigInt(), nil
}

// AddAmounts returns a + b without mutating either operand. Nil values count as
// zero.
func AddAmounts(a, b *big.Int) *big.Int {
	out := new(big.Int)
	if a != nil {
		out.Set(a)
	}
	if b != nil {
		out.Add(out, b)
	}
	return out
}

// Covers reports whether have >= need. A nil have covers only a zero or nil need.
func Covers(have, need *big.Int) bool {
	if need == nil || need.Sign() == 0 {
		return true
	}
	if have == nil {
		return false
	}
	return have.Cmp(need) >= 0
}
