package market

import (
	"github.com/injops/dashboard/internal/calc"
	"github.com/shopspring/decimal"
)

// Token is a chain token with the display symbol it was assigned when the
// reference tables were built.
type Token struct {
	UniqueSymbol string `json:"uniqueSymbol"`
	Denom        string `json:"denom"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Decimals     int32  `json:"decimals"`
}

// ValueFromChainFormat converts a raw integer amount of this token into units.
func (t *Token) ValueFromChainFormat(raw decimal.Decimal) decimal.Decimal {
	return calc.FromChainFormat(raw, t.Decimals)
}

// ValueFromSpecialChainFormat converts an amount carried with the extra 10^18 factor.
func (t *Token) ValueFromSpecialChainFormat(raw decimal.Decimal) decimal.Decimal {
	return calc.FromSpecialChainFormat(raw, t.Decimals)
}

// ValueToChainFormat converts units back into the raw integer amount.
func (t *Token) ValueToChainFormat(value decimal.Decimal) decimal.Decimal {
	return calc.ToChainFormat(value, t.Decimals)
}
