package market

import (
	"errors"
	"fmt"
	"strings"

	"github.com/injops/dashboard/internal/calc"
	"github.com/injops/dashboard/internal/chain"
	"github.com/shopspring/decimal"
)

var (
	ErrTokenNotFound   = errors.New("token not found")
	ErrMalformedTicker = errors.New("malformed ticker")
)

// SpotMarket joins a spot market's parameters with its base and quote tokens.
type SpotMarket struct {
	ID     string
	Base   *Token
	Quote  *Token
	Native chain.SpotMarket
}

func NewSpotMarket(native chain.SpotMarket, tokens map[string]*Token) (*SpotMarket, error) {
	base, ok := tokens[native.BaseDenom]
	if !ok {
		return nil, fmt.Errorf("base denom %q: %w", native.BaseDenom, ErrTokenNotFound)
	}
	quote, ok := tokens[native.QuoteDenom]
	if !ok {
		return nil, fmt.Errorf("quote denom %q: %w", native.QuoteDenom, ErrTokenNotFound)
	}
	return &SpotMarket{ID: native.ID, Base: base, Quote: quote, Native: native}, nil
}

func (m *SpotMarket) TradingPair() string {
	return m.Base.UniqueSymbol + "-" + m.Quote.UniqueSymbol
}

func (m *SpotMarket) QuantityFromChainFormat(q decimal.Decimal) decimal.Decimal {
	return m.Base.ValueFromChainFormat(q)
}

// PriceFromChainFormat scales a chain price (quote units per base unit) by
// 10^(base decimals - quote decimals).
func (m *SpotMarket) PriceFromChainFormat(p decimal.Decimal) decimal.Decimal {
	return p.Shift(m.Base.Decimals - m.Quote.Decimals)
}

func (m *SpotMarket) QuantityFromSpecialChainFormat(q decimal.Decimal) decimal.Decimal {
	return m.QuantityFromChainFormat(calc.StripSpecialFormat(q))
}

func (m *SpotMarket) PriceFromSpecialChainFormat(p decimal.Decimal) decimal.Decimal {
	return m.PriceFromChainFormat(calc.StripSpecialFormat(p))
}

func (m *SpotMarket) MinPriceTickSize() decimal.Decimal {
	return m.PriceFromChainFormat(m.Native.MinPriceTickSize)
}

func (m *SpotMarket) MinQuantityTickSize() decimal.Decimal {
	return m.QuantityFromChainFormat(m.Native.MinQuantityTickSize)
}

func (m *SpotMarket) MakerFeeRate() decimal.Decimal { return m.Native.MakerFeeRate }
func (m *SpotMarket) TakerFeeRate() decimal.Decimal { return m.Native.TakerFeeRate }

// DerivativeMarket joins a derivative market's parameters with its quote token.
// The base side exists only as the first half of the ticker.
type DerivativeMarket struct {
	ID     string
	Quote  *Token
	Native chain.DerivativeMarket

	baseSymbol string
}

func NewDerivativeMarket(native chain.DerivativeMarket, tokens map[string]*Token) (*DerivativeMarket, error) {
	quote, ok := tokens[native.QuoteDenom]
	if !ok {
		return nil, fmt.Errorf("quote denom %q: %w", native.QuoteDenom, ErrTokenNotFound)
	}
	base, err := TickerBase(native.Ticker)
	if err != nil {
		return nil, err
	}
	return &DerivativeMarket{ID: native.ID, Quote: quote, Native: native, baseSymbol: base}, nil
}

// TickerBase returns the part of a "BASE/QUOTE" ticker before the slash.
func TickerBase(ticker string) (string, error) {
	parts := strings.Split(ticker, "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		return "", fmt.Errorf("%q: %w", ticker, ErrMalformedTicker)
	}
	return strings.TrimSpace(parts[0]), nil
}

func (m *DerivativeMarket) BaseSymbol() string {
	return m.baseSymbol
}

func (m *DerivativeMarket) TradingPair() string {
	return m.baseSymbol + "-" + m.Quote.UniqueSymbol
}

// QuantityFromChainFormat is the identity: derivative quantities carry no
// base token scaling.
func (m *DerivativeMarket) QuantityFromChainFormat(q decimal.Decimal) decimal.Decimal {
	return q
}

func (m *DerivativeMarket) PriceFromChainFormat(p decimal.Decimal) decimal.Decimal {
	return p.Shift(-m.Quote.Decimals)
}

func (m *DerivativeMarket) QuantityFromSpecialChainFormat(q decimal.Decimal) decimal.Decimal {
	return m.QuantityFromChainFormat(calc.StripSpecialFormat(q))
}

func (m *DerivativeMarket) PriceFromSpecialChainFormat(p decimal.Decimal) decimal.Decimal {
	return m.PriceFromChainFormat(calc.StripSpecialFormat(p))
}

func (m *DerivativeMarket) MinPriceTickSize() decimal.Decimal {
	return m.PriceFromChainFormat(m.Native.MinPriceTickSize)
}

func (m *DerivativeMarket) MinQuantityTickSize() decimal.Decimal {
	return m.QuantityFromChainFormat(m.Native.MinQuantityTickSize)
}

func (m *DerivativeMarket) MakerFeeRate() decimal.Decimal { return m.Native.MakerFeeRate }
func (m *DerivativeMarket) TakerFeeRate() decimal.Decimal { return m.Native.TakerFeeRate }

func (m *DerivativeMarket) OracleBase() string  { return m.Native.OracleBase }
func (m *DerivativeMarket) OracleQuote() string { return m.Native.OracleQuote }
func (m *DerivativeMarket) OracleType() string  { return m.Native.OracleType }

func (m *DerivativeMarket) Oracle() chain.Oracle {
	return chain.Oracle{
		Base:        m.Native.OracleBase,
		Quote:       m.Native.OracleQuote,
		Type:        m.Native.OracleType,
		ScaleFactor: m.Native.OracleScaleFactor,
	}
}
