package market

import (
	"errors"
	"testing"

	"github.com/injops/dashboard/internal/chain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestToken_Conversions(t *testing.T) {
	tests := []struct {
		name     string
		decimals int32
		raw      string
		value    string
		special  string
	}{
		{name: "inj", decimals: 18, raw: "2000000000000000000", value: "2", special: "0.000000000000000002"},
		{name: "usdt", decimals: 6, raw: "1234567", value: "1.234567", special: "0.000000000000000001234567"},
		{name: "no decimals", decimals: 0, raw: "5", value: "5", special: "0.000000000000000005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &Token{UniqueSymbol: tt.name, Denom: tt.name, Decimals: tt.decimals}
			raw := dec(tt.raw)

			v := tok.ValueFromChainFormat(raw)
			assert.True(t, dec(tt.value).Equal(v), "value: got %s", v)

			s := tok.ValueFromSpecialChainFormat(raw)
			assert.True(t, dec(tt.special).Equal(s), "special: got %s", s)
			assert.True(t, v.Div(decimal.New(1, 18)).Equal(s))

			back := tok.ValueToChainFormat(v)
			assert.True(t, raw.Equal(back), "round trip: got %s", back)
		})
	}
}

func TestSpotMarket_Conversions(t *testing.T) {
	inj := &Token{UniqueSymbol: "INJ", Denom: "inj", Decimals: 18}
	usdt := &Token{UniqueSymbol: "USDT", Denom: "peggy0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6}
	tokens := map[string]*Token{inj.Denom: inj, usdt.Denom: usdt}

	m, err := NewSpotMarket(chain.SpotMarket{
		ID:                  "0xa508cb32923323679f29a032c70342c147c17d0145625922b0ef22e955c844c0",
		BaseDenom:           inj.Denom,
		QuoteDenom:          usdt.Denom,
		MakerFeeRate:        dec("-0.0001"),
		TakerFeeRate:        dec("0.001"),
		MinPriceTickSize:    dec("0.000000000000001"),
		MinQuantityTickSize: dec("1000000000000000"),
	}, tokens)
	require.NoError(t, err)

	assert.Equal(t, "INJ-USDT", m.TradingPair())
	assert.True(t, dec("1000000000000").Equal(m.PriceFromChainFormat(decimal.NewFromInt(1))))
	assert.True(t, dec("0.001").Equal(m.MinPriceTickSize()), "got %s", m.MinPriceTickSize())
	assert.True(t, dec("0.001").Equal(m.MinQuantityTickSize()), "got %s", m.MinQuantityTickSize())
	assert.True(t, dec("2.5").Equal(m.QuantityFromChainFormat(dec("2500000000000000000"))))
	assert.True(t, dec("2.5").Equal(m.QuantityFromSpecialChainFormat(dec("2500000000000000000000000000000000000"))))
	assert.True(t, dec("12.5").Equal(m.PriceFromSpecialChainFormat(dec("12500000"))))
	assert.True(t, dec("-0.0001").Equal(m.MakerFeeRate()))
	assert.True(t, dec("0.001").Equal(m.TakerFeeRate()))
}

func TestSpotMarket_MissingToken(t *testing.T) {
	_, err := NewSpotMarket(chain.SpotMarket{ID: "0x1", BaseDenom: "inj", QuoteDenom: "unknown"},
		map[string]*Token{"inj": {UniqueSymbol: "INJ", Denom: "inj", Decimals: 18}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenNotFound))
}

func TestDerivativeMarket_Conversions(t *testing.T) {
	usdt := &Token{UniqueSymbol: "USDT", Denom: "peggy0xusdt", Decimals: 6}
	m, err := NewDerivativeMarket(chain.DerivativeMarket{
		ID:                  "0x4ca0f92fc28be0c9761326016b5a1a2177dd6375558365116b5bdda9abc229ce",
		Ticker:              "BTC/USDT PERP",
		QuoteDenom:          usdt.Denom,
		OracleBase:          "BTC",
		OracleQuote:         "USDT",
		OracleType:          "bandibc",
		MinPriceTickSize:    dec("1000000"),
		MinQuantityTickSize: dec("0.0001"),
	}, map[string]*Token{usdt.Denom: usdt})
	require.NoError(t, err)

	assert.Equal(t, "BTC", m.BaseSymbol())
	assert.Equal(t, "BTC-USDT", m.TradingPair())
	assert.True(t, dec("1").Equal(m.MinPriceTickSize()))
	assert.True(t, dec("0.0001").Equal(m.MinQuantityTickSize()))
	assert.True(t, dec("3").Equal(m.QuantityFromChainFormat(dec("3"))))
	assert.True(t, dec("0.5").Equal(m.QuantityFromSpecialChainFormat(dec("500000000000000000"))))
	assert.True(t, dec("65000").Equal(m.PriceFromSpecialChainFormat(dec("65000000000000000000000000000"))))

	o := m.Oracle()
	assert.Equal(t, "BTC", o.Base)
	assert.Equal(t, "USDT", m.OracleQuote())
	assert.Equal(t, "bandibc", m.OracleType())
}

func TestTickerBase(t *testing.T) {
	tests := []struct {
		ticker  string
		base    string
		wantErr bool
	}{
		{ticker: "INJ/USDT PERP", base: "INJ"},
		{ticker: "ETH/USDT", base: "ETH"},
		{ticker: "NOSLASH", wantErr: true},
		{ticker: "A/B/C", wantErr: true},
		{ticker: "/USDT", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			base, err := TickerBase(tt.ticker)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedTicker))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.base, base)
		})
	}
}

func TestBiMap(t *testing.T) {
	b := NewBiMap[string, string]()
	assert.True(t, b.Put("0x1", "INJ-USDT"))
	assert.False(t, b.Put("0x2", "INJ-USDT"), "value already bound")
	assert.False(t, b.Put("0x1", "ATOM-USDT"), "key already bound")

	v, ok := b.Get("0x1")
	require.True(t, ok)
	assert.Equal(t, "INJ-USDT", v)

	k, ok := b.Inverse("INJ-USDT")
	require.True(t, ok)
	assert.Equal(t, "0x1", k)

	b.Delete("0x1")
	assert.Equal(t, 0, b.Len())
	assert.False(t, b.HasValue("INJ-USDT"))
	assert.True(t, b.Put("0x2", "INJ-USDT"))
	assert.Equal(t, []string{"0x2"}, b.Keys())
}
