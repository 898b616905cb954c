package market

import (
	"testing"

	"github.com/injops/dashboard/internal/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testTokens() []chain.Token {
	return []chain.Token{
		{Denom: "inj", Symbol: "INJ", Name: "Injective", Decimals: 18},
		{Denom: "peggy0xdAC17F958D2ee523a2206206994597C13D831ec7", Symbol: "USDT", Name: "Tether", Decimals: 6},
		{Denom: "ibc/2CBC2EA121AE42563B08028466F37B600F2D7D4282342DE938283CC3FB2BC00E", Symbol: "USDT", Name: "USDTkv", Decimals: 6},
		{Denom: "factory/inj1xyz/weth", Symbol: "WETH", Name: "USDTkv", Decimals: 8},
	}
}

func TestBuild_UniqueSymbols(t *testing.T) {
	ref := Build(testTokens(), nil, nil, zap.NewNop().Sugar())

	// Tokens are visited in denom order: the factory token takes its symbol,
	// the ibc token takes USDT, and the peggy token falls back to its name.
	sym, ok := ref.SymbolForDenom("ibc/2CBC2EA121AE42563B08028466F37B600F2D7D4282342DE938283CC3FB2BC00E")
	require.True(t, ok)
	assert.Equal(t, "USDT", sym)

	sym, ok = ref.SymbolForDenom("peggy0xdAC17F958D2ee523a2206206994597C13D831ec7")
	require.True(t, ok)
	assert.Equal(t, "Tether", sym)

	denom, ok := ref.DenomForSymbol("INJ")
	require.True(t, ok)
	assert.Equal(t, "inj", denom)

	tok, ok := ref.TokenBySymbol("WETH")
	require.True(t, ok)
	assert.Equal(t, int32(8), tok.Decimals)

	assert.Equal(t, 4, ref.Counts().Tokens)
	assert.Len(t, ref.Tokens(), 4)
}

func TestBuild_UniqueSymbolFallsBackToDenom(t *testing.T) {
	ref := Build([]chain.Token{
		{Denom: "a", Symbol: "DUP", Name: "Same", Decimals: 6},
		{Denom: "b", Symbol: "DUP", Name: "Same", Decimals: 6},
	}, nil, nil, nil)

	sym, ok := ref.SymbolForDenom("b")
	require.True(t, ok)
	assert.Equal(t, "b", sym)
}

func TestBuild_ExcludesMarketsWithUnknownDenom(t *testing.T) {
	spots := []chain.SpotMarket{
		{ID: "0x01", BaseDenom: "inj", QuoteDenom: "peggy0xdAC17F958D2ee523a2206206994597C13D831ec7"},
		{ID: "0x02", BaseDenom: "unknown", QuoteDenom: "peggy0xdAC17F958D2ee523a2206206994597C13D831ec7"},
	}
	derivs := []chain.DerivativeMarket{
		{ID: "0x10", Ticker: "INJ/USDT PERP", QuoteDenom: "peggy0xdAC17F958D2ee523a2206206994597C13D831ec7"},
		{ID: "0x11", Ticker: "BTC/USDC PERP", QuoteDenom: "usdc-missing"},
	}

	ref := Build(testTokens(), spots, derivs, zap.NewNop().Sugar())

	_, ok := ref.SpotMarket("0x02")
	assert.False(t, ok)
	_, ok = ref.SpotPair("0x02")
	assert.False(t, ok)
	for _, m := range ref.SpotMarkets() {
		assert.NotEqual(t, "0x02", m.ID)
	}

	_, ok = ref.DerivativeMarket("0x11")
	assert.False(t, ok)
	_, ok = ref.DerivativePair("0x11")
	assert.False(t, ok)
	_, ok = ref.DerivativeMarketByPair("BTC-USDC")
	assert.False(t, ok)

	m, ok := ref.SpotMarketByPair("INJ-Tether")
	require.True(t, ok)
	assert.Equal(t, "0x01", m.ID)

	d, ok := ref.DerivativeMarketByPair("INJ-Tether")
	require.True(t, ok)
	assert.Equal(t, "0x10", d.ID)

	assert.Equal(t, Counts{Tokens: 4, Spot: 1, Derivatives: 1}, ref.Counts())
}

func TestBuild_DuplicateDerivativePairKeepsLowestID(t *testing.T) {
	usdt := "peggy0xdAC17F958D2ee523a2206206994597C13D831ec7"
	derivs := []chain.DerivativeMarket{
		{ID: "0xbb", Ticker: "INJ/USDT PERP", QuoteDenom: usdt},
		{ID: "0xaa", Ticker: "INJ/USDT", QuoteDenom: usdt},
		{ID: "0xcc", Ticker: "ETH/USDT PERP", QuoteDenom: usdt},
	}

	// The input order must not matter.
	for _, order := range [][]int{{0, 1, 2}, {1, 0, 2}, {2, 0, 1}} {
		in := make([]chain.DerivativeMarket, 0, len(order))
		for _, i := range order {
			in = append(in, derivs[i])
		}
		ref := Build(testTokens(), nil, in, zap.NewNop().Sugar())

		m, ok := ref.DerivativeMarketByPair("INJ-Tether")
		require.True(t, ok)
		assert.Equal(t, "0xaa", m.ID)

		_, ok = ref.DerivativeMarket("0xbb")
		assert.False(t, ok)
		_, ok = ref.DerivativePair("0xbb")
		assert.False(t, ok)

		assert.Equal(t, 2, ref.Counts().Derivatives)
	}
}

func TestBuild_DuplicateSpotPairKeepsLowestID(t *testing.T) {
	usdt := "peggy0xdAC17F958D2ee523a2206206994597C13D831ec7"
	ref := Build(testTokens(), []chain.SpotMarket{
		{ID: "0x2", BaseDenom: "inj", QuoteDenom: usdt},
		{ID: "0x1", BaseDenom: "inj", QuoteDenom: usdt},
	}, nil, nil)

	m, ok := ref.SpotMarketByPair("INJ-Tether")
	require.True(t, ok)
	assert.Equal(t, "0x1", m.ID)
	assert.Equal(t, 1, ref.Counts().Spot)
}

func TestBuild_MalformedTickerExcluded(t *testing.T) {
	ref := Build(testTokens(), nil, []chain.DerivativeMarket{
		{ID: "0x1", Ticker: "INJUSDT", QuoteDenom: "inj"},
	}, nil)

	assert.Equal(t, 0, ref.Counts().Derivatives)
}

func TestBuild_SkipsInvalidTokens(t *testing.T) {
	ref := Build([]chain.Token{
		{Denom: "", Symbol: "EMPTY", Decimals: 6},
		{Denom: "bad", Symbol: "BAD", Decimals: -3},
		{Denom: "inj", Symbol: "INJ", Decimals: 18},
		{Denom: "inj", Symbol: "INJ2", Decimals: 18},
	}, nil, nil, nil)

	assert.Equal(t, 1, ref.Counts().Tokens)
	_, ok := ref.TokenBySymbol("INJ2")
	assert.False(t, ok)
	assert.False(t, ref.LoadedAt().IsZero())
}
