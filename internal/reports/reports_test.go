package reports

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/injops/dashboard/internal/chain"
	"github.com/injops/dashboard/internal/chain/chaintest"
	"github.com/injops/dashboard/internal/market"
	"github.com/injops/dashboard/internal/trades"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	usdtDenom = "peggy0xdAC17F958D2ee523a2206206994597C13D831ec7"
	btcPerp   = "0x4ca0f92fc28be0c9761326016b5a1a2177dd6375558365116b5bdda9abc229ce"
	ethPerp   = "0x54d4505adef6a5cef26bc403a33d595620ded4e15b9e2bc3dd489b714813366a"
)

var btcOracle = chain.Oracle{Base: "BTC", Quote: "USDT", Type: "bandibc", ScaleFactor: 6}

func testReference(t *testing.T) *market.Reference {
	t.Helper()
	return market.Build(
		[]chain.Token{
			{Denom: "inj", Symbol: "INJ", Decimals: 18},
			{Denom: usdtDenom, Symbol: "USDT", Decimals: 6},
		},
		[]chain.SpotMarket{
			{ID: "0x0511", Ticker: "INJ/USDT", BaseDenom: "inj", QuoteDenom: usdtDenom,
				MinPriceTickSize: decimal.RequireFromString("0.000000000000001"), MinQuantityTickSize: decimal.RequireFromString("1000000000000000")},
		},
		[]chain.DerivativeMarket{
			{ID: btcPerp, Ticker: "BTC/USDT PERP", QuoteDenom: usdtDenom,
				OracleBase: btcOracle.Base, OracleQuote: btcOracle.Quote, OracleType: btcOracle.Type, OracleScaleFactor: btcOracle.ScaleFactor,
				MinPriceTickSize: decimal.RequireFromString("1000000"), MinQuantityTickSize: decimal.RequireFromString("0.0001")},
			{ID: ethPerp, Ticker: "ETH/USDT PERP", QuoteDenom: usdtDenom, OracleBase: "ETH", OracleQuote: "USDT", OracleType: "bandibc"},
		},
		zap.NewNop().Sugar(),
	)
}

func special(s string) decimal.Decimal {
	return decimal.RequireFromString(s).Shift(18)
}

func TestOpenInterest_SingleOracleFetchPerMarket(t *testing.T) {
	ref := testReference(t)

	reader := &chaintest.MockReader{}
	reader.On("Positions", mock.Anything).Return([]chain.Position{
		{MarketID: btcPerp, IsLong: true, Quantity: special("0.5")},
		{MarketID: btcPerp, IsLong: false, Quantity: special("0.25")},
		{MarketID: btcPerp, IsLong: true, Quantity: special("1.5")},
		{MarketID: "0xunknown", IsLong: true, Quantity: special("10")},
	}, nil)
	reader.On("OraclePrice", mock.Anything, btcOracle).Return(decimal.NewFromInt(65000), nil).Once()

	result, err := OpenInterestByMarket(context.Background(), reader, ref, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.Len(t, result, 1)

	oi := result[0]
	assert.Equal(t, "BTC-USDT", oi.TradingPair)
	assert.Equal(t, btcPerp, oi.MarketID)
	assert.True(t, decimal.NewFromInt(130000).Equal(oi.Longs), "longs: %s", oi.Longs)
	assert.True(t, decimal.NewFromInt(16250).Equal(oi.Shorts), "shorts: %s", oi.Shorts)
	assert.Equal(t, 2, oi.LongPositions)
	assert.Equal(t, 1, oi.ShortPositions)

	reader.AssertNumberOfCalls(t, "OraclePrice", 1)
	reader.AssertExpectations(t)
}

func TestOpenInterest_SortedByPair(t *testing.T) {
	ref := testReference(t)

	reader := &chaintest.MockReader{}
	reader.On("Positions", mock.Anything).Return([]chain.Position{
		{MarketID: ethPerp, IsLong: false, Quantity: special("2")},
		{MarketID: btcPerp, IsLong: true, Quantity: special("1")},
	}, nil)
	reader.On("OraclePrice", mock.Anything, btcOracle).Return(decimal.NewFromInt(60000), nil).Once()
	reader.On("OraclePrice", mock.Anything, mock.MatchedBy(func(o chain.Oracle) bool { return o.Base == "ETH" })).
		Return(decimal.NewFromInt(3000), nil).Once()

	result, err := OpenInterestByMarket(context.Background(), reader, ref, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "BTC-USDT", result[0].TradingPair)
	assert.Equal(t, "ETH-USDT", result[1].TradingPair)
	assert.True(t, result[1].Longs.IsZero())
	assert.True(t, decimal.NewFromInt(6000).Equal(result[1].Shorts))
}

func TestOpenInterest_OracleErrorPropagates(t *testing.T) {
	ref := testReference(t)

	reader := &chaintest.MockReader{}
	reader.On("Positions", mock.Anything).Return([]chain.Position{
		{MarketID: btcPerp, IsLong: true, Quantity: special("1")},
	}, nil)
	reader.On("OraclePrice", mock.Anything, btcOracle).Return(decimal.Zero, errors.New("indexer timeout"))

	_, err := OpenInterestByMarket(context.Background(), reader, ref, zap.NewNop().Sugar())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexer timeout")
}

func TestInsuranceFunds(t *testing.T) {
	ref := testReference(t)

	reader := &chaintest.MockReader{}
	reader.On("InsuranceFunds", mock.Anything).Return([]chain.InsuranceFund{
		{MarketTicker: "BTC/USDT PERP", MarketID: btcPerp, DepositDenom: usdtDenom, Balance: "1500000000", RedemptionNoticePeriodDuration: "1209600"},
		{MarketTicker: "ABC/XYZ", MarketID: "0x02", DepositDenom: "factory/unknown", Balance: "42"},
		{MarketTicker: "AAA/USDT", MarketID: "0x03", DepositDenom: "", Balance: "999"},
	}, nil)

	funds, err := InsuranceFunds(context.Background(), reader, ref)
	require.NoError(t, err)
	require.Len(t, funds, 3)

	assert.Equal(t, "AAA/USDT", funds[0].MarketTicker)
	assert.True(t, funds[0].Balance.IsZero())

	assert.Equal(t, "ABC/XYZ", funds[1].MarketTicker)
	assert.True(t, decimal.NewFromInt(42).Equal(funds[1].Balance))
	assert.Empty(t, funds[1].DepositDenomName)

	assert.Equal(t, "USDT", funds[2].DepositDenomName)
	assert.True(t, decimal.NewFromInt(1500).Equal(funds[2].Balance))
	assert.Equal(t, 14*24*time.Hour, funds[2].RedemptionNoticePeriod)
}

func TestRedemptions(t *testing.T) {
	ref := testReference(t)
	now := time.Date(2023, time.November, 15, 0, 0, 0, 0, time.UTC)

	schedules := []chain.Redemption{
		{RedemptionID: "9", RequestedAt: json.Number("1700000000000000"), DisbursedAmount: "2500000", DisbursedDenom: usdtDenom, DisbursedAt: "1700000100000000"},
		{RedemptionID: "3", RequestedAt: json.Number("1600000000000000"), DisbursedAmount: "", DisbursedDenom: usdtDenom},
		{RedemptionID: "5", RequestedAt: "0"},
	}

	tests := []struct {
		name    string
		days    int
		wantIDs []uint64
	}{
		{name: "no lookback", days: 0, wantIDs: []uint64{3, 5, 9}},
		{name: "one week", days: 7, wantIDs: []uint64{9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &chaintest.MockReader{}
			reader.On("Redemptions", mock.Anything, chain.RedemptionFilter{}).Return(schedules, nil)

			rows, err := Redemptions(context.Background(), reader, ref, tt.days, now, nil)
			require.NoError(t, err)

			ids := make([]uint64, 0, len(rows))
			for _, r := range rows {
				ids = append(ids, r.RedemptionID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	reader := &chaintest.MockReader{}
	reader.On("Redemptions", mock.Anything, chain.RedemptionFilter{}).Return(schedules, nil)
	rows, err := Redemptions(context.Background(), reader, ref, 0, now, nil)
	require.NoError(t, err)

	last := rows[2]
	assert.Equal(t, "Tue Nov 14 2023 22:13:20 GMT+0000", last.RequestedAt)
	assert.Equal(t, "USDT", last.DisbursedTicker)
	assert.True(t, decimal.RequireFromString("2.5").Equal(last.DisbursedAmount))
	assert.Empty(t, last.ClaimableRedemptionTime)

	assert.True(t, rows[0].DisbursedAmount.IsZero())
	assert.Empty(t, rows[1].RequestedAt)
}

func TestRedemptions_SkipsUnreadableRows(t *testing.T) {
	ref := testReference(t)
	now := time.Date(2023, time.November, 15, 0, 0, 0, 0, time.UTC)

	reader := &chaintest.MockReader{}
	reader.On("Redemptions", mock.Anything, chain.RedemptionFilter{}).Return([]chain.Redemption{
		{RedemptionID: "", RequestedAt: "1700000000000000"},
		{RedemptionID: "abc", RequestedAt: "1700000000000000"},
		{RedemptionID: "-4", RequestedAt: "1700000000000000"},
		{RedemptionID: "8", RequestedAt: "1700000000000000", DisbursedAmount: "not-a-number", DisbursedDenom: usdtDenom},
		{RedemptionID: "2", RequestedAt: "1700000000000000", DisbursedAmount: "1000000", DisbursedDenom: usdtDenom},
	}, nil)

	rows, err := Redemptions(context.Background(), reader, ref, 0, now, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 2, rows[0].RedemptionID)
	assert.True(t, decimal.NewFromInt(1).Equal(rows[0].DisbursedAmount))
}

type stubSource struct {
	trades []trades.Trade
	got    trades.LiquidationQuery
}

func (s *stubSource) Liquidations(_ context.Context, q trades.LiquidationQuery) ([]trades.Trade, error) {
	s.got = q
	return s.trades, nil
}

func TestLiquidations(t *testing.T) {
	ref := testReference(t)
	src := &stubSource{trades: []trades.Trade{
		{
			MarketID:          btcPerp,
			TradeID:           "1",
			Direction:         "sell",
			ExecutionPrice:    decimal.RequireFromString("65000000000"),
			ExecutionQuantity: decimal.RequireFromString("0.25"),
			ExecutionMargin:   decimal.RequireFromString("16250000000"),
			Fee:               decimal.RequireFromString("8125000"),
			IsLiquidation:     true,
		},
		{MarketID: "0xgone", TradeID: "2", ExecutionPrice: decimal.NewFromInt(7)},
	}}

	q := trades.LiquidationQuery{Days: 7, MarketID: ""}
	rows, err := Liquidations(context.Background(), src, ref, q, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, q, src.got)

	assert.Equal(t, "BTC-USDT", rows[0].TradingPair)
	assert.True(t, decimal.NewFromInt(65000).Equal(rows[0].Price))
	assert.True(t, decimal.RequireFromString("0.25").Equal(rows[0].Quantity))
	assert.True(t, decimal.NewFromInt(16250).Equal(rows[0].Margin))
	assert.True(t, decimal.RequireFromString("8.125").Equal(rows[0].Fee))

	assert.Equal(t, "0xgone", rows[1].TradingPair)
	assert.True(t, decimal.NewFromInt(7).Equal(rows[1].Price))
}

func TestMarketSummaries(t *testing.T) {
	ref := testReference(t)

	spots := SpotMarkets(ref)
	require.Len(t, spots, 1)
	assert.Equal(t, "INJ-USDT", spots[0].TradingPair)
	assert.True(t, decimal.RequireFromString("0.001").Equal(spots[0].MinPriceTickSize))

	derivs := DerivativeMarkets(ref)
	require.Len(t, derivs, 2)
	assert.Equal(t, "BTC-USDT", derivs[0].TradingPair)
	assert.True(t, decimal.NewFromInt(1).Equal(derivs[0].MinPriceTickSize))
	assert.Equal(t, "BTC/USDT (bandibc)", derivs[0].Oracle)
}
