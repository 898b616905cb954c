package mongo

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/injops/dashboard/internal/trades"
	"github.com/injops/dashboard/internal/tunnel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestLiquidationFilter(t *testing.T) {
	now := time.Date(2024, time.May, 2, 9, 0, 0, 0, time.UTC)

	t.Run("without market", func(t *testing.T) {
		filter := LiquidationFilter(trades.LiquidationQuery{Days: 7, Now: now})
		m := filter.Map()

		assert.Equal(t, true, m["isLiquidation"])
		_, hasMarket := m["marketId"]
		assert.False(t, hasMarket)

		window := m["executedAt"].(bson.D).Map()
		assert.Equal(t, time.Date(2024, time.April, 25, 0, 0, 0, 0, time.UTC), window["$gte"])
		assert.Equal(t, time.Date(2024, time.May, 2, 23, 59, 59, 0, time.UTC), window["$lte"])
	})

	t.Run("with market", func(t *testing.T) {
		filter := LiquidationFilter(trades.LiquidationQuery{Days: 1, MarketID: "0x4ca0", Now: now})
		assert.Equal(t, "0x4ca0", filter.Map()["marketId"])
	})

	t.Run("pipeline matches then sorts", func(t *testing.T) {
		p := LiquidationPipeline(trades.LiquidationQuery{Now: now})
		require.Len(t, p, 2)
		assert.Equal(t, "$match", p[0][0].Key)
		assert.Equal(t, "$sort", p[1][0].Key)
	})
}

func TestTradeDocument_Decode(t *testing.T) {
	price, err := primitive.ParseDecimal128("65000000000.5")
	require.NoError(t, err)
	executedAt := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

	raw, err := bson.Marshal(bson.D{
		{Key: "marketId", Value: "0x4ca0"},
		{Key: "tradeId", Value: "123_456"},
		{Key: "subaccountId", Value: "0xabc"},
		{Key: "tradeExecutionType", Value: "market"},
		{Key: "isLiquidation", Value: true},
		{Key: "executedAt", Value: executedAt},
		{Key: "positionDelta", Value: bson.D{
			{Key: "tradeDirection", Value: "sell"},
			{Key: "executionPrice", Value: price},
			{Key: "executionQuantity", Value: "0.25"},
			{Key: "executionMargin", Value: int64(16250000000)},
		}},
		{Key: "fee", Value: 1.5},
		{Key: "payout", Value: int32(0)},
	})
	require.NoError(t, err)

	var doc tradeDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	trade, err := doc.toTrade()
	require.NoError(t, err)

	assert.Equal(t, "0x4ca0", trade.MarketID)
	assert.Equal(t, "sell", trade.Direction)
	assert.True(t, trade.IsLiquidation)
	assert.True(t, executedAt.Equal(trade.ExecutedAt))
	assert.True(t, decimal.RequireFromString("65000000000.5").Equal(trade.ExecutionPrice))
	assert.True(t, decimal.RequireFromString("0.25").Equal(trade.ExecutionQuantity))
	assert.True(t, decimal.NewFromInt(16250000000).Equal(trade.ExecutionMargin))
	assert.True(t, decimal.RequireFromString("1.5").Equal(trade.Fee))
	assert.True(t, trade.Payout.IsZero())
}

func TestTradeDocument_UnsupportedType(t *testing.T) {
	raw, err := bson.Marshal(bson.D{{Key: "fee", Value: bson.A{1, 2}}})
	require.NoError(t, err)

	var doc tradeDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	_, err = doc.toTrade()
	assert.ErrorIs(t, err, errUnsupportedNumber)
}

type fakeTunnel struct {
	addr   string
	closed int
}

func (f *fakeTunnel) LocalAddr() string { return f.addr }
func (f *fakeTunnel) Close() error {
	f.closed++
	return nil
}

// closedPort returns a loopback address nothing listens on.
func closedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestSource_TunnelReleasedOnFailure(t *testing.T) {
	fake := &fakeTunnel{addr: closedPort(t)}
	var gotRemote string

	src := NewSource(Config{
		Host:       "10.0.0.5",
		Port:       27017,
		Database:   "exchangeV2",
		Collection: "derivative_trades",
		Timeout:    200 * time.Millisecond,
		Tunnel:     &tunnel.Config{Host: "bastion", User: "root"},
	}, zap.NewNop().Sugar())
	src.openTunnel = func(_ context.Context, cfg tunnel.Config, _ *zap.SugaredLogger) (forwarder, error) {
		gotRemote = cfg.RemoteAddr
		return fake, nil
	}

	_, err := src.Liquidations(context.Background(), trades.LiquidationQuery{Days: 1})
	require.Error(t, err)
	assert.Equal(t, "10.0.0.5:27017", gotRemote)
	assert.Equal(t, 1, fake.closed)
}

func TestSource_TunnelOpenFailure(t *testing.T) {
	src := NewSource(Config{
		Host:   "127.0.0.1",
		Port:   27017,
		Tunnel: &tunnel.Config{Host: "bastion"},
	}, nil)
	src.openTunnel = func(context.Context, tunnel.Config, *zap.SugaredLogger) (forwarder, error) {
		return nil, errors.New("connection refused")
	}

	_, err := src.Liquidations(context.Background(), trades.LiquidationQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open tunnel")
}
