package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/injops/dashboard/internal/market"
	"github.com/injops/dashboard/internal/trades"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Liquidation struct {
	ExecutedAt   time.Time       `json:"executedAt"`
	TradingPair  string          `json:"tradingPair"`
	MarketID     string          `json:"marketId"`
	Direction    string          `json:"direction"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	Margin       decimal.Decimal `json:"margin"`
	Fee          decimal.Decimal `json:"fee"`
	Payout       decimal.Decimal `json:"payout"`
	SubaccountID string          `json:"subaccountId"`
	TradeID      string          `json:"tradeId"`
}

// Liquidations reads liquidation trades and converts their amounts through
// the trade's derivative market. Trades in markets missing from ref keep
// their raw values and use the market id as trading pair.
func Liquidations(ctx context.Context, source trades.Source, ref *market.Reference, q trades.LiquidationQuery, logger *zap.SugaredLogger) ([]Liquidation, error) {
	list, err := source.Liquidations(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch liquidation trades: %w", err)
	}

	out := make([]Liquidation, 0, len(list))
	for _, t := range list {
		row := Liquidation{
			ExecutedAt:   t.ExecutedAt,
			TradingPair:  t.MarketID,
			MarketID:     t.MarketID,
			Direction:    t.Direction,
			Price:        t.ExecutionPrice,
			Quantity:     t.ExecutionQuantity,
			Margin:       t.ExecutionMargin,
			Fee:          t.Fee,
			Payout:       t.Payout,
			SubaccountID: t.SubaccountID,
			TradeID:      t.TradeID,
		}

		if dm, ok := ref.DerivativeMarket(t.MarketID); ok {
			row.TradingPair = dm.TradingPair()
			row.Price = dm.PriceFromChainFormat(t.ExecutionPrice)
			row.Quantity = dm.QuantityFromChainFormat(t.ExecutionQuantity)
			row.Margin = dm.PriceFromChainFormat(t.ExecutionMargin)
			row.Fee = dm.PriceFromChainFormat(t.Fee)
			row.Payout = dm.PriceFromChainFormat(t.Payout)
		} else {
			logger.Warnw("Market not found for liquidation trade", "market_id", t.MarketID, "trade_id", t.TradeID)
		}
		out = append(out, row)
	}
	return out, nil
}
