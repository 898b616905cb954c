package trades

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one derivative trade from the trade history. Price, margin, fee
// and payout are in chain format; the quantity is in market units.
type Trade struct {
	MarketID          string          `json:"marketId"`
	TradeID           string          `json:"tradeId"`
	SubaccountID      string          `json:"subaccountId"`
	OrderHash         string          `json:"orderHash"`
	Direction         string          `json:"direction"`
	ExecutionType     string          `json:"executionType"`
	ExecutionPrice    decimal.Decimal `json:"executionPrice"`
	ExecutionQuantity decimal.Decimal `json:"executionQuantity"`
	ExecutionMargin   decimal.Decimal `json:"executionMargin"`
	Fee               decimal.Decimal `json:"fee"`
	Payout            decimal.Decimal `json:"payout"`
	IsLiquidation     bool            `json:"isLiquidation"`
	ExecutedAt        time.Time       `json:"executedAt"`
}

// LiquidationQuery selects liquidation trades executed in the last Days days,
// optionally restricted to one market.
type LiquidationQuery struct {
	Days     int
	MarketID string
	Now      time.Time
}

// Window returns the inclusive execution-time bounds of the query: from
// midnight Days days before today up to 23:59:59 today, in Now's location.
// Days <= 0 is treated as 1.
func (q LiquidationQuery) Window() (start, end time.Time) {
	days := q.Days
	if days <= 0 {
		days = 1
	}
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}

	y, m, d := now.Date()
	end = time.Date(y, m, d, 23, 59, 59, 0, now.Location())
	start = time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -days)
	return start, end
}

// Source reads liquidation trades from a trade-history store.
type Source interface {
	Liquidations(ctx context.Context, q LiquidationQuery) ([]Trade, error)
}
