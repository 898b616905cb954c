package reports

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/injops/dashboard/internal/chain"
	"github.com/injops/dashboard/internal/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OpenInterest is the summed notional of open positions in one market, per side.
type OpenInterest struct {
	TradingPair    string          `json:"tradingPair"`
	MarketID       string          `json:"marketId"`
	OraclePrice    decimal.Decimal `json:"oraclePrice"`
	Longs          decimal.Decimal `json:"longsNotional"`
	Shorts         decimal.Decimal `json:"shortsNotional"`
	LongPositions  int             `json:"longPositions"`
	ShortPositions int             `json:"shortPositions"`
}

type marketPositions struct {
	longs  []chain.Position
	shorts []chain.Position
}

// OpenInterestByMarket groups open positions by market and side and values
// them at the market's oracle price, fetched once per market. Positions in
// markets absent from ref are logged and skipped. Results are ordered by
// trading pair.
func OpenInterestByMarket(ctx context.Context, reader chain.Reader, ref *market.Reference, logger *zap.SugaredLogger) ([]OpenInterest, error) {
	positions, err := reader.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	grouped := make(map[string]*marketPositions)
	for _, p := range positions {
		g, ok := grouped[p.MarketID]
		if !ok {
			g = &marketPositions{}
			grouped[p.MarketID] = g
		}
		if p.IsLong {
			g.longs = append(g.longs, p)
		} else {
			g.shorts = append(g.shorts, p)
		}
	}

	marketIDs := make([]string, 0, len(grouped))
	for id := range grouped {
		marketIDs = append(marketIDs, id)
	}
	slices.Sort(marketIDs)

	out := make([]OpenInterest, 0, len(marketIDs))
	for _, id := range marketIDs {
		dm, ok := ref.DerivativeMarket(id)
		if !ok {
			logger.Warnw("Market not found for open positions", "market_id", id)
			continue
		}

		price, err := reader.OraclePrice(ctx, dm.Oracle())
		if err != nil {
			return nil, fmt.Errorf("failed to fetch oracle price for %s: %w", dm.TradingPair(), err)
		}

		g := grouped[id]
		out = append(out, OpenInterest{
			TradingPair:    dm.TradingPair(),
			MarketID:       id,
			OraclePrice:    price,
			Longs:          sumNotional(dm, g.longs, price),
			Shorts:         sumNotional(dm, g.shorts, price),
			LongPositions:  len(g.longs),
			ShortPositions: len(g.shorts),
		})
	}

	slices.SortFunc(out, func(a, b OpenInterest) int { return strings.Compare(a.TradingPair, b.TradingPair) })
	return out, nil
}

// Notional values a position at price: its quantity, decoded from the special
// chain format, times price.
func Notional(dm *market.DerivativeMarket, p chain.Position, price decimal.Decimal) decimal.Decimal {
	return dm.QuantityFromSpecialChainFormat(p.Quantity).Mul(price)
}

func sumNotional(dm *market.DerivativeMarket, positions []chain.Position, price decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(Notional(dm, p, price))
	}
	return total
}
