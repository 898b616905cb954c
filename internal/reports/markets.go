package reports

import (
	"github.com/injops/dashboard/internal/market"
	"github.com/shopspring/decimal"
)

// MarketSummary is the normalized view of a market's trading parameters.
type MarketSummary struct {
	MarketID            string          `json:"marketId"`
	TradingPair         string          `json:"tradingPair"`
	Ticker              string          `json:"ticker"`
	BaseSymbol          string          `json:"baseSymbol"`
	QuoteSymbol         string          `json:"quoteSymbol"`
	MinPriceTickSize    decimal.Decimal `json:"minPriceTickSize"`
	MinQuantityTickSize decimal.Decimal `json:"minQuantityTickSize"`
	MakerFeeRate        decimal.Decimal `json:"makerFeeRate"`
	TakerFeeRate        decimal.Decimal `json:"takerFeeRate"`
	Oracle              string          `json:"oracle,omitempty"`
}

func SpotMarkets(ref *market.Reference) []MarketSummary {
	markets := ref.SpotMarkets()
	out := make([]MarketSummary, 0, len(markets))
	for _, m := range markets {
		out = append(out, MarketSummary{
			MarketID:            m.ID,
			TradingPair:         m.TradingPair(),
			Ticker:              m.Native.Ticker,
			BaseSymbol:          m.Base.UniqueSymbol,
			QuoteSymbol:         m.Quote.UniqueSymbol,
			MinPriceTickSize:    m.MinPriceTickSize(),
			MinQuantityTickSize: m.MinQuantityTickSize(),
			MakerFeeRate:        m.MakerFeeRate(),
			TakerFeeRate:        m.TakerFeeRate(),
		})
	}
	return out
}

func DerivativeMarkets(ref *market.Reference) []MarketSummary {
	markets := ref.DerivativeMarkets()
	out := make([]MarketSummary, 0, len(markets))
	for _, m := range markets {
		out = append(out, MarketSummary{
			MarketID:            m.ID,
			TradingPair:         m.TradingPair(),
			Ticker:              m.Native.Ticker,
			BaseSymbol:          m.BaseSymbol(),
			QuoteSymbol:         m.Quote.UniqueSymbol,
			MinPriceTickSize:    m.MinPriceTickSize(),
			MinQuantityTickSize: m.MinQuantityTickSize(),
			MakerFeeRate:        m.MakerFeeRate(),
			TakerFeeRate:        m.TakerFeeRate(),
			Oracle:              m.Oracle().String(),
		})
	}
	return out
}
