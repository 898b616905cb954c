package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/injops/dashboard/internal/calc"
	"github.com/injops/dashboard/internal/chain"
	"github.com/injops/dashboard/internal/market"
	"github.com/shopspring/decimal"
)

// TimestampLayout is how dashboard tables print chain timestamps.
const TimestampLayout = "Mon Jan 02 2006 15:04:05 GMT-0700"

type InsuranceFund struct {
	MarketTicker           string          `json:"marketTicker"`
	MarketID               string          `json:"marketId"`
	DepositDenom           string          `json:"depositDenom"`
	DepositDenomName       string          `json:"depositDenomName"`
	PoolTokenDenom         string          `json:"poolTokenDenom"`
	RedemptionNoticePeriod time.Duration   `json:"redemptionNoticePeriod"`
	Balance                decimal.Decimal `json:"balance"`
	TotalShare             string          `json:"totalShare"`
	OracleBase             string          `json:"oracleBase"`
	OracleQuote            string          `json:"oracleQuote"`
	OracleType             string          `json:"oracleType"`
	Expiry                 string          `json:"expiry"`
}

// InsuranceFunds lists the insurance funds with balances in deposit token units.
func InsuranceFunds(ctx context.Context, reader chain.Reader, ref *market.Reference) ([]InsuranceFund, error) {
	funds, err := reader.InsuranceFunds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch insurance funds: %w", err)
	}

	out := make([]InsuranceFund, 0, len(funds))
	for _, f := range funds {
		balance, err := scaleAmount(ref, f.Balance, f.DepositDenom)
		if err != nil {
			return nil, fmt.Errorf("invalid balance for insurance fund %s: %w", f.MarketID, err)
		}
		name, _ := ref.SymbolForDenom(f.DepositDenom)

		out = append(out, InsuranceFund{
			MarketTicker:           f.MarketTicker,
			MarketID:               f.MarketID,
			DepositDenom:           f.DepositDenom,
			DepositDenomName:       name,
			PoolTokenDenom:         f.PoolTokenDenom,
			RedemptionNoticePeriod: seconds(f.RedemptionNoticePeriodDuration),
			Balance:                balance,
			TotalShare:             f.TotalShare,
			OracleBase:             f.OracleBase,
			OracleQuote:            f.OracleQuote,
			OracleType:             f.OracleType,
			Expiry:                 f.Expiry.String(),
		})
	}
	slices.SortStableFunc(out, func(a, b InsuranceFund) int { return strings.Compare(a.MarketTicker, b.MarketTicker) })
	return out, nil
}

// scaleAmount converts a raw amount into units of denom. An empty denom or
// amount yields zero; a denom missing from ref is left unscaled.
func scaleAmount(ref *market.Reference, raw, denom string) (decimal.Decimal, error) {
	if denom == "" || raw == "" {
		return decimal.Zero, nil
	}
	amount, err := calc.ParseDec(raw)
	if err != nil {
		return decimal.Zero, err
	}
	tok, ok := ref.TokenByDenom(denom)
	if !ok {
		return amount, nil
	}
	return tok.ValueFromChainFormat(amount), nil
}

func seconds(n json.Number) time.Duration {
	s, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(s) * time.Second
}
