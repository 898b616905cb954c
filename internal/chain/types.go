package chain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Token is a token definition as published by the token list.
type Token struct {
	Denom       string `json:"denom"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    int32  `json:"decimals"`
	TokenType   string `json:"tokenType,omitempty"`
	CoinGeckoID string `json:"coinGeckoId,omitempty"`
}

// SpotMarket carries the on-chain parameters of a spot market. Tick sizes are
// in chain units; rates are plain decimals.
type SpotMarket struct {
	ID                  string          `json:"market_id"`
	Ticker              string          `json:"ticker"`
	BaseDenom           string          `json:"base_denom"`
	QuoteDenom          string          `json:"quote_denom"`
	MakerFeeRate        decimal.Decimal `json:"maker_fee_rate"`
	TakerFeeRate        decimal.Decimal `json:"taker_fee_rate"`
	RelayerFeeShareRate decimal.Decimal `json:"relayer_fee_share_rate"`
	MinPriceTickSize    decimal.Decimal `json:"min_price_tick_size"`
	MinQuantityTickSize decimal.Decimal `json:"min_quantity_tick_size"`
	MinNotional         decimal.Decimal `json:"min_notional"`
	Status              string          `json:"status"`
}

// DerivativeMarket carries the on-chain parameters of a derivative market.
type DerivativeMarket struct {
	ID                     string          `json:"market_id"`
	Ticker                 string          `json:"ticker"`
	QuoteDenom             string          `json:"quote_denom"`
	OracleBase             string          `json:"oracle_base"`
	OracleQuote            string          `json:"oracle_quote"`
	OracleType             string          `json:"oracle_type"`
	OracleScaleFactor      uint32          `json:"oracle_scale_factor"`
	InitialMarginRatio     decimal.Decimal `json:"initial_margin_ratio"`
	MaintenanceMarginRatio decimal.Decimal `json:"maintenance_margin_ratio"`
	MakerFeeRate           decimal.Decimal `json:"maker_fee_rate"`
	TakerFeeRate           decimal.Decimal `json:"taker_fee_rate"`
	RelayerFeeShareRate    decimal.Decimal `json:"relayer_fee_share_rate"`
	MinPriceTickSize       decimal.Decimal `json:"min_price_tick_size"`
	MinQuantityTickSize    decimal.Decimal `json:"min_quantity_tick_size"`
	IsPerpetual            bool            `json:"is_perpetual"`
	Status                 string          `json:"status"`
}

// Position is an open derivative position. Quantity, EntryPrice and Margin
// are kept in the special chain format (scaled by 10^18).
type Position struct {
	SubaccountID string          `json:"subaccount_id"`
	MarketID     string          `json:"market_id"`
	IsLong       bool            `json:"is_long"`
	Quantity     decimal.Decimal `json:"quantity"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	Margin       decimal.Decimal `json:"margin"`
}

// Oracle identifies the price feed of a derivative market.
type Oracle struct {
	Base        string
	Quote       string
	Type        string
	ScaleFactor uint32
}

func (o Oracle) String() string {
	return fmt.Sprintf("%s/%s (%s)", o.Base, o.Quote, o.Type)
}

type InsuranceFund struct {
	MarketID                       string      `json:"marketId"`
	MarketTicker                   string      `json:"marketTicker"`
	DepositDenom                   string      `json:"depositDenom"`
	PoolTokenDenom                 string      `json:"poolTokenDenom"`
	RedemptionNoticePeriodDuration json.Number `json:"redemptionNoticePeriodDuration"`
	Balance                        string      `json:"balance"`
	TotalShare                     string      `json:"totalShare"`
	OracleBase                     string      `json:"oracleBase"`
	OracleQuote                    string      `json:"oracleQuote"`
	OracleType                     string      `json:"oracleType"`
	Expiry                         json.Number `json:"expiry"`
}

// Redemption is an insurance fund redemption schedule. Timestamps are in
// microseconds since the epoch; zero means not set.
type Redemption struct {
	RedemptionID            json.Number `json:"redemptionId"`
	Status                  string      `json:"status"`
	Redeemer                string      `json:"redeemer"`
	ClaimableRedemptionTime json.Number `json:"claimableRedemptionTime"`
	RedemptionAmount        string      `json:"redemptionAmount"`
	RedemptionDenom         string      `json:"redemptionDenom"`
	RequestedAt             json.Number `json:"requestedAt"`
	DisbursedAmount         string      `json:"disbursedAmount"`
	DisbursedDenom          string      `json:"disbursedDenom"`
	DisbursedAt             json.Number `json:"disbursedAt"`
}

// RedemptionFilter narrows a redemptions query. Empty fields are not sent.
type RedemptionFilter struct {
	Redeemer string
	Denom    string
	Status   string
}

// MicrosToTime converts an indexer microsecond timestamp. ok is false for
// empty or zero values.
func MicrosToTime(n json.Number) (time.Time, bool) {
	if n == "" {
		return time.Time{}, false
	}
	us, err := n.Int64()
	if err != nil || us == 0 {
		return time.Time{}, false
	}
	return time.UnixMicro(us), true
}

// APIError is returned when an upstream endpoint answers with a non-2xx status.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}
