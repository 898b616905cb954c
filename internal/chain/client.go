package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/injops/dashboard/internal/calc"
	"github.com/injops/dashboard/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Reader is the read-only view of the chain the dashboard needs.
type Reader interface {
	Tokens(ctx context.Context) ([]Token, error)
	SpotMarkets(ctx context.Context) ([]SpotMarket, error)
	DerivativeMarkets(ctx context.Context) ([]DerivativeMarket, error)
	Positions(ctx context.Context) ([]Position, error)
	OraclePrice(ctx context.Context, oracle Oracle) (decimal.Decimal, error)
	InsuranceFunds(ctx context.Context) ([]InsuranceFund, error)
	Redemptions(ctx context.Context, filter RedemptionFilter) ([]Redemption, error)
}

type ClientOptions struct {
	LCDURL         string
	IndexerURL     string
	TokenListURL   string
	Timeout        time.Duration
	RequestsPerSec float64
	HTTPClient     *http.Client
	Metrics        *metrics.Metrics
}

// Client implements Reader over the node's LCD REST gateway, the exchange
// indexer REST API and the published token list.
type Client struct {
	lcdURL       string
	indexerURL   string
	tokenListURL string
	http         *http.Client
	limiter      *rate.Limiter
	metrics      *metrics.Metrics
	logger       *zap.SugaredLogger
}

var _ Reader = (*Client)(nil)

func NewClient(opts ClientOptions, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSec > 0 {
		limit = rate.Limit(opts.RequestsPerSec)
		burst = max(1, int(opts.RequestsPerSec))
	}

	return &Client{
		lcdURL:       opts.LCDURL,
		indexerURL:   opts.IndexerURL,
		tokenListURL: opts.TokenListURL,
		http:         httpClient,
		limiter:      rate.NewLimiter(limit, burst),
		metrics:      opts.Metrics,
		logger:       logger,
	}
}

const (
	spotMarketsPath       = "/injective/exchange/v1beta1/spot/markets"
	derivativeMarketsPath = "/injective/exchange/v1beta1/derivative/markets"
	positionsPath         = "/injective/exchange/v1beta1/positions"
	oraclePricePath       = "/api/exchange/oracle/v1/price"
	insuranceFundsPath    = "/api/exchange/insurance/v1/funds"
	redemptionsPath       = "/api/exchange/insurance/v1/redemptions"
)

func (c *Client) Tokens(ctx context.Context) ([]Token, error) {
	if c.tokenListURL == "" {
		return nil, fmt.Errorf("token list URL not configured")
	}
	var tokens []Token
	if err := c.getJSON(ctx, "tokens", c.tokenListURL, nil, &tokens); err != nil {
		return nil, fmt.Errorf("failed to fetch token list: %w", err)
	}
	return tokens, nil
}

type lcdSpotMarket struct {
	MarketID            string `json:"market_id"`
	Ticker              string `json:"ticker"`
	BaseDenom           string `json:"base_denom"`
	QuoteDenom          string `json:"quote_denom"`
	MakerFeeRate        string `json:"maker_fee_rate"`
	TakerFeeRate        string `json:"taker_fee_rate"`
	RelayerFeeShareRate string `json:"relayer_fee_share_rate"`
	MinPriceTickSize    string `json:"min_price_tick_size"`
	MinQuantityTickSize string `json:"min_quantity_tick_size"`
	MinNotional         string `json:"min_notional"`
	Status              string `json:"status"`
}

func (c *Client) SpotMarkets(ctx context.Context) ([]SpotMarket, error) {
	var resp struct {
		Markets []lcdSpotMarket `json:"markets"`
	}
	q := url.Values{"status": {"Active"}}
	if err := c.getJSON(ctx, "spot_markets", c.lcdURL+spotMarketsPath, q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch spot markets: %w", err)
	}

	markets := make([]SpotMarket, 0, len(resp.Markets))
	for _, raw := range resp.Markets {
		m := SpotMarket{
			ID:         raw.MarketID,
			Ticker:     raw.Ticker,
			BaseDenom:  raw.BaseDenom,
			QuoteDenom: raw.QuoteDenom,
			Status:     raw.Status,
		}
		if err := decodeDecs(
			decField{raw.MakerFeeRate, &m.MakerFeeRate},
			decField{raw.TakerFeeRate, &m.TakerFeeRate},
			decField{raw.RelayerFeeShareRate, &m.RelayerFeeShareRate},
			decField{raw.MinPriceTickSize, &m.MinPriceTickSize},
			decField{raw.MinQuantityTickSize, &m.MinQuantityTickSize},
			decField{raw.MinNotional, &m.MinNotional},
		); err != nil {
			return nil, fmt.Errorf("failed to decode spot market %s: %w", raw.MarketID, err)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

type lcdDerivativeMarket struct {
	MarketID               string `json:"market_id"`
	Ticker                 string `json:"ticker"`
	QuoteDenom             string `json:"quote_denom"`
	OracleBase             string `json:"oracle_base"`
	OracleQuote            string `json:"oracle_quote"`
	OracleType             string `json:"oracle_type"`
	OracleScaleFactor      uint32 `json:"oracle_scale_factor"`
	InitialMarginRatio     string `json:"initial_margin_ratio"`
	MaintenanceMarginRatio string `json:"maintenance_margin_ratio"`
	MakerFeeRate           string `json:"maker_fee_rate"`
	TakerFeeRate           string `json:"taker_fee_rate"`
	RelayerFeeShareRate    string `json:"relayer_fee_share_rate"`
	MinPriceTickSize       string `json:"min_price_tick_size"`
	MinQuantityTickSize    string `json:"min_quantity_tick_size"`
	IsPerpetual            bool   `json:"isPerpetual"`
	Status                 string `json:"status"`
}

func (c *Client) DerivativeMarkets(ctx context.Context) ([]DerivativeMarket, error) {
	var resp struct {
		Markets []struct {
			Market lcdDerivativeMarket `json:"market"`
		} `json:"markets"`
	}
	q := url.Values{"status": {"Active"}}
	if err := c.getJSON(ctx, "derivative_markets", c.lcdURL+derivativeMarketsPath, q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch derivative markets: %w", err)
	}

	markets := make([]DerivativeMarket, 0, len(resp.Markets))
	for _, wrapped := range resp.Markets {
		raw := wrapped.Market
		m := DerivativeMarket{
			ID:                raw.MarketID,
			Ticker:            raw.Ticker,
			QuoteDenom:        raw.QuoteDenom,
			OracleBase:        raw.OracleBase,
			OracleQuote:       raw.OracleQuote,
			OracleType:        raw.OracleType,
			OracleScaleFactor: raw.OracleScaleFactor,
			IsPerpetual:       raw.IsPerpetual,
			Status:            raw.Status,
		}
		if err := decodeDecs(
			decField{raw.InitialMarginRatio, &m.InitialMarginRatio},
			decField{raw.MaintenanceMarginRatio, &m.MaintenanceMarginRatio},
			decField{raw.MakerFeeRate, &m.MakerFeeRate},
			decField{raw.TakerFeeRate, &m.TakerFeeRate},
			decField{raw.RelayerFeeShareRate, &m.RelayerFeeShareRate},
			decField{raw.MinPriceTickSize, &m.MinPriceTickSize},
			decField{raw.MinQuantityTickSize, &m.MinQuantityTickSize},
		); err != nil {
			return nil, fmt.Errorf("failed to decode derivative market %s: %w", raw.MarketID, err)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var resp struct {
		State []struct {
			SubaccountID string `json:"subaccount_id"`
			MarketID     string `json:"market_id"`
			Position     struct {
				IsLong     bool   `json:"isLong"`
				Quantity   string `json:"quantity"`
				EntryPrice string `json:"entry_price"`
				Margin     string `json:"margin"`
			} `json:"position"`
		} `json:"state"`
	}
	if err := c.getJSON(ctx, "positions", c.lcdURL+positionsPath, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	positions := make([]Position, 0, len(resp.State))
	for _, s := range resp.State {
		p := Position{
			SubaccountID: s.SubaccountID,
			MarketID:     s.MarketID,
			IsLong:       s.Position.IsLong,
		}
		if err := decodeExtended(
			decField{s.Position.Quantity, &p.Quantity},
			decField{s.Position.EntryPrice, &p.EntryPrice},
			decField{s.Position.Margin, &p.Margin},
		); err != nil {
			return nil, fmt.Errorf("failed to decode position %s/%s: %w", s.MarketID, s.SubaccountID, err)
		}
		positions = append(positions, p)
	}
	return positions, nil
}

func (c *Client) OraclePrice(ctx context.Context, oracle Oracle) (decimal.Decimal, error) {
	q := url.Values{
		"baseSymbol":  {oracle.Base},
		"quoteSymbol": {oracle.Quote},
		"oracleType":  {oracle.Type},
	}
	if oracle.ScaleFactor > 0 {
		q.Set("oracleScaleFactor", strconv.FormatUint(uint64(oracle.ScaleFactor), 10))
	}

	var resp struct {
		Price string `json:"price"`
	}
	if err := c.getJSON(ctx, "oracle_price", c.indexerURL+oraclePricePath, q, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch oracle price for %s: %w", oracle, err)
	}
	price, err := calc.ParseDec(resp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse oracle price for %s: %w", oracle, err)
	}
	return price, nil
}

func (c *Client) InsuranceFunds(ctx context.Context) ([]InsuranceFund, error) {
	var resp struct {
		Funds []InsuranceFund `json:"funds"`
	}
	if err := c.getJSON(ctx, "insurance_funds", c.indexerURL+insuranceFundsPath, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch insurance funds: %w", err)
	}
	return resp.Funds, nil
}

func (c *Client) Redemptions(ctx context.Context, filter RedemptionFilter) ([]Redemption, error) {
	q := url.Values{}
	if filter.Redeemer != "" {
		q.Set("redeemer", filter.Redeemer)
	}
	if filter.Denom != "" {
		q.Set("redemptionDenom", filter.Denom)
	}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}

	var resp struct {
		RedemptionSchedules []Redemption `json:"redemptionSchedules"`
	}
	if err := c.getJSON(ctx, "redemptions", c.indexerURL+redemptionsPath, q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch redemptions: %w", err)
	}
	return resp.RedemptionSchedules, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, rawURL string, query url.Values, out any) (err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	defer func() {
		c.metrics.RecordChainRequest(ctx, endpoint, err == nil, time.Since(start))
		c.logger.Debugw("Chain query", "endpoint", endpoint, "duration", time.Since(start), "error", err)
	}()

	if len(query) > 0 {
		rawURL = rawURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type decField struct {
	raw string
	dst *decimal.Decimal
}

// decodeDecs decodes LegacyDec fields into their values.
func decodeDecs(fields ...decField) error {
	for _, f := range fields {
		d, err := calc.DecValue(f.raw)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}

// decodeExtended decodes LegacyDec fields into the special chain format.
func decodeExtended(fields ...decField) error {
	for _, f := range fields {
		d, err := calc.ExtendedValue(f.raw)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}
