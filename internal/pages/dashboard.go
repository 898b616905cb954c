package pages

import (
	"context"
	"errors"
	"time"

	"github.com/injops/dashboard/internal/chain"
	"github.com/injops/dashboard/internal/market"
	"github.com/injops/dashboard/internal/reports"
	"github.com/injops/dashboard/internal/table"
	"github.com/injops/dashboard/internal/trades"
	"go.uber.org/zap"
)

const (
	TitleInsuranceFunds = "Insurance Funds"
	TitleRedemptions    = "Redemptions"
	TitleOpenInterest   = "Open Interest"
	TitleLiquidations   = "Liquidations"
)

var ErrNoTradeSource = errors.New("no trade history backend configured")

// ReferenceSource returns the current reference tables; refdata.Holder
// implements it.
type ReferenceSource interface {
	Get() (*market.Reference, error)
}

type Deps struct {
	Reader    chain.Reader
	Trades    trades.Source
	Reference ReferenceSource
	Logger    *zap.SugaredLogger
	// Location is used for rendered timestamps; defaults to UTC.
	Location *time.Location
}

// NewDashboard registers the dashboard pages in sidebar order.
func NewDashboard(deps Deps, rt *Runtime) *Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	b := &builders{deps: deps, rt: rt}

	reg := NewRegistry()
	reg.MustRegister(
		NewPresenter(rt, TitleInsuranceFunds, b.insuranceFunds),
		NewPresenter(rt, TitleRedemptions, b.redemptions, WithLookback()),
		NewPresenter(rt, TitleOpenInterest, b.openInterest),
		NewPresenter(rt, TitleLiquidations, b.liquidations, WithLookback(), WithMarketFilter()),
	)
	return reg
}

type builders struct {
	deps Deps
	rt   *Runtime
}

func (b *builders) now() time.Time {
	return b.rt.now().In(b.deps.Location)
}

func (b *builders) insuranceFunds(ctx context.Context, _ Params) (*table.Table, error) {
	ref, err := b.deps.Reference.Get()
	if err != nil {
		return nil, err
	}
	funds, err := reports.InsuranceFunds(ctx, b.deps.Reader, ref)
	if err != nil {
		return nil, err
	}

	t := table.New(TitleInsuranceFunds,
		table.Text("Market Ticker"),
		table.Text("Deposit Token"),
		table.Numeric("Balance"),
		table.Text("Redemption Notice Period"),
		table.Numeric("Total Share"),
		table.Text("Oracle"),
		table.Text("Pool Token Denom"),
		table.Text("Market ID"),
	)
	for _, f := range funds {
		oracle := chain.Oracle{Base: f.OracleBase, Quote: f.OracleQuote, Type: f.OracleType}
		t.AddRow(f.MarketTicker, orDenom(f.DepositDenomName, f.DepositDenom), f.Balance,
			f.RedemptionNoticePeriod, f.TotalShare, oracle, f.PoolTokenDenom, f.MarketID)
	}
	return t, nil
}

func (b *builders) redemptions(ctx context.Context, p Params) (*table.Table, error) {
	ref, err := b.deps.Reference.Get()
	if err != nil {
		return nil, err
	}
	rows, err := reports.Redemptions(ctx, b.deps.Reader, ref, p.Days, b.now(), b.deps.Logger)
	if err != nil {
		return nil, err
	}

	t := table.New(TitleRedemptions,
		table.Numeric("Redemption ID"),
		table.Text("Status"),
		table.Text("Redeemer"),
		table.Text("Requested At"),
		table.Text("Claimable At"),
		table.Numeric("Redemption Amount"),
		table.Text("Redemption Denom"),
		table.Numeric("Disbursed Amount"),
		table.Text("Disbursed Ticker"),
		table.Text("Disbursed At"),
	)
	for _, r := range rows {
		t.AddRow(r.RedemptionID, r.Status, r.Redeemer, r.RequestedAt, r.ClaimableRedemptionTime,
			r.RedemptionAmount, r.RedemptionDenom, r.DisbursedAmount, r.DisbursedTicker, r.DisbursedAt)
	}
	return t, nil
}

func (b *builders) openInterest(ctx context.Context, _ Params) (*table.Table, error) {
	ref, err := b.deps.Reference.Get()
	if err != nil {
		return nil, err
	}
	rows, err := reports.OpenInterestByMarket(ctx, b.deps.Reader, ref, b.deps.Logger)
	if err != nil {
		return nil, err
	}

	t := table.New(TitleOpenInterest,
		table.Text("Trading Pair"),
		table.Numeric("Longs Notional"),
		table.Numeric("Shorts Notional"),
		table.Numeric("Oracle Price"),
		table.Numeric("Long Positions"),
		table.Numeric("Short Positions"),
		table.Text("Market ID"),
	)
	for _, oi := range rows {
		t.AddRow(oi.TradingPair, oi.Longs, oi.Shorts, oi.OraclePrice, oi.LongPositions, oi.ShortPositions, oi.MarketID)
	}
	return t, nil
}

func (b *builders) liquidations(ctx context.Context, p Params) (*table.Table, error) {
	if b.deps.Trades == nil {
		return nil, ErrNoTradeSource
	}
	ref, err := b.deps.Reference.Get()
	if err != nil {
		return nil, err
	}
	q := trades.LiquidationQuery{Days: p.Days, MarketID: p.MarketID, Now: b.now()}
	rows, err := reports.Liquidations(ctx, b.deps.Trades, ref, q, b.deps.Logger)
	if err != nil {
		return nil, err
	}

	t := table.New(TitleLiquidations,
		table.Text("Executed At"),
		table.Text("Trading Pair"),
		table.Text("Direction"),
		table.Numeric("Price"),
		table.Numeric("Quantity"),
		table.Numeric("Margin"),
		table.Numeric("Fee"),
		table.Numeric("Payout"),
		table.Text("Subaccount"),
		table.Text("Trade ID"),
	)
	for _, l := range rows {
		t.AddRow(l.ExecutedAt.In(b.deps.Location), l.TradingPair, l.Direction, l.Price, l.Quantity,
			l.Margin, l.Fee, l.Payout, l.SubaccountID, l.TradeID)
	}
	return t, nil
}

func orDenom(symbol, denom string) string {
	if symbol != "" {
		return symbol
	}
	return denom
}
