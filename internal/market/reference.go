package market

import (
	"slices"
	"strings"
	"time"

	"github.com/injops/dashboard/internal/calc"
	"github.com/injops/dashboard/internal/chain"
	"go.uber.org/zap"
)

// Reference holds the lookup tables built from one snapshot of tokens and
// markets. It is never modified after Build returns.
type Reference struct {
	tokens          map[string]*Token
	symbols         *BiMap[string, string] // unique symbol -> denom
	spot            map[string]*SpotMarket
	spotPairs       *BiMap[string, string] // market id -> trading pair
	derivatives     map[string]*DerivativeMarket
	derivativePairs *BiMap[string, string] // market id -> trading pair
	loadedAt        time.Time
}

// Counts summarizes the size of each table.
type Counts struct {
	Tokens      int `json:"tokens"`
	Spot        int `json:"spotMarkets"`
	Derivatives int `json:"derivativeMarkets"`
}

// Build joins raw tokens and markets into lookup tables.
//
// Tokens get a unique display symbol: their symbol if still free, else their
// name, else the denom. A market referencing a denom missing from the token
// table is excluded. Markets are visited in ascending id order and the first
// market to claim a trading pair keeps it; later ones are excluded.
func Build(tokens []chain.Token, spots []chain.SpotMarket, derivatives []chain.DerivativeMarket, logger *zap.SugaredLogger) *Reference {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ref := &Reference{
		tokens:          make(map[string]*Token, len(tokens)),
		symbols:         NewBiMap[string, string](),
		spot:            make(map[string]*SpotMarket, len(spots)),
		spotPairs:       NewBiMap[string, string](),
		derivatives:     make(map[string]*DerivativeMarket, len(derivatives)),
		derivativePairs: NewBiMap[string, string](),
		loadedAt:        time.Now(),
	}

	sortedTokens := slices.Clone(tokens)
	slices.SortStableFunc(sortedTokens, func(a, b chain.Token) int { return strings.Compare(a.Denom, b.Denom) })
	for _, raw := range sortedTokens {
		ref.addToken(raw, logger)
	}

	sortedSpots := slices.Clone(spots)
	slices.SortStableFunc(sortedSpots, func(a, b chain.SpotMarket) int { return strings.Compare(a.ID, b.ID) })
	for _, raw := range sortedSpots {
		m, err := NewSpotMarket(raw, ref.tokens)
		if err != nil {
			logger.Debugw("Excluding spot market", "market_id", raw.ID, "ticker", raw.Ticker, "error", err)
			continue
		}
		if _, dup := ref.spot[m.ID]; dup {
			logger.Debugw("Excluding duplicate spot market id", "market_id", m.ID)
			continue
		}
		if !ref.spotPairs.Put(m.ID, m.TradingPair()) {
			logger.Debugw("Excluding spot market with taken trading pair", "market_id", m.ID, "trading_pair", m.TradingPair())
			continue
		}
		ref.spot[m.ID] = m
	}

	sortedDerivs := slices.Clone(derivatives)
	slices.SortStableFunc(sortedDerivs, func(a, b chain.DerivativeMarket) int { return strings.Compare(a.ID, b.ID) })
	for _, raw := range sortedDerivs {
		m, err := NewDerivativeMarket(raw, ref.tokens)
		if err != nil {
			logger.Debugw("Excluding derivative market", "market_id", raw.ID, "ticker", raw.Ticker, "error", err)
			continue
		}
		if _, dup := ref.derivatives[m.ID]; dup {
			logger.Debugw("Excluding duplicate derivative market id", "market_id", m.ID)
			continue
		}
		if !ref.derivativePairs.Put(m.ID, m.TradingPair()) {
			logger.Debugw("Excluding derivative market with taken trading pair", "market_id", m.ID, "trading_pair", m.TradingPair())
			continue
		}
		ref.derivatives[m.ID] = m
	}

	logger.Infow("Reference data built",
		"tokens", len(ref.tokens),
		"spot_markets", len(ref.spot),
		"derivative_markets", len(ref.derivatives),
	)
	return ref
}

func (r *Reference) addToken(raw chain.Token, logger *zap.SugaredLogger) {
	if raw.Denom == "" {
		return
	}
	if _, dup := r.tokens[raw.Denom]; dup {
		logger.Debugw("Skipping duplicate token denom", "denom", raw.Denom)
		return
	}
	if err := calc.ValidateDecimals(raw.Decimals); err != nil {
		logger.Debugw("Skipping token", "denom", raw.Denom, "error", err)
		return
	}

	unique := raw.Denom
	for _, candidate := range []string{raw.Symbol, raw.Name} {
		if candidate != "" && !r.symbols.HasKey(candidate) {
			unique = candidate
			break
		}
	}
	if !r.symbols.Put(unique, raw.Denom) {
		logger.Debugw("Skipping token without a free symbol", "denom", raw.Denom)
		return
	}

	r.tokens[raw.Denom] = &Token{
		UniqueSymbol: unique,
		Denom:        raw.Denom,
		Symbol:       raw.Symbol,
		Name:         raw.Name,
		Decimals:     raw.Decimals,
	}
}

func (r *Reference) TokenByDenom(denom string) (*Token, bool) {
	t, ok := r.tokens[denom]
	return t, ok
}

func (r *Reference) TokenBySymbol(symbol string) (*Token, bool) {
	denom, ok := r.symbols.Get(symbol)
	if !ok {
		return nil, false
	}
	return r.TokenByDenom(denom)
}

// SymbolForDenom returns the unique symbol assigned to denom.
func (r *Reference) SymbolForDenom(denom string) (string, bool) {
	return r.symbols.Inverse(denom)
}

func (r *Reference) DenomForSymbol(symbol string) (string, bool) {
	return r.symbols.Get(symbol)
}

func (r *Reference) SpotMarket(id string) (*SpotMarket, bool) {
	m, ok := r.spot[id]
	return m, ok
}

func (r *Reference) SpotPair(id string) (string, bool) {
	return r.spotPairs.Get(id)
}

func (r *Reference) SpotMarketByPair(pair string) (*SpotMarket, bool) {
	id, ok := r.spotPairs.Inverse(pair)
	if !ok {
		return nil, false
	}
	return r.SpotMarket(id)
}

func (r *Reference) DerivativeMarket(id string) (*DerivativeMarket, bool) {
	m, ok := r.derivatives[id]
	return m, ok
}

func (r *Reference) DerivativePair(id string) (string, bool) {
	return r.derivativePairs.Get(id)
}

func (r *Reference) DerivativeMarketByPair(pair string) (*DerivativeMarket, bool) {
	id, ok := r.derivativePairs.Inverse(pair)
	if !ok {
		return nil, false
	}
	return r.DerivativeMarket(id)
}

// Tokens returns all tokens ordered by unique symbol.
func (r *Reference) Tokens() []*Token {
	out := make([]*Token, 0, len(r.tokens))
	for _, sym := range r.symbols.Keys() {
		denom, _ := r.symbols.Get(sym)
		if t, ok := r.tokens[denom]; ok {
			out = append(out, t)
		}
	}
	return out
}

// SpotMarkets returns all spot markets ordered by trading pair.
func (r *Reference) SpotMarkets() []*SpotMarket {
	out := make([]*SpotMarket, 0, len(r.spot))
	for _, m := range r.spot {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *SpotMarket) int { return strings.Compare(a.TradingPair(), b.TradingPair()) })
	return out
}

// DerivativeMarkets returns all derivative markets ordered by trading pair.
func (r *Reference) DerivativeMarkets() []*DerivativeMarket {
	out := make([]*DerivativeMarket, 0, len(r.derivatives))
	for _, m := range r.derivatives {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *DerivativeMarket) int { return strings.Compare(a.TradingPair(), b.TradingPair()) })
	return out
}

func (r *Reference) Counts() Counts {
	return Counts{
		Tokens:      len(r.tokens),
		Spot:        len(r.spot),
		Derivatives: len(r.derivatives),
	}
}

func (r *Reference) LoadedAt() time.Time {
	return r.loadedAt
}
