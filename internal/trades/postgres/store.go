package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/injops/dashboard/internal/trades"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store reads trades from a Postgres mirror of the indexer's trade history.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

var _ trades.Source = (*Store)(nil)

func Open(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewStore(db, logger), nil
}

func NewStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) Close() error {
	return s.db.Close()
}

const liquidationColumns = `market_id, trade_id, subaccount_id, order_hash, trade_direction, execution_type,
	execution_price, execution_quantity, execution_margin, fee, payout, is_liquidation, executed_at`

// liquidationQuery builds the SQL and arguments for q.
func liquidationQuery(q trades.LiquidationQuery) (string, []any) {
	start, end := q.Window()

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(liquidationColumns)
	b.WriteString("\n\tFROM derivative_trades\n\tWHERE is_liquidation AND executed_at >= $1 AND executed_at <= $2")
	args := []any{start, end}

	if q.MarketID != "" {
		args = append(args, q.MarketID)
		fmt.Fprintf(&b, " AND market_id = $%d", len(args))
	}
	b.WriteString("\n\tORDER BY executed_at DESC")
	return b.String(), args
}

func (s *Store) Liquidations(ctx context.Context, q trades.LiquidationQuery) ([]trades.Trade, error) {
	query, args := liquidationQuery(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query liquidations: %w", err)
	}
	defer rows.Close()

	var out []trades.Trade
	for rows.Next() {
		var t trades.Trade
		if err := rows.Scan(
			&t.MarketID,
			&t.TradeID,
			&t.SubaccountID,
			&t.OrderHash,
			&t.Direction,
			&t.ExecutionType,
			&t.ExecutionPrice,
			&t.ExecutionQuantity,
			&t.ExecutionMargin,
			&t.Fee,
			&t.Payout,
			&t.IsLiquidation,
			&t.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}

	s.logger.Debugw("Fetched liquidation trades", "count", len(out), "days", q.Days, "market_id", q.MarketID)
	return out, nil
}
