package mongo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/injops/dashboard/internal/trades"
	"github.com/injops/dashboard/internal/tunnel"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Config struct {
	Host       string
	Port       int
	Database   string
	Collection string
	Timeout    time.Duration
	Tunnel     *tunnel.Config // nil connects directly
}

// forwarder is the part of a tunnel the source relies on.
type forwarder interface {
	LocalAddr() string
	Close() error
}

type openTunnelFunc func(ctx context.Context, cfg tunnel.Config, logger *zap.SugaredLogger) (forwarder, error)

func openSSHTunnel(ctx context.Context, cfg tunnel.Config, logger *zap.SugaredLogger) (forwarder, error) {
	t, err := tunnel.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Source reads trades from the indexer's Mongo database. Every call opens its
// own tunnel and client and releases both before returning.
type Source struct {
	cfg        Config
	logger     *zap.SugaredLogger
	openTunnel openTunnelFunc
}

var _ trades.Source = (*Source)(nil)

func NewSource(cfg Config, logger *zap.SugaredLogger) *Source {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Source{cfg: cfg, logger: logger, openTunnel: openSSHTunnel}
}

func (s *Source) Liquidations(ctx context.Context, q trades.LiquidationQuery) ([]trades.Trade, error) {
	var out []trades.Trade
	err := s.withCollection(ctx, func(coll *mongo.Collection) error {
		cursor, err := coll.Aggregate(ctx, LiquidationPipeline(q))
		if err != nil {
			return fmt.Errorf("failed to run aggregation: %w", err)
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var doc tradeDocument
			if err := cursor.Decode(&doc); err != nil {
				return fmt.Errorf("failed to decode trade: %w", err)
			}
			t, err := doc.toTrade()
			if err != nil {
				return fmt.Errorf("failed to convert trade %s: %w", doc.TradeID, err)
			}
			out = append(out, t)
		}
		return cursor.Err()
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debugw("Fetched liquidation trades", "count", len(out), "days", q.Days, "market_id", q.MarketID)
	return out, nil
}

func (s *Source) withCollection(ctx context.Context, fn func(coll *mongo.Collection) error) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	if s.cfg.Tunnel != nil {
		tcfg := *s.cfg.Tunnel
		tcfg.RemoteAddr = addr
		tun, err := s.openTunnel(ctx, tcfg, s.logger)
		if err != nil {
			return fmt.Errorf("failed to open tunnel: %w", err)
		}
		defer func() {
			if cerr := tun.Close(); cerr != nil {
				s.logger.Warnw("Failed to close tunnel", "error", cerr)
			}
		}()
		addr = tun.LocalAddr()
	}

	opts := options.Client().
		ApplyURI("mongodb://" + addr + "/?directConnection=true").
		SetServerSelectionTimeout(s.cfg.Timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if derr := client.Disconnect(dctx); derr != nil {
			s.logger.Warnw("Failed to disconnect mongo client", "error", derr)
		}
	}()

	return fn(client.Database(s.cfg.Database).Collection(s.cfg.Collection))
}

// LiquidationFilter is the $match stage selecting q's liquidation trades.
func LiquidationFilter(q trades.LiquidationQuery) bson.D {
	start, end := q.Window()
	filter := bson.D{
		{Key: "isLiquidation", Value: true},
		{Key: "executedAt", Value: bson.D{
			{Key: "$gte", Value: start},
			{Key: "$lte", Value: end},
		}},
	}
	if q.MarketID != "" {
		filter = append(filter, bson.E{Key: "marketId", Value: q.MarketID})
	}
	return filter
}

func LiquidationPipeline(q trades.LiquidationQuery) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: LiquidationFilter(q)}},
		{{Key: "$sort", Value: bson.D{{Key: "executedAt", Value: -1}}}},
	}
}

type positionDelta struct {
	TradeDirection    string        `bson:"tradeDirection"`
	ExecutionPrice    bson.RawValue `bson:"executionPrice"`
	ExecutionQuantity bson.RawValue `bson:"executionQuantity"`
	ExecutionMargin   bson.RawValue `bson:"executionMargin"`
}

type tradeDocument struct {
	MarketID           string        `bson:"marketId"`
	TradeID            string        `bson:"tradeId"`
	SubaccountID       string        `bson:"subaccountId"`
	OrderHash          string        `bson:"orderHash"`
	TradeExecutionType string        `bson:"tradeExecutionType"`
	PositionDelta      positionDelta `bson:"positionDelta"`
	Fee                bson.RawValue `bson:"fee"`
	Payout             bson.RawValue `bson:"payout"`
	IsLiquidation      bool          `bson:"isLiquidation"`
	ExecutedAt         time.Time     `bson:"executedAt"`
}

func (d tradeDocument) toTrade() (trades.Trade, error) {
	t := trades.Trade{
		MarketID:      d.MarketID,
		TradeID:       d.TradeID,
		SubaccountID:  d.SubaccountID,
		OrderHash:     d.OrderHash,
		Direction:     d.PositionDelta.TradeDirection,
		ExecutionType: d.TradeExecutionType,
		IsLiquidation: d.IsLiquidation,
		ExecutedAt:    d.ExecutedAt,
	}

	fields := []struct {
		raw bson.RawValue
		dst *decimal.Decimal
	}{
		{d.PositionDelta.ExecutionPrice, &t.ExecutionPrice},
		{d.PositionDelta.ExecutionQuantity, &t.ExecutionQuantity},
		{d.PositionDelta.ExecutionMargin, &t.ExecutionMargin},
		{d.Fee, &t.Fee},
		{d.Payout, &t.Payout},
	}
	for _, f := range fields {
		v, err := decimalFromRaw(f.raw)
		if err != nil {
			return trades.Trade{}, err
		}
		*f.dst = v
	}
	return t, nil
}

var errUnsupportedNumber = errors.New("unsupported numeric bson type")

// decimalFromRaw accepts the encodings the indexer has used for amounts.
func decimalFromRaw(v bson.RawValue) (decimal.Decimal, error) {
	switch v.Type {
	case 0, bsontype.Null, bsontype.Undefined:
		return decimal.Zero, nil
	case bsontype.String:
		s := v.StringValue()
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	case bsontype.Decimal128:
		return decimal.NewFromString(v.Decimal128().String())
	case bsontype.Double:
		return decimal.NewFromFloat(v.Double()), nil
	case bsontype.Int32:
		return decimal.NewFromInt32(v.Int32()), nil
	case bsontype.Int64:
		return decimal.NewFromInt(v.Int64()), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %s", errUnsupportedNumber, v.Type)
	}
}
