package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/injops/dashboard/internal/chain"
	"github.com/injops/dashboard/internal/config"
	"github.com/injops/dashboard/internal/metrics"
	"github.com/injops/dashboard/internal/pages"
	"github.com/injops/dashboard/internal/refdata"
	"github.com/injops/dashboard/internal/trades"
	"github.com/injops/dashboard/internal/trades/mongo"
	"github.com/injops/dashboard/internal/trades/postgres"
	"github.com/injops/dashboard/internal/tunnel"
	"go.uber.org/zap"
)

// app holds the components shared by the serve and show commands.
type app struct {
	cfg     *config.Config
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics

	reader  *chain.Client
	holder  *refdata.Holder
	trades  trades.Source
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger, m *metrics.Metrics) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: m}

	a.reader = chain.NewClient(chain.ClientOptions{
		LCDURL:         cfg.Chain.LCDURL,
		IndexerURL:     cfg.Chain.IndexerURL,
		TokenListURL:   cfg.Chain.TokenListURL,
		Timeout:        cfg.Chain.Timeout,
		RequestsPerSec: cfg.Chain.RequestsPerSec,
		Metrics:        m,
	}, logger)

	source, err := a.newTradeSource(ctx)
	if err != nil {
		return nil, err
	}
	a.trades = source

	a.holder = refdata.NewHolder(a.reader, logger)
	loadCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if _, err := a.holder.Load(loadCtx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	return a, nil
}

func (a *app) newTradeSource(ctx context.Context) (trades.Source, error) {
	switch a.cfg.Trades.Backend {
	case config.TradesBackendPostgres:
		store, err := postgres.Open(ctx, a.cfg.Database.PostgresDSN, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.logger.Infow("Trade history backend configured", "backend", "postgres")
		return store, nil

	default:
		mcfg := mongo.Config{
			Host:       a.cfg.Mongo.Host,
			Port:       a.cfg.Mongo.Port,
			Database:   a.cfg.Mongo.Database,
			Collection: a.cfg.Mongo.Collection,
			Timeout:    a.cfg.Mongo.Timeout,
		}
		if a.cfg.TunnelEnabled() {
			mcfg.Tunnel = &tunnel.Config{
				Host:           a.cfg.Tunnel.Host,
				Port:           a.cfg.Tunnel.Port,
				User:           a.cfg.Tunnel.User,
				KeyPath:        a.cfg.Tunnel.KeyPath,
				KnownHostsPath: a.cfg.Tunnel.KnownHostsPath,
			}
		}
		a.logger.Infow("Trade history backend configured",
			"backend", "mongo",
			"database", mcfg.Database,
			"collection", mcfg.Collection,
			"tunnel", a.cfg.TunnelEnabled(),
		)
		return mongo.NewSource(mcfg, a.logger), nil
	}
}

func (a *app) dashboard(rt *pages.Runtime) *pages.Registry {
	return pages.NewDashboard(pages.Deps{
		Reader:    a.reader,
		Trades:    a.trades,
		Reference: a.holder,
		Logger:    a.logger,
		Location:  a.cfg.Location(),
	}, rt)
}

func (a *app) Close() error {
	var errs []error
	if a.holder != nil {
		a.holder.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
