package pages

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/injops/dashboard/internal/metrics"
	"github.com/injops/dashboard/internal/store"
	"github.com/injops/dashboard/internal/table"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache is the subset of store.Cache the presenters need.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Publish(ctx context.Context, channel string, message any) error
}

// DefaultBuildTimeout bounds a page build when Runtime.BuildTimeout is unset.
const DefaultBuildTimeout = 2 * time.Minute

// Runtime is shared by all presenters of a registry.
type Runtime struct {
	Cache    Cache
	CacheTTL time.Duration

	// BuildTimeout bounds a shared page build. The build is detached from the
	// callers waiting on it, so one caller giving up does not fail the others.
	BuildTimeout time.Duration

	Metrics *metrics.Metrics
	Logger  *zap.SugaredLogger
	Now     func() time.Time

	group singleflight.Group
}

func (rt *Runtime) now() time.Time {
	if rt.Now != nil {
		return rt.Now()
	}
	return time.Now()
}

func (rt *Runtime) buildTimeout() time.Duration {
	if rt.BuildTimeout > 0 {
		return rt.BuildTimeout
	}
	return DefaultBuildTimeout
}

func (rt *Runtime) logger() *zap.SugaredLogger {
	if rt.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return rt.Logger
}

// BuildFunc runs a page query and renders it. Params are already normalized.
type BuildFunc func(ctx context.Context, p Params) (*table.Table, error)

// Presenter implements Page around a BuildFunc. Every Display and Refresh runs
// the query; the last built table is kept in the cache when one is configured
// and in process otherwise, and is served by Last.
type Presenter struct {
	title        string
	slug         string
	lookback     bool
	marketFilter bool
	build        BuildFunc
	rt           *Runtime

	mu   sync.Mutex
	last map[string]*table.Table
}

type PresenterOption func(*Presenter)

func WithLookback() PresenterOption {
	return func(p *Presenter) { p.lookback = true }
}

func WithMarketFilter() PresenterOption {
	return func(p *Presenter) { p.marketFilter = true }
}

func NewPresenter(rt *Runtime, title string, build BuildFunc, opts ...PresenterOption) *Presenter {
	p := &Presenter{
		title: title,
		slug:  Slugify(title),
		build: build,
		rt:    rt,
		last:  make(map[string]*table.Table),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Presenter) Title() string             { return p.title }
func (p *Presenter) Slug() string              { return p.slug }
func (p *Presenter) LookbackEnabled() bool     { return p.lookback }
func (p *Presenter) MarketFilterEnabled() bool { return p.marketFilter }

func (p *Presenter) Display(ctx context.Context, params Params) (*table.Table, error) {
	params, err := normalize(params, p.lookback, p.marketFilter)
	if err != nil {
		return nil, err
	}
	return p.rebuild(ctx, store.PageKey(p.slug, params.variant()), params)
}

func (p *Presenter) Refresh(ctx context.Context, params Params) (*table.Table, error) {
	params, err := normalize(params, p.lookback, p.marketFilter)
	if err != nil {
		return nil, err
	}
	key := store.PageKey(p.slug, params.variant())

	t, err := p.rebuild(ctx, key, params)
	if err != nil {
		return nil, err
	}

	if p.rt.Cache != nil {
		event := RefreshEvent{
			Type:      EventRefreshed,
			Page:      p.slug,
			Title:     p.title,
			Params:    params,
			UpdatedAt: t.UpdatedAt,
		}
		if err := p.rt.Cache.Publish(ctx, store.ChannelPageRefreshed, event); err != nil {
			p.rt.logger().Warnw("Failed to publish page refresh", "page", p.slug, "error", err)
		}
	}
	return t, nil
}

func (p *Presenter) Last(ctx context.Context, params Params) (*table.Table, error) {
	params, err := normalize(params, p.lookback, p.marketFilter)
	if err != nil {
		return nil, err
	}
	key := store.PageKey(p.slug, params.variant())

	if p.rt.Cache == nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		if t, ok := p.last[key]; ok {
			return t, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNotBuilt, p.title)
	}

	var t table.Table
	if err := p.rt.Cache.Get(ctx, key, &t); err != nil {
		if errors.Is(err, store.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", ErrNotBuilt, p.title)
		}
		return nil, fmt.Errorf("failed to read last %s table: %w", p.title, err)
	}
	return &t, nil
}

// rebuild runs the page query once per key no matter how many callers ask
// concurrently, then stores the result. Each caller stops waiting when its
// own context ends; the shared build runs until done or BuildTimeout.
func (p *Presenter) rebuild(ctx context.Context, key string, params Params) (*table.Table, error) {
	ch := p.rt.group.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.rt.buildTimeout())
		defer cancel()

		start := time.Now()
		t, err := p.build(buildCtx, params)
		p.rt.Metrics.RecordPageBuild(buildCtx, p.slug, err == nil, time.Since(start))
		if err != nil {
			p.rt.logger().Errorw("Page build failed", "page", p.slug, "params", params, "error", err)
			return nil, fmt.Errorf("%s: %w", p.title, err)
		}
		if t.Title == "" {
			t.Title = p.title
		}
		t.UpdatedAt = p.rt.now()

		p.store(buildCtx, key, t)
		p.rt.logger().Debugw("Page built", "page", p.slug, "params", params, "rows", len(t.Rows), "duration", time.Since(start))
		return t, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", p.title, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*table.Table), nil
	}
}

func (p *Presenter) store(ctx context.Context, key string, t *table.Table) {
	if p.rt.Cache == nil {
		p.mu.Lock()
		p.last[key] = t
		p.mu.Unlock()
		return
	}
	if err := p.rt.Cache.Set(ctx, key, t, p.rt.CacheTTL); err != nil {
		p.rt.logger().Warnw("Page cache write failed", "key", key, "error", err)
	}
}
