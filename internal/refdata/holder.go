package refdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/injops/dashboard/internal/chain"
	"github.com/injops/dashboard/internal/market"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNotLoaded = errors.New("reference data not loaded")

// Holder owns the current reference tables. Each load replaces them wholesale;
// readers always see a complete snapshot.
type Holder struct {
	reader chain.Reader
	logger *zap.SugaredLogger

	current atomic.Pointer[market.Reference]
	loadMu  sync.Mutex

	cron        *cron.Cron
	loadTimeout time.Duration

	listenersMu sync.RWMutex
	listeners   []func(*market.Reference)
}

func NewHolder(reader chain.Reader, logger *zap.SugaredLogger) *Holder {
	return &Holder{
		reader:      reader,
		logger:      logger,
		loadTimeout: 2 * time.Minute,
	}
}

// Current returns the latest snapshot, or nil before the first successful load.
func (h *Holder) Current() *market.Reference {
	return h.current.Load()
}

// Get is Current with an error for callers that cannot proceed without data.
func (h *Holder) Get() (*market.Reference, error) {
	ref := h.current.Load()
	if ref == nil {
		return nil, ErrNotLoaded
	}
	return ref, nil
}

func (h *Holder) Loaded() bool {
	return h.current.Load() != nil
}

// OnLoad registers fn to be called after every successful load.
func (h *Holder) OnLoad(fn func(*market.Reference)) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Load fetches tokens and markets and swaps in freshly built tables. On error
// the previous tables stay in place.
func (h *Holder) Load(ctx context.Context) (*market.Reference, error) {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	var (
		tokens      []chain.Token
		spots       []chain.SpotMarket
		derivatives []chain.DerivativeMarket
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tokens, err = h.reader.Tokens(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		spots, err = h.reader.SpotMarkets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		derivatives, err = h.reader.DerivativeMarkets(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}

	ref := market.Build(tokens, spots, derivatives, h.logger)
	h.current.Store(ref)

	h.listenersMu.RLock()
	listeners := append([]func(*market.Reference){}, h.listeners...)
	h.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(ref)
	}

	return ref, nil
}

// Schedule reloads the tables on the given cron spec until Stop is called.
// An empty spec is a no-op.
func (h *Holder) Schedule(spec string) error {
	if spec == "" {
		return nil
	}
	if h.cron != nil {
		return fmt.Errorf("reference refresh already scheduled")
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.loadTimeout)
		defer cancel()

		if _, err := h.Load(ctx); err != nil {
			h.logger.Errorw("Scheduled reference refresh failed, keeping previous tables", "error", err)
			return
		}
		h.logger.Infow("Scheduled reference refresh completed")
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	h.cron = c
	c.Start()
	h.logger.Infow("Reference refresh scheduled", "spec", spec)
	return nil
}

func (h *Holder) Stop() {
	if h.cron == nil {
		return
	}
	<-h.cron.Stop().Done()
}
