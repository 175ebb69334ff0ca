// Package ranking keeps the materialized market-cap ranking fresh.
package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"go.uber.org/zap"

	"github.com/chainsight/token-metrics/internal/metrics"
)

// Store is the slice of tokendb.Store the refresher needs.
type Store interface {
	RefreshRanking(ctx context.Context) error
}

// Options configures the refresh loop.
type Options struct {
	// Interval between refresh cycles. The ranking is stale in between;
	// readers are expected to tolerate that.
	Interval time.Duration `default:"5m"`
	// Timeout for a single refresh statement.
	Timeout time.Duration `default:"2m"`
}

// Refresher periodically rebuilds the market-cap ranking. A failed refresh is
// logged and counted; the next tick retries.
type Refresher struct {
	store  Store
	opts   Options
	logger *zap.Logger
}

// New creates a refresher. Zero option fields fall back to defaults.
func New(store Store, opts Options, logger *zap.Logger) (*Refresher, error) {
	if store == nil {
		return nil, fmt.Errorf("nil store")
	}
	if err := defaults.Set(&opts); err != nil {
		return nil, fmt.Errorf("apply default options: %w", err)
	}
	return &Refresher{store: store, opts: opts, logger: logger}, nil
}

// Start launches the refresh loop and returns a stop function. The first
// refresh runs immediately so the ranking is populated right after boot.
// Stop blocks until the loop has exited.
func (r *Refresher) Start(ctx context.Context) (stop func()) {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		r.refreshOnce(loopCtx)

		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				r.refreshOnce(loopCtx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (r *Refresher) refreshOnce(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	start := time.Now()
	if err := r.store.RefreshRanking(refreshCtx); err != nil {
		metrics.RankingRefreshes.WithLabelValues("error").Inc()
		if ctx.Err() == nil {
			r.logger.Error("Ranking refresh failed", zap.Error(err))
		}
		return
	}

	metrics.RankingRefreshes.WithLabelValues("ok").Inc()
	r.logger.Info("Ranking refreshed", zap.Duration("took", time.Since(start)))
}
