// Package engine is the host-facing facade: it wires the pattern store,
// matcher, analyzer and delegation controller to a persistence backend and
// owns the flush policy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mehmetkoksal-w/paired/internal/config"
	"github.com/mehmetkoksal-w/paired/internal/delegation"
	"github.com/mehmetkoksal-w/paired/internal/logger"
	"github.com/mehmetkoksal-w/paired/internal/matcher"
	"github.com/mehmetkoksal-w/paired/internal/memory"
	"github.com/mehmetkoksal-w/paired/internal/metrics"
	"github.com/mehmetkoksal-w/paired/internal/model"
)

// Persister loads and saves engine state. Missing state loads as empty
// without an error.
type Persister interface {
	LoadPatterns(ctx context.Context) ([]model.Pattern, error)
	SavePatterns(ctx context.Context, patterns []model.Pattern) error
	LoadStats(ctx context.Context) (model.DelegationState, error)
	SaveStats(ctx context.Context, state model.DelegationState) error
}

// Options carries the collaborators of an Engine. Every field is optional.
type Options struct {
	// Persister nil keeps state in memory only.
	Persister Persister
	Metrics   *metrics.Collector
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string
}

// Engine exposes the matching and delegation APIs.
type Engine struct {
	cfg       config.Config
	store     *memory.Store
	matcher   *matcher.Matcher
	delegator *delegation.Delegator
	persister Persister
	metrics   *metrics.Collector
	log       *zap.Logger
	now       func() time.Time
	immediate bool

	flushMu sync.Mutex
}

// New builds an engine from cfg. It fails when a trigger profile does not
// compile.
func New(cfg config.Config, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := logger.OrNop(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	store := memory.NewStore(StoreOptions(cfg, now, log.Named("memory")))
	d, err := delegation.New(ProfileSpecs(cfg), Weights(cfg), Settings(cfg, now, opts.NewID, log.Named("delegation")))
	if err != nil {
		return nil, fmt.Errorf("trigger profiles: %w", err)
	}

	return &Engine{
		cfg:       cfg,
		store:     store,
		matcher:   matcher.New(store, cfg.Templates, log.Named("matcher")),
		delegator: d,
		persister: opts.Persister,
		metrics:   opts.Metrics,
		log:       log,
		now:       now,
		immediate: cfg.Flush.Mode == config.FlushImmediate,
	}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() config.Config { return e.cfg }

// Load restores patterns and delegation state concurrently. Each half is
// independent: a half that cannot be read is logged and starts cold while the
// other is restored. Only cancellation is returned.
func (e *Engine) Load(ctx context.Context) error {
	if e.persister == nil {
		return nil
	}
	var (
		patterns             []model.Pattern
		state                model.DelegationState
		patternErr, stateErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		patterns, patternErr = e.persister.LoadPatterns(ctx)
		return nil
	})
	g.Go(func() error {
		state, stateErr = e.persister.LoadStats(ctx)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	skipped := 0
	if patternErr != nil {
		e.log.Warn("persistence warning, starting with no patterns", zap.Error(patternErr))
	} else {
		skipped = e.store.Restore(patterns)
	}
	if stateErr != nil {
		e.log.Warn("persistence warning, starting with fresh delegation state", zap.Error(stateErr))
	} else {
		e.delegator.Controller().Restore(state)
	}
	e.metrics.SetPatterns(e.store.Len())
	e.log.Info("state loaded",
		zap.Int("patterns", e.store.Len()),
		zap.Int("skipped", skipped),
		zap.Int("specialists", len(state.Specialists)))
	return nil
}

// Dirty reports whether any state awaits a flush.
func (e *Engine) Dirty() bool {
	return e.store.Dirty() || e.delegator.Controller().Dirty()
}

// Flush writes dirty state to the persister. State that fails to save stays
// dirty for the next attempt.
func (e *Engine) Flush(ctx context.Context) error {
	if e.persister == nil {
		return nil
	}
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	if !e.Dirty() {
		return nil
	}
	start := time.Now()
	var errs []error
	if e.store.Dirty() {
		if err := e.persister.SavePatterns(ctx, e.store.Snapshot()); err != nil {
			e.store.MarkDirty()
			errs = append(errs, fmt.Errorf("save patterns: %w", err))
		}
	}
	ctrl := e.delegator.Controller()
	if ctrl.Dirty() {
		if err := e.persister.SaveStats(ctx, ctrl.Snapshot()); err != nil {
			ctrl.MarkDirty()
			errs = append(errs, fmt.Errorf("save delegation state: %w", err))
		}
	}
	err := errors.Join(errs...)
	e.metrics.Flushed(start, err)
	if err == nil {
		e.log.Debug("state flushed", zap.Duration("took", time.Since(start)))
	}
	return err
}

// mutated runs after every state change. In immediate mode it flushes, and
// a failure is logged without undoing the change.
func (e *Engine) mutated(ctx context.Context) {
	e.metrics.SetPatterns(e.store.Len())
	if !e.immediate {
		return
	}
	if err := e.Flush(ctx); err != nil {
		e.log.Warn("persistence warning", zap.Error(err))
	}
}

// Run flushes every flushEvery and auto-adjusts thresholds every adjustEvery
// until ctx is cancelled, then flushes one last time. A non-positive
// interval disables that job.
func (e *Engine) Run(ctx context.Context, flushEvery, adjustEvery time.Duration) error {
	flushC := tickerC(flushEvery)
	adjustC := tickerC(adjustEvery)
	defer flushC.stop()
	defer adjustC.stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			err := e.Flush(final)
			cancel()
			if err != nil {
				e.log.Warn("final flush failed", zap.Error(err))
			}
			return err
		case <-flushC.c:
			if err := e.Flush(ctx); err != nil {
				e.log.Warn("persistence warning", zap.Error(err))
			}
		case <-adjustC.c:
			e.AutoAdjustThresholds(ctx)
		}
	}
}

// Serve runs the background jobs the configuration asks for: periodic
// flushing in batched mode and, when flush.adjustInterval is set, periodic
// threshold correction.
func (e *Engine) Serve(ctx context.Context) error {
	var flushEvery time.Duration
	if !e.immediate {
		d, err := e.cfg.FlushInterval()
		if err != nil {
			return err
		}
		flushEvery = d
	}
	adjustEvery, err := e.cfg.AdjustInterval()
	if err != nil {
		return err
	}
	e.log.Info("background jobs started",
		zap.Duration("flushEvery", flushEvery),
		zap.Duration("adjustEvery", adjustEvery))
	return e.Run(ctx, flushEvery, adjustEvery)
}

type ticker struct {
	c    <-chan time.Time
	stop func()
}

// tickerC returns a ticker, or a never-firing channel for d <= 0.
func tickerC(d time.Duration) ticker {
	if d <= 0 {
		return ticker{stop: func() {}}
	}
	t := time.NewTicker(d)
	return ticker{c: t.C, stop: t.Stop}
}
