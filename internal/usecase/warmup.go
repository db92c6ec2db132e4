package usecase

import (
	"context"
	"errors"
	"fmt"

	"RegimeChain/internal/domain/models"
	domrepo "RegimeChain/internal/domain/repository"
	mid "RegimeChain/internal/middleware"
	applogger "RegimeChain/pkg/logger"
)

// BarWarmer rebuilds engine state without emitting to sinks.
type BarWarmer interface {
	Warm(ctx context.Context, bar models.Bar) (models.Prediction, error)
}

// WarmupResult counts what a warm-up replayed per symbol.
type WarmupResult struct {
	Loaded   map[string]int
	Replayed map[string]int
	Skipped  map[string]int
}

// Warmup loads recent history from a BarStore and replays it through the engine.
type Warmup struct {
	store  domrepo.BarStore
	engine BarWarmer
	tf     domrepo.Timeframe
	bars   int
	log    *applogger.Logger
}

func NewWarmup(store domrepo.BarStore, engine BarWarmer, tf domrepo.Timeframe, bars int, log *applogger.Logger) *Warmup {
	if log == nil {
		log = applogger.Nop()
	}
	return &Warmup{store: store, engine: engine, tf: tf, bars: bars, log: log}
}

// Run warms every symbol. A failing symbol does not stop the others; all
// failures are joined into the returned error.
func (w *Warmup) Run(ctx context.Context, symbols []string) (WarmupResult, error) {
	res := WarmupResult{
		Loaded:   make(map[string]int, len(symbols)),
		Replayed: make(map[string]int, len(symbols)),
		Skipped:  make(map[string]int, len(symbols)),
	}
	if w.bars <= 0 {
		return res, nil
	}

	var errs []error
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		bars, err := w.store.GetLatestNBars(ctx, sym, w.bars, w.tf)
		if err != nil {
			errs = append(errs, fmt.Errorf("warmup %s: %w", sym, err))
			continue
		}
		res.Loaded[sym] = len(bars)

		for _, b := range bars {
			if err := mid.ValidateBar(b); err != nil {
				res.Skipped[sym]++
				continue
			}
			if _, err := w.engine.Warm(ctx, b); err != nil {
				if errors.Is(err, models.ErrOutOfOrder) {
					res.Skipped[sym]++
					continue
				}
				errs = append(errs, fmt.Errorf("warmup %s: %w", sym, err))
				break
			}
			res.Replayed[sym]++
		}

		w.log.Info("warmup symbol done",
			applogger.String("symbol", sym),
			applogger.Int("loaded", res.Loaded[sym]),
			applogger.Int("replayed", res.Replayed[sym]),
			applogger.Int("skipped", res.Skipped[sym]),
		)
	}
	return res, errors.Join(errs...)
}
