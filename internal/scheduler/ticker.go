// Package scheduler optionally drives simulated time from the wall clock.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/lcarva/drinkex/internal/exchange"
)

// Ticker advances the exchange's simulated clock on a cron schedule. It is
// only started when a tick schedule is configured; by default simulated time
// moves only when a caller asks for it.
type Ticker struct {
	cron    *cron.Cron
	ex      *exchange.ExchangeState
	minutes int64
	logger  *slog.Logger
}

// NewTicker creates a ticker that advances the exchange by minutes of
// simulated time per firing of spec (a cron expression with a seconds field).
func NewTicker(ex *exchange.ExchangeState, spec string, minutes int64, logger *slog.Logger) (*Ticker, error) {
	t := &Ticker{
		cron:    cron.New(cron.WithSeconds()),
		ex:      ex,
		minutes: minutes,
		logger:  logger,
	}
	if _, err := t.cron.AddFunc(spec, t.tick); err != nil {
		return nil, fmt.Errorf("register tick: %w", err)
	}
	return t, nil
}

// Start starts the cron scheduler.
func (t *Ticker) Start() {
	t.cron.Start()
	t.logger.Info("auto-tick started", slog.Int64("minutes_per_tick", t.minutes))
}

// Stop stops the cron scheduler and waits for a running tick to finish.
func (t *Ticker) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	t.logger.Info("auto-tick stopped")
}

func (t *Ticker) tick() {
	t.ex.AdvanceTime(t.minutes)
	t.logger.Debug("auto-tick", slog.Int64("sim_time", t.ex.GetCurrentTime()))
}
