// Package daemon runs the scanner on a fixed interval until stopped.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vigil/internal/notify"
	"vigil/internal/scanner"
	"vigil/pkg/model"
)

// Daemon owns the periodic scan loop. It announces startup over the
// notifier, runs the first cycle immediately and then ticks on the
// configured interval until the context is cancelled.
type Daemon struct {
	scanner  *scanner.Scanner
	notifier notify.Notifier
	log      zerolog.Logger

	symbols  []string
	interval time.Duration
	now      func() time.Time
}

// New creates a daemon around an assembled scanner.
func New(s *scanner.Scanner, n notify.Notifier, symbols []string, interval time.Duration, log zerolog.Logger) *Daemon {
	return &Daemon{
		scanner:  s,
		notifier: n,
		log:      log,
		symbols:  symbols,
		interval: interval,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled. The returned error is nil on a clean
// shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info().
		Int("symbols", len(d.symbols)).
		Dur("interval", d.interval).
		Msg("daemon starting")

	if err := d.notifier.Send(ctx, notify.FormatStartup(len(d.symbols), d.interval, d.now())); err != nil {
		// Startup announcement is best effort, the scan loop matters more.
		d.log.Warn().Err(err).Msg("startup notification failed")
	}

	d.cycle(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("daemon stopping")
			return nil
		case <-ticker.C:
			d.cycle(ctx)
		}
	}
}

// cycle runs one scan and reports a total outage over the notifier. A cycle
// where every symbol was skipped means the exchange or the network is gone,
// which the operator should hear about even away from the logs.
func (d *Daemon) cycle(ctx context.Context) {
	summary := d.scanner.RunCycle(ctx)

	if ctx.Err() != nil {
		return
	}
	if summary.Scanned > 0 && summary.Skipped == summary.Scanned {
		msg := fmt.Sprintf("scan cycle failed: all %d symbols skipped", summary.Scanned)
		d.log.Error().Msg(msg)
		if err := d.notifier.Send(ctx, notify.FormatError(msg, d.now())); err != nil {
			d.log.Warn().Err(err).Msg("error notification failed")
		}
		return
	}

	d.logSignals(summary)
}

func (d *Daemon) logSignals(summary model.CycleSummary) {
	for _, alert := range summary.Alerts {
		d.log.Info().
			Str("symbol", alert.Symbol).
			Str("direction", string(alert.Direction)).
			Int("score", alert.Score).
			Float64("entry", alert.Entry).
			Msg("active signal")
	}
}
