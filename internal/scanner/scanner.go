// Package scanner orchestrates one scan cycle: fetch candles for every
// watchlist symbol and timeframe, run indicators, scoring and the noise
// filter, gate through the cooldown ledger and dispatch alerts.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vigil/internal/calendar"
	"vigil/internal/config"
	"vigil/internal/cooldown"
	"vigil/internal/indicator"
	"vigil/internal/metrics"
	"vigil/internal/notify"
	"vigil/internal/provider"
	"vigil/internal/ratelimit"
	"vigil/internal/signal"
	"vigil/pkg/model"
)

// State is the orchestrator's current phase within a cycle.
type State string

const (
	StateIdle        State = "IDLE"
	StateFetching    State = "FETCHING"
	StateEvaluating  State = "EVALUATING"
	StateDispatching State = "DISPATCHING"
)

// ProgressCallback is called after each symbol finishes
type ProgressCallback func(scanned, total int)

// Scanner drives the detection pipeline across the watchlist. It is the only
// component with side effects; everything it calls into is a deterministic
// transform.
type Scanner struct {
	cfg       config.WatchlistConfig
	detector  *signal.Detector
	provider  provider.Provider
	ledger    *cooldown.Ledger
	notifier  notify.Notifier
	annotator *calendar.Annotator
	pacer     *ratelimit.Pacer
	metrics   *metrics.Metrics
	log       zerolog.Logger

	rsiPeriod    int
	candleLimit  int
	fetchTimeout time.Duration

	state        State
	now          func() time.Time
	progressFunc ProgressCallback
}

// Options bundles the collaborator set for NewScanner.
type Options struct {
	Watchlist config.WatchlistConfig
	Detector  *signal.Detector
	Provider  provider.Provider
	Ledger    *cooldown.Ledger
	Notifier  notify.Notifier
	Annotator *calendar.Annotator
	Pacer     *ratelimit.Pacer
	Metrics   *metrics.Metrics
	Log       zerolog.Logger

	RSIPeriod    int
	CandleLimit  int
	FetchTimeout time.Duration

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewScanner creates a scanner from its collaborators.
func NewScanner(opts Options) *Scanner {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Scanner{
		cfg:          opts.Watchlist,
		detector:     opts.Detector,
		provider:     opts.Provider,
		ledger:       opts.Ledger,
		notifier:     opts.Notifier,
		annotator:    opts.Annotator,
		pacer:        opts.Pacer,
		metrics:      m,
		log:          opts.Log,
		rsiPeriod:    opts.RSIPeriod,
		candleLimit:  opts.CandleLimit,
		fetchTimeout: opts.FetchTimeout,
		state:        StateIdle,
		now:          now,
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

// State returns the orchestrator's current phase.
func (s *Scanner) State() State {
	return s.state
}

// RunCycle scans every watchlist symbol once. Per-symbol failures are logged
// and skipped; they never abort the cycle for the remaining symbols. The
// returned summary is always valid, even when the context is cancelled
// mid-cycle.
func (s *Scanner) RunCycle(ctx context.Context) model.CycleSummary {
	started := s.now()
	summary := model.CycleSummary{Started: started}

	s.log.Info().
		Int("symbols", len(s.cfg.Symbols)).
		Str("timeframes", fmt.Sprintf("%s/%s/%s", s.cfg.Timeframes.Short, s.cfg.Timeframes.Medium, s.cfg.Timeframes.Long)).
		Msg("scan cycle started")

	for i, symbol := range s.cfg.Symbols {
		if ctx.Err() != nil {
			s.log.Warn().Err(ctx.Err()).Msg("scan cycle interrupted")
			break
		}

		s.evaluateSymbol(ctx, symbol, &summary)
		summary.Scanned++
		s.metrics.SymbolsScanned.Inc()

		if s.progressFunc != nil {
			s.progressFunc(i+1, len(s.cfg.Symbols))
		}
	}

	s.state = StateIdle
	summary.Duration = s.now().Sub(started)
	s.metrics.ObserveCycle(summary.Duration)

	s.log.Info().
		Int("scanned", summary.Scanned).
		Int("skipped", summary.Skipped).
		Int("long", summary.LongCount).
		Int("short", summary.ShortCount).
		Int("dispatched", summary.Dispatched).
		Int("suppressed", summary.Suppressed).
		Dur("duration", summary.Duration).
		Msg("scan cycle finished")

	return summary
}

// evaluateSymbol runs the full pipeline for one symbol.
func (s *Scanner) evaluateSymbol(ctx context.Context, symbol string, summary *model.CycleSummary) {
	s.state = StateFetching
	series, err := s.fetchSeries(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("fetch failed, skipping symbol")
		s.metrics.FetchErrors.Inc()
		summary.Skipped++
		return
	}

	s.state = StateEvaluating
	snaps, err := s.computeSnapshots(symbol, series)
	if err != nil {
		// Insufficient history is an observable skip, not a cycle failure.
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("skipping symbol")
		s.metrics.HistorySkips.Inc()
		summary.Skipped++
		return
	}

	res := s.detector.Score(snaps)
	if res.Direction == model.None {
		s.log.Debug().Str("symbol", symbol).Int("score", res.Score).Msg("no signal")
		return
	}

	// The noise filter only ever sees closed candles of the reference
	// timeframe; the forming candle is still on the end of the series.
	medium := series[s.cfg.Timeframes.Medium]
	closed := medium[:len(medium)-1]
	if signal.Veto(closed, res.Direction) {
		s.log.Info().
			Str("symbol", symbol).
			Str("direction", string(res.Direction)).
			Msg("signal vetoed by noise filter")
		s.metrics.NoiseVetoes.Inc()
		return
	}

	switch res.Direction {
	case model.Long:
		summary.LongCount++
	case model.Short:
		summary.ShortCount++
	}
	s.metrics.SignalsTotal.WithLabelValues(string(res.Direction)).Inc()

	s.state = StateDispatching
	s.dispatch(ctx, symbol, snaps, res, summary)
}

// fetchSeries fetches candles for all three timeframes. The medium series is
// mandatory; short/long fetch failures degrade to a missing confirmation.
func (s *Scanner) fetchSeries(ctx context.Context, symbol string) (map[model.Timeframe][]model.Candle, error) {
	series := make(map[model.Timeframe][]model.Candle, 3)
	for _, tf := range s.cfg.Timeframes.All() {
		if s.pacer != nil {
			if err := s.pacer.Wait(ctx); err != nil {
				return nil, err
			}
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		candles, err := s.provider.GetCandles(fetchCtx, symbol, tf, s.candleLimit)
		cancel()
		if err != nil {
			if tf == s.cfg.Timeframes.Medium {
				return nil, fmt.Errorf("fetch %s %s: %w", symbol, tf, err)
			}
			s.log.Warn().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
				Msg("confirmation timeframe fetch failed")
			continue
		}
		series[tf] = candles
	}
	return series, nil
}

// computeSnapshots derives indicator snapshots per timeframe. The medium
// snapshot is required; short/long snapshots are dropped when their series
// is missing or too short.
func (s *Scanner) computeSnapshots(symbol string, series map[model.Timeframe][]model.Candle) (signal.Snapshots, error) {
	snaps := signal.Snapshots{Timeframes: s.cfg.Timeframes}

	medium, ok := series[s.cfg.Timeframes.Medium]
	if !ok {
		return snaps, fmt.Errorf("%s: no candles for reference timeframe %s", symbol, s.cfg.Timeframes.Medium)
	}
	med, err := indicator.Compute(medium, s.rsiPeriod)
	if err != nil {
		return snaps, fmt.Errorf("%s %s: %w", symbol, s.cfg.Timeframes.Medium, err)
	}
	snaps.Medium = &med

	if candles, ok := series[s.cfg.Timeframes.Short]; ok {
		if snap, err := indicator.Compute(candles, s.rsiPeriod); err == nil {
			snaps.Short = &snap
		} else if !errors.Is(err, indicator.ErrInsufficientHistory) {
			return snaps, fmt.Errorf("%s %s: %w", symbol, s.cfg.Timeframes.Short, err)
		}
	}
	if candles, ok := series[s.cfg.Timeframes.Long]; ok {
		if snap, err := indicator.Compute(candles, s.rsiPeriod); err == nil {
			snaps.Long = &snap
		} else if !errors.Is(err, indicator.ErrInsufficientHistory) {
			return snaps, fmt.Errorf("%s %s: %w", symbol, s.cfg.Timeframes.Long, err)
		}
	}

	return snaps, nil
}

// dispatch gates a passing signal through the cooldown ledger and delivers
// the alert. The ledger is only updated after a successful delivery.
func (s *Scanner) dispatch(ctx context.Context, symbol string, snaps signal.Snapshots, res model.ScoreResult, summary *model.CycleSummary) {
	now := s.now()
	key := cooldown.Key{Symbol: symbol, Timeframe: s.cfg.Timeframes.Medium, Direction: res.Direction}

	if !s.ledger.MayFire(key, now) {
		s.log.Info().
			Str("symbol", symbol).
			Str("direction", string(res.Direction)).
			Msg("alert suppressed by cooldown")
		s.metrics.AlertsSuppressed.Inc()
		summary.Suppressed++
		return
	}

	alert := s.detector.BuildAlert(symbol, snaps, res, now)

	var annotation string
	if s.annotator != nil {
		annotation = s.annotator.Annotation(now)
	}

	if err := s.notifier.Send(ctx, notify.FormatAlert(alert, annotation)); err != nil {
		// Delivery failure is non-fatal and must not start the cooldown:
		// the next cycle gets another chance to deliver.
		s.log.Error().Err(err).
			Str("symbol", symbol).
			Str("alert_id", alert.ID).
			Msg("alert delivery failed")
		s.metrics.NotifyErrors.Inc()
		return
	}

	s.ledger.RecordFire(key, now)
	s.metrics.AlertsDispatched.Inc()
	summary.Dispatched++
	summary.Alerts = append(summary.Alerts, alert)

	s.log.Info().
		Str("symbol", symbol).
		Str("direction", string(res.Direction)).
		Int("score", res.Score).
		Str("alert_id", alert.ID).
		Msg("alert dispatched")
}
