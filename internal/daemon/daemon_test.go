package daemon

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vigil/internal/config"
	"vigil/internal/cooldown"
	"vigil/internal/notify"
	"vigil/internal/scanner"
	"vigil/internal/signal"
	"vigil/pkg/model"
)

type brokenProvider struct{}

func (brokenProvider) Name() string       { return "broken" }
func (brokenProvider) IsAvailable() bool  { return true }
func (brokenProvider) RateLimit() int     { return 0 }
func (brokenProvider) GetCandles(context.Context, string, model.Timeframe, int) ([]model.Candle, error) {
	return nil, errors.New("exchange unreachable")
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingNotifier) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
	return nil
}

func (r *recordingNotifier) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func TestRun_AnnouncesStartupAndReportsOutage(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Watchlist.Symbols = []string{"BTCUSDT"}

	n := &recordingNotifier{}
	s := scanner.NewScanner(scanner.Options{
		Watchlist:    cfg.Watchlist,
		Detector:     signal.NewDetector(cfg.Detector),
		Provider:     brokenProvider{},
		Ledger:       cooldown.NewLedger(6 * time.Hour),
		Notifier:     n,
		Log:          zerolog.Nop(),
		RSIPeriod:    cfg.Detector.RSIPeriod,
		CandleLimit:  cfg.Scan.CandleLimit,
		FetchTimeout: time.Second,
	})
	d := New(s, n, cfg.Watchlist.Symbols, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run returned %v, want nil on shutdown", err)
	}

	msgs := n.snapshot()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want startup + outage report: %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "SCANNER STARTED") {
		t.Errorf("first message should announce startup: %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "SCANNER ERROR") || !strings.Contains(msgs[1], "all 1 symbols skipped") {
		t.Errorf("second message should report the outage: %q", msgs[1])
	}
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Watchlist.Symbols = []string{"BTCUSDT"}

	n := &recordingNotifier{}
	s := scanner.NewScanner(scanner.Options{
		Watchlist:    cfg.Watchlist,
		Detector:     signal.NewDetector(cfg.Detector),
		Provider:     brokenProvider{},
		Ledger:       cooldown.NewLedger(6 * time.Hour),
		Notifier:     notify.NewLogNotifier(zerolog.Nop()),
		Log:          zerolog.Nop(),
		RSIPeriod:    cfg.Detector.RSIPeriod,
		CandleLimit:  cfg.Scan.CandleLimit,
		FetchTimeout: time.Second,
	})
	d := New(s, n, cfg.Watchlist.Symbols, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("daemon did not stop after cancellation")
	}
}
