package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vigil/pkg/model"
)

func newBybitForTest(url string) *BybitProvider {
	p := NewBybitProvider(6000)
	p.baseURL = url
	return p
}

func newBinanceForTest(url string) *BinanceProvider {
	p := NewBinanceProvider(6000)
	p.baseURL = url
	return p
}

func TestBybitGetCandles_ParsesAndSortsAscending(t *testing.T) {
	// Bybit returns rows newest first.
	body := `{
		"retCode": 0,
		"retMsg": "OK",
		"result": {
			"symbol": "BTCUSDT",
			"list": [
				["1700010000000", "50100", "50200", "50000", "50150", "12.5", "626875"],
				["1700006400000", "50000", "50120", "49900", "50100", "10.0", "501000"]
			]
		}
	}`
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		w.Write([]byte(body))
	}))
	defer srv.Close()

	p := newBybitForTest(srv.URL)
	candles, err := p.GetCandles(context.Background(), "BTCUSDT", "4h", 200)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}

	if gotPath != "/v5/market/kline?category=spot&symbol=BTCUSDT&interval=240&limit=200" {
		t.Errorf("unexpected request path: %s", gotPath)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	if !candles[0].OpenTime.Before(candles[1].OpenTime) {
		t.Error("candles not sorted ascending by open time")
	}
	first := candles[0]
	if first.Open != 50000 || first.High != 50120 || first.Low != 49900 || first.Close != 50100 || first.Volume != 10.0 {
		t.Errorf("unexpected first candle: %+v", first)
	}
	want := time.UnixMilli(1700006400000).UTC()
	if !first.OpenTime.Equal(want) {
		t.Errorf("open time = %v, want %v", first.OpenTime, want)
	}
}

func TestBybitGetCandles_RetCodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode": 10001, "retMsg": "params error", "result": {"list": []}}`))
	}))
	defer srv.Close()

	p := newBybitForTest(srv.URL)
	_, err := p.GetCandles(context.Background(), "BTCUSDT", "4h", 200)

	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("want ProviderError, got %v", err)
	}
	if pErr.Retryable {
		t.Error("API rejection should not be retryable")
	}
}

func TestBybitGetCandles_RateLimitedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newBybitForTest(srv.URL)
	_, err := p.GetCandles(context.Background(), "BTCUSDT", "4h", 200)

	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("want ProviderError, got %v", err)
	}
	if !pErr.Retryable {
		t.Error("429 should be retryable")
	}
	if p.limiter.GetBackoff() == 0 {
		t.Error("429 should trigger the limiter backoff")
	}
}

func TestBybitGetCandles_EmptyListIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode": 0, "retMsg": "OK", "result": {"list": []}}`))
	}))
	defer srv.Close()

	p := newBybitForTest(srv.URL)
	_, err := p.GetCandles(context.Background(), "DELISTEDUSDT", "4h", 200)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("want ErrNoData, got %v", err)
	}
}

func TestBybitGetCandles_ShortRowIsMalformed(t *testing.T) {
	// A truncated row must fail the fetch, not silently thin the series.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode": 0, "retMsg": "OK", "result": {"list": [
			["1700006400000", "50000", "50120", "49900", "50100", "10.0"],
			["1700010000000", "50100"]
		]}}`))
	}))
	defer srv.Close()

	p := newBybitForTest(srv.URL)
	_, err := p.GetCandles(context.Background(), "BTCUSDT", "4h", 200)

	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("want ProviderError for short row, got %v", err)
	}
	if pErr.Retryable {
		t.Error("malformed payload should not be retryable")
	}
}

func TestBybitGetCandles_UnsupportedTimeframe(t *testing.T) {
	p := newBybitForTest("http://unused")
	if _, err := p.GetCandles(context.Background(), "BTCUSDT", "3h", 200); err == nil {
		t.Error("want error for unsupported timeframe")
	}
}

func TestBinanceGetCandles_ParsesRows(t *testing.T) {
	// Binance rows mix a millisecond integer with numeric strings.
	body := `[
		[1700006400000, "3000.10", "3010.00", "2995.50", "3005.25", "150.75", 1700020799999, "452000", 120, "80.0", "240500", "0"],
		[1700020800000, "3005.25", "3020.00", "3000.00", "3015.00", "98.20", 1700035199999, "296000", 95, "50.0", "150700", "0"]
	]`
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		w.Write([]byte(body))
	}))
	defer srv.Close()

	p := newBinanceForTest(srv.URL)
	candles, err := p.GetCandles(context.Background(), "ETHUSDT", "4h", 200)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}

	if gotPath != "/api/v3/klines?symbol=ETHUSDT&interval=4h&limit=200" {
		t.Errorf("unexpected request path: %s", gotPath)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	first := candles[0]
	if first.Open != 3000.10 || first.Close != 3005.25 || first.Volume != 150.75 {
		t.Errorf("unexpected first candle: %+v", first)
	}
	if !candles[0].OpenTime.Before(candles[1].OpenTime) {
		t.Error("candles not ascending")
	}
}

func TestBinanceGetCandles_MalformedRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1700006400000, "not-a-number", "1", "1", "1", "1"]]`))
	}))
	defer srv.Close()

	p := newBinanceForTest(srv.URL)
	if _, err := p.GetCandles(context.Background(), "ETHUSDT", "4h", 200); err == nil {
		t.Error("want error for malformed row")
	}
}

func TestBinanceGetCandles_ShortRowIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1700006400000, "3000.10", "3010.00"]]`))
	}))
	defer srv.Close()

	p := newBinanceForTest(srv.URL)
	_, err := p.GetCandles(context.Background(), "ETHUSDT", "4h", 200)

	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("want ProviderError for short row, got %v", err)
	}
	if pErr.Retryable {
		t.Error("malformed payload should not be retryable")
	}
}

type stubProvider struct {
	name    string
	candles []model.Candle
	err     error
	rate    int
	calls   int
}

func (s *stubProvider) Name() string      { return s.name }
func (s *stubProvider) IsAvailable() bool { return true }
func (s *stubProvider) RateLimit() int    { return s.rate }
func (s *stubProvider) GetCandles(context.Context, string, model.Timeframe, int) ([]model.Candle, error) {
	s.calls++
	return s.candles, s.err
}

func TestFallbackProvider_UsesSecondOnPrimaryFailure(t *testing.T) {
	primary := &stubProvider{name: "a", err: errors.New("down"), rate: 120}
	secondary := &stubProvider{name: "b", candles: []model.Candle{{Close: 1}}, rate: 60}
	f := NewFallbackProvider(primary, secondary)

	candles, err := f.GetCandles(context.Background(), "BTCUSDT", "4h", 200)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("got %d candles, want 1", len(candles))
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.calls, secondary.calls)
	}
}

func TestFallbackProvider_StopsOnCancelledContext(t *testing.T) {
	primary := &stubProvider{name: "a", err: errors.New("down")}
	secondary := &stubProvider{name: "b", candles: []model.Candle{{Close: 1}}}
	f := NewFallbackProvider(primary, secondary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.GetCandles(ctx, "BTCUSDT", "4h", 200); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times after cancellation, want 0", secondary.calls)
	}
}

func TestFallbackProvider_RateLimitIsLowest(t *testing.T) {
	f := NewFallbackProvider(
		&stubProvider{name: "a", rate: 120},
		&stubProvider{name: "b", rate: 60},
	)
	if got := f.RateLimit(); got != 60 {
		t.Errorf("RateLimit() = %d, want 60", got)
	}
}
