package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"vigil/internal/ratelimit"
	"vigil/pkg/model"
)

const bybitBaseURL = "https://api.bybit.com"

// bybitIntervals maps timeframes to Bybit v5 kline intervals
var bybitIntervals = map[model.Timeframe]string{
	"1m": "1", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720",
	"1d": "D", "1w": "W",
}

// BybitProvider implements the Provider interface for the Bybit v5 spot API
type BybitProvider struct {
	baseURL   string
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
}

// NewBybitProvider creates a new Bybit provider
func NewBybitProvider(rateLimitPerMin int) *BybitProvider {
	return &BybitProvider{
		baseURL:   bybitBaseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   ratelimit.NewLimiter("bybit", rateLimitPerMin),
		rateLimit: rateLimitPerMin,
	}
}

// Name returns the provider name
func (p *BybitProvider) Name() string {
	return "bybit"
}

// IsAvailable reports provider availability. The kline endpoint is public,
// so Bybit is always usable.
func (p *BybitProvider) IsAvailable() bool {
	return true
}

// RateLimit returns the rate limit per minute
func (p *BybitProvider) RateLimit() int {
	return p.rateLimit
}

// bybitKlineResponse represents the Bybit v5 kline response envelope
type bybitKlineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"` // [startTime, open, high, low, close, volume, turnover], newest first
	} `json:"result"`
}

// GetCandles fetches spot klines for a symbol, oldest first
func (p *BybitProvider) GetCandles(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.Candle, error) {
	interval, ok := bybitIntervals[timeframe]
	if !ok {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("unsupported timeframe %q", timeframe), Retryable: false}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v5/market/kline?category=spot&symbol=%s&interval=%s&limit=%d",
		p.baseURL, symbol, interval, limit)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: false}
	}

	p.limiter.ResetBackoff()

	var data bybitKlineResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding response: %w", err), Retryable: false}
	}

	if data.RetCode != 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("retCode %d: %s", data.RetCode, data.RetMsg), Retryable: false}
	}
	if len(data.Result.List) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData, Retryable: false}
	}

	candles := make([]model.Candle, 0, len(data.Result.List))
	for _, row := range data.Result.List {
		if len(row) < 6 {
			return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("malformed kline row: %d fields", len(row)), Retryable: false}
		}
		c, err := parseBybitRow(row)
		if err != nil {
			return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("malformed kline row: %w", err), Retryable: false}
		}
		candles = append(candles, c)
	}

	// Bybit lists newest first
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})

	return candles, nil
}

func parseBybitRow(row []string) (model.Candle, error) {
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("start time: %w", err)
	}

	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		fields[i], err = strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
	}

	return model.Candle{
		OpenTime: time.UnixMilli(ms).UTC(),
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}
