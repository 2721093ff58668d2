package provider

import (
	"context"
	"errors"
	"fmt"

	"vigil/pkg/model"
)

// Provider defines the interface for market-data providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetCandles fetches up to limit OHLCV candles for a symbol/timeframe,
	// ordered by open time ascending. The most recent candle may still be
	// forming; callers that need closed candles must drop it.
	GetCandles(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.Candle, error)

	// IsAvailable checks if the provider can serve requests
	IsAvailable() bool

	// RateLimit returns the rate limit per minute
	RateLimit() int
}

// ErrNoData is returned when the exchange has no candles for the request.
var ErrNoData = errors.New("no candle data available")

// ProviderError represents a provider-specific fetch error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a new fallback provider
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetCandles tries each provider in order until one succeeds
func (f *FallbackProvider) GetCandles(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.Candle, error) {
	var lastErr error
	for _, p := range f.providers {
		candles, err := p.GetCandles(ctx, symbol, timeframe, limit)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured")
	}
	return nil, lastErr
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	return len(f.providers) > 0
}

// RateLimit returns the lowest rate limit among providers so pacing never
// exceeds the most constrained upstream
func (f *FallbackProvider) RateLimit() int {
	minRate := 0
	for _, p := range f.providers {
		if minRate == 0 || p.RateLimit() < minRate {
			minRate = p.RateLimit()
		}
	}
	return minRate
}

// Providers returns the list of underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}
