package domain

import (
	"context"
	"time"
)

// QuoteCache publishes the latest top-of-book quote per symbol for external
// read-only consumers.
type QuoteCache interface {
	SetQuote(ctx context.Context, quote Quote) error
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
