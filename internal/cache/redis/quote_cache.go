package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/execlab/tradecost/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. Each symbol's
// latest top-of-book quote is stored at key "quote:{symbol}" with fields
// "bid", "ask", "mid", "spread", and "ts" (Unix nanosecond timestamp).
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client. A ttl > 0
// expires stale quotes.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(symbol string) string {
	return "quote:" + symbol
}

// SetQuote stores the latest quote for a symbol.
func (qc *QuoteCache) SetQuote(ctx context.Context, quote domain.Quote) error {
	key := quoteKey(quote.Symbol)
	fields := map[string]interface{}{
		"bid":    strconv.FormatFloat(quote.BestBid, 'f', -1, 64),
		"ask":    strconv.FormatFloat(quote.BestAsk, 'f', -1, 64),
		"mid":    strconv.FormatFloat(quote.MidPrice, 'f', -1, 64),
		"spread": strconv.FormatFloat(quote.Spread, 'f', -1, 64),
		"ts":     strconv.FormatInt(quote.Timestamp.UnixNano(), 10),
	}

	pipe := qc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if qc.ttl > 0 {
		pipe.Expire(ctx, key, qc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", quote.Symbol, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for a symbol. It returns
// domain.ErrNotFound when no quote exists.
func (qc *QuoteCache) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(symbol)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	quote := domain.Quote{Symbol: symbol}
	quote.BestBid, _ = strconv.ParseFloat(vals["bid"], 64)
	quote.BestAsk, _ = strconv.ParseFloat(vals["ask"], 64)
	quote.MidPrice, _ = strconv.ParseFloat(vals["mid"], 64)
	quote.Spread, _ = strconv.ParseFloat(vals["spread"], 64)
	if tsStr, ok := vals["ts"]; ok {
		if tsNano, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			quote.Timestamp = time.Unix(0, tsNano)
		}
	}
	return quote, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
