package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// CandlestickRequest identifies one market's candlestick window.
type CandlestickRequest struct {
	SeriesTicker string
	MarketTicker string
	StartTS      int64 // epoch seconds
	EndTS        int64 // epoch seconds
	Interval     int   // minutes: 1, 60 or 1440
}

// GetCandlesticks fetches the candlesticks of one market.
//
// Throttle exhaustion is not an error: it is logged as a warning and an empty
// slice is returned so the caller can continue with the remaining markets.
func (c *Client) GetCandlesticks(ctx context.Context, r CandlestickRequest) ([]APICandlestick, error) {
	candles, err := c.FetchCandlesticks(ctx, r)
	if errors.Is(err, ErrRateLimited) {
		c.logger.Warn("candlestick fetch rate limited, returning no periods",
			"ticker", r.MarketTicker,
			"attempts", c.maxAttempts,
			"error", err,
		)
		return []APICandlestick{}, nil
	}
	return candles, err
}

// FetchCandlesticks is GetCandlesticks without the soft throttle handling:
// an exhausted retry budget is returned as an error wrapping ErrRateLimited.
func (c *Client) FetchCandlesticks(ctx context.Context, r CandlestickRequest) ([]APICandlestick, error) {
	path := fmt.Sprintf("/series/%s/markets/%s/candlesticks", r.SeriesTicker, r.MarketTicker)

	query := url.Values{}
	query.Set("start_ts", strconv.FormatInt(r.StartTS, 10))
	query.Set("end_ts", strconv.FormatInt(r.EndTS, 10))
	query.Set("period_interval", strconv.Itoa(r.Interval))

	var resp CandlesticksResponse
	if err := c.get(ctx, "candlesticks", path, query, &resp); err != nil {
		return nil, fmt.Errorf("get candlesticks %s: %w", r.MarketTicker, err)
	}

	return resp.Candlesticks, nil
}
