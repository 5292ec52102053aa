package api

import (
	"context"
	"fmt"
	"strings"
)

// GetEvent fetches a single event and its markets by ticker.
// The ticker is upper-cased before the request. Throttle exhaustion is returned
// as ErrRateLimited since no further work is possible without the market list.
func (c *Client) GetEvent(ctx context.Context, eventTicker string) (*EventResponse, error) {
	ticker := strings.ToUpper(strings.TrimSpace(eventTicker))

	var resp EventResponse
	if err := c.get(ctx, "event", "/events/"+ticker, nil, &resp); err != nil {
		return nil, fmt.Errorf("get event %s: %w", ticker, err)
	}
	return &resp, nil
}
