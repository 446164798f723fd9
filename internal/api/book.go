package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetOrderBook fetches the full order book for an instrument.
// depth limits levels per side; 0 requests the full ladder.
func (c *Client) GetOrderBook(ctx context.Context, instrument string, depth int) (*OrderBookResponse, error) {
	query := url.Values{}
	query.Set("instrument_name", instrument)
	if depth > 0 {
		query.Set("depth", strconv.Itoa(depth))
	}

	var resp OrderBookResponse
	if err := c.get(ctx, "/public/get_order_book", query, &resp); err != nil {
		return nil, fmt.Errorf("get order book %s: %w", instrument, err)
	}

	return &resp, nil
}
