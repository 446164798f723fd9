package api

import (
	"context"
	"fmt"
	"net/url"
)

// GetInstruments fetches active instruments for a currency and kind.
func (c *Client) GetInstruments(ctx context.Context, currency, kind string) ([]APIInstrument, error) {
	query := url.Values{}
	query.Set("currency", currency)
	query.Set("expired", "false")
	if kind != "" {
		query.Set("kind", kind)
	}

	var resp []APIInstrument
	if err := c.get(ctx, "/public/get_instruments", query, &resp); err != nil {
		return nil, fmt.Errorf("get instruments %s/%s: %w", currency, kind, err)
	}

	return resp, nil
}
