package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/optflow/deriv-data/internal/model"
)

// GetChartData fetches OHLCV bars for [start, end] (ms since epoch) at the
// given resolution.
func (c *Client) GetChartData(ctx context.Context, instrument string, start, end int64, resolution time.Duration) (*ChartData, error) {
	query := url.Values{}
	query.Set("instrument_name", instrument)
	query.Set("start_timestamp", strconv.FormatInt(start, 10))
	query.Set("end_timestamp", strconv.FormatInt(end, 10))
	query.Set("resolution", resolutionParam(resolution))

	var resp ChartData
	if err := c.get(ctx, "/public/get_tradingview_chart_data", query, &resp); err != nil {
		return nil, fmt.Errorf("get chart data %s: %w", instrument, err)
	}

	return &resp, nil
}

// GetCandleRange pages through history for [start, end], pageSize bars per
// request, and returns candles in ascending time order. The upstream history
// API paginates per instrument, so callers run one range at a time.
func (c *Client) GetCandleRange(ctx context.Context, instrument string, start, end int64, resolution time.Duration, pageSize int) ([]model.CandleEvent, error) {
	if pageSize < 1 {
		pageSize = 1
	}
	step := resolution.Milliseconds() * int64(pageSize)

	var all []model.CandleEvent
	for cursor := start; cursor <= end; cursor += step {
		pageEnd := cursor + step - resolution.Milliseconds()
		if pageEnd > end {
			pageEnd = end
		}

		data, err := c.GetChartData(ctx, instrument, cursor, pageEnd, resolution)
		if err != nil {
			return all, err
		}
		if data.Status == "no_data" {
			continue
		}

		all = append(all, data.Candles(instrument)...)
	}

	return all, nil
}

// resolutionParam maps a candle resolution to the chart API parameter
// (minutes, or "1D" for daily).
func resolutionParam(resolution time.Duration) string {
	if resolution >= 24*time.Hour {
		return "1D"
	}
	minutes := int64(resolution / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return strconv.FormatInt(minutes, 10)
}
