package bybit

import (
	"context"
	"fmt"
	"strconv"
)

// MidPrice returns the current mid price for symbol, computed from the best
// bid and ask. Falls back to the last traded price when the book is empty.
func (c *Client) MidPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	var result struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
		} `json:"list"`
	}

	err := retryRead(ctx, DefaultRetryConfig(), func() error {
		resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		if err != nil {
			return fmt.Errorf("failed to get tickers: %w", err)
		}
		return decodeResult(resp, &result)
	})
	if err != nil {
		return 0, err
	}

	if len(result.List) == 0 {
		return 0, fmt.Errorf("no ticker data for %s", symbol)
	}

	ticker := result.List[0]
	bid := parseFloat(ticker.Bid1Price)
	ask := parseFloat(ticker.Ask1Price)
	if bid > 0 && ask > 0 {
		return (bid + ask) / 2, nil
	}

	last := parseFloat(ticker.LastPrice)
	if last <= 0 {
		return 0, fmt.Errorf("no usable price for %s", symbol)
	}
	return last, nil
}

// parseFloat converts the venue's string decimals, returning 0 for empty or
// malformed values. Callers validate the result against their own rules.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
