package bybit

import (
	"context"
	"fmt"
	"strings"

	"ibs-bot/internal/exchange"
)

// instrumentRules caches the venue's raw precision strings so order
// quantities and prices can be formatted exactly as the filters demand.
type instrumentRules struct {
	qtyStep      string
	tickSize     string
	minOrderQty  string
	sizeDecimals int
	tickDecimals int
}

// Instrument returns the precision rules for symbol, fetching and caching
// them on first use. Instrument filters change rarely enough that the cache
// lives for the process lifetime.
func (c *Client) Instrument(ctx context.Context, symbol string) (*exchange.Instrument, error) {
	rules, err := c.rules(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return &exchange.Instrument{
		Symbol:       symbol,
		SizeDecimals: rules.sizeDecimals,
		TickSize:     parseFloat(rules.tickSize),
		MinOrderSize: parseFloat(rules.minOrderQty),
	}, nil
}

func (c *Client) rules(ctx context.Context, symbol string) (*instrumentRules, error) {
	c.mu.RLock()
	if rules, ok := c.instruments[symbol]; ok {
		c.mu.RUnlock()
		return rules, nil
	}
	c.mu.RUnlock()

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	var result struct {
		List []struct {
			Symbol      string `json:"symbol"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				QtyStep     string `json:"qtyStep"`
				MinOrderQty string `json:"minOrderQty"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}

	err := retryRead(ctx, DefaultRetryConfig(), func() error {
		resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
		if err != nil {
			return fmt.Errorf("failed to get instrument info: %w", err)
		}
		return decodeResult(resp, &result)
	})
	if err != nil {
		return nil, err
	}

	if len(result.List) == 0 {
		return nil, fmt.Errorf("instrument %s not found", symbol)
	}

	info := result.List[0]
	rules := &instrumentRules{
		qtyStep:      info.LotSizeFilter.QtyStep,
		tickSize:     info.PriceFilter.TickSize,
		minOrderQty:  info.LotSizeFilter.MinOrderQty,
		sizeDecimals: decimalsFromStep(info.LotSizeFilter.QtyStep),
		tickDecimals: decimalsFromStep(info.PriceFilter.TickSize),
	}

	c.mu.Lock()
	c.instruments[symbol] = rules
	c.mu.Unlock()

	return rules, nil
}

// decimalsFromStep derives the decimal precision from a step string such as
// "0.001" (3) or "1" (0).
func decimalsFromStep(step string) int {
	dot := strings.IndexByte(step, '.')
	if dot < 0 {
		return 0
	}
	frac := strings.TrimRight(step[dot+1:], "0")
	return len(frac)
}
