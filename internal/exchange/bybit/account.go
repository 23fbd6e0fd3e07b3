package bybit

import (
	"context"
	"fmt"

	"ibs-bot/internal/exchange"
)

// AccountState returns withdrawable margin and open linear positions for
// the unified account.
func (c *Client) AccountState(ctx context.Context) (*exchange.AccountState, error) {
	withdrawable, err := c.withdrawableBalance(ctx)
	if err != nil {
		return nil, err
	}

	positions, err := c.positions(ctx)
	if err != nil {
		return nil, err
	}

	return &exchange.AccountState{
		Withdrawable: withdrawable,
		Positions:    positions,
	}, nil
}

func (c *Client) withdrawableBalance(ctx context.Context) (float64, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}

	var result struct {
		List []struct {
			TotalAvailableBalance string `json:"totalAvailableBalance"`
			Coin                  []struct {
				Coin                string `json:"coin"`
				AvailableToWithdraw string `json:"availableToWithdraw"`
			} `json:"coin"`
		} `json:"list"`
	}

	err := retryRead(ctx, DefaultRetryConfig(), func() error {
		resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
		if err != nil {
			return fmt.Errorf("failed to get account wallet: %w", err)
		}
		return decodeResult(resp, &result)
	})
	if err != nil {
		return 0, err
	}

	if len(result.List) == 0 {
		return 0, fmt.Errorf("no account data found")
	}
	return parseFloat(result.List[0].TotalAvailableBalance), nil
}

func (c *Client) positions(ctx context.Context) ([]exchange.Position, error) {
	params := map[string]interface{}{
		"category":   category,
		"settleCoin": "USDT",
	}

	var result struct {
		List []struct {
			Symbol     string `json:"symbol"`
			Side       string `json:"side"`
			Size       string `json:"size"`
			AvgPrice   string `json:"avgPrice"`
			EntryPrice string `json:"entryPrice"`
		} `json:"list"`
	}

	err := retryRead(ctx, DefaultRetryConfig(), func() error {
		resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
		if err != nil {
			return fmt.Errorf("failed to get positions: %w", err)
		}
		return decodeResult(resp, &result)
	})
	if err != nil {
		return nil, err
	}

	var positions []exchange.Position
	for _, p := range result.List {
		size := parseFloat(p.Size)
		if size == 0 {
			continue
		}
		// The venue reports size unsigned with a side tag; callers want a
		// signed size.
		if p.Side == "Sell" {
			size = -size
		}
		entry := parseFloat(p.AvgPrice)
		if entry == 0 {
			entry = parseFloat(p.EntryPrice)
		}
		positions = append(positions, exchange.Position{
			Symbol:     p.Symbol,
			Size:       size,
			EntryPrice: entry,
		})
	}
	return positions, nil
}
