package bybit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ibs-bot/internal/exchange"
	"ibs-bot/pkg/types"
)

// orderRow is the order shape shared by the open-orders and order-history
// endpoints.
type orderRow struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Qty         string `json:"qty"`
	Price       string `json:"price"`
	OrderStatus string `json:"orderStatus"`
	CumExecQty  string `json:"cumExecQty"`
}

type orderListResult struct {
	List []orderRow `json:"list"`
}

// SetLeverage sets the symbol's buy and sell leverage to the same value.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage float64) error {
	lev := strconv.FormatFloat(leverage, 'f', -1, 64)
	params := map[string]interface{}{
		"category":     category,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}

	resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).SetPositionLeverage(ctx)
	if err != nil {
		return fmt.Errorf("failed to set leverage: %w", err)
	}

	var result struct{}
	return decodeResult(resp, &result)
}

// PlaceLimitOrder submits a GTC limit order tagged with the caller's client
// order id. Placement is single-shot: the engine owns retry policy.
func (c *Client) PlaceLimitOrder(ctx context.Context, req exchange.LimitOrderRequest) (*exchange.OrderAck, error) {
	rules, err := c.rules(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"category":    category,
		"symbol":      req.Symbol,
		"side":        sideToVenue(req.Side),
		"orderType":   "Limit",
		"qty":         strconv.FormatFloat(req.Size, 'f', rules.sizeDecimals, 64),
		"price":       strconv.FormatFloat(req.Price, 'f', rules.tickDecimals, 64),
		"timeInForce": "GTC",
		"orderLinkId": req.ClientOrderID,
	}
	if req.ReduceOnly {
		params["reduceOnly"] = true
	}

	resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	var result struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
		OrderStatus string `json:"orderStatus"`
	}
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}

	return &exchange.OrderAck{
		Ref: exchange.OrderRef{
			OrderID:       result.OrderID,
			ClientOrderID: req.ClientOrderID,
			Symbol:        req.Symbol,
		},
		// The create ack rarely carries a status; an empty one means the
		// order is resting until a status query says otherwise.
		Status: ackStatus(result.OrderStatus),
	}, nil
}

// AmendOrder re-prices a resting order in place.
func (c *Client) AmendOrder(ctx context.Context, ref exchange.OrderRef, price float64) (*exchange.OrderAck, error) {
	rules, err := c.rules(ctx, ref.Symbol)
	if err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   ref.Symbol,
		"price":    strconv.FormatFloat(price, 'f', rules.tickDecimals, 64),
	}
	if ref.OrderID != "" {
		params["orderId"] = ref.OrderID
	} else {
		params["orderLinkId"] = ref.ClientOrderID
	}

	resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).AmendOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to amend order: %w", err)
	}

	var result struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}

	return &exchange.OrderAck{
		Ref:    ref,
		Status: exchange.OrderResting,
	}, nil
}

// OrderStatus looks the order up in the live book first and falls back to
// order history, so a just-filled order is still resolvable.
func (c *Client) OrderStatus(ctx context.Context, ref exchange.OrderRef) (*exchange.OrderState, error) {
	idParams := map[string]interface{}{
		"category": category,
		"symbol":   ref.Symbol,
	}
	if ref.OrderID != "" {
		idParams["orderId"] = ref.OrderID
	} else {
		idParams["orderLinkId"] = ref.ClientOrderID
	}

	var open orderListResult
	resp, err := c.httpClient.NewUtaBybitServiceWithParams(idParams).GetOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query open orders: %w", err)
	}
	if err := decodeResult(resp, &open); err != nil {
		return nil, err
	}
	if state := matchOrder(open.List, ref); state != nil {
		return state, nil
	}

	var hist orderListResult
	resp, err = c.httpClient.NewUtaBybitServiceWithParams(idParams).GetOrderHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query order history: %w", err)
	}
	if err := decodeResult(resp, &hist); err != nil {
		return nil, err
	}
	if state := matchOrder(hist.List, ref); state != nil {
		return state, nil
	}

	return nil, ErrOrderNotFound
}

// OpenOrders lists the account's resting orders on symbol.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]exchange.OrderState, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	var result orderListResult
	resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get open orders: %w", err)
	}
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}

	states := make([]exchange.OrderState, 0, len(result.List))
	for _, row := range result.List {
		states = append(states, toOrderState(row))
	}
	return states, nil
}

// RecentFills lists the account's recent executions on symbol, newest first.
func (c *Client) RecentFills(ctx context.Context, symbol string) ([]exchange.Fill, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"limit":    50,
	}

	var result struct {
		List []struct {
			OrderID     string `json:"orderId"`
			OrderLinkID string `json:"orderLinkId"`
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			ExecQty     string `json:"execQty"`
			ExecPrice   string `json:"execPrice"`
			ExecTime    string `json:"execTime"`
		} `json:"list"`
	}

	resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetTradeHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade history: %w", err)
	}
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}

	fills := make([]exchange.Fill, 0, len(result.List))
	for _, row := range result.List {
		fills = append(fills, exchange.Fill{
			OrderID:       row.OrderID,
			ClientOrderID: row.OrderLinkID,
			Symbol:        row.Symbol,
			Side:          sideFromVenue(row.Side),
			Size:          parseFloat(row.ExecQty),
			Price:         parseFloat(row.ExecPrice),
			Time:          parseTimestamp(row.ExecTime),
		})
	}
	return fills, nil
}

func matchOrder(rows []orderRow, ref exchange.OrderRef) *exchange.OrderState {
	for _, row := range rows {
		if (ref.OrderID != "" && row.OrderID == ref.OrderID) ||
			(ref.ClientOrderID != "" && row.OrderLinkID == ref.ClientOrderID) {
			state := toOrderState(row)
			return &state
		}
	}
	return nil
}

func toOrderState(row orderRow) exchange.OrderState {
	return exchange.OrderState{
		Ref: exchange.OrderRef{
			OrderID:       row.OrderID,
			ClientOrderID: row.OrderLinkID,
			Symbol:        row.Symbol,
		},
		Status:     mapOrderStatus(row.OrderStatus),
		Price:      parseFloat(row.Price),
		Size:       parseFloat(row.Qty),
		FilledSize: parseFloat(row.CumExecQty),
	}
}

// mapOrderStatus maps Bybit order states onto the gateway's model.
func mapOrderStatus(status string) exchange.OrderStatus {
	switch status {
	case "New", "PartiallyFilled", "Untriggered", "Created":
		return exchange.OrderResting
	case "Filled":
		return exchange.OrderFilled
	case "Cancelled", "PartiallyFilledCanceled", "Deactivated":
		return exchange.OrderCancelled
	case "Rejected":
		return exchange.OrderRejected
	default:
		return exchange.OrderUnknown
	}
}

func ackStatus(status string) exchange.OrderStatus {
	if status == "" {
		return exchange.OrderResting
	}
	return mapOrderStatus(status)
}

func sideToVenue(side types.Side) string {
	if side == types.SideLong {
		return "Buy"
	}
	return "Sell"
}

func sideFromVenue(side string) types.Side {
	if side == "Buy" {
		return types.SideLong
	}
	return types.SideShort
}

// parseTimestamp converts a millisecond epoch string.
func parseTimestamp(ms string) time.Time {
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}

var _ exchange.Gateway = (*Client)(nil)
