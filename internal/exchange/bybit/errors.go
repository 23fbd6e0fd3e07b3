package bybit

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a Bybit API error with its venue return code.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit API error %d: %s", e.Code, e.Message)
}

// Common Bybit return codes the gateway reacts to.
const (
	ErrCodeOrderNotFound     = 110001
	ErrCodeRateLimitExceeded = 10006
	ErrCodeInsufficientFunds = 110007
)

// ErrOrderNotFound is returned by OrderStatus when the order cannot be found
// in either the live book or recent history. The execution engine treats it
// like any other status-query failure and falls back to fill evidence.
var ErrOrderNotFound = errors.New("order not found")

// IsRetryable reports whether an error is worth retrying at the gateway
// level (rate limits and upstream 5xx conditions).
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrCodeRateLimitExceeded,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// newAPIError maps a non-zero venue return code to a typed error.
func newAPIError(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return &APIError{Code: retCode, Message: retMsg}
}
