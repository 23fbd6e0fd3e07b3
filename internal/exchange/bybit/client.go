// Package bybit implements the exchange.Gateway capability surface on the
// Bybit v5 unified trading API.
package bybit

import (
	"sync"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// Category for all requests. The bot trades linear USDT perpetuals only.
const category = "linear"

// Config holds the configuration for the Bybit gateway.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool // demo trading environment (paper trading)
}

// Client wraps the Bybit API client and caches instrument precision rules.
type Client struct {
	httpClient *bybit_api.Client
	testnet    bool
	demo       bool

	mu          sync.RWMutex
	instruments map[string]*instrumentRules
}

// NewClient creates a new Bybit gateway client.
func NewClient(config Config) *Client {
	var baseURL string
	if config.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Client{
		httpClient:  httpClient,
		testnet:     config.Testnet,
		demo:        config.Demo,
		instruments: make(map[string]*instrumentRules),
	}
}

// Environment returns a string describing the configured environment.
func (c *Client) Environment() string {
	if c.demo {
		return "demo"
	} else if c.testnet {
		return "testnet"
	}
	return "mainnet"
}
