package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Signal lifecycle metrics
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ibs_bot_signals_total",
			Help: "Signals driven to a terminal state, by action and result",
		},
		[]string{"action", "result"},
	)

	fillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ibs_bot_fills_total",
			Help: "Confirmed fills by detection path",
		},
		[]string{"path"},
	)

	requotesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ibs_bot_requotes_total",
			Help: "Total number of limit order re-prices",
		},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ibs_bot_current_price",
			Help: "Last observed mid price of the traded symbol",
		},
		[]string{"symbol"},
	)

	currentIBS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ibs_bot_ibs",
			Help: "Internal bar strength of the latest finished bar",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ibs_bot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(signalsTotal)
	prometheus.MustRegister(fillsTotal)
	prometheus.MustRegister(requotesTotal)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(currentIBS)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles the Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordSignal records a signal reaching a terminal state
func RecordSignal(action, result string) {
	signalsTotal.WithLabelValues(action, result).Inc()
}

// RecordFill records a confirmed fill and the path that detected it
func RecordFill(path string) {
	fillsTotal.WithLabelValues(path).Inc()
}

// RecordRequote records one limit order re-price
func RecordRequote() {
	requotesTotal.Inc()
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateIBS updates the indicator gauge
func UpdateIBS(symbol string, ibs float64) {
	currentIBS.WithLabelValues(symbol).Set(ibs)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
