package metrics

import (
	"net/http"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teahouse-finance/tvault/internal/utils"
)

const namespace = "tvault"

var (
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds all vault metrics
type Collector struct {
	registry *prometheus.Registry

	// Operation metrics
	OperationsTotal  *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec

	// Fee metrics
	FeeSharesTotal *prometheus.CounterVec
	FeeTokensTotal *prometheus.CounterVec

	// Vault metrics
	TotalSupply      prometheus.Gauge
	UnderlyingAssets *prometheus.GaugeVec
	PositionsOpen    prometheus.Gauge
	BlockTime        prometheus.Gauge

	// API metrics
	APIRequestsTotal  *prometheus.CounterVec
	APIRequestLatency *prometheus.HistogramVec
}

// GetCollector returns the process-wide collector.
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = NewCollector()
	})
	return collector
}

// NewCollector creates a collector on its own registry.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "total",
			Help:      "Total number of vault operations by outcome",
		},
		[]string{"operation", "result"},
	)

	c.OperationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "latency_ms",
			Help:      "Vault operation latency in milliseconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
		},
		[]string{"operation"},
	)

	c.FeeSharesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "shares_total",
			Help:      "Shares minted or moved to the treasury as fees",
		},
		[]string{"kind"},
	)

	c.FeeTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "tokens_total",
			Help:      "Tokens sent to the treasury as fees",
		},
		[]string{"kind", "token"},
	)

	c.TotalSupply = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "vault",
		Name:      "total_supply",
		Help:      "Outstanding vault shares",
	})

	c.UnderlyingAssets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "underlying_assets",
			Help:      "Idle plus in-position token amounts held by the vault",
		},
		[]string{"token"},
	)

	c.PositionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "vault",
		Name:      "positions_open",
		Help:      "Number of open liquidity positions",
	})

	c.BlockTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "block_time_seconds",
		Help:      "Block time seen by the last operation",
	})

	c.APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API requests",
		},
		[]string{"method", "path", "status"},
	)

	c.APIRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "latency_ms",
			Help:      "API request latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"method", "path"},
	)

	c.registerAll()
	return c
}

func (c *Collector) registerAll() {
	c.registry.MustRegister(
		c.OperationsTotal,
		c.OperationLatency,
		c.FeeSharesTotal,
		c.FeeTokensTotal,
		c.TotalSupply,
		c.UnderlyingAssets,
		c.PositionsOpen,
		c.BlockTime,
		c.APIRequestsTotal,
		c.APIRequestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ============ Recording Helpers ============

// RecordOperation records the outcome and latency of a vault operation
func (c *Collector) RecordOperation(operation string, err error, latencyMs float64) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.OperationsTotal.WithLabelValues(operation, result).Inc()
	c.OperationLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordFeeShares records fee shares for kind ("management", "exit").
func (c *Collector) RecordFeeShares(kind string, shares sdkmath.Int, decimals int) {
	if c == nil || shares.IsNil() || !shares.IsPositive() {
		return
	}
	if v, err := utils.SDKIntToFloat64(shares, decimals); err == nil {
		c.FeeSharesTotal.WithLabelValues(kind).Add(v)
	}
}

// RecordFeeTokens records token fees for kind ("entry", "performance").
func (c *Collector) RecordFeeTokens(kind, token string, amount sdkmath.Int, decimals int) {
	if c == nil || amount.IsNil() || !amount.IsPositive() {
		return
	}
	if v, err := utils.SDKIntToFloat64(amount, decimals); err == nil {
		c.FeeTokensTotal.WithLabelValues(kind, token).Add(v)
	}
}

// UpdateVaultMetrics refreshes the vault gauges
func (c *Collector) UpdateVaultMetrics(totalSupply sdkmath.Int, supplyDecimals int, positions int, blockTime uint64) {
	if c == nil {
		return
	}
	if v, err := utils.SDKIntToFloat64(totalSupply, supplyDecimals); err == nil {
		c.TotalSupply.Set(v)
	}
	c.PositionsOpen.Set(float64(positions))
	c.BlockTime.Set(float64(blockTime))
}

// RecordUnderlying sets the underlying asset gauge for token
func (c *Collector) RecordUnderlying(token string, amount sdkmath.Int, decimals int) {
	if c == nil {
		return
	}
	if v, err := utils.SDKIntToFloat64(amount, decimals); err == nil {
		c.UnderlyingAssets.WithLabelValues(token).Set(v)
	}
}

// RecordAPIRequest records an API request
func (c *Collector) RecordAPIRequest(method, path, status string, latencyMs float64) {
	if c == nil {
		return
	}
	c.APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.APIRequestLatency.WithLabelValues(method, path).Observe(latencyMs)
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ============ HTTP Handler ============

// Handler returns the Prometheus HTTP handler for c
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Timer is a helper for measuring latency
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ElapsedMs returns the elapsed time in milliseconds
func (t *Timer) ElapsedMs() float64 {
	return float64(time.Since(t.start).Microseconds()) / 1000.0
}
