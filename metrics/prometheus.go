package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TrancheFi Metrics Collector
// Provides comprehensive metrics for monitoring

var (
	// Singleton collector
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds all TrancheFi metrics
type Collector struct {
	// Mint/burn metrics
	MintsTotal     *prometheus.CounterVec
	MintCollateral *prometheus.CounterVec
	BurnsTotal     *prometheus.CounterVec
	BurnLever      *prometheus.CounterVec
	MintLatency    *prometheus.HistogramVec

	// Claim ledger metrics
	TotalCollateral prometheus.Gauge
	TotalStable     prometheus.Gauge
	TotalLever      *prometheus.GaugeVec
	Deficit         prometheus.Gauge

	// NAV metrics
	NetNav       *prometheus.GaugeVec
	NavFloorHits *prometheus.CounterVec

	// Risk metrics
	PositionsByRiskLevel *prometheus.GaugeVec
	RiskSweepLatency     *prometheus.HistogramVec
	RiskSweepCandidates  *prometheus.HistogramVec

	// Liquidation metrics
	LiquidationsTotal *prometheus.CounterVec
	LiquidationValue  *prometheus.CounterVec
	PenaltyValue      *prometheus.CounterVec
	KeeperRewards     *prometheus.CounterVec

	// Auction metrics
	AuctionsOpen       prometheus.Gauge
	AuctionsTotal      *prometheus.CounterVec
	AuctionResets      *prometheus.CounterVec
	AuctionPurchases   *prometheus.CounterVec
	AuctionVolume      *prometheus.CounterVec
	AuctionDeficit     *prometheus.CounterVec
	AuctionClearPrice  *prometheus.HistogramVec

	// Oracle metrics
	OraclePrice     *prometheus.GaugeVec
	OracleStaleness *prometheus.GaugeVec
	OracleUpdates   *prometheus.CounterVec

	// WebSocket metrics
	WSConnectionsActive *prometheus.GaugeVec
	WSMessagesTotal     *prometheus.CounterVec
	WSMessageLatency    *prometheus.HistogramVec
	WSSubscriptions     *prometheus.GaugeVec

	// API metrics
	APIRequestsTotal  *prometheus.CounterVec
	APIRequestLatency *prometheus.HistogramVec
	APIErrorsTotal    *prometheus.CounterVec
	RateLimitHits     *prometheus.CounterVec

	// System metrics
	BlockHeight prometheus.Gauge
	BlockTime   *prometheus.HistogramVec
	TxPoolSize  prometheus.Gauge
	PeerCount   prometheus.Gauge
}

// GetCollector returns the singleton metrics collector
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = newCollector()
	})
	return collector
}

// newCollector creates a new metrics collector
func newCollector() *Collector {
	c := &Collector{}

	// Mint/burn metrics
	c.MintsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "custodian",
			Name:      "mints_total",
			Help:      "Total number of mint operations",
		},
		[]string{"tier"},
	)

	c.MintCollateral = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "custodian",
			Name:      "mint_collateral",
			Help:      "Total collateral deposited through mints",
		},
		[]string{"tier"},
	)

	c.BurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "custodian",
			Name:      "burns_total",
			Help:      "Total number of burn operations",
		},
		[]string{"tier"},
	)

	c.BurnLever = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "custodian",
			Name:      "burn_lever",
			Help:      "Total lever claims redeemed through burns",
		},
		[]string{"tier"},
	)

	c.MintLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tranchefi",
			Subsystem: "custodian",
			Name:      "mint_latency_ms",
			Help:      "Mint processing latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"tier"},
	)

	// Claim ledger metrics
	c.TotalCollateral = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "ledger",
			Name:      "total_collateral",
			Help:      "Collateral held against outstanding claims",
		},
	)

	c.TotalStable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "ledger",
			Name:      "total_stable",
			Help:      "Outstanding stable claims",
		},
	)

	c.TotalLever = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "ledger",
			Name:      "total_lever",
			Help:      "Outstanding lever claims",
		},
		[]string{"tier"},
	)

	c.Deficit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "ledger",
			Name:      "deficit",
			Help:      "Accumulated protocol deficit from shortfall auctions",
		},
	)

	// NAV metrics
	c.NetNav = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "nav",
			Name:      "net",
			Help:      "Net asset value per lever claim",
		},
		[]string{"tier"},
	)

	c.NavFloorHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "nav",
			Name:      "floor_hits_total",
			Help:      "Times the net NAV was clamped to the configured floor",
		},
		[]string{"tier"},
	)

	// Risk metrics
	c.PositionsByRiskLevel = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "risk",
			Name:      "positions",
			Help:      "Number of positions per risk level",
		},
		[]string{"level"},
	)

	c.RiskSweepLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tranchefi",
			Subsystem: "risk",
			Name:      "sweep_latency_ms",
			Help:      "End-of-block risk sweep latency in milliseconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50},
		},
		[]string{},
	)

	c.RiskSweepCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tranchefi",
			Subsystem: "risk",
			Name:      "sweep_candidates",
			Help:      "Candidate positions examined per risk sweep",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{},
	)

	// Liquidation metrics
	c.LiquidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "liquidations",
			Name:      "total",
			Help:      "Total number of liquidations",
		},
		[]string{"tier"},
	)

	c.LiquidationValue = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "liquidations",
			Name:      "value",
			Help:      "Total lever value seized by liquidations",
		},
		[]string{"tier"},
	)

	c.PenaltyValue = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "liquidations",
			Name:      "penalty_value",
			Help:      "Total liquidation penalties charged",
		},
		[]string{"tier"},
	)

	c.KeeperRewards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "liquidations",
			Name:      "keeper_rewards",
			Help:      "Total rewards paid to liquidation triggerers",
		},
		[]string{"tier"},
	)

	// Auction metrics
	c.AuctionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "auctions",
			Name:      "open",
			Help:      "Number of open auctions",
		},
	)

	c.AuctionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "auctions",
			Name:      "total",
			Help:      "Total auctions started",
		},
		[]string{},
	)

	c.AuctionResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "auctions",
			Name:      "resets_total",
			Help:      "Total auction resets",
		},
		[]string{"reason"},
	)

	c.AuctionPurchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "auctions",
			Name:      "purchases_total",
			Help:      "Total auction purchases",
		},
		[]string{},
	)

	c.AuctionVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "auctions",
			Name:      "volume",
			Help:      "Total underlying sold through auctions",
		},
		[]string{},
	)

	c.AuctionDeficit = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "auctions",
			Name:      "deficit",
			Help:      "Total deficit booked by shortfall auctions",
		},
		[]string{},
	)

	c.AuctionClearPrice = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tranchefi",
			Subsystem: "auctions",
			Name:      "clearing_price_ratio",
			Help:      "Clearing price as a fraction of the starting price",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.8, 0.9, 0.95, 1.0},
		},
		[]string{},
	)

	// Oracle metrics
	c.OraclePrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "oracle",
			Name:      "price",
			Help:      "Current collateral oracle price",
		},
		[]string{"denom"},
	)

	c.OracleStaleness = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "oracle",
			Name:      "staleness_seconds",
			Help:      "Age of the latest oracle price in seconds",
		},
		[]string{"denom"},
	)

	c.OracleUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "oracle",
			Name:      "updates_total",
			Help:      "Total oracle price updates",
		},
		[]string{"updater"},
	)

	// WebSocket metrics
	c.WSConnectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of active WebSocket connections",
		},
		[]string{},
	)

	c.WSMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Total WebSocket messages sent",
		},
		[]string{"channel"},
	)

	c.WSMessageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tranchefi",
			Subsystem: "websocket",
			Name:      "message_latency_ms",
			Help:      "WebSocket message latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100},
		},
		[]string{"channel"},
	)

	c.WSSubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "websocket",
			Name:      "subscriptions",
			Help:      "Number of active subscriptions per channel",
		},
		[]string{"channel"},
	)

	// API metrics
	c.APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API requests",
		},
		[]string{"method", "path", "status"},
	)

	c.APIRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tranchefi",
			Subsystem: "api",
			Name:      "request_latency_ms",
			Help:      "API request latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"method", "path"},
	)

	c.APIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Total API errors",
		},
		[]string{"method", "path", "error_type"},
	)

	c.RateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tranchefi",
			Subsystem: "api",
			Name:      "rate_limit_hits",
			Help:      "Total rate limit hits",
		},
		[]string{"limit_type"},
	)

	// System metrics
	c.BlockHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "system",
			Name:      "block_height",
			Help:      "Current block height",
		},
	)

	c.BlockTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tranchefi",
			Subsystem: "system",
			Name:      "block_time_ms",
			Help:      "Block time in milliseconds",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000},
		},
		[]string{},
	)

	c.TxPoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "system",
			Name:      "tx_pool_size",
			Help:      "Transaction pool size",
		},
	)

	c.PeerCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tranchefi",
			Subsystem: "system",
			Name:      "peer_count",
			Help:      "Number of connected peers",
		},
	)

	// Register all metrics
	c.registerAll()

	return c
}

// registerAll registers all metrics with Prometheus
func (c *Collector) registerAll() {
	// Mint/burn metrics
	prometheus.MustRegister(c.MintsTotal)
	prometheus.MustRegister(c.MintCollateral)
	prometheus.MustRegister(c.BurnsTotal)
	prometheus.MustRegister(c.BurnLever)
	prometheus.MustRegister(c.MintLatency)

	// Claim ledger metrics
	prometheus.MustRegister(c.TotalCollateral)
	prometheus.MustRegister(c.TotalStable)
	prometheus.MustRegister(c.TotalLever)
	prometheus.MustRegister(c.Deficit)

	// NAV metrics
	prometheus.MustRegister(c.NetNav)
	prometheus.MustRegister(c.NavFloorHits)

	// Risk metrics
	prometheus.MustRegister(c.PositionsByRiskLevel)
	prometheus.MustRegister(c.RiskSweepLatency)
	prometheus.MustRegister(c.RiskSweepCandidates)

	// Liquidation metrics
	prometheus.MustRegister(c.LiquidationsTotal)
	prometheus.MustRegister(c.LiquidationValue)
	prometheus.MustRegister(c.PenaltyValue)
	prometheus.MustRegister(c.KeeperRewards)

	// Auction metrics
	prometheus.MustRegister(c.AuctionsOpen)
	prometheus.MustRegister(c.AuctionsTotal)
	prometheus.MustRegister(c.AuctionResets)
	prometheus.MustRegister(c.AuctionPurchases)
	prometheus.MustRegister(c.AuctionVolume)
	prometheus.MustRegister(c.AuctionDeficit)
	prometheus.MustRegister(c.AuctionClearPrice)

	// Oracle metrics
	prometheus.MustRegister(c.OraclePrice)
	prometheus.MustRegister(c.OracleStaleness)
	prometheus.MustRegister(c.OracleUpdates)

	// WebSocket metrics
	prometheus.MustRegister(c.WSConnectionsActive)
	prometheus.MustRegister(c.WSMessagesTotal)
	prometheus.MustRegister(c.WSMessageLatency)
	prometheus.MustRegister(c.WSSubscriptions)

	// API metrics
	prometheus.MustRegister(c.APIRequestsTotal)
	prometheus.MustRegister(c.APIRequestLatency)
	prometheus.MustRegister(c.APIErrorsTotal)
	prometheus.MustRegister(c.RateLimitHits)

	// System metrics
	prometheus.MustRegister(c.BlockHeight)
	prometheus.MustRegister(c.BlockTime)
	prometheus.MustRegister(c.TxPoolSize)
	prometheus.MustRegister(c.PeerCount)
}

// ============ Recording Helpers ============

// RecordMint records a mint event
func (c *Collector) RecordMint(tier string, collateral float64, latencyMs float64) {
	c.MintsTotal.WithLabelValues(tier).Inc()
	c.MintCollateral.WithLabelValues(tier).Add(collateral)
	c.MintLatency.WithLabelValues(tier).Observe(latencyMs)
}

// RecordBurn records a burn event
func (c *Collector) RecordBurn(tier string, lever float64) {
	c.BurnsTotal.WithLabelValues(tier).Inc()
	c.BurnLever.WithLabelValues(tier).Add(lever)
}

// RecordLedger records the current claim totals
func (c *Collector) RecordLedger(totalCollateral, totalStable, deficit float64) {
	c.TotalCollateral.Set(totalCollateral)
	c.TotalStable.Set(totalStable)
	c.Deficit.Set(deficit)
}

// RecordRiskSweep records an end-of-block risk sweep
func (c *Collector) RecordRiskSweep(candidates int, latencyMs float64) {
	c.RiskSweepCandidates.WithLabelValues().Observe(float64(candidates))
	c.RiskSweepLatency.WithLabelValues().Observe(latencyMs)
}

// RecordLiquidation records a liquidation event
func (c *Collector) RecordLiquidation(tier string, value, penalty, reward float64) {
	c.LiquidationsTotal.WithLabelValues(tier).Inc()
	c.LiquidationValue.WithLabelValues(tier).Add(value)
	c.PenaltyValue.WithLabelValues(tier).Add(penalty)
	c.KeeperRewards.WithLabelValues(tier).Add(reward)
}

// RecordAuctionStart records an auction opening
func (c *Collector) RecordAuctionStart() {
	c.AuctionsTotal.WithLabelValues().Inc()
	c.AuctionsOpen.Inc()
}

// RecordAuctionClose records an auction closing
func (c *Collector) RecordAuctionClose(deficit float64) {
	c.AuctionsOpen.Dec()
	if deficit > 0 {
		c.AuctionDeficit.WithLabelValues().Add(deficit)
	}
}

// RecordAuctionPurchase records a purchase from an open auction
func (c *Collector) RecordAuctionPurchase(underlying, priceRatio float64) {
	c.AuctionPurchases.WithLabelValues().Inc()
	c.AuctionVolume.WithLabelValues().Add(underlying)
	c.AuctionClearPrice.WithLabelValues().Observe(priceRatio)
}

// RecordAuctionReset records an auction reset
func (c *Collector) RecordAuctionReset(reason string) {
	c.AuctionResets.WithLabelValues(reason).Inc()
}

// RecordOraclePrice records an oracle update
func (c *Collector) RecordOraclePrice(denom, updater string, price float64) {
	c.OraclePrice.WithLabelValues(denom).Set(price)
	c.OracleUpdates.WithLabelValues(updater).Inc()
}

// RecordAPIRequest records an API request
func (c *Collector) RecordAPIRequest(method, path, status string, latencyMs float64) {
	c.APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.APIRequestLatency.WithLabelValues(method, path).Observe(latencyMs)
}

// RecordWSConnection records WebSocket connection changes
func (c *Collector) RecordWSConnection(delta int) {
	c.WSConnectionsActive.WithLabelValues().Add(float64(delta))
}

// RecordWSMessage records a WebSocket message
func (c *Collector) RecordWSMessage(channel string, latencyMs float64) {
	c.WSMessagesTotal.WithLabelValues(channel).Inc()
	c.WSMessageLatency.WithLabelValues(channel).Observe(latencyMs)
}

// UpdateSystemMetrics updates system-level metrics
func (c *Collector) UpdateSystemMetrics(blockHeight int64, txPoolSize int, peerCount int) {
	c.BlockHeight.Set(float64(blockHeight))
	c.TxPoolSize.Set(float64(txPoolSize))
	c.PeerCount.Set(float64(peerCount))
}

// ============ HTTP Handler ============

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
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
