package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageFetches counts loader fetches by collection and outcome (ok, empty, error)
	PageFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedsync_page_fetches_total",
			Help: "Total number of page fetches issued by collection loaders",
		},
		[]string{"collection", "result"},
	)

	// FetchRejected counts load requests rejected by the re-entrancy guard
	FetchRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedsync_fetch_rejected_total",
			Help: "Load requests rejected because a fetch was in flight or the collection was exhausted",
		},
		[]string{"collection", "reason"},
	)

	// ItemsMerged tracks items merged into collections after deduplication
	ItemsMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedsync_items_merged_total",
			Help: "Total number of items merged into collections",
		},
		[]string{"collection"},
	)

	// FetchLatency tracks fetch latency per collection
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedsync_fetch_latency_seconds",
			Help:    "Page or chunk fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	// ScanChunks counts block-range chunks scanned by log loaders
	ScanChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedsync_scan_chunks_total",
			Help: "Total number of block-range chunks scanned",
		},
		[]string{"collection", "direction"},
	)

	// CacheOps counts persisted cache reads and writes
	CacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedsync_cache_ops_total",
			Help: "Persisted cache operations by kind and outcome",
		},
		[]string{"op", "result"},
	)

	// RPCCallsTotal tracks RPC calls per provider and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedsync_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedsync_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"provider", "method"},
	)

	// ChainLatestBlock tracks the latest block height seen on the chain
	ChainLatestBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feedsync_chain_latest_block",
			Help: "Latest block height of the chain",
		},
		[]string{"chain"},
	)

	// DBConnectionPoolUsage tracks the database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedsync_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
