package common

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RPCCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callflow_rpc_call_duration_seconds",
		Help:    "Duration of RPC calls to Ethereum nodes",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"node", "method", "status"})

	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callflow_rpc_calls_total",
		Help: "Total RPC calls made to Ethereum nodes",
	}, []string{"node", "method", "status"})

	RetryCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callflow_retry_count_total",
		Help: "Total number of retry attempts",
	}, []string{"node", "method"})

	TransactionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callflow_transactions_processed_total",
		Help: "Total transactions loaded for rendering",
	}, []string{"mode", "status"})

	TransactionProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callflow_transaction_processing_duration_seconds",
		Help:    "Time to fetch, normalize and decorate individual transactions",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"mode"})

	TracesRendered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callflow_traces_rendered_total",
		Help: "Total number of traces rendered as diagram messages",
	}, []string{"type"})

	MessagesTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callflow_messages_truncated_total",
		Help: "Total number of diagram messages truncated to the maximum length",
	})

	DecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callflow_decode_failures_total",
		Help: "Total number of ABI decode failures absorbed while decorating traces",
	}, []string{"kind"})
)
