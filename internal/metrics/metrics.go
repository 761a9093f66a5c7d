package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksProcessed counts blocks processed per domain
	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_blocks_processed_total",
			Help: "Total number of blocks processed",
		},
		[]string{"domain"},
	)

	// EventsDecoded counts decoded bridge events per domain and kind
	EventsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_events_decoded_total",
			Help: "Total number of bridge events decoded",
		},
		[]string{"domain", "event_type"},
	)

	// RecordsSkipped counts events dropped by single-record error policy
	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_records_skipped_total",
			Help: "Total number of events skipped due to decode failures",
		},
		[]string{"domain", "event_type"},
	)

	// ErrorsTotal counts errors by component
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// TransfersSaved counts transfer aggregate writes by resulting status
	TransfersSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_transfers_saved_total",
			Help: "Total number of transfer aggregate writes by status",
		},
		[]string{"status"},
	)

	// LastIndexedBlock tracks the watermark per domain
	LastIndexedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexer_last_indexed_block",
			Help: "Last indexed block number by domain",
		},
		[]string{"domain"},
	)

	// BatchDuration tracks decode-plus-reconcile time per block range batch
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexer_batch_duration_seconds",
			Help:    "Batch processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"domain"},
	)
)
