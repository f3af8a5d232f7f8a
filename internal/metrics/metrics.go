// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame results used as the "result" label of FramesTotal.
const (
	ResultDecoded   = "decoded"    // Accepted and fully decoded
	ResultPartial   = "partial"    // Accepted, at least one malformed/truncated diagnostic
	ResultDeclined  = "declined"   // OZWPAN ethertype, declined by the dissector
	ResultSkipped   = "skipped"    // Another ethertype, or 802.1Q tagged with VLAN decoding off
	ResultLinkError = "link_error" // Ethernet/802.1Q decoding failed
)

// Transaction states used as the "state" label of TransactionsTotal.
const (
	TransactionMatched   = "matched"   // Response paired with its request
	TransactionUnmatched = "unmatched" // Response without a pending request
	TransactionExpired   = "expired"   // Request never answered within the TTL
)

var (
	// CapturePacketsTotal counts link-layer frames read by a source
	CapturePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ozwpan_capture_packets_total",
			Help: "Total number of link-layer frames read from a source",
		},
		[]string{"source"},
	)

	// CaptureDropsTotal counts frames dropped before decoding
	CaptureDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ozwpan_capture_drops_total",
			Help: "Total number of frames dropped before decoding",
		},
		[]string{"source", "stage"},
	)

	// FramesTotal counts frames by decode result
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ozwpan_frames_total",
			Help: "Total number of frames handed to the OZWPAN dissector, by result",
		},
		[]string{"result"},
	)

	// ElementsTotal counts decoded elements by element type name
	ElementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ozwpan_elements_total",
			Help: "Total number of tagged elements walked, by element type",
		},
		[]string{"type"},
	)

	// DiagnosticsTotal counts diagnostics by kind
	DiagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ozwpan_diagnostics_total",
			Help: "Total number of decode diagnostics raised, by kind",
		},
		[]string{"kind"},
	)

	// TransactionsTotal counts GET_DESCRIPTOR pairings
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ozwpan_usb_transactions_total",
			Help: "Total number of GET_DESCRIPTOR transactions, by pairing state",
		},
		[]string{"state"},
	)

	// PartitionQueueLength reports the raw frames waiting per decode worker
	PartitionQueueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ozwpan_partition_queue_length",
			Help: "Number of raw frames queued for each decode worker",
		},
		[]string{"partition"},
	)

	// DecodeLatencySeconds measures per-frame decode latency
	DecodeLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ozwpan_decode_latency_seconds",
			Help:    "Latency of decoding one frame in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
	)

	// ReporterFramesTotal counts frames written by each reporter
	ReporterFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ozwpan_reporter_frames_total",
			Help: "Total number of frames written by a reporter",
		},
		[]string{"reporter"},
	)

	// ReporterErrorsTotal counts reporter errors by name
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ozwpan_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
		[]string{"reporter"},
	)
)
