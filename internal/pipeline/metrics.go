package pipeline

import (
	"sync/atomic"

	"firestige.xyz/ozwpan/internal/conversation"
	"firestige.xyz/ozwpan/internal/metrics"
	"firestige.xyz/ozwpan/internal/ozwpan"
)

// Metrics contains per-pipeline counters. Each update is mirrored to the
// process-wide Prometheus collectors.
type Metrics struct {
	Source string

	Received     atomic.Uint64
	Decoded      atomic.Uint64
	Partial      atomic.Uint64
	Declined     atomic.Uint64
	Skipped      atomic.Uint64
	LinkErrors   atomic.Uint64
	Reported     atomic.Uint64
	ReportErrors atomic.Uint64
}

func NewMetrics(source string) *Metrics {
	return &Metrics{Source: source}
}

func (m *Metrics) received() {
	m.Received.Add(1)
	metrics.CapturePacketsTotal.WithLabelValues(m.Source).Inc()
}

func (m *Metrics) result(result string, frame *ozwpan.Frame) {
	switch result {
	case metrics.ResultDecoded:
		m.Decoded.Add(1)
	case metrics.ResultPartial:
		m.Partial.Add(1)
	case metrics.ResultDeclined:
		m.Declined.Add(1)
	case metrics.ResultSkipped:
		m.Skipped.Add(1)
	case metrics.ResultLinkError:
		m.LinkErrors.Add(1)
	}
	metrics.FramesTotal.WithLabelValues(result).Inc()

	if frame == nil {
		return
	}
	for _, e := range frame.Elements {
		metrics.ElementsTotal.WithLabelValues(e.Type.String()).Inc()
	}
	for _, d := range frame.Diagnostics {
		metrics.DiagnosticsTotal.WithLabelValues(string(d.Kind)).Inc()
	}
}

func (m *Metrics) reported(reporter string, err error) {
	if err != nil {
		m.ReportErrors.Add(1)
		metrics.ReporterErrorsTotal.WithLabelValues(reporter).Inc()
		return
	}
	metrics.ReporterFramesTotal.WithLabelValues(reporter).Inc()
}

// Stats represents pipeline statistics.
type Stats struct {
	Received     uint64 `json:"received" yaml:"received"`
	Decoded      uint64 `json:"decoded" yaml:"decoded"`
	Partial      uint64 `json:"partial" yaml:"partial"`
	Declined     uint64 `json:"declined" yaml:"declined"`
	Skipped      uint64 `json:"skipped" yaml:"skipped"`
	LinkErrors   uint64 `json:"link_errors" yaml:"link_errors"`
	Reported     uint64 `json:"reported" yaml:"reported"`
	ReportErrors uint64 `json:"report_errors" yaml:"report_errors"`

	// Transactions is set when request/response pairing is enabled.
	Transactions *conversation.Stats `json:"transactions,omitempty" yaml:"transactions,omitempty"`
}

func (m *Metrics) snapshot() Stats {
	return Stats{
		Received:     m.Received.Load(),
		Decoded:      m.Decoded.Load(),
		Partial:      m.Partial.Load(),
		Declined:     m.Declined.Load(),
		Skipped:      m.Skipped.Load(),
		LinkErrors:   m.LinkErrors.Load(),
		Reported:     m.Reported.Load(),
		ReportErrors: m.ReportErrors.Load(),
	}
}
