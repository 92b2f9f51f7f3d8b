package common

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"io"
	"time"
)

// --------------------------------------------------------------------------
// Server side metrics (VictoriaMetrics, exposed in prometheus format)
// --------------------------------------------------------------------------

// TransportMetrics counts what a server transport instance sees on the wire.
// Each instance owns its own metrics.Set, so several servers in one process
// (as in tests) do not share counters.
type TransportMetrics struct {
	set *metrics.Set

	PacketsIn        *metrics.Counter
	PacketsOut       *metrics.Counter
	DecodeErrors     *metrics.Counter
	HandlerErrors    *metrics.Counter
	PacketBehind     *metrics.Counter
	FragmentsDropped *metrics.Counter
	WindowsEvicted   *metrics.Counter
	PeersEvicted     *metrics.Counter
	HandlerDuration  *metrics.Histogram
}

// NewTransportMetrics creates the metrics of one server transport
func NewTransportMetrics(transport string) *TransportMetrics {
	s := metrics.NewSet()
	name := func(metric string) string {
		return fmt.Sprintf(`drpc_%s{transport=%q}`, metric, transport)
	}

	return &TransportMetrics{
		set:              s,
		PacketsIn:        s.NewCounter(name("packets_in_total")),
		PacketsOut:       s.NewCounter(name("packets_out_total")),
		DecodeErrors:     s.NewCounter(name("decode_errors_total")),
		HandlerErrors:    s.NewCounter(name("handler_errors_total")),
		PacketBehind:     s.NewCounter(name("packet_behind_total")),
		FragmentsDropped: s.NewCounter(name("fragments_dropped_total")),
		WindowsEvicted:   s.NewCounter(name("windows_evicted_total")),
		PeersEvicted:     s.NewCounter(name("peers_evicted_total")),
		HandlerDuration:  s.NewHistogram(name("handler_duration_seconds")),
	}
}

// ObserveHandler records the duration of a handler invocation started at start
func (m *TransportMetrics) ObserveHandler(start time.Time) {
	m.HandlerDuration.Update(time.Since(start).Seconds())
}

// WritePrometheus writes all metrics of this instance in prometheus text format
func (m *TransportMetrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Client side metrics (go-metrics registry)
// --------------------------------------------------------------------------

// ClientMetrics tracks request latency and the retry machinery of one client
type ClientMetrics struct {
	Registry gometrics.Registry

	FetchLatency     gometrics.Timer
	Retries          gometrics.Counter
	Timeouts         gometrics.Counter
	ReorderResends   gometrics.Counter
	UnmatchedReplies gometrics.Counter
}

// NewClientMetrics creates a fresh registry with all client metrics registered
func NewClientMetrics() *ClientMetrics {
	r := gometrics.NewRegistry()
	return &ClientMetrics{
		Registry:         r,
		FetchLatency:     gometrics.NewRegisteredTimer("fetch.latency", r),
		Retries:          gometrics.NewRegisteredCounter("fetch.retries", r),
		Timeouts:         gometrics.NewRegisteredCounter("fetch.timeouts", r),
		ReorderResends:   gometrics.NewRegisteredCounter("fetch.reorder_resends", r),
		UnmatchedReplies: gometrics.NewRegisteredCounter("fetch.unmatched_replies", r),
	}
}

// WriteOnce writes a human readable snapshot of all client metrics
func (m *ClientMetrics) WriteOnce(w io.Writer) {
	gometrics.WriteOnce(m.Registry, w)
}
