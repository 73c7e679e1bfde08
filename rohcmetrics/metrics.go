// Package rohcmetrics exposes the Prometheus counters and gauges the
// profile's entry points update: format selection, live context count,
// rejection reasons, and options-table exhaustion.
package rohcmetrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FormatSelected counts packets emitted per chosen wire format, labeled by
// Format.String().
var FormatSelected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rohc_tcp_format_selected_total",
		Help: "Number of packets emitted per ROHC-TCP wire format.",
	},
	[]string{"format"},
)

// ContextsActive tracks the number of Flow Contexts currently live.
var ContextsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "rohc_tcp_contexts_active",
		Help: "Number of ROHC-TCP flow contexts currently allocated.",
	},
)

// PacketsRejected counts packets Create or Build refused, labeled by
// rejection reason (shape, capacity, classification).
var PacketsRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rohc_tcp_packets_rejected_total",
		Help: "Number of packets rejected by the ROHC-TCP compressor, by reason.",
	},
	[]string{"reason"},
)

// OptionsTableFull counts how many times a flow's TCP options arena was
// exhausted, which makes the packet being encoded fail.
var OptionsTableFull = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "rohc_tcp_options_table_full_total",
		Help: "Number of times a flow's TCP options value arena was exhausted.",
	},
)

func init() {
	log.Print("rohcmetrics: registered ROHC-TCP compressor metrics")
}
