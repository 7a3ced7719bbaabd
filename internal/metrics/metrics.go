// Package metrics holds the router counters exported to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "yarouter"

// Metrics is the set of router counters.
//
// A nil registerer produces unregistered metrics, which is how components
// are built in tests.
type Metrics struct {
	// FramesTotal counts received frames by device and verdict.
	FramesTotal *prometheus.CounterVec
	// DropsTotal counts dropped frames by reason.
	DropsTotal *prometheus.CounterVec
	// TransmittedTotal counts transmitted frames by device.
	TransmittedTotal *prometheus.CounterVec
	// TransmitErrorsTotal counts failed transmissions by device.
	TransmitErrorsTotal *prometheus.CounterVec
	// ReadErrorsTotal counts failed receptions by device.
	ReadErrorsTotal *prometheus.CounterVec
	// ARPRequestsTotal counts ARP requests sent by device.
	ARPRequestsTotal *prometheus.CounterVec
	// FlushedTotal counts queued frames transmitted after resolution.
	FlushedTotal prometheus.Counter
	// DiscardedTotal counts queued frames discarded by reason.
	DiscardedTotal *prometheus.CounterVec
	// ReleasedTotal counts freed entries by reason.
	ReleasedTotal *prometheus.CounterVec
}

// New creates the router metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		FramesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Received frames by device and verdict.",
		}, []string{"device", "verdict"}),
		DropsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drops_total",
			Help:      "Dropped frames by reason.",
		}, []string{"reason"}),
		TransmittedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transmitted_total",
			Help:      "Transmitted frames by device.",
		}, []string{"device"}),
		TransmitErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transmit_errors_total",
			Help:      "Failed transmissions by device.",
		}, []string{"device"}),
		ReadErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Failed receptions by device.",
		}, []string{"device"}),
		ARPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "arp_requests_total",
			Help:      "ARP requests sent by device.",
		}, []string{"device"}),
		FlushedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushed_total",
			Help:      "Queued frames transmitted once their next hop was resolved.",
		}),
		DiscardedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_total",
			Help:      "Queued frames discarded by reason.",
		}, []string{"reason"}),
		ReleasedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "released_total",
			Help:      "Freed resolution entries by reason.",
		}, []string{"reason"}),
	}
}

// RegisterEntries exports the number of occupied resolution entries as
// reported by fn.
func RegisterEntries(reg prometheus.Registerer, fn func() int) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "resolution_entries",
		Help:      "Occupied resolution cache entries.",
	}, func() float64 {
		return float64(fn())
	})
}
