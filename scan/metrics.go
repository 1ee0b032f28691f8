package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts acquisition work.
type Metrics struct {
	Attempts   prometheus.Counter
	NotFound   prometheus.Counter
	Detections *prometheus.CounterVec
}

// NewMetrics registers the scan counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Attempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledmap_scan_attempts_total",
			Help: "Total number of capture and localize attempts",
		}),
		NotFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledmap_scan_not_found_total",
			Help: "Total number of attempts where the lit light was not found",
		}),
		Detections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledmap_scan_detections_total",
			Help: "Total number of lights detected",
		}, []string{"view"}),
	}
}
