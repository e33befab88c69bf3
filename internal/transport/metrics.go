// internal/transport/metrics.go
package transport

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	wsConnects *prometheus.CounterVec
	wsErrors   *prometheus.CounterVec
	wsFrames   *prometheus.CounterVec
)

func RegisterMetrics(r prometheus.Registerer) {
	once.Do(func() {
		if r == nil {
			r = prometheus.DefaultRegisterer
		}
		wsConnects = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connector", Subsystem: "transport", Name: "connects_total",
			Help: "Total WebSocket connection attempts",
		}, []string{"venue", "status"})

		wsErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connector", Subsystem: "transport", Name: "errors_total",
			Help: "Total categorized WebSocket errors",
		}, []string{"venue", "type"})

		wsFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connector", Subsystem: "transport", Name: "frames_total",
			Help: "Total frames received from the venue WS",
		}, []string{"venue"})

		collectors := []prometheus.Collector{wsConnects, wsErrors, wsFrames}
		for _, c := range collectors {
			_ = r.Register(c)
		}
	})
}

func IncConnect(venue, status string) { wsConnects.WithLabelValues(venue, status).Inc() }
func IncError(venue, errType string)  { wsErrors.WithLabelValues(venue, errType).Inc() }
func IncFrame(venue string)           { wsFrames.WithLabelValues(venue).Inc() }
