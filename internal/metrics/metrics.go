// internal/metrics/metrics.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// FramesTotal — общее число принятых кадров из WebSocket.
	FramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "connector",
		Subsystem: "ws",
		Name:      "frames_total",
		Help:      "Total number of frames received from the venue stream",
	})

	// ParseErrors — кадры, которые не удалось разобрать как JSON.
	ParseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "connector",
		Subsystem: "pipeline",
		Name:      "parse_errors_total",
		Help:      "Frames skipped because they were not valid JSON",
	})

	// ExtractDrops — кандидаты без обязательных полей (symbol/price).
	ExtractDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "connector",
		Subsystem: "pipeline",
		Name:      "extract_drops_total",
		Help:      "Trade candidates dropped because mandatory fields were missing",
	})

	// SymbolFilterDrops — трейды по ненастроенным символам.
	SymbolFilterDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "connector",
		Subsystem: "pipeline",
		Name:      "symbol_filter_drops_total",
		Help:      "Extracted trades skipped because the symbol is not configured",
	})

	// TradesPublished — успешно опубликованные конверты.
	TradesPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "connector",
		Subsystem: "pipeline",
		Name:      "trades_published_total",
		Help:      "Total trade envelopes published to the log",
	})

	// PublishErrors — число ошибок при публикации в Kafka.
	PublishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "connector",
		Subsystem: "kafka",
		Name:      "publish_errors_total",
		Help:      "Total number of errors when publishing to Kafka",
	})

	// PublishLatency — гистограмма задержек от кадра до публикации.
	PublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "connector",
		Subsystem: "pipeline",
		Name:      "publish_latency_seconds",
		Help:      "Latency from receiving a frame to publishing the envelope (seconds)",
		Buckets:   prometheus.DefBuckets,
	})
)

// Register регистрирует все метрики в заданном реестре.
// Можно вызвать без аргументов, чтобы зарегистрировать в DefaultRegisterer.
func Register(registerers ...prometheus.Registerer) {
	once.Do(func() {
		var reg prometheus.Registerer
		if len(registerers) > 0 && registerers[0] != nil {
			reg = registerers[0]
		} else {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			FramesTotal,
			ParseErrors,
			ExtractDrops,
			SymbolFilterDrops,
			TradesPublished,
			PublishErrors,
			PublishLatency,
		)
	})
}
