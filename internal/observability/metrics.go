package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	rowsDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protolist",
			Subsystem: "decoder",
			Name:      "rows_decoded_total",
			Help:      "Rows fully decoded into destination columns.",
		},
		[]string{"format"},
	)
	rowsCounted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protolist",
			Subsystem: "decoder",
			Name:      "rows_counted_total",
			Help:      "Rows skipped over by the counting fast path.",
		},
		[]string{"format"},
	)
	framesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protolist",
			Subsystem: "envelope",
			Name:      "frames_total",
			Help:      "Length-delimited frames opened.",
		},
		[]string{"format"},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protolist",
			Subsystem: "decoder",
			Name:      "errors_total",
			Help:      "Fatal decode errors by taxonomy kind.",
		},
		[]string{"format", "kind"},
	)
	schemaCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protolist",
			Subsystem: "schema_cache",
			Name:      "lookups_total",
			Help:      "Descriptor cache lookups by result.",
		},
		[]string{"result"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(rowsDecoded, rowsCounted, framesRead, decodeErrors, schemaCacheLookups)
	})
}

func RecordRowsDecoded(format string, n int) {
	RegisterMetrics()
	rowsDecoded.WithLabelValues(format).Add(float64(n))
}

func RecordRowsCounted(format string, n int) {
	RegisterMetrics()
	rowsCounted.WithLabelValues(format).Add(float64(n))
}

func RecordFrame(format string) {
	RegisterMetrics()
	framesRead.WithLabelValues(format).Inc()
}

func RecordDecodeError(format, kind string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(format, kind).Inc()
}

func RecordSchemaCacheLookup(hit bool) {
	RegisterMetrics()
	result := "miss"
	if hit {
		result = "hit"
	}
	schemaCacheLookups.WithLabelValues(result).Inc()
}
