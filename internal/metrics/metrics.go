package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	imageSwaps          *prometheus.CounterVec
	layerShown          *prometheus.GaugeVec
	annotationsDropped  *prometheus.CounterVec
	documentLoad        *prometheus.HistogramVec
}

// New creates a fresh Metrics registry with HTTP and map engine metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "noxmap",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by noxmap",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "noxmap",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by noxmap",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	imageSwaps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "noxmap",
		Name:      "image_swaps_total",
		Help:      "Sub-map image URL swaps by the resolution tier swapped to",
	}, []string{"tier"})

	layerShown := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "noxmap",
		Name:      "marker_layer_shown",
		Help:      "1 when the marker layer is currently part of the view",
	}, []string{"layer"})

	annotationsDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "noxmap",
		Name:      "annotations_dropped_total",
		Help:      "Annotation records discarded while building markers",
	}, []string{"reason"})

	documentLoad := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "noxmap",
		Name:      "document_load_duration_seconds",
		Help:      "Duration of map document fetches at startup",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15},
	}, []string{"document", "outcome"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		imageSwaps,
		layerShown,
		annotationsDropped,
		documentLoad,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		imageSwaps:          imageSwaps,
		layerShown:          layerShown,
		annotationsDropped:  annotationsDropped,
		documentLoad:        documentLoad,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// IncImageSwap counts one displayed-URL change.
func (m *Metrics) IncImageSwap(tier string) {
	if m == nil {
		return
	}
	m.imageSwaps.WithLabelValues(tier).Inc()
}

// SetLayerShown records the current membership of a marker layer.
func (m *Metrics) SetLayerShown(layer string, shown bool) {
	if m == nil {
		return
	}
	v := 0.0
	if shown {
		v = 1
	}
	m.layerShown.WithLabelValues(layer).Set(v)
}

// AddAnnotationsDropped counts discarded annotation records.
func (m *Metrics) AddAnnotationsDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.annotationsDropped.WithLabelValues(reason).Add(float64(n))
}

// ObserveDocumentLoad records how long a document fetch took.
func (m *Metrics) ObserveDocumentLoad(document string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.documentLoad.WithLabelValues(document, outcome).Observe(duration.Seconds())
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
