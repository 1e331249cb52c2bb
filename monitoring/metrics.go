package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"bikedemand/ml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	predictions *prometheus.CounterVec
	demand      prometheus.Histogram
	inference   prometheus.Histogram
}

// NewMetrics registers collectors. available reports whether a model is
// loaded and backs the model_loaded gauge; it may be nil.
func NewMetrics(available func() bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bike_http_requests_total", Help: "HTTP requests"},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "bike_http_request_duration_seconds", Help: "HTTP request latency", Buckets: []float64{0.001, 0.005, 0.02, 0.1, 0.3, 1, 5}},
			[]string{"path"},
		),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bike_predictions_total", Help: "Served predictions"},
			[]string{"source"},
		),
		demand: prometheus.NewHistogram(
			prometheus.HistogramOpts{Name: "bike_predicted_rentals", Help: "Predicted rental counts", Buckets: []float64{0, 10, 50, 100, 200, 400, 600, 800, 1000}},
		),
		inference: prometheus.NewHistogram(
			prometheus.HistogramOpts{Name: "bike_inference_duration_seconds", Help: "Model inference latency", Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.02, 0.1}},
		),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.predictions, m.demand, m.inference,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if available != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: "bike_model_loaded", Help: "1 when a model artifact is loaded"},
			func() float64 {
				if available() {
					return 1
				}
				return 0
			},
		))
	}
	return m
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request. path should be the
// route pattern, not the raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(path).Observe(d.Seconds())
}

// ObservePrediction implements ml.Observer.
func (m *Metrics) ObservePrediction(ctx context.Context, rec ml.PredictionRecord) error {
	source := "model"
	if rec.Cached {
		source = "cache"
	} else {
		m.inference.Observe(rec.Latency.Seconds())
	}
	m.predictions.WithLabelValues(source).Inc()
	m.demand.Observe(float64(rec.Result.Prediction))
	return nil
}
