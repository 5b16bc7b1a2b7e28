package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the monitor's operational counters and, when enabled,
// serves them on /metrics.
type Metrics struct {
	incidentsTotal *prometheus.CounterVec
	fetchErrors    *prometheus.CounterVec
	sinkErrors     *prometheus.CounterVec
	cycleDuration  prometheus.Summary
	lastSuccessTS  prometheus.Gauge

	server *http.Server
}

func New(listen string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{}

	m.incidentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statusmon",
		Name:      "incidents_total",
		Help:      "Incident records logged, by source and product",
	}, []string{"source", "product"})
	m.fetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statusmon",
		Name:      "fetch_errors_total",
		Help:      "Feed fetch failures by source",
	}, []string{"source"})
	m.sinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statusmon",
		Name:      "sink_errors_total",
		Help:      "Sink push failures by sink",
	}, []string{"sink"})
	m.cycleDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "statusmon",
		Name:      "cycle_duration_seconds",
		Help:      "Time spent per polling cycle",
	})
	m.lastSuccessTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "statusmon",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last fully successful cycle",
	})
	reg.MustRegister(m.incidentsTotal, m.fetchErrors, m.sinkErrors, m.cycleDuration, m.lastSuccessTS)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	m.server = &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return m
}

func (m *Metrics) IncIncidents(source, product string, n int) {
	m.incidentsTotal.WithLabelValues(source, product).Add(float64(n))
}

func (m *Metrics) IncFetchError(source string) {
	m.fetchErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) IncSinkError(sink string) {
	m.sinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) SetLastSuccess(t time.Time) {
	m.lastSuccessTS.Set(float64(t.Unix()))
}

func (m *Metrics) Serve() error                       { return m.server.ListenAndServe() }
func (m *Metrics) Shutdown(ctx context.Context) error { return m.server.Shutdown(ctx) }

// Handler exposes the mux for tests.
func (m *Metrics) Handler() http.Handler { return m.server.Handler }
