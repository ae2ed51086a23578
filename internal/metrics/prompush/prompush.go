// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// It adapts the generic metrics.Backend interface to Prometheus by mapping
// the import/query metric names onto CounterVec and SummaryVec collectors
// and pushing the registry to a Pushgateway instead of exposing a scrape
// endpoint, which suits short-lived import runs. All Prometheus-specific
// dependencies live here so the rest of the project can swap backends
// without changes.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/kpfister44/illinois-report-card-api/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // import_step_total
	stepDuration *prometheus.SummaryVec // import_step_duration_seconds
	rowCounter   *prometheus.CounterVec // import_rows_total

	queryCounter  *prometheus.CounterVec // query_total
	queryDuration *prometheus.SummaryVec // query_duration_seconds
}

// NewBackend constructs a Pushgateway backend. jobName is the Pushgateway
// "job" grouping key; gatewayURL is the base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "reportcard"
	}

	reg := prometheus.NewRegistry()
	objectives := map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}

	stepCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_step_total",
		Help: "Total import step executions, partitioned by step and status.",
	}, []string{"step", "status"})
	stepDuration := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:       "import_step_duration_seconds",
		Help:       "Duration of import steps in seconds, partitioned by step and status.",
		Objectives: objectives,
	}, []string{"step", "status"})
	rowCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_total",
		Help: "Row-level counts per kind (inserted, entities_upserted, ...).",
	}, []string{"kind"})
	queryCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "query_total",
		Help: "Total partition queries, partitioned by table and status.",
	}, []string{"table", "status"})
	queryDuration := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:       "query_duration_seconds",
		Help:       "Duration of partition queries in seconds.",
		Objectives: objectives,
	}, []string{"table", "status"})

	for _, c := range []prometheus.Collector{
		stepCounter, stepDuration, rowCounter, queryCounter, queryDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stepCounter:   stepCounter,
		stepDuration:  stepDuration,
		rowCounter:    rowCounter,
		queryCounter:  queryCounter,
		queryDuration: queryDuration,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "import_step_total":
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case "import_rows_total":
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
	case "query_total":
		b.queryCounter.WithLabelValues(labels["table"], labels["status"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveDuration(name string, value float64, labels metrics.Labels) {
	switch name {
	case "import_step_duration_seconds":
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case "query_duration_seconds":
		b.queryDuration.WithLabelValues(labels["table"], labels["status"]).Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
