// =============================================================================
// Branch Sales Aggregator - Metrics
// =============================================================================
//
// Prometheus counters for analyses run by the server and the process
// command. Collectors are registered on a private registry so that tests can
// create as many Recorders as they like.
//
// =============================================================================

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/types"
)

const namespace = "salesagg"

// Outcomes label analyses.
const (
	OutcomeSuccess      = "success"
	OutcomeEmpty        = "empty"
	OutcomeSchemaError  = "schema_error"
	OutcomeInputError   = "input_error"
	OutcomeInternalFail = "internal_error"
)

// Recorder holds the application collectors.
type Recorder struct {
	registry *prometheus.Registry

	analyses *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration prometheus.Histogram
	sales    prometheus.Counter
}

// NewRecorder creates a Recorder with its own registry, including the Go
// runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Number of sales exports analyzed, by outcome.",
		}, []string{"outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Number of input rows seen, by disposition.",
		}, []string{"disposition"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent analyzing one export.",
			Buckets:   prometheus.DefBuckets,
		}),
		sales: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reported_sales_total",
			Help:      "Sum of Total Sales over every report produced.",
		}),
	}

	r.registry.MustRegister(
		r.analyses,
		r.rows,
		r.duration,
		r.sales,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveResult records a completed analysis.
func (r *Recorder) ObserveResult(stats types.SummaryStats, duration time.Duration) {
	outcome := OutcomeSuccess
	if stats.OutputRows == 0 {
		outcome = OutcomeEmpty
	}
	r.analyses.WithLabelValues(outcome).Inc()

	r.rows.WithLabelValues("aggregated").Add(float64(stats.AggregatedRows))
	r.rows.WithLabelValues("dropped").Add(float64(stats.DroppedRows))
	r.rows.WithLabelValues("filtered").Add(float64(stats.FilteredRows))

	r.duration.Observe(duration.Seconds())

	// Counters cannot go down; a net-negative report (all returns) adds nothing.
	if stats.GrandTotalSales > 0 {
		r.sales.Add(stats.GrandTotalSales)
	}
}

// ObserveFailure records an analysis that produced no report.
func (r *Recorder) ObserveFailure(outcome string) {
	r.analyses.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the current values to path in the text exposition
// format, for the node_exporter textfile collector. Batch runs use this
// since they exit before anything could scrape them.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
