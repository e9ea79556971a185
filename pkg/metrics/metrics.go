// Package metrics records conversion run metrics in a private Prometheus
// registry that can be exported in the node-exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rmd2iniz"

// Metrics provides observability for a conversion run.
type Metrics struct {
	registry *prometheus.Registry

	RecordsParsed   *prometheus.CounterVec
	Entities        *prometheus.GaugeVec
	Folded          prometheus.Counter
	RowsWritten     *prometheus.CounterVec
	FilesWritten    prometheus.Counter
	StageDuration   *prometheus.HistogramVec
	RunDuration     prometheus.Gauge
	LastRunSuccess  prometheus.Gauge
	ConversionError *prometheus.CounterVec
}

// New creates a Metrics instance with every metric registered in a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RecordsParsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Dataset rows decoded, by table",
		}, []string{"table"}),
		Entities: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entities",
			Help:      "Entities in the concept graph, by type",
		}, []string{"type"}),
		Folded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_folded_total",
			Help:      "Identical duplicate rows folded into one entity",
		}),
		RowsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written, by Initializer domain",
		}, []string{"domain"}),
		FilesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Output files written",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"stage"}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last conversion run",
		}),
		LastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last conversion run succeeded, 0 otherwise",
		}),
		ConversionError: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversion_errors_total",
			Help:      "Failed conversion runs, by error kind",
		}, []string{"kind"}),
	}
}

// Registry returns the registry holding every metric.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// AddRecords records parsed row counts keyed by table.
func (m *Metrics) AddRecords(counts map[string]int) {
	for table, n := range counts {
		m.RecordsParsed.WithLabelValues(table).Add(float64(n))
	}
}

// SetEntities records graph entity counts keyed by type.
func (m *Metrics) SetEntities(counts map[string]int) {
	for typ, n := range counts {
		m.Entities.WithLabelValues(typ).Set(float64(n))
	}
}

// AddFolded records folded duplicates.
func (m *Metrics) AddFolded(n int) {
	m.Folded.Add(float64(n))
}

// AddRows records rows written to a domain.
func (m *Metrics) AddRows(domain string, n int) {
	m.RowsWritten.WithLabelValues(domain).Add(float64(n))
}

// AddFiles records written files.
func (m *Metrics) AddFiles(n int) {
	m.FilesWritten.Add(float64(n))
}

// ObserveStage records the duration of a pipeline stage.
// Call with time.Now() at the start of the stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// ObserveRun records the outcome of a run. kind is the error kind of a
// failed run and is ignored on success.
func (m *Metrics) ObserveRun(start time.Time, ok bool, kind string) {
	m.RunDuration.Set(time.Since(start).Seconds())
	if ok {
		m.LastRunSuccess.Set(1)
		return
	}
	m.LastRunSuccess.Set(0)
	m.ConversionError.WithLabelValues(kind).Inc()
}

// WriteTextfile writes every metric to path in the textfile collector
// format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
