package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// Metric is an atomic counter or gauge.
type Metric struct {
	name  string
	help  string
	kind  string
	value atomic.Int64
}

func (m *Metric) Inc()         { m.value.Add(1) }
func (m *Metric) Add(n int)    { m.value.Add(int64(n)) }
func (m *Metric) Set(n int)    { m.value.Store(int64(n)) }
func (m *Metric) Value() int64 { return m.value.Load() }

func counter(name, help string) *Metric {
	m := &Metric{name: name, help: help, kind: "counter"}
	registry = append(registry, m)
	return m
}

func gauge(name, help string) *Metric {
	m := &Metric{name: name, help: help, kind: "gauge"}
	registry = append(registry, m)
	return m
}

var registry []*Metric

var (
	RecordsConsumed    = counter("ehrextract_records_consumed_total", "Patient record events read from the record topic.")
	ValidationFailures = counter("ehrextract_validation_failures_total", "Patient records rejected before extraction.")
	PatientsExtracted  = counter("ehrextract_patients_extracted_total", "Patients for which every requested dataset was derived.")
	PatientsSkipped    = counter("ehrextract_patients_skipped_total", "Patients outside the study population.")
	RowsPersisted      = counter("ehrextract_rows_persisted_total", "Attribute rows written to the row store.")
	RowsPublished      = counter("ehrextract_rows_published_total", "Attribute rows published to the row topic.")
	CacheHits          = counter("ehrextract_row_cache_hits_total", "Row lookups served from the cache.")
	CacheMisses        = counter("ehrextract_row_cache_misses_total", "Row lookups that fell through to the row store.")
	RunsCompleted      = counter("ehrextract_runs_completed_total", "Extraction runs that completed.")
	RunsFailed         = counter("ehrextract_runs_failed_total", "Extraction runs that failed.")
	RunsActive         = gauge("ehrextract_runs_active", "Extraction runs currently executing.")
)

func Init() {}

// Write renders every metric in the Prometheus text format.
func Write(w io.Writer) {
	for _, m := range registry {
		fmt.Fprintf(w, "# HELP %s %s\n", m.name, m.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", m.name, m.kind)
		fmt.Fprintf(w, "%s %d\n", m.name, m.Value())
	}
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	Write(w)
}

func Handler(w http.ResponseWriter, _ *http.Request) {
	WritePrometheus(w)
}
