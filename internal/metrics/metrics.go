// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from imports and queries.
//
// It exposes a narrow Backend interface (counters and duration summaries)
// with a global, pluggable backend that defaults to a no-op implementation,
// so metric calls are always safe even when nothing is configured. Concrete
// metric systems stay isolated in subpackages (see prompush).
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveDuration records a duration-style value in seconds.
	ObserveDuration(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveDuration(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep records one import step execution with its outcome and latency.
// job identifies the import (e.g. "schools_2024"); step is the pipeline
// stage ("parse", "infer", "load", "swap", ...).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter("import_step_total", 1, lbls)
	backend.ObserveDuration("import_step_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given import and kind
// (e.g. "inserted", "entities_upserted").
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("import_rows_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordQuery records one query execution against a partition table.
func RecordQuery(table string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"table": table, "status": status}
	backend.IncCounter("query_total", 1, lbls)
	backend.ObserveDuration("query_duration_seconds", d.Seconds(), lbls)
}
