// Package metrics exposes Prometheus counters for the rule editor: applied
// and rejected mutations, undo/redo, validation outcomes and saves. All
// methods are safe on a nil *Metrics, so components can run without metrics.
package metrics
