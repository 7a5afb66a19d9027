// Package metrics exposes the Prometheus counters an embedding application
// scrapes to watch seal activity: how many commits and versions have been
// sealed, and how often a write was rejected because its target was already
// sealed. Grounded on the teacher's direct dependency on
// github.com/prometheus/client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters the engine increments during normal operation.
// The zero value is not usable; use New.
type Metrics struct {
	CommitsSealed           prometheus.Counter
	VersionsSealed          prometheus.Counter
	PointersSealed          prometheus.Counter
	LockedWriteRejections   prometheus.Counter
	ParentNotCommittedTotal prometheus.Counter
}

// New returns a Metrics with freshly constructed, unregistered counters.
// Call Register to attach them to a prometheus.Registerer.
func New() *Metrics {
	return &Metrics{
		CommitsSealed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recordvcs_commits_sealed_total",
			Help: "Total number of commits successfully sealed.",
		}),
		VersionsSealed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recordvcs_versions_sealed_total",
			Help: "Total number of versions finalized (directly or via commit()).",
		}),
		PointersSealed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recordvcs_pointers_sealed_total",
			Help: "Total number of set-pointers finalized.",
		}),
		LockedWriteRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recordvcs_locked_write_rejections_total",
			Help: "Total number of writes rejected because the target was already sealed.",
		}),
		ParentNotCommittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recordvcs_parent_not_committed_total",
			Help: "Total number of commit() calls that failed because the parent was not sealed.",
		}),
	}
}

// Register attaches every counter in m to reg. It is safe to call at most
// once per Metrics/Registerer pair.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.CommitsSealed,
		m.VersionsSealed,
		m.PointersSealed,
		m.LockedWriteRejections,
		m.ParentNotCommittedTotal,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
