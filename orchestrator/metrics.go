package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics of a single run, written in the text exposition format so a
// node_exporter textfile collector can pick them up next to benchmark results.
type Metrics struct {
	Registry *prometheus.Registry

	ConvergenceSeconds *prometheus.GaugeVec
	ConfigVersion      prometheus.Gauge
	KilledProcesses    prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ConvergenceSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "benchfleet",
			Name:      "convergence_duration_seconds",
			Help:      "Time the fleet took to reach the requested state.",
		}, []string{"phase"}),
		ConfigVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "benchfleet",
			Name:      "config_version",
			Help:      "Version of the last persisted desired-state document.",
		}),
		KilledProcesses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benchfleet",
			Name:      "killed_processes_total",
			Help:      "Processes that had to be killed because they outlived the shutdown grace period.",
		}),
	}
	m.Registry.MustRegister(m.ConvergenceSeconds, m.ConfigVersion, m.KilledProcesses)
	return m
}

// A nil *Metrics records nothing.

func (m *Metrics) observeConvergence(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.ConvergenceSeconds.WithLabelValues(phase).Set(d.Seconds())
}

func (m *Metrics) setConfigVersion(version int64) {
	if m == nil {
		return
	}
	m.ConfigVersion.Set(float64(version))
}

func (m *Metrics) addKilled(n int) {
	if m == nil {
		return
	}
	m.KilledProcesses.Add(float64(n))
}

func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
