// Package metrics exposes orchestration counters through Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values for deploy and undeploy counters.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the dataflow counters. A nil *Metrics is valid and records
// nothing, so collaborators never need a metrics guard.
type Metrics struct {
	groupDeploys     *prometheus.CounterVec
	groupUndeploys   *prometheus.CounterVec
	dispatchFailures *prometheus.CounterVec
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		groupDeploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataflow_group_deploys_total",
			Help: "Application group deploy requests by outcome",
		}, []string{"outcome"}),
		groupUndeploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataflow_group_undeploys_total",
			Help: "Application group undeploy requests by outcome",
		}, []string{"outcome"}),
		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataflow_member_dispatch_failures_total",
			Help: "Member deploy or undeploy dispatch failures by kind",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.groupDeploys, m.groupUndeploys, m.dispatchFailures)
	return m
}

// RecordDeploy counts one group deploy request.
func (m *Metrics) RecordDeploy(outcome string) {
	if m == nil {
		return
	}
	m.groupDeploys.WithLabelValues(outcome).Inc()
}

// RecordUndeploy counts one group undeploy request.
func (m *Metrics) RecordUndeploy(outcome string) {
	if m == nil {
		return
	}
	m.groupUndeploys.WithLabelValues(outcome).Inc()
}

// RecordDispatchFailure counts one failed member dispatch.
func (m *Metrics) RecordDispatchFailure(kind string) {
	if m == nil {
		return
	}
	m.dispatchFailures.WithLabelValues(kind).Inc()
}
