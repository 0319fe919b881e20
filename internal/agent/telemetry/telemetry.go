package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry tracks pipeline activity as prometheus metrics, exposed by the
// server's /metrics endpoint.
type Telemetry struct {
	runsTotal     *prometheus.CounterVec
	searchesTotal *prometheus.CounterVec
	agentCalls    *prometheus.CounterVec
	agentTokens   *prometheus.CounterVec
	denialsTotal  *prometheus.CounterVec
}

// NewTelemetry creates a telemetry instance and registers its collectors on
// the given registerer (prometheus.DefaultRegisterer when nil).
func NewTelemetry(reg prometheus.Registerer) *Telemetry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	t := &Telemetry{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "research_runs_total",
			Help: "Total number of research pipeline runs by terminal status",
		}, []string{"status"}),
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "research_searches_total",
			Help: "Total number of individual search tasks by outcome",
		}, []string{"outcome"}),
		agentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "research_agent_calls_total",
			Help: "Total number of remote agent calls by role and outcome",
		}, []string{"role", "outcome"}),
		agentTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "research_agent_tokens_total",
			Help: "Total LLM tokens used by role and direction",
		}, []string{"role", "direction"}),
		denialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "research_admission_denials_total",
			Help: "Total number of admission checks denied by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(t.runsTotal, t.searchesTotal, t.agentCalls, t.agentTokens, t.denialsTotal)
	return t
}

// RecordRun counts one pipeline run reaching a terminal status.
func (t *Telemetry) RecordRun(status string) {
	t.runsTotal.WithLabelValues(status).Inc()
}

// RecordSearch counts one search task reaching a terminal state.
func (t *Telemetry) RecordSearch(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	t.searchesTotal.WithLabelValues(outcome).Inc()
}

// RecordAgentCall counts one remote agent call with its token usage.
func (t *Telemetry) RecordAgentCall(role string, inTokens, outTokens int64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	t.agentCalls.WithLabelValues(role, outcome).Inc()
	if inTokens > 0 {
		t.agentTokens.WithLabelValues(role, "prompt").Add(float64(inTokens))
	}
	if outTokens > 0 {
		t.agentTokens.WithLabelValues(role, "completion").Add(float64(outTokens))
	}
}

// RecordDenial counts one denied admission check.
func (t *Telemetry) RecordDenial(reason string) {
	t.denialsTotal.WithLabelValues(reason).Inc()
}
