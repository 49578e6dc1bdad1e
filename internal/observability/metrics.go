package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	routingDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighter_routing_decisions_total",
			Help: "Orchestrator routing decisions by target agent and source.",
		},
		[]string{"agent", "source"},
	)

	agentRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighter_agent_runs_total",
			Help: "Specialized agent executions by outcome.",
		},
		[]string{"agent", "status"},
	)

	agentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insighter_agent_duration_seconds",
			Help:    "Specialized agent execution latency.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"agent"},
	)

	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighter_tool_calls_total",
			Help: "Agent tool invocations by outcome.",
		},
		[]string{"tool", "status"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighter_http_requests_total",
			Help: "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)
)

func init() {
	prometheus.MustRegister(routingDecisions, agentRuns, agentDuration, toolCalls, httpRequests)
}

func RecordRoutingDecision(agent, source string) {
	routingDecisions.WithLabelValues(agent, source).Inc()
}

func RecordAgentRun(agent, status string, elapsed time.Duration) {
	agentRuns.WithLabelValues(agent, status).Inc()
	agentDuration.WithLabelValues(agent).Observe(elapsed.Seconds())
}

func RecordToolCall(tool string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	toolCalls.WithLabelValues(tool, status).Inc()
}

func RecordHTTPRequest(route string, code int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
