package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	iterationsPerTurn = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agentcore",
		Name:      "loop_iterations_per_turn",
		Help:      "Model/tool iterations consumed by one handled message.",
		Buckets:   prometheus.LinearBuckets(1, 1, 20),
	})

	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentcore",
		Name:      "loop_turns_total",
		Help:      "Handled messages by outcome (complete, error, cancelled).",
	}, []string{"outcome"})

	toolExecutionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentcore",
		Name:      "tool_execution_seconds",
		Help:      "Wall time of individual tool executions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})

	toolTruncationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentcore",
		Name:      "tool_truncations_total",
		Help:      "Tool results truncated at their output cap.",
	}, []string{"tool"})
)
