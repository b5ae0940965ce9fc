// Package metrics holds the Prometheus collectors shared by the ingestion
// server and the correlation worker. All collectors are registered with the
// default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "casegraph"

// Outcome label values.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

var (
	RecordsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_ingested_total",
		Help:      "Raw records extracted from uploaded files, by source format",
	}, []string{"format"})

	RecordsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_skipped_total",
		Help:      "Malformed records skipped during extraction, by source format",
	}, []string{"format"})

	PipelineResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_results_total",
		Help:      "Case records run through the pipeline, by outcome",
	}, []string{"outcome"})

	PipelineFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_failures_total",
		Help:      "Pipeline failures, by stage",
	}, []string{"stage"})

	PipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Time spent running one record through the pipeline",
		Buckets:   prometheus.DefBuckets,
	})

	GraphWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "graph_writes_total",
		Help:      "Vertex and edge writes, by collection and outcome",
	}, []string{"collection", "outcome"})

	EdgeFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "edge_fallbacks_total",
		Help:      "Edges written through the query fallback after the structured insert failed",
	}, []string{"collection"})

	PatternQueryFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pattern_query_failures_total",
		Help:      "Failed correlation queries, by query",
	}, []string{"query"})

	Alerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_total",
		Help:      "High priority alerts raised, by case type",
	}, []string{"case_type"})

	MessagesConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_consumed_total",
		Help:      "Case events consumed from the bus, by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		RecordsIngested,
		RecordsSkipped,
		PipelineResults,
		PipelineFailures,
		PipelineDuration,
		GraphWrites,
		EdgeFallbacks,
		PatternQueryFailures,
		Alerts,
		MessagesConsumed,
	)
}

// Outcome maps an error to its outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailed
	}
	return OutcomeOK
}
