package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mathcheck",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint and status code.",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mathcheck",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by endpoint.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	comparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mathcheck",
		Name:      "comparisons_total",
		Help:      "Answer comparisons by grading mode and verdict.",
	}, []string{"mode", "equivalent"})

	gradingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mathcheck",
		Name:      "grading_failures_total",
		Help:      "Pipeline failures by stage keyword.",
	}, []string{"endpoint"})
)
