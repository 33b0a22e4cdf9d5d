package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liftbuddy_rag_queries_total",
		Help: "Answered queries by retrieval branch.",
	}, []string{"branch"})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liftbuddy_rag_failures_total",
		Help: "Pipeline failures by kind. Classification failures are recovered.",
	}, []string{"kind"})

	retrievedRecords = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liftbuddy_rag_retrieved_records",
		Help:    "Records placed into the answer context.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
	})
)

func recordFailure(err error) {
	if kind, ok := KindOf(err); ok {
		failuresTotal.WithLabelValues(string(kind)).Inc()
	}
}
