package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liftbuddy_llm_call_duration_seconds",
		Help:    "Latency of provider calls including retries.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"op"})

	callRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liftbuddy_llm_retries_total",
		Help: "Transient provider failures that were retried.",
	}, []string{"op"})

	embeddingCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liftbuddy_embedding_cache_total",
		Help: "Embedding cache lookups by result.",
	}, []string{"result"})
)
