package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lawgraph",
		Name:      "search_total",
		Help:      "Search requests by outcome.",
	}, []string{"status"})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lawgraph",
		Name:      "search_duration_seconds",
		Help:      "End-to-end search latency.",
		Buckets:   prometheus.DefBuckets,
	})

	resultStageTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lawgraph",
		Name:      "result_stage_total",
		Help:      "Returned results by provenance stage.",
	}, []string{"stage"})

	domainsQueried = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lawgraph",
		Name:      "domains_queried",
		Help:      "Domains consulted per search.",
		Buckets:   []float64{1, 2, 3, 4, 5, 8},
	})

	snapshotCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lawgraph",
		Name:      "snapshot_cache_total",
		Help:      "Domain snapshot lookups by cache layer outcome.",
	}, []string{"outcome"})

	synthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lawgraph",
		Name:      "synthesis_total",
		Help:      "Synthesis attempts by outcome.",
	}, []string{"status"})
)
