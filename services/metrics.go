package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	timelineWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_timeline_writes_total",
			Help: "Total number of timeline entry upserts",
		},
		[]string{"timeline", "type"},
	)

	timelineRemovals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_timeline_removals_total",
			Help: "Total number of timeline entry removals",
		},
		[]string{"timeline"},
	)

	timelineReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_timeline_reads_total",
			Help: "Total number of timeline list reads",
		},
		[]string{"timeline"},
	)

	fanoutSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fanout_skips_total",
			Help: "Fan-out rows skipped, by reason",
		},
		[]string{"reason"},
	)

	feedCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_requests_total",
			Help: "Hot feed cache lookups, by outcome",
		},
		[]string{"outcome"},
	)
)
