/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics for the display device.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DownloadsTotal counts asset downloads by outcome.
	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adup_downloads_total",
		Help: "Asset downloads by outcome.",
	}, []string{"outcome"})

	// EvictionsTotal counts files removed from the media directory.
	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adup_evictions_total",
		Help: "Files evicted from the local cache.",
	})

	// PlaybacksTotal counts finished plays by media kind and end reason.
	PlaybacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adup_playbacks_total",
		Help: "Finished asset plays by kind and end reason.",
	}, []string{"kind", "reason"})

	// ReconcileDuration observes full reconciliation passes.
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "adup_reconcile_duration_seconds",
		Help:    "Duration of cache reconciliation passes.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// LoopGeneration tracks the current playback session generation.
	LoopGeneration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adup_loop_generation",
		Help: "Generation counter of the active playback session.",
	})

	// APIActiveConnections gauges in-flight diagnostic API requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adup_api_active_connections",
		Help: "In-flight HTTP requests on the diagnostics server.",
	})

	// APIRequestDuration observes diagnostic API latency by endpoint.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adup_api_request_duration_seconds",
		Help:    "HTTP request latency by endpoint and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "status"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
