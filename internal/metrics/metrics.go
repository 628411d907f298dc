// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

// Package metrics provides Prometheus instrumentation for:
//   - WebSocket connections and relayed events
//   - AI responder latency and failures
//   - Notification delivery
//   - API endpoint latency and throughput
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_ws_connections",
			Help: "Current number of live WebSocket connections",
		},
	)

	WSEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_ws_events_total",
			Help: "Total inbound WebSocket events by type",
		},
		[]string{"event"},
	)

	WSEventErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_ws_event_errors_total",
			Help: "Total error events emitted to requesters by error code",
		},
		[]string{"code"},
	)

	WSDroppedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_ws_dropped_messages_total",
			Help: "Outbound messages dropped due to a full client send buffer",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_online_users",
			Help: "Current number of distinct online users",
		},
	)

	// AI Responder Metrics
	AIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parley_ai_request_duration_seconds",
			Help:    "Duration of assistant responder calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	AIRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_ai_request_errors_total",
			Help: "Total assistant responder failures",
		},
		[]string{"reason"}, // "upstream", "breaker_open"
	)

	// Notification Metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_notifications_total",
			Help: "Total notification deliveries by kind",
		},
		[]string{"kind"}, // "user", "broadcast"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parley_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordAIRequest records one assistant responder call.
func RecordAIRequest(duration time.Duration, err error, breakerOpen bool) {
	AIRequestDuration.Observe(duration.Seconds())
	if err == nil {
		return
	}
	reason := "upstream"
	if breakerOpen {
		reason = "breaker_open"
	}
	AIRequestErrors.WithLabelValues(reason).Inc()
}
