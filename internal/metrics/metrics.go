// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus metrics for the daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Image pipeline
	pipelineJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkframe_pipeline_jobs_total",
		Help: "Image pipeline jobs by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inkframe_pipeline_duration_seconds",
		Help:    "Image pipeline job latencies in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
	})

	// Federated search
	searchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkframe_search_requests_total",
		Help: "Federated search requests by cache outcome",
	}, []string{"cache"}) // cache=hit|miss

	adapterCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkframe_adapter_calls_total",
		Help: "Museum adapter calls by source and outcome",
	}, []string{"source", "outcome"}) // outcome=ok|rate_limited|error|timeout

	adapterDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkframe_adapter_duration_seconds",
		Help:    "Museum adapter call latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	// Device telemetry
	deviceStatusPosts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkframe_device_status_posts_total",
		Help: "Device status posts ingested",
	})

	deviceBatteryPercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inkframe_device_battery_percent",
		Help: "Last reported battery percent per device",
	}, []string{"device"})

	devicePolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkframe_device_polls_total",
		Help: "Device polls by endpoint",
	}, []string{"endpoint"}) // endpoint=current|image|commands

	// Playlist
	playlistAdvances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkframe_playlist_advances_total",
		Help: "Playlist advances triggered by device polls",
	})

	// OTA
	firmwareDownloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkframe_firmware_downloads_total",
		Help: "Firmware binary downloads served",
	})
)

// ObservePipelineJob records one pipeline run.
func ObservePipelineJob(d time.Duration, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	pipelineJobs.WithLabelValues(outcome).Inc()
	pipelineDuration.Observe(d.Seconds())
}

// RecordSearch records a federated search and whether the cache served it.
func RecordSearch(cacheHit bool) {
	if cacheHit {
		searchRequests.WithLabelValues("hit").Inc()
	} else {
		searchRequests.WithLabelValues("miss").Inc()
	}
}

// RecordAdapterCall records one upstream museum call.
func RecordAdapterCall(source, outcome string, d time.Duration) {
	adapterCalls.WithLabelValues(source, outcome).Inc()
	adapterDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordDeviceStatus records a telemetry ingestion and the battery level.
func RecordDeviceStatus(deviceID string, percent float64) {
	deviceStatusPosts.Inc()
	deviceBatteryPercent.WithLabelValues(deviceID).Set(percent)
}

// RecordDevicePoll counts a device poll by endpoint.
func RecordDevicePoll(endpoint string) {
	devicePolls.WithLabelValues(endpoint).Inc()
}

// RecordPlaylistAdvance counts a lazy playlist advance.
func RecordPlaylistAdvance() {
	playlistAdvances.Inc()
}

// RecordFirmwareDownload counts a served firmware binary.
func RecordFirmwareDownload() {
	firmwareDownloads.Inc()
}
