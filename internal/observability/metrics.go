package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vod",
		Name:      "frames_extracted_total",
		Help:      "Total number of frames extracted from source videos",
	})

	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vod",
		Name:      "frames_processed_total",
		Help:      "Total number of frames run through object detection",
	})

	ObjectsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vod",
		Name:      "objects_detected_total",
		Help:      "Total number of objects detected, by class",
	}, []string{"class"})

	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vod",
		Name:      "jobs_total",
		Help:      "Total number of processing jobs, by final status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vod",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vod",
		Name:      "queue_depth",
		Help:      "Number of pending job tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vod",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vod",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
