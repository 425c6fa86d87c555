package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_jobs_total",
		Help: "Total number of conversion jobs by final status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "image_stage_duration_seconds",
		Help:    "Duration of each conversion pipeline stage",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage", "result"})

	QueuePops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_queue_pops_total",
		Help: "Queue pops by outcome (entry, empty, error)",
	}, []string{"result"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "image_active_jobs",
		Help: "Number of jobs currently being converted",
	})

	WorkerRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_worker_restarts_total",
		Help: "Supervised restarts of worker loops",
	})

	LeasesReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_leases_reaped_total",
		Help: "Processing jobs failed because their lease expired",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})
)
