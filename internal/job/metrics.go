package job

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detection_jobs_accepted_total",
		Help: "Uploads accepted and queued for processing, by media kind.",
	}, []string{"kind"})

	jobsSucceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detection_jobs_succeeded_total",
		Help: "Jobs that completed and produced a stored result, by media kind.",
	}, []string{"kind"})

	jobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detection_jobs_failed_total",
		Help: "Jobs that faulted during background processing, by media kind.",
	}, []string{"kind"})

	jobsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detection_jobs_rejected_total",
		Help: "Uploads rejected because the worker queue was full.",
	})
)
