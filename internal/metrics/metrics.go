// Package metrics provides Prometheus collectors for songstream.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job results used as label values.
const (
	ResultDone   = "done"
	ResultFailed = "failed"
)

var (
	// BytesServed counts body bytes written by the byte-serving endpoints.
	BytesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songstream_bytes_served_total",
		Help: "Total number of media bytes written to clients, by endpoint.",
	}, []string{"endpoint"})

	// JobsTotal counts finished background jobs by result.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songstream_jobs_total",
		Help: "Total number of finished download/transcode jobs, by result.",
	}, []string{"result"})

	// JobsInFlight tracks jobs that have been accepted and not yet finished.
	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "songstream_jobs_in_flight",
		Help: "Current number of running download/transcode jobs.",
	})

	// ProcessExits counts external process exits by binary and exit code category.
	ProcessExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songstream_process_exits_total",
		Help: "Total number of external process exits, by binary and outcome.",
	}, []string{"binary", "outcome"})
)
