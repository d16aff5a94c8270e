package services

import (
	"time"

	"github.com/localnerve/minisitedb/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minisite_operations_total",
			Help: "Total number of coordinator operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minisite_operation_duration_seconds",
			Help:    "Coordinator operation duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// outcome labels an operation result: "ok" or the error kind
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return types.KindOf(err).String()
}

func observeOperation(operation string, start time.Time, err error) {
	operationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
