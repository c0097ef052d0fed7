package models

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	worldIDLabel   = "world_id"
	opLabel        = "op"
	errorTypeLabel = "error_type"

	opSplit     = "split"
	opMerge     = "merge"
	opNeighbors = "neighbors"
	opArea      = "area"
)

var (
	worldCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "world_count",
		Help: "The number of worlds.",
	})

	worldCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "world_count_total",
		Help: "The total number of worlds.",
	})

	worldCells = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "world_cells",
		Help: "The number of leaf cells in a world.",
	}, []string{worldIDLabel})

	worldTopologyOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "world_topology_ops",
		Help: "The number of topology operations.",
	}, []string{opLabel})

	worldTopologyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "world_topology_errors",
		Help: "The number of failed topology operations.",
	}, []string{opLabel, errorTypeLabel})

	worldTopologyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "world_topology_latency",
		Help:    "The duration of topology operations in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12),
	}, []string{opLabel})
)

func instrumentIncreaseWorldGauge() {
	worldCount.Inc()
}

func instrumentDecreaseWorldGauge() {
	worldCount.Dec()
}

func instrumentCountWorld() {
	worldCountTotal.Inc()
}

func instrumentWorldCells(worldID string, count int) {
	worldCells.
		With(prometheus.Labels{worldIDLabel: worldID}).
		Set(float64(count))
}

func instrumentDeleteWorldCells(worldID string) {
	worldCells.Delete(prometheus.Labels{worldIDLabel: worldID})
}

func instrumentTopologyOp(op string, start time.Time, err error) {
	worldTopologyOps.
		With(prometheus.Labels{opLabel: op}).
		Inc()

	worldTopologyLatency.
		With(prometheus.Labels{opLabel: op}).
		Observe(time.Since(start).Seconds())

	if err != nil {
		worldTopologyErrors.
			With(prometheus.Labels{
				opLabel:        op,
				errorTypeLabel: errors.Type(err),
			}).
			Inc()
	}
}
