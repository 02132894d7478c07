// Package metrics exposes Prometheus collectors for loading, sampling and streaming.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	LoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bvh_player_loads_total",
		Help: "Motion files parsed, by trigger and result.",
	}, []string{"trigger", "result"})

	LoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bvh_player_load_duration_seconds",
		Help:    "Time spent parsing a motion file.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	PoseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bvh_player_pose_duration_seconds",
		Help:    "Time spent sampling, applying and propagating one pose.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
	})

	PosesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bvh_player_poses_total",
		Help: "Poses computed, by result.",
	}, []string{"result"})

	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bvh_player_exports_total",
		Help: "Pose exports, by format and result.",
	}, []string{"format", "result"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bvh_player_stream_clients",
		Help: "Connected pose stream websocket clients.",
	})

	Joints = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bvh_player_joints",
		Help: "Joints in the loaded skeleton.",
	})

	Frames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bvh_player_frames",
		Help: "Frames in the loaded motion.",
	})
)

func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
