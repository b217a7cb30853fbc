package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poseUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nectar",
		Subsystem: "tracking",
		Name:      "pose_updates_total",
		Help:      "Board pose recomputations",
	}, []string{"board", "camera_id"})

	poseSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nectar",
		Subsystem: "tracking",
		Name:      "pose_skipped_total",
		Help:      "Update calls suppressed by a throttle",
	}, []string{"board", "camera_id"})

	solverFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nectar",
		Subsystem: "tracking",
		Name:      "solver_failures_total",
		Help:      "Pose estimations that fell back to identity",
	}, []string{"board", "camera_id"})

	movement = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nectar",
		Subsystem: "tracking",
		Name:      "movement_mm",
		Help:      "Distance moved between the last two poses",
	}, []string{"board", "camera_id"})
)

// RecordPoseUpdate counts a recompute and stores the movement distance.
func RecordPoseUpdate(board, cameraID string, distance float64) {
	poseUpdates.WithLabelValues(board, cameraID).Inc()
	movement.WithLabelValues(board, cameraID).Set(distance)
}

// RecordPoseSkipped counts a throttled update call.
func RecordPoseSkipped(board, cameraID string) {
	poseSkipped.WithLabelValues(board, cameraID).Inc()
}

// RecordSolverFailure counts a failed pose estimation.
func RecordSolverFailure(board, cameraID string) {
	solverFailures.WithLabelValues(board, cameraID).Inc()
}
