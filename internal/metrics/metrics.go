package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmbedDuration tracks model inference latency.
	EmbedDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "faceattend_embed_duration_seconds",
		Help:    "Time spent computing face embeddings.",
		Buckets: prometheus.DefBuckets,
	})

	// MatchAttempts counts face match attempts by outcome
	// (matched, unmatched, duplicate, error).
	MatchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faceattend_match_attempts_total",
		Help: "Face match attempts by outcome.",
	}, []string{"outcome"})

	// Enrollments counts stored face descriptors.
	Enrollments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_descriptors_enrolled_total",
		Help: "Face descriptors stored at enrollment.",
	})

	// AttendanceMarked counts recorded attendance rows.
	AttendanceMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_attendance_marked_total",
		Help: "Attendance records created.",
	})
)
