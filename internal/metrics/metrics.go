package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "guestms"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_created_total",
			Help:      "Reservations successfully created.",
		},
	)

	reservationRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_rejections_total",
			Help:      "Reservation requests rejected, by validation rule.",
		},
		[]string{"rule"},
	)

	reservationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_transitions_total",
			Help:      "Reservation status changes.",
		},
		[]string{"from", "to"},
	)

	roomLockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "room_lock_wait_seconds",
			Help:      "Time spent waiting for a room lock.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_total",
			Help:      "Sheets sync tasks by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			reservationsCreated,
			reservationRejections,
			reservationTransitions,
			roomLockWait,
			syncTasks,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncReservationCreated() {
	reservationsCreated.Inc()
}

func IncRejection(rule string) {
	reservationRejections.WithLabelValues(rule).Inc()
}

func IncTransition(from, to string) {
	reservationTransitions.WithLabelValues(from, to).Inc()
}

func ObserveLockWait(d time.Duration) {
	roomLockWait.Observe(d.Seconds())
}

// IncSyncTask counts a sync task outcome: completed, retry or failed.
func IncSyncTask(outcome string) {
	syncTasks.WithLabelValues(outcome).Inc()
}
