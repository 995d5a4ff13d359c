package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created by initial status.",
		},
		[]string{"status"},
	)

	reservationDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "reservation_decision_total",
			Help:      "Count of reservation state transitions by action.",
		},
		[]string{"action"},
	)

	capacityRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "capacity_rejected_total",
			Help:      "Count of reservation attempts rejected by the capacity gate.",
		},
	)

	slotBatchCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "slot_batch_created_total",
			Help:      "Count of committed slot batches.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "http_requests_total",
			Help:      "Count of API requests by operation.",
		},
		[]string{"op"},
	)

	reminderOutcome = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "reminder_total",
			Help:      "Count of reservation reminders by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationCreated, reservationDecision, capacityRejected,
			slotBatchCreated, httpRequests, reminderOutcome,
		)
	})
}

func IncReservationCreated(status string) {
	reservationCreated.WithLabelValues(status).Inc()
}

func IncReservationDecision(action string) {
	reservationDecision.WithLabelValues(action).Inc()
}

func IncCapacityRejected() {
	capacityRejected.Inc()
}

func IncSlotBatchCreated() {
	slotBatchCreated.Inc()
}

func IncHTTP(op string) {
	httpRequests.WithLabelValues(op).Inc()
}

func IncReminder(outcome string) {
	reminderOutcome.WithLabelValues(outcome).Inc()
}
