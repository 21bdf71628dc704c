package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Driver race outcomes recorded by OrderMetrics.IncDriverRace.
const (
	RaceWon  = "won"
	RaceLost = "lost"
)

// OrderMetrics records order lifecycle activity.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	driverRace  *prometheus.CounterVec
	settled     prometheus.Counter
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agri_order_transitions_total",
		Help: "Order status transitions committed.",
	}, []string{"from", "to"})
	driverRace := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agri_order_driver_accept_total",
		Help: "Driver accept attempts by outcome.",
	}, []string{"outcome"})
	settled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agri_order_settlements_total",
		Help: "Orders settled into wallets.",
	})
	reg.MustRegister(transitions, driverRace, settled)
	return &OrderMetrics{
		transitions: transitions,
		driverRace:  driverRace,
		settled:     settled,
	}
}

// IncTransition counts a committed status change.
func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncDriverRace counts a driver accept attempt.
func (m *OrderMetrics) IncDriverRace(outcome string) {
	if m == nil || m.driverRace == nil {
		return
	}
	m.driverRace.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncSettled counts a completed settlement.
func (m *OrderMetrics) IncSettled() {
	if m == nil || m.settled == nil {
		return
	}
	m.settled.Inc()
}
