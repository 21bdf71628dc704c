package orders

import (
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
)

// Transition names an edge trigger of the order state machine.
type Transition string

const (
	TransitionPay           Transition = "pay"
	TransitionCancel        Transition = "cancel"
	TransitionAssignDriver  Transition = "assign_driver"
	TransitionDriverAccept  Transition = "driver_accept"
	TransitionDriverDecline Transition = "driver_decline"
	TransitionVerifyOTP     Transition = "verify_otp"
	TransitionSettle        Transition = "settle"
)

type edge struct {
	from []enums.OrderStatus
	to   enums.OrderStatus
}

// edges is the complete set of legal moves. Anything not listed is rejected.
var edges = map[Transition]edge{
	TransitionPay: {
		from: []enums.OrderStatus{enums.OrderStatusPendingPayment},
		to:   enums.OrderStatusPaid,
	},
	TransitionCancel: {
		from: []enums.OrderStatus{enums.OrderStatusPendingPayment},
		to:   enums.OrderStatusCancelled,
	},
	// Re-broadcasting from awaiting_driver_accept opens a new invitation round.
	TransitionAssignDriver: {
		from: []enums.OrderStatus{enums.OrderStatusPaid, enums.OrderStatusAwaitingDriverAccept},
		to:   enums.OrderStatusAwaitingDriverAccept,
	},
	TransitionDriverAccept: {
		from: []enums.OrderStatus{enums.OrderStatusAwaitingDriverAccept},
		to:   enums.OrderStatusDriverAssigned,
	},
	TransitionDriverDecline: {
		from: []enums.OrderStatus{enums.OrderStatusAwaitingDriverAccept},
		to:   enums.OrderStatusAwaitingDriverAccept,
	},
	TransitionVerifyOTP: {
		from: []enums.OrderStatus{enums.OrderStatusDriverAssigned, enums.OrderStatusInTransit},
		to:   enums.OrderStatusDelivered,
	},
	TransitionSettle: {
		from: []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusOTPVerified},
		to:   enums.OrderStatusCompleted,
	},
}

// SourceStatuses returns the statuses t may fire from.
func SourceStatuses(t Transition) []enums.OrderStatus {
	e, ok := edges[t]
	if !ok {
		return nil
	}
	out := make([]enums.OrderStatus, len(e.from))
	copy(out, e.from)
	return out
}

// TargetStatus returns the status t moves the order into.
func TargetStatus(t Transition) enums.OrderStatus {
	return edges[t].to
}

// CanApply reports whether t is legal from the current status.
func CanApply(t Transition, current enums.OrderStatus) bool {
	e, ok := edges[t]
	if !ok {
		return false
	}
	return containsStatus(e.from, current)
}

// guard returns a state conflict error when t cannot fire from current.
func guard(t Transition, current enums.OrderStatus) error {
	if CanApply(t, current) {
		return nil
	}
	return stateConflict(t, current)
}

func stateConflict(t Transition, current enums.OrderStatus) error {
	msg := "order cannot " + string(t) + " from " + string(current)
	switch {
	case t == TransitionCancel:
		msg = "cannot cancel a paid or processed order"
	case t == TransitionSettle && current == enums.OrderStatusCompleted:
		msg = "order already settled"
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).WithDetails(map[string]any{
		"transition": t,
		"status":     current,
	})
}

// Status sets consulted by read-side projections.
var (
	ongoingStatuses = []enums.OrderStatus{
		enums.OrderStatusPendingPayment,
		enums.OrderStatusPaid,
		enums.OrderStatusAwaitingDriverAccept,
		enums.OrderStatusDriverAssigned,
		enums.OrderStatusInTransit,
		enums.OrderStatusOTPVerified,
		enums.OrderStatusDelivered,
	}
	finishedStatuses = []enums.OrderStatus{
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelled,
	}
	driverOngoingStatuses = []enums.OrderStatus{
		enums.OrderStatusDriverAssigned,
		enums.OrderStatusInTransit,
		enums.OrderStatusOTPVerified,
		enums.OrderStatusDelivered,
	}
	receiptStatuses = []enums.OrderStatus{
		enums.OrderStatusPaid,
		enums.OrderStatusAwaitingDriverAccept,
		enums.OrderStatusDriverAssigned,
		enums.OrderStatusInTransit,
		enums.OrderStatusOTPVerified,
		enums.OrderStatusDelivered,
		enums.OrderStatusCompleted,
	}
)

// Scope selects a status set for order listings.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeOngoing  Scope = "ongoing"
	ScopeFinished Scope = "finished"
)

// ParseScope maps raw input to a Scope, defaulting to ScopeAll.
func ParseScope(value string) (Scope, error) {
	switch Scope(value) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeOngoing, ScopeFinished:
		return Scope(value), nil
	default:
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "unknown scope %q", value)
	}
}

// Statuses returns the status filter for the scope; nil means no filter.
func (s Scope) Statuses() []enums.OrderStatus {
	switch s {
	case ScopeOngoing:
		return ongoingStatuses
	case ScopeFinished:
		return finishedStatuses
	default:
		return nil
	}
}

// DriverDeliveryStatuses are the statuses listed as a driver's deliveries.
func DriverDeliveryStatuses() []enums.OrderStatus {
	out := make([]enums.OrderStatus, 0, len(driverOngoingStatuses)+1)
	out = append(out, driverOngoingStatuses...)
	return append(out, enums.OrderStatusCompleted)
}

// HasReceipt reports whether a receipt can be issued for the status.
func HasReceipt(status enums.OrderStatus) bool {
	return containsStatus(receiptStatuses, status)
}

func containsStatus(set []enums.OrderStatus, status enums.OrderStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}
