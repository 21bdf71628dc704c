package enums

import "fmt"

// OrderStatus is the persisted state of an order. Legal edges between the
// values live in internal/orders/statemachine.go.
type OrderStatus string

const (
	OrderStatusPendingPayment       OrderStatus = "pending_payment"
	OrderStatusPaid                 OrderStatus = "paid"
	OrderStatusAwaitingDriverAccept OrderStatus = "awaiting_driver_accept"
	OrderStatusDriverAssigned       OrderStatus = "driver_assigned"
	OrderStatusInTransit            OrderStatus = "in_transit"
	OrderStatusOTPVerified          OrderStatus = "otp_verified"
	OrderStatusDelivered            OrderStatus = "delivered"
	OrderStatusCompleted            OrderStatus = "completed"
	OrderStatusCancelled            OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPaid,
	OrderStatusAwaitingDriverAccept,
	OrderStatusDriverAssigned,
	OrderStatusInTransit,
	OrderStatusOTPVerified,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
