package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOffer   OutboxAggregateType = "offer"
	AggregateOrder   OutboxAggregateType = "order"
	AggregateWallet  OutboxAggregateType = "wallet"
	AggregateListing OutboxAggregateType = "listing"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOffer,
	AggregateOrder,
	AggregateWallet,
	AggregateListing,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventOfferCreated        OutboxEventType = "offer.created"
	EventOfferCountered      OutboxEventType = "offer.countered"
	EventOfferAccepted       OutboxEventType = "offer.accepted"
	EventOfferRejected       OutboxEventType = "offer.rejected"
	EventOfferWithdrawn      OutboxEventType = "offer.withdrawn"
	EventListingCreated      OutboxEventType = "listing.created"
	EventOrderCreated        OutboxEventType = "order.created"
	EventOrderPaid           OutboxEventType = "order.paid"
	EventOrderCancelled      OutboxEventType = "order.cancelled"
	EventOrderDriversInvited OutboxEventType = "order.drivers_invited"
	EventOrderDriverAssigned OutboxEventType = "order.driver_assigned"
	EventOrderDriverDeclined OutboxEventType = "order.driver_declined"
	EventOrderDelivered      OutboxEventType = "order.delivered"
	EventOrderCompleted      OutboxEventType = "order.completed"
	EventWalletCredited      OutboxEventType = "wallet.credited"
	EventWalletDebited       OutboxEventType = "wallet.debited"
)

var validEventTypes = []OutboxEventType{
	EventOfferCreated,
	EventOfferCountered,
	EventOfferAccepted,
	EventOfferRejected,
	EventOfferWithdrawn,
	EventListingCreated,
	EventOrderCreated,
	EventOrderPaid,
	EventOrderCancelled,
	EventOrderDriversInvited,
	EventOrderDriverAssigned,
	EventOrderDriverDeclined,
	EventOrderDelivered,
	EventOrderCompleted,
	EventWalletCredited,
	EventWalletDebited,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why an event was moved to the dead letter table.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

// ParseOutboxDLQErrorReason converts raw input into OutboxDLQErrorReason.
func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	switch r := OutboxDLQErrorReason(value); r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return r, nil
	}
	return "", fmt.Errorf("invalid dead letter reason %q", value)
}
