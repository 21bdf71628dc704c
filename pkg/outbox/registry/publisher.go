package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/pkg/config"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox/payloads"
)

var errNoTopic = errors.New("domain topic is required")

// EventDescriptor routes one event type: which aggregate it belongs to, the
// topic it is published on and the payload type it decodes into.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row that passed every publish-time check.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks rows that will fail identically on every attempt.
// The dispatcher dead-letters them immediately.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

type subject interface {
	Subject() uuid.UUID
}

func payloadOf[T any]() func() any {
	return func() any { return new(T) }
}

// aggregateEvents lists every published event type per aggregate.
var aggregateEvents = []struct {
	aggregate enums.OutboxAggregateType
	events    map[enums.OutboxEventType]func() any
}{
	{enums.AggregateOffer, map[enums.OutboxEventType]func() any{
		enums.EventOfferCreated:   payloadOf[payloads.OfferEvent](),
		enums.EventOfferCountered: payloadOf[payloads.OfferEvent](),
		enums.EventOfferAccepted:  payloadOf[payloads.OfferEvent](),
		enums.EventOfferRejected:  payloadOf[payloads.OfferEvent](),
		enums.EventOfferWithdrawn: payloadOf[payloads.OfferEvent](),
	}},
	{enums.AggregateListing, map[enums.OutboxEventType]func() any{
		enums.EventListingCreated: payloadOf[payloads.ListingCreatedEvent](),
	}},
	{enums.AggregateOrder, map[enums.OutboxEventType]func() any{
		enums.EventOrderCreated:        payloadOf[payloads.OrderCreatedEvent](),
		enums.EventOrderDriversInvited: payloadOf[payloads.OrderDriversInvitedEvent](),
		enums.EventOrderPaid:           payloadOf[payloads.OrderTransitionEvent](),
		enums.EventOrderCancelled:      payloadOf[payloads.OrderTransitionEvent](),
		enums.EventOrderDriverAssigned: payloadOf[payloads.OrderTransitionEvent](),
		enums.EventOrderDriverDeclined: payloadOf[payloads.OrderTransitionEvent](),
		enums.EventOrderDelivered:      payloadOf[payloads.OrderTransitionEvent](),
		enums.EventOrderCompleted:      payloadOf[payloads.OrderTransitionEvent](),
	}},
	{enums.AggregateWallet, map[enums.OutboxEventType]func() any{
		enums.EventWalletCredited: payloadOf[payloads.WalletEvent](),
		enums.EventWalletDebited:  payloadOf[payloads.WalletEvent](),
	}},
}

// NewEventRegistry routes every domain event to the configured topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, errNoTopic
	}
	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	for _, group := range aggregateEvents {
		for eventType, factory := range group.events {
			reg.entries[eventType] = EventDescriptor{
				EventType:      eventType,
				AggregateType:  group.aggregate,
				Topic:          topic,
				PayloadFactory: factory,
			}
		}
	}
	return reg, nil
}

// Types lists the registered event types in a stable order.
func (r *EventRegistry) Types() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.OpenEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	if s, ok := payload.(subject); ok && s.Subject() != event.AggregateID {
		return nil, NewNonRetryableError(fmt.Errorf("%s payload is about %s, row aggregate is %s", event.EventType, s.Subject(), event.AggregateID))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
