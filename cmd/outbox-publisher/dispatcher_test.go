package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/config"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox/payloads"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox/registry"
)

func TestDrainOnceContinuesAfterTransientFailure(t *testing.T) {
	first := orderEvent(t, enums.EventOrderPaid, 0)
	second := orderEvent(t, enums.EventOrderDelivered, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	sink := &fakeSink{errs: []error{errors.New("unavailable"), nil}}
	stats := &fakeMetrics{}
	d := newTestDispatcher(t, repo, sink, &fakeRegistry{}, &fakeDLQRepo{}, stats, 5)

	handled, err := d.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if handled != 2 {
		t.Fatalf("expected 2 rows handled, got %d", handled)
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("expected second row marked published, got %v", repo.published)
	}
	if got := stats.outcomes; len(got) != 2 || got[0] != "order.paid/retry" || got[1] != "order.delivered/published" {
		t.Fatalf("unexpected outcomes %v", got)
	}
}

func TestDispatchUsesAggregateOrderingKey(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCompleted, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	sink := &fakeSink{}
	d := newTestDispatcher(t, repo, sink, &fakeRegistry{}, &fakeDLQRepo{}, nil, 5)

	if _, err := d.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sink.sent))
	}
	msg := sink.sent[0]
	if msg.OrderingKey != event.AggregateID.String() {
		t.Fatalf("ordering key = %q, want %q", msg.OrderingKey, event.AggregateID)
	}
	if msg.Attributes["event_type"] != string(enums.EventOrderCompleted) {
		t.Fatalf("unexpected event_type attribute %q", msg.Attributes["event_type"])
	}
	if msg.Attributes["aggregate_type"] != string(enums.AggregateOrder) {
		t.Fatalf("unexpected aggregate_type attribute %q", msg.Attributes["aggregate_type"])
	}
	if !bytes.Equal(msg.Data, event.Payload) {
		t.Fatalf("message data should be the stored envelope")
	}
	if sink.topics[0] != "agri-domain" {
		t.Fatalf("unexpected topic %q", sink.topics[0])
	}
}

func TestDispatchDeadLettersUnresolvableRow(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCreated, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("decode payload"))}
	sink := &fakeSink{}
	d := newTestDispatcher(t, repo, sink, reg, dlq, nil, 5)

	if _, err := d.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if len(sink.sent) != 0 {
		t.Fatalf("unresolvable row must not be published")
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(dlq.entries))
	}
	entry := dlq.entries[0]
	if entry.EventID != event.ID || entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected dlq entry %+v", entry)
	}
	if !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected row marked terminal, got %v", repo.terminal)
	}
}

func TestDispatchDeadLettersOnLastAttempt(t *testing.T) {
	event := walletEvent(t, 2)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	stats := &fakeMetrics{}
	sink := &fakeSink{errs: []error{errors.New("deadline exceeded")}}
	d := newTestDispatcher(t, repo, sink, &fakeRegistry{}, dlq, stats, 3)

	if _, err := d.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("expected max_attempts dlq entry, got %+v", dlq.entries)
	}
	if dlq.entries[0].ErrorMessage == nil || *dlq.entries[0].ErrorMessage == "" {
		t.Fatalf("expected error message on dlq entry")
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal row must not be marked for retry")
	}
	if got := stats.outcomes; len(got) != 1 || got[0] != "wallet.credited/dead_lettered" {
		t.Fatalf("unexpected outcomes %v", got)
	}
}

func TestDispatchNonRetryableSendError(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCancelled, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	sink := &fakeSink{errs: []error{registry.NewNonRetryableError(errors.New("publisher not configured"))}}
	d := newTestDispatcher(t, repo, sink, &fakeRegistry{}, dlq, nil, 5)

	if _, err := d.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain returned error: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("expected non_retryable dlq entry, got %+v", dlq.entries)
	}
}

func TestDrainOnceSurfacesRepositoryErrors(t *testing.T) {
	event := orderEvent(t, enums.EventOrderPaid, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}, publishErr: errors.New("conn reset")}
	d := newTestDispatcher(t, repo, &fakeSink{}, &fakeRegistry{}, &fakeDLQRepo{}, nil, 5)

	if _, err := d.drainOnce(context.Background()); err == nil {
		t.Fatalf("expected mark-published failure to abort the batch")
	}
}

func TestNextBackoffCapsAtCeiling(t *testing.T) {
	base := 500 * time.Millisecond
	cases := []struct {
		current time.Duration
		want    time.Duration
	}{
		{0, time.Second},
		{base, time.Second},
		{4 * time.Second, 8 * time.Second},
		{8 * time.Second, maxIdleBackoff},
		{maxIdleBackoff, maxIdleBackoff},
	}
	for _, tc := range cases {
		if got := nextBackoff(tc.current, base, maxIdleBackoff); got != tc.want {
			t.Fatalf("nextBackoff(%s) = %s, want %s", tc.current, got, tc.want)
		}
	}
}

func TestWithJitterStaysInWindow(t *testing.T) {
	for range 50 {
		got := withJitter(time.Second)
		if got < time.Second || got >= time.Second+jitterWindow {
			t.Fatalf("jittered duration %s outside window", got)
		}
	}
}

func TestNewDispatcherRequiresDependencies(t *testing.T) {
	if _, err := NewDispatcher(DispatcherParams{}); err == nil {
		t.Fatalf("expected error for empty params")
	}
}

func newTestDispatcher(t *testing.T, repo outboxRepository, sink eventSink, reg registryResolver, dlq dlqRepository, stats dispatchMetrics, maxAttempts int) *Dispatcher {
	t.Helper()
	cfg := &config.Config{
		Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 100, MaxAttempts: maxAttempts},
	}
	d, err := NewDispatcher(DispatcherParams{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:            fakeDB{},
		Repository:    repo,
		DLQRepository: dlq,
		Registry:      reg,
		Sink:          sink,
		Metrics:       stats,
	})
	if err != nil {
		t.Fatalf("construct dispatcher: %v", err)
	}
	return d
}

func orderEvent(t *testing.T, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	t.Helper()
	orderID := uuid.New()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelopeJSON(t, payloads.OrderTransitionEvent{OrderID: orderID, From: enums.OrderStatusPendingPayment, To: enums.OrderStatusPaid}),
		AttemptCount:  attempts,
		CreatedAt:     time.Now().UTC(),
	}
}

func walletEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	userID := uuid.New()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventWalletCredited,
		AggregateType: enums.AggregateWallet,
		AggregateID:   userID,
		Payload: envelopeJSON(t, payloads.WalletEvent{
			UserID:      userID,
			EntryID:     uuid.New(),
			Type:        enums.LedgerEntryCredit,
			AmountCents: 125000,
		}),
		AttemptCount: attempts,
		CreatedAt:    time.Now().UTC(),
	}
}

func envelopeJSON(t *testing.T, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

type fakeRepo struct {
	events     []models.OutboxEvent
	published  []uuid.UUID
	failed     []uuid.UUID
	terminal   []uuid.UUID
	publishErr error
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

// fakeRegistry resolves every row onto a fixed topic unless err is set.
type fakeRegistry struct {
	err error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, registry.NewNonRetryableError(err)
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			Topic:         "agri-domain",
		},
		Envelope: env,
	}, nil
}

type fakeSink struct {
	errs   []error
	sent   []*gcppubsub.Message
	topics []string
}

func (f *fakeSink) Ping(context.Context) error { return nil }

func (f *fakeSink) Send(_ context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	if err != nil {
		return "", err
	}
	f.sent = append(f.sent, msg)
	f.topics = append(f.topics, topic)
	return "server-" + msg.Attributes["event_id"], nil
}

type fakeMetrics struct {
	outcomes []string
}

func (f *fakeMetrics) Observe(eventType, outcome string) {
	f.outcomes = append(f.outcomes, eventType+"/"+outcome)
}
