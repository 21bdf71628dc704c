package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/db/dbtest"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
)

func TestOutboxRetentionJobPrunesOldRows(t *testing.T) {
	client := dbtest.Open(t)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -45)
	recent := now.AddDate(0, 0, -1)
	ancient := now.AddDate(0, 0, -120)

	seedEvent := func(createdAt time.Time, publishedAt *time.Time, attempts int) uuid.UUID {
		ev := models.OutboxEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{"ok":true}`),
			CreatedAt:     createdAt,
			PublishedAt:   publishedAt,
			AttemptCount:  attempts,
		}
		if err := client.DB().Create(&ev).Error; err != nil {
			t.Fatalf("seed event: %v", err)
		}
		return ev.ID
	}
	seedDeadLetter := func(failedAt time.Time) uuid.UUID {
		row := models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			FailedAt:      failedAt,
		}
		if err := client.DB().Create(&row).Error; err != nil {
			t.Fatalf("seed dead letter: %v", err)
		}
		return row.ID
	}

	publishedOld := seedEvent(old, &old, 1)
	terminalOld := seedEvent(old, nil, 5)
	pendingOld := seedEvent(old, nil, 2)
	publishedRecent := seedEvent(recent, &recent, 1)
	dlqAncient := seedDeadLetter(ancient)
	dlqOld := seedDeadLetter(old)

	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.Nop(),
		DB:          client,
		Events:      outbox.NewRepository(client.DB()),
		DeadLetters: outbox.NewDLQRepository(client.DB()),
		MaxAttempts: 5,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return now }
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	exists := func(model any, id uuid.UUID) bool {
		var count int64
		if err := client.DB().Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		return count == 1
	}
	if exists(&models.OutboxEvent{}, publishedOld) || exists(&models.OutboxEvent{}, terminalOld) {
		t.Fatal("expected old published and terminal rows removed")
	}
	if !exists(&models.OutboxEvent{}, pendingOld) || !exists(&models.OutboxEvent{}, publishedRecent) {
		t.Fatal("expected pending and recent rows kept")
	}
	if exists(&models.OutboxDLQ{}, dlqAncient) {
		t.Fatal("expected dead letter past retention removed")
	}
	if !exists(&models.OutboxDLQ{}, dlqOld) {
		t.Fatal("expected dead letter inside retention kept")
	}
}

type failingPruner struct{}

func (failingPruner) DeletePublishedBefore(context.Context, *gorm.DB, time.Time, int) (int64, error) {
	return 0, context.DeadlineExceeded
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	client := dbtest.Open(t)
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: logger.Nop(),
		DB:     client,
		Events: failingPruner{},
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestOutboxRetentionJobRequiresEvents(t *testing.T) {
	if _, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop(), DB: dbtest.Open(t)}); err == nil {
		t.Fatal("expected missing repository error")
	}
}
