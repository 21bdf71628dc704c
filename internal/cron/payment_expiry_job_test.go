package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agriconnect/agriconnect-backend/pkg/logger"
)

type fakeExpirer struct {
	results []int
	err     error
	cutoffs []time.Time
	limits  []int
}

func (f *fakeExpirer) ExpireUnpaid(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	f.limits = append(f.limits, limit)
	if len(f.results) == 0 {
		return 0, f.err
	}
	n := f.results[0]
	f.results = f.results[1:]
	return n, f.err
}

func newPaymentExpiryJob(t *testing.T, expirer *fakeExpirer) *paymentExpiryJob {
	t.Helper()
	jobIface, err := NewPaymentExpiryJob(PaymentExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Orders:    expirer,
		Window:    2 * time.Hour,
		BatchSize: 3,
	})
	if err != nil {
		t.Fatalf("NewPaymentExpiryJob: %v", err)
	}
	return jobIface.(*paymentExpiryJob)
}

func TestPaymentExpiryJobDrainsFullBatches(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{results: []int{3, 3, 1}}
	job := newPaymentExpiryJob(t, expirer)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(expirer.cutoffs) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(expirer.cutoffs))
	}
	want := now.Add(-2 * time.Hour)
	for _, c := range expirer.cutoffs {
		if !c.Equal(want) {
			t.Fatalf("expected cutoff %s, got %s", want, c)
		}
	}
	if expirer.limits[0] != 3 {
		t.Fatalf("expected batch size 3, got %d", expirer.limits[0])
	}
}

func TestPaymentExpiryJobPropagatesError(t *testing.T) {
	job := newPaymentExpiryJob(t, &fakeExpirer{results: []int{1}, err: errors.New("boom")})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewPaymentExpiryJobRequiresOrders(t *testing.T) {
	if _, err := NewPaymentExpiryJob(PaymentExpiryJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error without orders service")
	}
}
