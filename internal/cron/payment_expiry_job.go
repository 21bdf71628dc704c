package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/logger"
)

const (
	defaultPaymentWindow   = 24 * time.Hour
	defaultExpiryBatchSize = 100
	maxExpiryBatches       = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type unpaidExpirer interface {
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// PaymentExpiryJobParams configure the unpaid order sweep.
type PaymentExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    unpaidExpirer
	Window    time.Duration
	BatchSize int
}

// NewPaymentExpiryJob builds the job cancelling orders still awaiting payment
// after the payment window. Cancellation restores the listing stock.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultPaymentWindow
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &paymentExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		window: window,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type paymentExpiryJob struct {
	logg   *logger.Logger
	orders unpaidExpirer
	window time.Duration
	batch  int
	now    func() time.Time
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	total := 0
	for i := 0; i < maxExpiryBatches; i++ {
		n, err := j.orders.ExpireUnpaid(ctx, cutoff, j.batch)
		total += n
		if err != nil {
			return fmt.Errorf("expire unpaid orders: %w", err)
		}
		if n < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"cancelled": total,
	})
	j.logg.Info(logCtx, "payment expiry sweep complete")
	return nil
}
