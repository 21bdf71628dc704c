package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox/payloads"
)

const otpResendScope = "otp_resend"

// VerifyOTP checks the buyer's code with the verification service and marks
// the order delivered. A rejected code leaves the order untouched.
func (s *service) VerifyOTP(ctx context.Context, actor auth.Actor, orderID uuid.UUID, code string) (*OrderDTO, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "otp code is required")
	}
	order, err := s.assignedOrder(ctx, actor, orderID, TransitionVerifyOTP)
	if err != nil {
		return nil, err
	}
	buyer, err := s.buyer(ctx, order)
	if err != nil {
		return nil, err
	}

	// The verification call runs outside any transaction.
	approved, err := s.verifier.CheckCode(ctx, buyer.Phone, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check otp")
	}
	if !approved {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCredential, "invalid or expired otp")
	}

	from := order.Status
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		at := s.now()
		if err := s.apply(ctx, repo, order, TransitionVerifyOTP, map[string]any{
			"is_delivered": true,
			"delivered_at": at,
		}); err != nil {
			return err
		}
		order.IsDelivered = true
		order.DeliveredAt = &at
		return s.emitTransition(ctx, tx, order, from, enums.EventOrderDelivered, actor, payloads.OrderTransitionEvent{})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(string(from), string(order.Status))
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "delivery confirmed")
	return FromModel(order), nil
}

// ResendOTP requests a fresh code for the buyer, at most once per cooldown
// window per order.
func (s *service) ResendOTP(ctx context.Context, actor auth.Actor, orderID uuid.UUID) error {
	order, err := s.assignedOrder(ctx, actor, orderID, TransitionVerifyOTP)
	if err != nil {
		return err
	}
	allowed, err := s.cooldowns.Cooldown(ctx, otpResendScope, order.ID.String(), s.cfg.OTPResendCooldown)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check otp cooldown")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "otp was requested recently, try again shortly")
	}
	buyer, err := s.buyer(ctx, order)
	if err != nil {
		s.releaseOTPCooldown(ctx, order.ID)
		return err
	}
	if err := s.verifier.RequestCode(ctx, buyer.Phone); err != nil {
		s.releaseOTPCooldown(ctx, order.ID)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request otp")
	}
	if err := s.repo.Update(ctx, order.ID, map[string]any{"otp_requested_at": s.now()}); err != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "record otp request time failed: "+err.Error())
	}
	return nil
}

// releaseOTPCooldown frees the resend slot when no code went out.
func (s *service) releaseOTPCooldown(ctx context.Context, orderID uuid.UUID) {
	if err := s.cooldowns.ReleaseCooldown(ctx, otpResendScope, orderID.String()); err != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "release otp cooldown failed: "+err.Error())
	}
}

// assignedOrder loads the order for its assigned driver and checks that t
// may fire from its status.
func (s *service) assignedOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID, t Transition) (*models.Order, error) {
	if !actor.Is(enums.RoleDriver) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned driver can do this")
	}
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.DriverID == nil || *order.DriverID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to this driver")
	}
	if err := guard(t, order.Status); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) buyer(ctx context.Context, order *models.Order) (*models.User, error) {
	buyer, err := s.repo.FindUser(ctx, order.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}
	if strings.TrimSpace(buyer.Phone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer has no phone number on file")
	}
	return buyer, nil
}
