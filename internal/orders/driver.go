package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/metrics"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox/payloads"
)

// AssignDriver broadcasts the order to a new invitation round. Earlier
// rounds that are still open are voided.
func (s *service) AssignDriver(ctx context.Context, actor auth.Actor, orderID uuid.UUID, driverIDs []uuid.UUID) (*OrderDetail, error) {
	ids, err := distinctIDs(driverIDs)
	if err != nil {
		return nil, err
	}

	var (
		order *models.Order
		from  enums.OrderStatus
		invs  []models.DriverInvitation
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.FarmerID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the farmer can invite drivers")
		}
		if err := guard(TransitionAssignDriver, order.Status); err != nil {
			return err
		}
		if order.DriverID != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "a driver has already accepted this order")
		}
		count, err := repo.CountDrivers(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check drivers")
		}
		if count != int64(len(ids)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "every invitee must be an existing driver")
		}

		from = order.Status
		round := order.InvitationRound + 1
		ok, err := repo.Transition(ctx, transitionParams{
			orderID:         order.ID,
			from:            SourceStatuses(TransitionAssignDriver),
			to:              TargetStatus(TransitionAssignDriver),
			requireNoDriver: true,
			updates:         map[string]any{"invitation_round": round},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open invitation round")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed while inviting drivers")
		}
		if err := repo.VoidOpenInvitations(ctx, order.ID, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void previous invitations")
		}
		invs = make([]models.DriverInvitation, len(ids))
		for i, id := range ids {
			invs[i] = models.DriverInvitation{
				OrderID:  order.ID,
				Round:    round,
				DriverID: id,
				Status:   enums.InvitationStatusInvited,
			}
		}
		if err := repo.CreateInvitations(ctx, invs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invitations")
		}
		order.Status = TargetStatus(TransitionAssignDriver)
		order.InvitationRound = round
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDriversInvited,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.Ref(),
			Data: payloads.OrderDriversInvitedEvent{
				OrderID:   order.ID,
				Round:     round,
				DriverIDs: ids,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(string(from), string(order.Status))
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "drivers invited")
	return detail(order, invs), nil
}

// DriverAccept lets one invited driver claim the order. Concurrent accepts
// race on a single conditional update; exactly one wins.
func (s *service) DriverAccept(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	if !actor.Is(enums.RoleDriver) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only drivers can accept deliveries")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.ClaimDriver(ctx, orderID, actor.ID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
		}
		if !ok {
			return s.explainLostClaim(ctx, repo, orderID, actor.ID)
		}
		order, err = s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if _, err := repo.SetInvitationStatus(ctx, orderID, actor.ID, order.InvitationRound, enums.InvitationStatusInvited, enums.InvitationStatusAccepted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept invitation")
		}
		if err := repo.VoidOpenInvitations(ctx, orderID, &actor.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void other invitations")
		}
		return s.emitTransition(ctx, tx, order, enums.OrderStatusAwaitingDriverAccept, enums.EventOrderDriverAssigned, actor, payloads.OrderTransitionEvent{})
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			s.metrics.IncDriverRace(metrics.RaceLost)
		}
		return nil, err
	}
	s.metrics.IncDriverRace(metrics.RaceWon)
	s.metrics.IncTransition(string(enums.OrderStatusAwaitingDriverAccept), string(order.Status))

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(logCtx, "driver assigned")
	s.dispatchOTP(logCtx, order)
	return FromModel(order), nil
}

// explainLostClaim classifies a claim that matched no row.
func (s *service) explainLostClaim(ctx context.Context, repo Repository, orderID, driverID uuid.UUID) error {
	order, err := s.load(ctx, repo, orderID)
	if err != nil {
		return err
	}
	if order.DriverID != nil && *order.DriverID != driverID {
		return pkgerrors.New(pkgerrors.CodeConflict, "another driver already accepted this order")
	}
	if order.Status != enums.OrderStatusAwaitingDriverAccept {
		return stateConflict(TransitionDriverAccept, order.Status)
	}
	inv, err := repo.FindInvitation(ctx, orderID, driverID, order.InvitationRound)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "driver was not invited to this order")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invitation")
	}
	if inv.Status != enums.InvitationStatusInvited {
		return pkgerrors.New(pkgerrors.CodeForbidden, "invitation is no longer open").
			WithDetails(map[string]any{"invitation_status": inv.Status})
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "order changed while accepting")
}

// DriverDecline closes the caller's invitation. The order stays open for
// the remaining invitees even when none are left.
func (s *service) DriverDecline(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*OrderDetail, error) {
	if !actor.Is(enums.RoleDriver) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only drivers can decline deliveries")
	}

	var (
		order *models.Order
		invs  []models.DriverInvitation
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := guard(TransitionDriverDecline, order.Status); err != nil {
			return err
		}
		ok, err := repo.SetInvitationStatus(ctx, orderID, actor.ID, order.InvitationRound, enums.InvitationStatusInvited, enums.InvitationStatusDeclined)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decline invitation")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeForbidden, "driver holds no open invitation for this order")
		}
		invs, err = repo.ListInvitations(ctx, orderID, order.InvitationRound)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invitations")
		}
		driverID := actor.ID
		return s.emitTransition(ctx, tx, order, order.Status, enums.EventOrderDriverDeclined, actor, payloads.OrderTransitionEvent{DriverID: &driverID})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "driver declined")
	return detail(order, invs), nil
}

// dispatchOTP asks the verification service to text the buyer. Failures are
// logged; the assignment has already committed.
func (s *service) dispatchOTP(ctx context.Context, order *models.Order) {
	buyer, err := s.repo.FindUser(ctx, order.BuyerID)
	if err != nil {
		s.logg.Warn(ctx, "otp dispatch skipped: buyer lookup failed: "+err.Error())
		return
	}
	if err := s.verifier.RequestCode(ctx, buyer.Phone); err != nil {
		s.logg.Warn(ctx, "otp dispatch failed: "+err.Error())
		return
	}
	at := s.now()
	if err := s.repo.Update(ctx, order.ID, map[string]any{"otp_requested_at": at}); err != nil {
		s.logg.Warn(ctx, "record otp request time failed: "+err.Error())
		return
	}
	order.OTPRequestedAt = &at
}

func distinctIDs(ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one driver is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id is required")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func detail(order *models.Order, invs []models.DriverInvitation) *OrderDetail {
	out := &OrderDetail{OrderDTO: *FromModel(order)}
	for _, inv := range invs {
		out.Invitations = append(out.Invitations, InvitationDTO{
			DriverID: inv.DriverID,
			Round:    inv.Round,
			Status:   inv.Status,
		})
	}
	return out
}
