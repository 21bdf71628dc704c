package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/internal/orders"
	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/money"
	"github.com/agriconnect/agriconnect-backend/pkg/razorpay"
)

// Gateway is the slice of the Razorpay client the payment flow needs.
type Gateway interface {
	CreateOrder(ctx context.Context, params razorpay.CreateOrderParams) (*razorpay.Order, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	KeyID() string
	Currency() string
}

// Payer runs the pay transition on the caller's transaction.
type Payer interface {
	Pay(ctx context.Context, tx *gorm.DB, actor auth.Actor, input orders.PaymentInput) (*models.Order, error)
}

// Service opens gateway checkouts and records verified payments.
type Service interface {
	CreatePaymentIntent(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*Intent, error)
	VerifyPayment(ctx context.Context, actor auth.Actor, input VerifyInput) (*Verification, error)
}

type service struct {
	repo    Repository
	tx      db.TxRunner
	gateway Gateway
	orders  Payer
	logg    *logger.Logger
}

func NewService(repo Repository, tx db.TxRunner, gateway Gateway, payer Payer, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if payer == nil {
		return nil, fmt.Errorf("order payer required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, gateway: gateway, orders: payer, logg: logg}, nil
}

// CreatePaymentIntent registers a gateway order for the full payable amount,
// goods plus delivery fee.
func (s *service) CreatePaymentIntent(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*Intent, error) {
	order, err := s.payableOrder(ctx, s.repo, actor, orderID)
	if err != nil {
		return nil, err
	}

	receipt := razorpay.ReceiptFor(order.ID)
	amount := order.PayableCents()
	gatewayOrder, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderParams{
		AmountPaise: amount,
		Receipt:     receipt,
		Notes:       map[string]string{"order_id": order.ID.String()},
	})
	if err != nil {
		return nil, err
	}

	bound, err := s.repo.BindGatewayOrder(ctx, order.ID, gatewayOrder.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind gateway order")
	}
	if !bound {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer awaiting payment")
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "payment intent created")
	return &Intent{
		OrderID:        order.ID,
		GatewayOrderID: gatewayOrder.ID,
		AmountCents:    amount,
		Amount:         money.Format(amount),
		Currency:       s.gateway.Currency(),
		KeyID:          s.gateway.KeyID(),
		Receipt:        receipt,
	}, nil
}

// VerifyPayment checks the checkout signature and, only when it matches,
// stores the audit row and marks the order paid in one transaction.
func (s *service) VerifyPayment(ctx context.Context, actor auth.Actor, input VerifyInput) (*Verification, error) {
	gatewayOrderID := strings.TrimSpace(input.GatewayOrderID)
	gatewayPaymentID := strings.TrimSpace(input.GatewayPaymentID)
	if gatewayOrderID == "" || gatewayPaymentID == "" || strings.TrimSpace(input.Signature) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id, payment id and signature are required")
	}
	if !s.gateway.VerifySignature(gatewayOrderID, gatewayPaymentID, input.Signature) {
		s.logg.Warn(s.logg.WithOrderID(ctx, input.OrderID.String()), "payment signature mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCredential, "payment signature is invalid")
	}

	var (
		txn   *models.PaymentTransaction
		order *models.Order
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.payableOrder(ctx, repo, actor, input.OrderID)
		if err != nil {
			return err
		}
		if current.GatewayOrderID == nil || *current.GatewayOrderID != gatewayOrderID {
			return pkgerrors.New(pkgerrors.CodeInvalidCredential, "payment does not belong to this order")
		}

		order, err = s.orders.Pay(ctx, tx, actor, orders.PaymentInput{
			OrderID:   current.ID,
			Method:    enums.PaymentMethodRazorpay,
			Reference: gatewayPaymentID,
		})
		if err != nil {
			return err
		}

		txn = &models.PaymentTransaction{
			OrderID:          order.ID,
			BuyerID:          order.BuyerID,
			GatewayOrderID:   gatewayOrderID,
			GatewayPaymentID: gatewayPaymentID,
			Signature:        input.Signature,
			AmountCents:      order.AmountPaidCents,
			Currency:         enums.CurrencyINR,
			Status:           enums.PaymentTransactionSuccess,
		}
		if err := repo.InsertTransaction(ctx, txn); err != nil {
			if db.IsUniqueViolation(err, "gateway_payment_id") || db.IsUniqueViolation(err, "order_id") {
				return pkgerrors.New(pkgerrors.CodeConflict, "payment already recorded")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "payment verified")
	return &Verification{Transaction: transactionFromModel(txn), Order: orders.FromModel(order)}, nil
}

func (s *service) payableOrder(ctx context.Context, repo Repository, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	if !actor.Is(enums.RoleBuyer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers can pay for orders")
	}
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can pay for this order")
	}
	if order.Status != enums.OrderStatusPendingPayment {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s, not awaiting payment", order.Status).
			WithDetails(map[string]any{"status": order.Status})
	}
	return order, nil
}
