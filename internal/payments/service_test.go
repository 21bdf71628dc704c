package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/agriconnect/agriconnect-backend/internal/ledger"
	"github.com/agriconnect/agriconnect-backend/internal/listings"
	"github.com/agriconnect/agriconnect-backend/internal/orders"
	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/config"
	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/db/dbtest"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
	"github.com/agriconnect/agriconnect-backend/pkg/razorpay"
)

const testSecret = "rzp_test_secret"

type stubGateway struct {
	created   []razorpay.CreateOrderParams
	createErr error
	nextID    int
}

func (g *stubGateway) CreateOrder(_ context.Context, params razorpay.CreateOrderParams) (*razorpay.Order, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, params)
	g.nextID++
	return &razorpay.Order{
		ID:       fmt.Sprintf("order_gw%d", g.nextID),
		Amount:   params.AmountPaise,
		Currency: "INR",
		Receipt:  params.Receipt,
		Status:   "created",
	}, nil
}

func (g *stubGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return razorpay.VerifySignature(testSecret, gatewayOrderID, gatewayPaymentID, signature)
}

func (g *stubGateway) KeyID() string { return "rzp_test_key" }

func (g *stubGateway) Currency() string { return "INR" }

type noopVerifier struct{}

func (noopVerifier) RequestCode(context.Context, string) error { return nil }

func (noopVerifier) CheckCode(context.Context, string, string) (bool, error) { return true, nil }

type allowCooldowns struct{}

func (allowCooldowns) Cooldown(context.Context, string, string, time.Duration) (bool, error) {
	return true, nil
}

func (allowCooldowns) ReleaseCooldown(context.Context, string, string) error { return nil }

type harness struct {
	t       *testing.T
	svc     Service
	client  *db.Client
	gateway *stubGateway
	orders  orders.Service
	farmer  *models.User
	buyer   auth.Actor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Open(t)
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop())
	inventory, err := listings.NewService(listings.NewRepository(client.DB()), client, emitter)
	require.NoError(t, err)
	wallet, err := ledger.NewService(ledger.NewRepository(client.DB()), client, emitter)
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(client.DB()),
		Tx:        client,
		Outbox:    emitter,
		Inventory: inventory,
		Wallet:    wallet,
		Verifier:  noopVerifier{},
		Cooldowns: allowCooldowns{},
		Orders:    config.OrdersConfig{PaymentWindow: time.Hour},
	})
	require.NoError(t, err)

	gateway := &stubGateway{}
	svc, err := NewService(NewRepository(client.DB()), client, gateway, orderSvc, logger.Nop())
	require.NoError(t, err)

	buyer := dbtest.CreateUser(t, client, enums.RoleBuyer)
	return &harness{
		t:       t,
		svc:     svc,
		client:  client,
		gateway: gateway,
		orders:  orderSvc,
		farmer:  dbtest.CreateUser(t, client, enums.RoleFarmer),
		buyer:   auth.Actor{ID: buyer.ID, Role: enums.RoleBuyer},
	}
}

// order creates a pending order of 10 units at 5.00 with a 20.00 fee.
func (h *harness) order() *orders.OrderDTO {
	h.t.Helper()
	listing := dbtest.CreateListing(h.t, h.client, h.farmer.ID, 100, 500)
	price := int64(500)
	offer := &models.Offer{
		ListingID:          listing.ID,
		BuyerID:            h.buyer.ID,
		FarmerID:           h.farmer.ID,
		Quantity:           10,
		OfferedPriceCents:  price,
		DeliveryFeeCents:   2000,
		AcceptedPriceCents: &price,
		Status:             enums.OfferStatusAccepted,
		LastActionBy:       enums.RoleFarmer,
	}
	require.NoError(h.t, h.client.DB().Create(offer).Error)
	order, err := h.orders.CreateFromOffer(context.Background(), h.buyer, offer.ID)
	require.NoError(h.t, err)
	return order
}

func TestIntentChargesGoodsPlusFee(t *testing.T) {
	h := newHarness(t)
	order := h.order()

	intent, err := h.svc.CreatePaymentIntent(context.Background(), h.buyer, order.ID)
	require.NoError(t, err)
	require.EqualValues(t, 7000, intent.AmountCents)
	require.Equal(t, "70.00", intent.Amount)
	require.Equal(t, "INR", intent.Currency)
	require.Equal(t, "rzp_test_key", intent.KeyID)
	require.Equal(t, razorpay.ReceiptFor(order.ID), intent.Receipt)
	require.Len(t, h.gateway.created, 1)

	stored := dbtest.Reload[models.Order](t, h.client, order.ID)
	require.NotNil(t, stored.GatewayOrderID)
	require.Equal(t, intent.GatewayOrderID, *stored.GatewayOrderID)
}

func TestIntentRequiresBuyerAndPendingOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order()

	_, err := h.svc.CreatePaymentIntent(ctx, auth.Actor{ID: h.farmer.ID, Role: enums.RoleFarmer}, order.ID)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	other := dbtest.CreateUser(t, h.client, enums.RoleBuyer)
	_, err = h.svc.CreatePaymentIntent(ctx, auth.Actor{ID: other.ID, Role: enums.RoleBuyer}, order.ID)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = h.svc.CreatePaymentIntent(ctx, h.buyer, uuid.New())
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	h.gateway.createErr = pkgerrors.New(pkgerrors.CodeDependency, "gateway down")
	_, err = h.svc.CreatePaymentIntent(ctx, h.buyer, order.ID)
	require.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestVerifyPaymentMarksOrderPaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order()
	intent, err := h.svc.CreatePaymentIntent(ctx, h.buyer, order.ID)
	require.NoError(t, err)

	out, err := h.svc.VerifyPayment(ctx, h.buyer, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        razorpay.Sign(testSecret, intent.GatewayOrderID, "pay_123"),
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, out.Order.Status)
	require.EqualValues(t, 7000, out.Transaction.AmountCents)
	require.Equal(t, enums.PaymentTransactionSuccess, out.Transaction.Status)

	stored := dbtest.Reload[models.Order](t, h.client, order.ID)
	require.EqualValues(t, 7000, stored.AmountPaidCents)
	require.NotNil(t, stored.PaymentReference)
	require.Equal(t, "pay_123", *stored.PaymentReference)

	_, err = h.svc.VerifyPayment(ctx, h.buyer, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        razorpay.Sign(testSecret, intent.GatewayOrderID, "pay_123"),
	})
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestVerifyPaymentRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order()
	intent, err := h.svc.CreatePaymentIntent(ctx, h.buyer, order.ID)
	require.NoError(t, err)

	_, err = h.svc.VerifyPayment(ctx, h.buyer, VerifyInput{
		OrderID:          order.ID,
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        razorpay.Sign("wrong", intent.GatewayOrderID, "pay_123"),
	})
	require.Equal(t, pkgerrors.CodeInvalidCredential, pkgerrors.CodeOf(err))
	require.Equal(t, enums.OrderStatusPendingPayment, dbtest.Reload[models.Order](t, h.client, order.ID).Status)

	var count int64
	require.NoError(t, h.client.DB().Model(&models.PaymentTransaction{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestVerifyPaymentRejectsForeignGatewayOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.order()
	second := h.order()
	_, err := h.svc.CreatePaymentIntent(ctx, h.buyer, first.ID)
	require.NoError(t, err)
	other, err := h.svc.CreatePaymentIntent(ctx, h.buyer, second.ID)
	require.NoError(t, err)

	_, err = h.svc.VerifyPayment(ctx, h.buyer, VerifyInput{
		OrderID:          first.ID,
		GatewayOrderID:   other.GatewayOrderID,
		GatewayPaymentID: "pay_999",
		Signature:        razorpay.Sign(testSecret, other.GatewayOrderID, "pay_999"),
	})
	require.Equal(t, pkgerrors.CodeInvalidCredential, pkgerrors.CodeOf(err))
	require.Equal(t, enums.OrderStatusPendingPayment, dbtest.Reload[models.Order](t, h.client, first.ID).Status)
}

func TestVerifyPaymentRequiresFields(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.VerifyPayment(context.Background(), h.buyer, VerifyInput{OrderID: uuid.New()})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
