package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/internal/ledger"
	"github.com/agriconnect/agriconnect-backend/internal/listings"
	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/config"
	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/db/dbtest"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
)

const validCode = "424242"

type stubVerifier struct {
	mu         sync.Mutex
	requested  []string
	requestErr error
	checkErr   error
}

func (v *stubVerifier) RequestCode(_ context.Context, phone string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.requestErr != nil {
		return v.requestErr
	}
	v.requested = append(v.requested, phone)
	return nil
}

func (v *stubVerifier) CheckCode(_ context.Context, _ string, code string) (bool, error) {
	if v.checkErr != nil {
		return false, v.checkErr
	}
	return code == validCode, nil
}

func (v *stubVerifier) requests() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.requested)
}

type memoryCooldowns struct {
	mu   sync.Mutex
	held map[string]bool
}

func (c *memoryCooldowns) Cooldown(_ context.Context, scope, id string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held == nil {
		c.held = map[string]bool{}
	}
	key := scope + ":" + id
	if c.held[key] {
		return false, nil
	}
	c.held[key] = true
	return true, nil
}

func (c *memoryCooldowns) ReleaseCooldown(_ context.Context, scope, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, scope+":"+id)
	return nil
}

type harness struct {
	t        *testing.T
	svc      Service
	client   *db.Client
	ledger   ledger.Service
	verifier *stubVerifier
	outbox   *outbox.Repository
	farmer   *models.User
	buyer    *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Open(t)
	outboxRepo := outbox.NewRepository(client.DB())
	emitter := outbox.NewService(outboxRepo, logger.Nop())

	inventory, err := listings.NewService(listings.NewRepository(client.DB()), client, emitter)
	require.NoError(t, err)
	wallet, err := ledger.NewService(ledger.NewRepository(client.DB()), client, emitter)
	require.NoError(t, err)

	verifier := &stubVerifier{}
	svc, err := NewService(ServiceParams{
		Repo:       NewRepository(client.DB()),
		Tx:         client,
		Outbox:     emitter,
		Inventory:  inventory,
		Wallet:     wallet,
		Verifier:   verifier,
		Cooldowns:  &memoryCooldowns{},
		Logger:     logger.Nop(),
		Orders:     config.OrdersConfig{PaymentWindow: time.Hour, OTPResendCooldown: 30 * time.Second},
		Settlement: config.SettlementConfig{ReconcileListing: true},
	})
	require.NoError(t, err)

	return &harness{
		t:        t,
		svc:      svc,
		client:   client,
		ledger:   wallet,
		verifier: verifier,
		outbox:   outboxRepo,
		farmer:   dbtest.CreateUser(t, client, enums.RoleFarmer),
		buyer:    dbtest.CreateUser(t, client, enums.RoleBuyer),
	}
}

func actorOf(u *models.User) auth.Actor {
	return auth.Actor{ID: u.ID, Role: u.Role}
}

// acceptedOffer stores a listing whose stock already reflects an accepted
// offer of qty units, and that offer.
func (h *harness) acceptedOffer(qty int, priceCents, feeCents int64) (*models.Listing, *models.Offer) {
	h.t.Helper()
	listing := dbtest.CreateListing(h.t, h.client, h.farmer.ID, 100, priceCents)
	require.NoError(h.t, h.client.DB().Model(listing).Update("quantity", 100-qty).Error)
	offer := &models.Offer{
		ListingID:          listing.ID,
		BuyerID:            h.buyer.ID,
		FarmerID:           h.farmer.ID,
		Quantity:           qty,
		OfferedPriceCents:  priceCents,
		DeliveryFeeCents:   feeCents,
		AcceptedPriceCents: &priceCents,
		Status:             enums.OfferStatusAccepted,
		LastActionBy:       enums.RoleFarmer,
	}
	require.NoError(h.t, h.client.DB().Create(offer).Error)
	return listing, offer
}

func (h *harness) newOrder(qty int, priceCents, feeCents int64) (*models.Listing, *OrderDTO) {
	h.t.Helper()
	listing, offer := h.acceptedOffer(qty, priceCents, feeCents)
	order, err := h.svc.CreateFromOffer(context.Background(), actorOf(h.buyer), offer.ID)
	require.NoError(h.t, err)
	return listing, order
}

func (h *harness) pay(orderID uuid.UUID) {
	h.t.Helper()
	require.NoError(h.t, h.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := h.svc.Pay(context.Background(), tx, actorOf(h.buyer), PaymentInput{
			OrderID:   orderID,
			Method:    enums.PaymentMethodRazorpay,
			Reference: "pay_" + orderID.String()[:8],
		})
		return err
	}))
}

func (h *harness) drivers(n int) []*models.User {
	out := make([]*models.User, n)
	for i := range out {
		out[i] = dbtest.CreateUser(h.t, h.client, enums.RoleDriver)
	}
	return out
}

func ids(users []*models.User) []uuid.UUID {
	out := make([]uuid.UUID, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

// assigned returns a paid order already accepted by a driver.
func (h *harness) assigned(feeCents int64) (*models.Listing, *OrderDTO, *models.User) {
	h.t.Helper()
	listing, order := h.newOrder(10, 500, feeCents)
	h.pay(order.ID)
	driver := h.drivers(1)[0]
	_, err := h.svc.AssignDriver(context.Background(), actorOf(h.farmer), order.ID, []uuid.UUID{driver.ID})
	require.NoError(h.t, err)
	_, err = h.svc.DriverAccept(context.Background(), actorOf(driver), order.ID)
	require.NoError(h.t, err)
	return listing, order, driver
}

func (h *harness) reload(id uuid.UUID) *models.Order {
	return dbtest.Reload[models.Order](h.t, h.client, id)
}

var errGateway = errors.New("gateway unavailable")
