package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/internal/offers"
	"github.com/agriconnect/agriconnect-backend/internal/orders"
	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
)

type stubOffers struct {
	offers.Service
	created  offers.CreateOfferInput
	counter  offers.CounterInput
	listed   offers.ListParams
	acceptFn func(actor auth.Actor, id uuid.UUID) (*offers.AcceptResult, error)
}

func (s *stubOffers) CreateOffer(_ context.Context, actor auth.Actor, input offers.CreateOfferInput) (*offers.OfferDTO, error) {
	s.created = input
	return &offers.OfferDTO{ID: uuid.New(), BuyerID: actor.ID, ListingID: input.ListingID, Quantity: input.Quantity}, nil
}

func (s *stubOffers) Counter(_ context.Context, _ auth.Actor, id uuid.UUID, input offers.CounterInput) (*offers.OfferDTO, error) {
	s.counter = input
	return &offers.OfferDTO{ID: id, Status: enums.OfferStatusCountered}, nil
}

func (s *stubOffers) Accept(_ context.Context, actor auth.Actor, id uuid.UUID) (*offers.AcceptResult, error) {
	return s.acceptFn(actor, id)
}

func (s *stubOffers) ListForBuyer(_ context.Context, _ auth.Actor, params offers.ListParams) (*offers.OfferList, error) {
	s.listed = params
	return &offers.OfferList{}, nil
}

func TestOfferCreateParsesRupeeAmounts(t *testing.T) {
	svc := &stubOffers{}
	buyer := newActor(enums.RoleBuyer)
	listingID := uuid.New()
	body := `{"listing_id":"` + listingID.String() + `","quantity":20,"price":"25.50","delivery_fee":"45.48"}`

	resp := httptest.NewRecorder()
	OfferCreate(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/offers", strings.NewReader(body), &buyer, nil))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.created.PriceCents != 2550 || svc.created.DeliveryFeeCents != 4548 {
		t.Fatalf("unexpected amounts %+v", svc.created)
	}
	if svc.created.ListingID != listingID || svc.created.Quantity != 20 {
		t.Fatalf("unexpected input %+v", svc.created)
	}
}

func TestOfferCreateRejectsBadAmount(t *testing.T) {
	buyer := newActor(enums.RoleBuyer)
	body := `{"listing_id":"` + uuid.NewString() + `","quantity":20,"price":"lots"}`

	resp := httptest.NewRecorder()
	OfferCreate(&stubOffers{}, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/offers", strings.NewReader(body), &buyer, nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation code got %s", code)
	}
}

func TestOfferCreateRequiresActor(t *testing.T) {
	resp := httptest.NewRecorder()
	OfferCreate(&stubOffers{}, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/offers", strings.NewReader(`{}`), nil, nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestOfferCounterPassesNotes(t *testing.T) {
	svc := &stubOffers{}
	farmer := newActor(enums.RoleFarmer)
	offerID := uuid.New()

	resp := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"price":"7","notes":"firm"}`), &farmer, map[string]string{"offerId": offerID.String()})
	OfferCounter(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.counter.PriceCents != 700 || svc.counter.Notes == nil || *svc.counter.Notes != "firm" {
		t.Fatalf("unexpected counter input %+v", svc.counter)
	}
}

func TestOfferAcceptMapsConflict(t *testing.T) {
	svc := &stubOffers{acceptFn: func(auth.Actor, uuid.UUID) (*offers.AcceptResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock")
	}}
	farmer := newActor(enums.RoleFarmer)

	resp := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", nil, &farmer, map[string]string{"offerId": uuid.NewString()})
	OfferAccept(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock got %s", code)
	}
}

func TestOfferAcceptReturnsOrder(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOffers{acceptFn: func(_ auth.Actor, id uuid.UUID) (*offers.AcceptResult, error) {
		return &offers.AcceptResult{
			Offer: &offers.OfferDTO{ID: id, Status: enums.OfferStatusAccepted},
			Order: &orders.OrderDTO{ID: orderID, Status: enums.OrderStatusPendingPayment},
		}, nil
	}}
	farmer := newActor(enums.RoleFarmer)

	resp := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", nil, &farmer, map[string]string{"offerId": uuid.NewString()})
	OfferAccept(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	var result offers.AcceptResult
	decodeData(t, resp, &result)
	if result.Order == nil || result.Order.ID != orderID {
		t.Fatalf("expected order %s in response", orderID)
	}
}

func TestOfferListParsesStatusFilter(t *testing.T) {
	svc := &stubOffers{}
	buyer := newActor(enums.RoleBuyer)

	resp := httptest.NewRecorder()
	OfferListMine(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/offers/mine?status=pending,accepted&limit=5", nil, &buyer, nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.listed.Limit != 5 || len(svc.listed.Statuses) != 2 || svc.listed.Statuses[1] != enums.OfferStatusAccepted {
		t.Fatalf("unexpected params %+v", svc.listed)
	}

	bad := httptest.NewRecorder()
	OfferListMine(svc, nil).ServeHTTP(bad, newRequest(http.MethodGet, "/api/v1/offers/mine?status=bogus", nil, &buyer, nil))
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", bad.Code)
	}
}
