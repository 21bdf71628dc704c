package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/internal/orders"
	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
)

type stubOrders struct {
	orders.Service
	assigned   []uuid.UUID
	otp        string
	cancel     orders.CancelInput
	listedBy   enums.Role
	listParams orders.ListParams
	verifyErr  error
}

func (s *stubOrders) AssignDriver(_ context.Context, _ auth.Actor, id uuid.UUID, driverIDs []uuid.UUID) (*orders.OrderDetail, error) {
	s.assigned = driverIDs
	return &orders.OrderDetail{OrderDTO: orders.OrderDTO{ID: id, Status: enums.OrderStatusAwaitingDriverAccept}}, nil
}

func (s *stubOrders) VerifyOTP(_ context.Context, _ auth.Actor, id uuid.UUID, code string) (*orders.OrderDTO, error) {
	s.otp = code
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return &orders.OrderDTO{ID: id, Status: enums.OrderStatusOTPVerified}, nil
}

func (s *stubOrders) Cancel(_ context.Context, _ auth.Actor, id uuid.UUID, input orders.CancelInput) (*orders.OrderDTO, error) {
	s.cancel = input
	return &orders.OrderDTO{ID: id, Status: enums.OrderStatusCancelled}, nil
}

func (s *stubOrders) ListForBuyer(_ context.Context, _ auth.Actor, params orders.ListParams) (*orders.OrderList, error) {
	s.listedBy = enums.RoleBuyer
	s.listParams = params
	return &orders.OrderList{}, nil
}

func (s *stubOrders) ListForFarmer(_ context.Context, _ auth.Actor, params orders.ListParams) (*orders.OrderList, error) {
	s.listedBy = enums.RoleFarmer
	s.listParams = params
	return &orders.OrderList{}, nil
}

func (s *stubOrders) ResendOTP(context.Context, auth.Actor, uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeRateLimit, "otp recently sent")
}

func TestOrderAssignDriversParsesIDs(t *testing.T) {
	svc := &stubOrders{}
	farmer := newActor(enums.RoleFarmer)
	d1, d2 := uuid.New(), uuid.New()
	body := `{"driver_ids":["` + d1.String() + `","` + d2.String() + `"]}`

	resp := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", strings.NewReader(body), &farmer, map[string]string{"orderId": uuid.NewString()})
	OrderAssignDrivers(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.assigned) != 2 || svc.assigned[0] != d1 || svc.assigned[1] != d2 {
		t.Fatalf("unexpected driver ids %v", svc.assigned)
	}
}

func TestOrderAssignDriversRejectsEmptyList(t *testing.T) {
	farmer := newActor(enums.RoleFarmer)
	resp := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"driver_ids":[]}`), &farmer, map[string]string{"orderId": uuid.NewString()})
	OrderAssignDrivers(&stubOrders{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrderVerifyOTPMapsInvalidCredential(t *testing.T) {
	svc := &stubOrders{verifyErr: pkgerrors.New(pkgerrors.CodeInvalidCredential, "otp mismatch")}
	driver := newActor(enums.RoleDriver)

	resp := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"code":"123456"}`), &driver, map[string]string{"orderId": uuid.NewString()})
	OrderVerifyOTP(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.otp != "123456" {
		t.Fatalf("expected code forwarded, got %q", svc.otp)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeInvalidCredential) {
		t.Fatalf("expected invalid credential got %s", code)
	}
}

func TestOrderCancelAcceptsEmptyBody(t *testing.T) {
	svc := &stubOrders{}
	buyer := newActor(enums.RoleBuyer)

	resp := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", http.NoBody, &buyer, map[string]string{"orderId": uuid.NewString()})
	OrderCancel(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.cancel.Reason != "" {
		t.Fatalf("expected empty reason got %q", svc.cancel.Reason)
	}
}

func TestOrderRejectsMalformedID(t *testing.T) {
	buyer := newActor(enums.RoleBuyer)
	resp := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", http.NoBody, &buyer, map[string]string{"orderId": "nope"})
	OrderCancel(&stubOrders{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrderListMineDispatchesByRole(t *testing.T) {
	svc := &stubOrders{}
	farmer := newActor(enums.RoleFarmer)

	resp := httptest.NewRecorder()
	OrderListMine(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/orders/mine?scope=ongoing", nil, &farmer, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.listedBy != enums.RoleFarmer || svc.listParams.Scope != orders.ScopeOngoing {
		t.Fatalf("unexpected dispatch role=%s scope=%s", svc.listedBy, svc.listParams.Scope)
	}

	driver := newActor(enums.RoleDriver)
	forbidden := httptest.NewRecorder()
	OrderListMine(svc, nil).ServeHTTP(forbidden, newRequest(http.MethodGet, "/api/v1/orders/mine", nil, &driver, nil))
	if forbidden.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for driver got %d", forbidden.Code)
	}
}

func TestOrderResendOTPThrottled(t *testing.T) {
	driver := newActor(enums.RoleDriver)
	resp := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", nil, &driver, map[string]string{"orderId": uuid.NewString()})
	OrderResendOTP(&stubOrders{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
}

func TestOrderHandlersRequireService(t *testing.T) {
	buyer := newActor(enums.RoleBuyer)
	resp := httptest.NewRecorder()
	req := newRequest(http.MethodGet, "/", nil, &buyer, map[string]string{"orderId": uuid.NewString()})
	OrderDetail(nil, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
