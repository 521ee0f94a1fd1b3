package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/api/middleware"
	internalorders "github.com/angelmondragon/harvestlink-backend/internal/orders"
	"github.com/angelmondragon/harvestlink-backend/pkg/auth"
	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
)

type stubOrdersService struct {
	create   func(ctx context.Context, buyer auth.Buyer, input internalorders.CreateOrdersInput) ([]models.Order, error)
	verify   func(ctx context.Context, buyer auth.Buyer, orderID uuid.UUID, code string) (*models.Order, error)
	status   func(ctx context.Context, farmer auth.Farmer, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	cancel   func(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason string) (*models.Order, error)
	get      func(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	listMine func(ctx context.Context, actor auth.Actor, params internalorders.ListParams) ([]models.Order, string, error)
}

func (s *stubOrdersService) CreateOrders(ctx context.Context, buyer auth.Buyer, input internalorders.CreateOrdersInput) ([]models.Order, error) {
	return s.create(ctx, buyer, input)
}

func (s *stubOrdersService) VerifyOTP(ctx context.Context, buyer auth.Buyer, orderID uuid.UUID, code string) (*models.Order, error) {
	return s.verify(ctx, buyer, orderID, code)
}

func (s *stubOrdersService) UpdateStatus(ctx context.Context, farmer auth.Farmer, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	return s.status(ctx, farmer, orderID, status)
}

func (s *stubOrdersService) Cancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason string) (*models.Order, error) {
	return s.cancel(ctx, actor, orderID, reason)
}

func (s *stubOrdersService) Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	return s.get(ctx, actor, orderID)
}

func (s *stubOrdersService) ListMine(ctx context.Context, actor auth.Actor, params internalorders.ListParams) ([]models.Order, string, error) {
	return s.listMine(ctx, actor, params)
}

func (s *stubOrdersService) ExpirePending(ctx context.Context, orderID uuid.UUID) (bool, error) {
	panic("not implemented")
}

func withOrderID(req *http.Request, orderID uuid.UUID) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func withActor(req *http.Request, actor auth.Actor) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

func TestCreateSplitsItemsAndReturnsCreated(t *testing.T) {
	buyer := auth.Buyer{ID: uuid.New()}
	productA, productB := uuid.New(), uuid.New()
	svc := &stubOrdersService{
		create: func(ctx context.Context, got auth.Buyer, input internalorders.CreateOrdersInput) ([]models.Order, error) {
			if got.ID != buyer.ID {
				t.Fatalf("unexpected buyer %s", got.ID)
			}
			if input.PaymentMethod != enums.PaymentMethodCash {
				t.Fatalf("unexpected payment method %s", input.PaymentMethod)
			}
			if len(input.Items) != 2 || input.Items[0].ProductID != productA || input.Items[1].Quantity != 3 {
				t.Fatalf("unexpected items %+v", input.Items)
			}
			return []models.Order{
				{ID: uuid.New(), BuyerID: buyer.ID, FarmerID: uuid.New(), Status: enums.OrderStatusPending},
				{ID: uuid.New(), BuyerID: buyer.ID, FarmerID: uuid.New(), Status: enums.OrderStatusPending},
			}, nil
		},
	}

	body := `{"items":[{"productId":"` + productA.String() + `","quantity":2},{"productId":"` + productB.String() + `","quantity":3}],"paymentMethod":"cash"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = withActor(req, buyer)
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Orders []internalorders.OrderView `json:"orders"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Orders) != 2 {
		t.Fatalf("expected 2 orders got %d", len(envelope.Data.Orders))
	}
}

func TestCreateRejectsFarmer(t *testing.T) {
	svc := &stubOrdersService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	req = withActor(req, auth.Farmer{ID: uuid.New()})
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestCreateRejectsEmptyItems(t *testing.T) {
	svc := &stubOrdersService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"items":[],"paymentMethod":"online"}`))
	req = withActor(req, auth.Buyer{ID: uuid.New()})
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateRejectsUnknownPaymentMethod(t *testing.T) {
	svc := &stubOrdersService{}
	body := `{"items":[{"productId":"` + uuid.NewString() + `","quantity":1}],"paymentMethod":"barter"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = withActor(req, auth.Buyer{ID: uuid.New()})
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestVerifyOTPPassesCode(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{
		verify: func(ctx context.Context, buyer auth.Buyer, gotID uuid.UUID, code string) (*models.Order, error) {
			if gotID != orderID || code != "4821" {
				t.Fatalf("unexpected verify args %s %q", gotID, code)
			}
			return &models.Order{ID: orderID, Status: enums.OrderStatusProcessing}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/verify-otp", strings.NewReader(`{"otp":"4821"}`))
	req = withActor(withOrderID(req, orderID), auth.Buyer{ID: uuid.New()})
	resp := httptest.NewRecorder()
	VerifyOTP(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestVerifyOTPRejectsMalformedCode(t *testing.T) {
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/verify-otp", strings.NewReader(`{"otp":"12ab"}`))
	req = withActor(withOrderID(req, orderID), auth.Buyer{ID: uuid.New()})
	resp := httptest.NewRecorder()
	VerifyOTP(&stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestUpdateStatusMapsStateConflict(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{
		status: func(ctx context.Context, farmer auth.Farmer, gotID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
			if status != enums.OrderStatusDelivered {
				t.Fatalf("unexpected status %s", status)
			}
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot move from pending to delivered")
		},
	}
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/"+orderID.String()+"/status", strings.NewReader(`{"status":"delivered"}`))
	req = withActor(withOrderID(req, orderID), auth.Farmer{ID: uuid.New()})
	resp := httptest.NewRecorder()
	UpdateStatus(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "pending to delivered") {
		t.Fatalf("expected state conflict message, got %s", resp.Body.String())
	}
}

func TestUpdateStatusRejectsBuyer(t *testing.T) {
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/"+orderID.String()+"/status", strings.NewReader(`{"status":"shipped"}`))
	req = withActor(withOrderID(req, orderID), auth.Buyer{ID: uuid.New()})
	resp := httptest.NewRecorder()
	UpdateStatus(&stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestCancelRequiresReason(t *testing.T) {
	orderID := uuid.New()
	farmer := auth.Farmer{ID: uuid.New()}
	svc := &stubOrdersService{
		cancel: func(ctx context.Context, actor auth.Actor, gotID uuid.UUID, reason string) (*models.Order, error) {
			t.Errorf("service called with reason %q", reason)
			return nil, nil
		},
	}

	for name, body := range map[string]string{"no body": "", "empty object": `{}`, "blank reason": `{"reason":""}`} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/"+orderID.String()+"/cancel", strings.NewReader(body))
			req = withActor(withOrderID(req, orderID), farmer)
			resp := httptest.NewRecorder()
			Cancel(svc, nil).ServeHTTP(resp, req)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
			}
		})
	}
}

func TestCancelPassesReason(t *testing.T) {
	orderID := uuid.New()
	farmer := auth.Farmer{ID: uuid.New()}
	svc := &stubOrdersService{
		cancel: func(ctx context.Context, actor auth.Actor, gotID uuid.UUID, reason string) (*models.Order, error) {
			if actor.ActorID() != farmer.ID || actor.Role() != enums.ActorRoleFarmer {
				t.Fatalf("unexpected actor %v", actor)
			}
			if reason != "out of stock" {
				t.Fatalf("unexpected reason %q", reason)
			}
			return &models.Order{ID: gotID, Status: enums.OrderStatusCancelled}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/"+orderID.String()+"/cancel", strings.NewReader(`{"reason":"  out of stock "}`))
	req = withActor(withOrderID(req, orderID), farmer)
	resp := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestListParsesFilters(t *testing.T) {
	buyer := auth.Buyer{ID: uuid.New()}
	svc := &stubOrdersService{
		listMine: func(ctx context.Context, actor auth.Actor, params internalorders.ListParams) ([]models.Order, string, error) {
			if actor.ActorID() != buyer.ID {
				t.Fatalf("unexpected actor")
			}
			if params.Limit != 5 || params.Cursor != "abc" {
				t.Fatalf("unexpected params %+v", params)
			}
			if params.Status == nil || *params.Status != enums.OrderStatusShipped {
				t.Fatalf("status filter not parsed")
			}
			return []models.Order{{ID: uuid.New(), Status: enums.OrderStatusShipped}}, "next-page", nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/my-orders?limit=5&cursor=abc&status=shipped", nil)
	req = withActor(req, buyer)
	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data internalorders.OrderList `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Orders) != 1 || envelope.Data.NextCursor != "next-page" {
		t.Fatalf("unexpected list response %+v", envelope.Data)
	}
}

func TestListRejectsLimitOutOfRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/my-orders?limit=500", nil)
	req = withActor(req, auth.Buyer{ID: uuid.New()})
	resp := httptest.NewRecorder()
	List(&stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestDetailRequiresActor(t *testing.T) {
	orderID := uuid.New()
	req := withOrderID(httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil), orderID)
	resp := httptest.NewRecorder()
	Detail(&stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestDetailNotFound(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{
		get: func(ctx context.Context, actor auth.Actor, gotID uuid.UUID) (*models.Order, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = withActor(withOrderID(req, orderID), auth.Buyer{ID: uuid.New()})
	resp := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
