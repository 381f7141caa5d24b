package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshmartsg/freshmart-backend/api/middleware"
	cartsvc "github.com/freshmartsg/freshmart-backend/internal/cart"
	checkoutsvc "github.com/freshmartsg/freshmart-backend/internal/checkout"
	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
	"github.com/freshmartsg/freshmart-backend/pkg/enums"
	pkgerrors "github.com/freshmartsg/freshmart-backend/pkg/errors"
)

type stubCheckoutService struct {
	result    *checkoutsvc.Result
	err       error
	lastInput checkoutsvc.Input
}

func (s *stubCheckoutService) Execute(ctx context.Context, actor cartsvc.Actor, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	s.lastInput = input
	return s.result, s.err
}

func checkoutBody() string {
	return `{
		"delivery_method": "standard",
		"delivery_fee": "1.00",
		"payment_method": "cash",
		"customer_name": "Tan Mei Ling",
		"customer_email": "meiling@example.sg",
		"shipping_phone": "9123 4567",
		"delivery_address": "Blk 88 Bedok North St 4"
	}`
}

func postCheckout(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	return req.WithContext(middleware.WithCartSessionID(req.Context(), uuid.NewString()))
}

func TestCheckoutPlaceSuccess(t *testing.T) {
	svc := &stubCheckoutService{result: &checkoutsvc.Result{
		Order: &models.Order{
			OrderNumber:   "ORD-1700000000000-123",
			Status:        enums.OrderStatusPending,
			Total:         decimal.RequireFromString("8.50"),
			PaymentMethod: enums.PaymentMethodCash,
		},
		Saved: true,
	}}
	handler := CheckoutPlace(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postCheckout(checkoutBody()))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Saved {
		t.Fatal("expected saved=true")
	}
	if envelope.Data.Order == nil || envelope.Data.Order.OrderNumber != "ORD-1700000000000-123" {
		t.Fatalf("unexpected order: %+v", envelope.Data.Order)
	}
	if svc.lastInput.DeliveryMethod != enums.DeliveryMethodStandard {
		t.Fatalf("unexpected delivery method: %s", svc.lastInput.DeliveryMethod)
	}
	if !svc.lastInput.DeliveryFee.Equal(decimal.RequireFromString("1.00")) {
		t.Fatalf("unexpected delivery fee: %s", svc.lastInput.DeliveryFee)
	}
}

func TestCheckoutPlaceDegradedResultKeepsWarning(t *testing.T) {
	svc := &stubCheckoutService{result: &checkoutsvc.Result{
		Saved:   false,
		Warning: "order placed but not saved, please contact support",
	}}
	handler := CheckoutPlace(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postCheckout(checkoutBody()))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Saved {
		t.Fatal("expected saved=false")
	}
	if envelope.Data.Warning == "" {
		t.Fatal("expected warning to survive serialization")
	}
}

func TestCheckoutPlaceEmptyCartRejected(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")}
	handler := CheckoutPlace(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postCheckout(checkoutBody()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "cart is empty") {
		t.Fatalf("expected message in payload: %s", resp.Body.String())
	}
}

func TestCheckoutPlacePaymentNotCompleted(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodePayment, "payment not completed")}
	handler := CheckoutPlace(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postCheckout(checkoutBody()))

	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", resp.Code)
	}
}

func TestCheckoutPlaceRejectsMissingFields(t *testing.T) {
	svc := &stubCheckoutService{}
	handler := CheckoutPlace(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postCheckout(`{"delivery_method":"standard"}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
