package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/marketman/internal/model"
)

func TestPaymentHandlerCreateCheckoutSession(t *testing.T) {
	var gotItems []model.CartItem
	service := &mockPaymentService{
		checkoutFunc: func(ctx context.Context, items []model.CartItem) (*model.CheckoutSession, error) {
			gotItems = items
			return &model.CheckoutSession{SessionID: "cs_123", SessionURL: "https://checkout.example.com/cs_123"}, nil
		},
	}
	handler := NewPaymentHandler(service)

	body := `{"items":[{"post_id":"post-1","name":"カメラ","price":15000,"quantity":2,"creator_id":"vendor-1"}]}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session",
		strings.NewReader(body)), "user-1", model.UserRoleUser)
	rec := httptest.NewRecorder()

	handler.CreateCheckoutSession(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(gotItems) != 1 {
		t.Fatalf("items len = %d, want 1", len(gotItems))
	}
	item := gotItems[0]
	if item.PostID != "post-1" || item.Price != 15000 || item.Quantity != 2 || item.CreatorID != "vendor-1" {
		t.Errorf("unexpected cart item: %+v", item)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["session_id"] != "cs_123" {
		t.Errorf("session_id = %q, want cs_123", resp["session_id"])
	}
	if resp["session_url"] != "https://checkout.example.com/cs_123" {
		t.Errorf("session_url = %q", resp["session_url"])
	}
}

func TestPaymentHandlerCreateCheckoutSessionEmptyCart(t *testing.T) {
	service := &mockPaymentService{
		checkoutFunc: func(ctx context.Context, items []model.CartItem) (*model.CheckoutSession, error) {
			return nil, model.NewEmptyCartError()
		},
	}
	handler := NewPaymentHandler(service)

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session",
		strings.NewReader(`{"items":[]}`)), "user-1", model.UserRoleUser)
	rec := httptest.NewRecorder()

	handler.CreateCheckoutSession(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !bodyContains(rec.Body.String(), model.ErrCodeEmptyCart) {
		t.Errorf("body = %q, want error code %s", rec.Body.String(), model.ErrCodeEmptyCart)
	}
}

func TestPaymentHandlerConnect(t *testing.T) {
	var gotUserID string
	service := &mockPaymentService{
		accountLinkFunc: func(ctx context.Context, userID string) (string, error) {
			gotUserID = userID
			return "https://connect.example.com/onboarding/user-1", nil
		},
	}
	handler := NewPaymentHandler(service)

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/payments/stripe/connect", nil),
		"user-1", model.UserRoleUser)
	rec := httptest.NewRecorder()

	handler.Connect(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotUserID != "user-1" {
		t.Errorf("userID = %q, want user-1", gotUserID)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["onboarding_url"] != "https://connect.example.com/onboarding/user-1" {
		t.Errorf("onboarding_url = %q", resp["onboarding_url"])
	}
}

func TestPaymentHandlerConnectUnauthenticated(t *testing.T) {
	handler := NewPaymentHandler(&mockPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/stripe/connect", nil)
	rec := httptest.NewRecorder()

	handler.Connect(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
