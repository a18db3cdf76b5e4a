package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"haggle-api/internal/catalog"
	"haggle-api/internal/model"
	"haggle-api/internal/negotiation"
	"haggle-api/internal/webhook"
)

// mockCheckout implements CheckoutClient for testing.
type mockCheckout struct {
	CreateFunc func(ctx context.Context, order json.RawMessage) (json.RawMessage, error)
}

func (m *mockCheckout) CreateCheckoutSession(ctx context.Context, order json.RawMessage) (json.RawMessage, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, order)
	}
	return json.RawMessage(`{}`), nil
}

const testWebhookSecret = "whsec_test"

func testHandler(cat catalog.Catalog, checkout CheckoutClient) (*Handler, *http.ServeMux) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := negotiation.New(rand.New(rand.NewSource(1)))
	verifier := webhook.New(testWebhookSecret, logger)
	verifier.Handle("checkout.completed", func(ctx context.Context, event *webhook.Event) error {
		return nil
	})
	h := New(cat, engine, checkout, verifier, logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

// getErrorCode extracts the error code from an error response body.
func getErrorCode(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Error.Code
}

func TestHandleHealth(t *testing.T) {
	_, mux := testHandler(catalog.NewStatic(), nil)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp healthResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != "ok" {
		t.Errorf("Status = %s, want ok", resp.Status)
	}
}

func TestHandleListProducts(t *testing.T) {
	_, mux := testHandler(catalog.NewStatic(), nil)

	req := httptest.NewRequest("GET", "/products", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp productsResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Products) != 3 {
		t.Errorf("len(Products) = %d, want 3", len(resp.Products))
	}

	// The floor price must never reach the wire.
	if strings.Contains(w.Body.String(), "minPrice") {
		t.Error("response leaks minPrice")
	}
}

func TestHandleGetProduct(t *testing.T) {
	_, mux := testHandler(catalog.NewStatic(), nil)

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"found", "1", http.StatusOK},
		{"not found", "999", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/products/"+tt.id, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusNotFound && getErrorCode(w.Body.Bytes()) != "NOT_FOUND" {
				t.Errorf("Code = %s, want NOT_FOUND", getErrorCode(w.Body.Bytes()))
			}
		})
	}
}

func postOffer(mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/offers", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHandleOfferRejected(t *testing.T) {
	_, mux := testHandler(catalog.NewStatic(), nil)

	w := postOffer(mux, `{"productId":"1","price":199.99,"minPrice":149.99,"offer":100,"storedOffers":[]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp model.OfferResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.NewOffer == nil || *resp.NewOffer != 100 {
		t.Errorf("NewOffer = %v, want 100", resp.NewOffer)
	}
	if !strings.Contains(resp.Message, "2 chances left") {
		t.Errorf("Message = %q, want mention of 2 chances left", resp.Message)
	}
}

func TestHandleOfferAccepted(t *testing.T) {
	_, mux := testHandler(catalog.NewStatic(), nil)

	w := postOffer(mux, `{"productId":"1","price":199.99,"minPrice":149.99,"offer":160,"storedOffers":[100]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp model.OfferResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.AcceptedOffer == nil || *resp.AcceptedOffer != 160 {
		t.Errorf("AcceptedOffer = %v, want 160", resp.AcceptedOffer)
	}
}

func TestHandleOfferAlreadyAccepted(t *testing.T) {
	_, mux := testHandler(catalog.NewStatic(), nil)

	// 160 in history clears the floor, so the deal is already settled.
	w := postOffer(mux, `{"productId":"1","price":199.99,"minPrice":149.99,"offer":10,"storedOffers":[160]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp model.OfferResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.AcceptedOffer == nil || *resp.AcceptedOffer != 160 {
		t.Errorf("AcceptedOffer = %v, want 160", resp.AcceptedOffer)
	}
	if !strings.Contains(resp.Message, "already accepted") {
		t.Errorf("Message = %q, want already-accepted notice", resp.Message)
	}
}

func TestHandleOfferExhausted(t *testing.T) {
	_, mux := testHandler(catalog.NewStatic(), nil)

	// Three failed rounds in history: the engine re-presents the last offer.
	w := postOffer(mux, `{"productId":"1","price":199.99,"minPrice":149.99,"offer":50,"storedOffers":[100,110,140]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp model.OfferResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.SpecialOffer == nil || *resp.SpecialOffer != 140 {
		t.Errorf("SpecialOffer = %v, want 140", resp.SpecialOffer)
	}
	if resp.NewOffer != nil {
		t.Errorf("NewOffer = %v, want nil on exhausted round", *resp.NewOffer)
	}
}

func TestHandleOfferValidation(t *testing.T) {
	_, mux := testHandler(catalog.NewStatic(), nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"invalid JSON", `{`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing product", `{"price":10,"minPrice":5,"offer":6,"storedOffers":[]}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing storedOffers", `{"productId":"1","price":199.99,"minPrice":149.99,"offer":100}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown product", `{"productId":"999","price":10,"minPrice":5,"offer":6,"storedOffers":[]}`, http.StatusNotFound, "NOT_FOUND"},
		{"negative offer", `{"productId":"1","price":199.99,"minPrice":149.99,"offer":-5,"storedOffers":[]}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"floor above list price", `{"productId":"1","price":100,"minPrice":150,"offer":90,"storedOffers":[]}`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postOffer(mux, tt.body)

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if code := getErrorCode(w.Body.Bytes()); code != tt.wantCode {
				t.Errorf("Code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

func TestHandleCreateCheckoutSession(t *testing.T) {
	session := json.RawMessage(`{"id":"cs_123","redirectUrl":"https://checkout.example/cs_123"}`)

	var gotOrder json.RawMessage
	checkout := &mockCheckout{
		CreateFunc: func(ctx context.Context, order json.RawMessage) (json.RawMessage, error) {
			gotOrder = order
			return session, nil
		},
	}

	_, mux := testHandler(catalog.NewStatic(), checkout)

	body := `{"lineItems":[{"productId":"1","amount":160}]}`
	req := httptest.NewRequest("POST", "/ivy/checkout-sessions", strings.NewReader(body))
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if !bytes.Equal(gotOrder, []byte(body)) {
		t.Errorf("forwarded order = %s, want %s", gotOrder, body)
	}
	if !bytes.Equal(bytes.TrimSpace(w.Body.Bytes()), session) {
		t.Errorf("Body = %s, want %s", w.Body.String(), session)
	}
}

func TestHandleCreateCheckoutSessionErrors(t *testing.T) {
	upstream := &mockCheckout{
		CreateFunc: func(ctx context.Context, order json.RawMessage) (json.RawMessage, error) {
			return nil, model.NewUpstreamError("Ivy", errors.New("connect refused"))
		},
	}

	tests := []struct {
		name       string
		checkout   CheckoutClient
		body       string
		wantStatus int
		wantCode   string
	}{
		{"not configured", nil, `{}`, http.StatusInternalServerError, "CONFIGURATION_ERROR"},
		{"invalid JSON", upstream, `not json`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"upstream failure", upstream, `{}`, http.StatusBadGateway, "UPSTREAM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mux := testHandler(catalog.NewStatic(), tt.checkout)

			req := httptest.NewRequest("POST", "/ivy/checkout-sessions", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if code := getErrorCode(w.Body.Bytes()); code != tt.wantCode {
				t.Errorf("Code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

func postCallback(mux *http.ServeMux, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/ivy/callback", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHandleIvyCallback(t *testing.T) {
	_, mux := testHandler(catalog.NewStatic(), nil)

	body := `{"type":"checkout.completed","id":"evt_1","data":{"sessionId":"cs_123"}}`

	tests := []struct {
		name       string
		body       string
		signature  string
		wantStatus int
		wantCode   string
	}{
		{"valid signature", body, webhook.Sign(testWebhookSecret, []byte(body)), http.StatusOK, ""},
		{"unknown event type", `{"type":"refund.created"}`, webhook.Sign(testWebhookSecret, []byte(`{"type":"refund.created"}`)), http.StatusOK, ""},
		{"missing signature", body, "", http.StatusUnauthorized, "SIGNATURE_ERROR"},
		{"wrong signature", body, webhook.Sign("other-secret", []byte(body)), http.StatusUnauthorized, "SIGNATURE_ERROR"},
		{"tampered body", body + " ", webhook.Sign(testWebhookSecret, []byte(body)), http.StatusUnauthorized, "SIGNATURE_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postCallback(mux, tt.body, tt.signature)

			if w.Code != tt.wantStatus {
				t.Fatalf("Status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				var receipt webhook.Receipt
				json.NewDecoder(w.Body).Decode(&receipt)
				if !receipt.Received {
					t.Error("Received = false, want true")
				}
			} else if code := getErrorCode(w.Body.Bytes()); code != tt.wantCode {
				t.Errorf("Code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

func TestHandleIvyCallbackNoSecret(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := negotiation.New(rand.New(rand.NewSource(1)))
	h := New(catalog.NewStatic(), engine, nil, webhook.New("", logger), logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body := `{"type":"checkout.completed"}`
	w := postCallback(mux, body, webhook.Sign("whatever", []byte(body)))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if code := getErrorCode(w.Body.Bytes()); code != "CONFIGURATION_ERROR" {
		t.Errorf("Code = %s, want CONFIGURATION_ERROR", code)
	}
}
