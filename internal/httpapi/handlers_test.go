package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tokoku/backend/internal/domain"
	"tokoku/backend/internal/engine"
	"tokoku/backend/internal/store/memory"
	"tokoku/backend/internal/transfer"
)

// newTestAPI builds a full API over an in-memory store, real AuthManager and
// real Engine so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	eng := engine.New(repo, nil, &transfer.Recorder{}, "merchant")
	auth := NewAuthManager("test-secret-key", time.Hour, "merchant", repo)

	return New(eng, auth, "*")
}

// loginAs logs in through the login endpoint and returns the access token.
func loginAs(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

// doJSON performs an authenticated JSON request with a valid CSRF token for
// mutating methods.
func doJSON(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, handler))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAs(t, handler, "merchant", "merchant123")
	if token == "" {
		t.Fatalf("expected non-empty access token")
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "merchant",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleItems_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleItems_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAs(t, handler, "customer", "customer123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	items, ok := body["items"].([]any)
	if !ok || len(items) == 0 {
		t.Fatalf("expected seeded items in response, got %v", body)
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	merchantToken := loginAs(t, handler, "merchant", "merchant123")
	customerToken := loginAs(t, handler, "customer", "customer123")

	// Merchant lists a new item.
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/items", merchantToken, domain.ItemCreateRequest{
		Name:       "Gelas Enamel",
		DetailURI:  "ipfs://item/gelas-enamel",
		PriceCents: 4500,
		InitialQty: 12,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Item domain.Item `json:"item"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode create item response: %v", err)
	}
	if created.Item.ID == 0 {
		t.Fatalf("expected item id, got %+v", created.Item)
	}

	// Customer places an order for two of them, paying exactly the total.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders", customerToken, domain.OrderRequest{
		ItemIDs:    []int64{created.Item.ID},
		Quantities: []int64{2},
		PaidCents:  9000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var placed domain.OrderResponse
	if err := json.NewDecoder(rec.Body).Decode(&placed); err != nil {
		t.Fatalf("decode order response: %v", err)
	}
	if placed.Order.Status != domain.OrderAccepted {
		t.Fatalf("expected accepted order, got %v", placed.Order.Status)
	}
	if placed.Order.NetCents != 9000 {
		t.Fatalf("expected net 9000, got %d", placed.Order.NetCents)
	}

	// Inventory is reserved immediately.
	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/v1/items/%d", created.Item.ID), customerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get item: expected 200, got %d", rec.Code)
	}
	var fetched struct {
		Item domain.Item `json:"item"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode item response: %v", err)
	}
	if fetched.Item.AvailableQty != 10 {
		t.Fatalf("expected qty 10 after order, got %d", fetched.Item.AvailableQty)
	}

	// Customer cancels, inventory is restored.
	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/cancel", placed.Order.ID), customerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel order: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/v1/items/%d", created.Item.ID), customerToken, nil)
	if err := json.NewDecoder(rec.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode item response: %v", err)
	}
	if fetched.Item.AvailableQty != 12 {
		t.Fatalf("expected qty 12 after cancel, got %d", fetched.Item.AvailableQty)
	}
}

func TestOrderStatusTransitionOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	merchantToken := loginAs(t, handler, "merchant", "merchant123")
	customerToken := loginAs(t, handler, "customer", "customer123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders", customerToken, domain.OrderRequest{
		ItemIDs:    []int64{1},
		Quantities: []int64{1},
		PaidCents:  7500,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var placed domain.OrderResponse
	if err := json.NewDecoder(rec.Body).Decode(&placed); err != nil {
		t.Fatalf("decode order response: %v", err)
	}

	// Skipping dispatched is rejected.
	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/status", placed.Order.ID), merchantToken, domain.StatusUpdateRequest{
		Status: domain.OrderDelivered,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for skipped status, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/status", placed.Order.ID), merchantToken, domain.StatusUpdateRequest{
		Status: domain.OrderDispatched,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("dispatch: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// The buyer can no longer cancel once dispatched.
	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/cancel", placed.Order.ID), customerToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 cancelling dispatched order, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestMerchantRoutesRejectCustomers(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	customerToken := loginAs(t, handler, "customer", "customer123")

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/statistics"},
		{http.MethodGet, "/api/v1/audit-logs"},
		{http.MethodPost, "/api/v1/funds/withdraw"},
		{http.MethodPost, "/api/v1/sale/toggle"},
	}
	for _, p := range paths {
		rec := doJSON(t, handler, p.method, p.path, customerToken, nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403 for customer, got %d", p.method, p.path, rec.Code)
		}
	}
}

func TestSaleDiscountAppliedOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	merchantToken := loginAs(t, handler, "merchant", "merchant123")
	customerToken := loginAs(t, handler, "customer", "customer123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sale/discount", merchantToken, domain.DiscountUpdateRequest{DiscountPercent: 10})
	if rec.Code != http.StatusOK {
		t.Fatalf("set discount: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sale/toggle", merchantToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle sale: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// Item 2 costs 5200; with 10% off, 5200 paid covers the 4680 net.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders", customerToken, domain.OrderRequest{
		ItemIDs:    []int64{2},
		Quantities: []int64{1},
		PaidCents:  5200,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var placed domain.OrderResponse
	if err := json.NewDecoder(rec.Body).Decode(&placed); err != nil {
		t.Fatalf("decode order response: %v", err)
	}
	if placed.Order.DiscountCents != 520 || placed.Order.NetCents != 4680 {
		t.Fatalf("expected discount 520 / net 4680, got %d / %d", placed.Order.DiscountCents, placed.Order.NetCents)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "newbuyer",
		"password": "rahasia1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	token := loginAs(t, handler, "newbuyer", "rahasia1")
	if token == "" {
		t.Fatalf("expected registered customer to log in")
	}
}

func TestRegisteringMerchantUsernameCannotEscalate(t *testing.T) {
	// Registration of the configured merchant username is refused, so a
	// self-registered customer can never satisfy merchant-only checks.
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "merchant",
		"password": "hijack123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 registering reserved username, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// Even a customer-role token is stopped by the engine's role check on
	// merchant-only routes reachable by both roles.
	customerToken := loginAs(t, handler, "customer", "customer123")
	res := doJSON(t, handler, http.MethodPost, "/api/v1/items", customerToken, domain.ItemCreateRequest{
		Name:       "Evil",
		DetailURI:  "ipfs://item/evil",
		PriceCents: 1,
		InitialQty: 1,
	})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer addItem, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestInsufficientPaymentReturns402(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	customerToken := loginAs(t, handler, "customer", "customer123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders", customerToken, domain.OrderRequest{
		ItemIDs:    []int64{1},
		Quantities: []int64{1},
		PaidCents:  100,
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestShippingAddressRoundTripOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	customerToken := loginAs(t, handler, "customer", "customer123")

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/shipping-address", customerToken, domain.ShippingAddressRequest{
		Address: "Jl. Kenanga No. 5, Bandung",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put address: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/shipping-address", customerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get address: expected 200, got %d", rec.Code)
	}
	var resp domain.ShippingAddressResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode address response: %v", err)
	}
	if resp.Address != "Jl. Kenanga No. 5, Bandung" {
		t.Fatalf("unexpected address %q", resp.Address)
	}
}
