package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/cashier/internal/auth"
	"github.com/kiwari-pos/cashier/internal/cart"
	"github.com/kiwari-pos/cashier/internal/checkout"
	"github.com/kiwari-pos/cashier/internal/enum"
	"github.com/kiwari-pos/cashier/internal/handler"
	"github.com/kiwari-pos/cashier/internal/item"
	"github.com/kiwari-pos/cashier/internal/middleware"
	"github.com/kiwari-pos/cashier/internal/notify"
	"github.com/kiwari-pos/cashier/internal/offer"
	"github.com/kiwari-pos/cashier/internal/payment"
	"github.com/kiwari-pos/cashier/internal/prep"
	"github.com/kiwari-pos/cashier/internal/service"
	"github.com/kiwari-pos/cashier/internal/session"
	"github.com/shopspring/decimal"
)

const testJWTSecret = "test-secret-for-sessions"

// --- Mock backend ---

type mockBackend struct {
	authorizeVoidFn    func(ctx context.Context, req cart.VoidRequest) error
	updateItemStatusFn func(ctx context.Context, u prep.StatusUpdate) error
	submitCheckoutFn   func(ctx context.Context, p checkout.Payload) (checkout.Receipt, error)
	tableOrderFn       func(ctx context.Context, tableID string) ([]item.LineItem, error)
	addCartItemFn      func(ctx context.Context, tableID string, li item.LineItem) (string, error)
}

func (m *mockBackend) AuthorizeVoid(ctx context.Context, req cart.VoidRequest) error {
	if m.authorizeVoidFn != nil {
		return m.authorizeVoidFn(ctx, req)
	}
	return nil
}

func (m *mockBackend) UpdateItemStatus(ctx context.Context, u prep.StatusUpdate) error {
	if m.updateItemStatusFn != nil {
		return m.updateItemStatusFn(ctx, u)
	}
	return nil
}

func (m *mockBackend) ValidateOffer(ctx context.Context, code string) (offer.PendingApproval, error) {
	return offer.PendingApproval{OfferOrderID: "oo-" + code, ProductID: "p-free", ProductName: "Free Tea"}, nil
}

func (m *mockBackend) ApproveOffer(ctx context.Context, offerOrderID, userID string) error {
	return nil
}

func (m *mockBackend) SubmitCheckout(ctx context.Context, p checkout.Payload) (checkout.Receipt, error) {
	if m.submitCheckoutFn != nil {
		return m.submitCheckoutFn(ctx, p)
	}
	return checkout.Receipt{OrderID: "ord-77", OrderNumber: "B-077"}, nil
}

func (m *mockBackend) TableOrder(ctx context.Context, tableID string) ([]item.LineItem, error) {
	if m.tableOrderFn != nil {
		return m.tableOrderFn(ctx, tableID)
	}
	return nil, nil
}

func (m *mockBackend) AddCartItem(ctx context.Context, tableID string, li item.LineItem) (string, error) {
	if m.addCartItemFn != nil {
		return m.addCartItemFn(ctx, tableID, li)
	}
	return "c-" + li.TempID, nil
}

func (m *mockBackend) ListFinancialAccounts(ctx context.Context) ([]payment.Account, error) {
	return []payment.Account{{ID: "cash", Name: "Cash"}, {ID: "card", Name: "Card"}}, nil
}

type backendErr struct{ msg string }

func (e backendErr) Error() string       { return "backend: " + e.msg }
func (e backendErr) UserMessage() string { return e.msg }

// --- Test helpers ---

func setupSessionRouter(b *mockBackend) *chi.Mux {
	svc := service.NewCashier(b, session.NewMemoryStore(), notify.Nop{}, service.Defaults{Source: "cashier"})
	h := handler.NewSessionHandler(svc)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/outlets/{oid}", func(r chi.Router) {
		r.Use(middleware.RequireOutlet)
		r.Route("/sessions", h.RegisterRoutes)
	})
	return r
}

func testClaims(outletID uuid.UUID) *auth.Claims {
	return &auth.Claims{
		UserID:   uuid.New(),
		OutletID: outletID,
		Role:     enum.UserRoleCashier,
	}
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.OutletID, claims.Role, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// openSession opens a session and returns its base path.
func openSession(t *testing.T, router http.Handler, claims *auth.Claims, body map[string]interface{}) (string, map[string]interface{}) {
	t.Helper()
	base := "/outlets/" + claims.OutletID.String() + "/sessions"
	rr := doAuthRequest(t, router, "POST", base, body, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("open: status %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	return base + "/" + resp["id"].(string), resp
}

func totals(resp map[string]interface{}) map[string]interface{} {
	return resp["totals"].(map[string]interface{})
}

func paymentOf(resp map[string]interface{}) map[string]interface{} {
	return resp["payment"].(map[string]interface{})
}

// =====================
// Open
// =====================

func TestSessionOpen_HydratesDineIn(t *testing.T) {
	b := &mockBackend{
		tableOrderFn: func(ctx context.Context, tableID string) ([]item.LineItem, error) {
			if tableID != "t9" {
				t.Errorf("expected table t9, got %q", tableID)
			}
			return []item.LineItem{
				{TempID: "a", CartID: "31", Name: "Rice", BasePrice: decimal.NewFromInt(15), Quantity: 2, Status: enum.PrepStatusDone},
			}, nil
		},
	}
	router := setupSessionRouter(b)
	claims := testClaims(uuid.New())

	_, resp := openSession(t, router, claims, map[string]interface{}{
		"order_type": "dine_in",
		"table_id":   "t9",
	})

	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	first := items[0].(map[string]interface{})
	if first["line_total"] != "30.00" || first["status"] != "done" {
		t.Errorf("unexpected item: %v", first)
	}
	if got := totals(resp)["amount_to_pay"]; got != "30.00" {
		t.Errorf("amount_to_pay: got %v, want 30.00", got)
	}
	ctx := resp["context"].(map[string]interface{})
	if ctx["cashier_id"] != claims.UserID.String() {
		t.Errorf("expected cashier from token, got %v", ctx["cashier_id"])
	}
}

func TestSessionOpen_InvalidOrderType(t *testing.T) {
	router := setupSessionRouter(&mockBackend{})
	claims := testClaims(uuid.New())

	rr := doAuthRequest(t, router, "POST", "/outlets/"+claims.OutletID.String()+"/sessions",
		map[string]interface{}{"order_type": "drive_thru"}, claims)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if resp := decodeResponse(t, rr); resp["kind"] != "validation" {
		t.Errorf("kind: got %v, want validation", resp["kind"])
	}
}

func TestSessionOpen_InvalidBody(t *testing.T) {
	router := setupSessionRouter(&mockBackend{})
	claims := testClaims(uuid.New())
	token, _ := auth.GenerateToken(testJWTSecret, claims.UserID, claims.OutletID, claims.Role, time.Hour)

	req := httptest.NewRequest("POST", "/outlets/"+claims.OutletID.String()+"/sessions", bytes.NewReader([]byte("{")))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSessionGet_OtherOutletNotFound(t *testing.T) {
	router := setupSessionRouter(&mockBackend{})
	claims := testClaims(uuid.New())
	path, resp := openSession(t, router, claims, map[string]interface{}{"order_type": "take_away"})

	owner := testClaims(uuid.New())
	owner.Role = enum.UserRoleOwner
	other := "/outlets/" + owner.OutletID.String() + "/sessions/" + resp["id"].(string)

	if rr := doAuthRequest(t, router, "GET", other, nil, owner); rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
	if rr := doAuthRequest(t, router, "GET", path, nil, claims); rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

// =====================
// Cart and payment
// =====================

func TestSessionFlow_AddSplitCheckout(t *testing.T) {
	var submitted checkout.Payload
	b := &mockBackend{
		submitCheckoutFn: func(ctx context.Context, p checkout.Payload) (checkout.Receipt, error) {
			submitted = p
			return checkout.Receipt{OrderID: "ord-77", OrderNumber: "B-077"}, nil
		},
	}
	router := setupSessionRouter(b)
	claims := testClaims(uuid.New())
	path, _ := openSession(t, router, claims, map[string]interface{}{"order_type": "take_away"})

	rr := doAuthRequest(t, router, "POST", path+"/items", map[string]interface{}{
		"product_id": "p-1",
		"name":       "Noodles",
		"base_price": "12.50",
		"quantity":   2,
		"addons":     []map[string]interface{}{{"id": "egg", "price": "2", "count": 1}},
	}, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add item: status %d, body %s", rr.Code, rr.Body.String())
	}
	if got := totals(decodeResponse(t, rr))["amount_to_pay"]; got != "29.00" {
		t.Fatalf("amount_to_pay: got %v, want 29.00", got)
	}

	rr = doAuthRequest(t, router, "POST", path+"/splits", nil, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add split: status %d", rr.Code)
	}
	splits := paymentOf(decodeResponse(t, rr))["splits"].([]interface{})
	split := splits[0].(map[string]interface{})
	if split["amount"] != "29.00" || split["financial_account_id"] != "cash" {
		t.Fatalf("unexpected split: %v", split)
	}

	rr = doAuthRequest(t, router, "PUT", path+"/splits/"+split["id"].(string), map[string]interface{}{
		"amount":               "50",
		"financial_account_id": "card",
	}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("update split: status %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["clamped"] != true {
		t.Error("expected clamped amount")
	}
	split = paymentOf(resp["session"].(map[string]interface{}))["splits"].([]interface{})[0].(map[string]interface{})
	if split["amount"] != "29.00" || split["financial_account_id"] != "card" {
		t.Errorf("unexpected split after update: %v", split)
	}

	rr = doAuthRequest(t, router, "POST", path+"/checkout", map[string]interface{}{"notes": "no chili"}, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("checkout: status %d, body %s", rr.Code, rr.Body.String())
	}
	resp = decodeResponse(t, rr)
	if resp["receipt"].(map[string]interface{})["order_id"] != "ord-77" {
		t.Errorf("unexpected receipt: %v", resp["receipt"])
	}
	if resp["session"].(map[string]interface{})["paid"] != true {
		t.Error("expected session paid")
	}
	if submitted.Amount != "29.00" || submitted.Notes != "no chili" || len(submitted.Financials) != 1 || submitted.Financials[0].ID != "card" {
		t.Errorf("unexpected payload: %+v", submitted)
	}
}

func TestSessionCheckout_BackendFailure(t *testing.T) {
	b := &mockBackend{
		submitCheckoutFn: func(ctx context.Context, p checkout.Payload) (checkout.Receipt, error) {
			return checkout.Receipt{}, backendErr{"shift is closed"}
		},
	}
	router := setupSessionRouter(b)
	claims := testClaims(uuid.New())
	path, _ := openSession(t, router, claims, map[string]interface{}{"order_type": "take_away"})

	doAuthRequest(t, router, "POST", path+"/items", map[string]interface{}{"name": "Tea", "base_price": "5", "quantity": 1}, claims)
	doAuthRequest(t, router, "POST", path+"/splits", nil, claims)

	rr := doAuthRequest(t, router, "POST", path+"/checkout", map[string]interface{}{}, claims)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadGateway)
	}
	if resp := decodeResponse(t, rr); resp["error"] != "shift is closed" {
		t.Errorf("error: got %v", resp["error"])
	}

	rr = doAuthRequest(t, router, "GET", path, nil, claims)
	p := paymentOf(decodeResponse(t, rr))
	if p["state"] != "editing" || p["last_error"] != "shift is closed" {
		t.Errorf("expected editing with last error, got %v", p)
	}
}

func TestSessionAddItem_InvalidPrice(t *testing.T) {
	router := setupSessionRouter(&mockBackend{})
	claims := testClaims(uuid.New())
	path, _ := openSession(t, router, claims, map[string]interface{}{"order_type": "take_away"})

	rr := doAuthRequest(t, router, "POST", path+"/items", map[string]interface{}{"name": "Tea", "base_price": "five", "quantity": 1}, claims)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSessionSetPricing(t *testing.T) {
	router := setupSessionRouter(&mockBackend{})
	claims := testClaims(uuid.New())
	path, _ := openSession(t, router, claims, map[string]interface{}{"order_type": "take_away"})
	doAuthRequest(t, router, "POST", path+"/items", map[string]interface{}{"name": "Set", "base_price": "200", "quantity": 1}, claims)

	rr := doAuthRequest(t, router, "PUT", path+"/pricing", map[string]interface{}{
		"service_fee": map[string]string{"type": "percentage", "amount": "10"},
		"discount":    map[string]string{"type": "amount", "value": "15"},
	}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}
	tot := totals(decodeResponse(t, rr))
	if tot["service_charge"] != "20.00" || tot["discount"] != "15.00" {
		t.Errorf("unexpected totals: %v", tot)
	}
}

// =====================
// Items
// =====================

func TestSessionVoid_Rejected(t *testing.T) {
	b := &mockBackend{
		tableOrderFn: func(ctx context.Context, tableID string) ([]item.LineItem, error) {
			return []item.LineItem{{TempID: "a", CartID: "31", Name: "Rice", BasePrice: decimal.NewFromInt(15), Quantity: 1}}, nil
		},
		authorizeVoidFn: func(ctx context.Context, req cart.VoidRequest) error {
			return backendErr{"manager not found"}
		},
	}
	router := setupSessionRouter(b)
	claims := testClaims(uuid.New())
	path, _ := openSession(t, router, claims, map[string]interface{}{"order_type": "dine_in", "table_id": "t1"})

	rr := doAuthRequest(t, router, "POST", path+"/items/a/void", map[string]string{
		"manager_id":       "m1",
		"manager_password": "nope",
	}, claims)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	if resp := decodeResponse(t, rr); resp["error"] != "manager not found" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestSessionAddItem_DineInSaved(t *testing.T) {
	b := &mockBackend{
		addCartItemFn: func(ctx context.Context, tableID string, li item.LineItem) (string, error) {
			if tableID != "t1" || li.SourceID != "p-9" {
				t.Errorf("unexpected save: table %q, item %+v", tableID, li)
			}
			return "77", nil
		},
	}
	router := setupSessionRouter(b)
	claims := testClaims(uuid.New())
	path, _ := openSession(t, router, claims, map[string]interface{}{"order_type": "dine_in", "table_id": "t1"})

	rr := doAuthRequest(t, router, "POST", path+"/items", map[string]interface{}{
		"temp_id":    "n1",
		"product_id": "p-9",
		"name":       "Tea",
		"base_price": "5",
		"quantity":   1,
	}, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add item: status %d, body %s", rr.Code, rr.Body.String())
	}
	items := decodeResponse(t, rr)["items"].([]interface{})
	if got := items[len(items)-1].(map[string]interface{})["cart_id"]; got != "77" {
		t.Errorf("cart_id: got %v, want 77", got)
	}
}

func TestSessionAddItem_SaveFailure(t *testing.T) {
	b := &mockBackend{
		addCartItemFn: func(ctx context.Context, tableID string, li item.LineItem) (string, error) {
			return "", backendErr{"table is closed"}
		},
	}
	router := setupSessionRouter(b)
	claims := testClaims(uuid.New())
	path, _ := openSession(t, router, claims, map[string]interface{}{"order_type": "dine_in", "table_id": "t1"})

	rr := doAuthRequest(t, router, "POST", path+"/items", map[string]interface{}{
		"product_id": "p-9",
		"name":       "Tea",
		"base_price": "5",
		"quantity":   1,
	}, claims)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadGateway)
	}
	if resp := decodeResponse(t, rr); resp["error"] != "table is closed" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestSessionBulkStatus(t *testing.T) {
	var calls []prep.StatusUpdate
	b := &mockBackend{
		tableOrderFn: func(ctx context.Context, tableID string) ([]item.LineItem, error) {
			return []item.LineItem{
				{TempID: "a", CartID: "31", Name: "Rice", BasePrice: decimal.NewFromInt(15), Quantity: 1, Status: enum.PrepStatusPreparing},
				{TempID: "b", Name: "Soup", BasePrice: decimal.NewFromInt(8), Quantity: 1, Status: enum.PrepStatusPending},
			}, nil
		},
		updateItemStatusFn: func(ctx context.Context, u prep.StatusUpdate) error {
			calls = append(calls, u)
			return nil
		},
	}
	router := setupSessionRouter(b)
	claims := testClaims(uuid.New())
	path, _ := openSession(t, router, claims, map[string]interface{}{"order_type": "dine_in", "table_id": "t1"})

	rr := doAuthRequest(t, router, "POST", path+"/items/status", map[string]interface{}{
		"temp_ids": []string{"a", "b"},
		"status":   "pick_up",
	}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if errs := resp["data_errors"].([]interface{}); len(errs) != 1 || errs[0] != "b" {
		t.Errorf("expected b as data error, got %v", errs)
	}
	if len(calls) != 1 || calls[0].Status != "pick_up" || calls[0].TableID != "t1" {
		t.Errorf("unexpected status calls: %+v", calls)
	}
}

func TestSessionStatusOptions(t *testing.T) {
	router := setupSessionRouter(&mockBackend{})
	claims := testClaims(uuid.New())
	path, _ := openSession(t, router, claims, map[string]interface{}{"order_type": "take_away"})
	rr := doAuthRequest(t, router, "POST", path+"/items", map[string]interface{}{"temp_id": "x", "name": "Tea", "base_price": "5", "quantity": 1}, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add item: status %d", rr.Code)
	}

	rr = doAuthRequest(t, router, "GET", path+"/items/status-options?temp_id=x", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var resp map[string][]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp["statuses"]) == 0 {
		t.Error("expected targets for a pending item")
	}
}

func TestSessionClose(t *testing.T) {
	router := setupSessionRouter(&mockBackend{})
	claims := testClaims(uuid.New())
	path, _ := openSession(t, router, claims, map[string]interface{}{"order_type": "take_away"})

	if rr := doAuthRequest(t, router, "DELETE", path, nil, claims); rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if rr := doAuthRequest(t, router, "GET", path, nil, claims); rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
