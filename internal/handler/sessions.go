package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/cashier/internal/cart"
	"github.com/kiwari-pos/cashier/internal/checkout"
	"github.com/kiwari-pos/cashier/internal/item"
	"github.com/kiwari-pos/cashier/internal/middleware"
	"github.com/kiwari-pos/cashier/internal/prep"
	"github.com/kiwari-pos/cashier/internal/service"
	"github.com/shopspring/decimal"
)

// CashierServicer defines the service methods needed by session handlers.
// Satisfied by *service.Cashier; narrow interface for testability.
type CashierServicer interface {
	Open(ctx context.Context, req service.OpenRequest) (service.View, error)
	Get(id string) (service.View, error)
	Close(ctx context.Context, id string) error

	AddItem(ctx context.Context, id string, li item.LineItem) (service.View, error)
	Increment(id, tempID string) (service.View, error)
	Decrement(id, tempID string) (service.View, error)
	SetQuantity(id, tempID string, qty int) (service.View, error)
	Void(ctx context.Context, id, tempID string, creds cart.ManagerCredentials) (service.View, error)

	Advance(ctx context.Context, id, tempID string) (prep.Outcome, service.View, error)
	AdvanceEach(ctx context.Context, id string, tempIDs []string) ([]prep.Outcome, service.View, error)
	BulkStatus(ctx context.Context, id string, tempIDs []string, target string) (prep.BulkResult, service.View, error)
	StatusOptions(id string, tempIDs []string) ([]string, error)

	SetPricing(id string, u service.PricingUpdate) (service.View, error)
	SetSelection(id string, tempIDs []string) (service.View, error)
	AddSplit(id string) (service.View, error)
	SetSplitAmount(id, splitID string, amount decimal.Decimal) (service.SplitResult, service.View, error)
	SetSplitAccount(id, splitID, accountID string) (service.View, error)
	RemoveSplit(id, splitID string) (service.View, error)
	SetCustomerPaid(id string, amount decimal.Decimal) (service.View, error)
	Checkout(ctx context.Context, id string, req service.CheckoutRequest) (checkout.Receipt, service.View, error)

	ValidateOffer(ctx context.Context, id, code string) (service.View, error)
	ApproveOffer(ctx context.Context, id string) (service.View, error)
	DiscardOffer(id string) (service.View, error)

	StartTransfer(ctx context.Context, id string) (service.View, error)
	ClearTransfer(ctx context.Context, id string) (service.View, error)
}

// SessionHandler handles cashier session endpoints.
type SessionHandler struct {
	svc CashierServicer
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(svc CashierServicer) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// RegisterRoutes registers session endpoints on the given Chi router.
// Expected to be mounted inside an outlet-scoped subrouter: /outlets/{oid}/sessions
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)

	r.Route("/{sid}", func(r chi.Router) {
		r.Use(h.sessionScope)

		r.Get("/", h.Get)
		r.Delete("/", h.Close)

		r.Post("/items", h.AddItem)
		r.Post("/items/advance", h.AdvanceEach)
		r.Post("/items/status", h.BulkStatus)
		r.Get("/items/status-options", h.StatusOptions)
		r.Post("/items/{tid}/increment", h.Increment)
		r.Post("/items/{tid}/decrement", h.Decrement)
		r.Put("/items/{tid}/quantity", h.SetQuantity)
		r.Post("/items/{tid}/void", h.Void)
		r.Post("/items/{tid}/advance", h.Advance)

		r.Put("/pricing", h.SetPricing)
		r.Put("/selection", h.SetSelection)

		r.Post("/splits", h.AddSplit)
		r.Put("/splits/{spid}", h.UpdateSplit)
		r.Delete("/splits/{spid}", h.RemoveSplit)
		r.Put("/customer-paid", h.SetCustomerPaid)
		r.Post("/checkout", h.Checkout)

		r.Post("/offers", h.ValidateOffer)
		r.Post("/offers/approve", h.ApproveOffer)
		r.Delete("/offers", h.DiscardOffer)

		r.Post("/transfer", h.StartTransfer)
		r.Delete("/transfer", h.ClearTransfer)
	})
}

// sessionScope hides sessions opened in another outlet.
func (h *SessionHandler) sessionScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, err := h.svc.Get(chi.URLParam(r, "sid"))
		if err != nil {
			writeError(w, "get session", err)
			return
		}
		if v.Room != chi.URLParam(r, "oid") {
			writeError(w, "get session", service.ErrSessionNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	return true
}

// respond writes the session view of a successful mutation.
func respond(w http.ResponseWriter, op string, v service.View, err error) {
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(v))
}

// --- Session lifecycle ---

// Open handles POST /outlets/{oid}/sessions.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req openRequest
	if !decode(w, r, &req) {
		return
	}
	fee, err := parseAmount("delivery_fee", req.DeliveryFee)
	if err != nil {
		writeError(w, "open session", err)
		return
	}

	v, err := h.svc.Open(r.Context(), service.OpenRequest{
		Room:        chi.URLParam(r, "oid"),
		CashierID:   claims.UserID.String(),
		OrderType:   req.OrderType,
		TableID:     req.TableID,
		UserID:      req.UserID,
		AddressID:   req.AddressID,
		DeliveryFee: fee,
	})
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(v))
}

// Get handles GET /outlets/{oid}/sessions/{sid}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Get(chi.URLParam(r, "sid"))
	respond(w, "get session", v, err)
}

// Close handles DELETE /outlets/{oid}/sessions/{sid}.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Close(r.Context(), chi.URLParam(r, "sid")); err != nil {
		writeError(w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Items ---

// AddItem handles POST /outlets/{oid}/sessions/{sid}/items.
func (h *SessionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}
	li, err := req.lineItem()
	if err != nil {
		writeError(w, "add item", err)
		return
	}
	v, err := h.svc.AddItem(r.Context(), chi.URLParam(r, "sid"), li)
	if err != nil {
		writeError(w, "add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(v))
}

// Increment handles POST /outlets/{oid}/sessions/{sid}/items/{tid}/increment.
func (h *SessionHandler) Increment(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Increment(chi.URLParam(r, "sid"), chi.URLParam(r, "tid"))
	respond(w, "increment item", v, err)
}

// Decrement handles POST /outlets/{oid}/sessions/{sid}/items/{tid}/decrement.
func (h *SessionHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Decrement(chi.URLParam(r, "sid"), chi.URLParam(r, "tid"))
	respond(w, "decrement item", v, err)
}

// SetQuantity handles PUT /outlets/{oid}/sessions/{sid}/items/{tid}/quantity.
func (h *SessionHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.svc.SetQuantity(chi.URLParam(r, "sid"), chi.URLParam(r, "tid"), req.Quantity)
	respond(w, "set quantity", v, err)
}

// Void handles POST /outlets/{oid}/sessions/{sid}/items/{tid}/void.
func (h *SessionHandler) Void(w http.ResponseWriter, r *http.Request) {
	var req voidRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.svc.Void(r.Context(), chi.URLParam(r, "sid"), chi.URLParam(r, "tid"), cart.ManagerCredentials{
		ManagerID:       req.ManagerID,
		ManagerPassword: req.ManagerPassword,
	})
	respond(w, "void item", v, err)
}

// --- Preparation status ---

// Advance handles POST /outlets/{oid}/sessions/{sid}/items/{tid}/advance.
func (h *SessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	out, v, err := h.svc.Advance(r.Context(), chi.URLParam(r, "sid"), chi.URLParam(r, "tid"))
	if err != nil {
		writeError(w, "advance item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcome": toOutcomeResponses([]prep.Outcome{out})[0],
		"session": toSessionResponse(v),
	})
}

// AdvanceEach handles POST /outlets/{oid}/sessions/{sid}/items/advance.
// Each item reports its own outcome; failures do not fail the request.
func (h *SessionHandler) AdvanceEach(w http.ResponseWriter, r *http.Request) {
	var req tempIDsRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.TempIDs) == 0 {
		badRequest(w, "temp_ids are required")
		return
	}
	outcomes, v, err := h.svc.AdvanceEach(r.Context(), chi.URLParam(r, "sid"), req.TempIDs)
	if err != nil {
		writeError(w, "advance items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcomes": toOutcomeResponses(outcomes),
		"session":  toSessionResponse(v),
	})
}

// BulkStatus handles POST /outlets/{oid}/sessions/{sid}/items/status.
func (h *SessionHandler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.TempIDs) == 0 || req.Status == "" {
		badRequest(w, "temp_ids and status are required")
		return
	}
	res, v, err := h.svc.BulkStatus(r.Context(), chi.URLParam(r, "sid"), req.TempIDs, req.Status)
	if err != nil {
		writeError(w, "bulk status", err)
		return
	}
	skipped, dataErrors := res.Skipped, res.DataErrors
	if skipped == nil {
		skipped = []string{}
	}
	if dataErrors == nil {
		dataErrors = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcomes":    toOutcomeResponses(res.Outcomes),
		"skipped":     skipped,
		"data_errors": dataErrors,
		"session":     toSessionResponse(v),
	})
}

// StatusOptions handles GET /outlets/{oid}/sessions/{sid}/items/status-options?temp_id=...
func (h *SessionHandler) StatusOptions(w http.ResponseWriter, r *http.Request) {
	targets, err := h.svc.StatusOptions(chi.URLParam(r, "sid"), r.URL.Query()["temp_id"])
	if err != nil {
		writeError(w, "status options", err)
		return
	}
	if targets == nil {
		targets = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"statuses": targets})
}

// --- Pricing and payment ---

// SetPricing handles PUT /outlets/{oid}/sessions/{sid}/pricing.
func (h *SessionHandler) SetPricing(w http.ResponseWriter, r *http.Request) {
	var req pricingRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := req.update()
	if err != nil {
		writeError(w, "set pricing", err)
		return
	}
	v, err := h.svc.SetPricing(chi.URLParam(r, "sid"), u)
	respond(w, "set pricing", v, err)
}

// SetSelection handles PUT /outlets/{oid}/sessions/{sid}/selection.
func (h *SessionHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req tempIDsRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.svc.SetSelection(chi.URLParam(r, "sid"), req.TempIDs)
	respond(w, "set selection", v, err)
}

// AddSplit handles POST /outlets/{oid}/sessions/{sid}/splits.
func (h *SessionHandler) AddSplit(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.AddSplit(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, "add split", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(v))
}

// UpdateSplit handles PUT /outlets/{oid}/sessions/{sid}/splits/{spid}.
// The account is changed before the amount; clamped reports an amount cut
// down to what the order still needs.
func (h *SessionHandler) UpdateSplit(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Amount == nil && req.FinancialAccountID == nil {
		badRequest(w, "amount or financial_account_id is required")
		return
	}
	sid, spid := chi.URLParam(r, "sid"), chi.URLParam(r, "spid")

	var (
		v   service.View
		res service.SplitResult
		err error
	)
	if req.FinancialAccountID != nil {
		if v, err = h.svc.SetSplitAccount(sid, spid, *req.FinancialAccountID); err != nil {
			writeError(w, "set split account", err)
			return
		}
	}
	if req.Amount != nil {
		amount, err := parseAmount("amount", *req.Amount)
		if err != nil {
			writeError(w, "set split amount", err)
			return
		}
		if res, v, err = h.svc.SetSplitAmount(sid, spid, amount); err != nil {
			writeError(w, "set split amount", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clamped": res.Clamped,
		"session": toSessionResponse(v),
	})
}

// RemoveSplit handles DELETE /outlets/{oid}/sessions/{sid}/splits/{spid}.
func (h *SessionHandler) RemoveSplit(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.RemoveSplit(chi.URLParam(r, "sid"), chi.URLParam(r, "spid"))
	respond(w, "remove split", v, err)
}

// SetCustomerPaid handles PUT /outlets/{oid}/sessions/{sid}/customer-paid.
func (h *SessionHandler) SetCustomerPaid(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, "set customer paid", err)
		return
	}
	v, err := h.svc.SetCustomerPaid(chi.URLParam(r, "sid"), amount)
	respond(w, "set customer paid", v, err)
}

// Checkout handles POST /outlets/{oid}/sessions/{sid}/checkout.
func (h *SessionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decode(w, r, &req) {
		return
	}
	rc, v, err := h.svc.Checkout(r.Context(), chi.URLParam(r, "sid"), service.CheckoutRequest{
		Notes:            req.Notes,
		CashWithDelivery: req.CashWithDelivery,
	})
	if err != nil {
		writeError(w, "checkout", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"receipt": rc,
		"session": toSessionResponse(v),
	})
}

// --- Offers ---

// ValidateOffer handles POST /outlets/{oid}/sessions/{sid}/offers.
func (h *SessionHandler) ValidateOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.svc.ValidateOffer(r.Context(), chi.URLParam(r, "sid"), req.Code)
	respond(w, "validate offer", v, err)
}

// ApproveOffer handles POST /outlets/{oid}/sessions/{sid}/offers/approve.
func (h *SessionHandler) ApproveOffer(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.ApproveOffer(r.Context(), chi.URLParam(r, "sid"))
	respond(w, "approve offer", v, err)
}

// DiscardOffer handles DELETE /outlets/{oid}/sessions/{sid}/offers.
func (h *SessionHandler) DiscardOffer(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.DiscardOffer(chi.URLParam(r, "sid"))
	respond(w, "discard offer", v, err)
}

// --- Table transfer ---

// StartTransfer handles POST /outlets/{oid}/sessions/{sid}/transfer.
func (h *SessionHandler) StartTransfer(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.StartTransfer(r.Context(), chi.URLParam(r, "sid"))
	respond(w, "start transfer", v, err)
}

// ClearTransfer handles DELETE /outlets/{oid}/sessions/{sid}/transfer.
func (h *SessionHandler) ClearTransfer(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.ClearTransfer(r.Context(), chi.URLParam(r, "sid"))
	respond(w, "clear transfer", v, err)
}
