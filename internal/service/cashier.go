package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/kiwari-pos/cashier/internal/apperr"
	"github.com/kiwari-pos/cashier/internal/cart"
	"github.com/kiwari-pos/cashier/internal/checkout"
	"github.com/kiwari-pos/cashier/internal/enum"
	"github.com/kiwari-pos/cashier/internal/item"
	"github.com/kiwari-pos/cashier/internal/money"
	"github.com/kiwari-pos/cashier/internal/notify"
	"github.com/kiwari-pos/cashier/internal/offer"
	"github.com/kiwari-pos/cashier/internal/payment"
	"github.com/kiwari-pos/cashier/internal/prep"
	"github.com/kiwari-pos/cashier/internal/pricing"
	"github.com/kiwari-pos/cashier/internal/session"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Errors returned by the cashier service.
var (
	ErrSessionNotFound  = apperr.New(apperr.KindNotFound, "session not found")
	ErrInvalidOrderType = apperr.New(apperr.KindValidation, "invalid order_type")
	ErrMissingCashier   = apperr.New(apperr.KindValidation, "cashier is required")
	ErrItemVoiding      = apperr.New(apperr.KindValidation, "item has a void in progress")
	ErrOrderPaid        = apperr.New(apperr.KindValidation, "order is already paid")
	ErrNoTable          = apperr.New(apperr.KindValidation, "session has no table")
	ErrItemSaving       = apperr.New(apperr.KindValidation, "item is still being saved")
	ErrHydrate          = apperr.New(apperr.KindSync, "failed to load table order")
	ErrSaveItem         = apperr.New(apperr.KindSync, "failed to save item to the table order")
)

// TableOrderLoader loads the items already ordered on a table.
type TableOrderLoader interface {
	TableOrder(ctx context.Context, tableID string) ([]item.LineItem, error)
}

// AccountLister lists the financial accounts payments can be booked to.
type AccountLister interface {
	ListFinancialAccounts(ctx context.Context) ([]payment.Account, error)
}

// CartItemSaver saves an item on a table's order and returns its cart row id.
type CartItemSaver interface {
	AddCartItem(ctx context.Context, tableID string, li item.LineItem) (string, error)
}

// Backend is every backend collaborator the cashier needs.
// Satisfied by *backend.Client.
type Backend interface {
	cart.VoidAuthorizer
	prep.StatusSyncer
	offer.Validator
	offer.Approver
	checkout.Submitter
	TableOrderLoader
	CartItemSaver
	AccountLister
}

// Defaults are the outlet-wide pricing settings applied to new sessions.
type Defaults struct {
	ServiceFee pricing.ServiceFee
	Source     string
	// Accounts are used when the backend cannot list financial accounts.
	Accounts []payment.Account
}

// OpenRequest starts a session.
type OpenRequest struct {
	Room        string
	CashierID   string
	OrderType   string
	TableID     string
	UserID      string
	AddressID   string
	DeliveryFee decimal.Decimal
}

// order is the state of one session. Guarded by Cashier.mu.
type order struct {
	id   string
	room string
	sc   *session.Context
	vals session.Values

	cart        cart.Cart
	serviceFee  pricing.ServiceFee
	discount    pricing.Discount
	deliveryFee decimal.Decimal
	selection   []string
	totals      pricing.Totals

	payment *payment.Reconciler
	offers  offer.Stage
	voiding map[string]bool
	saving  map[string]bool
	paid    bool
	receipt *checkout.Receipt
}

// Cashier owns the open sessions. Its mutex is held only to read or commit
// session state, never across a backend call.
type Cashier struct {
	backend  Backend
	store    session.Store
	events   notify.Publisher
	machine  *prep.Machine
	defaults Defaults

	mu     sync.Mutex
	orders map[string]*order
}

// NewCashier creates a Cashier.
func NewCashier(b Backend, store session.Store, events notify.Publisher, defaults Defaults) *Cashier {
	if events == nil {
		events = notify.Nop{}
	}
	return &Cashier{
		backend:  b,
		store:    store,
		events:   events,
		machine:  prep.NewMachine(b),
		defaults: defaults,
		orders:   make(map[string]*order),
	}
}

// Open starts a session. A dine-in session on a table is hydrated with the
// table's existing order; financial accounts are loaded concurrently.
func (c *Cashier) Open(ctx context.Context, req OpenRequest) (View, error) {
	if !enum.IsOrderType(req.OrderType) {
		return View{}, ErrInvalidOrderType
	}
	if req.CashierID == "" {
		return View{}, ErrMissingCashier
	}
	if req.DeliveryFee.IsNegative() {
		return View{}, pricing.ErrNegativeFee
	}

	var (
		items    []item.LineItem
		accounts []payment.Account
	)
	g, gctx := errgroup.WithContext(ctx)
	if req.OrderType == enum.OrderTypeDineIn && req.TableID != "" {
		g.Go(func() error {
			var err error
			items, err = c.backend.TableOrder(gctx, req.TableID)
			if err != nil {
				log.Printf("ERROR: hydrate table %s: %v", req.TableID, err)
				return apperr.Wrap(apperr.KindSync, ErrHydrate, apperr.MessageOf(err, ErrHydrate.Message))
			}
			return nil
		})
	}
	g.Go(func() error {
		list, err := c.backend.ListFinancialAccounts(gctx)
		if err != nil || len(list) == 0 {
			if err != nil {
				log.Printf("WARN: list financial accounts: %v, using defaults", err)
			}
			list = c.defaults.Accounts
		}
		accounts = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return View{}, err
	}

	crt, err := cart.FromItems(req.OrderType, req.TableID, items)
	if err != nil {
		return View{}, fmt.Errorf("hydrate table %s: %w", req.TableID, err)
	}

	id := uuid.NewString()
	sc := session.NewContext(c.store, id)
	vals := session.Values{
		TableID:   req.TableID,
		UserID:    req.UserID,
		AddressID: req.AddressID,
		CashierID: req.CashierID,
		OrderType: req.OrderType,
	}
	if err := writeValues(ctx, sc, vals); err != nil {
		return View{}, err
	}

	o := &order{
		id:          id,
		room:        req.Room,
		sc:          sc,
		vals:        vals,
		cart:        crt,
		serviceFee:  c.defaults.ServiceFee,
		deliveryFee: req.DeliveryFee,
		payment:     payment.NewReconciler(decimal.Zero, accounts),
		voiding:     make(map[string]bool),
		saving:      make(map[string]bool),
	}
	o.refresh()

	c.mu.Lock()
	c.orders[id] = o
	v := c.view(o)
	c.mu.Unlock()
	return v, nil
}

func writeValues(ctx context.Context, sc *session.Context, v session.Values) error {
	if err := sc.SetOrderType(ctx, v.OrderType); err != nil {
		return err
	}
	if err := sc.SetCashierID(ctx, v.CashierID); err != nil {
		return err
	}
	if err := sc.SetTableID(ctx, v.TableID); err != nil {
		return err
	}
	if err := sc.SetUserID(ctx, v.UserID); err != nil {
		return err
	}
	return sc.SetAddressID(ctx, v.AddressID)
}

// Get returns the current view of a session.
func (c *Cashier) Get(id string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[id]
	if !ok {
		return View{}, ErrSessionNotFound
	}
	return c.view(o), nil
}

// Close ends a session and clears its scratch keys.
func (c *Cashier) Close(ctx context.Context, id string) error {
	c.mu.Lock()
	o, ok := c.orders[id]
	delete(c.orders, id)
	c.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return o.sc.Clear(ctx)
}

// StartTransfer marks the session's table as being moved. The marker is
// kept in the scratch store until ClearTransfer.
func (c *Cashier) StartTransfer(ctx context.Context, id string) (View, error) {
	c.mu.Lock()
	o, ok := c.orders[id]
	if !ok {
		c.mu.Unlock()
		return View{}, ErrSessionNotFound
	}
	sc, table := o.sc, o.vals.TableID
	c.mu.Unlock()

	if table == "" {
		return View{}, ErrNoTable
	}
	if err := sc.MarkTransfer(ctx, table); err != nil {
		return View{}, err
	}
	return c.update(id, func(o *order) error {
		o.vals.TransferFromTable = table
		return nil
	})
}

// ClearTransfer drops the table-transfer marker.
func (c *Cashier) ClearTransfer(ctx context.Context, id string) (View, error) {
	c.mu.Lock()
	o, ok := c.orders[id]
	c.mu.Unlock()
	if !ok {
		return View{}, ErrSessionNotFound
	}
	if err := o.sc.ClearTransfer(ctx); err != nil {
		return View{}, err
	}
	return c.update(id, func(o *order) error {
		o.vals.TransferFromTable = ""
		return nil
	})
}

// --- Helpers ---

// update runs fn on session id under the lock and returns the new view.
// fn's error aborts without refreshing.
func (c *Cashier) update(id string, fn func(o *order) error) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[id]
	if !ok {
		return View{}, ErrSessionNotFound
	}
	if err := fn(o); err != nil {
		return View{}, err
	}
	o.refresh()
	return c.view(o), nil
}

// editable rejects changes while a checkout is in flight or after payment.
func (o *order) editable() error {
	if o.paid {
		return ErrOrderPaid
	}
	if o.payment.State() == payment.StateSubmitting {
		return payment.ErrNotEditable
	}
	return nil
}

// locked rejects edits to an item with a void or save in flight.
func (o *order) locked(tempID string) error {
	if o.voiding[tempID] {
		return ErrItemVoiding
	}
	if o.saving[tempID] {
		return ErrItemSaving
	}
	return nil
}

// refresh re-derives the totals and keeps the reconciler's amount due in step.
func (o *order) refresh() {
	o.totals = pricing.Compute(o.pricingInput())
	if o.payment.State() == payment.StateEditing {
		_ = o.payment.SetRequiredTotal(money.NonNegative(o.totals.AmountToPay))
	}
}

func (o *order) pricingInput() pricing.Input {
	return pricing.Input{
		Cart:        o.cart,
		OrderType:   o.cart.OrderType,
		ServiceFee:  o.serviceFee,
		Discount:    o.discount,
		DeliveryFee: o.deliveryFee,
		Selection:   o.selection,
	}
}

func (c *Cashier) publish(ctx context.Context, room, typ string, payload any) {
	e, err := notify.NewEvent(typ, room, payload)
	if err != nil {
		log.Printf("ERROR: %v", err)
		return
	}
	if err := c.events.Publish(ctx, e); err != nil {
		log.Printf("WARN: publish %s to %s: %v", typ, room, err)
	}
}
