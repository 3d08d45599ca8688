// Package cart owns the ordered line items of one table or session.
//
// Cart is a value: every mutating method returns a new Cart and leaves the
// receiver untouched, so a snapshot handed to pricing or to a pending
// backend call can never change underneath it.
package cart

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kiwari-pos/cashier/internal/apperr"
	"github.com/kiwari-pos/cashier/internal/enum"
	"github.com/kiwari-pos/cashier/internal/item"
	"github.com/kiwari-pos/cashier/internal/offer"
	"github.com/shopspring/decimal"
)

// Errors returned by cart operations.
var (
	ErrItemNotFound         = apperr.New(apperr.KindNotFound, "item not found in cart")
	ErrDuplicateTempID      = apperr.New(apperr.KindValidation, "item already in cart")
	ErrInvalidQuantity      = apperr.New(apperr.KindValidation, "quantity must be > 0")
	ErrInvalidItem          = apperr.New(apperr.KindValidation, "invalid item")
	ErrDoneItemLocked       = apperr.New(apperr.KindValidation, "item is already done and cannot be removed")
	ErrMissingCredentials   = apperr.New(apperr.KindValidation, "manager id and password are required")
	ErrMissingCartReference = apperr.New(apperr.KindDataIntegrity, "item has no cart reference")
	ErrVoidAuthorization    = apperr.New(apperr.KindAuthorization, "void authorization failed")
)

// Cart is an immutable snapshot of an order's line items.
type Cart struct {
	OrderType string
	TableID   string
	items     []item.LineItem
}

// New creates an empty cart for the given order context.
func New(orderType, tableID string) Cart {
	return Cart{OrderType: orderType, TableID: tableID}
}

// FromItems creates a cart pre-filled with items, e.g. hydrated from the
// backend. Items get fresh TempIDs when they have none.
func FromItems(orderType, tableID string, items []item.LineItem) (Cart, error) {
	c := New(orderType, tableID)
	for i, li := range items {
		next, err := c.Add(li)
		if err != nil {
			return Cart{}, fmt.Errorf("item[%d]: %w", i, err)
		}
		c = next
	}
	return c, nil
}

// Items returns a copy of the line items in order.
func (c Cart) Items() []item.LineItem {
	out := make([]item.LineItem, len(c.items))
	for i, li := range c.items {
		out[i] = li.Clone()
	}
	return out
}

// Len is the number of line items.
func (c Cart) Len() int { return len(c.items) }

// Find returns the item with tempID.
func (c Cart) Find(tempID string) (item.LineItem, bool) {
	if i := c.index(tempID); i >= 0 {
		return c.items[i].Clone(), true
	}
	return item.LineItem{}, false
}

func (c Cart) index(tempID string) int {
	for i, li := range c.items {
		if li.TempID == tempID {
			return i
		}
	}
	return -1
}

// with returns a copy of c whose item slice is private to the copy.
func (c Cart) with(items []item.LineItem) Cart {
	return Cart{OrderType: c.OrderType, TableID: c.TableID, items: items}
}

func (c Cart) copyItems() []item.LineItem {
	out := make([]item.LineItem, len(c.items), len(c.items)+1)
	copy(out, c.items)
	return out
}

// Add appends li, assigning a TempID when absent. New items start pending.
func (c Cart) Add(li item.LineItem) (Cart, error) {
	if li.TempID == "" {
		li.TempID = uuid.NewString()
	} else if c.index(li.TempID) >= 0 {
		return c, ErrDuplicateTempID
	}
	if li.Quantity <= 0 {
		return c, ErrInvalidQuantity
	}
	if li.WeightTracked && !li.Weight.IsPositive() {
		return c, apperr.Wrap(apperr.KindValidation, ErrInvalidQuantity, "weight must be > 0")
	}
	if err := item.Validate(li); err != nil {
		return c, apperr.Wrap(apperr.KindValidation, ErrInvalidItem, err.Error())
	}
	if li.Status == "" {
		li.Status = enum.PrepStatusPending
	}

	items := c.copyItems()
	items = append(items, li.Clone())
	return c.with(items), nil
}

// Increment raises the quantity of tempID by one.
func (c Cart) Increment(tempID string) (Cart, error) {
	i := c.index(tempID)
	if i < 0 {
		return c, ErrItemNotFound
	}
	items := c.copyItems()
	items[i].Quantity++
	return c.with(items), nil
}

// Decrement lowers the quantity of tempID by one. Going below one removes
// the item, unless it is done: served items are never erased this way and
// keep their last quantity.
func (c Cart) Decrement(tempID string) (Cart, error) {
	i := c.index(tempID)
	if i < 0 {
		return c, ErrItemNotFound
	}
	return c.setQuantityAt(i, c.items[i].Quantity-1)
}

// SetQuantity sets an absolute quantity. Zero or less removes the item with
// the same done-status guard as Decrement.
func (c Cart) SetQuantity(tempID string, qty int) (Cart, error) {
	i := c.index(tempID)
	if i < 0 {
		return c, ErrItemNotFound
	}
	return c.setQuantityAt(i, qty)
}

func (c Cart) setQuantityAt(i, qty int) (Cart, error) {
	if qty < 1 {
		if c.items[i].Status == enum.PrepStatusDone {
			return c, ErrDoneItemLocked
		}
		return c.removeAt(i), nil
	}
	items := c.copyItems()
	items[i].Quantity = qty
	return c.with(items), nil
}

func (c Cart) removeAt(i int) Cart {
	items := make([]item.LineItem, 0, len(c.items)-1)
	items = append(items, c.items[:i]...)
	items = append(items, c.items[i+1:]...)
	return c.with(items)
}

// Remove drops tempID unconditionally. Callers needing authorization use Void.
func (c Cart) Remove(tempID string) (Cart, error) {
	i := c.index(tempID)
	if i < 0 {
		return c, ErrItemNotFound
	}
	return c.removeAt(i), nil
}

// SetStatuses commits preparation statuses keyed by TempID. Unknown TempIDs
// are ignored: the item may have been voided while its update was in flight.
func (c Cart) SetStatuses(statuses map[string]string) Cart {
	if len(statuses) == 0 {
		return c
	}
	items := c.copyItems()
	for i := range items {
		if s, ok := statuses[items[i].TempID]; ok {
			items[i].Status = s
		}
	}
	return c.with(items)
}

// SetCartID records the backend cart reference of tempID.
func (c Cart) SetCartID(tempID, cartID string) (Cart, error) {
	i := c.index(tempID)
	if i < 0 {
		return c, ErrItemNotFound
	}
	items := c.copyItems()
	items[i].CartID = cartID
	return c.with(items), nil
}

// ApplyReward appends the approved offer as a free reward item.
func (c Cart) ApplyReward(p offer.PendingApproval) (Cart, item.LineItem, error) {
	li := item.LineItem{
		TempID:    uuid.NewString(),
		SourceID:  p.ProductID,
		Name:      p.ProductName,
		BasePrice: decimal.Zero,
		Quantity:  1,
		Status:    enum.PrepStatusPending,
		IsReward:  true,
	}
	next, err := c.Add(li)
	if err != nil {
		return c, item.LineItem{}, err
	}
	return next, li, nil
}

// Payable returns the selected items that are done, in cart order. Only
// served items can be settled separately on a dine-in table.
func (c Cart) Payable(tempIDs []string) []item.LineItem {
	if len(tempIDs) == 0 {
		return nil
	}
	selected := make(map[string]bool, len(tempIDs))
	for _, id := range tempIDs {
		selected[id] = true
	}
	var out []item.LineItem
	for _, li := range c.items {
		if selected[li.TempID] && li.Status == enum.PrepStatusDone {
			out = append(out, li.Clone())
		}
	}
	return out
}
