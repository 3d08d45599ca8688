// Package checkout converts a priced, paid cart into the backend's checkout
// payload and submits it.
//
// Build is the only place where domain values become wire values: amounts
// are rendered with exactly two decimals, ids and counts keep their types.
package checkout

import (
	"github.com/kiwari-pos/cashier/internal/apperr"
	"github.com/kiwari-pos/cashier/internal/cart"
	"github.com/kiwari-pos/cashier/internal/enum"
	"github.com/kiwari-pos/cashier/internal/item"
	"github.com/kiwari-pos/cashier/internal/money"
	"github.com/kiwari-pos/cashier/internal/payment"
	"github.com/kiwari-pos/cashier/internal/pricing"
)

// Errors returned by Build.
var (
	ErrInvalidOrderType     = apperr.New(apperr.KindValidation, "invalid order_type")
	ErrMissingCashier       = apperr.New(apperr.KindValidation, "cashier is required")
	ErrMissingTable         = apperr.New(apperr.KindValidation, "table is required for dine-in orders")
	ErrMissingCustomer      = apperr.New(apperr.KindValidation, "user and address are required for delivery orders")
	ErrNegativePayable      = apperr.New(apperr.KindValidation, "amount to pay must not be negative")
	ErrEmptyOrder           = apperr.New(apperr.KindValidation, "there is nothing to pay for")
	ErrNoSplits             = apperr.New(apperr.KindValidation, "at least one payment is required")
	ErrMissingCartReference = apperr.New(apperr.KindDataIntegrity, "item has no cart reference")
)

// Financial is one payment split on the wire.
type Financial struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
}

// AddonEntry is one addon of a product entry.
type AddonEntry struct {
	AddonID string `json:"addon_id"`
	Count   int    `json:"count"`
}

// VariationEntry is the selection for one variation group.
type VariationEntry struct {
	VariationID string   `json:"variation_id"`
	OptionIDs   []string `json:"option_id"`
}

// Product is one line item on the wire.
type Product struct {
	ProductID string           `json:"product_id"`
	Count     int              `json:"count"`
	Weight    string           `json:"weight,omitempty"`
	Note      string           `json:"note"`
	Addons    []AddonEntry     `json:"addons"`
	Variation []VariationEntry `json:"variation"`
	ExcludeID []string         `json:"exclude_id"`
	ExtraID   []string         `json:"extra_id"`
	IsReward  bool             `json:"is_reward,omitempty"`
}

// Payload is the checkout request body.
type Payload struct {
	Amount        string      `json:"amount"`
	TotalTax      string      `json:"total_tax"`
	TotalDiscount string      `json:"total_discount"`
	Notes         string      `json:"notes"`
	Source        string      `json:"source"`
	OrderType     string      `json:"order_type"`
	Financials    []Financial `json:"financials"`
	CashierID     string      `json:"cashier_id"`
	Products      []Product   `json:"products"`

	// dine-in
	TableID string   `json:"table_id,omitempty"`
	CartIDs []string `json:"cart_id,omitempty"`

	// delivery
	AddressID        string `json:"address_id,omitempty"`
	UserID           string `json:"user_id,omitempty"`
	CashWithDelivery *bool  `json:"cash_with_delivery,omitempty"`
}

// Request is everything Build needs.
type Request struct {
	Cart   cart.Cart
	Totals pricing.Totals
	Splits []payment.Split

	CashierID        string
	TableID          string
	UserID           string
	AddressID        string
	CashWithDelivery bool
	Notes            string
	Source           string
}

// Build validates req and converts it into a Payload. For a dine-in partial
// settlement only the settled items are sent.
func Build(req Request) (Payload, error) {
	orderType := req.Cart.OrderType
	if !enum.IsOrderType(orderType) {
		return Payload{}, ErrInvalidOrderType
	}
	if req.CashierID == "" {
		return Payload{}, ErrMissingCashier
	}
	if req.Totals.AmountToPay.IsNegative() {
		return Payload{}, ErrNegativePayable
	}

	items := req.Cart.Items()
	if req.Totals.Partial {
		items = req.Cart.Payable(req.Totals.SettledItems)
	}
	if len(items) == 0 {
		return Payload{}, ErrEmptyOrder
	}

	financials := make([]Financial, 0, len(req.Splits))
	for _, s := range req.Splits {
		if s.Amount.IsZero() {
			continue
		}
		financials = append(financials, Financial{ID: s.FinancialAccountID, Amount: money.Format(s.Amount)})
	}
	if len(financials) == 0 {
		return Payload{}, ErrNoSplits
	}

	p := Payload{
		Amount:        money.Format(req.Totals.AmountToPay),
		TotalTax:      money.Format(req.Totals.PayableTax),
		TotalDiscount: money.Format(req.Totals.Discount),
		Notes:         req.Notes,
		Source:        req.Source,
		OrderType:     orderType,
		Financials:    financials,
		CashierID:     req.CashierID,
		Products:      make([]Product, len(items)),
	}
	for i, li := range items {
		p.Products[i] = ProductOf(li)
	}

	switch orderType {
	case enum.OrderTypeDineIn:
		tableID := req.TableID
		if tableID == "" {
			tableID = req.Cart.TableID
		}
		if tableID == "" {
			return Payload{}, ErrMissingTable
		}
		p.TableID = tableID
		for _, li := range items {
			ids := li.CartIDs()
			if len(ids) == 0 {
				return Payload{}, apperr.Wrapf(apperr.KindDataIntegrity, ErrMissingCartReference,
					"item %s has no cart reference", li.Name)
			}
			p.CartIDs = append(p.CartIDs, ids...)
		}
	case enum.OrderTypeDelivery:
		if req.UserID == "" || req.AddressID == "" {
			return Payload{}, ErrMissingCustomer
		}
		p.UserID = req.UserID
		p.AddressID = req.AddressID
		cwd := req.CashWithDelivery
		p.CashWithDelivery = &cwd
	}

	return p, nil
}

// --- Helpers ---

// ProductOf converts li into its wire form.
func ProductOf(li item.LineItem) Product {
	p := Product{
		ProductID: li.SourceID,
		Count:     li.Quantity,
		Note:      li.Note,
		Addons:    []AddonEntry{},
		Variation: []VariationEntry{},
		ExcludeID: []string{},
		ExtraID:   []string{},
		IsReward:  li.IsReward,
	}
	if li.WeightTracked {
		p.Weight = li.Weight.String()
	}
	for _, m := range li.Modifiers {
		switch mod := m.(type) {
		case item.VariationSelection:
			ids := make([]string, len(mod.Options))
			for i, opt := range mod.Options {
				ids[i] = opt.ID
			}
			p.Variation = append(p.Variation, VariationEntry{VariationID: mod.VariationID, OptionIDs: ids})
		case item.Addon:
			p.Addons = append(p.Addons, AddonEntry{AddonID: mod.ID, Count: mod.Count})
		case item.Extra:
			p.ExtraID = append(p.ExtraID, mod.ID)
		case item.Exclude:
			p.ExcludeID = append(p.ExcludeID, mod.ID)
		}
	}
	return p
}
