package service

import (
	"context"
	"log"

	"github.com/kiwari-pos/cashier/internal/checkout"
	"github.com/kiwari-pos/cashier/internal/money"
	"github.com/kiwari-pos/cashier/internal/notify"
	"github.com/kiwari-pos/cashier/internal/payment"
	"github.com/kiwari-pos/cashier/internal/pricing"
	"github.com/shopspring/decimal"
)

// PricingUpdate changes the pricing configuration of a session. Nil fields
// are left unchanged.
type PricingUpdate struct {
	ServiceFee  *pricing.ServiceFee
	Discount    *pricing.Discount
	DeliveryFee *decimal.Decimal
}

// SplitResult reports a split amount change.
type SplitResult struct {
	Applied decimal.Decimal
	Clamped bool
}

// CheckoutRequest carries the per-submission fields.
type CheckoutRequest struct {
	Notes string
	// CashWithDelivery marks a delivery paid in cash to the driver.
	CashWithDelivery bool
}

type paidPayload struct {
	SessionID   string   `json:"session_id"`
	TableID     string   `json:"table_id,omitempty"`
	OrderID     string   `json:"order_id"`
	OrderNumber string   `json:"order_number,omitempty"`
	Amount      string   `json:"amount"`
	Partial     bool     `json:"partial"`
	Items       []string `json:"items,omitempty"`
}

// SetPricing updates the fee and discount configuration.
func (c *Cashier) SetPricing(id string, u PricingUpdate) (View, error) {
	return c.update(id, func(o *order) error {
		if err := o.editable(); err != nil {
			return err
		}
		in := o.pricingInput()
		if u.ServiceFee != nil {
			in.ServiceFee = *u.ServiceFee
		}
		if u.Discount != nil {
			in.Discount = *u.Discount
		}
		if u.DeliveryFee != nil {
			in.DeliveryFee = *u.DeliveryFee
		}
		if err := in.Validate(); err != nil {
			return err
		}
		o.serviceFee, o.discount, o.deliveryFee = in.ServiceFee, in.Discount, in.DeliveryFee
		return nil
	})
}

// SetSelection picks the items to settle now on a dine-in table. Only done
// items count; an empty selection pays the whole order.
func (c *Cashier) SetSelection(id string, tempIDs []string) (View, error) {
	return c.update(id, func(o *order) error {
		if err := o.editable(); err != nil {
			return err
		}
		o.selection = append([]string(nil), tempIDs...)
		return nil
	})
}

// AddSplit adds a payment split pre-filled with the remaining amount.
func (c *Cashier) AddSplit(id string) (View, error) {
	return c.update(id, func(o *order) error {
		if o.paid {
			return ErrOrderPaid
		}
		_, err := o.payment.AddSplit()
		return err
	})
}

// SetSplitAmount sets a split's amount, clamped to the remaining headroom.
func (c *Cashier) SetSplitAmount(id, splitID string, amount decimal.Decimal) (SplitResult, View, error) {
	var res SplitResult
	v, err := c.update(id, func(o *order) error {
		if o.paid {
			return ErrOrderPaid
		}
		applied, clamped, err := o.payment.SetSplitAmount(splitID, amount)
		res = SplitResult{Applied: applied, Clamped: clamped}
		return err
	})
	return res, v, err
}

// SetSplitAccount books a split to a financial account.
func (c *Cashier) SetSplitAccount(id, splitID, accountID string) (View, error) {
	return c.update(id, func(o *order) error {
		if o.paid {
			return ErrOrderPaid
		}
		return o.payment.SetSplitAccount(splitID, accountID)
	})
}

// RemoveSplit drops a payment split.
func (c *Cashier) RemoveSplit(id, splitID string) (View, error) {
	return c.update(id, func(o *order) error {
		if o.paid {
			return ErrOrderPaid
		}
		return o.payment.RemoveSplit(splitID)
	})
}

// SetCustomerPaid records the cash handed over, for the change figure.
func (c *Cashier) SetCustomerPaid(id string, amount decimal.Decimal) (View, error) {
	return c.update(id, func(o *order) error {
		return o.payment.SetCustomerPaid(amount)
	})
}

// Checkout submits the payment. A dine-in partial settlement removes the
// settled items and leaves the session open for the rest of the table; a
// full payment marks the session paid. A failed submission leaves the
// splits in place for a retry.
func (c *Cashier) Checkout(ctx context.Context, id string, req CheckoutRequest) (checkout.Receipt, View, error) {
	c.mu.Lock()
	o, ok := c.orders[id]
	if !ok {
		c.mu.Unlock()
		return checkout.Receipt{}, View{}, ErrSessionNotFound
	}
	if o.paid {
		c.mu.Unlock()
		return checkout.Receipt{}, View{}, ErrOrderPaid
	}

	if _, err := o.payment.Begin(); err != nil {
		c.mu.Unlock()
		return checkout.Receipt{}, View{}, err
	}
	totals := o.totals
	p, err := checkout.Build(checkout.Request{
		Cart:             o.cart,
		Totals:           totals,
		Splits:           o.payment.Splits(),
		CashierID:        o.vals.CashierID,
		TableID:          o.vals.TableID,
		UserID:           o.vals.UserID,
		AddressID:        o.vals.AddressID,
		CashWithDelivery: req.CashWithDelivery,
		Notes:            req.Notes,
		Source:           c.defaults.Source,
	})
	if err != nil {
		o.payment.Finish(err)
		c.mu.Unlock()
		return checkout.Receipt{}, View{}, err
	}
	room, tableID := o.room, o.vals.TableID
	c.mu.Unlock()

	rc, sendErr := checkout.Send(ctx, c.backend, p)

	v, err := c.update(id, func(o *order) error {
		o.payment.Finish(sendErr)
		if sendErr != nil {
			return sendErr
		}
		o.settle(totals, rc)
		return nil
	})
	if err != nil {
		return checkout.Receipt{}, v, err
	}

	c.publish(ctx, room, notify.TypeOrderPaid, paidPayload{
		SessionID:   id,
		TableID:     tableID,
		OrderID:     rc.OrderID,
		OrderNumber: rc.OrderNumber,
		Amount:      money.Format(totals.AmountToPay),
		Partial:     totals.Partial,
		Items:       totals.SettledItems,
	})
	return rc, v, nil
}

// settle records a successful checkout of totals.
func (o *order) settle(totals pricing.Totals, rc checkout.Receipt) {
	o.receipt = &rc
	if !totals.Partial {
		o.paid = true
		return
	}

	for _, tempID := range totals.SettledItems {
		next, err := o.cart.Remove(tempID)
		if err != nil {
			log.Printf("WARN: settled item %s already gone from session %s", tempID, o.id)
			continue
		}
		o.cart = next
	}
	o.selection = nil
	o.payment = payment.NewReconciler(decimal.Zero, o.payment.Accounts())
}
