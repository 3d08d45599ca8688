package service

import (
	"github.com/kiwari-pos/cashier/internal/checkout"
	"github.com/kiwari-pos/cashier/internal/item"
	"github.com/kiwari-pos/cashier/internal/offer"
	"github.com/kiwari-pos/cashier/internal/payment"
	"github.com/kiwari-pos/cashier/internal/pricing"
	"github.com/kiwari-pos/cashier/internal/session"
	"github.com/shopspring/decimal"
)

// View is a consistent snapshot of one session.
type View struct {
	ID        string
	Room      string
	Session   session.Values
	OrderType string
	Items     []item.LineItem
	Busy      map[string]bool
	Selection []string

	ServiceFee  pricing.ServiceFee
	Discount    pricing.Discount
	DeliveryFee decimal.Decimal
	Totals      pricing.Totals

	Accounts     []payment.Account
	Splits       []payment.Split
	Settled      bool
	Remaining    decimal.Decimal
	ChangeDue    decimal.Decimal
	CashChange   decimal.Decimal
	PaymentState payment.State
	LastError    string

	PendingOffer *offer.PendingApproval
	Paid         bool
	Receipt      *checkout.Receipt
}

// view snapshots o. Caller holds c.mu.
func (c *Cashier) view(o *order) View {
	v := View{
		ID:           o.id,
		Room:         o.room,
		Session:      o.vals,
		OrderType:    o.cart.OrderType,
		Items:        o.cart.Items(),
		Busy:         make(map[string]bool),
		Selection:    append([]string(nil), o.selection...),
		ServiceFee:   o.serviceFee,
		Discount:     o.discount,
		DeliveryFee:  o.deliveryFee,
		Totals:       o.totals,
		Accounts:     o.payment.Accounts(),
		Splits:       o.payment.Splits(),
		Settled:      o.payment.IsSettled(),
		Remaining:    o.payment.Remaining(),
		ChangeDue:    o.payment.ChangeDue(),
		CashChange:   o.payment.CashChange(),
		PaymentState: o.payment.State(),
		Paid:         o.paid,
		Receipt:      o.receipt,
	}
	for _, li := range v.Items {
		if o.locked(li.TempID) != nil || c.machine.Busy(li.TempID) {
			v.Busy[li.TempID] = true
		}
	}
	if err := o.payment.LastError(); err != nil {
		v.LastError = err.Error()
	}
	if p, ok := o.offers.Pending(); ok {
		v.PendingOffer = &p
	}
	return v
}
