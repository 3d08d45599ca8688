// Package pricing derives the totals of a cart.
//
// Compute is a pure re-derivation from its input: there is no cached total
// that could go stale after the cart or the payment selection changes.
// Amounts keep full precision internally and are rounded to cents only in
// the returned Totals.
package pricing

import (
	"sort"

	"github.com/kiwari-pos/cashier/internal/apperr"
	"github.com/kiwari-pos/cashier/internal/cart"
	"github.com/kiwari-pos/cashier/internal/enum"
	"github.com/kiwari-pos/cashier/internal/item"
	"github.com/kiwari-pos/cashier/internal/money"
	"github.com/shopspring/decimal"
)

// Errors returned by configuration validation.
var (
	ErrInvalidServiceFee = apperr.New(apperr.KindValidation, "invalid service fee type")
	ErrInvalidDiscount   = apperr.New(apperr.KindValidation, "invalid discount type")
	ErrNegativeFee       = apperr.New(apperr.KindValidation, "fee must not be negative")
)

// ServiceFee is the service-fee configuration of the outlet.
type ServiceFee struct {
	Type   string
	Amount decimal.Decimal
}

// Discount is an order-level discount. A zero Value means no discount.
type Discount struct {
	Type  string
	Value decimal.Decimal
}

// Input is everything the aggregator needs.
type Input struct {
	Cart        cart.Cart
	OrderType   string
	ServiceFee  ServiceFee
	Discount    Discount
	DeliveryFee decimal.Decimal
	// Selection lists the TempIDs picked for immediate payment on a dine-in
	// table. Only done items in it count.
	Selection []string
}

// TaxLine is the tax total of one tax definition.
type TaxLine struct {
	TaxID  string
	Amount decimal.Decimal
}

// Totals is the derived pricing. All amounts are rounded to cents.
type Totals struct {
	Subtotal            decimal.Decimal
	TotalTax            decimal.Decimal
	TaxBreakdown        []TaxLine
	ServiceCharge       decimal.Decimal
	Discount            decimal.Decimal
	TotalBeforeDelivery decimal.Decimal
	DeliveryFee         decimal.Decimal
	AmountToPay         decimal.Decimal

	// PayableSubtotal, PayableTax and PayableServiceCharge describe what
	// AmountToPay covers. They equal the whole-cart figures unless Partial.
	PayableSubtotal      decimal.Decimal
	PayableTax           decimal.Decimal
	PayableServiceCharge decimal.Decimal

	// Partial is set when a dine-in payment settles only the selected done
	// items; SettledItems lists their TempIDs.
	Partial      bool
	SettledItems []string
}

// Validate checks the fee and discount configuration.
func (in Input) Validate() error {
	switch in.ServiceFee.Type {
	case "", enum.ServiceFeePercentage, enum.ServiceFeeFixed:
	default:
		return ErrInvalidServiceFee
	}
	switch in.Discount.Type {
	case "", enum.DiscountTypePercentage, enum.DiscountTypeAmount:
	default:
		return ErrInvalidDiscount
	}
	if in.ServiceFee.Amount.IsNegative() || in.DeliveryFee.IsNegative() || in.Discount.Value.IsNegative() {
		return ErrNegativeFee
	}
	return nil
}

// sums holds unrounded figures for a set of items.
type sums struct {
	subtotal decimal.Decimal
	eligible decimal.Decimal
	tax      decimal.Decimal
	byTax    map[string]decimal.Decimal
}

func sumItems(items []item.LineItem) sums {
	s := sums{
		subtotal: decimal.Zero,
		eligible: decimal.Zero,
		tax:      decimal.Zero,
		byTax:    make(map[string]decimal.Decimal),
	}
	for _, li := range items {
		line := item.LineTotal(li)
		s.subtotal = s.subtotal.Add(line)
		if !li.IsReward {
			s.eligible = s.eligible.Add(line)
		}
		tax := item.LineTax(li)
		s.tax = s.tax.Add(tax)
		if !tax.IsZero() {
			s.byTax[li.TaxID] = s.byTax[li.TaxID].Add(tax)
		}
	}
	return s
}

func (in Input) serviceFeeApplies() bool {
	if !in.ServiceFee.Amount.IsPositive() {
		return false
	}
	return in.OrderType == enum.OrderTypeDineIn || in.OrderType == enum.OrderTypeTakeAway
}

func (in Input) discountOn(eligible decimal.Decimal) decimal.Decimal {
	if !in.Discount.Value.IsPositive() {
		return decimal.Zero
	}
	if in.Discount.Type == enum.DiscountTypePercentage {
		return money.Percent(eligible, in.Discount.Value)
	}
	return in.Discount.Value
}

// Compute derives the totals of in.Cart.
//
// The service charge applies to dine-in and take-away orders: a percentage
// of subtotal+tax, or the fixed amount. The discount is taken from the
// non-reward subtotal. Delivery orders add the delivery fee. When a dine-in
// payment selects done items, AmountToPay covers only those items: their
// own subtotal and tax, a percentage fee recomputed on them (a fixed fee is
// prorated by their share of subtotal+tax, a fixed discount by their share
// of the non-reward subtotal) and no delivery fee.
// A resulting negative amount is returned as-is.
func Compute(in Input) Totals {
	all := sumItems(in.Cart.Items())

	serviceCharge := decimal.Zero
	if in.serviceFeeApplies() {
		if in.ServiceFee.Type == enum.ServiceFeePercentage {
			serviceCharge = money.Percent(all.subtotal.Add(all.tax), in.ServiceFee.Amount)
		} else {
			serviceCharge = in.ServiceFee.Amount
		}
	}

	discount := in.discountOn(all.eligible)
	totalBeforeDelivery := all.subtotal.Add(all.tax).Add(serviceCharge)
	amountToPay := totalBeforeDelivery.Sub(discount)

	deliveryFee := decimal.Zero
	if in.OrderType == enum.OrderTypeDelivery {
		deliveryFee = in.DeliveryFee
		amountToPay = amountToPay.Add(deliveryFee)
	}

	t := Totals{
		Subtotal:            money.Round(all.subtotal),
		TotalTax:            money.Round(all.tax),
		TaxBreakdown:        breakdown(all.byTax),
		ServiceCharge:       money.Round(serviceCharge),
		Discount:            money.Round(discount),
		TotalBeforeDelivery: money.Round(totalBeforeDelivery),
		DeliveryFee:         money.Round(deliveryFee),
		AmountToPay:         money.Round(amountToPay),

		PayableSubtotal:      money.Round(all.subtotal),
		PayableTax:           money.Round(all.tax),
		PayableServiceCharge: money.Round(serviceCharge),
	}

	if in.OrderType != enum.OrderTypeDineIn {
		return t
	}
	payable := in.Cart.Payable(in.Selection)
	if len(payable) == 0 {
		return t
	}

	part := sumItems(payable)
	partCharge := decimal.Zero
	if in.serviceFeeApplies() {
		if in.ServiceFee.Type == enum.ServiceFeePercentage {
			partCharge = money.Percent(part.subtotal.Add(part.tax), in.ServiceFee.Amount)
		} else if base := all.subtotal.Add(all.tax); base.IsPositive() {
			partCharge = in.ServiceFee.Amount.Mul(part.subtotal.Add(part.tax)).Div(base)
		}
	}
	partDiscount := decimal.Zero
	if in.Discount.Type == enum.DiscountTypePercentage {
		partDiscount = in.discountOn(part.eligible)
	} else if all.eligible.IsPositive() {
		partDiscount = in.discountOn(all.eligible).Mul(part.eligible).Div(all.eligible)
	}

	t.Partial = true
	t.SettledItems = make([]string, len(payable))
	for i, li := range payable {
		t.SettledItems[i] = li.TempID
	}
	t.DeliveryFee = decimal.Zero
	t.PayableSubtotal = money.Round(part.subtotal)
	t.PayableTax = money.Round(part.tax)
	t.PayableServiceCharge = money.Round(partCharge)
	t.Discount = money.Round(partDiscount)
	t.AmountToPay = money.Round(part.subtotal.Add(part.tax).Add(partCharge).Sub(partDiscount))
	return t
}

func breakdown(byTax map[string]decimal.Decimal) []TaxLine {
	if len(byTax) == 0 {
		return nil
	}
	lines := make([]TaxLine, 0, len(byTax))
	for id, amt := range byTax {
		lines = append(lines, TaxLine{TaxID: id, Amount: money.Round(amt)})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].TaxID < lines[j].TaxID })
	return lines
}
