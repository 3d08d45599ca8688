// Package item models cart line items and prices them.
//
// Prices are derived from the item's fields on every call and never cached,
// so a mutated item can never report a stale price.
package item

import (
	"fmt"

	"github.com/kiwari-pos/cashier/internal/apperr"
	"github.com/shopspring/decimal"
)

// ErrNegativePrice is returned by Validate when a price input is below zero.
var ErrNegativePrice = apperr.New(apperr.KindValidation, "price must not be negative")

// UnitPrice returns the effective price of one unit of li.
//
// The base portion is FinalPrice when the item carries one. Otherwise it is
// BasePrice adjusted by the variations: a single-choice option with an
// absolute TotalPrice contributes TotalPrice-BasePrice, any other option
// contributes its own Price. Addon (Price x Count) and extra surcharges are
// added on top. Rewards are free.
func UnitPrice(li LineItem) decimal.Decimal {
	if li.IsReward {
		return decimal.Zero
	}

	price := li.BasePrice
	if li.FinalPrice.Valid {
		price = li.FinalPrice.Decimal
	} else {
		for _, v := range li.Variations() {
			for _, opt := range v.Options {
				if !v.Multi && opt.TotalPrice.Valid {
					price = price.Add(opt.TotalPrice.Decimal.Sub(li.BasePrice))
					continue
				}
				price = price.Add(opt.Price)
			}
		}
	}

	for _, a := range li.Addons() {
		price = price.Add(a.Price.Mul(decimal.NewFromInt(int64(a.Count))))
	}
	for _, e := range li.Extras() {
		price = price.Add(e.Price)
	}
	return price
}

// EffectiveQuantity is the weight for weight-tracked items, the count otherwise.
func EffectiveQuantity(li LineItem) decimal.Decimal {
	if li.WeightTracked {
		return li.Weight
	}
	return decimal.NewFromInt(int64(li.Quantity))
}

// LineTotal is UnitPrice x EffectiveQuantity.
func LineTotal(li LineItem) decimal.Decimal {
	return UnitPrice(li).Mul(EffectiveQuantity(li))
}

// LineTax is the tax owed on the whole line.
func LineTax(li LineItem) decimal.Decimal {
	if li.IsReward {
		return decimal.Zero
	}
	return li.TaxPerUnit.Mul(EffectiveQuantity(li))
}

// Validate rejects negative price inputs. Pricing itself never clamps.
func Validate(li LineItem) error {
	if li.BasePrice.IsNegative() {
		return fmt.Errorf("base price: %w", ErrNegativePrice)
	}
	if li.FinalPrice.Valid && li.FinalPrice.Decimal.IsNegative() {
		return fmt.Errorf("final price: %w", ErrNegativePrice)
	}
	if li.TaxPerUnit.IsNegative() {
		return fmt.Errorf("tax: %w", ErrNegativePrice)
	}
	for _, m := range li.Modifiers {
		switch mod := m.(type) {
		case VariationSelection:
			for _, opt := range mod.Options {
				if opt.Price.IsNegative() || (opt.TotalPrice.Valid && opt.TotalPrice.Decimal.IsNegative()) {
					return fmt.Errorf("variation %s option %s: %w", mod.VariationID, opt.ID, ErrNegativePrice)
				}
			}
		case Addon:
			if mod.Price.IsNegative() {
				return fmt.Errorf("addon %s: %w", mod.ID, ErrNegativePrice)
			}
			if mod.Count < 0 {
				return fmt.Errorf("addon %s: count must not be negative", mod.ID)
			}
		case Extra:
			if mod.Price.IsNegative() {
				return fmt.Errorf("extra %s: %w", mod.ID, ErrNegativePrice)
			}
		}
	}
	return nil
}
