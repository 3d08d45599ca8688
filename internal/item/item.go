package item

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ModifierKind tags each member of the modifier union.
type ModifierKind int

const (
	KindVariation ModifierKind = iota + 1
	KindAddon
	KindExtra
	KindExclude
)

// Modifier is one of VariationSelection, Addon, Extra or Exclude.
type Modifier interface {
	Kind() ModifierKind
}

// VariationOption is a chosen option of a variation group. TotalPrice, when
// valid, is the absolute product price with this option selected.
type VariationOption struct {
	ID         string
	Price      decimal.Decimal
	TotalPrice decimal.NullDecimal
}

// VariationSelection is the selection made for one variation group.
// Multi groups allow several options; single groups carry one.
type VariationSelection struct {
	VariationID string
	Multi       bool
	Options     []VariationOption
}

// Addon is a repeatable modifier priced per count.
type Addon struct {
	ID    string
	Price decimal.Decimal
	Count int
}

// Extra is a catalog modifier priced individually.
type Extra struct {
	ID    string
	Price decimal.Decimal
}

// Exclude removes an ingredient. It has no price.
type Exclude struct {
	ID string
}

func (VariationSelection) Kind() ModifierKind { return KindVariation }
func (Addon) Kind() ModifierKind              { return KindAddon }
func (Extra) Kind() ModifierKind              { return KindExtra }
func (Exclude) Kind() ModifierKind            { return KindExclude }

// LineItem is one ordered product or reward unit in a cart.
type LineItem struct {
	TempID   string
	SourceID string
	CartID   string

	Name string
	Note string

	BasePrice  decimal.Decimal
	FinalPrice decimal.NullDecimal
	TaxPerUnit decimal.Decimal
	TaxID      string

	Quantity      int
	WeightTracked bool
	Weight        decimal.Decimal

	Modifiers []Modifier

	Status   string
	IsReward bool
}

// Clone returns a copy whose modifier slice can be changed independently.
func (li LineItem) Clone() LineItem {
	if li.Modifiers != nil {
		mods := make([]Modifier, len(li.Modifiers))
		copy(mods, li.Modifiers)
		li.Modifiers = mods
	}
	return li
}

// Variations returns the variation selections of li in order.
func (li LineItem) Variations() []VariationSelection {
	var out []VariationSelection
	for _, m := range li.Modifiers {
		if v, ok := m.(VariationSelection); ok {
			out = append(out, v)
		}
	}
	return out
}

// Addons returns the addons of li in order.
func (li LineItem) Addons() []Addon {
	var out []Addon
	for _, m := range li.Modifiers {
		if a, ok := m.(Addon); ok {
			out = append(out, a)
		}
	}
	return out
}

// Extras returns the extras of li in order.
func (li LineItem) Extras() []Extra {
	var out []Extra
	for _, m := range li.Modifiers {
		if e, ok := m.(Extra); ok {
			out = append(out, e)
		}
	}
	return out
}

// Excludes returns the excludes of li in order.
func (li LineItem) Excludes() []Exclude {
	var out []Exclude
	for _, m := range li.Modifiers {
		if e, ok := m.(Exclude); ok {
			out = append(out, e)
		}
	}
	return out
}

// CartIDs splits the backend cart reference. Merged rows arrive as a
// comma-joined list ("12,13").
func (li LineItem) CartIDs() []string {
	return SplitCartIDs(li.CartID)
}

// SplitCartIDs splits a comma-joined cart reference, dropping blanks.
func SplitCartIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
