package backend

import (
	"context"
	"fmt"

	"github.com/kiwari-pos/cashier/internal/item"
	"github.com/shopspring/decimal"
)

type optionRow struct {
	ID         string              `json:"id"`
	Price      decimal.Decimal     `json:"price"`
	TotalPrice decimal.NullDecimal `json:"total_price"`
}

type variationRow struct {
	VariationID string      `json:"variation_id"`
	Multi       bool        `json:"multi"`
	Options     []optionRow `json:"options"`
}

type addonRow struct {
	ID    string          `json:"id"`
	Price decimal.Decimal `json:"price"`
	Count int             `json:"count"`
}

type extraRow struct {
	ID    string          `json:"id"`
	Price decimal.Decimal `json:"price"`
}

type excludeRow struct {
	ID string `json:"id"`
}

// tableOrderRow is one cart row of an open table.
type tableOrderRow struct {
	CartID     string              `json:"cart_id"`
	ProductID  string              `json:"product_id"`
	Name       string              `json:"name"`
	Note       string              `json:"note"`
	Price      decimal.Decimal     `json:"price"`
	FinalPrice decimal.NullDecimal `json:"final_price"`
	Tax        decimal.Decimal     `json:"tax"`
	TaxID      string              `json:"tax_id"`
	Count      int                 `json:"count"`
	IsWeight   bool                `json:"is_weight"`
	Weight     decimal.Decimal     `json:"weight"`
	Status     string              `json:"status"`
	IsReward   bool                `json:"is_reward"`
	Variations []variationRow      `json:"variations"`
	Addons     []addonRow          `json:"addons"`
	Extras     []extraRow          `json:"extras"`
	Excludes   []excludeRow        `json:"excludes"`
}

// TableOrder loads the items already ordered on tableID.
func (c *Client) TableOrder(ctx context.Context, tableID string) ([]item.LineItem, error) {
	var rows []tableOrderRow
	if err := c.t.Get(ctx, tablePath(tableID), &rows); err != nil {
		return nil, fmt.Errorf("table %s order: %w", tableID, err)
	}

	items := make([]item.LineItem, len(rows))
	for i, r := range rows {
		items[i] = r.lineItem()
	}
	return items, nil
}

func (r tableOrderRow) lineItem() item.LineItem {
	li := item.LineItem{
		SourceID:      r.ProductID,
		CartID:        r.CartID,
		Name:          r.Name,
		Note:          r.Note,
		BasePrice:     r.Price,
		FinalPrice:    r.FinalPrice,
		TaxPerUnit:    r.Tax,
		TaxID:         r.TaxID,
		Quantity:      r.Count,
		WeightTracked: r.IsWeight,
		Weight:        r.Weight,
		Status:        r.Status,
		IsReward:      r.IsReward,
	}
	if li.Quantity <= 0 {
		li.Quantity = 1
	}
	for _, v := range r.Variations {
		sel := item.VariationSelection{VariationID: v.VariationID, Multi: v.Multi}
		for _, o := range v.Options {
			sel.Options = append(sel.Options, item.VariationOption{ID: o.ID, Price: o.Price, TotalPrice: o.TotalPrice})
		}
		li.Modifiers = append(li.Modifiers, sel)
	}
	for _, a := range r.Addons {
		li.Modifiers = append(li.Modifiers, item.Addon{ID: a.ID, Price: a.Price, Count: a.Count})
	}
	for _, e := range r.Extras {
		li.Modifiers = append(li.Modifiers, item.Extra{ID: e.ID, Price: e.Price})
	}
	for _, e := range r.Excludes {
		li.Modifiers = append(li.Modifiers, item.Exclude{ID: e.ID})
	}
	return li
}
