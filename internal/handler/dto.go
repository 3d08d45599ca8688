package handler

import (
	"fmt"

	"github.com/kiwari-pos/cashier/internal/checkout"
	"github.com/kiwari-pos/cashier/internal/item"
	"github.com/kiwari-pos/cashier/internal/money"
	"github.com/kiwari-pos/cashier/internal/payment"
	"github.com/kiwari-pos/cashier/internal/prep"
	"github.com/kiwari-pos/cashier/internal/pricing"
	"github.com/kiwari-pos/cashier/internal/service"
	"github.com/kiwari-pos/cashier/internal/session"
	"github.com/shopspring/decimal"
)

// --- Modifiers (shared by requests and responses) ---

type optionDTO struct {
	ID         string `json:"id"`
	Price      string `json:"price"`
	TotalPrice string `json:"total_price,omitempty"`
}

type variationDTO struct {
	VariationID string      `json:"variation_id"`
	Multi       bool        `json:"multi"`
	Options     []optionDTO `json:"options"`
}

type addonDTO struct {
	ID    string `json:"id"`
	Price string `json:"price"`
	Count int    `json:"count"`
}

type extraDTO struct {
	ID    string `json:"id"`
	Price string `json:"price"`
}

// --- Requests ---

type openRequest struct {
	OrderType   string `json:"order_type"`
	TableID     string `json:"table_id"`
	UserID      string `json:"user_id"`
	AddressID   string `json:"address_id"`
	DeliveryFee string `json:"delivery_fee"`
}

type itemRequest struct {
	TempID        string         `json:"temp_id"`
	ProductID     string         `json:"product_id"`
	Name          string         `json:"name"`
	Note          string         `json:"note"`
	BasePrice     string         `json:"base_price"`
	FinalPrice    string         `json:"final_price"`
	TaxPerUnit    string         `json:"tax"`
	TaxID         string         `json:"tax_id"`
	Quantity      int            `json:"quantity"`
	WeightTracked bool           `json:"weight_tracked"`
	Weight        string         `json:"weight"`
	Variations    []variationDTO `json:"variations"`
	Addons        []addonDTO     `json:"addons"`
	Extras        []extraDTO     `json:"extras"`
	Excludes      []string       `json:"excludes"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type voidRequest struct {
	ManagerID       string `json:"manager_id"`
	ManagerPassword string `json:"manager_password"`
}

type tempIDsRequest struct {
	TempIDs []string `json:"temp_ids"`
}

type bulkStatusRequest struct {
	TempIDs []string `json:"temp_ids"`
	Status  string   `json:"status"`
}

type feeDTO struct {
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

type discountDTO struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type pricingRequest struct {
	ServiceFee  *feeDTO      `json:"service_fee"`
	Discount    *discountDTO `json:"discount"`
	DeliveryFee *string      `json:"delivery_fee"`
}

type splitRequest struct {
	Amount             *string `json:"amount"`
	FinancialAccountID *string `json:"financial_account_id"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type checkoutRequest struct {
	Notes            string `json:"notes"`
	CashWithDelivery bool   `json:"cash_with_delivery"`
}

type offerRequest struct {
	Code string `json:"code"`
}

// parseAmount reads a non-empty money field.
func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := money.Parse(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func parseNull(field, s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseAmount(field, s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func (req itemRequest) lineItem() (item.LineItem, error) {
	li := item.LineItem{
		TempID:        req.TempID,
		SourceID:      req.ProductID,
		Name:          req.Name,
		Note:          req.Note,
		TaxID:         req.TaxID,
		Quantity:      req.Quantity,
		WeightTracked: req.WeightTracked,
	}
	var err error
	if li.BasePrice, err = parseAmount("base_price", req.BasePrice); err != nil {
		return li, err
	}
	if li.FinalPrice, err = parseNull("final_price", req.FinalPrice); err != nil {
		return li, err
	}
	if li.TaxPerUnit, err = parseAmount("tax", req.TaxPerUnit); err != nil {
		return li, err
	}
	if li.Weight, err = parseAmount("weight", req.Weight); err != nil {
		return li, err
	}

	for _, v := range req.Variations {
		sel := item.VariationSelection{VariationID: v.VariationID, Multi: v.Multi}
		for _, o := range v.Options {
			opt := item.VariationOption{ID: o.ID}
			if opt.Price, err = parseAmount("option price", o.Price); err != nil {
				return li, err
			}
			if opt.TotalPrice, err = parseNull("option total_price", o.TotalPrice); err != nil {
				return li, err
			}
			sel.Options = append(sel.Options, opt)
		}
		li.Modifiers = append(li.Modifiers, sel)
	}
	for _, a := range req.Addons {
		price, err := parseAmount("addon price", a.Price)
		if err != nil {
			return li, err
		}
		li.Modifiers = append(li.Modifiers, item.Addon{ID: a.ID, Price: price, Count: a.Count})
	}
	for _, e := range req.Extras {
		price, err := parseAmount("extra price", e.Price)
		if err != nil {
			return li, err
		}
		li.Modifiers = append(li.Modifiers, item.Extra{ID: e.ID, Price: price})
	}
	for _, id := range req.Excludes {
		li.Modifiers = append(li.Modifiers, item.Exclude{ID: id})
	}
	return li, nil
}

func (req pricingRequest) update() (service.PricingUpdate, error) {
	var u service.PricingUpdate
	if req.ServiceFee != nil {
		amount, err := parseAmount("service_fee.amount", req.ServiceFee.Amount)
		if err != nil {
			return u, err
		}
		u.ServiceFee = &pricing.ServiceFee{Type: req.ServiceFee.Type, Amount: amount}
	}
	if req.Discount != nil {
		value, err := parseAmount("discount.value", req.Discount.Value)
		if err != nil {
			return u, err
		}
		u.Discount = &pricing.Discount{Type: req.Discount.Type, Value: value}
	}
	if req.DeliveryFee != nil {
		fee, err := parseAmount("delivery_fee", *req.DeliveryFee)
		if err != nil {
			return u, err
		}
		u.DeliveryFee = &fee
	}
	return u, nil
}

// --- Responses ---

type itemResponse struct {
	TempID     string         `json:"temp_id"`
	ProductID  string         `json:"product_id"`
	CartID     string         `json:"cart_id,omitempty"`
	Name       string         `json:"name"`
	Note       string         `json:"note"`
	Status     string         `json:"status"`
	Quantity   int            `json:"quantity"`
	Weight     string         `json:"weight,omitempty"`
	UnitPrice  string         `json:"unit_price"`
	LineTotal  string         `json:"line_total"`
	LineTax    string         `json:"line_tax"`
	IsReward   bool           `json:"is_reward"`
	Busy       bool           `json:"busy"`
	Variations []variationDTO `json:"variations"`
	Addons     []addonDTO     `json:"addons"`
	Extras     []extraDTO     `json:"extras"`
	Excludes   []string       `json:"excludes"`
}

type taxLineResponse struct {
	TaxID  string `json:"tax_id"`
	Amount string `json:"amount"`
}

type totalsResponse struct {
	Subtotal             string            `json:"subtotal"`
	TotalTax             string            `json:"total_tax"`
	TaxBreakdown         []taxLineResponse `json:"tax_breakdown"`
	ServiceCharge        string            `json:"service_charge"`
	Discount             string            `json:"discount"`
	TotalBeforeDelivery  string            `json:"total_before_delivery"`
	DeliveryFee          string            `json:"delivery_fee"`
	AmountToPay          string            `json:"amount_to_pay"`
	PayableSubtotal      string            `json:"payable_subtotal"`
	PayableTax           string            `json:"payable_tax"`
	PayableServiceCharge string            `json:"payable_service_charge"`
	Partial              bool              `json:"partial"`
	SettledItems         []string          `json:"settled_items"`
}

type splitResponse struct {
	ID                 string `json:"id"`
	FinancialAccountID string `json:"financial_account_id"`
	Amount             string `json:"amount"`
}

type paymentResponse struct {
	Accounts   []payment.Account `json:"accounts"`
	Splits     []splitResponse   `json:"splits"`
	Settled    bool              `json:"settled"`
	Remaining  string            `json:"remaining"`
	ChangeDue  string            `json:"change_due"`
	CashChange string            `json:"cash_change"`
	State      string            `json:"state"`
	LastError  string            `json:"last_error,omitempty"`
}

type pendingOfferResponse struct {
	OfferOrderID   string `json:"offer_order_id"`
	UserID         string `json:"user_id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	PointsRequired int    `json:"points_required"`
}

type sessionResponse struct {
	ID           string                `json:"id"`
	Context      session.Values        `json:"context"`
	OrderType    string                `json:"order_type"`
	Items        []itemResponse        `json:"items"`
	Selection    []string              `json:"selection"`
	ServiceFee   feeDTO                `json:"service_fee"`
	Discount     discountDTO           `json:"discount"`
	DeliveryFee  string                `json:"delivery_fee"`
	Totals       totalsResponse        `json:"totals"`
	Payment      paymentResponse       `json:"payment"`
	PendingOffer *pendingOfferResponse `json:"pending_offer"`
	Paid         bool                  `json:"paid"`
	Receipt      *checkout.Receipt     `json:"receipt"`
}

type outcomeResponse struct {
	TempID string `json:"temp_id"`
	From   string `json:"from"`
	To     string `json:"to,omitempty"`
	Synced bool   `json:"synced"`
	Error  string `json:"error,omitempty"`
}

func toItemResponse(li item.LineItem, busy bool) itemResponse {
	resp := itemResponse{
		TempID:     li.TempID,
		ProductID:  li.SourceID,
		CartID:     li.CartID,
		Name:       li.Name,
		Note:       li.Note,
		Status:     li.Status,
		Quantity:   li.Quantity,
		UnitPrice:  money.Format(item.UnitPrice(li)),
		LineTotal:  money.Format(item.LineTotal(li)),
		LineTax:    money.Format(item.LineTax(li)),
		IsReward:   li.IsReward,
		Busy:       busy,
		Variations: []variationDTO{},
		Addons:     []addonDTO{},
		Extras:     []extraDTO{},
		Excludes:   []string{},
	}
	if li.WeightTracked {
		resp.Weight = li.Weight.String()
	}
	for _, v := range li.Variations() {
		dto := variationDTO{VariationID: v.VariationID, Multi: v.Multi}
		for _, o := range v.Options {
			opt := optionDTO{ID: o.ID, Price: money.Format(o.Price)}
			if o.TotalPrice.Valid {
				opt.TotalPrice = money.Format(o.TotalPrice.Decimal)
			}
			dto.Options = append(dto.Options, opt)
		}
		resp.Variations = append(resp.Variations, dto)
	}
	for _, a := range li.Addons() {
		resp.Addons = append(resp.Addons, addonDTO{ID: a.ID, Price: money.Format(a.Price), Count: a.Count})
	}
	for _, e := range li.Extras() {
		resp.Extras = append(resp.Extras, extraDTO{ID: e.ID, Price: money.Format(e.Price)})
	}
	for _, e := range li.Excludes() {
		resp.Excludes = append(resp.Excludes, e.ID)
	}
	return resp
}

func toTotalsResponse(t pricing.Totals) totalsResponse {
	resp := totalsResponse{
		Subtotal:             money.Format(t.Subtotal),
		TotalTax:             money.Format(t.TotalTax),
		TaxBreakdown:         make([]taxLineResponse, len(t.TaxBreakdown)),
		ServiceCharge:        money.Format(t.ServiceCharge),
		Discount:             money.Format(t.Discount),
		TotalBeforeDelivery:  money.Format(t.TotalBeforeDelivery),
		DeliveryFee:          money.Format(t.DeliveryFee),
		AmountToPay:          money.Format(t.AmountToPay),
		PayableSubtotal:      money.Format(t.PayableSubtotal),
		PayableTax:           money.Format(t.PayableTax),
		PayableServiceCharge: money.Format(t.PayableServiceCharge),
		Partial:              t.Partial,
		SettledItems:         t.SettledItems,
	}
	for i, l := range t.TaxBreakdown {
		resp.TaxBreakdown[i] = taxLineResponse{TaxID: l.TaxID, Amount: money.Format(l.Amount)}
	}
	if resp.SettledItems == nil {
		resp.SettledItems = []string{}
	}
	return resp
}

func toSessionResponse(v service.View) sessionResponse {
	resp := sessionResponse{
		ID:          v.ID,
		Context:     v.Session,
		OrderType:   v.OrderType,
		Items:       make([]itemResponse, len(v.Items)),
		Selection:   v.Selection,
		ServiceFee:  feeDTO{Type: v.ServiceFee.Type, Amount: money.Format(v.ServiceFee.Amount)},
		Discount:    discountDTO{Type: v.Discount.Type, Value: money.Format(v.Discount.Value)},
		DeliveryFee: money.Format(v.DeliveryFee),
		Totals:      toTotalsResponse(v.Totals),
		Payment: paymentResponse{
			Accounts:   v.Accounts,
			Splits:     make([]splitResponse, len(v.Splits)),
			Settled:    v.Settled,
			Remaining:  money.Format(v.Remaining),
			ChangeDue:  money.Format(v.ChangeDue),
			CashChange: money.Format(v.CashChange),
			State:      v.PaymentState.String(),
			LastError:  v.LastError,
		},
		Paid:    v.Paid,
		Receipt: v.Receipt,
	}
	for i, li := range v.Items {
		resp.Items[i] = toItemResponse(li, v.Busy[li.TempID])
	}
	for i, s := range v.Splits {
		resp.Payment.Splits[i] = splitResponse{ID: s.ID, FinancialAccountID: s.FinancialAccountID, Amount: money.Format(s.Amount)}
	}
	if resp.Selection == nil {
		resp.Selection = []string{}
	}
	if resp.Payment.Accounts == nil {
		resp.Payment.Accounts = []payment.Account{}
	}
	if p := v.PendingOffer; p != nil {
		resp.PendingOffer = &pendingOfferResponse{
			OfferOrderID:   p.OfferOrderID,
			UserID:         p.UserID,
			ProductID:      p.ProductID,
			ProductName:    p.ProductName,
			PointsRequired: p.PointsRequired,
		}
	}
	return resp
}

func toOutcomeResponses(outcomes []prep.Outcome) []outcomeResponse {
	resp := make([]outcomeResponse, len(outcomes))
	for i, o := range outcomes {
		resp[i] = outcomeResponse{TempID: o.TempID, From: o.From, To: o.To, Synced: o.Synced}
		if o.Err != nil {
			resp[i].Error = o.Err.Error()
		}
	}
	return resp
}
