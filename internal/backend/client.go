package backend

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kiwari-pos/cashier/internal/apperr"
	"github.com/kiwari-pos/cashier/internal/cart"
	"github.com/kiwari-pos/cashier/internal/checkout"
	"github.com/kiwari-pos/cashier/internal/item"
	"github.com/kiwari-pos/cashier/internal/offer"
	"github.com/kiwari-pos/cashier/internal/payment"
	"github.com/kiwari-pos/cashier/internal/prep"
)

// ErrNoCartID is returned when a saved item comes back without its cart row id.
var ErrNoCartID = apperr.New(apperr.KindDataIntegrity, "backend returned no cart id")

// Client is the backend as seen by the cashier engine.
type Client struct {
	t Transport
}

// NewClient creates a Client on t.
func NewClient(t Transport) *Client {
	return &Client{t: t}
}

// --- Void ---

type voidBody struct {
	ManagerID       string   `json:"manager_id"`
	ManagerPassword string   `json:"manager_password"`
	CartIDs         []string `json:"cart_ids"`
	TableID         string   `json:"table_id,omitempty"`
}

// AuthorizeVoid implements cart.VoidAuthorizer.
func (c *Client) AuthorizeVoid(ctx context.Context, req cart.VoidRequest) error {
	return c.t.Post(ctx, "/cart/void", voidBody{
		ManagerID:       req.ManagerID,
		ManagerPassword: req.ManagerPassword,
		CartIDs:         req.CartIDs,
		TableID:         req.TableID,
	}, nil)
}

// --- Cart ---

type cartItemBody struct {
	TableID string `json:"table_id"`
	checkout.Product
}

type cartItemResponse struct {
	CartID string `json:"cart_id"`
}

// AddCartItem saves li on tableID's order and returns the new cart row id.
func (c *Client) AddCartItem(ctx context.Context, tableID string, li item.LineItem) (string, error) {
	var resp cartItemResponse
	body := cartItemBody{TableID: tableID, Product: checkout.ProductOf(li)}
	if err := c.t.Post(ctx, "/cart", body, &resp); err != nil {
		return "", err
	}
	if resp.CartID == "" {
		return "", ErrNoCartID
	}
	return resp.CartID, nil
}

// --- Status ---

type statusBody struct {
	TableID string   `json:"table_id"`
	CartIDs []string `json:"cart_ids"`
	Status  string   `json:"status"`
}

// UpdateItemStatus implements prep.StatusSyncer.
func (c *Client) UpdateItemStatus(ctx context.Context, u prep.StatusUpdate) error {
	return c.t.Put(ctx, "/cart/status", statusBody{
		TableID: u.TableID,
		CartIDs: u.CartIDs,
		Status:  u.Status,
	}, nil)
}

// --- Offers ---

type offerResponse struct {
	OfferOrderID   string `json:"offer_order_id"`
	UserID         string `json:"user_id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	PointsRequired int    `json:"points_required"`
}

// ValidateOffer implements offer.Validator.
func (c *Client) ValidateOffer(ctx context.Context, code string) (offer.PendingApproval, error) {
	var resp offerResponse
	if err := c.t.Post(ctx, "/offers/validate", map[string]string{"code": code}, &resp); err != nil {
		return offer.PendingApproval{}, err
	}
	return offer.PendingApproval{
		OfferOrderID:   resp.OfferOrderID,
		UserID:         resp.UserID,
		ProductID:      resp.ProductID,
		ProductName:    resp.ProductName,
		PointsRequired: resp.PointsRequired,
	}, nil
}

// ApproveOffer implements offer.Approver.
func (c *Client) ApproveOffer(ctx context.Context, offerOrderID, userID string) error {
	return c.t.Post(ctx, "/offers/approve", map[string]string{
		"offer_order_id": offerOrderID,
		"user_id":        userID,
	}, nil)
}

// --- Checkout ---

// SubmitCheckout implements checkout.Submitter.
func (c *Client) SubmitCheckout(ctx context.Context, p checkout.Payload) (checkout.Receipt, error) {
	var rc checkout.Receipt
	if err := c.t.Post(ctx, "/checkout", p, &rc); err != nil {
		return checkout.Receipt{}, err
	}
	return rc, nil
}

// --- Accounts ---

// ListFinancialAccounts returns the accounts splits can be booked to.
func (c *Client) ListFinancialAccounts(ctx context.Context) ([]payment.Account, error) {
	var accounts []payment.Account
	if err := c.t.Get(ctx, "/financial-accounts", &accounts); err != nil {
		return nil, fmt.Errorf("list financial accounts: %w", err)
	}
	return accounts, nil
}

// --- Helpers ---

func tablePath(tableID string) string {
	return "/tables/" + url.PathEscape(tableID) + "/order"
}
