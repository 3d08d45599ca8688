package session

import (
	"context"
	"fmt"

	"github.com/kiwari-pos/cashier/internal/apperr"
	"github.com/kiwari-pos/cashier/internal/enum"
)

// Key names inside a session namespace.
const (
	keyTableID       = "table_id"
	keyUserID        = "user_id"
	keyAddressID     = "address_id"
	keyCashierID     = "cashier_id"
	keyOrderType     = "order_type"
	keyTransferTable = "transfer_from_table"
)

var allKeys = []string{keyTableID, keyUserID, keyAddressID, keyCashierID, keyOrderType, keyTransferTable}

// ErrInvalidOrderType is returned when storing an unknown order type.
var ErrInvalidOrderType = apperr.New(apperr.KindValidation, "invalid order_type")

// Values is a snapshot of a session's context.
type Values struct {
	TableID           string `json:"table_id,omitempty"`
	UserID            string `json:"user_id,omitempty"`
	AddressID         string `json:"address_id,omitempty"`
	CashierID         string `json:"cashier_id,omitempty"`
	OrderType         string `json:"order_type,omitempty"`
	TransferFromTable string `json:"transfer_from_table,omitempty"`
}

// Context is the typed view of one session's keys in a Store.
type Context struct {
	store Store
	ns    string
}

// NewContext scopes store to sessionID.
func NewContext(store Store, sessionID string) *Context {
	return &Context{store: store, ns: "session:" + sessionID + ":"}
}

func (c *Context) get(ctx context.Context, key string) (string, error) {
	v, _, err := c.store.Get(ctx, c.ns+key)
	if err != nil {
		return "", fmt.Errorf("session %s: %w", key, err)
	}
	return v, nil
}

func (c *Context) set(ctx context.Context, key, value string) error {
	var err error
	if value == "" {
		err = c.store.Delete(ctx, c.ns+key)
	} else {
		err = c.store.Set(ctx, c.ns+key, value)
	}
	if err != nil {
		return fmt.Errorf("session %s: %w", key, err)
	}
	return nil
}

func (c *Context) TableID(ctx context.Context) (string, error)   { return c.get(ctx, keyTableID) }
func (c *Context) UserID(ctx context.Context) (string, error)    { return c.get(ctx, keyUserID) }
func (c *Context) AddressID(ctx context.Context) (string, error) { return c.get(ctx, keyAddressID) }
func (c *Context) CashierID(ctx context.Context) (string, error) { return c.get(ctx, keyCashierID) }
func (c *Context) OrderType(ctx context.Context) (string, error) { return c.get(ctx, keyOrderType) }

func (c *Context) SetTableID(ctx context.Context, id string) error {
	return c.set(ctx, keyTableID, id)
}

func (c *Context) SetUserID(ctx context.Context, id string) error {
	return c.set(ctx, keyUserID, id)
}

func (c *Context) SetAddressID(ctx context.Context, id string) error {
	return c.set(ctx, keyAddressID, id)
}

func (c *Context) SetCashierID(ctx context.Context, id string) error {
	return c.set(ctx, keyCashierID, id)
}

// SetOrderType stores a known order type.
func (c *Context) SetOrderType(ctx context.Context, orderType string) error {
	if !enum.IsOrderType(orderType) {
		return ErrInvalidOrderType
	}
	return c.set(ctx, keyOrderType, orderType)
}

// MarkTransfer records that the session's order is being moved away from
// fromTableID. The marker stays until ClearTransfer.
func (c *Context) MarkTransfer(ctx context.Context, fromTableID string) error {
	return c.set(ctx, keyTransferTable, fromTableID)
}

// PendingTransfer returns the table a transfer started from, if any.
func (c *Context) PendingTransfer(ctx context.Context) (string, bool, error) {
	v, err := c.get(ctx, keyTransferTable)
	return v, v != "", err
}

func (c *Context) ClearTransfer(ctx context.Context) error {
	return c.set(ctx, keyTransferTable, "")
}

// Snapshot reads every key.
func (c *Context) Snapshot(ctx context.Context) (Values, error) {
	var v Values
	var err error
	read := func(key string, dst *string) {
		if err != nil {
			return
		}
		*dst, err = c.get(ctx, key)
	}
	read(keyTableID, &v.TableID)
	read(keyUserID, &v.UserID)
	read(keyAddressID, &v.AddressID)
	read(keyCashierID, &v.CashierID)
	read(keyOrderType, &v.OrderType)
	read(keyTransferTable, &v.TransferFromTable)
	return v, err
}

// Clear removes every key of the session.
func (c *Context) Clear(ctx context.Context) error {
	keys := make([]string, len(allKeys))
	for i, k := range allKeys {
		keys[i] = c.ns + k
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
