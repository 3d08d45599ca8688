package service

import (
	"context"
	"log"

	"github.com/kiwari-pos/cashier/internal/apperr"
	"github.com/kiwari-pos/cashier/internal/cart"
	"github.com/kiwari-pos/cashier/internal/enum"
	"github.com/kiwari-pos/cashier/internal/item"
	"github.com/kiwari-pos/cashier/internal/notify"
	"github.com/kiwari-pos/cashier/internal/prep"
)

// statusPayload is published for every committed status change.
type statusPayload struct {
	SessionID string `json:"session_id"`
	TableID   string `json:"table_id,omitempty"`
	TempID    string `json:"temp_id"`
	Name      string `json:"name"`
	From      string `json:"from"`
	To        string `json:"to"`
}

type voidPayload struct {
	SessionID string   `json:"session_id"`
	TableID   string   `json:"table_id,omitempty"`
	TempID    string   `json:"temp_id"`
	Name      string   `json:"name"`
	CartIDs   []string `json:"cart_ids"`
	ManagerID string   `json:"manager_id"`
}

// AddItem appends li to the session's cart. On a dine-in table the item is
// then saved to the table's order and gets its cart reference; a failed
// save takes the item back out of the cart.
func (c *Cashier) AddItem(ctx context.Context, id string, li item.LineItem) (View, error) {
	c.mu.Lock()
	o, ok := c.orders[id]
	if !ok {
		c.mu.Unlock()
		return View{}, ErrSessionNotFound
	}
	if err := o.editable(); err != nil {
		c.mu.Unlock()
		return View{}, err
	}
	next, err := o.cart.Add(li)
	if err != nil {
		c.mu.Unlock()
		return View{}, err
	}
	o.cart = next
	o.refresh()
	items := next.Items()
	added := items[len(items)-1]
	tableID := o.vals.TableID
	if o.vals.OrderType != enum.OrderTypeDineIn || tableID == "" {
		v := c.view(o)
		c.mu.Unlock()
		return v, nil
	}
	o.saving[added.TempID] = true
	c.mu.Unlock()

	cartID, saveErr := c.backend.AddCartItem(ctx, tableID, added)

	v, err := c.update(id, func(o *order) error {
		delete(o.saving, added.TempID)
		if saveErr != nil {
			if next, err := o.cart.Remove(added.TempID); err == nil {
				o.cart = next
			}
			return nil
		}
		next, err := o.cart.SetCartID(added.TempID, cartID)
		if err != nil {
			return err
		}
		o.cart = next
		return nil
	})
	if saveErr != nil {
		log.Printf("ERROR: save item %s on table %s: %v", added.TempID, tableID, saveErr)
		return View{}, apperr.Wrap(apperr.KindSync, ErrSaveItem, apperr.MessageOf(saveErr, ErrSaveItem.Message))
	}
	return v, err
}

// Increment raises an item's quantity by one.
func (c *Cashier) Increment(id, tempID string) (View, error) {
	return c.mutateItem(id, tempID, func(crt cart.Cart) (cart.Cart, error) {
		return crt.Increment(tempID)
	})
}

// Decrement lowers an item's quantity by one, removing it below one unless done.
func (c *Cashier) Decrement(id, tempID string) (View, error) {
	return c.mutateItem(id, tempID, func(crt cart.Cart) (cart.Cart, error) {
		return crt.Decrement(tempID)
	})
}

// SetQuantity sets an item's quantity.
func (c *Cashier) SetQuantity(id, tempID string, qty int) (View, error) {
	return c.mutateItem(id, tempID, func(crt cart.Cart) (cart.Cart, error) {
		return crt.SetQuantity(tempID, qty)
	})
}

// mutateItem applies fn to the cart unless tempID has a void or save in flight.
func (c *Cashier) mutateItem(id, tempID string, fn func(cart.Cart) (cart.Cart, error)) (View, error) {
	return c.update(id, func(o *order) error {
		if err := o.editable(); err != nil {
			return err
		}
		if err := o.locked(tempID); err != nil {
			return err
		}
		next, err := fn(o.cart)
		if err != nil {
			return err
		}
		o.cart = next
		return nil
	})
}

// Void removes an item after a manager authorizes it. The item is locked
// against a second void while the authorization is outstanding.
func (c *Cashier) Void(ctx context.Context, id, tempID string, creds cart.ManagerCredentials) (View, error) {
	c.mu.Lock()
	o, ok := c.orders[id]
	if !ok {
		c.mu.Unlock()
		return View{}, ErrSessionNotFound
	}
	if err := o.editable(); err != nil {
		c.mu.Unlock()
		return View{}, err
	}
	if err := o.locked(tempID); err != nil {
		c.mu.Unlock()
		return View{}, err
	}
	req, err := o.cart.VoidPlan(tempID, creds)
	if err != nil {
		c.mu.Unlock()
		return View{}, err
	}
	li, _ := o.cart.Find(tempID)
	room := o.room
	o.voiding[tempID] = true
	c.mu.Unlock()

	authErr := cart.Authorize(ctx, c.backend, req)

	v, err := c.update(id, func(o *order) error {
		delete(o.voiding, tempID)
		if authErr != nil {
			return authErr
		}
		next, err := o.cart.Remove(tempID)
		if err != nil {
			return err
		}
		o.cart = next
		return nil
	})
	if err != nil {
		return View{}, err
	}

	c.publish(ctx, room, notify.TypeItemVoided, voidPayload{
		SessionID: id,
		TableID:   req.TableID,
		TempID:    tempID,
		Name:      li.Name,
		CartIDs:   req.CartIDs,
		ManagerID: req.ManagerID,
	})
	return v, nil
}

// Advance moves one item to its next preparation status.
func (c *Cashier) Advance(ctx context.Context, id, tempID string) (prep.Outcome, View, error) {
	crt, room, err := c.snapshotCart(id)
	if err != nil {
		return prep.Outcome{}, View{}, err
	}

	out, advErr := c.machine.Advance(ctx, crt, tempID)
	v, err := c.commit(ctx, id, room, crt, out)
	if advErr != nil {
		return out, v, advErr
	}
	return out, v, err
}

// AdvanceEach advances several items independently; each gets its own outcome.
func (c *Cashier) AdvanceEach(ctx context.Context, id string, tempIDs []string) ([]prep.Outcome, View, error) {
	crt, room, err := c.snapshotCart(id)
	if err != nil {
		return nil, View{}, err
	}

	outcomes := c.machine.AdvanceEach(ctx, crt, tempIDs)
	v, err := c.commit(ctx, id, room, crt, outcomes...)
	return outcomes, v, err
}

// BulkStatus moves the selected items to target in one batch.
func (c *Cashier) BulkStatus(ctx context.Context, id string, tempIDs []string, target string) (prep.BulkResult, View, error) {
	crt, room, err := c.snapshotCart(id)
	if err != nil {
		return prep.BulkResult{}, View{}, err
	}

	res, bulkErr := c.machine.BulkAdvance(ctx, crt, tempIDs, target)
	v, err := c.commit(ctx, id, room, crt, res.Outcomes...)
	if bulkErr != nil {
		return res, v, bulkErr
	}
	return res, v, err
}

// StatusOptions lists the bulk targets allowed for the selected items.
func (c *Cashier) StatusOptions(id string, tempIDs []string) ([]string, error) {
	crt, _, err := c.snapshotCart(id)
	if err != nil {
		return nil, err
	}
	var selected []item.LineItem
	for _, tid := range tempIDs {
		if li, ok := crt.Find(tid); ok {
			selected = append(selected, li)
		}
	}
	return prep.Targets(selected), nil
}

// --- Helpers ---

func (c *Cashier) snapshotCart(id string) (cart.Cart, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[id]
	if !ok {
		return cart.Cart{}, "", ErrSessionNotFound
	}
	if err := o.editable(); err != nil {
		return cart.Cart{}, "", err
	}
	return o.cart, o.room, nil
}

// commit applies outcomes to the live cart and publishes the committed ones.
func (c *Cashier) commit(ctx context.Context, id, room string, before cart.Cart, outcomes ...prep.Outcome) (View, error) {
	v, err := c.update(id, func(o *order) error {
		o.cart = prep.Commit(o.cart, outcomes...)
		return nil
	})
	if err != nil {
		return View{}, err
	}

	for _, out := range outcomes {
		if !out.OK() {
			continue
		}
		li, _ := before.Find(out.TempID)
		c.publish(ctx, room, notify.TypeItemStatus, statusPayload{
			SessionID: id,
			TableID:   before.TableID,
			TempID:    out.TempID,
			Name:      li.Name,
			From:      out.From,
			To:        out.To,
		})
	}
	return v, nil
}
