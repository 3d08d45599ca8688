package service

import (
	"context"

	"github.com/kiwari-pos/cashier/internal/notify"
	"github.com/kiwari-pos/cashier/internal/offer"
)

type offerPayload struct {
	SessionID   string `json:"session_id"`
	TempID      string `json:"temp_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
}

func (c *Cashier) stage(id string) (*offer.Stage, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[id]
	if !ok {
		return nil, "", ErrSessionNotFound
	}
	if err := o.editable(); err != nil {
		return nil, "", err
	}
	return &o.offers, o.room, nil
}

// ValidateOffer checks an offer code and stages its reward for approval.
func (c *Cashier) ValidateOffer(ctx context.Context, id, code string) (View, error) {
	st, _, err := c.stage(id)
	if err != nil {
		return View{}, err
	}
	if _, err := st.Validate(ctx, c.backend, code); err != nil {
		return View{}, err
	}
	return c.Get(id)
}

// ApproveOffer confirms the staged offer and adds its reward to the cart.
func (c *Cashier) ApproveOffer(ctx context.Context, id string) (View, error) {
	st, room, err := c.stage(id)
	if err != nil {
		return View{}, err
	}
	p, err := st.Approve(ctx, c.backend)
	if err != nil {
		return View{}, err
	}

	var tempID string
	v, err := c.update(id, func(o *order) error {
		next, li, err := o.cart.ApplyReward(p)
		if err != nil {
			return err
		}
		o.cart, tempID = next, li.TempID
		return nil
	})
	if err != nil {
		return View{}, err
	}

	c.publish(ctx, room, notify.TypeOfferApplied, offerPayload{
		SessionID:   id,
		TempID:      tempID,
		ProductID:   p.ProductID,
		ProductName: p.ProductName,
	})
	return v, nil
}

// DiscardOffer drops the staged offer.
func (c *Cashier) DiscardOffer(id string) (View, error) {
	return c.update(id, func(o *order) error {
		o.offers.Discard()
		return nil
	})
}
