package checkout

import (
	"context"
	"log"

	"github.com/kiwari-pos/cashier/internal/apperr"
)

// ErrCheckoutFailed is the sync error of a rejected or failed submission.
var ErrCheckoutFailed = apperr.New(apperr.KindSync, "checkout failed")

// Receipt is the backend's answer to a successful checkout.
type Receipt struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
}

// Submitter sends a checkout payload to the backend.
type Submitter interface {
	SubmitCheckout(ctx context.Context, p Payload) (Receipt, error)
}

// Send submits p. Failures are returned as sync errors carrying the
// backend's message when there is one.
func Send(ctx context.Context, s Submitter, p Payload) (Receipt, error) {
	rc, err := s.SubmitCheckout(ctx, p)
	if err != nil {
		log.Printf("ERROR: checkout %s amount=%s: %v", p.OrderType, p.Amount, err)
		return Receipt{}, apperr.Wrap(apperr.KindSync, ErrCheckoutFailed,
			apperr.MessageOf(err, ErrCheckoutFailed.Message))
	}
	return rc, nil
}
