package cart

import (
	"context"
	"log"
	"strings"

	"github.com/kiwari-pos/cashier/internal/apperr"
)

// ManagerCredentials authorize a void.
type ManagerCredentials struct {
	ManagerID       string
	ManagerPassword string
}

// VoidRequest is sent to the authorization collaborator.
type VoidRequest struct {
	ManagerID       string
	ManagerPassword string
	CartIDs         []string
	TableID         string
}

// VoidAuthorizer checks manager credentials and voids the cart rows server side.
type VoidAuthorizer interface {
	AuthorizeVoid(ctx context.Context, req VoidRequest) error
}

// VoidPlan validates a void without contacting the backend and returns the
// request that would be sent.
func (c Cart) VoidPlan(tempID string, creds ManagerCredentials) (VoidRequest, error) {
	if strings.TrimSpace(creds.ManagerID) == "" || creds.ManagerPassword == "" {
		return VoidRequest{}, ErrMissingCredentials
	}
	li, ok := c.Find(tempID)
	if !ok {
		return VoidRequest{}, ErrItemNotFound
	}
	cartIDs := li.CartIDs()
	if len(cartIDs) == 0 {
		log.Printf("ERROR: void item %s (%s): no cart_id", li.TempID, li.Name)
		return VoidRequest{}, ErrMissingCartReference
	}
	return VoidRequest{
		ManagerID:       creds.ManagerID,
		ManagerPassword: creds.ManagerPassword,
		CartIDs:         cartIDs,
		TableID:         c.TableID,
	}, nil
}

// Void permanently removes tempID after the authorizer accepts the manager
// credentials. On rejection the cart is returned unchanged.
func (c Cart) Void(ctx context.Context, tempID string, creds ManagerCredentials, auth VoidAuthorizer) (Cart, error) {
	req, err := c.VoidPlan(tempID, creds)
	if err != nil {
		return c, err
	}
	if err := Authorize(ctx, auth, req); err != nil {
		return c, err
	}
	return c.Remove(tempID)
}

// Authorize sends a planned void to auth. A rejection is returned as an
// authorization error carrying the backend's message.
func Authorize(ctx context.Context, auth VoidAuthorizer, req VoidRequest) error {
	if err := auth.AuthorizeVoid(ctx, req); err != nil {
		return apperr.Wrap(apperr.KindAuthorization, ErrVoidAuthorization,
			apperr.MessageOf(err, ErrVoidAuthorization.Message))
	}
	return nil
}
