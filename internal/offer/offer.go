// Package offer stages loyalty-offer rewards awaiting confirmation.
//
// A successful validation call produces a PendingApproval. It lives until
// the cashier approves it (and it becomes a reward line item) or discards it.
package offer

import (
	"context"
	"strings"
	"sync"

	"github.com/kiwari-pos/cashier/internal/apperr"
)

// Errors returned by the offer stage.
var (
	ErrEmptyCode     = apperr.New(apperr.KindValidation, "offer code is required")
	ErrNoPending     = apperr.New(apperr.KindValidation, "no offer is awaiting approval")
	ErrValidateOffer = apperr.New(apperr.KindSync, "failed to validate offer")
	ErrApproveOffer  = apperr.New(apperr.KindSync, "failed to approve offer")
)

// PendingApproval is a validated offer reward not yet added to the cart.
type PendingApproval struct {
	OfferOrderID   string
	UserID         string
	ProductID      string
	ProductName    string
	PointsRequired int
}

// Validator checks an offer code against the backend.
type Validator interface {
	ValidateOffer(ctx context.Context, code string) (PendingApproval, error)
}

// Approver confirms a staged offer with the backend.
type Approver interface {
	ApproveOffer(ctx context.Context, offerOrderID, userID string) error
}

// Stage holds at most one pending approval.
type Stage struct {
	mu      sync.Mutex
	pending *PendingApproval
}

// Pending returns the staged approval, if any.
func (s *Stage) Pending() (PendingApproval, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return PendingApproval{}, false
	}
	return *s.pending, true
}

// Validate checks code and stages the result, replacing any previous one.
// An empty code fails without a network call.
func (s *Stage) Validate(ctx context.Context, v Validator, code string) (PendingApproval, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return PendingApproval{}, ErrEmptyCode
	}

	p, err := v.ValidateOffer(ctx, code)
	if err != nil {
		return PendingApproval{}, apperr.Wrap(apperr.KindSync, ErrValidateOffer,
			apperr.MessageOf(err, ErrValidateOffer.Message))
	}

	s.mu.Lock()
	s.pending = &p
	s.mu.Unlock()
	return p, nil
}

// Approve confirms the staged offer. On success the stage is cleared and the
// approval is returned for conversion into a reward item; on failure it
// stays staged so the cashier can retry.
func (s *Stage) Approve(ctx context.Context, a Approver) (PendingApproval, error) {
	p, ok := s.Pending()
	if !ok {
		return PendingApproval{}, ErrNoPending
	}

	if err := a.ApproveOffer(ctx, p.OfferOrderID, p.UserID); err != nil {
		return PendingApproval{}, apperr.Wrap(apperr.KindSync, ErrApproveOffer,
			apperr.MessageOf(err, ErrApproveOffer.Message))
	}

	s.mu.Lock()
	if s.pending != nil && s.pending.OfferOrderID == p.OfferOrderID {
		s.pending = nil
	}
	s.mu.Unlock()
	return p, nil
}

// Discard drops the staged offer.
func (s *Stage) Discard() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}
