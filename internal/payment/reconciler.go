// Package payment reconciles split payments against the amount due.
//
// The sum of all split amounts never exceeds the required total: inputs that
// would over-allocate are reduced to the remaining headroom and reported as
// clamped. A reconciler is not safe for concurrent use; its owner serializes
// access.
package payment

import (
	"github.com/google/uuid"
	"github.com/kiwari-pos/cashier/internal/apperr"
	"github.com/kiwari-pos/cashier/internal/money"
	"github.com/shopspring/decimal"
)

// Errors returned by the reconciler.
var (
	ErrSplitNotFound      = apperr.New(apperr.KindNotFound, "payment split not found")
	ErrNegativeAmount     = apperr.New(apperr.KindValidation, "amount must not be negative")
	ErrNoFinancialAccount = apperr.New(apperr.KindValidation, "no financial account available for payment")
	ErrUnknownAccount     = apperr.New(apperr.KindValidation, "unknown financial account")
	ErrUnderfundedPayment = apperr.New(apperr.KindValidation, "payment splits do not cover the amount due")
	ErrNotEditable        = apperr.New(apperr.KindValidation, "payment is being submitted")
	ErrAlreadySubmitted   = apperr.New(apperr.KindValidation, "payment was already submitted")
)

// State is the checkout state of a reconciler.
type State int

const (
	StateEditing State = iota
	StateSubmitting
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	default:
		return "editing"
	}
}

// Account is a financial account a split can be booked to.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Split is one tender of a payment.
type Split struct {
	ID                 string
	FinancialAccountID string
	Amount             decimal.Decimal
}

// Reconciler holds the splits of one payment.
type Reconciler struct {
	required     decimal.Decimal
	accounts     []Account
	splits       []Split
	customerPaid decimal.Decimal

	state   State
	lastErr error
}

// NewReconciler creates an empty reconciler for required. A negative
// required total is treated as zero.
func NewReconciler(required decimal.Decimal, accounts []Account) *Reconciler {
	r := &Reconciler{
		required:     money.NonNegative(money.Round(required)),
		customerPaid: decimal.Zero,
	}
	r.SetAccounts(accounts)
	return r
}

// headroom is what a split may hold given the sum of the other splits.
func headroom(required, others decimal.Decimal) decimal.Decimal {
	return money.NonNegative(required.Sub(others))
}

func (r *Reconciler) index(id string) int {
	for i, s := range r.splits {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (r *Reconciler) sumExcept(skip int) decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(r.splits))
	for i, s := range r.splits {
		if i != skip {
			amounts = append(amounts, s.Amount)
		}
	}
	return money.Sum(amounts...)
}

func (r *Reconciler) editable() error {
	switch r.state {
	case StateSubmitting:
		return ErrNotEditable
	case StateSucceeded:
		return ErrAlreadySubmitted
	}
	return nil
}

// SetAccounts replaces the selectable financial accounts.
func (r *Reconciler) SetAccounts(accounts []Account) {
	r.accounts = append([]Account(nil), accounts...)
}

// Accounts returns the selectable financial accounts.
func (r *Reconciler) Accounts() []Account {
	return append([]Account(nil), r.accounts...)
}

// Required is the amount due.
func (r *Reconciler) Required() decimal.Decimal { return r.required }

// Splits returns a copy of the splits in order.
func (r *Reconciler) Splits() []Split {
	return append([]Split(nil), r.splits...)
}

// Total is the sum of all split amounts.
func (r *Reconciler) Total() decimal.Decimal { return r.sumExcept(-1) }

// Remaining is the unallocated part of the amount due.
func (r *Reconciler) Remaining() decimal.Decimal {
	return headroom(r.required, r.Total())
}

// SetSplitAmount sets the amount of split id. A value above the headroom left
// by the other splits is reduced to exactly that headroom; clamped reports
// when this happened. The applied amount is returned.
func (r *Reconciler) SetSplitAmount(id string, v decimal.Decimal) (applied decimal.Decimal, clamped bool, err error) {
	if err := r.editable(); err != nil {
		return decimal.Zero, false, err
	}
	if v.IsNegative() {
		return decimal.Zero, false, ErrNegativeAmount
	}
	i := r.index(id)
	if i < 0 {
		return decimal.Zero, false, ErrSplitNotFound
	}

	v = money.Round(v)
	room := headroom(r.required, r.sumExcept(i))
	if v.GreaterThan(room) {
		v = room
		clamped = true
	}
	r.splits[i].Amount = v
	return v, clamped, nil
}

// SetSplitAccount books split id to accountID.
func (r *Reconciler) SetSplitAccount(id, accountID string) error {
	if err := r.editable(); err != nil {
		return err
	}
	i := r.index(id)
	if i < 0 {
		return ErrSplitNotFound
	}
	if !r.hasAccount(accountID) {
		return ErrUnknownAccount
	}
	r.splits[i].FinancialAccountID = accountID
	return nil
}

func (r *Reconciler) hasAccount(id string) bool {
	for _, a := range r.accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}

// AddSplit appends a split holding the remaining amount, booked to the first
// financial account.
func (r *Reconciler) AddSplit() (Split, error) {
	if err := r.editable(); err != nil {
		return Split{}, err
	}
	if len(r.accounts) == 0 {
		return Split{}, ErrNoFinancialAccount
	}
	s := Split{
		ID:                 uuid.NewString(),
		FinancialAccountID: r.accounts[0].ID,
		Amount:             r.Remaining(),
	}
	r.splits = append(r.splits, s)
	return s, nil
}

// RemoveSplit drops split id. The set may become empty.
func (r *Reconciler) RemoveSplit(id string) error {
	if err := r.editable(); err != nil {
		return err
	}
	i := r.index(id)
	if i < 0 {
		return ErrSplitNotFound
	}
	r.splits = append(r.splits[:i:i], r.splits[i+1:]...)
	return nil
}

// SetRequiredTotal changes the amount due. When the splits now exceed it, the
// excess is taken off the last splits first; splits are kept, possibly at zero.
func (r *Reconciler) SetRequiredTotal(v decimal.Decimal) error {
	if err := r.editable(); err != nil {
		return err
	}
	r.required = money.NonNegative(money.Round(v))

	excess := r.Total().Sub(r.required)
	for i := len(r.splits) - 1; i >= 0 && excess.IsPositive(); i-- {
		cut := decimal.Min(excess, r.splits[i].Amount)
		r.splits[i].Amount = r.splits[i].Amount.Sub(cut)
		excess = excess.Sub(cut)
	}
	return nil
}

// IsSettled reports whether the splits cover the amount due.
func (r *Reconciler) IsSettled() bool {
	return r.Total().GreaterThanOrEqual(r.required)
}

// ChangeDue is the amount allocated beyond the amount due.
func (r *Reconciler) ChangeDue() decimal.Decimal {
	return money.NonNegative(r.Total().Sub(r.required))
}

// SetCustomerPaid records the cash handed over by the customer.
func (r *Reconciler) SetCustomerPaid(v decimal.Decimal) error {
	if v.IsNegative() {
		return ErrNegativeAmount
	}
	r.customerPaid = money.Round(v)
	return nil
}

// CashChange is the change owed on the customer-paid figure. It is only
// meaningful when a single split settles the whole order; otherwise zero.
func (r *Reconciler) CashChange() decimal.Decimal {
	if len(r.splits) != 1 || !r.IsSettled() {
		return decimal.Zero
	}
	return money.NonNegative(r.customerPaid.Sub(r.required))
}

// State returns the checkout state.
func (r *Reconciler) State() State { return r.state }

// LastError is the error of the most recent failed submission.
func (r *Reconciler) LastError() error { return r.lastErr }

// Begin moves the reconciler into submission and returns the splits to
// submit. It fails unless the splits are settled with a nonzero sum.
func (r *Reconciler) Begin() ([]Split, error) {
	if err := r.editable(); err != nil {
		return nil, err
	}
	if !r.IsSettled() || r.Total().IsZero() {
		return nil, ErrUnderfundedPayment
	}
	r.state = StateSubmitting
	r.lastErr = nil
	return r.Splits(), nil
}

// Finish ends a submission started by Begin. A nil err marks the payment
// succeeded; otherwise the reconciler returns to editing with its splits
// intact and err recorded.
func (r *Reconciler) Finish(err error) {
	if r.state != StateSubmitting {
		return
	}
	if err != nil {
		r.state = StateEditing
		r.lastErr = err
		return
	}
	r.state = StateSucceeded
}
