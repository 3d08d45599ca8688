package prep

import (
	"context"
	"log"
	"sync"

	"github.com/kiwari-pos/cashier/internal/apperr"
	"github.com/kiwari-pos/cashier/internal/cart"
	"github.com/kiwari-pos/cashier/internal/item"
	"golang.org/x/sync/errgroup"
)

// defaultParallelism bounds AdvanceEach's concurrent backend calls.
const defaultParallelism = 4

// Errors returned by the machine.
var (
	ErrUnknownStatus        = apperr.New(apperr.KindValidation, "unknown preparation status")
	ErrTerminalStatus       = apperr.New(apperr.KindValidation, "item is already done")
	ErrItemBusy             = apperr.New(apperr.KindValidation, "item has an update in progress")
	ErrMissingCartReference = apperr.New(apperr.KindDataIntegrity, "item has no cart reference")
	ErrMissingTable         = apperr.New(apperr.KindDataIntegrity, "order has no table reference")
	ErrStatusSync           = apperr.New(apperr.KindSync, "failed to update item status")
)

// StatusUpdate is one backend status call. Bulk updates carry several cart ids.
type StatusUpdate struct {
	TableID string
	CartIDs []string
	Status  string
}

// StatusSyncer mirrors status changes to the backend.
type StatusSyncer interface {
	UpdateItemStatus(ctx context.Context, u StatusUpdate) error
}

// Outcome is the result of one item's transition. It is applied to a cart
// with Commit; failed outcomes are never applied.
type Outcome struct {
	TempID string
	From   string
	To     string
	Synced bool
	Err    error
}

// OK reports whether the outcome should be committed.
func (o Outcome) OK() bool { return o.Err == nil && o.To != "" }

// BulkResult collects a bulk transition. Skipped items were already at or
// past the target (or no longer in the cart); DataErrors lack a cart id.
type BulkResult struct {
	Outcomes   []Outcome
	Skipped    []string
	DataErrors []string
}

// Machine issues status transitions and tracks which items have a request
// in flight.
type Machine struct {
	syncer      StatusSyncer
	parallelism int

	mu   sync.Mutex
	busy map[string]struct{}
}

// NewMachine creates a Machine backed by syncer.
func NewMachine(syncer StatusSyncer) *Machine {
	return &Machine{
		syncer:      syncer,
		parallelism: defaultParallelism,
		busy:        make(map[string]struct{}),
	}
}

// Busy reports whether tempID has a status request in flight.
func (m *Machine) Busy(tempID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.busy[tempID]
	return ok
}

// acquire marks all ids busy, or none if any already is.
func (m *Machine) acquire(ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if _, ok := m.busy[id]; ok {
			return ErrItemBusy
		}
	}
	for _, id := range ids {
		m.busy[id] = struct{}{}
	}
	return nil
}

func (m *Machine) release(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.busy, id)
	}
}

// Advance moves tempID to its next status. A syncable next status is sent to
// the backend for this item alone and only reported as committed once the
// backend accepts it; the item is never optimistically advanced.
func (m *Machine) Advance(ctx context.Context, c cart.Cart, tempID string) (Outcome, error) {
	out := Outcome{TempID: tempID}
	fail := func(err error) (Outcome, error) {
		out.Err = err
		return out, err
	}

	li, ok := c.Find(tempID)
	if !ok {
		return fail(cart.ErrItemNotFound)
	}
	out.From = li.Status

	next, ok := Next(li.Status)
	if !ok {
		return fail(ErrUnknownStatus)
	}
	if next == "" {
		return fail(ErrTerminalStatus)
	}

	if !IsSyncable(next) {
		if m.Busy(tempID) {
			return fail(ErrItemBusy)
		}
		out.To = next
		return out, nil
	}

	cartIDs := li.CartIDs()
	if len(cartIDs) == 0 {
		log.Printf("ERROR: advance item %s (%s) to %s: no cart_id", li.TempID, li.Name, next)
		return fail(ErrMissingCartReference)
	}
	if c.TableID == "" {
		log.Printf("ERROR: advance item %s (%s) to %s: no table_id", li.TempID, li.Name, next)
		return fail(ErrMissingTable)
	}

	if err := m.acquire(tempID); err != nil {
		return fail(err)
	}
	defer m.release(tempID)

	err := m.syncer.UpdateItemStatus(ctx, StatusUpdate{
		TableID: c.TableID,
		CartIDs: cartIDs,
		Status:  next,
	})
	if err != nil {
		log.Printf("ERROR: advance item %s to %s: %v", li.TempID, next, err)
		return fail(syncError(err))
	}

	out.To = next
	out.Synced = true
	return out, nil
}

// AdvanceEach advances every item independently and concurrently. Each
// item yields its own outcome; one failure does not affect the others.
func (m *Machine) AdvanceEach(ctx context.Context, c cart.Cart, tempIDs []string) []Outcome {
	outcomes := make([]Outcome, len(tempIDs))

	var g errgroup.Group
	g.SetLimit(m.parallelism)
	for i, id := range tempIDs {
		i, id := i, id
		g.Go(func() error {
			out, err := m.Advance(ctx, c, id)
			if err != nil {
				out.TempID = id
				out.Err = err
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// BulkAdvance moves the selected items to target. Items already at or past
// target are skipped individually. Syncable targets are sent as one batched
// call; local-only targets commit without a call and are reported even when
// the batch fails. The returned error is the batch's sync error, if any.
func (m *Machine) BulkAdvance(ctx context.Context, c cart.Cart, tempIDs []string, target string) (BulkResult, error) {
	var res BulkResult

	targetRank, ok := Rank(target)
	if !ok {
		return res, ErrUnknownStatus
	}
	syncable := IsSyncable(target)

	var batch []item.LineItem
	seen := make(map[string]bool, len(tempIDs))
	for _, id := range tempIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		li, ok := c.Find(id)
		if !ok {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		r, ok := Rank(li.Status)
		if !ok || r > targetRank || li.Status == target {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		if m.Busy(id) {
			res.Skipped = append(res.Skipped, id)
			continue
		}

		if !syncable {
			res.Outcomes = append(res.Outcomes, Outcome{TempID: id, From: li.Status, To: target})
			continue
		}
		if len(li.CartIDs()) == 0 {
			log.Printf("ERROR: bulk status %s: item %s (%s) has no cart_id", target, li.TempID, li.Name)
			res.DataErrors = append(res.DataErrors, id)
			continue
		}
		batch = append(batch, li)
	}

	if len(batch) == 0 {
		return res, nil
	}

	if c.TableID == "" {
		for _, li := range batch {
			log.Printf("ERROR: bulk status %s: item %s has no table_id", target, li.TempID)
			res.DataErrors = append(res.DataErrors, li.TempID)
		}
		return res, nil
	}

	ids := make([]string, len(batch))
	var cartIDs []string
	for i, li := range batch {
		ids[i] = li.TempID
		cartIDs = append(cartIDs, li.CartIDs()...)
	}

	if err := m.acquire(ids...); err != nil {
		for _, li := range batch {
			res.Outcomes = append(res.Outcomes, Outcome{TempID: li.TempID, From: li.Status, Err: err})
		}
		return res, err
	}
	defer m.release(ids...)

	err := m.syncer.UpdateItemStatus(ctx, StatusUpdate{
		TableID: c.TableID,
		CartIDs: cartIDs,
		Status:  target,
	})
	if err != nil {
		log.Printf("ERROR: bulk status %s for %d items: %v", target, len(batch), err)
		serr := syncError(err)
		for _, li := range batch {
			res.Outcomes = append(res.Outcomes, Outcome{TempID: li.TempID, From: li.Status, Err: serr})
		}
		return res, serr
	}

	for _, li := range batch {
		res.Outcomes = append(res.Outcomes, Outcome{TempID: li.TempID, From: li.Status, To: target, Synced: true})
	}
	return res, nil
}

// Commit applies the successful outcomes to c. An outcome never moves an
// item backwards, even if the item changed while its request was in flight.
func Commit(c cart.Cart, outcomes ...Outcome) cart.Cart {
	statuses := make(map[string]string)
	for _, o := range outcomes {
		if !o.OK() {
			continue
		}
		li, ok := c.Find(o.TempID)
		if !ok {
			continue
		}
		cur, _ := Rank(li.Status)
		to, _ := Rank(o.To)
		if to < cur {
			continue
		}
		statuses[o.TempID] = o.To
	}
	return c.SetStatuses(statuses)
}

func syncError(err error) error {
	return apperr.Wrap(apperr.KindSync, ErrStatusSync, apperr.MessageOf(err, ErrStatusSync.Message))
}
