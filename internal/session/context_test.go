package session

import (
	"context"
	"errors"
	"testing"

	"github.com/kiwari-pos/cashier/internal/enum"
)

// --- Mock implementations ---

type mockStore struct {
	getFn    func(ctx context.Context, key string) (string, bool, error)
	setFn    func(ctx context.Context, key, value string) error
	deleteFn func(ctx context.Context, keys ...string) error
}

func (m *mockStore) Get(ctx context.Context, key string) (string, bool, error) {
	return m.getFn(ctx, key)
}

func (m *mockStore) Set(ctx context.Context, key, value string) error {
	return m.setFn(ctx, key, value)
}

func (m *mockStore) Delete(ctx context.Context, keys ...string) error {
	return m.deleteFn(ctx, keys...)
}

// =====================
// Context
// =====================

func TestContext_TypedAccessors(t *testing.T) {
	ctx := context.Background()
	sc := NewContext(NewMemoryStore(), "s1")

	if err := sc.SetTableID(ctx, "t-4"); err != nil {
		t.Fatalf("set table: %v", err)
	}
	if err := sc.SetCashierID(ctx, "c-1"); err != nil {
		t.Fatalf("set cashier: %v", err)
	}
	if err := sc.SetOrderType(ctx, enum.OrderTypeDineIn); err != nil {
		t.Fatalf("set order type: %v", err)
	}

	got, err := sc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.TableID != "t-4" || got.CashierID != "c-1" || got.OrderType != enum.OrderTypeDineIn {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.UserID != "" {
		t.Fatalf("expected empty user, got %s", got.UserID)
	}
}

func TestContext_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := NewContext(store, "a")
	b := NewContext(store, "b")

	if err := a.SetUserID(ctx, "u-1"); err != nil {
		t.Fatalf("set user: %v", err)
	}
	if v, _ := b.UserID(ctx); v != "" {
		t.Fatalf("session b sees session a's user: %s", v)
	}
}

func TestContext_RejectsUnknownOrderType(t *testing.T) {
	sc := NewContext(NewMemoryStore(), "s1")
	if err := sc.SetOrderType(context.Background(), "drive_thru"); !errors.Is(err, ErrInvalidOrderType) {
		t.Fatalf("expected ErrInvalidOrderType, got: %v", err)
	}
}

func TestContext_TransferMarker(t *testing.T) {
	ctx := context.Background()
	sc := NewContext(NewMemoryStore(), "s1")

	if _, ok, _ := sc.PendingTransfer(ctx); ok {
		t.Fatal("expected no pending transfer")
	}
	if err := sc.MarkTransfer(ctx, "t-1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	from, ok, err := sc.PendingTransfer(ctx)
	if err != nil || !ok || from != "t-1" {
		t.Fatalf("expected pending transfer from t-1, got %q ok=%v err=%v", from, ok, err)
	}
	if err := sc.ClearTransfer(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := sc.PendingTransfer(ctx); ok {
		t.Fatal("expected marker cleared")
	}
}

func TestContext_SetEmptyDeletes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sc := NewContext(store, "s1")

	_ = sc.SetAddressID(ctx, "addr-1")
	_ = sc.SetAddressID(ctx, "")
	if _, ok, _ := store.Get(ctx, "session:s1:address_id"); ok {
		t.Fatal("expected key deleted")
	}
}

func TestContext_Clear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sc := NewContext(store, "s1")
	_ = sc.SetTableID(ctx, "t-1")
	_ = sc.SetUserID(ctx, "u-1")

	if err := sc.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ := sc.Snapshot(ctx)
	if got != (Values{}) {
		t.Fatalf("expected empty snapshot, got %+v", got)
	}
}

func TestContext_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("store down")
	sc := NewContext(&mockStore{
		getFn: func(ctx context.Context, key string) (string, bool, error) { return "", false, boom },
	}, "s1")

	if _, err := sc.Snapshot(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got: %v", err)
	}
}
