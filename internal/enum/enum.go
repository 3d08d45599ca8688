package enum

// ── Group A: State machines (mirrored by the backend) ──

const (
	PrepStatusPending   = "pending"
	PrepStatusWaiting   = "waiting"
	PrepStatusPreparing = "preparing"
	PrepStatusPickUp    = "pick_up"
	PrepStatusDone      = "done"
)

// ── Group B: Order context ──

const (
	OrderTypeDineIn   = "dine_in"
	OrderTypeTakeAway = "take_away"
	OrderTypeDelivery = "delivery"
)

// ── Group C: Pricing configuration ──

const (
	ServiceFeePercentage = "percentage"
	ServiceFeeFixed      = "fixed"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeAmount     = "amount"
)

// ── Group D: Roles carried in cashier tokens ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleWaiter  = "WAITER"
)

// IsOrderType reports whether s is a known order type.
func IsOrderType(s string) bool {
	switch s {
	case OrderTypeDineIn, OrderTypeTakeAway, OrderTypeDelivery:
		return true
	}
	return false
}
