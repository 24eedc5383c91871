package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

const (
	KOTStatusPending   = "pending"
	KOTStatusCompleted = "completed"
)

// ── Roles (CHECK constrained in DB) ──

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// ── Dining contexts ──

const (
	DiningTypeDineIn   = "dine-in"
	DiningTypeTakeaway = "takeaway"
)

// ── Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash  = "cash"
	PaymentMethodUPI   = "upi"
	PaymentMethodCard  = "card"
	PaymentMethodOther = "other"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeAmount     = "amount"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidPaymentMethod reports whether s is a supported settlement method.
func ValidPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodUPI, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// ValidDiscountType reports whether s is a supported discount type.
func ValidDiscountType(s string) bool {
	switch s {
	case DiscountTypePercentage, DiscountTypeAmount:
		return true
	}
	return false
}
