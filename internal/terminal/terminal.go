// Package terminal models the per-register local tier of the POS: the KOTs
// and order aggregates a terminal owns while an order is still being taken.
// The backend database becomes authoritative only once an order is submitted
// or billed; until then the terminal store is the source of truth and is
// what the sync relay replicates between registers.
package terminal

import (
	"context"
	"errors"
	"time"

	"github.com/annapurna-pos/api/internal/enum"
	"github.com/annapurna-pos/api/internal/xid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by reads and updates on absent ids. Deletes on
// absent ids are no-ops so duplicate delete clicks stay harmless.
var ErrNotFound = errors.New("not found")

// LineItem is one ordered product line on a KOT or an order aggregate.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// KOT is a kitchen order ticket: an atomic batch of items saved from the
// menu for one table or takeaway session. Items are immutable after
// creation; corrections are modeled as new KOTs or whole-KOT deletion.
type KOT struct {
	ID           string     `json:"id"`
	DiningType   string     `json:"dining_type"`
	TableNumber  int        `json:"table_number,omitempty"`
	CustomerName string     `json:"customer_name"`
	Phone        string     `json:"phone"`
	CarDetails   string     `json:"car_details,omitempty"`
	Items        []LineItem `json:"items"`
	Status       string     `json:"status"`
	OrderCreated bool       `json:"order_created"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Order is the merged, billable aggregate of all not-yet-billed KOTs for
// one table or one takeaway session.
type Order struct {
	ID           string          `json:"id"`
	DiningType   string          `json:"dining_type"`
	TableNumber  int             `json:"table_number,omitempty"`
	CustomerName string          `json:"customer_name"`
	Phone        string          `json:"phone"`
	Items        []LineItem      `json:"items"`
	KOTIDs       []string        `json:"kot_ids"`
	Status       string          `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Snapshot is the full local state of a terminal, serialized as one unit.
// The relay broadcasts snapshots wholesale; receivers replace their local
// state with the incoming one (last writer wins, no merge).
type Snapshot struct {
	KOTs           []KOT   `json:"kots"`
	Orders         []Order `json:"orders"`
	TakeawayOrders []Order `json:"takeaway_orders"`
}

// NewKOTID returns a time-ordered kitchen ticket id.
func NewKOTID() string { return xid.New("KOT") }

// NewOrderID returns a time-ordered order id prefixed by dining context.
func NewOrderID(diningType string) string {
	if diningType == enum.DiningTypeTakeaway {
		return xid.New("TAKE")
	}
	return xid.New("DINE")
}

// IsTakeaway reports whether the KOT belongs to the takeaway bucket: either
// tagged takeaway explicitly or carrying no table number.
func (k KOT) IsTakeaway() bool {
	return k.DiningType == enum.DiningTypeTakeaway || k.TableNumber == 0
}

// Store is the durable local store of a terminal session. Implementations
// must serialize all mutations internally; callers never hold locks. The
// relay's ReplaceSnapshot goes through the same serialization, so a remote
// apply can never interleave with a local mutation.
type Store interface {
	CreateKOT(ctx context.Context, kot KOT) error
	GetKOT(ctx context.Context, id string) (KOT, error)
	ListKOTs(ctx context.Context) ([]KOT, error)
	UpdateKOT(ctx context.Context, kot KOT) error
	DeleteKOT(ctx context.Context, id string) error

	CreateOrder(ctx context.Context, order Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateOrder(ctx context.Context, order Order) error
	DeleteOrder(ctx context.Context, id string) error

	Snapshot(ctx context.Context) (Snapshot, error)
	ReplaceSnapshot(ctx context.Context, snap Snapshot) error
}

// CloneItems returns a deep copy of a line-item slice so stored state never
// aliases caller slices.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
