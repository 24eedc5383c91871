// Package service holds the order-to-bill core: KOT bookkeeping, the
// per-table/per-takeaway aggregation that folds KOTs into orders, the
// order lifecycle state machine, and bill settlement.
package service

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/annapurna-pos/api/internal/terminal"
)

// Relay propagates terminal state and server events to the other registers
// of a hotel. Delivery is best effort: implementations must never block or
// fail the mutating caller, and the services treat publishing as
// fire-and-forget.
type Relay interface {
	PublishSnapshot(hotelID uuid.UUID, snap terminal.Snapshot)
	PublishEvent(hotelID uuid.UUID, eventType string, payload any)
}

// NopRelay discards everything. Used when a terminal runs standalone.
type NopRelay struct{}

func (NopRelay) PublishSnapshot(uuid.UUID, terminal.Snapshot) {}
func (NopRelay) PublishEvent(uuid.UUID, string, any)          {}

// --- pgtype conversion helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// itemsTotal is the one place line totals are computed: Σ(price × qty).
func itemsTotal(items []terminal.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// mergeItems folds src into dst keyed by product id: existing products get
// their quantities summed, new products are appended in order.
func mergeItems(dst, src []terminal.LineItem) []terminal.LineItem {
	index := make(map[string]int, len(dst))
	for i, item := range dst {
		index[item.ProductID] = i
	}
	for _, item := range src {
		if i, ok := index[item.ProductID]; ok {
			dst[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(dst)
		dst = append(dst, item)
	}
	return dst
}
