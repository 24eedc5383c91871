package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/annapurna-pos/api/internal/enum"
	"github.com/annapurna-pos/api/internal/terminal"
)

// Aggregator computes the merged per-table / per-takeaway order view from
// the terminal's unfolded KOTs. It owns the merge-by-product-id semantics
// and the partition rules; nothing else in the codebase merges items.
type Aggregator struct {
	store terminal.Store

	// mergeWindow is how long a pending takeaway order accepts follow-up
	// KOTs from the same customer phone.
	mergeWindow time.Duration

	now func() time.Time
}

func NewAggregator(store terminal.Store, mergeWindow time.Duration) *Aggregator {
	return &Aggregator{store: store, mergeWindow: mergeWindow, now: time.Now}
}

// FoldRequest selects which unfolded KOTs to fold. An empty request folds
// everything currently unfolded.
type FoldRequest struct {
	// KOTIDs restricts the fold to these tickets. Already-folded tickets in
	// the list are skipped, which makes repeated folds idempotent.
	KOTIDs []string

	// TargetTakeawayOrderID explicitly names the pending takeaway order to
	// merge into, overriding the phone-recency match.
	TargetTakeawayOrderID string
}

// FoldResult reports the orders the fold touched. A fold that matched no
// unfolded KOTs returns an empty result, not an error.
type FoldResult struct {
	Created []terminal.Order
	Updated []terminal.Order
}

// Fold partitions the unfolded KOTs into takeaway sessions (keyed by phone)
// and dine-in tables, then merges each bucket into its open pending order
// or seeds a new one. All folded tickets are flagged order-created.
//
// Rules, in order:
//   - a table has at most one open pending order; new KOTs append into it
//   - a completed order is never reopened; the table gets a fresh order
//   - takeaway KOTs merge into a same-phone pending order younger than the
//     merge window, or into the explicitly named target order
//   - the order keeps the customer name of the first KOT that created it
//   - merged quantity per product is the sum across constituent KOTs
func (a *Aggregator) Fold(ctx context.Context, req FoldRequest) (FoldResult, error) {
	kots, err := a.store.ListKOTs(ctx)
	if err != nil {
		return FoldResult{}, fmt.Errorf("list kots: %w", err)
	}

	var selected []terminal.KOT
	for _, kot := range kots {
		if kot.OrderCreated {
			continue
		}
		if len(req.KOTIDs) > 0 && !slices.Contains(req.KOTIDs, kot.ID) {
			continue
		}
		selected = append(selected, kot)
	}
	if len(selected) == 0 {
		return FoldResult{}, nil
	}

	orders, err := a.store.ListOrders(ctx)
	if err != nil {
		return FoldResult{}, fmt.Errorf("list orders: %w", err)
	}

	var result FoldResult

	// Partition: takeaway sessions by phone, dine-in by table number.
	takeawayByPhone := make(map[string][]terminal.KOT)
	dineInByTable := make(map[int][]terminal.KOT)
	var phones []string
	var tables []int
	for _, kot := range selected {
		if kot.IsTakeaway() {
			if _, ok := takeawayByPhone[kot.Phone]; !ok {
				phones = append(phones, kot.Phone)
			}
			takeawayByPhone[kot.Phone] = append(takeawayByPhone[kot.Phone], kot)
		} else {
			if _, ok := dineInByTable[kot.TableNumber]; !ok {
				tables = append(tables, kot.TableNumber)
			}
			dineInByTable[kot.TableNumber] = append(dineInByTable[kot.TableNumber], kot)
		}
	}

	for _, phone := range phones {
		group := takeawayByPhone[phone]
		target := a.matchTakeawayOrder(orders, phone, req.TargetTakeawayOrderID)
		touched, created, err := a.foldGroup(ctx, target, group, enum.DiningTypeTakeaway, 0)
		if err != nil {
			return FoldResult{}, err
		}
		if created {
			orders = append(orders, touched)
			result.Created = append(result.Created, touched)
		} else {
			result.Updated = append(result.Updated, touched)
		}
	}

	for _, table := range tables {
		group := dineInByTable[table]
		target := matchDineInOrder(orders, table)
		touched, created, err := a.foldGroup(ctx, target, group, enum.DiningTypeDineIn, table)
		if err != nil {
			return FoldResult{}, err
		}
		if created {
			result.Created = append(result.Created, touched)
		} else {
			result.Updated = append(result.Updated, touched)
		}
	}

	return result, nil
}

// foldGroup merges a bucket of KOTs into target (nil seeds a new order) and
// persists both the order and the folded flags.
func (a *Aggregator) foldGroup(ctx context.Context, target *terminal.Order, group []terminal.KOT, diningType string, table int) (terminal.Order, bool, error) {
	created := false
	var order terminal.Order
	if target == nil {
		created = true
		first := group[0]
		order = terminal.Order{
			ID:           terminal.NewOrderID(diningType),
			DiningType:   diningType,
			TableNumber:  table,
			CustomerName: first.CustomerName,
			Phone:        first.Phone,
			Status:       enum.OrderStatusPending,
			CreatedAt:    a.now(),
		}
	} else {
		order = *target
	}

	changed := created
	for _, kot := range group {
		// Dedupe by ticket id so re-folding a constituent never double counts.
		if slices.Contains(order.KOTIDs, kot.ID) {
			continue
		}
		order.KOTIDs = append(order.KOTIDs, kot.ID)
		order.Items = mergeItems(order.Items, terminal.CloneItems(kot.Items))
		changed = true

		// Folding consumes the ticket: it leaves the pending kitchen queue.
		kot.OrderCreated = true
		kot.Status = enum.KOTStatusCompleted
		if err := a.store.UpdateKOT(ctx, kot); err != nil {
			return terminal.Order{}, false, fmt.Errorf("mark kot folded: %w", err)
		}
	}

	if changed {
		order.TotalAmount = itemsTotal(order.Items)
		order.UpdatedAt = a.now()
	}

	if created {
		if err := a.store.CreateOrder(ctx, order); err != nil {
			return terminal.Order{}, false, fmt.Errorf("create order: %w", err)
		}
	} else if changed {
		if err := a.store.UpdateOrder(ctx, order); err != nil {
			return terminal.Order{}, false, fmt.Errorf("update order: %w", err)
		}
	}
	return order, created, nil
}

// matchTakeawayOrder picks the pending takeaway order to merge into: the
// explicitly named one when given, otherwise the most recent same-phone
// pending order inside the merge window.
func (a *Aggregator) matchTakeawayOrder(orders []terminal.Order, phone, targetID string) *terminal.Order {
	if targetID != "" {
		for i := range orders {
			o := &orders[i]
			if o.ID == targetID && o.Status == enum.OrderStatusPending && o.DiningType == enum.DiningTypeTakeaway {
				return o
			}
		}
	}
	if phone == "" {
		return nil
	}
	cutoff := a.now().Add(-a.mergeWindow)
	var best *terminal.Order
	for i := range orders {
		o := &orders[i]
		if o.DiningType != enum.DiningTypeTakeaway || o.Status != enum.OrderStatusPending {
			continue
		}
		if o.Phone != phone || o.CreatedAt.Before(cutoff) {
			continue
		}
		if best == nil || o.CreatedAt.After(best.CreatedAt) {
			best = o
		}
	}
	return best
}

func matchDineInOrder(orders []terminal.Order, table int) *terminal.Order {
	for i := range orders {
		o := &orders[i]
		// Only a pending order is open for appends; a completed or cancelled
		// order stays archived and the table gets a new one.
		if o.DiningType == enum.DiningTypeDineIn && o.TableNumber == table && o.Status == enum.OrderStatusPending {
			return o
		}
	}
	return nil
}

// RetractKOT removes a folded ticket's contribution from its order. The
// merged items are rebuilt from the remaining constituent tickets rather
// than subtracted, so the sum invariant cannot drift. An order with no
// constituents left is deleted.
func (a *Aggregator) RetractKOT(ctx context.Context, kot terminal.KOT) error {
	orders, err := a.store.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}

	for _, order := range orders {
		idx := slices.Index(order.KOTIDs, kot.ID)
		if idx < 0 {
			continue
		}
		order.KOTIDs = slices.Delete(order.KOTIDs, idx, idx+1)

		if len(order.KOTIDs) == 0 {
			if err := a.store.DeleteOrder(ctx, order.ID); err != nil {
				return fmt.Errorf("delete emptied order: %w", err)
			}
			return nil
		}

		order.Items = nil
		for _, id := range order.KOTIDs {
			constituent, err := a.store.GetKOT(ctx, id)
			if err != nil {
				return fmt.Errorf("load constituent kot %s: %w", id, err)
			}
			order.Items = mergeItems(order.Items, terminal.CloneItems(constituent.Items))
		}
		order.TotalAmount = itemsTotal(order.Items)
		order.UpdatedAt = a.now()
		if err := a.store.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	}
	return nil
}
