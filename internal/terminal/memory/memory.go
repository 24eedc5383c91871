// Package memory is the in-process terminal store used by single-register
// deployments and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/annapurna-pos/api/internal/enum"
	"github.com/annapurna-pos/api/internal/terminal"
)

type Store struct {
	mu     sync.RWMutex
	kots   map[string]terminal.KOT
	orders map[string]terminal.Order
}

func New() *Store {
	return &Store{
		kots:   make(map[string]terminal.KOT),
		orders: make(map[string]terminal.Order),
	}
}

func (s *Store) CreateKOT(ctx context.Context, kot terminal.KOT) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kot.Items = terminal.CloneItems(kot.Items)
	s.kots[kot.ID] = kot
	return nil
}

func (s *Store) GetKOT(ctx context.Context, id string) (terminal.KOT, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kot, ok := s.kots[id]
	if !ok {
		return terminal.KOT{}, terminal.ErrNotFound
	}
	kot.Items = terminal.CloneItems(kot.Items)
	return kot, nil
}

func (s *Store) ListKOTs(ctx context.Context) ([]terminal.KOT, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]terminal.KOT, 0, len(s.kots))
	for _, kot := range s.kots {
		kot.Items = terminal.CloneItems(kot.Items)
		out = append(out, kot)
	}
	sortKOTs(out)
	return out, nil
}

func (s *Store) UpdateKOT(ctx context.Context, kot terminal.KOT) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kots[kot.ID]; !ok {
		return terminal.ErrNotFound
	}
	kot.Items = terminal.CloneItems(kot.Items)
	s.kots[kot.ID] = kot
	return nil
}

func (s *Store) DeleteKOT(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kots, id)
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order terminal.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (terminal.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return terminal.Order{}, terminal.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) ListOrders(ctx context.Context) ([]terminal.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]terminal.Order, 0, len(s.orders))
	for _, order := range s.orders {
		out = append(out, cloneOrder(order))
	}
	sortOrders(out)
	return out, nil
}

func (s *Store) UpdateOrder(ctx context.Context, order terminal.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; !ok {
		return terminal.ErrNotFound
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	return nil
}

func (s *Store) Snapshot(ctx context.Context) (terminal.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := terminal.Snapshot{}
	for _, kot := range s.kots {
		kot.Items = terminal.CloneItems(kot.Items)
		snap.KOTs = append(snap.KOTs, kot)
	}
	for _, order := range s.orders {
		if order.DiningType == enum.DiningTypeTakeaway {
			snap.TakeawayOrders = append(snap.TakeawayOrders, cloneOrder(order))
		} else {
			snap.Orders = append(snap.Orders, cloneOrder(order))
		}
	}
	sortKOTs(snap.KOTs)
	sortOrders(snap.Orders)
	sortOrders(snap.TakeawayOrders)
	return snap, nil
}

func (s *Store) ReplaceSnapshot(ctx context.Context, snap terminal.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kots = make(map[string]terminal.KOT, len(snap.KOTs))
	for _, kot := range snap.KOTs {
		kot.Items = terminal.CloneItems(kot.Items)
		s.kots[kot.ID] = kot
	}
	s.orders = make(map[string]terminal.Order, len(snap.Orders)+len(snap.TakeawayOrders))
	for _, order := range snap.Orders {
		s.orders[order.ID] = cloneOrder(order)
	}
	for _, order := range snap.TakeawayOrders {
		s.orders[order.ID] = cloneOrder(order)
	}
	return nil
}

func cloneOrder(o terminal.Order) terminal.Order {
	o.Items = terminal.CloneItems(o.Items)
	if o.KOTIDs != nil {
		ids := make([]string, len(o.KOTIDs))
		copy(ids, o.KOTIDs)
		o.KOTIDs = ids
	}
	return o
}

func sortKOTs(kots []terminal.KOT) {
	sort.Slice(kots, func(i, j int) bool {
		if kots[i].CreatedAt.Equal(kots[j].CreatedAt) {
			return kots[i].ID < kots[j].ID
		}
		return kots[i].CreatedAt.Before(kots[j].CreatedAt)
	})
}

func sortOrders(orders []terminal.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
