package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/annapurna-pos/api/internal/enum"
	"github.com/annapurna-pos/api/internal/terminal"
)

// Errors returned by the KOT service.
var (
	ErrEmptyKOT      = errors.New("kot requires at least one item")
	ErrTableRequired = errors.New("table number is required for dine-in")
)

// KOTService owns the kitchen-ticket bookkeeping of one terminal session:
// creating tickets, deleting them (with retraction from any order they were
// folded into), and the pending views.
type KOTService struct {
	store   terminal.Store
	agg     *Aggregator
	relay   Relay
	hotelID uuid.UUID
	log     *zap.Logger
}

func NewKOTService(store terminal.Store, agg *Aggregator, relay Relay, hotelID uuid.UUID, log *zap.Logger) *KOTService {
	return &KOTService{store: store, agg: agg, relay: relay, hotelID: hotelID, log: log}
}

// CreateKOTRequest is the dining context plus the item batch staff saved
// from the menu.
type CreateKOTRequest struct {
	DiningType   string
	TableNumber  int
	CustomerName string
	Phone        string
	CarDetails   string
	Items        []terminal.LineItem
}

// CreateKOT validates and persists a new pending ticket, then pushes the
// updated snapshot to the other registers. The ticket is visible locally
// before the relay publish (optimistic).
func (s *KOTService) CreateKOT(ctx context.Context, req CreateKOTRequest) (terminal.KOT, error) {
	if len(req.Items) == 0 {
		return terminal.KOT{}, ErrEmptyKOT
	}

	diningType := req.DiningType
	if diningType == "" {
		if req.TableNumber > 0 {
			diningType = enum.DiningTypeDineIn
		} else {
			diningType = enum.DiningTypeTakeaway
		}
	}
	if diningType == enum.DiningTypeDineIn && req.TableNumber <= 0 {
		return terminal.KOT{}, ErrTableRequired
	}

	kot := terminal.KOT{
		ID:           terminal.NewKOTID(),
		DiningType:   diningType,
		TableNumber:  req.TableNumber,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		CarDetails:   req.CarDetails,
		Items:        terminal.CloneItems(req.Items),
		Status:       enum.KOTStatusPending,
		CreatedAt:    s.agg.now(),
	}
	if err := s.store.CreateKOT(ctx, kot); err != nil {
		return terminal.KOT{}, fmt.Errorf("create kot: %w", err)
	}

	s.publishSnapshot(ctx)
	return kot, nil
}

// DeleteKOT removes a ticket. Deleting an unknown id is a no-op. If the
// ticket was already folded into an order, its contribution is retracted
// and the order's merged items recomputed; an order left with no
// constituents is removed entirely.
func (s *KOTService) DeleteKOT(ctx context.Context, kotID string) error {
	kot, err := s.store.GetKOT(ctx, kotID)
	if err != nil {
		if errors.Is(err, terminal.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get kot: %w", err)
	}

	if kot.OrderCreated {
		if err := s.agg.RetractKOT(ctx, kot); err != nil {
			return fmt.Errorf("retract kot from order: %w", err)
		}
	}
	if err := s.store.DeleteKOT(ctx, kotID); err != nil {
		return fmt.Errorf("delete kot: %w", err)
	}

	s.publishSnapshot(ctx)
	return nil
}

// PendingKOTFilter narrows the pending view to one table or to takeaway.
type PendingKOTFilter struct {
	TableNumber  int
	TakeawayOnly bool
}

// ListPendingKOTs returns tickets not yet folded into an order.
func (s *KOTService) ListPendingKOTs(ctx context.Context, filter PendingKOTFilter) ([]terminal.KOT, error) {
	kots, err := s.store.ListKOTs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list kots: %w", err)
	}

	var pending []terminal.KOT
	for _, kot := range kots {
		if kot.OrderCreated {
			continue
		}
		if filter.TakeawayOnly && !kot.IsTakeaway() {
			continue
		}
		if filter.TableNumber > 0 && kot.TableNumber != filter.TableNumber {
			continue
		}
		pending = append(pending, kot)
	}
	return pending, nil
}

// MarkFolded flags the given tickets as consumed by an order. Unknown ids
// and already-folded tickets are skipped, so the call is idempotent.
func (s *KOTService) MarkFolded(ctx context.Context, kotIDs []string) error {
	for _, id := range kotIDs {
		kot, err := s.store.GetKOT(ctx, id)
		if err != nil {
			if errors.Is(err, terminal.ErrNotFound) {
				continue
			}
			return fmt.Errorf("get kot %s: %w", id, err)
		}
		if kot.OrderCreated {
			continue
		}
		kot.OrderCreated = true
		kot.Status = enum.KOTStatusCompleted
		if err := s.store.UpdateKOT(ctx, kot); err != nil {
			return fmt.Errorf("update kot %s: %w", id, err)
		}
	}
	return nil
}

func (s *KOTService) publishSnapshot(ctx context.Context) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		s.log.Warn("snapshot for relay failed", zap.Error(err))
		return
	}
	s.relay.PublishSnapshot(s.hotelID, snap)
}
