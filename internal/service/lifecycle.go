package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/annapurna-pos/api/internal/database"
	"github.com/annapurna-pos/api/internal/enum"
	"github.com/annapurna-pos/api/internal/terminal"
)

// Errors returned by the lifecycle service.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Relay event types.
const (
	EventOrderUpdated = "order.updated"
	EventBillSettled  = "bill.settled"
)

// canTransition is the whole state graph. Every status change in the
// codebase goes through this table.
func canTransition(from, to string) bool {
	switch from {
	case enum.OrderStatusPending:
		return to == enum.OrderStatusInProgress || to == enum.OrderStatusCompleted || to == enum.OrderStatusCancelled
	case enum.OrderStatusInProgress:
		return to == enum.OrderStatusCompleted || to == enum.OrderStatusCancelled
	}
	// completed and cancelled are terminal
	return false
}

// LifecycleStore defines the DB methods needed by the lifecycle service.
// Satisfied by *database.Queries.
type LifecycleStore interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListCompletedOrders(ctx context.Context, arg database.ListCompletedOrdersParams) ([]database.Order, error)
	AcceptOrder(ctx context.Context, arg database.AcceptOrderParams) (database.Order, error)
	MarkOrderStaffCompleted(ctx context.Context, arg database.MarkOrderStaffCompletedParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	CompleteOrder(ctx context.Context, arg database.CompleteOrderParams) (database.Order, error)
}

// Viewer scopes the pending/completed queries to the requesting staff
// member. Admins see every staff member's orders plus the in-progress ones
// awaiting billing.
type Viewer struct {
	StaffID uuid.UUID
	IsAdmin bool
}

// LifecycleService transitions server-persisted orders through
// pending → in_progress → completed/cancelled and owns the query-time
// visibility policy.
type LifecycleService struct {
	store LifecycleStore
	relay Relay
	log   *zap.Logger

	// pendingWindow is how long an order stays in pending views before it
	// goes stale (excluded, not deleted).
	pendingWindow time.Duration

	now func() time.Time
}

func NewLifecycleService(store LifecycleStore, relay Relay, pendingWindow time.Duration, log *zap.Logger) *LifecycleService {
	return &LifecycleService{
		store:         store,
		relay:         relay,
		log:           log,
		pendingWindow: pendingWindow,
		now:           time.Now,
	}
}

// SubmitOrder persists a terminal-local aggregate server-side. From this
// point the backend record is authoritative for status transitions.
func (s *LifecycleService) SubmitOrder(ctx context.Context, hotelID, staffID uuid.UUID, order terminal.Order) (database.Order, error) {
	table := pgtype.Int4{}
	if order.TableNumber > 0 {
		table = pgtype.Int4{Int32: int32(order.TableNumber), Valid: true}
	}
	created, err := s.store.CreateOrder(ctx, database.CreateOrderParams{
		ID:           order.ID,
		HotelID:      hotelID,
		StaffID:      staffID,
		DiningType:   order.DiningType,
		TableNumber:  table,
		CustomerName: order.CustomerName,
		Phone:        order.Phone,
		Items:        order.Items,
		Status:       enum.OrderStatusPending,
		TotalAmount:  decimalToNumeric(order.TotalAmount),
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.publishOrder(created)
	return created, nil
}

// AcceptOrder moves a pending order to in_progress and records who took it.
func (s *LifecycleService) AcceptOrder(ctx context.Context, hotelID uuid.UUID, orderID string, staffID uuid.UUID) (database.Order, error) {
	order, err := s.getOrder(ctx, hotelID, orderID)
	if err != nil {
		return database.Order{}, err
	}
	if order.Status != enum.OrderStatusPending {
		return database.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, enum.OrderStatusInProgress)
	}

	updated, err := s.store.AcceptOrder(ctx, database.AcceptOrderParams{
		ID:         orderID,
		HotelID:    hotelID,
		AcceptedBy: staffID,
	})
	if err != nil {
		return database.Order{}, transitionError(err, "accept order")
	}

	s.publishOrder(updated)
	return updated, nil
}

// MarkStaffCompleted is the staff-side "done" without billing: the order
// leaves the originating staff member's pending queue but stays visible to
// admins until a bill settles it.
func (s *LifecycleService) MarkStaffCompleted(ctx context.Context, hotelID uuid.UUID, orderID string) (database.Order, error) {
	order, err := s.getOrder(ctx, hotelID, orderID)
	if err != nil {
		return database.Order{}, err
	}
	if order.Status != enum.OrderStatusPending {
		return database.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, enum.OrderStatusInProgress)
	}

	updated, err := s.store.MarkOrderStaffCompleted(ctx, database.MarkOrderStaffCompletedParams{
		ID:      orderID,
		HotelID: hotelID,
	})
	if err != nil {
		return database.Order{}, transitionError(err, "mark staff completed")
	}

	s.publishOrder(updated)
	return updated, nil
}

// CancelOrder is allowed from pending or in_progress; cancelled is terminal.
func (s *LifecycleService) CancelOrder(ctx context.Context, hotelID uuid.UUID, orderID string) (database.Order, error) {
	order, err := s.getOrder(ctx, hotelID, orderID)
	if err != nil {
		return database.Order{}, err
	}
	if !canTransition(order.Status, enum.OrderStatusCancelled) {
		return database.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, enum.OrderStatusCancelled)
	}

	updated, err := s.store.CancelOrder(ctx, database.CancelOrderParams{
		ID:      orderID,
		HotelID: hotelID,
	})
	if err != nil {
		return database.Order{}, transitionError(err, "cancel order")
	}

	s.publishOrder(updated)
	return updated, nil
}

// CompleteOrder records settlement. Only the bill generator calls this;
// the settlement path runs the same transition check inside its
// transaction, this variant covers non-transactional callers.
func (s *LifecycleService) CompleteOrder(ctx context.Context, hotelID uuid.UUID, orderID string, finalTotal decimal.Decimal) (database.Order, error) {
	order, err := s.getOrder(ctx, hotelID, orderID)
	if err != nil {
		return database.Order{}, err
	}
	if !canTransition(order.Status, enum.OrderStatusCompleted) {
		return database.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, enum.OrderStatusCompleted)
	}

	updated, err := s.store.CompleteOrder(ctx, database.CompleteOrderParams{
		ID:         orderID,
		HotelID:    hotelID,
		FinalTotal: decimalToNumeric(finalTotal),
	})
	if err != nil {
		return database.Order{}, transitionError(err, "complete order")
	}

	s.publishOrder(updated)
	return updated, nil
}

// ListPending returns the viewer's pending queue: pending orders created
// within the staleness window, scoped to the viewer unless admin. Admins
// also see in-progress orders (accepted or staff-completed) awaiting
// billing.
func (s *LifecycleService) ListPending(ctx context.Context, hotelID uuid.UUID, viewer Viewer) ([]database.Order, error) {
	arg := database.ListOrdersParams{
		HotelID:      hotelID,
		Statuses:     []string{enum.OrderStatusPending},
		CreatedAfter: s.now().Add(-s.pendingWindow),
	}
	if viewer.IsAdmin {
		arg.Statuses = []string{enum.OrderStatusPending, enum.OrderStatusInProgress}
	} else {
		arg.StaffID = pgtype.UUID{Bytes: viewer.StaffID, Valid: true}
		arg.ExcludeStaffCompleted = true
	}
	return s.store.ListOrders(ctx, arg)
}

// ListCompleted returns orders settled today (calendar day, by completion
// time), scoped to the viewer unless admin.
func (s *LifecycleService) ListCompleted(ctx context.Context, hotelID uuid.UUID, viewer Viewer) ([]database.Order, error) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	arg := database.ListCompletedOrdersParams{
		HotelID:        hotelID,
		CompletedAfter: startOfDay,
	}
	if !viewer.IsAdmin {
		arg.StaffID = pgtype.UUID{Bytes: viewer.StaffID, Valid: true}
	}
	return s.store.ListCompletedOrders(ctx, arg)
}

// GetOrder returns one server-persisted order.
func (s *LifecycleService) GetOrder(ctx context.Context, hotelID uuid.UUID, orderID string) (database.Order, error) {
	return s.getOrder(ctx, hotelID, orderID)
}

func (s *LifecycleService) getOrder(ctx context.Context, hotelID uuid.UUID, orderID string) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, HotelID: hotelID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// transitionError maps a guarded UPDATE that matched no row to
// ErrInvalidTransition: the order existed at the pre-check, so zero rows
// means its status changed concurrently.
func transitionError(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *LifecycleService) publishOrder(order database.Order) {
	s.relay.PublishEvent(order.HotelID, EventOrderUpdated, order)
}
