package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/annapurna-pos/api/internal/database"
	"github.com/annapurna-pos/api/internal/enum"
	"github.com/annapurna-pos/api/internal/terminal"
)

// mockLifecycleStore implements LifecycleStore with configurable behavior.
type mockLifecycleStore struct {
	createOrderFn             func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	getOrderFn                func(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	listOrdersFn              func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	listCompletedOrdersFn     func(ctx context.Context, arg database.ListCompletedOrdersParams) ([]database.Order, error)
	acceptOrderFn             func(ctx context.Context, arg database.AcceptOrderParams) (database.Order, error)
	markOrderStaffCompletedFn func(ctx context.Context, arg database.MarkOrderStaffCompletedParams) (database.Order, error)
	cancelOrderFn             func(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	completeOrderFn           func(ctx context.Context, arg database.CompleteOrderParams) (database.Order, error)
}

func (m *mockLifecycleStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockLifecycleStore) GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	return m.getOrderFn(ctx, arg)
}
func (m *mockLifecycleStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	return m.listOrdersFn(ctx, arg)
}
func (m *mockLifecycleStore) ListCompletedOrders(ctx context.Context, arg database.ListCompletedOrdersParams) ([]database.Order, error) {
	return m.listCompletedOrdersFn(ctx, arg)
}
func (m *mockLifecycleStore) AcceptOrder(ctx context.Context, arg database.AcceptOrderParams) (database.Order, error) {
	return m.acceptOrderFn(ctx, arg)
}
func (m *mockLifecycleStore) MarkOrderStaffCompleted(ctx context.Context, arg database.MarkOrderStaffCompletedParams) (database.Order, error) {
	return m.markOrderStaffCompletedFn(ctx, arg)
}
func (m *mockLifecycleStore) CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error) {
	return m.cancelOrderFn(ctx, arg)
}
func (m *mockLifecycleStore) CompleteOrder(ctx context.Context, arg database.CompleteOrderParams) (database.Order, error) {
	return m.completeOrderFn(ctx, arg)
}

func getOrderWithStatus(status string) func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	return func(_ context.Context, arg database.GetOrderParams) (database.Order, error) {
		return database.Order{ID: arg.ID, HotelID: arg.HotelID, Status: status}, nil
	}
}

func newTestLifecycle(store *mockLifecycleStore) *LifecycleService {
	return NewLifecycleService(store, NopRelay{}, 24*time.Hour, zap.NewNop())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{enum.OrderStatusPending, enum.OrderStatusInProgress, true},
		{enum.OrderStatusPending, enum.OrderStatusCompleted, true},
		{enum.OrderStatusPending, enum.OrderStatusCancelled, true},
		{enum.OrderStatusInProgress, enum.OrderStatusCompleted, true},
		{enum.OrderStatusInProgress, enum.OrderStatusCancelled, true},
		{enum.OrderStatusInProgress, enum.OrderStatusPending, false},
		{enum.OrderStatusCompleted, enum.OrderStatusCancelled, false},
		{enum.OrderStatusCompleted, enum.OrderStatusPending, false},
		{enum.OrderStatusCancelled, enum.OrderStatusCompleted, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSubmitOrder(t *testing.T) {
	var captured database.CreateOrderParams
	store := &mockLifecycleStore{
		createOrderFn: func(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
			captured = arg
			return database.Order{ID: arg.ID, HotelID: arg.HotelID, Status: arg.Status}, nil
		},
	}
	svc := newTestLifecycle(store)

	hotelID, staffID := uuid.New(), uuid.New()
	order := terminal.Order{
		ID:          "DINE-1",
		DiningType:  enum.DiningTypeDineIn,
		TableNumber: 4,
		Items:       []terminal.LineItem{item("dosa", "60", 3)},
		TotalAmount: decimal.NewFromInt(180),
	}
	created, err := svc.SubmitOrder(context.Background(), hotelID, staffID, order)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if created.Status != enum.OrderStatusPending {
		t.Errorf("status = %q, want pending", created.Status)
	}
	if captured.StaffID != staffID {
		t.Errorf("staff id = %v, want %v", captured.StaffID, staffID)
	}
	if !captured.TableNumber.Valid || captured.TableNumber.Int32 != 4 {
		t.Errorf("table = %+v, want 4", captured.TableNumber)
	}
	if !numericEquals(captured.TotalAmount, "180") {
		t.Errorf("total = %+v, want 180", captured.TotalAmount)
	}
}

func TestAcceptOrderTransitions(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{"from pending", enum.OrderStatusPending, nil},
		{"from in_progress", enum.OrderStatusInProgress, ErrInvalidTransition},
		{"from completed", enum.OrderStatusCompleted, ErrInvalidTransition},
		{"from cancelled", enum.OrderStatusCancelled, ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockLifecycleStore{
				getOrderFn: getOrderWithStatus(tt.status),
				acceptOrderFn: func(_ context.Context, arg database.AcceptOrderParams) (database.Order, error) {
					return database.Order{ID: arg.ID, Status: enum.OrderStatusInProgress}, nil
				},
			}
			svc := newTestLifecycle(store)

			got, err := svc.AcceptOrder(context.Background(), uuid.New(), "DINE-1", uuid.New())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AcceptOrder() err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got.Status != enum.OrderStatusInProgress {
				t.Errorf("status = %q, want in_progress", got.Status)
			}
		})
	}
}

func TestAcceptOrderNotFound(t *testing.T) {
	store := &mockLifecycleStore{
		getOrderFn: func(context.Context, database.GetOrderParams) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
	}
	svc := newTestLifecycle(store)

	_, err := svc.AcceptOrder(context.Background(), uuid.New(), "DINE-404", uuid.New())
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestCancelOrderTransitions(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{"from pending", enum.OrderStatusPending, nil},
		{"from in_progress", enum.OrderStatusInProgress, nil},
		{"from completed", enum.OrderStatusCompleted, ErrInvalidTransition},
		{"from cancelled", enum.OrderStatusCancelled, ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockLifecycleStore{
				getOrderFn: getOrderWithStatus(tt.status),
				cancelOrderFn: func(_ context.Context, arg database.CancelOrderParams) (database.Order, error) {
					return database.Order{ID: arg.ID, Status: enum.OrderStatusCancelled}, nil
				},
			}
			svc := newTestLifecycle(store)

			_, err := svc.CancelOrder(context.Background(), uuid.New(), "DINE-1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CancelOrder() err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMarkStaffCompletedRequiresPending(t *testing.T) {
	store := &mockLifecycleStore{
		getOrderFn: getOrderWithStatus(enum.OrderStatusInProgress),
	}
	svc := newTestLifecycle(store)

	_, err := svc.MarkStaffCompleted(context.Background(), uuid.New(), "DINE-1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestListPendingScoping(t *testing.T) {
	var captured database.ListOrdersParams
	store := &mockLifecycleStore{
		listOrdersFn: func(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			captured = arg
			return nil, nil
		},
	}
	svc := newTestLifecycle(store)
	now := time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	hotelID := uuid.New()
	staffID := uuid.New()

	// Staff see only their own pending orders, minus staff-completed ones.
	if _, err := svc.ListPending(context.Background(), hotelID, Viewer{StaffID: staffID}); err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(captured.Statuses) != 1 || captured.Statuses[0] != enum.OrderStatusPending {
		t.Errorf("staff statuses = %v, want [pending]", captured.Statuses)
	}
	if !captured.StaffID.Valid || captured.StaffID.Bytes != [16]byte(staffID) {
		t.Errorf("staff filter = %+v, want %v", captured.StaffID, staffID)
	}
	if !captured.ExcludeStaffCompleted {
		t.Error("staff view must exclude staff-completed orders")
	}
	if want := now.Add(-24 * time.Hour); !captured.CreatedAfter.Equal(want) {
		t.Errorf("created after = %v, want %v", captured.CreatedAfter, want)
	}

	// Admins see every staff member's pending orders plus in-progress ones.
	if _, err := svc.ListPending(context.Background(), hotelID, Viewer{StaffID: staffID, IsAdmin: true}); err != nil {
		t.Fatalf("ListPending admin: %v", err)
	}
	if len(captured.Statuses) != 2 {
		t.Errorf("admin statuses = %v, want pending and in_progress", captured.Statuses)
	}
	if captured.StaffID.Valid {
		t.Error("admin view must not filter by staff")
	}
	if captured.ExcludeStaffCompleted {
		t.Error("admin view must include staff-completed orders")
	}
}

func TestListCompletedUsesCalendarDay(t *testing.T) {
	var captured database.ListCompletedOrdersParams
	store := &mockLifecycleStore{
		listCompletedOrdersFn: func(_ context.Context, arg database.ListCompletedOrdersParams) ([]database.Order, error) {
			captured = arg
			return nil, nil
		},
	}
	svc := newTestLifecycle(store)
	svc.now = func() time.Time { return time.Date(2026, 8, 31, 18, 45, 0, 0, time.UTC) }

	if _, err := svc.ListCompleted(context.Background(), uuid.New(), Viewer{IsAdmin: true}); err != nil {
		t.Fatalf("ListCompleted: %v", err)
	}
	// The window filters on completion time: an order opened yesterday but
	// billed today belongs to today's view.
	want := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if !captured.CompletedAfter.Equal(want) {
		t.Errorf("completed after = %v, want start of day %v", captured.CompletedAfter, want)
	}
	if captured.StaffID.Valid {
		t.Error("admin view must not filter by staff")
	}
}

func TestTransitionsRefuseConcurrentStatusChange(t *testing.T) {
	// The guarded UPDATEs match no row when the status changed between the
	// pre-check and the write; the service must surface that as an invalid
	// transition, not resurrect the order.
	raced := func() *mockLifecycleStore {
		return &mockLifecycleStore{
			getOrderFn: getOrderWithStatus(enum.OrderStatusPending),
			acceptOrderFn: func(context.Context, database.AcceptOrderParams) (database.Order, error) {
				return database.Order{}, pgx.ErrNoRows
			},
			markOrderStaffCompletedFn: func(context.Context, database.MarkOrderStaffCompletedParams) (database.Order, error) {
				return database.Order{}, pgx.ErrNoRows
			},
			cancelOrderFn: func(context.Context, database.CancelOrderParams) (database.Order, error) {
				return database.Order{}, pgx.ErrNoRows
			},
			completeOrderFn: func(context.Context, database.CompleteOrderParams) (database.Order, error) {
				return database.Order{}, pgx.ErrNoRows
			},
		}
	}

	tests := []struct {
		name string
		call func(svc *LifecycleService) error
	}{
		{"accept", func(svc *LifecycleService) error {
			_, err := svc.AcceptOrder(context.Background(), uuid.New(), "DINE-1", uuid.New())
			return err
		}},
		{"staff complete", func(svc *LifecycleService) error {
			_, err := svc.MarkStaffCompleted(context.Background(), uuid.New(), "DINE-1")
			return err
		}},
		{"cancel", func(svc *LifecycleService) error {
			_, err := svc.CancelOrder(context.Background(), uuid.New(), "DINE-1")
			return err
		}},
		{"complete", func(svc *LifecycleService) error {
			_, err := svc.CompleteOrder(context.Background(), uuid.New(), "DINE-1", decimal.NewFromInt(100))
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(newTestLifecycle(raced()))
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("err = %v, want ErrInvalidTransition", err)
			}
		})
	}
}
