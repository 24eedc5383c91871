package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/annapurna-pos/api/internal/auth"
	"github.com/annapurna-pos/api/internal/database"
	"github.com/annapurna-pos/api/internal/enum"
	"github.com/annapurna-pos/api/internal/handler"
	"github.com/annapurna-pos/api/internal/middleware"
	"github.com/annapurna-pos/api/internal/service"
	"github.com/annapurna-pos/api/internal/terminal"
	"github.com/annapurna-pos/api/internal/terminal/memory"
)

// mockOrderStore is a map-backed stand-in for the orders table.
type mockOrderStore struct {
	mu     sync.Mutex
	orders map[string]database.Order
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{orders: make(map[string]database.Order)}
}

func (m *mockOrderStore) addOrder(o database.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

func (m *mockOrderStore) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	o := database.Order{
		ID:           arg.ID,
		HotelID:      arg.HotelID,
		StaffID:      arg.StaffID,
		DiningType:   arg.DiningType,
		TableNumber:  arg.TableNumber,
		CustomerName: arg.CustomerName,
		Phone:        arg.Phone,
		Items:        arg.Items,
		Status:       arg.Status,
		TotalAmount:  arg.TotalAmount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *mockOrderStore) GetOrder(_ context.Context, arg database.GetOrderParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[arg.ID]
	if !ok || o.HotelID != arg.HotelID {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockOrderStore) ListOrders(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Order
	for _, o := range m.orders {
		if o.HotelID != arg.HotelID {
			continue
		}
		matched := false
		for _, s := range arg.Statuses {
			if o.Status == s {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if o.CreatedAt.Before(arg.CreatedAfter) {
			continue
		}
		if arg.StaffID.Valid && o.StaffID != uuid.UUID(arg.StaffID.Bytes) {
			continue
		}
		if arg.ExcludeStaffCompleted && o.StaffCompleted {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *mockOrderStore) ListCompletedOrders(_ context.Context, arg database.ListCompletedOrdersParams) ([]database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Order
	for _, o := range m.orders {
		if o.HotelID != arg.HotelID || o.Status != enum.OrderStatusCompleted {
			continue
		}
		if !o.CompletedAt.Valid || o.CompletedAt.Time.Before(arg.CompletedAfter) {
			continue
		}
		if arg.StaffID.Valid && o.StaffID != uuid.UUID(arg.StaffID.Bytes) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// The transition methods mirror the guarded UPDATEs: a row in the wrong
// state matches nothing.
func (m *mockOrderStore) AcceptOrder(_ context.Context, arg database.AcceptOrderParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[arg.ID]
	if !ok || o.HotelID != arg.HotelID || o.Status != enum.OrderStatusPending {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = enum.OrderStatusInProgress
	o.AcceptedBy = pgtype.UUID{Bytes: arg.AcceptedBy, Valid: true}
	o.AcceptedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	o.UpdatedAt = time.Now()
	m.orders[o.ID] = o
	return o, nil
}

func (m *mockOrderStore) MarkOrderStaffCompleted(_ context.Context, arg database.MarkOrderStaffCompletedParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[arg.ID]
	if !ok || o.HotelID != arg.HotelID || o.Status != enum.OrderStatusPending {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = enum.OrderStatusInProgress
	o.StaffCompleted = true
	o.UpdatedAt = time.Now()
	m.orders[o.ID] = o
	return o, nil
}

func (m *mockOrderStore) CancelOrder(_ context.Context, arg database.CancelOrderParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[arg.ID]
	if !ok || o.HotelID != arg.HotelID || (o.Status != enum.OrderStatusPending && o.Status != enum.OrderStatusInProgress) {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = enum.OrderStatusCancelled
	o.UpdatedAt = time.Now()
	m.orders[o.ID] = o
	return o, nil
}

func (m *mockOrderStore) CompleteOrder(_ context.Context, arg database.CompleteOrderParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[arg.ID]
	if !ok || o.HotelID != arg.HotelID || (o.Status != enum.OrderStatusPending && o.Status != enum.OrderStatusInProgress) {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = enum.OrderStatusCompleted
	o.FinalTotal = arg.FinalTotal
	o.CompletedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	o.UpdatedAt = time.Now()
	m.orders[o.ID] = o
	return o, nil
}

// --- Harness ---

type orderFixture struct {
	router  http.Handler
	store   *mockOrderStore
	local   terminal.Store
	hotelID uuid.UUID
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	store := newMockOrderStore()
	local := memory.New()
	lifecycle := service.NewLifecycleService(store, service.NopRelay{}, 24*time.Hour, zap.NewNop())

	r := chi.NewRouter()
	r.Route("/hotels/{hid}/orders", func(sub chi.Router) {
		sub.Use(middleware.Authenticate(testSecret))
		handler.NewOrderHandler(lifecycle, local).RegisterRoutes(sub)
	})
	return &orderFixture{router: r, store: store, local: local, hotelID: uuid.New()}
}

func (f *orderFixture) token(t *testing.T, staffID uuid.UUID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, staffID, f.hotelID, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func authedRequest(t *testing.T, router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func seedLocalOrder(t *testing.T, store terminal.Store, id string) terminal.Order {
	t.Helper()
	order := terminal.Order{
		ID:          id,
		DiningType:  enum.DiningTypeDineIn,
		TableNumber: 5,
		Items:       []terminal.LineItem{lineItem("Dosa", 65, 2)},
		KOTIDs:      []string{"KOT-1"},
		Status:      enum.OrderStatusPending,
		TotalAmount: decimal.NewFromInt(130),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := store.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("seed local order: %v", err)
	}
	return order
}

func pendingOrder(hotelID, staffID uuid.UUID, id string) database.Order {
	return database.Order{
		ID:        id,
		HotelID:   hotelID,
		StaffID:   staffID,
		Status:    enum.OrderStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// --- Tests ---

func TestSubmitOrderEndpoint(t *testing.T) {
	f := newOrderFixture(t)
	staffID := uuid.New()
	seedLocalOrder(t, f.local, "DINE-1")

	rr := authedRequest(t, f.router, "POST", "/hotels/"+f.hotelID.String()+"/orders/DINE-1/submit",
		f.token(t, staffID, enum.RoleStaff))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body)
	}

	var resp struct {
		ID      string    `json:"id"`
		StaffID uuid.UUID `json:"staff_id"`
		Status  string    `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ID != "DINE-1" || resp.StaffID != staffID || resp.Status != enum.OrderStatusPending {
		t.Errorf("response = %+v", resp)
	}
	if _, err := f.store.GetOrder(context.Background(), database.GetOrderParams{ID: "DINE-1", HotelID: f.hotelID}); err != nil {
		t.Errorf("order not persisted: %v", err)
	}
}

func TestSubmitOrderEndpointMissingLocal(t *testing.T) {
	f := newOrderFixture(t)

	rr := authedRequest(t, f.router, "POST", "/hotels/"+f.hotelID.String()+"/orders/DINE-9/submit",
		f.token(t, uuid.New(), enum.RoleStaff))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSubmitOrderEndpointUnauthenticated(t *testing.T) {
	f := newOrderFixture(t)
	req := httptest.NewRequest("POST", "/hotels/"+f.hotelID.String()+"/orders/DINE-1/submit", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAcceptOrderEndpoint(t *testing.T) {
	f := newOrderFixture(t)
	staffID := uuid.New()
	f.store.addOrder(pendingOrder(f.hotelID, uuid.New(), "DINE-1"))

	rr := authedRequest(t, f.router, "POST", "/hotels/"+f.hotelID.String()+"/orders/DINE-1/accept",
		f.token(t, staffID, enum.RoleStaff))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body)
	}

	var resp struct {
		Status     string     `json:"status"`
		AcceptedBy *uuid.UUID `json:"accepted_by"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != enum.OrderStatusInProgress {
		t.Errorf("status: got %q", resp.Status)
	}
	if resp.AcceptedBy == nil || *resp.AcceptedBy != staffID {
		t.Errorf("accepted_by = %v, want %s", resp.AcceptedBy, staffID)
	}
}

func TestAcceptOrderEndpointConflict(t *testing.T) {
	f := newOrderFixture(t)
	o := pendingOrder(f.hotelID, uuid.New(), "DINE-1")
	o.Status = enum.OrderStatusCompleted
	f.store.addOrder(o)

	rr := authedRequest(t, f.router, "POST", "/hotels/"+f.hotelID.String()+"/orders/DINE-1/accept",
		f.token(t, uuid.New(), enum.RoleStaff))
	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestGetOrderEndpointNotFound(t *testing.T) {
	f := newOrderFixture(t)
	rr := authedRequest(t, f.router, "GET", "/hotels/"+f.hotelID.String()+"/orders/nope",
		f.token(t, uuid.New(), enum.RoleStaff))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestListPendingEndpointStaffScoping(t *testing.T) {
	f := newOrderFixture(t)
	mine := uuid.New()
	other := uuid.New()
	f.store.addOrder(pendingOrder(f.hotelID, mine, "DINE-1"))
	f.store.addOrder(pendingOrder(f.hotelID, other, "DINE-2"))
	inProgress := pendingOrder(f.hotelID, other, "DINE-3")
	inProgress.Status = enum.OrderStatusInProgress
	f.store.addOrder(inProgress)

	// Staff sees only their own pending orders.
	rr := authedRequest(t, f.router, "GET", "/hotels/"+f.hotelID.String()+"/orders/",
		f.token(t, mine, enum.RoleStaff))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body)
	}
	var orders []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &orders); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "DINE-1" {
		t.Errorf("staff view = %+v", orders)
	}

	// Admin sees everyone's pending plus in-progress.
	rr = authedRequest(t, f.router, "GET", "/hotels/"+f.hotelID.String()+"/orders/",
		f.token(t, uuid.New(), enum.RoleAdmin))
	orders = nil
	if err := json.Unmarshal(rr.Body.Bytes(), &orders); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(orders) != 3 {
		t.Errorf("admin view: got %d orders, want 3", len(orders))
	}
}

func TestStaffCompleteEndpoint(t *testing.T) {
	f := newOrderFixture(t)
	staffID := uuid.New()
	f.store.addOrder(pendingOrder(f.hotelID, staffID, "DINE-1"))

	rr := authedRequest(t, f.router, "POST", "/hotels/"+f.hotelID.String()+"/orders/DINE-1/staff-complete",
		f.token(t, staffID, enum.RoleStaff))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body)
	}

	// The order leaves the staff member's pending view but stays in the
	// admin's until billed.
	rr = authedRequest(t, f.router, "GET", "/hotels/"+f.hotelID.String()+"/orders/",
		f.token(t, staffID, enum.RoleStaff))
	var orders []json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &orders); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("staff still sees %d orders", len(orders))
	}

	rr = authedRequest(t, f.router, "GET", "/hotels/"+f.hotelID.String()+"/orders/",
		f.token(t, uuid.New(), enum.RoleAdmin))
	orders = nil
	if err := json.Unmarshal(rr.Body.Bytes(), &orders); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("admin sees %d orders, want 1", len(orders))
	}
}

func TestCancelOrderEndpoint(t *testing.T) {
	f := newOrderFixture(t)
	f.store.addOrder(pendingOrder(f.hotelID, uuid.New(), "DINE-1"))

	rr := authedRequest(t, f.router, "POST", "/hotels/"+f.hotelID.String()+"/orders/DINE-1/cancel",
		f.token(t, uuid.New(), enum.RoleStaff))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body)
	}

	// Cancelled is terminal.
	rr = authedRequest(t, f.router, "POST", "/hotels/"+f.hotelID.String()+"/orders/DINE-1/cancel",
		f.token(t, uuid.New(), enum.RoleStaff))
	if rr.Code != http.StatusConflict {
		t.Errorf("second cancel: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestListCompletedEndpointUsesCompletionTime(t *testing.T) {
	f := newOrderFixture(t)
	staffID := uuid.New()

	// Opened yesterday, billed today: belongs to today's completed view.
	overnight := pendingOrder(f.hotelID, staffID, "DINE-1")
	overnight.Status = enum.OrderStatusCompleted
	overnight.CreatedAt = time.Now().Add(-30 * time.Hour)
	overnight.CompletedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	f.store.addOrder(overnight)

	stale := pendingOrder(f.hotelID, staffID, "DINE-2")
	stale.Status = enum.OrderStatusCompleted
	stale.CompletedAt = pgtype.Timestamptz{Time: time.Now().Add(-30 * time.Hour), Valid: true}
	f.store.addOrder(stale)

	rr := authedRequest(t, f.router, "GET", "/hotels/"+f.hotelID.String()+"/orders/completed",
		f.token(t, staffID, enum.RoleStaff))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body)
	}
	var orders []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &orders); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "DINE-1" {
		t.Errorf("completed view = %+v, want only DINE-1", orders)
	}
}

func TestListLocalEndpoint(t *testing.T) {
	f := newOrderFixture(t)
	seedLocalOrder(t, f.local, "DINE-1")

	rr := authedRequest(t, f.router, "GET", "/hotels/"+f.hotelID.String()+"/orders/local",
		f.token(t, uuid.New(), enum.RoleStaff))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var snap terminal.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(snap.Orders) != 1 || snap.Orders[0].ID != "DINE-1" {
		t.Errorf("snapshot = %+v", snap)
	}
}
