package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/annapurna-pos/api/internal/database"
	"github.com/annapurna-pos/api/internal/enum"
	"github.com/annapurna-pos/api/internal/middleware"
	"github.com/annapurna-pos/api/internal/service"
	"github.com/annapurna-pos/api/internal/terminal"
)

// OrderHandler handles both order tiers: the terminal's merged aggregates
// and the server-persisted lifecycle after submission.
type OrderHandler struct {
	lifecycle *service.LifecycleService
	store     terminal.Store
}

func NewOrderHandler(lifecycle *service.LifecycleService, store terminal.Store) *OrderHandler {
	return &OrderHandler{lifecycle: lifecycle, store: store}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a hotel-scoped subrouter: /hotels/{hid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/local", h.ListLocal)
	r.Get("/", h.ListPending)
	r.Get("/completed", h.ListCompleted)
	r.Get("/{oid}", h.Get)
	r.Post("/{oid}/submit", h.Submit)
	r.Post("/{oid}/accept", h.Accept)
	r.Post("/{oid}/staff-complete", h.StaffComplete)
	r.Post("/{oid}/cancel", h.Cancel)
}

// --- Response types ---

type orderResponse struct {
	ID             string              `json:"id"`
	HotelID        uuid.UUID           `json:"hotel_id"`
	StaffID        uuid.UUID           `json:"staff_id"`
	DiningType     string              `json:"dining_type"`
	TableNumber    *int32              `json:"table_number"`
	CustomerName   string              `json:"customer_name"`
	Phone          string              `json:"phone"`
	Items          []terminal.LineItem `json:"items"`
	Status         string              `json:"status"`
	StaffCompleted bool                `json:"staff_completed"`
	TotalAmount    string              `json:"total_amount"`
	FinalTotal     string              `json:"final_total,omitempty"`
	AcceptedBy     *uuid.UUID          `json:"accepted_by,omitempty"`
	AcceptedAt     *time.Time          `json:"accepted_at,omitempty"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		HotelID:        o.HotelID,
		StaffID:        o.StaffID,
		DiningType:     o.DiningType,
		CustomerName:   o.CustomerName,
		Phone:          o.Phone,
		Items:          o.Items,
		Status:         o.Status,
		StaffCompleted: o.StaffCompleted,
		TotalAmount:    numericString(o.TotalAmount),
		FinalTotal:     numericString(o.FinalTotal),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.TableNumber.Valid {
		resp.TableNumber = &o.TableNumber.Int32
	}
	if o.AcceptedBy.Valid {
		id := uuid.UUID(o.AcceptedBy.Bytes)
		resp.AcceptedBy = &id
	}
	if o.AcceptedAt.Valid {
		resp.AcceptedAt = &o.AcceptedAt.Time
	}
	if o.CompletedAt.Valid {
		resp.CompletedAt = &o.CompletedAt.Time
	}
	return resp
}

func toOrderResponses(orders []database.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

func viewerFromRequest(r *http.Request) (service.Viewer, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Viewer{}, false
	}
	return service.Viewer{
		StaffID: claims.StaffID,
		IsAdmin: claims.Role == enum.RoleAdmin,
	}, true
}

// --- Handlers ---

// ListLocal returns the terminal's merged order aggregates, still owned by
// this register.
func (h *OrderHandler) ListLocal(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Submit persists a terminal aggregate server-side; from here on the
// backend record drives the lifecycle.
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	hotelID, err := hotelIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hotel ID")
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	local, err := h.store.GetOrder(r.Context(), chi.URLParam(r, "oid"))
	if err != nil {
		if errors.Is(err, terminal.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found on this terminal")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	created, err := h.lifecycle.SubmitOrder(r.Context(), hotelID, claims.StaffID, local)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(created))
}

// ListPending returns the viewer's pending queue.
func (h *OrderHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	hotelID, err := hotelIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hotel ID")
		return
	}
	viewer, ok := viewerFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orders, err := h.lifecycle.ListPending(r.Context(), hotelID, viewer)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// ListCompleted returns today's settled orders.
func (h *OrderHandler) ListCompleted(w http.ResponseWriter, r *http.Request) {
	hotelID, err := hotelIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hotel ID")
		return
	}
	viewer, ok := viewerFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orders, err := h.lifecycle.ListCompleted(r.Context(), hotelID, viewer)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	hotelID, err := hotelIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hotel ID")
		return
	}

	order, err := h.lifecycle.GetOrder(r.Context(), hotelID, chi.URLParam(r, "oid"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Accept moves a pending order to in_progress under the acting staff.
func (h *OrderHandler) Accept(w http.ResponseWriter, r *http.Request) {
	hotelID, err := hotelIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hotel ID")
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	order, err := h.lifecycle.AcceptOrder(r.Context(), hotelID, chi.URLParam(r, "oid"), claims.StaffID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// StaffComplete marks the order done from the staff side without billing.
func (h *OrderHandler) StaffComplete(w http.ResponseWriter, r *http.Request) {
	hotelID, err := hotelIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hotel ID")
		return
	}

	order, err := h.lifecycle.MarkStaffCompleted(r.Context(), hotelID, chi.URLParam(r, "oid"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	hotelID, err := hotelIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hotel ID")
		return
	}

	order, err := h.lifecycle.CancelOrder(r.Context(), hotelID, chi.URLParam(r, "oid"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
