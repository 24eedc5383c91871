package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/annapurna-pos/api/internal/database"
)

// CustomerStore defines the database methods needed by customer handlers.
type CustomerStore interface {
	ListCustomers(ctx context.Context, hotelID uuid.UUID) ([]database.Customer, error)
}

// CustomerHandler exposes the repeat-customer ledger built up from
// settlements with a phone number.
type CustomerHandler struct {
	store CustomerStore
}

func NewCustomerHandler(store CustomerStore) *CustomerHandler {
	return &CustomerHandler{store: store}
}

func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type customerResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	VisitCount  int32     `json:"visit_count"`
	TotalSpent  string    `json:"total_spent"`
	LastVisitAt time.Time `json:"last_visit_at"`
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	hotelID, err := hotelIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hotel ID")
		return
	}

	customers, err := h.store.ListCustomers(r.Context(), hotelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]customerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, customerResponse{
			ID:          c.ID,
			Name:        c.Name,
			Phone:       c.Phone,
			VisitCount:  c.VisitCount,
			TotalSpent:  numericString(c.TotalSpent),
			LastVisitAt: c.LastVisitAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
