package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/annapurna-pos/api/internal/receipt"
	"github.com/annapurna-pos/api/internal/service"
	"github.com/annapurna-pos/api/internal/terminal"
)

// KOTHandler handles the terminal-tier kitchen ticket endpoints.
type KOTHandler struct {
	kots  *service.KOTService
	agg   *service.Aggregator
	store terminal.Store
}

func NewKOTHandler(kots *service.KOTService, agg *service.Aggregator, store terminal.Store) *KOTHandler {
	return &KOTHandler{kots: kots, agg: agg, store: store}
}

// RegisterRoutes registers KOT endpoints on the given Chi router.
// Expected to be mounted inside a hotel-scoped subrouter: /hotels/{hid}/kots
func (h *KOTHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.ListPending)
	r.Delete("/{kid}", h.Delete)
	r.Post("/fold", h.Fold)
	r.Get("/{kid}/print", h.Print)
}

type createKOTRequest struct {
	DiningType   string              `json:"dining_type"`
	TableNumber  int                 `json:"table_number"`
	CustomerName string              `json:"customer_name"`
	Phone        string              `json:"phone"`
	CarDetails   string              `json:"car_details"`
	Items        []terminal.LineItem `json:"items"`
}

type foldRequest struct {
	KOTIDs                []string `json:"kot_ids"`
	TargetTakeawayOrderID string   `json:"target_takeaway_order_id"`
}

type foldResponse struct {
	Created []terminal.Order `json:"created"`
	Updated []terminal.Order `json:"updated"`
}

// Create saves a new kitchen ticket.
func (h *KOTHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createKOTRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kot, err := h.kots.CreateKOT(r.Context(), service.CreateKOTRequest{
		DiningType:   req.DiningType,
		TableNumber:  req.TableNumber,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		CarDetails:   req.CarDetails,
		Items:        req.Items,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, kot)
}

// ListPending returns unfolded tickets, optionally narrowed to one table or
// to takeaway.
func (h *KOTHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	var filter service.PendingKOTFilter
	if v := r.URL.Query().Get("table"); v != "" {
		table, err := strconv.Atoi(v)
		if err != nil || table <= 0 {
			writeError(w, http.StatusBadRequest, "invalid table")
			return
		}
		filter.TableNumber = table
	}
	if r.URL.Query().Get("takeaway") == "true" {
		filter.TakeawayOnly = true
	}

	kots, err := h.kots.ListPendingKOTs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if kots == nil {
		kots = []terminal.KOT{}
	}
	writeJSON(w, http.StatusOK, kots)
}

// Delete removes a ticket, retracting it from any order it was folded into.
// Deleting an unknown id succeeds; duplicate clicks are harmless.
func (h *KOTHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.kots.DeleteKOT(r.Context(), chi.URLParam(r, "kid")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Fold merges the selected (or all) unfolded tickets into their per-table
// and per-takeaway orders.
func (h *KOTHandler) Fold(w http.ResponseWriter, r *http.Request) {
	var req foldRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.agg.Fold(r.Context(), service.FoldRequest{
		KOTIDs:                req.KOTIDs,
		TargetTakeawayOrderID: req.TargetTakeawayOrderID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := foldResponse{Created: result.Created, Updated: result.Updated}
	if resp.Created == nil {
		resp.Created = []terminal.Order{}
	}
	if resp.Updated == nil {
		resp.Updated = []terminal.Order{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Print renders the kitchen ticket as plain text for the thermal printer.
func (h *KOTHandler) Print(w http.ResponseWriter, r *http.Request) {
	kot, err := h.store.GetKOT(r.Context(), chi.URLParam(r, "kid"))
	if err != nil {
		if errors.Is(err, terminal.ErrNotFound) {
			writeError(w, http.StatusNotFound, "kot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	ticket := receipt.Ticket{
		KOTNumber:    kot.ID,
		DiningType:   kot.DiningType,
		TableNumber:  kot.TableNumber,
		CustomerName: kot.CustomerName,
		CarDetails:   kot.CarDetails,
		Items:        kot.Items,
		CreatedAt:    kot.CreatedAt,
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(ticket.Text()))
}
