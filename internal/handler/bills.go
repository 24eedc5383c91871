package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/annapurna-pos/api/internal/database"
	"github.com/annapurna-pos/api/internal/middleware"
	"github.com/annapurna-pos/api/internal/receipt"
	"github.com/annapurna-pos/api/internal/service"
	"github.com/annapurna-pos/api/internal/terminal"
)

// BillHandler handles settlement and bill reads.
type BillHandler struct {
	bills     *service.BillService
	hotelName string
}

func NewBillHandler(bills *service.BillService, hotelName string) *BillHandler {
	return &BillHandler{bills: bills, hotelName: hotelName}
}

// RegisterRoutes registers bill endpoints on the given Chi router.
// Expected to be mounted inside a hotel-scoped subrouter: /hotels/{hid}/bills
func (h *BillHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Generate)
	r.Get("/", h.List)
	r.Get("/{bid}", h.Get)
	r.Get("/{bid}/receipt", h.Receipt)
}

// RegisterAdminRoutes registers the admin-only bill endpoints.
func (h *BillHandler) RegisterAdminRoutes(r chi.Router) {
	r.Delete("/{bid}", h.Delete)
}

// --- Request / Response types ---

type generateBillRequest struct {
	OrderID       string              `json:"order_id"`
	Items         []terminal.LineItem `json:"items"`
	DiningType    string              `json:"dining_type"`
	TableNumber   int                 `json:"table_number"`
	CustomerName  string              `json:"customer_name"`
	Phone         string              `json:"phone"`
	TaxPercent    string              `json:"tax_percent"`
	DiscountType  string              `json:"discount_type"`
	DiscountValue string              `json:"discount_value"`
	PaymentMethod string              `json:"payment_method"`
}

type billResponse struct {
	ID             uuid.UUID           `json:"id"`
	HotelID        uuid.UUID           `json:"hotel_id"`
	StaffID        uuid.UUID           `json:"staff_id"`
	OrderID        string              `json:"order_id,omitempty"`
	CustomerName   string              `json:"customer_name"`
	Phone          string              `json:"phone"`
	Items          []terminal.LineItem `json:"items"`
	Subtotal       string              `json:"subtotal"`
	TaxPercent     string              `json:"tax_percent"`
	TaxAmount      string              `json:"tax_amount"`
	DiscountType   string              `json:"discount_type,omitempty"`
	DiscountValue  string              `json:"discount_value,omitempty"`
	DiscountAmount string              `json:"discount_amount"`
	FinalTotal     string              `json:"final_total"`
	PaymentMethod  string              `json:"payment_method"`
	DiningType     string              `json:"dining_type"`
	TableNumber    *int32              `json:"table_number,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

type generateBillResponse struct {
	Bill            billResponse `json:"bill"`
	DiscountClamped bool         `json:"discount_clamped,omitempty"`
}

func toBillResponse(b database.Bill) billResponse {
	resp := billResponse{
		ID:             b.ID,
		HotelID:        b.HotelID,
		StaffID:        b.StaffID,
		CustomerName:   b.CustomerName,
		Phone:          b.Phone,
		Items:          b.Items,
		Subtotal:       numericString(b.Subtotal),
		TaxPercent:     numericString(b.TaxPercent),
		TaxAmount:      numericString(b.TaxAmount),
		DiscountAmount: numericString(b.DiscountAmount),
		FinalTotal:     numericString(b.FinalTotal),
		PaymentMethod:  b.PaymentMethod,
		DiningType:     b.DiningType,
		CreatedAt:      b.CreatedAt,
	}
	if b.OrderID.Valid {
		resp.OrderID = b.OrderID.String
	}
	if b.DiscountType.Valid {
		resp.DiscountType = b.DiscountType.String
		resp.DiscountValue = numericString(b.DiscountValue)
	}
	if b.TableNumber.Valid {
		resp.TableNumber = &b.TableNumber.Int32
	}
	return resp
}

// --- Handlers ---

// Generate settles an order (or a walk-in cart) into an immutable bill.
func (h *BillHandler) Generate(w http.ResponseWriter, r *http.Request) {
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

	var req generateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	taxPercent, err := parseDecimal(req.TaxPercent)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tax_percent")
		return
	}
	discountValue, err := parseDecimal(req.DiscountValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid discount_value")
		return
	}

	result, err := h.bills.GenerateBill(r.Context(), service.GenerateBillRequest{
		HotelID:       hotelID,
		StaffID:       claims.StaffID,
		OrderID:       req.OrderID,
		Items:         req.Items,
		DiningType:    req.DiningType,
		TableNumber:   req.TableNumber,
		CustomerName:  req.CustomerName,
		Phone:         req.Phone,
		TaxPercent:    taxPercent,
		DiscountType:  req.DiscountType,
		DiscountValue: discountValue,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, generateBillResponse{
		Bill:            toBillResponse(result.Bill),
		DiscountClamped: result.DiscountClamped,
	})
}

// List pages through settled bills. Defaults to the current day.
func (h *BillHandler) List(w http.ResponseWriter, r *http.Request) {
	hotelID, err := hotelIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hotel ID")
		return
	}

	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.Add(24 * time.Hour)
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to")
			return
		}
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	bills, err := h.bills.ListBills(r.Context(), hotelID, from, to, int32(limit), int32(offset))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]billResponse, 0, len(bills))
	for _, b := range bills {
		out = append(out, toBillResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
	hotelID, billID, ok := h.billParams(w, r)
	if !ok {
		return
	}

	bill, err := h.bills.GetBill(r.Context(), hotelID, billID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillResponse(bill))
}

// Receipt renders a printable copy of the bill: text for the thermal
// printer (default) or a PDF.
func (h *BillHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	hotelID, billID, ok := h.billParams(w, r)
	if !ok {
		return
	}

	bill, err := h.bills.GetBill(r.Context(), hotelID, billID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	rec := h.toReceipt(bill)
	if r.URL.Query().Get("format") == "pdf" {
		out, err := rec.PDF()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to render receipt")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(out)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(rec.Text()))
}

// Delete voids a bill. Admin only; corrections are delete-and-recreate.
func (h *BillHandler) Delete(w http.ResponseWriter, r *http.Request) {
	hotelID, billID, ok := h.billParams(w, r)
	if !ok {
		return
	}

	if err := h.bills.DeleteBill(r.Context(), hotelID, billID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BillHandler) billParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	hotelID, err := hotelIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hotel ID")
		return uuid.Nil, uuid.Nil, false
	}
	billID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bill ID")
		return uuid.Nil, uuid.Nil, false
	}
	return hotelID, billID, true
}

func (h *BillHandler) toReceipt(b database.Bill) receipt.Bill {
	rec := receipt.Bill{
		HotelName:     h.hotelName,
		BillNumber:    b.ID.String(),
		DiningType:    b.DiningType,
		CustomerName:  b.CustomerName,
		Phone:         b.Phone,
		Items:         b.Items,
		PaymentMethod: b.PaymentMethod,
		BilledAt:      b.CreatedAt,
	}
	if b.OrderID.Valid {
		rec.OrderID = b.OrderID.String
	}
	if b.TableNumber.Valid {
		rec.TableNumber = int(b.TableNumber.Int32)
	}
	rec.Subtotal = numericDecimal(b.Subtotal)
	rec.TaxPercent = numericDecimal(b.TaxPercent)
	rec.TaxAmount = numericDecimal(b.TaxAmount)
	rec.DiscountAmount = numericDecimal(b.DiscountAmount)
	rec.FinalTotal = numericDecimal(b.FinalTotal)
	return rec
}
