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

// Errors returned by the bill service.
var (
	ErrEmptyBill            = errors.New("bill requires at least one item")
	ErrPaymentTypeRequired  = errors.New("payment_method is required")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrInvalidDiscountType  = errors.New("invalid discount_type")
	ErrInvalidDiscountValue = errors.New("invalid discount_value")
	ErrInvalidTaxPercent    = errors.New("invalid tax_percent")
	ErrAlreadyBilled        = errors.New("order already billed")
	ErrBillNotFound         = errors.New("bill not found")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BillStore defines the DB methods needed to settle and read bills.
// Satisfied by *database.Queries (and its WithTx variant).
type BillStore interface {
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	CreateBill(ctx context.Context, arg database.CreateBillParams) (database.Bill, error)
	CompleteOrder(ctx context.Context, arg database.CompleteOrderParams) (database.Order, error)
	RecordCustomerVisit(ctx context.Context, arg database.RecordCustomerVisitParams) (database.Customer, error)
	GetBill(ctx context.Context, arg database.GetBillParams) (database.Bill, error)
	ListBills(ctx context.Context, arg database.ListBillsParams) ([]database.Bill, error)
	DeleteBill(ctx context.Context, arg database.GetBillParams) error
}

// NewBillStore creates a BillStore from a DBTX (pool or tx), so settlement
// can run its statements inside one transaction.
type NewBillStore func(db database.DBTX) BillStore

// BillService settles orders into immutable bills. Settlement is the only
// path that marks an order completed.
type BillService struct {
	pool     TxBeginner
	store    BillStore
	newStore NewBillStore
	terminal terminal.Store
	relay    Relay
	log      *zap.Logger
}

func NewBillService(pool TxBeginner, store BillStore, newStore NewBillStore, term terminal.Store, relay Relay, log *zap.Logger) *BillService {
	return &BillService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		terminal: term,
		relay:    relay,
		log:      log,
	}
}

// GenerateBillRequest is the validated settlement input. OrderID empty means
// a walk-in sale billed directly from Items without a server-side order.
type GenerateBillRequest struct {
	HotelID uuid.UUID
	StaffID uuid.UUID

	OrderID string

	// Walk-in fields, ignored when OrderID is set.
	Items       []terminal.LineItem
	DiningType  string
	TableNumber int

	CustomerName string
	Phone        string

	TaxPercent    decimal.Decimal
	DiscountType  string
	DiscountValue decimal.Decimal
	PaymentMethod string
}

// GenerateBillResult carries the bill plus the completed order (zero for
// walk-ins) and whether the discount was clamped to keep the total at zero.
type GenerateBillResult struct {
	Bill            database.Bill
	Order           database.Order
	DiscountClamped bool
}

// GenerateBill computes totals and writes the bill, the order completion and
// the repeat-customer visit in one transaction. The order row is locked
// before the status check so two concurrent settlements of the same order
// serialize; the loser sees completed and gets ErrAlreadyBilled.
func (s *BillService) GenerateBill(ctx context.Context, req GenerateBillRequest) (GenerateBillResult, error) {
	if err := validateBillRequest(req); err != nil {
		return GenerateBillResult{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return GenerateBillResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	var result GenerateBillResult

	items := terminal.CloneItems(req.Items)
	diningType := req.DiningType
	tableNumber := pgtype.Int4{}
	if req.TableNumber > 0 {
		tableNumber = pgtype.Int4{Int32: int32(req.TableNumber), Valid: true}
	}
	customerName := req.CustomerName
	phone := req.Phone
	orderID := pgtype.Text{}

	if req.OrderID != "" {
		order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: req.OrderID, HotelID: req.HotelID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return GenerateBillResult{}, ErrOrderNotFound
			}
			return GenerateBillResult{}, fmt.Errorf("lock order: %w", err)
		}
		if order.Status == enum.OrderStatusCompleted {
			return GenerateBillResult{}, ErrAlreadyBilled
		}
		if !canTransition(order.Status, enum.OrderStatusCompleted) {
			return GenerateBillResult{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, enum.OrderStatusCompleted)
		}

		items = terminal.CloneItems(order.Items)
		diningType = order.DiningType
		tableNumber = order.TableNumber
		orderID = pgtype.Text{String: order.ID, Valid: true}
		if customerName == "" {
			customerName = order.CustomerName
		}
		if phone == "" {
			phone = order.Phone
		}
	}

	if len(items) == 0 {
		return GenerateBillResult{}, ErrEmptyBill
	}
	if diningType == "" {
		diningType = enum.DiningTypeTakeaway
	}

	totals := computeTotals(items, req.TaxPercent, req.DiscountType, req.DiscountValue)
	result.DiscountClamped = totals.Clamped

	discountType := pgtype.Text{}
	discountValue := pgtype.Numeric{}
	if req.DiscountType != "" {
		discountType = pgtype.Text{String: req.DiscountType, Valid: true}
		discountValue = decimalToNumeric(req.DiscountValue)
	}

	bill, err := store.CreateBill(ctx, database.CreateBillParams{
		HotelID:        req.HotelID,
		StaffID:        req.StaffID,
		OrderID:        orderID,
		CustomerName:   customerName,
		Phone:          phone,
		Items:          items,
		Subtotal:       decimalToNumeric(totals.Subtotal),
		TaxPercent:     decimalToNumeric(req.TaxPercent),
		TaxAmount:      decimalToNumeric(totals.TaxAmount),
		DiscountType:   discountType,
		DiscountValue:  discountValue,
		DiscountAmount: decimalToNumeric(totals.DiscountAmount),
		FinalTotal:     decimalToNumeric(totals.FinalTotal),
		PaymentMethod:  req.PaymentMethod,
		DiningType:     diningType,
		TableNumber:    tableNumber,
	})
	if err != nil {
		return GenerateBillResult{}, fmt.Errorf("create bill: %w", err)
	}
	result.Bill = bill

	if req.OrderID != "" {
		completed, err := store.CompleteOrder(ctx, database.CompleteOrderParams{
			ID:         req.OrderID,
			HotelID:    req.HotelID,
			FinalTotal: decimalToNumeric(totals.FinalTotal),
		})
		if err != nil {
			return GenerateBillResult{}, fmt.Errorf("complete order: %w", err)
		}
		result.Order = completed
	}

	if phone != "" {
		if _, err := store.RecordCustomerVisit(ctx, database.RecordCustomerVisitParams{
			HotelID: req.HotelID,
			Name:    customerName,
			Phone:   phone,
			Spent:   decimalToNumeric(totals.FinalTotal),
		}); err != nil {
			return GenerateBillResult{}, fmt.Errorf("record customer visit: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return GenerateBillResult{}, fmt.Errorf("commit tx: %w", err)
	}

	// Post-commit housekeeping is best effort: the bill is settled either way.
	if req.OrderID != "" {
		s.cleanupTerminal(ctx, req.HotelID, req.OrderID)
	}
	s.relay.PublishEvent(req.HotelID, EventBillSettled, bill)

	return result, nil
}

// GetBill returns one settled bill.
func (s *BillService) GetBill(ctx context.Context, hotelID uuid.UUID, billID uuid.UUID) (database.Bill, error) {
	bill, err := s.store.GetBill(ctx, database.GetBillParams{ID: billID, HotelID: hotelID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Bill{}, ErrBillNotFound
		}
		return database.Bill{}, fmt.Errorf("get bill: %w", err)
	}
	return bill, nil
}

// ListBills pages through bills in a time range, newest first.
func (s *BillService) ListBills(ctx context.Context, hotelID uuid.UUID, from, to time.Time, limit, offset int32) ([]database.Bill, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListBills(ctx, database.ListBillsParams{
		HotelID: hotelID,
		From:    from,
		To:      to,
		Limit:   limit,
		Offset:  offset,
	})
}

// DeleteBill voids a settled bill. Corrections are delete-and-recreate.
func (s *BillService) DeleteBill(ctx context.Context, hotelID uuid.UUID, billID uuid.UUID) error {
	err := s.store.DeleteBill(ctx, database.GetBillParams{ID: billID, HotelID: hotelID})
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrBillNotFound
	}
	return err
}

// billTotals is the settled money breakdown.
type billTotals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalTotal     decimal.Decimal
	Clamped        bool
}

var oneHundred = decimal.NewFromInt(100)

// computeTotals: subtotal from the merged items, tax on the subtotal,
// discount either a percentage of the subtotal or a flat amount. The final
// total never goes below zero; an oversized discount clamps instead.
func computeTotals(items []terminal.LineItem, taxPercent decimal.Decimal, discountType string, discountValue decimal.Decimal) billTotals {
	t := billTotals{Subtotal: itemsTotal(items)}
	t.TaxAmount = t.Subtotal.Mul(taxPercent).Div(oneHundred).Round(2)

	switch discountType {
	case enum.DiscountTypePercentage:
		t.DiscountAmount = t.Subtotal.Mul(discountValue).Div(oneHundred).Round(2)
	case enum.DiscountTypeAmount:
		t.DiscountAmount = discountValue.Round(2)
	}

	t.FinalTotal = t.Subtotal.Add(t.TaxAmount).Sub(t.DiscountAmount)
	if t.FinalTotal.IsNegative() {
		t.FinalTotal = decimal.Zero
		t.Clamped = true
	}
	return t
}

func validateBillRequest(req GenerateBillRequest) error {
	if req.PaymentMethod == "" {
		return ErrPaymentTypeRequired
	}
	if !enum.ValidPaymentMethod(req.PaymentMethod) {
		return fmt.Errorf("%w: %s", ErrInvalidPaymentMethod, req.PaymentMethod)
	}
	if req.TaxPercent.IsNegative() {
		return ErrInvalidTaxPercent
	}
	if req.DiscountType != "" {
		if !enum.ValidDiscountType(req.DiscountType) {
			return fmt.Errorf("%w: %s", ErrInvalidDiscountType, req.DiscountType)
		}
		if req.DiscountValue.IsNegative() {
			return ErrInvalidDiscountValue
		}
	}
	if req.OrderID == "" && len(req.Items) == 0 {
		return ErrEmptyBill
	}
	return nil
}

// cleanupTerminal drops the settled order and its constituent tickets from
// the terminal tier. Failures only log; the backend record is authoritative.
func (s *BillService) cleanupTerminal(ctx context.Context, hotelID uuid.UUID, orderID string) {
	order, err := s.terminal.GetOrder(ctx, orderID)
	if err != nil {
		if !errors.Is(err, terminal.ErrNotFound) {
			s.log.Warn("terminal cleanup: get order", zap.String("order_id", orderID), zap.Error(err))
		}
		return
	}
	for _, kotID := range order.KOTIDs {
		if err := s.terminal.DeleteKOT(ctx, kotID); err != nil {
			s.log.Warn("terminal cleanup: delete kot", zap.String("kot_id", kotID), zap.Error(err))
		}
	}
	if err := s.terminal.DeleteOrder(ctx, orderID); err != nil {
		s.log.Warn("terminal cleanup: delete order", zap.String("order_id", orderID), zap.Error(err))
	}

	snap, err := s.terminal.Snapshot(ctx)
	if err != nil {
		s.log.Warn("terminal cleanup: snapshot", zap.Error(err))
		return
	}
	s.relay.PublishSnapshot(hotelID, snap)
}
