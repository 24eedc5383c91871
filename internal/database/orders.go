package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/annapurna-pos/api/internal/terminal"
)

const orderColumns = `id, hotel_id, staff_id, dining_type, table_number, customer_name, phone,
	items, status, staff_completed, total_amount, final_total,
	accepted_by, accepted_at, completed_at, created_at, updated_at`

type CreateOrderParams struct {
	ID           string
	HotelID      uuid.UUID
	StaffID      uuid.UUID
	DiningType   string
	TableNumber  pgtype.Int4
	CustomerName string
	Phone        string
	Items        []terminal.LineItem
	Status       string
	TotalAmount  pgtype.Numeric
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	items, err := marshalItems(arg.Items)
	if err != nil {
		return Order{}, err
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (id, hotel_id, staff_id, dining_type, table_number,
			customer_name, phone, items, status, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+orderColumns,
		arg.ID, arg.HotelID, arg.StaffID, arg.DiningType, arg.TableNumber,
		arg.CustomerName, arg.Phone, items, arg.Status, arg.TotalAmount,
	)
	return scanOrder(row)
}

type GetOrderParams struct {
	ID      string
	HotelID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND hotel_id = $2`,
		arg.ID, arg.HotelID,
	)
	return scanOrder(row)
}

// GetOrderForUpdate locks the order row for the duration of the enclosing
// transaction. Settlement takes this lock before checking status so two
// concurrent bill attempts against the same order serialize.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND hotel_id = $2
		FOR UPDATE`,
		arg.ID, arg.HotelID,
	)
	return scanOrder(row)
}

type ListOrdersParams struct {
	HotelID      uuid.UUID
	Statuses     []string
	CreatedAfter time.Time
	// StaffID narrows to orders created by one staff member when valid.
	StaffID pgtype.UUID
	// ExcludeStaffCompleted hides staff-completed orders (the staff pending
	// queue); admins pass false and see them awaiting billing.
	ExcludeStaffCompleted bool
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE hotel_id = $1
		  AND status = ANY($2)
		  AND created_at >= $3
		  AND ($4::uuid IS NULL OR staff_id = $4)
		  AND (NOT $5::bool OR staff_completed = false)
		ORDER BY created_at DESC`,
		arg.HotelID, arg.Statuses, arg.CreatedAfter, arg.StaffID, arg.ExcludeStaffCompleted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

type ListCompletedOrdersParams struct {
	HotelID uuid.UUID
	// CompletedAfter filters on settlement time, not creation time, so an
	// order opened before midnight and billed after it lands in the right day.
	CompletedAfter time.Time
	StaffID        pgtype.UUID
}

func (q *Queries) ListCompletedOrders(ctx context.Context, arg ListCompletedOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE hotel_id = $1
		  AND status = 'completed'
		  AND completed_at >= $2
		  AND ($3::uuid IS NULL OR staff_id = $3)
		ORDER BY completed_at DESC`,
		arg.HotelID, arg.CompletedAfter, arg.StaffID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

type AcceptOrderParams struct {
	ID         string
	HotelID    uuid.UUID
	AcceptedBy uuid.UUID
}

// AcceptOrder and the other transition updates carry the expected-state
// predicate in the WHERE clause, so a concurrent transition (settlement in
// particular) makes the update match no row instead of overwriting a
// terminal status. Callers see pgx.ErrNoRows from the RETURNING scan.
func (q *Queries) AcceptOrder(ctx context.Context, arg AcceptOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = 'in_progress', accepted_by = $3, accepted_at = now(), updated_at = now()
		WHERE id = $1 AND hotel_id = $2 AND status = 'pending'
		RETURNING `+orderColumns,
		arg.ID, arg.HotelID, arg.AcceptedBy,
	)
	return scanOrder(row)
}

type MarkOrderStaffCompletedParams struct {
	ID      string
	HotelID uuid.UUID
}

func (q *Queries) MarkOrderStaffCompleted(ctx context.Context, arg MarkOrderStaffCompletedParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = 'in_progress', staff_completed = true, updated_at = now()
		WHERE id = $1 AND hotel_id = $2 AND status = 'pending'
		RETURNING `+orderColumns,
		arg.ID, arg.HotelID,
	)
	return scanOrder(row)
}

type CancelOrderParams struct {
	ID      string
	HotelID uuid.UUID
}

func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND hotel_id = $2 AND status IN ('pending', 'in_progress')
		RETURNING `+orderColumns,
		arg.ID, arg.HotelID,
	)
	return scanOrder(row)
}

type CompleteOrderParams struct {
	ID         string
	HotelID    uuid.UUID
	FinalTotal pgtype.Numeric
}

func (q *Queries) CompleteOrder(ctx context.Context, arg CompleteOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = 'completed', final_total = $3, completed_at = now(), updated_at = now()
		WHERE id = $1 AND hotel_id = $2 AND status IN ('pending', 'in_progress')
		RETURNING `+orderColumns,
		arg.ID, arg.HotelID, arg.FinalTotal,
	)
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var items []byte
	err := row.Scan(
		&o.ID, &o.HotelID, &o.StaffID, &o.DiningType, &o.TableNumber,
		&o.CustomerName, &o.Phone, &items, &o.Status, &o.StaffCompleted,
		&o.TotalAmount, &o.FinalTotal, &o.AcceptedBy, &o.AcceptedAt,
		&o.CompletedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("unmarshal order items: %w", err)
	}
	return o, nil
}

func marshalItems(items []terminal.LineItem) ([]byte, error) {
	if items == nil {
		items = []terminal.LineItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}
	return payload, nil
}
