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

const billColumns = `id, hotel_id, staff_id, order_id, customer_name, phone, items,
	subtotal, tax_percent, tax_amount, discount_type, discount_value,
	discount_amount, final_total, payment_method, dining_type, table_number, created_at`

type CreateBillParams struct {
	HotelID        uuid.UUID
	StaffID        uuid.UUID
	OrderID        pgtype.Text
	CustomerName   string
	Phone          string
	Items          []terminal.LineItem
	Subtotal       pgtype.Numeric
	TaxPercent     pgtype.Numeric
	TaxAmount      pgtype.Numeric
	DiscountType   pgtype.Text
	DiscountValue  pgtype.Numeric
	DiscountAmount pgtype.Numeric
	FinalTotal     pgtype.Numeric
	PaymentMethod  string
	DiningType     string
	TableNumber    pgtype.Int4
}

func (q *Queries) CreateBill(ctx context.Context, arg CreateBillParams) (Bill, error) {
	items, err := marshalItems(arg.Items)
	if err != nil {
		return Bill{}, err
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO bills (hotel_id, staff_id, order_id, customer_name, phone, items,
			subtotal, tax_percent, tax_amount, discount_type, discount_value,
			discount_amount, final_total, payment_method, dining_type, table_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING `+billColumns,
		arg.HotelID, arg.StaffID, arg.OrderID, arg.CustomerName, arg.Phone, items,
		arg.Subtotal, arg.TaxPercent, arg.TaxAmount, arg.DiscountType, arg.DiscountValue,
		arg.DiscountAmount, arg.FinalTotal, arg.PaymentMethod, arg.DiningType, arg.TableNumber,
	)
	return scanBill(row)
}

type GetBillParams struct {
	ID      uuid.UUID
	HotelID uuid.UUID
}

func (q *Queries) GetBill(ctx context.Context, arg GetBillParams) (Bill, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+billColumns+`
		FROM bills
		WHERE id = $1 AND hotel_id = $2`,
		arg.ID, arg.HotelID,
	)
	return scanBill(row)
}

type ListBillsParams struct {
	HotelID uuid.UUID
	From    time.Time
	To      time.Time
	Limit   int32
	Offset  int32
}

func (q *Queries) ListBills(ctx context.Context, arg ListBillsParams) ([]Bill, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+billColumns+`
		FROM bills
		WHERE hotel_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		arg.HotelID, arg.From, arg.To, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

// DeleteBill removes a settled bill. Bills are immutable; a correction is
// delete-and-recreate, so this is the only write besides CreateBill.
func (q *Queries) DeleteBill(ctx context.Context, arg GetBillParams) error {
	tag, err := q.db.Exec(ctx, `
		DELETE FROM bills WHERE id = $1 AND hotel_id = $2`,
		arg.ID, arg.HotelID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	var items []byte
	err := row.Scan(
		&b.ID, &b.HotelID, &b.StaffID, &b.OrderID, &b.CustomerName, &b.Phone, &items,
		&b.Subtotal, &b.TaxPercent, &b.TaxAmount, &b.DiscountType, &b.DiscountValue,
		&b.DiscountAmount, &b.FinalTotal, &b.PaymentMethod, &b.DiningType, &b.TableNumber,
		&b.CreatedAt,
	)
	if err != nil {
		return Bill{}, err
	}
	if err := json.Unmarshal(items, &b.Items); err != nil {
		return Bill{}, fmt.Errorf("unmarshal bill items: %w", err)
	}
	return b, nil
}
