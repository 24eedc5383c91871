package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `id, hotel_id, name, phone, visit_count, total_spent, last_visit_at`

type RecordCustomerVisitParams struct {
	HotelID uuid.UUID
	Name    string
	Phone   string
	Spent   pgtype.Numeric
}

// RecordCustomerVisit upserts the repeat-customer row for a phone number:
// first settlement inserts it, later ones bump visit_count and total_spent.
func (q *Queries) RecordCustomerVisit(ctx context.Context, arg RecordCustomerVisitParams) (Customer, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO customers (hotel_id, name, phone, visit_count, total_spent, last_visit_at)
		VALUES ($1, $2, $3, 1, $4, now())
		ON CONFLICT (hotel_id, phone) DO UPDATE
		SET visit_count = customers.visit_count + 1,
		    total_spent = customers.total_spent + EXCLUDED.total_spent,
		    name = EXCLUDED.name,
		    last_visit_at = now()
		RETURNING `+customerColumns,
		arg.HotelID, arg.Name, arg.Phone, arg.Spent,
	)
	return scanCustomer(row)
}

func (q *Queries) ListCustomers(ctx context.Context, hotelID uuid.UUID) ([]Customer, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE hotel_id = $1
		ORDER BY last_visit_at DESC`,
		hotelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.HotelID, &c.Name, &c.Phone, &c.VisitCount, &c.TotalSpent, &c.LastVisitAt)
	return c, err
}
