package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, hotel_id, name, category, price, is_active, created_at, updated_at`

type CreateProductParams struct {
	HotelID  uuid.UUID
	Name     string
	Category string
	Price    pgtype.Numeric
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO products (hotel_id, name, category, price)
		VALUES ($1, $2, $3, $4)
		RETURNING `+productColumns,
		arg.HotelID, arg.Name, arg.Category, arg.Price,
	)
	return scanProduct(row)
}

type GetProductParams struct {
	ID      uuid.UUID
	HotelID uuid.UUID
}

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND hotel_id = $2`,
		arg.ID, arg.HotelID,
	)
	return scanProduct(row)
}

type ListProductsParams struct {
	HotelID    uuid.UUID
	ActiveOnly bool
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE hotel_id = $1 AND (NOT $2::bool OR is_active)
		ORDER BY category, name`,
		arg.HotelID, arg.ActiveOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type UpdateProductParams struct {
	ID       uuid.UUID
	HotelID  uuid.UUID
	Name     string
	Category string
	Price    pgtype.Numeric
	IsActive bool
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET name = $3, category = $4, price = $5, is_active = $6, updated_at = now()
		WHERE id = $1 AND hotel_id = $2
		RETURNING `+productColumns,
		arg.ID, arg.HotelID, arg.Name, arg.Category, arg.Price, arg.IsActive,
	)
	return scanProduct(row)
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.HotelID, &p.Name, &p.Category, &p.Price, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
