package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const staffColumns = `id, hotel_id, username, full_name, hashed_password, role, created_at`

func (q *Queries) GetStaffByUsername(ctx context.Context, username string) (Staff, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE username = $1`,
		username,
	)
	return scanStaff(row)
}

func (q *Queries) GetStaffByID(ctx context.Context, id uuid.UUID) (Staff, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE id = $1`,
		id,
	)
	return scanStaff(row)
}

type CreateStaffParams struct {
	HotelID        uuid.UUID
	Username       string
	FullName       string
	HashedPassword string
	Role           string
}

func (q *Queries) CreateStaff(ctx context.Context, arg CreateStaffParams) (Staff, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO staff (hotel_id, username, full_name, hashed_password, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+staffColumns,
		arg.HotelID, arg.Username, arg.FullName, arg.HashedPassword, arg.Role,
	)
	return scanStaff(row)
}

func (q *Queries) ListStaff(ctx context.Context, hotelID uuid.UUID) ([]Staff, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE hotel_id = $1
		ORDER BY created_at`,
		hotelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		staff = append(staff, s)
	}
	return staff, rows.Err()
}

func scanStaff(row pgx.Row) (Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.HotelID, &s.Username, &s.FullName, &s.HashedPassword, &s.Role, &s.CreatedAt)
	return s, err
}
