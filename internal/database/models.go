package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/annapurna-pos/api/internal/terminal"
)

// Order is a server-persisted order aggregate. The merged item list is
// stored as jsonb; amounts as numeric.
type Order struct {
	ID             string
	HotelID        uuid.UUID
	StaffID        uuid.UUID
	DiningType     string
	TableNumber    pgtype.Int4
	CustomerName   string
	Phone          string
	Items          []terminal.LineItem
	Status         string
	StaffCompleted bool
	TotalAmount    pgtype.Numeric
	FinalTotal     pgtype.Numeric
	AcceptedBy     pgtype.UUID
	AcceptedAt     pgtype.Timestamptz
	CompletedAt    pgtype.Timestamptz
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Bill is the immutable settlement record. Never updated in place;
// corrections are delete-and-recreate.
type Bill struct {
	ID             uuid.UUID
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
	CreatedAt      time.Time
}

type Staff struct {
	ID             uuid.UUID
	HotelID        uuid.UUID
	Username       string
	FullName       string
	HashedPassword string
	Role           string
	CreatedAt      time.Time
}

type Product struct {
	ID        uuid.UUID
	HotelID   uuid.UUID
	Name      string
	Category  string
	Price     pgtype.Numeric
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Customer struct {
	ID          uuid.UUID
	HotelID     uuid.UUID
	Name        string
	Phone       string
	VisitCount  int32
	TotalSpent  pgtype.Numeric
	LastVisitAt time.Time
}
