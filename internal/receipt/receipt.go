// Package receipt renders customer bills and kitchen tickets for printing:
// plain text sized for 32-column thermal printers, and PDF for mail or
// archive copies.
package receipt

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/annapurna-pos/api/internal/enum"
	"github.com/annapurna-pos/api/internal/terminal"
)

// width is the character budget of one thermal printer line.
const width = 32

// Bill is everything a printed customer bill shows.
type Bill struct {
	HotelName string
	Address   string

	BillNumber  string
	OrderID     string
	DiningType  string
	TableNumber int

	CustomerName string
	Phone        string

	Items []terminal.LineItem

	Subtotal       decimal.Decimal
	TaxPercent     decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalTotal     decimal.Decimal

	PaymentMethod string
	Cashier       string
	BilledAt      time.Time
}

// Ticket is a kitchen order ticket print: no prices, the kitchen only needs
// the dining context and the item batch.
type Ticket struct {
	KOTNumber   string
	DiningType  string
	TableNumber int

	CustomerName string
	CarDetails   string

	Items     []terminal.LineItem
	CreatedAt time.Time
}

var divider = strings.Repeat("-", width)

// Text renders the bill for a 32-column thermal printer.
func (b Bill) Text() string {
	var sb strings.Builder

	writeCentered(&sb, b.HotelName)
	if b.Address != "" {
		writeCentered(&sb, b.Address)
	}
	sb.WriteString(divider + "\n")

	writeRow(&sb, "Bill", b.BillNumber)
	if b.OrderID != "" {
		writeRow(&sb, "Order", b.OrderID)
	}
	writeRow(&sb, "Type", diningLabel(b.DiningType, b.TableNumber))
	if b.CustomerName != "" {
		writeRow(&sb, "Name", b.CustomerName)
	}
	if b.Phone != "" {
		writeRow(&sb, "Phone", b.Phone)
	}
	writeRow(&sb, "Date", b.BilledAt.Format("02-01-2006 15:04"))
	sb.WriteString(divider + "\n")

	for _, item := range b.Items {
		amount := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		writeRow(&sb, fmt.Sprintf("%dx %s", item.Quantity, item.Name), amount.StringFixed(2))
	}
	sb.WriteString(divider + "\n")

	writeRow(&sb, "Subtotal", b.Subtotal.StringFixed(2))
	if !b.TaxAmount.IsZero() {
		writeRow(&sb, fmt.Sprintf("Tax %s%%", b.TaxPercent.String()), b.TaxAmount.StringFixed(2))
	}
	if !b.DiscountAmount.IsZero() {
		writeRow(&sb, "Discount", "-"+b.DiscountAmount.StringFixed(2))
	}
	writeRow(&sb, "TOTAL", b.FinalTotal.StringFixed(2))
	sb.WriteString(divider + "\n")

	writeRow(&sb, "Paid by", strings.ToUpper(b.PaymentMethod))
	if b.Cashier != "" {
		writeRow(&sb, "Cashier", b.Cashier)
	}
	writeCentered(&sb, "Thank you, visit again!")

	return sb.String()
}

// PDF renders the bill as an A4 PDF.
func (b Bill) PDF() ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, b.HotelName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	if b.Address != "" {
		pdf.CellFormat(0, 5, b.Address, "", 1, "C", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Bill %s", b.BillNumber), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, diningLabel(b.DiningType, b.TableNumber), "", 1, "C", false, 0, "")
	if b.CustomerName != "" {
		pdf.CellFormat(0, 5, b.CustomerName, "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 5, b.BilledAt.Format("02 Jan 2006 15:04"), "", 1, "C", false, 0, "")

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Items", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, item := range b.Items {
		amount := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		pdf.CellFormat(120, 5, fmt.Sprintf("%dx %s", item.Quantity, item.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, amount.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Totals", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Subtotal: %s", b.Subtotal.StringFixed(2)), "", 1, "L", false, 0, "")
	if !b.TaxAmount.IsZero() {
		pdf.CellFormat(0, 5, fmt.Sprintf("Tax (%s%%): %s", b.TaxPercent.String(), b.TaxAmount.StringFixed(2)), "", 1, "L", false, 0, "")
	}
	if !b.DiscountAmount.IsZero() {
		pdf.CellFormat(0, 5, fmt.Sprintf("Discount: -%s", b.DiscountAmount.StringFixed(2)), "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total: %s", b.FinalTotal.StringFixed(2)), "", 1, "L", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Payment: %s", strings.ToUpper(b.PaymentMethod)), "", 1, "L", false, 0, "")
	if b.Cashier != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Cashier: %s", b.Cashier), "", 1, "L", false, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return out.Bytes(), nil
}

// Text renders the kitchen ticket. No prices.
func (t Ticket) Text() string {
	var sb strings.Builder

	writeCentered(&sb, "*** KOT ***")
	writeRow(&sb, "Ticket", t.KOTNumber)
	writeRow(&sb, "Type", diningLabel(t.DiningType, t.TableNumber))
	if t.CustomerName != "" {
		writeRow(&sb, "Name", t.CustomerName)
	}
	if t.CarDetails != "" {
		writeRow(&sb, "Car", t.CarDetails)
	}
	writeRow(&sb, "Time", t.CreatedAt.Format("15:04"))
	sb.WriteString(divider + "\n")

	for _, item := range t.Items {
		sb.WriteString(truncate(fmt.Sprintf("%dx %s", item.Quantity, item.Name), width) + "\n")
	}
	sb.WriteString(divider + "\n")

	return sb.String()
}

func diningLabel(diningType string, table int) string {
	if diningType == enum.DiningTypeDineIn && table > 0 {
		return fmt.Sprintf("Dine-in T%d", table)
	}
	if diningType == enum.DiningTypeDineIn {
		return "Dine-in"
	}
	return "Takeaway"
}

// writeRow emits "left ... right" padded to the line width. An oversized
// left side is truncated so the amount column never wraps. Widths are
// counted in runes so multibyte names line up on the printer.
func writeRow(sb *strings.Builder, left, right string) {
	space := width - utf8.RuneCountInString(right) - 1
	if space < 1 {
		space = 1
	}
	left = truncate(left, space)
	pad := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if pad < 1 {
		pad = 1
	}
	sb.WriteString(left + strings.Repeat(" ", pad) + right + "\n")
}

func writeCentered(sb *strings.Builder, s string) {
	s = truncate(s, width)
	pad := (width - utf8.RuneCountInString(s)) / 2
	if pad > 0 {
		sb.WriteString(strings.Repeat(" ", pad))
	}
	sb.WriteString(s + "\n")
}

// truncate cuts on rune boundaries; a byte slice could split a multibyte
// character and feed the printer invalid UTF-8.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "."
}
