package receipt

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/annapurna-pos/api/internal/enum"
	"github.com/annapurna-pos/api/internal/terminal"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func sampleBill() Bill {
	return Bill{
		HotelName:      "Annapurna Lodge",
		BillNumber:     "B-1042",
		OrderID:        "DINE-1756636800-ab12",
		DiningType:     enum.DiningTypeDineIn,
		TableNumber:    4,
		CustomerName:   "Asha",
		Phone:          "9876500001",
		Items:          []terminal.LineItem{
			{ProductID: "dosa", Name: "Masala Dosa", Price: dec("60"), Quantity: 2},
			{ProductID: "chai", Name: "Chai", Price: dec("15"), Quantity: 1},
		},
		Subtotal:       dec("135.00"),
		TaxPercent:     dec("5"),
		TaxAmount:      dec("6.75"),
		DiscountAmount: dec("10.00"),
		FinalTotal:     dec("131.75"),
		PaymentMethod:  enum.PaymentMethodUPI,
		Cashier:        "ravi",
		BilledAt:       time.Date(2026, 8, 31, 19, 30, 0, 0, time.UTC),
	}
}

func TestBillTextLayout(t *testing.T) {
	text := sampleBill().Text()

	for _, want := range []string{
		"Annapurna Lodge",
		"2x Masala Dosa",
		"120.00",
		"135.00",
		"6.75",
		"-10.00",
		"131.75",
		"UPI",
		"Dine-in T4",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("bill text missing %q:\n%s", want, text)
		}
	}

	for i, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if len(line) > width {
			t.Errorf("line %d exceeds %d columns: %q", i+1, width, line)
		}
	}
}

func TestBillTextOmitsZeroAdjustments(t *testing.T) {
	b := sampleBill()
	b.TaxAmount = decimal.Zero
	b.DiscountAmount = decimal.Zero

	text := b.Text()
	if strings.Contains(text, "Tax") {
		t.Error("zero tax must not be printed")
	}
	if strings.Contains(text, "Discount") {
		t.Error("zero discount must not be printed")
	}
}

func TestBillTextLongItemNameTruncated(t *testing.T) {
	b := sampleBill()
	b.Items = []terminal.LineItem{{
		Name: "Extra Large Special Hyderabadi Dum Biryani Family Pack",
		Price: dec("450"), Quantity: 1,
	}}
	for i, line := range strings.Split(strings.TrimRight(b.Text(), "\n"), "\n") {
		if len(line) > width {
			t.Errorf("line %d exceeds %d columns: %q", i+1, width, line)
		}
	}
}

func TestBillTextMultibyteNamesStayValidUTF8(t *testing.T) {
	b := sampleBill()
	b.CustomerName = "श्रीमती पद्मावती देवी अग्रवाल जी महाराज"
	b.Items = []terminal.LineItem{{
		Name: "पनीर बटर मसाला विद एक्स्ट्रा बटर एंड नान", Price: dec("220"), Quantity: 1,
	}}

	text := b.Text()
	if !utf8.ValidString(text) {
		t.Fatalf("bill text contains invalid UTF-8:\n%q", text)
	}
	for i, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if n := utf8.RuneCountInString(line); n > width {
			t.Errorf("line %d is %d runes, max %d: %q", i+1, n, width, line)
		}
	}
}

func TestBillPDF(t *testing.T) {
	out, err := sampleBill().PDF()
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Errorf("output does not look like a PDF: %q", out[:min(8, len(out))])
	}
}

func TestTicketText(t *testing.T) {
	ticket := Ticket{
		KOTNumber:    "KOT-1756636800-cd34",
		DiningType:   enum.DiningTypeTakeaway,
		CustomerName: "Ravi",
		CarDetails:   "KA-01 HJ 1234",
		Items: []terminal.LineItem{
			{Name: "Veg Biryani", Price: dec("180"), Quantity: 2},
		},
		CreatedAt: time.Date(2026, 8, 31, 13, 5, 0, 0, time.UTC),
	}

	text := ticket.Text()
	for _, want := range []string{"KOT", "Takeaway", "Ravi", "KA-01 HJ 1234", "2x Veg Biryani", "13:05"} {
		if !strings.Contains(text, want) {
			t.Errorf("ticket text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "180") {
		t.Error("kitchen ticket must not show prices")
	}
}
