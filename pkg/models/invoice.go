package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceItem is one purchased line item decoded from a QR payload or an
// enrichment response. Quantities and unit prices keep exact decimal values so
// they round-trip through the textual QR encoding without float drift.
type InvoiceItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  decimal.Decimal
}

// Subtotal returns unit price times quantity.
func (it InvoiceItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(it.Quantity)
}

// Invoice is one reconciled Taiwan e-invoice (電子發票) as recovered from its
// two paper QR codes.
type Invoice struct {
	// Core identifiers
	InvoiceNumber string    // 2 uppercase letters + 8 digits
	InvoiceDate   time.Time // Gregorian; QR payloads carry ROC dates
	RandomNumber  string    // 4-char alphanumeric verification code

	// Amounts. The QR header stores the total as 8 hex digits; it is always a
	// non-negative whole number of TWD.
	TotalAmount int64

	// Parties (8-char tax IDs; buyer is all zeros for anonymous retail sales)
	SellerIdentifier string
	BuyerIdentifier  string

	// Line items (best-effort; not every payload carries any)
	Items []InvoiceItem

	// Enrichment fields, empty unless filled by the MOF lookup or classifier
	SellerName  string
	Category    string
	InvoiceType string
}

// DefaultInvoiceType labels rows for which no richer type is known.
const DefaultInvoiceType = "電子發票"

// RowHeaders is the fixed ledger header, matching the column order of Row.
var RowHeaders = []string{
	"時間",
	"金額",
	"發票編號",
	"購買清單 (單價 x 數量)",
	"類型",
	"發票類型",
	"賣方",
	"賣方統一編號",
}

// TimestampString renders the invoice date as "YYYY/MM/DD 00:00:00". The QR
// payload carries no time of day, so midnight is used.
func (inv Invoice) TimestampString() string {
	return inv.InvoiceDate.Format("2006/01/02") + " 00:00:00"
}

// AmountString renders the total as "$<integer>".
func (inv Invoice) AmountString() string {
	return fmt.Sprintf("$%d", inv.TotalAmount)
}

// InvoiceNumberString renders the invoice number as "AB-12345678" when the
// number has the canonical shape, and uppercased as-is otherwise.
func (inv Invoice) InvoiceNumberString() string {
	return FormatInvoiceNumber(inv.InvoiceNumber)
}

// ItemsString joins items as "name : qty * unit = subtotal" segments separated
// by a full-width semicolon and space.
func (inv Invoice) ItemsString() string {
	if len(inv.Items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(inv.Items))
	for _, it := range inv.Items {
		parts = append(parts, fmt.Sprintf("%s : %s * %s = %s",
			it.Name,
			FormatDecimal(it.Quantity),
			FormatDecimal(it.UnitPrice),
			FormatDecimal(it.Subtotal()),
		))
	}
	return strings.Join(parts, "； ")
}

// Row returns the ledger row in RowHeaders order.
func (inv Invoice) Row() []string {
	return []string{
		inv.TimestampString(),
		inv.AmountString(),
		inv.InvoiceNumberString(),
		inv.ItemsString(),
		inv.Category,
		inv.InvoiceType,
		inv.SellerName,
		inv.SellerIdentifier,
	}
}

// FormatDecimal renders d without trailing fraction zeros ("3.520" -> "3.52",
// "2.00" -> "2").
func FormatDecimal(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// FormatInvoiceNumber formats a 10-char invoice number as "AB-12345678" when
// possible. Anything else is trimmed and uppercased unchanged.
func FormatInvoiceNumber(invoiceNumber string) string {
	s := strings.ToUpper(strings.TrimSpace(invoiceNumber))
	if isCanonicalInvoiceNumber(s) {
		return s[:2] + "-" + s[2:]
	}
	return s
}

func isCanonicalInvoiceNumber(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := 0; i < 2; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	for i := 2; i < 10; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
