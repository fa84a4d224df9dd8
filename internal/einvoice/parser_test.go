package einvoice

import (
	"errors"
	"testing"
	"time"
)

// testPayload builds a decoded first-QR payload with the fixed header layout:
// key(21) + filler(8) + amountHex(8) + buyerID(8) + sellerID(8).
func testPayload(totalHex, buyerID, sellerID string) string {
	return testKey + "00000000" + totalHex + buyerID + sellerID
}

const testItemsTail = ":Milk:2:30:Egg:1:40"

func TestParseAmountHex(t *testing.T) {
	got, err := parseAmountHex("00000064")
	if err != nil {
		t.Fatalf("parseAmountHex(00000064) error: %v", err)
	}
	if got != 100 {
		t.Errorf("parseAmountHex(00000064) = %d, want 100", got)
	}

	for _, bad := range []string{"", "0064", "0000zz64", "000000640"} {
		if _, err := parseAmountHex(bad); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("parseAmountHex(%q) error = %v, want ErrInvalidAmount", bad, err)
		}
	}
}

func TestParsePair(t *testing.T) {
	qrA := testPayload("00000064", "00000000", "12345678") + testItemsTail
	qrB := testPayload("00000064", "00000000", "12345678")

	inv, err := ParsePair(qrA, qrB)
	if err != nil {
		t.Fatalf("ParsePair error: %v", err)
	}

	if inv.InvoiceNumber != "AB12345678" {
		t.Errorf("InvoiceNumber = %q, want AB12345678", inv.InvoiceNumber)
	}
	want := time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC)
	if !inv.InvoiceDate.Equal(want) {
		t.Errorf("InvoiceDate = %v, want %v", inv.InvoiceDate, want)
	}
	if inv.RandomNumber != "1A2b" {
		t.Errorf("RandomNumber = %q, want 1A2b", inv.RandomNumber)
	}
	if inv.TotalAmount != 100 {
		t.Errorf("TotalAmount = %d, want 100", inv.TotalAmount)
	}
	if inv.BuyerIdentifier != "00000000" || inv.SellerIdentifier != "12345678" {
		t.Errorf("IDs = (%q, %q), want (00000000, 12345678)", inv.BuyerIdentifier, inv.SellerIdentifier)
	}

	if len(inv.Items) != 2 {
		t.Fatalf("Items = %v, want 2 items", inv.Items)
	}
	if inv.Items[0].Name != "Milk" || inv.Items[0].Quantity.String() != "2" || inv.Items[0].UnitPrice.String() != "30" {
		t.Errorf("Items[0] = %+v, want Milk x2 @30", inv.Items[0])
	}
	if inv.Items[1].Name != "Egg" || inv.Items[1].Quantity.String() != "1" || inv.Items[1].UnitPrice.String() != "40" {
		t.Errorf("Items[1] = %+v, want Egg x1 @40", inv.Items[1])
	}
}

func TestParsePairOrderIndependent(t *testing.T) {
	qrA := testPayload("000003e8", "11111111", "22222222") + testItemsTail
	qrB := testPayload("000003e8", "11111111", "22222222")

	inv1, err1 := ParsePair(qrA, qrB)
	inv2, err2 := ParsePair(qrB, qrA)
	if err1 != nil || err2 != nil {
		t.Fatalf("ParsePair errors: %v / %v", err1, err2)
	}

	if inv1.InvoiceNumber != inv2.InvoiceNumber ||
		!inv1.InvoiceDate.Equal(inv2.InvoiceDate) ||
		inv1.TotalAmount != inv2.TotalAmount ||
		inv1.SellerIdentifier != inv2.SellerIdentifier {
		t.Errorf("argument order changed invoice fields: %+v vs %+v", inv1, inv2)
	}
	if len(inv1.Items) != 2 || len(inv2.Items) != 2 {
		t.Errorf("items lost on swap: %d vs %d", len(inv1.Items), len(inv2.Items))
	}
}

func TestParsePairLeadingJunk(t *testing.T) {
	base := testPayload("00000064", "00000000", "12345678")
	inv, err := ParsePair("xx"+base+testItemsTail, "\uFEFF"+base)
	if err != nil {
		t.Fatalf("ParsePair with junk prefixes error: %v", err)
	}
	if inv.InvoiceNumber != "AB12345678" || inv.TotalAmount != 100 {
		t.Errorf("got %+v, want AB12345678 / 100", inv)
	}
}

func TestParsePairPrefixMismatch(t *testing.T) {
	a := "AAAA" + testPayload("00000064", "00000000", "12345678")[4:]
	b := "BBBB" + testPayload("00000064", "00000000", "12345678")[4:]
	if _, err := ParsePair(a, b); !errors.Is(err, ErrPrefixMismatch) {
		t.Errorf("ParsePair error = %v, want ErrPrefixMismatch", err)
	}
}

func TestParsePairTooShort(t *testing.T) {
	if _, err := ParsePair(testKey, testKey); !errors.Is(err, ErrPayloadTooShort) {
		t.Errorf("ParsePair error = %v, want ErrPayloadTooShort", err)
	}
}

func TestParsePairEmpty(t *testing.T) {
	if _, err := ParsePair("", "x"); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("ParsePair error = %v, want ErrEmptyPayload", err)
	}
}

func TestParseBestEffortNoContinuation(t *testing.T) {
	qrA := testPayload("00000064", "00000000", "12345678") + testItemsTail

	for _, marker := range []string{"", "**", "  **  ", "   "} {
		inv, err := ParseBestEffort(qrA, marker)
		if err != nil {
			t.Fatalf("ParseBestEffort(qrA, %q) error: %v", marker, err)
		}
		if inv.InvoiceNumber != "AB12345678" || len(inv.Items) != 2 {
			t.Errorf("ParseBestEffort(qrA, %q) = %+v, want full single-QR parse", marker, inv)
		}
	}
}

func TestParseBestEffortEmptyFirst(t *testing.T) {
	if _, err := ParseBestEffort("", ""); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("ParseBestEffort error = %v, want ErrEmptyPayload", err)
	}
}

func TestIsNoContinuationMarker(t *testing.T) {
	for _, s := range []string{"", "  ", "**", " ** "} {
		if !IsNoContinuationMarker(s) {
			t.Errorf("IsNoContinuationMarker(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"***", "**x", testKey} {
		if IsNoContinuationMarker(s) {
			t.Errorf("IsNoContinuationMarker(%q) = true, want false", s)
		}
	}
}
