package einvoice

import (
	"regexp"
	"strconv"
	"strings"

	"twinvoice/pkg/models"
)

// Fixed rune offsets of the header fields shared by both QR payloads.
// prefix: invoiceNumber [0:10) + rocDate [10:17) + random [17:21),
// then after an 8-char filler: amountHex [29:37), buyerID [37:45),
// sellerID [45:53).
const (
	prefixEnd    = 21
	amountStart  = 29
	amountEnd    = 37
	buyerIDEnd   = 45
	sellerIDEnd  = 53
	minHeaderLen = sellerIDEnd
)

var amountHexRE = regexp.MustCompile(`^[0-9A-Fa-f]{8}$`)

// parseAmountHex decodes the 8-hex-digit total amount field.
func parseAmountHex(hexStr string) (int64, error) {
	s := strings.TrimSpace(hexStr)
	if !amountHexRE.MatchString(s) {
		return 0, NewParseError("parseAmountHex", ErrInvalidAmount, s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, NewParseError("parseAmountHex", ErrInvalidAmount, s)
	}
	return int64(v), nil
}

// ParsePair parses the two QR codes from a Taiwan e-invoice paper.
//
// Both payloads are expected to share the same leading 21 chars (the invoice
// key); header fields are then read from fixed positions of whichever payload
// is long enough, and items from whichever payload carries more ':' segments.
// The invoice-level fields are the same regardless of argument order.
func ParsePair(qrA, qrB string) (*models.Invoice, error) {
	const op = "ParsePair"

	a := []rune(CleanPayload(qrA))
	b := []rune(CleanPayload(qrB))
	if len(a) == 0 || len(b) == 0 {
		return nil, NewParseError(op, ErrEmptyPayload, "need 2 non-empty QR payloads")
	}

	// If the invoice key appears later in the decoded string, align to it.
	keyA, posA, okA := FindKey(string(a))
	keyB, posB, okB := FindKey(string(b))
	if okA && okB && keyA == keyB {
		a = a[posA:]
		b = b[posB:]
	}

	if len(a) < minHeaderLen && len(b) < minHeaderLen {
		return nil, NewParseError(op, ErrPayloadTooShort, "")
	}

	// Both QR codes should start with the same 21 chars.
	var prefix []rune
	if len(a) >= prefixEnd {
		prefix = a[:prefixEnd]
	}
	if len(prefix) == 0 || len(b) < prefixEnd || string(b[:prefixEnd]) != string(prefix) {
		// Fallback: longest common leading prefix.
		prefix = commonPrefix(a, b)
		if len(prefix) < prefixEnd {
			return nil, NewParseError(op, ErrPrefixMismatch, "")
		}
	}

	inv, err := invoiceFromAligned(prefix, headerSource(a, b))
	if err != nil {
		return nil, err
	}

	// Items usually live in the QR that contains more ':' segments.
	itemsSource := string(a)
	if strings.Count(string(b), ":") > strings.Count(string(a), ":") {
		itemsSource = string(b)
	}
	inv.Items = ExtractItems(itemsSource)
	return inv, nil
}

// ParseBestEffort parses one invoice from one or two QR payloads.
//
// A second payload that is blank or exactly "**" (after trimming) is the paper
// format's explicit no-continuation marker: the whole invoice fits in qrA.
// That is not a decode failure, so qrA is parsed alone. Anything else is
// treated as a strict pair.
func ParseBestEffort(qrA, qrB string) (*models.Invoice, error) {
	const op = "ParseBestEffort"

	a := []rune(CleanPayload(qrA))
	if len(a) == 0 {
		return nil, NewParseError(op, ErrEmptyPayload, "")
	}

	if !IsNoContinuationMarker(qrB) {
		return ParsePair(qrA, qrB)
	}

	if _, pos, ok := FindKey(string(a)); ok {
		a = a[pos:]
	}
	if len(a) < minHeaderLen {
		return nil, NewParseError(op, ErrPayloadTooShort, "")
	}

	inv, err := invoiceFromAligned(a[:prefixEnd], a)
	if err != nil {
		return nil, err
	}
	inv.Items = ExtractItems(string(a))
	return inv, nil
}

// IsNoContinuationMarker reports whether a QR payload means "no continuation":
// blank/whitespace, or "**" (possibly padded). This does NOT mean decode
// failure; all items can fit in the left QR.
func IsNoContinuationMarker(qrText string) bool {
	trimmed := strings.TrimSpace(qrText)
	return trimmed == "" || trimmed == "**"
}

// invoiceFromAligned builds an invoice from the shared 21-rune prefix and the
// fixed-position header fields of one aligned payload.
func invoiceFromAligned(prefix, header []rune) (*models.Invoice, error) {
	invoiceDate, err := ROCDateToTime(string(prefix[10:17]))
	if err != nil {
		return nil, err
	}

	totalAmount, err := parseAmountHex(string(header[amountStart:amountEnd]))
	if err != nil {
		return nil, err
	}

	return &models.Invoice{
		InvoiceNumber:    string(prefix[:10]),
		InvoiceDate:      invoiceDate,
		RandomNumber:     strings.TrimSpace(string(prefix[17:prefixEnd])),
		TotalAmount:      totalAmount,
		BuyerIdentifier:  strings.TrimSpace(string(header[amountEnd:buyerIDEnd])),
		SellerIdentifier: strings.TrimSpace(string(header[buyerIDEnd:sellerIDEnd])),
		InvoiceType:      models.DefaultInvoiceType,
	}, nil
}

// headerSource picks the payload used for fixed-position header parsing,
// preferring the first when both are long enough.
func headerSource(a, b []rune) []rune {
	if len(a) >= minHeaderLen {
		return a
	}
	return b
}

func commonPrefix(a, b []rune) []rune {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
