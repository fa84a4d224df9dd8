package einvoice

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"twinvoice/pkg/models"
)

var (
	numberRE   = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	nameRuneRE = regexp.MustCompile(`[A-Za-z\x{4e00}-\x{9fff}]`)
)

// looksLikeNumber reports whether a segment is a plain decimal number
// (optional leading minus, optional fraction).
func looksLikeNumber(value string) bool {
	return numberRE.MatchString(strings.TrimSpace(value))
}

func toDecimal(value string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Item segments in a payload may be preceded by an unknown number of metadata
// segments, so scanning is attempted from the first few offsets and the start
// that yields the most items wins.
const maxItemScanOffset = 12

// ExtractItems scans colon-separated segments for (name, quantity, unitPrice)
// triples. Many e-invoice QR payloads embed a sequence like
//
//	...:<itemName>:<qty>:<unitPrice>:<itemName>:<qty>:<unitPrice>:...
//
// Returns nil when nothing parseable is found; never fails.
func ExtractItems(qrText string) []models.InvoiceItem {
	if !strings.Contains(qrText, ":") {
		return nil
	}

	var segments []string
	for _, seg := range strings.Split(qrText, ":") {
		if s := strings.TrimSpace(seg); s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 3 {
		return nil
	}

	var best []models.InvoiceItem
	limit := len(segments)
	if limit > maxItemScanOffset {
		limit = maxItemScanOffset
	}
	for start := 0; start < limit; start++ {
		if cand := parseItemsFrom(segments, start); len(cand) > len(best) {
			best = cand
		}
	}
	return best
}

// parseItemsFrom greedily consumes triples starting at the given segment
// offset, advancing by one segment whenever a triple does not fit.
func parseItemsFrom(segments []string, start int) []models.InvoiceItem {
	var items []models.InvoiceItem
	for i := start; i+2 < len(segments); {
		name := RepairMojibake(segments[i])

		// Reject obvious non-names (common when starting at a wrong offset):
		// empty, all-asterisk continuation padding, or purely numeric/symbolic
		// strings with neither an ASCII letter nor a CJK ideograph.
		if name == "" || allAsterisks(name) || !nameRuneRE.MatchString(name) {
			i++
			continue
		}

		qtyS := segments[i+1]
		unitS := segments[i+2]
		if looksLikeNumber(qtyS) && looksLikeNumber(unitS) {
			qty, okQty := toDecimal(qtyS)
			unit, okUnit := toDecimal(unitS)
			if okQty && okUnit {
				items = append(items, models.InvoiceItem{Name: name, UnitPrice: unit, Quantity: qty})
				i += 3
				continue
			}
		}
		i++
	}
	return items
}

func allAsterisks(s string) bool {
	for _, ch := range s {
		if ch != '*' {
			return false
		}
	}
	return s != ""
}
