// Package einvoice parses the two QR codes printed on Taiwan e-invoice
// (電子發票) paper.
//
// The payload format is positional and has multiple undocumented variants;
// this package is a best-effort decoder focused on extracting:
//   - invoice number
//   - ROC date (YYYMMDD) converted to a Gregorian date
//   - total amount (8 hex digits)
//   - buyer / seller tax IDs
//   - the item list (best-effort, from whichever QR carries it)
//
// It tolerates truncation, decoder-introduced leading garbage, BOMs, and
// character-encoding corruption in item names. Authoritative details (exact
// time, seller name) usually require the MOF lookup in internal/mof.
package einvoice

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// An invoice key is invoiceNumber(10) + rocDate(7) + random(4) = 21 chars.
const keyLen = 21

var (
	invoiceNumberRE = regexp.MustCompile(`^[A-Z]{2}\d{8}$`)
	rocDateRE       = regexp.MustCompile(`^\d{7}$`)
	randomCodeRE    = regexp.MustCompile(`^[0-9A-Za-z]{4}$`)
	keyAnywhereRE   = regexp.MustCompile(`[A-Z]{2}\d{8}\d{7}[0-9A-Za-z]{4}`)
)

// CleanPayload normalizes decoded QR text. Some decoders include a leading
// BOM or control characters; this keeps only printable characters and strips
// surrounding whitespace.
func CleanPayload(value string) string {
	s := strings.ReplaceAll(value, "\uFEFF", "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(s)
}

// FindKey locates a valid 21-char invoice key inside noisy decoded text.
// It returns the key, its rune offset in the cleaned text, and whether a key
// was found.
func FindKey(value string) (string, int, bool) {
	s := []rune(CleanPayload(value))
	if len(s) < keyLen {
		return "", 0, false
	}

	// Fast path: expected to start at position 0.
	if key, ok := validateKey(string(s[:keyLen])); ok {
		return key, 0, true
	}

	loc := keyAnywhereRE.FindStringIndex(string(s))
	if loc == nil {
		return "", 0, false
	}
	raw := string(s)[loc[0]:loc[1]]
	if key, ok := validateKey(raw); ok {
		// The regexp matched only ASCII, so the byte offset equals the rune
		// offset for the matched region's start within the cleaned text
		// whenever the preceding text is ASCII too; count runes to be safe.
		return key, len([]rune(string(s)[:loc[0]])), true
	}
	return "", 0, false
}

// validateKey checks the three sub-fields of a 21-char candidate, uppercasing
// the invoice number first.
func validateKey(candidate string) (string, bool) {
	r := []rune(candidate)
	if len(r) != keyLen {
		return "", false
	}
	invNo := strings.ToUpper(string(r[:10]))
	rocDate := string(r[10:17])
	rnd := string(r[17:21])
	if invoiceNumberRE.MatchString(invNo) && rocDateRE.MatchString(rocDate) && randomCodeRE.MatchString(rnd) {
		return invNo + rocDate + rnd, true
	}
	return "", false
}

// KeyFromPayload returns the stable grouping key for a decoded QR payload, or
// "" if no valid key pattern exists anywhere in the text.
func KeyFromPayload(qrText string) string {
	key, _, ok := FindKey(qrText)
	if !ok {
		return ""
	}
	return key
}

// ROCDateToTime converts a ROC date string (YYYMMDD) into a Gregorian date.
// ROC year 1 is Gregorian 1912, so the offset is +1911.
func ROCDateToTime(rocDate string) (time.Time, error) {
	s := strings.TrimSpace(rocDate)
	if !rocDateRE.MatchString(s) {
		return time.Time{}, NewParseError("ROCDateToTime", ErrInvalidROCDate, s)
	}

	year := atoi3(s[0:3]) + 1911
	month := atoi2(s[3:5])
	day := atoi2(s[5:7])

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range components (e.g. month 13, Feb 30);
	// reject anything that did not survive round-trip.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, NewParseError("ROCDateToTime", ErrInvalidROCDate, s)
	}
	return t, nil
}

// TimeToROCDate renders a date back into the 7-digit ROC form used by some
// MOF API generations.
func TimeToROCDate(t time.Time) string {
	return formatInt(t.Year()-1911, 3) + formatInt(int(t.Month()), 2) + formatInt(t.Day(), 2)
}

func atoi3(s string) int { return int(s[0]-'0')*100 + int(s[1]-'0')*10 + int(s[2]-'0') }
func atoi2(s string) int { return int(s[0]-'0')*10 + int(s[1]-'0') }

func formatInt(v, width int) string {
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte('0' + v%10)
		v /= 10
	}
	return string(out)
}

// DedupeKeepOrder trims values, drops empties, and removes duplicates while
// preserving first-seen order.
func DedupeKeepOrder(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		s := strings.TrimSpace(v)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// MaskKey renders an invoice key with most characters hidden
// ("AB1234567811401031A2b" -> "AB******78114*******b"), so logs stay
// privacy-safe while captures of the same invoice remain correlatable.
func MaskKey(key string) string {
	s := strings.TrimSpace(key)
	if len(s) < keyLen {
		return "<invalid>"
	}
	inv := s[:10]
	roc := s[10:17]
	rnd := s[17:21]
	return inv[:2] + "******" + inv[8:] + roc[:3] + "****" + "***" + rnd[3:]
}
