package einvoice

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// readability summarizes how much a string looks like human-readable
// Traditional Chinese. Halfwidth katakana counts double as "weird" because it
// is the signature of Big5 bytes mis-decoded as Shift-JIS.
type readability struct {
	cjk   int
	ascii int
	weird int
}

func scoreReadability(text string) readability {
	var r readability
	for _, ch := range text {
		switch {
		case ch >= 0x4E00 && ch <= 0x9FFF: // CJK Unified Ideographs
			r.cjk++
		case ch >= 0x20 && ch <= 0x7E:
			r.ascii++
		case ch >= 0xFF61 && ch <= 0xFF9F: // Halfwidth Katakana
			r.weird += 2
		default:
			r.weird++
		}
	}
	return r
}

// betterThan reports whether a should be preferred over b when picking a
// repair candidate: more CJK, then less weird, then more ASCII, then shorter
// (to avoid garbage expansions).
func (a readability) betterThan(b readability, lenA, lenB int) bool {
	if a.cjk != b.cjk {
		return a.cjk > b.cjk
	}
	if a.weird != b.weird {
		return a.weird < b.weird
	}
	if a.ascii != b.ascii {
		return a.ascii > b.ascii
	}
	return lenA < lenB
}

// RepairMojibake tries to repair common mojibake in item names.
//
// In practice some decoders yield a string that is actually Big5 (CP950) bytes
// mis-decoded as Shift-JIS (CP932), showing '､' and halfwidth katakana. The
// strategy: re-encode under the wrong codec, re-decode under the likely right
// one, and keep the candidate only if it strictly improves readability.
// Falls back to the original string; never fails.
func RepairMojibake(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}

	base := scoreReadability(s)
	// Already contains CJK and nothing weird: don't rewrite.
	if base.cjk >= 2 && base.weird == 0 {
		return s
	}

	candidates := []string{s}

	// Most common corruption: Shift-JIS mojibake hiding Big5 bytes.
	if repaired, ok := reencode(s, japanese.ShiftJIS, traditionalchinese.Big5); ok {
		candidates = append(candidates, repaired)
	}

	// Fallback: Latin-1 round-trip (some decode layers effectively do this).
	if raw, ok := latin1Bytes(s); ok {
		if repaired, ok := strictDecode(raw, traditionalchinese.Big5); ok {
			candidates = append(candidates, repaired)
		}
		if utf8.Valid(raw) {
			candidates = append(candidates, string(raw))
		}
	}

	best := s
	bestScore := base
	for _, cand := range candidates[1:] {
		score := scoreReadability(cand)
		if score.betterThan(bestScore, utf8.RuneCountInString(cand), utf8.RuneCountInString(best)) {
			best, bestScore = cand, score
		}
	}

	// Conservative acceptance: must gain CJK without gaining weirdness, so an
	// already-valid name is never corrupted.
	if bestScore.cjk > base.cjk && bestScore.weird <= base.weird {
		return best
	}
	return s
}

// reencode encodes s under the wrong encoding and decodes the bytes under the
// right one, requiring both directions to be lossless.
func reencode(s string, wrong, right encoding.Encoding) (string, bool) {
	raw, err := wrong.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return "", false
	}
	return strictDecode(raw, right)
}

// strictDecode decodes raw and rejects any output containing the replacement
// rune, emulating a strict decoder.
func strictDecode(raw []byte, enc encoding.Encoding) (string, bool) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	decoded := string(out)
	if strings.ContainsRune(decoded, utf8.RuneError) {
		return "", false
	}
	return decoded, true
}

// latin1Bytes maps each rune below U+0100 to one byte, the inverse of a
// Latin-1 decode. Fails if any rune is out of range.
func latin1Bytes(s string) ([]byte, bool) {
	out := make([]byte, 0, len(s))
	for _, ch := range s {
		if ch > 0xFF {
			return nil, false
		}
		out = append(out, byte(ch))
	}
	return out, true
}
