package einvoice

import (
	"sort"
	"strings"
	"unicode"
)

// maxPayloadsPerKey bounds stash memory per invoice. More than a pair is kept
// because an unkeyed continuation QR ("**" + padding) may be stashed alongside
// several decode attempts of the header QR.
const maxPayloadsPerKey = 6

// Stash accumulates QR payload fragments observed across multiple capture
// attempts, grouped by the 21-char invoice key, and decides when a usable
// pair exists.
//
// It is session-scoped, mutated from a single control path, and holds no
// locks. Iteration is deterministic in key insertion order.
type Stash struct {
	groups map[string][]string
	order  []string
}

// NewStash returns an empty stash.
func NewStash() *Stash {
	return &Stash{groups: make(map[string][]string)}
}

// Len returns the number of invoice keys currently stashed.
func (st *Stash) Len() int { return len(st.order) }

// Keys returns the stashed invoice keys in insertion order.
func (st *Stash) Keys() []string {
	out := make([]string, len(st.order))
	copy(out, st.order)
	return out
}

// Payloads returns the stored payloads for a key, in arrival order.
func (st *Stash) Payloads(key string) []string {
	out := make([]string, len(st.groups[key]))
	copy(out, st.groups[key])
	return out
}

// Remove clears the entry for a key, typically right after the key has been
// parsed and recorded so each invoice is saved at most once per session.
func (st *Stash) Remove(key string) {
	if _, ok := st.groups[key]; !ok {
		return
	}
	delete(st.groups, key)
	for i, k := range st.order {
		if k == key {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
}

// Add stores newly decoded texts grouped by invoice key and returns the keys
// whose stored list changed.
//
// A payload without its own embedded key is attributed to, in order of
// preference: the single distinct key seen in this batch, the caller's context
// key (when it already has entries, or the stash holds at most one key), or
// the sole existing stash key. Payloads whose key cannot be determined are
// dropped.
func (st *Stash) Add(texts []string, contextKey string) []string {
	var updated []string

	deduped := DedupeKeepOrder(texts)

	var batchKeys []string
	for _, t := range deduped {
		if k := KeyFromPayload(t); k != "" {
			batchKeys = append(batchKeys, k)
		}
	}
	batchKeys = DedupeKeepOrder(batchKeys)

	inferredKey := ""
	switch {
	case len(batchKeys) == 1:
		inferredKey = batchKeys[0]
	case contextKey != "" && (st.has(contextKey) || len(st.order) <= 1):
		inferredKey = contextKey
	case len(st.order) == 1:
		inferredKey = st.order[0]
	}

	for _, t := range deduped {
		k := KeyFromPayload(t)
		if k == "" {
			k = inferredKey
		}
		if k == "" {
			continue
		}
		if !st.has(k) {
			st.groups[k] = nil
			st.order = append(st.order, k)
		}
		before := len(st.groups[k])
		merged := DedupeKeepOrder(append(st.Payloads(k), t))
		if len(merged) > maxPayloadsPerKey {
			merged = merged[:maxPayloadsPerKey]
		}
		st.groups[k] = merged
		if len(merged) != before {
			updated = append(updated, k)
		}
	}
	return updated
}

func (st *Stash) has(key string) bool {
	_, ok := st.groups[key]
	return ok
}

// PickReadyPair returns the first locally-parseable (qrA, qrB, key) among the
// stashed keys, trying preferKey first when given. A key with a single stored
// payload is never ready on its own; unkeyed continuation payloads are kept
// but do not count as ready by themselves.
func (st *Stash) PickReadyPair(preferKey string) (string, string, string, bool) {
	keys := st.Keys()
	if preferKey != "" && st.has(preferKey) {
		reordered := []string{preferKey}
		for _, k := range keys {
			if k != preferKey {
				reordered = append(reordered, k)
			}
		}
		keys = reordered
	}

	for _, k := range keys {
		payloads := DedupeKeepOrder(st.groups[k])
		if len(payloads) < 2 {
			continue
		}
		if a, b, _, ok := PickPairFromTexts(payloads); ok {
			return a, b, k, true
		}
	}
	return "", "", "", false
}

// PickBestForSingle selects (qrA, qrB) for the header-only save fallback:
// qrA is the keyed payload with the most item segments; qrB prefers an
// unkeyed payload, especially one starting with "**", falling back to any
// other payload or qrA itself.
func (st *Stash) PickBestForSingle(key string) (string, string, bool) {
	payloads := DedupeKeepOrder(st.groups[key])
	if len(payloads) == 0 {
		return "", "", false
	}

	var keyed, unkeyed []string
	for _, p := range payloads {
		if KeyFromPayload(p) != "" {
			keyed = append(keyed, p)
		} else {
			unkeyed = append(unkeyed, p)
		}
	}

	qrACandidates := keyed
	if len(qrACandidates) == 0 {
		qrACandidates = payloads
	}
	qrA := maxByColons(qrACandidates)

	var bCandidates []string
	bCandidates = append(bCandidates, unkeyed...)
	for _, p := range payloads {
		if p != qrA {
			bCandidates = append(bCandidates, p)
		}
	}

	qrB := qrA
	if len(bCandidates) > 0 {
		qrB = bCandidates[0]
		bestMarker, bestColons := rankForContinuation(qrB)
		for _, p := range bCandidates[1:] {
			marker, colons := rankForContinuation(p)
			if marker > bestMarker || (marker == bestMarker && colons > bestColons) {
				qrB, bestMarker, bestColons = p, marker, colons
			}
		}
	}
	return qrA, qrB, true
}

func rankForContinuation(p string) (int, int) {
	marker := 0
	if strings.HasPrefix(strings.TrimLeftFunc(p, unicode.IsSpace), "**") {
		marker = 1
	}
	return marker, strings.Count(p, ":")
}

func maxByColons(payloads []string) string {
	best := payloads[0]
	bestColons := strings.Count(best, ":")
	for _, p := range payloads[1:] {
		if c := strings.Count(p, ":"); c > bestColons {
			best, bestColons = p, c
		}
	}
	return best
}

// PickPairFromTexts picks a usable (qrA, qrB, key) from decoded texts.
//
// Grouping by embedded invoice key is preferred; when that fails (e.g. one QR
// does not pass strict key validation), all pairs are tried in
// most-item-segments-first order and the first that parses wins.
func PickPairFromTexts(texts []string) (string, string, string, bool) {
	deduped := DedupeKeepOrder(texts)

	grouped := make(map[string][]string)
	var groupOrder []string
	for _, t := range deduped {
		k := KeyFromPayload(t)
		if k == "" {
			continue
		}
		if _, ok := grouped[k]; !ok {
			groupOrder = append(groupOrder, k)
		}
		grouped[k] = append(grouped[k], t)
	}

	for _, k := range groupOrder {
		payloads := DedupeKeepOrder(grouped[k])
		if len(payloads) < 2 {
			continue
		}
		ordered := sortedByColonsDesc(payloads)
		return ordered[0], ordered[1], k, true
	}

	// Fallback: brute force pairs.
	candidates := sortedByColonsDesc(deduped)
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			inv, err := ParseBestEffort(a, b)
			if err != nil {
				continue
			}
			k := KeyFromPayload(a)
			if k == "" {
				k = KeyFromPayload(b)
			}
			if k == "" {
				k = inv.InvoiceNumber
			}
			return a, b, k, true
		}
	}
	return "", "", "", false
}

func sortedByColonsDesc(texts []string) []string {
	out := make([]string, len(texts))
	copy(out, texts)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.Count(out[i], ":") > strings.Count(out[j], ":")
	})
	return out
}
