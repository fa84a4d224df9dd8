// Package scan drives a scanning session: decoded QR payload texts go in,
// reconciled ledger rows come out.
//
// Payloads arrive in arbitrary order across capture attempts (each capture may
// decode only one of the two QR codes, or re-decode one already seen), so the
// session stashes fragments per invoice key and saves an invoice exactly once,
// as soon as a locally parseable pair exists.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog"

	"twinvoice/internal/einvoice"
	"twinvoice/internal/logger"
	"twinvoice/pkg/models"
)

// RowSink receives finished ledger rows (a file writer, a Google Sheet, ...).
type RowSink interface {
	Append(ctx context.Context, row []string) error
}

// Enricher fills invoice gaps from a remote source, best-effort.
type Enricher interface {
	Enrich(ctx context.Context, inv *models.Invoice, qrA, qrB string) (*models.Invoice, map[string]any)
}

// Classifier assigns a spending category to a parsed invoice.
type Classifier interface {
	Categorize(ctx context.Context, inv *models.Invoice) (string, error)
}

// Options configures a Session. Sinks is required; the rest are optional.
type Options struct {
	Sinks      []RowSink
	Enricher   Enricher
	Classifier Classifier

	// MaxSaves stops the session after N saved invoices (0 = no limit).
	MaxSaves int
}

// Session accumulates payloads and writes each reconciled invoice at most
// once. It is single-goroutine state, like the capture loop that feeds it.
type Session struct {
	opts  Options
	stash *einvoice.Stash
	log   zerolog.Logger

	savedKeys  map[string]struct{}
	currentKey string
	saved      int
}

// NewSession creates an empty scanning session.
func NewSession(opts Options) *Session {
	return &Session{
		opts:      opts,
		stash:     einvoice.NewStash(),
		log:       logger.WithComponent("scan"),
		savedKeys: make(map[string]struct{}),
	}
}

// Saved returns the number of invoices written so far.
func (s *Session) Saved() int { return s.saved }

// Done reports whether the MaxSaves limit has been reached.
func (s *Session) Done() bool {
	return s.opts.MaxSaves > 0 && s.saved >= s.opts.MaxSaves
}

// IncompleteKeys returns the invoice keys still waiting for a usable pair.
func (s *Session) IncompleteKeys() []string {
	return s.stash.Keys()
}

// Reset drops all session state: stash, saved keys, and the current key.
func (s *Session) Reset() {
	s.stash = einvoice.NewStash()
	s.savedKeys = make(map[string]struct{})
	s.currentKey = ""
}

// Ingest stashes newly decoded texts and saves every invoice that became
// complete. It returns how many invoices were saved by this call; sink errors
// abort the drain so the stash keeps the unsaved pair for a retry.
func (s *Session) Ingest(ctx context.Context, texts []string) (int, error) {
	updated := s.stash.Add(texts, s.currentKey)
	if len(updated) == 0 {
		if keys := keysSeen(texts); len(keys) > 0 {
			s.log.Info().
				Str("key", einvoice.MaskKey(keys[0])).
				Int("stashed", len(s.stash.Payloads(keys[0]))).
				Msg("Decoded e-invoice payload already stashed")
		} else {
			s.log.Warn().Msg("Decoded QR(s) but none looked like an e-invoice payload")
		}
		return 0, nil
	}

	// Remember an unambiguous key so later unkeyed continuation payloads can
	// still be attributed to this invoice.
	if s.currentKey == "" && allSame(updated) {
		s.currentKey = updated[0]
	}

	prefer := updated[0]
	savedNow := 0
	for {
		qrA, qrB, key, ok := s.stash.PickReadyPair(prefer)
		if !ok {
			break
		}

		if _, dup := s.savedKeys[key]; dup {
			s.log.Warn().Str("key", einvoice.MaskKey(key)).Msg("Invoice already saved this session; skipping")
			s.stash.Remove(key)
			continue
		}

		inv, err := einvoice.ParseBestEffort(qrA, qrB)
		if err != nil {
			s.log.Warn().Err(err).Str("key", einvoice.MaskKey(key)).Msg("Parse failed for stashed pair")
			// Drop the bad pair rather than loop on it forever.
			s.stash.Remove(key)
			continue
		}

		if err := s.save(ctx, inv, qrA, qrB, key); err != nil {
			return savedNow, err
		}
		savedNow++
		if s.Done() {
			break
		}
	}

	if savedNow == 0 {
		k := updated[0]
		s.log.Info().
			Str("key", einvoice.MaskKey(k)).
			Int("stashed", len(s.stash.Payloads(k))).
			Msg("Stashed payload(s); waiting for the second QR")
	}
	return savedNow, nil
}

// FlushSingles writes header-only rows for incomplete keys using the
// best-available single payload. Used by the --allow-single fallback at end of
// input, when the second QR never decoded (or was a bare continuation marker).
func (s *Session) FlushSingles(ctx context.Context) int {
	savedNow := 0
	for _, key := range s.stash.Keys() {
		if _, dup := s.savedKeys[key]; dup {
			s.stash.Remove(key)
			continue
		}
		qrA, qrB, ok := s.stash.PickBestForSingle(key)
		if !ok {
			continue
		}
		inv, err := einvoice.ParseBestEffort(qrA, qrB)
		if err != nil {
			s.log.Warn().Err(err).Str("key", einvoice.MaskKey(key)).Msg("Header-only save failed")
			continue
		}
		if err := s.save(ctx, inv, qrA, qrB, key); err != nil {
			s.log.Warn().Err(err).Str("key", einvoice.MaskKey(key)).Msg("Header-only save failed")
			continue
		}
		s.log.Info().Str("key", einvoice.MaskKey(key)).Msg("Saved header-only invoice")
		savedNow++
		if s.Done() {
			break
		}
	}
	return savedNow
}

// save runs the optional enrichment stages and appends the row to every sink.
func (s *Session) save(ctx context.Context, inv *models.Invoice, qrA, qrB, key string) error {
	if s.opts.Enricher != nil {
		inv, _ = s.opts.Enricher.Enrich(ctx, inv, qrA, qrB)
	}
	if s.opts.Classifier != nil {
		if category, err := s.opts.Classifier.Categorize(ctx, inv); err != nil {
			s.log.Warn().Err(err).Msg("Category classification failed; leaving empty")
		} else {
			inv.Category = category
		}
	}

	row := inv.Row()
	for _, sink := range s.opts.Sinks {
		if err := sink.Append(ctx, row); err != nil {
			return err
		}
	}

	s.saved++
	s.savedKeys[key] = struct{}{}
	s.stash.Remove(key)
	if s.currentKey == key {
		s.currentKey = ""
	}
	s.log.Info().
		Str("key", einvoice.MaskKey(key)).
		Int("count", s.saved).
		Msg("Saved invoice")
	return nil
}

// LogDecodeSummary logs privacy-safe decode diagnostics: lengths, colon
// counts, masked keys, and a short content hash. Raw payloads (which may name
// purchased items) are never logged.
func (s *Session) LogDecodeSummary(texts []string) {
	deduped := einvoice.DedupeKeepOrder(texts)
	s.log.Info().Int("decoded_texts", len(deduped)).Msg("Decode summary")
	for i, t := range deduped {
		if i >= 8 {
			break
		}
		sum := sha256.Sum256([]byte(t))
		key := "<none>"
		if k := einvoice.KeyFromPayload(t); k != "" {
			key = einvoice.MaskKey(k)
		}
		s.log.Info().
			Int("hit", i).
			Int("len", len([]rune(t))).
			Int("trim_len", len([]rune(strings.TrimSpace(t)))).
			Int("colons", strings.Count(t, ":")).
			Str("key", key).
			Str("sha", hex.EncodeToString(sum[:])[:10]).
			Msg("Decoded payload")
	}
}

func keysSeen(texts []string) []string {
	var keys []string
	for _, t := range einvoice.DedupeKeepOrder(texts) {
		if k := einvoice.KeyFromPayload(t); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func allSame(keys []string) bool {
	for _, k := range keys[1:] {
		if k != keys[0] {
			return false
		}
	}
	return len(keys) > 0
}
