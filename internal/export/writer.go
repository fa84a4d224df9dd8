// Package export appends parsed invoices to a local CSV/TSV ledger file.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"twinvoice/pkg/models"
)

// Spreadsheet apps (notably Excel) need the BOM to sniff UTF-8 for the
// Chinese headers and item names.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Writer appends ledger rows to a delimited text file, writing the BOM and
// the header row once when the file is new or empty.
type Writer struct {
	path  string
	comma rune
}

// NewWriter creates a ledger writer. format is "csv" or "tsv".
func NewWriter(path, format string) (*Writer, error) {
	comma := ','
	switch format {
	case "csv", "":
	case "tsv":
		comma = '\t'
	default:
		return nil, fmt.Errorf("export: unknown format %q (want csv or tsv)", format)
	}
	return &Writer{path: path, comma: comma}, nil
}

// Path returns the ledger file path.
func (w *Writer) Path() string { return w.path }

// Append writes one row, creating parent directories and the header as needed.
func (w *Writer) Append(_ context.Context, row []string) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("export: create output dir: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("export: open %s: %w", w.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("export: stat %s: %w", w.path, err)
	}

	cw := csv.NewWriter(f)
	cw.Comma = w.comma

	if info.Size() == 0 {
		if _, err := f.Write(utf8BOM); err != nil {
			return fmt.Errorf("export: write BOM: %w", err)
		}
		if err := cw.Write(models.RowHeaders); err != nil {
			return fmt.Errorf("export: write header: %w", err)
		}
	}

	if err := cw.Write(row); err != nil {
		return fmt.Errorf("export: write row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}
