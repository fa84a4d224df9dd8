package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"twinvoice/pkg/models"
)

func testRow(invoiceNumber string) []string {
	return []string{
		"2025/01/03 00:00:00", "$100", invoiceNumber,
		"Milk : 2 * 30 = 60", "", "電子發票", "", "12345678",
	}
}

func TestNewWriterRejectsUnknownFormat(t *testing.T) {
	if _, err := NewWriter("out.csv", "xlsx"); err == nil {
		t.Error("NewWriter(xlsx) expected error")
	}
}

func TestAppendWritesBOMAndHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "invoices.csv")
	w, err := NewWriter(path, "csv")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := w.Append(ctx, testRow("AB-12345678")); err != nil {
		t.Fatal(err)
	}
	if err := w.Append(ctx, testRow("CD-98765432")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		t.Error("ledger file does not start with a UTF-8 BOM")
	}
	if bytes.Count(data, []byte{0xEF, 0xBB, 0xBF}) != 1 {
		t.Error("BOM written more than once")
	}

	records, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want header + 2 rows", len(records))
	}
	if !reflect.DeepEqual(records[0], models.RowHeaders) {
		t.Errorf("header = %v, want %v", records[0], models.RowHeaders)
	}
	if records[1][2] != "AB-12345678" || records[2][2] != "CD-98765432" {
		t.Errorf("rows = %v", records[1:])
	}
}

func TestAppendTSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoices.tsv")
	w, err := NewWriter(path, "tsv")
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(context.Background(), testRow("AB-12345678")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte{'\t'}) {
		t.Error("TSV output contains no tabs")
	}

	r := csv.NewReader(bytes.NewReader(data[3:]))
	r.Comma = '\t'
	records, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1][1] != "$100" {
		t.Errorf("records = %v", records)
	}
}
