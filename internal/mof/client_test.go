package mof

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"twinvoice/pkg/models"
)

func testInvoice() *models.Invoice {
	return &models.Invoice{
		InvoiceNumber:    "AB12345678",
		InvoiceDate:      time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC),
		RandomNumber:     "1A2b",
		TotalAmount:      100,
		BuyerIdentifier:  "00000000",
		SellerIdentifier: "12345678",
		InvoiceType:      models.DefaultInvoiceType,
	}
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := NewClient(Config{Endpoint: endpoint, AppID: "app", APIKey: "key"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(Config{}); err != ErrEmptyEndpoint {
		t.Errorf("NewClient(empty) error = %v, want ErrEmptyEndpoint", err)
	}
}

func TestEnrichAllCandidatesUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	client := newTestClient(t, endpoint)
	inv := testInvoice()
	got, raw := client.Enrich(context.Background(), inv, "qrA", "qrB")

	if got != inv {
		t.Error("unreachable server should return the input invoice unchanged")
	}
	if len(raw) != 0 {
		t.Errorf("raw = %v, want empty map", raw)
	}
}

func TestEnrichStopsAtFirstServerAnswer(t *testing.T) {
	// An authoritative upstream error terminates the candidate loop: retrying
	// the same invoice under another parameter shape cannot change the answer.
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code": 904, "msg": "錯誤的查詢種類"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	inv := testInvoice()
	got, raw := client.Enrich(context.Background(), inv, "qrA", "qrB")

	if requests != 1 {
		t.Errorf("requests = %d, want 1", requests)
	}
	if got != inv {
		t.Error("error answer should leave the invoice unchanged")
	}
	if code := stringify(raw["code"]); code != "904" {
		t.Errorf("raw code = %q, want 904", code)
	}
}

func TestEnrichRetriesNextCandidateAfterTransportError(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{
			"code": "200",
			"msg": "",
			"details": {
				"sellerName": "Test Shop",
				"items": [
					{"name": "Tea", "quantity": "1", "unitPrice": "50"},
					{"name": "Cake", "quantity": 2, "unitPrice": 25},
					{"name": "", "quantity": "1", "unitPrice": "1"},
					{"name": "Bad", "quantity": "x", "unitPrice": "1"}
				]
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	inv := testInvoice()
	got, _ := client.Enrich(context.Background(), inv, "qrA", "qrB")

	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
	if got.SellerName != "Test Shop" {
		t.Errorf("SellerName = %q, want Test Shop", got.SellerName)
	}
	if len(got.Items) != 2 || got.Items[0].Name != "Tea" || got.Items[1].Name != "Cake" {
		t.Errorf("Items = %+v, want Tea and Cake only", got.Items)
	}
	if got.Items[1].Quantity.String() != "2" || got.Items[1].UnitPrice.String() != "25" {
		t.Errorf("numeric JSON fields not applied: %+v", got.Items[1])
	}
	if inv.SellerName != "" || len(inv.Items) != 0 {
		t.Error("enrichment mutated the input invoice")
	}
}

func TestEnrichParsesJSONDespiteContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`{"code": "200", "msg": "", "details": {"seller": {"name": "巷口商行"}}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	got, _ := client.Enrich(context.Background(), testInvoice(), "qrA", "qrB")

	if got.SellerName != "巷口商行" {
		t.Errorf("SellerName = %q, want 巷口商行", got.SellerName)
	}
}

func TestCandidatePayloadShapes(t *testing.T) {
	client := newTestClient(t, "http://example.invalid")
	payloads := client.candidatePayloads(testInvoice(), "rawA", "rawB")

	if len(payloads) != 4 {
		t.Fatalf("candidates = %d, want 4", len(payloads))
	}
	if got := payloads[0].Get("invDate"); got != "1140103" {
		t.Errorf("candidate 0 invDate = %q, want ROC 1140103", got)
	}
	if got := payloads[1].Get("invoiceDate"); got != "1140103" {
		t.Errorf("candidate 1 invoiceDate = %q, want ROC 1140103", got)
	}
	if got := payloads[2].Get("invoiceDate"); got != "20250103" {
		t.Errorf("candidate 2 invoiceDate = %q, want Gregorian 20250103", got)
	}
	if payloads[3].Get("qrcode1") != "rawA" || payloads[3].Get("qrcode2") != "rawB" {
		t.Errorf("candidate 3 = %v, want raw QR passthrough", payloads[3])
	}
	for i, p := range payloads {
		if p.Get("version") != DefaultVersion || p.Get("action") != DefaultAction {
			t.Errorf("candidate %d missing version/action: %v", i, p)
		}
	}
}
