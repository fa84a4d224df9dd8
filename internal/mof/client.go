// Package mof queries the Ministry of Finance e-invoice platform to enrich
// locally parsed invoices with seller names and authoritative item details.
//
// The platform has multiple API generations with different parameter schemas
// and loosely specified responses, so everything here is deliberately
// best-effort: a handful of known request shapes are tried in order, the
// response is parsed as JSON whatever its declared content type, and any
// failure leaves the locally parsed invoice unchanged.
package mof

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"twinvoice/internal/einvoice"
	"twinvoice/internal/logger"
	"twinvoice/pkg/models"
)

// ErrEmptyEndpoint is returned by NewClient when no endpoint is configured.
var ErrEmptyEndpoint = errors.New("MOF endpoint is empty")

// Defaults for the query API generation this client targets.
const (
	DefaultVersion = "0.5"
	DefaultAction  = "qryInvDetail"
	DefaultTimeout = 15 * time.Second
)

// Config holds the MOF query credentials and endpoint.
type Config struct {
	Endpoint string
	AppID    string
	APIKey   string

	// Version and Action default to DefaultVersion / DefaultAction.
	Version string
	Action  string

	// Timeout is the per-request HTTP timeout. Default: DefaultTimeout.
	Timeout time.Duration
}

// Client posts invoice-detail queries to the MOF platform.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a MOF enrichment client.
func NewClient(cfg Config) (*Client, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Action == "" {
		cfg.Action = DefaultAction
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.WithComponent("mof"),
	}, nil
}

// Enrich tries to fill seller name and item details from the MOF platform.
//
// Candidate request shapes are tried in order; a transport error, non-2xx
// status, or unparseable body skips to the next candidate. The first
// parseable JSON response terminates the loop even when it carries an
// explicit upstream error code (re-posting under another shape would not
// change an authoritative "not found"/"wrong query" answer).
//
// Never fails: on any failure the returned invoice is inv unchanged and the
// raw response map holds whatever was last decoded (possibly empty).
func (c *Client) Enrich(ctx context.Context, inv *models.Invoice, qrA, qrB string) (*models.Invoice, map[string]any) {
	lastJSON := map[string]any{}

	for i, payload := range c.candidatePayloads(inv, qrA, qrB) {
		data, err := c.post(ctx, payload)
		if err != nil {
			c.log.Debug().Err(err).Int("candidate", i).Msg("MOF candidate request failed")
			continue
		}
		lastJSON = data

		code := stringify(data["code"])
		msg := stringify(data["msg"])
		isOK := (code == "200" || code == "0" || code == "") && !strings.Contains(msg, "錯誤")

		detail := firstMap(data, "details", "detail", "result", "data")
		if detail == nil && isOK {
			detail = data
		}
		if detail == nil {
			// Reachable server, explicit error or unknown shape: stop here.
			c.log.Debug().Str("code", code).Str("msg", msg).Msg("MOF response carried no detail object")
			return inv, lastJSON
		}

		enriched := *inv
		if name := sellerNameFrom(detail); name != "" {
			enriched.SellerName = name
		}
		if items := itemsFrom(detail); len(items) > 0 {
			enriched.Items = items
		}
		c.log.Info().
			Str("invoice_number", enriched.InvoiceNumber).
			Bool("seller_name", enriched.SellerName != "").
			Int("items", len(enriched.Items)).
			Msg("MOF enrichment applied")
		return &enriched, lastJSON
	}

	return inv, lastJSON
}

// candidatePayloads builds the request shapes to try, in order. Some API
// generations expect ROC dates, some Gregorian, and the last shape passes the
// raw QR strings through untouched.
func (c *Client) candidatePayloads(inv *models.Invoice, qrA, qrB string) []url.Values {
	rocDate := einvoice.TimeToROCDate(inv.InvoiceDate)
	gregDate := inv.InvoiceDate.Format("20060102")

	base := func() url.Values {
		return url.Values{
			"version": {c.cfg.Version},
			"action":  {c.cfg.Action},
			"appID":   {c.cfg.AppID},
			"apiKey":  {c.cfg.APIKey},
		}
	}

	byNumber := func(dateField, dateValue, numberField string) url.Values {
		v := base()
		v.Set(numberField, inv.InvoiceNumber)
		v.Set(dateField, dateValue)
		v.Set("randomNumber", inv.RandomNumber)
		v.Set("sellerID", inv.SellerIdentifier)
		v.Set("totalAmount", strconv.FormatInt(inv.TotalAmount, 10))
		return v
	}

	rawQR := base()
	rawQR.Set("qrcode1", qrA)
	rawQR.Set("qrcode2", qrB)

	return []url.Values{
		byNumber("invDate", rocDate, "invNum"),
		byNumber("invoiceDate", rocDate, "invoiceNumber"),
		byNumber("invoiceDate", gregDate, "invoiceNumber"),
		rawQR,
	}
}

// post sends one form-encoded candidate and decodes the body as JSON
// regardless of the declared content type.
func (c *Client) post(ctx context.Context, payload url.Values) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mof: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("mof: response is not JSON: %w", err)
	}
	if m, ok := decoded.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"_raw": decoded}, nil
}

// sellerNameFrom extracts the seller name under any of its known aliases,
// including the nested {"seller": {"name": ...}} shape.
func sellerNameFrom(detail map[string]any) string {
	if name := firstString(detail, "sellerName", "seller_name", "SellerName"); name != "" {
		return name
	}
	if seller := firstMap(detail, "seller"); seller != nil {
		return firstString(seller, "name")
	}
	return ""
}

// itemsFrom extracts the item array under any of its known aliases, dropping
// entries with missing names or non-numeric quantity/price.
func itemsFrom(detail map[string]any) []models.InvoiceItem {
	raw := firstList(detail, "items", "details", "invDetails")
	if raw == nil {
		return nil
	}

	var items []models.InvoiceItem
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(firstString(m, "name", "description", "itemName"))
		qtyS := strings.TrimSpace(stringify(firstValue(m, "quantity", "qty", "amount")))
		unitS := strings.TrimSpace(stringify(firstValue(m, "unitPrice", "price", "unit_price")))
		if name == "" || !looksLikeNumber(qtyS) || !looksLikeNumber(unitS) {
			continue
		}
		qty, errQ := decimal.NewFromString(qtyS)
		unit, errU := decimal.NewFromString(unitS)
		if errQ != nil || errU != nil {
			continue
		}
		items = append(items, models.InvoiceItem{Name: name, UnitPrice: unit, Quantity: qty})
	}
	return items
}

var numberRE = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)

func looksLikeNumber(s string) bool {
	return numberRE.MatchString(s)
}

// The response shape is unknown territory; the helpers below walk it with an
// explicit alias list per logical field instead of dynamic attribute access.

func firstValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstMap(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok {
			return v
		}
	}
	return nil
}

func firstList(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if v, ok := m[k].([]any); ok {
			return v
		}
	}
	return nil
}

// stringify renders a decoded JSON scalar the way its wire form read, so
// numeric codes like 904 compare equal to "904".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
