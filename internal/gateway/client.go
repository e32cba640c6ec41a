package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/resilience"
)

// TokenSource supplies the bearer credential attached to upstream requests.
// A missing credential is not an error; requests proceed unauthenticated and
// the store decides whether to reject them.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// NoToken is a TokenSource that never yields a credential.
type NoToken struct{}

// Token implements TokenSource.
func (NoToken) Token(context.Context) (string, bool) { return "", false }

// Client talks to the external catalog/customer/invoice store. Every failure
// surfaces as a *common.AppError so callers branch on one shape: transport
// problems carry CodeUpstream, rejected credentials CodeUnauthorized, and
// undecodable bodies CodeBadResponse.
type Client struct {
	BaseURL string
	HTTP    resilience.HTTPClient
	Tokens  TokenSource
	Logger  *zerolog.Logger
}

// ListProducts fetches products matching the filter. Barcode and PLU filters
// are exact-match lookups on the corresponding catalog fields.
func (c *Client) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	q := url.Values{}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if s := strings.TrimSpace(f.Barcode); s != "" {
		q.Set("barcode", s)
	}
	if s := strings.TrimSpace(f.PLU); s != "" {
		q.Set("plu", s)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	var out []Product
	if err := c.do(ctx, http.MethodGet, "/api/v1/products", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct fetches a single product by id.
func (c *Client) GetProduct(ctx context.Context, id string) (Product, error) {
	var out Product
	err := c.do(ctx, http.MethodGet, "/api/v1/products/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// SearchCustomers fetches customers matching the filter.
func (c *Client) SearchCustomers(ctx context.Context, f CustomerFilter) ([]Customer, error) {
	q := url.Values{}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if s := strings.TrimSpace(f.Email); s != "" {
		q.Set("email", s)
	}
	if s := strings.TrimSpace(f.Phone); s != "" {
		q.Set("phone", s)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	var out []Customer
	if err := c.do(ctx, http.MethodGet, "/api/v1/customers", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCustomer creates a customer record in the store.
func (c *Client) CreateCustomer(ctx context.Context, draft CustomerDraft) (Customer, error) {
	var out Customer
	err := c.do(ctx, http.MethodPost, "/api/v1/customers", nil, draft, &out)
	return out, err
}

// CreateInvoice submits a finalised bill. The response includes the generated
// invoice identifier.
func (c *Client) CreateInvoice(ctx context.Context, draft InvoiceDraft) (Invoice, error) {
	var out Invoice
	err := c.do(ctx, http.MethodPost, "/api/v1/invoices", nil, draft, &out)
	return out, err
}

// ListInvoices fetches invoices matching the filter.
func (c *Client) ListInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error) {
	q := url.Values{}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if s := strings.TrimSpace(f.CreatedBy); s != "" {
		q.Set("createdBy", s)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	var out []Invoice
	if err := c.do(ctx, http.MethodGet, "/api/v1/invoices", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetInvoice fetches a single invoice by id.
func (c *Client) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	var out Invoice
	err := c.do(ctx, http.MethodGet, "/api/v1/invoices/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// Ping probes the store's health endpoint. Used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

type errorEnvelope struct {
	Error *common.ErrorBody `json:"error"`
}

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil || strings.TrimSpace(c.BaseURL) == "" {
		return common.NewAppError(common.CodeInternal, "store gateway not configured", http.StatusInternalServerError, nil)
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return common.NewAppError(common.CodeInternal, "encode request payload", http.StatusInternalServerError, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return common.NewAppError(common.CodeInternal, "build request", http.StatusInternalServerError, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Tokens != nil {
		if token, ok := c.Tokens.Token(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return common.NewAppError(common.CodeUpstream, "store unreachable", http.StatusBadGateway, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.NewAppError(common.CodeUpstream, "read store response", http.StatusBadGateway, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return common.NewAppError(common.CodeUnauthorized, "store rejected credentials", http.StatusUnauthorized, nil)
	}
	if resp.StatusCode >= 400 {
		var envelope errorEnvelope
		if jsonErr := json.Unmarshal(raw, &envelope); jsonErr == nil && envelope.Error != nil && envelope.Error.Message != "" {
			code := envelope.Error.Code
			if code == "" {
				code = common.CodeUpstream
			}
			return common.NewAppError(code, envelope.Error.Message, resp.StatusCode, nil)
		}
		return common.NewAppError(common.CodeUpstream, fmt.Sprintf("store returned %s", resp.Status), http.StatusBadGateway, nil)
	}

	if out == nil {
		return nil
	}
	var envelope dataEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Data == nil {
		c.logDecodeFailure(method, path, resp.StatusCode, raw, err)
		return common.NewAppError(common.CodeBadResponse, "store returned an unreadable response", http.StatusBadGateway, err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		c.logDecodeFailure(method, path, resp.StatusCode, raw, err)
		return common.NewAppError(common.CodeBadResponse, "store returned an unreadable response", http.StatusBadGateway, err)
	}
	return nil
}

// Decode failures look like transport errors to the user but are logged with
// the offending body for diagnosis.
func (c *Client) logDecodeFailure(method, path string, status int, raw []byte, err error) {
	if c.Logger == nil {
		return
	}
	const maxSample = 2048
	sample := raw
	if len(sample) > maxSample {
		sample = sample[:maxSample]
	}
	c.Logger.Error().
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Err(err).
		Bytes("body", sample).
		Msg("decode store response")
}
