package billing

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/gateway"
)

type invoiceBrowser interface {
	ListInvoices(ctx context.Context, f gateway.InvoiceFilter) ([]gateway.Invoice, error)
	GetInvoice(ctx context.Context, id string) (gateway.Invoice, error)
}

// InvoiceHandler proxies invoice browsing to the store. Finalised invoices
// live upstream only; nothing is duplicated locally.
type InvoiceHandler struct {
	store    invoiceBrowser
	maxLimit int
}

// NewInvoiceHandler constructs an InvoiceHandler.
func NewInvoiceHandler(store invoiceBrowser, maxLimit int) *InvoiceHandler {
	if maxLimit <= 0 {
		maxLimit = 50
	}
	return &InvoiceHandler{store: store, maxLimit: maxLimit}
}

// List handles GET /api/v1/invoices.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "invoice store not configured", nil)
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	filter := gateway.InvoiceFilter{
		Search:    strings.TrimSpace(q.Get("search")),
		CreatedBy: strings.TrimSpace(q.Get("createdBy")),
		Limit:     common.ParseLimit(r, 20, h.maxLimit),
		Page:      page,
	}
	invoices, err := h.store.ListInvoices(r.Context(), filter)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	if invoices == nil {
		invoices = []gateway.Invoice{}
	}
	common.JSONData(w, http.StatusOK, invoices)
}

// Get handles GET /api/v1/invoices/{id}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "invoice store not configured", nil)
		return
	}
	invoice, err := h.store.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, invoice)
}
