package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/gateway"
	"github.com/noah-isme/backend-kasir/internal/obs"
)

type productLookup interface {
	GetProduct(ctx context.Context, id string) (gateway.Product, error)
}

// Handler exposes the per-terminal billing session over HTTP. Every route
// resolves the session from the X-Terminal-ID header and responds with the
// refreshed snapshot so the client never has to reconcile partial state.
type Handler struct {
	manager  *Manager
	products productLookup
}

// HandlerConfig groups Handler dependencies.
type HandlerConfig struct {
	Manager  *Manager
	Products productLookup
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{manager: cfg.Manager, products: cfg.Products}
}

func (h *Handler) session(r *http.Request) *Session {
	return h.manager.Session(common.TerminalID(r))
}

// Snapshot handles GET /api/v1/session.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	common.JSONData(w, http.StatusOK, h.session(r).Snapshot())
}

// NewTab handles POST /api/v1/session/tabs.
func (h *Handler) NewTab(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	s.NewTab()
	common.JSONData(w, http.StatusCreated, s.Snapshot())
}

// SelectTab handles POST /api/v1/session/tabs/{tabId}/select. Unknown tab ids
// leave the selection unchanged.
func (h *Handler) SelectTab(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	s.SelectTab(chi.URLParam(r, "tabId"))
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// CloseTab handles POST /api/v1/session/tabs/{tabId}/close.
func (h *Handler) CloseTab(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	if !s.CloseTab(chi.URLParam(r, "tabId")) {
		common.JSONError(w, http.StatusConflict, "TAB_NOT_CLOSED", "tab is unknown or the last one open", nil)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// HoldTab handles POST /api/v1/session/tabs/{tabId}/hold.
func (h *Handler) HoldTab(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	s.SelectTab(chi.URLParam(r, "tabId"))
	if _, ok := s.Hold(); !ok {
		common.JSONError(w, http.StatusConflict, "EMPTY_BILL", "an empty bill cannot be held", nil)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// ClearTab handles POST /api/v1/session/tabs/{tabId}/clear. Clearing an
// already-empty tab is a no-op, not an error.
func (h *Handler) ClearTab(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	s.SelectTab(chi.URLParam(r, "tabId"))
	s.Clear()
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// ResumeHeld handles POST /api/v1/session/held/{billId}/resume.
func (h *Handler) ResumeHeld(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	if !s.Resume(chi.URLParam(r, "billId")) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "held bill not found", nil)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// DiscardHeld handles DELETE /api/v1/session/held/{billId}.
func (h *Handler) DiscardHeld(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	if !s.ClearHeld(chi.URLParam(r, "billId")) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "held bill not found", nil)
		return
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// AddItem handles POST /api/v1/session/cart/items. The product is resolved
// against the store so the cart always carries current price and stock.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ProductID) == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "productId is required", nil)
		return
	}
	product, err := h.products.GetProduct(r.Context(), strings.TrimSpace(req.ProductID))
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	s := h.session(r)
	s.AddProduct(product.CartProduct())
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// IncrementItem handles POST /api/v1/session/cart/items/{productId}/increment.
func (h *Handler) IncrementItem(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	s.Increment(chi.URLParam(r, "productId"))
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// DecrementItem handles POST /api/v1/session/cart/items/{productId}/decrement.
func (h *Handler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	s.Decrement(chi.URLParam(r, "productId"))
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// RemoveItem handles DELETE /api/v1/session/cart/items/{productId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	s.RemoveItem(chi.URLParam(r, "productId"))
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// SetDiscount handles PUT /api/v1/session/discount. Absent fields keep their
// current values.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DiscountAmount *decimal.Decimal `json:"discountAmount"`
		TaxPercent     *decimal.Decimal `json:"taxPercent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON payload", nil)
		return
	}
	s := h.session(r)
	if req.DiscountAmount != nil {
		s.SetDiscount(*req.DiscountAmount)
	}
	if req.TaxPercent != nil {
		s.SetTax(*req.TaxPercent)
	}
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// SetCustomer handles PUT /api/v1/session/customer. A null body or empty id
// clears the selection.
func (h *Handler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var req *gateway.Customer
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON payload", nil)
		return
	}
	if req != nil && strings.TrimSpace(req.ID) == "" {
		req = nil
	}
	s := h.session(r)
	s.SetCustomer(req)
	common.JSONData(w, http.StatusOK, s.Snapshot())
}

// CreateInvoice handles POST /api/v1/session/invoice.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Salesman string `json:"salesman"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	salesman := strings.TrimSpace(req.Salesman)
	if salesman == "" {
		salesman, _ = common.UserID(r.Context())
	}

	s := h.session(r)
	invoice, err := s.CreateInvoice(r.Context(), salesman)
	if err != nil {
		if errors.Is(err, ErrNothingToBill) {
			if obs.InvoicesTotal != nil {
				obs.InvoicesTotal.WithLabelValues("refused").Inc()
			}
			common.JSONError(w, http.StatusConflict, "EMPTY_BILL", "nothing to bill on the active tab", nil)
			return
		}
		if obs.InvoicesTotal != nil {
			obs.InvoicesTotal.WithLabelValues("failed").Inc()
		}
		common.WriteAppError(w, err)
		return
	}
	if obs.InvoicesTotal != nil {
		obs.InvoicesTotal.WithLabelValues("created").Inc()
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data":    invoice,
		"session": s.Snapshot(),
	})
}
