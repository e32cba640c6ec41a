package catalog

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/gateway"
	"github.com/noah-isme/backend-kasir/internal/search"
)

// Handler exposes product browse and quick-search endpoints.
type Handler struct {
	service     *Service
	searchLimit int

	mu          sync.Mutex
	dispatchers map[string]*search.Dispatcher
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service     *Service
	SearchLimit int
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		service:     cfg.Service,
		searchLimit: cfg.SearchLimit,
		dispatchers: make(map[string]*search.Dispatcher),
	}
}

// Products handles GET /api/v1/products with filters and a result limit.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service not configured", nil)
		return
	}
	filter := filterFromQuery(r)
	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, products)
}

// ProductDetail handles GET /api/v1/products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service not configured", nil)
		return
	}
	id := chi.URLParam(r, "id")
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, product)
}

// Search handles GET /api/v1/products/search?q=&mode=. Each terminal gets its
// own dispatcher so a newer keystroke from the same terminal supersedes an
// older in-flight query without terminals interfering with each other.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service not configured", nil)
		return
	}
	mode, ok := search.ParseMode(r.URL.Query().Get("mode"))
	if !ok {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "unknown search mode", nil)
		return
	}
	term := strings.TrimSpace(r.URL.Query().Get("q"))

	d := h.dispatcherFor(common.TerminalID(r))
	products, err := d.Dispatch(r.Context(), mode, term)
	if err != nil {
		if errors.Is(err, search.ErrSuperseded) {
			common.JSONError(w, http.StatusConflict, "SUPERSEDED", "a newer search replaced this one", nil)
			return
		}
		common.WriteAppError(w, err)
		return
	}
	if products == nil {
		products = []gateway.Product{}
	}
	common.JSONData(w, http.StatusOK, products)
}

func (h *Handler) dispatcherFor(terminalID string) *search.Dispatcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.dispatchers[terminalID]; ok {
		return d
	}
	d := &search.Dispatcher{Products: h.service, Limit: h.searchLimit}
	h.dispatchers[terminalID] = d
	return d
}

func filterFromQuery(r *http.Request) gateway.ProductFilter {
	q := r.URL.Query()
	return gateway.ProductFilter{
		Search:  strings.TrimSpace(q.Get("search")),
		Barcode: strings.TrimSpace(q.Get("barcode")),
		PLU:     strings.TrimSpace(q.Get("plu")),
		Limit:   common.ParseLimit(r, 0, 0),
	}
}
