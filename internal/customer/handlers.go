package customer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/gateway"
)

type customerStore interface {
	SearchCustomers(ctx context.Context, f gateway.CustomerFilter) ([]gateway.Customer, error)
	CreateCustomer(ctx context.Context, draft gateway.CustomerDraft) (gateway.Customer, error)
}

// Handler proxies customer search and registration to the store. Customers
// are read-mostly here: the billing core only ever attaches one to a bill.
type Handler struct {
	store    customerStore
	validate *validator.Validate
	maxLimit int
}

// HandlerConfig groups Handler dependencies.
type HandlerConfig struct {
	Store    customerStore
	Validate *validator.Validate
	MaxLimit int
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Validate == nil {
		cfg.Validate = validator.New()
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	return &Handler{store: cfg.Store, validate: cfg.Validate, maxLimit: cfg.MaxLimit}
}

// Search handles GET /api/v1/customers?search=&email=&phone=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "customer store not configured", nil)
		return
	}
	q := r.URL.Query()
	filter := gateway.CustomerFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Email:  strings.TrimSpace(q.Get("email")),
		Phone:  strings.TrimSpace(q.Get("phone")),
		Limit:  common.ParseLimit(r, 20, h.maxLimit),
	}
	customers, err := h.store.SearchCustomers(r.Context(), filter)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	if customers == nil {
		customers = []gateway.Customer{}
	}
	common.JSONData(w, http.StatusOK, customers)
}

// Create handles POST /api/v1/customers.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "customer store not configured", nil)
		return
	}
	var draft gateway.CustomerDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON payload", nil)
		return
	}
	draft.Name = strings.TrimSpace(draft.Name)
	draft.Email = strings.TrimSpace(draft.Email)
	draft.Phone = strings.TrimSpace(draft.Phone)
	if err := h.validate.Struct(draft); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid customer payload", validationDetails(err))
		return
	}
	created, err := h.store.CreateCustomer(r.Context(), draft)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, created)
}

func validationDetails(err error) any {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return details
}
