package search

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/noah-isme/backend-kasir/internal/gateway"
	"github.com/noah-isme/backend-kasir/internal/obs"
)

// Mode selects how a search term is interpreted. The mode is always an
// explicit caller choice; the dispatcher never guesses.
type Mode string

const (
	// ModeText issues a free-text product filter.
	ModeText Mode = "text"
	// ModeBarcode issues an exact-match lookup on the barcode field.
	ModeBarcode Mode = "barcode"
	// ModePLU issues an exact-match lookup on the PLU code field.
	ModePLU Mode = "plu"
)

// ParseMode validates a raw mode string, defaulting empty input to text.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeText:
		return ModeText, true
	case ModeBarcode:
		return ModeBarcode, true
	case ModePLU:
		return ModePLU, true
	default:
		return "", false
	}
}

// ErrSuperseded marks a response that arrived after a newer dispatch was
// issued. Its results must be discarded, never applied to visible state.
var ErrSuperseded = errors.New("search: response superseded by newer query")

// ProductSearcher is the slice of the gateway the dispatcher needs.
type ProductSearcher interface {
	ListProducts(ctx context.Context, f gateway.ProductFilter) ([]gateway.Product, error)
}

// Dispatcher issues product queries for a search term under an explicit
// mode. Each dispatch takes a generation token; when a newer dispatch starts
// before an older one completes, the older result is dropped
// (last-query-wins, not first-response-wins).
type Dispatcher struct {
	Products ProductSearcher
	Limit    int

	gen atomic.Uint64
}

// Dispatch runs the query for the given mode and term. An empty term yields
// no results and no gateway call. Superseded dispatches return
// ErrSuperseded.
func (d *Dispatcher) Dispatch(ctx context.Context, mode Mode, term string) ([]gateway.Product, error) {
	if d == nil || d.Products == nil {
		return nil, errors.New("search: product searcher not configured")
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}

	limit := d.Limit
	if limit <= 0 {
		limit = 20
	}
	var filter gateway.ProductFilter
	switch mode {
	case ModeText:
		filter = gateway.ProductFilter{Search: term, Limit: limit}
	case ModeBarcode:
		filter = gateway.ProductFilter{Barcode: term, Limit: 1}
	case ModePLU:
		filter = gateway.ProductFilter{PLU: term, Limit: 1}
	default:
		return nil, errors.New("search: unknown mode " + string(mode))
	}

	token := d.gen.Add(1)
	products, err := d.Products.ListProducts(ctx, filter)
	if d.gen.Load() != token {
		countDispatch(mode, "superseded")
		return nil, ErrSuperseded
	}
	if err != nil {
		countDispatch(mode, "error")
		return nil, err
	}
	countDispatch(mode, "ok")
	return products, nil
}

func countDispatch(mode Mode, result string) {
	if obs.SearchDispatchTotal != nil {
		obs.SearchDispatchTotal.WithLabelValues(string(mode), result).Inc()
	}
}
