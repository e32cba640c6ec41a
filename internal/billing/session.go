package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/gateway"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// ErrNothingToBill is returned when invoice creation is attempted on a tab
// whose computed total is not positive. No gateway call is issued.
var ErrNothingToBill = errors.New("billing: nothing to bill")

// InvoiceCreator is the slice of the gateway the session needs to finalise a
// bill.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, draft gateway.InvoiceDraft) (gateway.Invoice, error)
}

// Tab is one independent billing session unit: a cart, a discount
// configuration, and an optional customer selection.
type Tab struct {
	ID       string
	Name     string
	Cart     *cart.Cart
	Discount pricing.DiscountConfig
	Customer *gateway.Customer
	Unsaved  bool
}

// HeldBillInfo is a lightweight resumption pointer for a tab set aside
// without being finalised.
type HeldBillInfo struct {
	ID       string    `json:"id"`
	Items    int       `json:"items"`
	Customer string    `json:"customer"`
	HeldAt   time.Time `json:"heldAt"`
}

type heldEntry struct {
	info HeldBillInfo
	tab  *Tab
}

// Session manages the tabs and held bills of one POS terminal. The terminal's
// interactions are discrete user actions; the mutex serialises them so the
// state machine always observes one mutation at a time. A session always
// holds at least one tab.
type Session struct {
	mu        sync.Mutex
	tabs      []*Tab
	activeID  string
	held      map[string]heldEntry
	heldOrder []string
	seq       int

	store      InvoiceCreator
	events     *events.Bus
	defaultTax decimal.Decimal
	now        func() time.Time
	logger     *zerolog.Logger
}

// SessionConfig groups Session dependencies.
type SessionConfig struct {
	Store      InvoiceCreator
	Events     *events.Bus
	DefaultTax decimal.Decimal
	Now        func() time.Time
	Logger     *zerolog.Logger
}

// NewSession returns a session with a single fresh tab selected.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		held:       make(map[string]heldEntry),
		store:      cfg.Store,
		events:     cfg.Events,
		defaultTax: cfg.DefaultTax,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.mu.Lock()
	s.newTabLocked()
	s.mu.Unlock()
	return s
}

func (s *Session) newTabLocked() *Tab {
	s.seq++
	tab := &Tab{
		ID:       uuid.NewString(),
		Name:     fmt.Sprintf("Tab %d", s.seq),
		Cart:     cart.New(),
		Discount: pricing.DiscountConfig{DiscountAmount: decimal.Zero, TaxPercent: s.defaultTax},
	}
	s.tabs = append(s.tabs, tab)
	s.activeID = tab.ID
	return tab
}

func (s *Session) activeLocked() *Tab {
	for _, t := range s.tabs {
		if t.ID == s.activeID {
			return t
		}
	}
	// The invariant guarantees at least one tab; fall back defensively.
	if len(s.tabs) > 0 {
		s.activeID = s.tabs[0].ID
		return s.tabs[0]
	}
	return s.newTabLocked()
}

func (s *Session) indexLocked(id string) int {
	for i, t := range s.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// NewTab creates an empty tab and makes it active.
func (s *Session) NewTab() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newTabLocked().ID
}

// SelectTab switches the active tab. Unknown ids are a no-op.
func (s *Session) SelectTab(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) >= 0 {
		s.activeID = id
	}
}

// CloseTab removes a tab. Closing the last remaining tab is refused so the
// session always keeps at least one. When the closed tab was active an
// adjacent tab becomes active: the one now occupying the closed slot, or the
// previous one at the end of the strip.
func (s *Session) CloseTab(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tabs) <= 1 {
		return false
	}
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	wasActive := s.tabs[i].ID == s.activeID
	s.tabs = append(s.tabs[:i], s.tabs[i+1:]...)
	if wasActive {
		if i >= len(s.tabs) {
			i = len(s.tabs) - 1
		}
		s.activeID = s.tabs[i].ID
	}
	return true
}

// Hold snapshots the active tab and sets it aside, transferring exclusive
// ownership of its state to the held list. Valid only when the active cart
// has at least one item; otherwise a silent no-op. Another tab is promoted to
// active, or a fresh one is created when none remain.
func (s *Session) Hold() (HeldBillInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.activeLocked()
	if tab.Cart.TotalItemCount() == 0 {
		return HeldBillInfo{}, false
	}
	info := HeldBillInfo{
		ID:       tab.ID,
		Items:    tab.Cart.TotalItemCount(),
		Customer: customerLabel(tab.Customer),
		HeldAt:   s.now(),
	}
	i := s.indexLocked(tab.ID)
	s.tabs = append(s.tabs[:i], s.tabs[i+1:]...)
	s.held[info.ID] = heldEntry{info: info, tab: tab}
	s.heldOrder = append(s.heldOrder, info.ID)
	if len(s.tabs) == 0 {
		s.newTabLocked()
	} else {
		if i >= len(s.tabs) {
			i = len(s.tabs) - 1
		}
		s.activeID = s.tabs[i].ID
	}
	if obs.HeldBills != nil {
		obs.HeldBills.Inc()
	}
	return info, true
}

// Resume restores a held bill as the active tab and removes its snapshot.
// Unknown ids are a no-op.
func (s *Session) Resume(billID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.held[billID]
	if !ok {
		return false
	}
	delete(s.held, billID)
	for i, id := range s.heldOrder {
		if id == billID {
			s.heldOrder = append(s.heldOrder[:i], s.heldOrder[i+1:]...)
			break
		}
	}
	s.tabs = append(s.tabs, entry.tab)
	s.activeID = entry.tab.ID
	if obs.HeldBills != nil {
		obs.HeldBills.Dec()
	}
	return true
}

// HeldBills lists held-bill snapshots in hold order.
func (s *Session) HeldBills() []HeldBillInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HeldBillInfo, 0, len(s.heldOrder))
	for _, id := range s.heldOrder {
		out = append(out, s.held[id].info)
	}
	return out
}

// ClearHeld discards a held bill without resuming it.
func (s *Session) ClearHeld(billID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.held[billID]; !ok {
		return false
	}
	delete(s.held, billID)
	for i, id := range s.heldOrder {
		if id == billID {
			s.heldOrder = append(s.heldOrder[:i], s.heldOrder[i+1:]...)
			break
		}
	}
	if obs.HeldBills != nil {
		obs.HeldBills.Dec()
	}
	return true
}

// Clear resets the active tab's cart and discount configuration. Valid only
// when the cart has items; otherwise a silent no-op.
func (s *Session) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.activeLocked()
	if tab.Cart.TotalItemCount() == 0 {
		return false
	}
	s.resetLocked(tab)
	tab.Unsaved = true
	return true
}

func (s *Session) resetLocked(tab *Tab) {
	tab.Cart.Clear()
	tab.Discount = pricing.DiscountConfig{DiscountAmount: decimal.Zero, TaxPercent: s.defaultTax}
}

// AddProduct adds a product to the active cart.
func (s *Session) AddProduct(p cart.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.activeLocked()
	tab.Cart.Add(p)
	tab.Unsaved = true
}

// Increment raises a line quantity on the active cart, clamped at stock.
func (s *Session) Increment(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.activeLocked()
	tab.Cart.Increment(productID)
	tab.Unsaved = true
}

// Decrement lowers a line quantity on the active cart.
func (s *Session) Decrement(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.activeLocked()
	tab.Cart.Decrement(productID)
	tab.Unsaved = true
}

// RemoveItem drops a line from the active cart.
func (s *Session) RemoveItem(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.activeLocked()
	tab.Cart.Remove(productID)
	tab.Unsaved = true
}

// SetDiscount updates the active tab's flat discount amount.
func (s *Session) SetDiscount(amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.activeLocked()
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	tab.Discount.DiscountAmount = amount
	tab.Unsaved = true
}

// SetTax updates the active tab's tax percentage, clamped to [0, 100].
func (s *Session) SetTax(percent decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.activeLocked()
	if percent.IsNegative() {
		percent = decimal.Zero
	} else if percent.GreaterThan(decimal.NewFromInt(100)) {
		percent = decimal.NewFromInt(100)
	}
	tab.Discount.TaxPercent = percent
	tab.Unsaved = true
}

// SetCustomer selects a customer on the active tab; nil clears the selection.
func (s *Session) SetCustomer(c *gateway.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.activeLocked()
	tab.Customer = c
	tab.Unsaved = true
}

// Totals computes the active tab's bill summary.
func (s *Session) Totals() pricing.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.activeLocked()
	return pricing.Compute(tab.Cart.Lines(), tab.Discount)
}

// CreateInvoice finalises the active tab into an invoice. Refused without a
// gateway call when the computed total is not positive. On success the tab's
// cart and discount reset and the unsaved flag drops; on failure the state is
// untouched and the error propagates unchanged.
func (s *Session) CreateInvoice(ctx context.Context, salesman string) (gateway.Invoice, error) {
	s.mu.Lock()
	tab := s.activeLocked()
	summary := pricing.Compute(tab.Cart.Lines(), tab.Discount)
	if !summary.Total.IsPositive() {
		s.mu.Unlock()
		return gateway.Invoice{}, ErrNothingToBill
	}
	if s.store == nil {
		s.mu.Unlock()
		return gateway.Invoice{}, errors.New("billing: invoice store not configured")
	}
	draft := buildDraft(tab, summary, salesman)
	s.mu.Unlock()

	// The gateway call happens outside the session lock so a slow store
	// never freezes the other tabs of this terminal.
	invoice, err := s.store.CreateInvoice(ctx, draft)
	if err != nil {
		return gateway.Invoice{}, err
	}

	s.mu.Lock()
	if current := s.indexLocked(tab.ID); current >= 0 {
		s.resetLocked(tab)
		tab.Unsaved = false
	}
	s.mu.Unlock()

	if s.events != nil {
		payload := events.InvoiceCreated{
			InvoiceID: invoice.ID,
			Salesman:  salesman,
			Total:     summary.Total.Round(2).String(),
			Items:     len(draft.Items),
		}
		if err := s.events.Emit(ctx, events.TopicInvoiceCreated, payload); err != nil && s.logger != nil {
			s.logger.Error().Err(err).Str("invoice_id", invoice.ID).Msg("emit invoice event")
		}
	}
	return invoice, nil
}

func buildDraft(tab *Tab, summary pricing.Summary, salesman string) gateway.InvoiceDraft {
	rounded := summary.Rounded()
	items := tab.Cart.Items()
	draft := gateway.InvoiceDraft{
		Items:     make([]gateway.InvoiceItem, 0, len(items)),
		Amount:    gateway.InvoiceAmount{SubTotal: rounded.Subtotal, Tax: rounded.Tax, Total: rounded.Total},
		Discounts: []gateway.InvoiceDiscount{},
		Customer:  tab.Customer,
		Salesman:  salesman,
		Type:      "POS",
	}
	for _, it := range items {
		draft.Items = append(draft.Items, gateway.InvoiceItem{
			ID:       it.ID,
			Name:     it.Name,
			Price:    pricing.Round2(it.UnitPrice),
			Quantity: it.Qty,
		})
	}
	if rounded.Discount.IsPositive() {
		draft.Discounts = append(draft.Discounts, gateway.InvoiceDiscount{Name: "Discount", Amount: rounded.Discount})
	}
	return draft
}

func customerLabel(c *gateway.Customer) string {
	if c == nil {
		return "Walk-in"
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	if c.Phone != "" {
		return c.Phone
	}
	return c.ID
}
