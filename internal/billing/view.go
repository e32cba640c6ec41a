package billing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/gateway"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// TabView is the read-only projection of a tab rendered to clients.
type TabView struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Items          []cart.LineItem   `json:"items"`
	ItemCount      int               `json:"itemCount"`
	DiscountAmount decimal.Decimal   `json:"discountAmount"`
	TaxPercent     decimal.Decimal   `json:"taxPercent"`
	Customer       *gateway.Customer `json:"customer,omitempty"`
	Unsaved        bool              `json:"hasUnsavedChanges"`
}

// TotalsView is the rounded bill summary rendered to clients.
type TotalsView struct {
	SubTotal decimal.Decimal `json:"subTotal"`
	Discount decimal.Decimal `json:"discountAmount"`
	Tax      decimal.Decimal `json:"taxAmount"`
	Total    decimal.Decimal `json:"total"`
}

// Snapshot is the full session state for one terminal.
type Snapshot struct {
	ActiveTabID string         `json:"activeTabId"`
	Tabs        []TabView      `json:"tabs"`
	Held        []HeldBillInfo `json:"heldBills"`
	Totals      TotalsView     `json:"totals"`
}

// Snapshot renders the current session state. Carts are copied; the snapshot
// never aliases live tab state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ActiveTabID: s.activeID,
		Tabs:        make([]TabView, 0, len(s.tabs)),
		Held:        make([]HeldBillInfo, 0, len(s.heldOrder)),
	}
	for _, t := range s.tabs {
		snap.Tabs = append(snap.Tabs, TabView{
			ID:             t.ID,
			Name:           t.Name,
			Items:          t.Cart.Items(),
			ItemCount:      t.Cart.TotalItemCount(),
			DiscountAmount: t.Discount.DiscountAmount,
			TaxPercent:     t.Discount.TaxPercent,
			Customer:       t.Customer,
			Unsaved:        t.Unsaved,
		})
	}
	for _, id := range s.heldOrder {
		snap.Held = append(snap.Held, s.held[id].info)
	}
	active := s.activeLocked()
	summary := pricing.Compute(active.Cart.Lines(), active.Discount).Rounded()
	snap.Totals = TotalsView{
		SubTotal: summary.Subtotal,
		Discount: summary.Discount,
		Tax:      summary.Tax,
		Total:    summary.Total,
	}
	return snap
}
