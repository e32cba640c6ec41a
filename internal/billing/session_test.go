package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/billing"
	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/gateway"
	"github.com/noah-isme/backend-kasir/internal/obs"
)

type fakeStore struct {
	calls  int
	drafts []gateway.InvoiceDraft
	err    error
}

func (f *fakeStore) CreateInvoice(_ context.Context, draft gateway.InvoiceDraft) (gateway.Invoice, error) {
	f.calls++
	f.drafts = append(f.drafts, draft)
	if f.err != nil {
		return gateway.Invoice{}, f.err
	}
	return gateway.Invoice{ID: "inv-1", Amount: draft.Amount}, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func newSession(store billing.InvoiceCreator) *billing.Session {
	return billing.NewSession(billing.SessionConfig{Store: store})
}

func product(id, price string) cart.Product {
	return cart.Product{ID: id, Name: "Product " + id, Price: dp(price)}
}

func TestSessionStartsWithOneTab(t *testing.T) {
	s := newSession(nil)
	snap := s.Snapshot()
	require.Len(t, snap.Tabs, 1)
	require.Equal(t, "Tab 1", snap.Tabs[0].Name)
	require.Equal(t, snap.Tabs[0].ID, snap.ActiveTabID)
	require.False(t, snap.Tabs[0].Unsaved)
}

func TestNewTabBecomesActiveWithoutTouchingOthers(t *testing.T) {
	s := newSession(nil)
	s.AddProduct(product("p1", "10"))
	first := s.Snapshot().ActiveTabID

	second := s.NewTab()
	snap := s.Snapshot()
	require.Equal(t, second, snap.ActiveTabID)
	require.Len(t, snap.Tabs, 2)
	require.Equal(t, 1, snap.Tabs[0].ItemCount, "existing tab untouched")
	require.Zero(t, snap.Tabs[1].ItemCount)

	s.SelectTab(first)
	require.Equal(t, first, s.Snapshot().ActiveTabID)
}

func TestCloseLastTabRefused(t *testing.T) {
	s := newSession(nil)
	id := s.Snapshot().ActiveTabID
	require.False(t, s.CloseTab(id))
	require.Len(t, s.Snapshot().Tabs, 1, "tab count invariant count >= 1")
}

func TestCloseActiveTabSelectsNeighbour(t *testing.T) {
	s := newSession(nil)
	first := s.Snapshot().ActiveTabID
	second := s.NewTab()
	third := s.NewTab()

	s.SelectTab(second)
	require.True(t, s.CloseTab(second))
	snap := s.Snapshot()
	require.Equal(t, third, snap.ActiveTabID, "tab that moved into the closed slot becomes active")

	require.True(t, s.CloseTab(third))
	require.Equal(t, first, s.Snapshot().ActiveTabID)
}

func TestCloseInactiveTabKeepsActive(t *testing.T) {
	s := newSession(nil)
	first := s.Snapshot().ActiveTabID
	second := s.NewTab()
	require.True(t, s.CloseTab(first))
	require.Equal(t, second, s.Snapshot().ActiveTabID)
}

func TestHoldRequiresItems(t *testing.T) {
	s := newSession(nil)
	_, ok := s.Hold()
	require.False(t, ok, "holding an empty cart is a silent no-op")
	require.Empty(t, s.HeldBills())
}

func TestHoldResumeRoundTrip(t *testing.T) {
	s := newSession(nil)
	s.AddProduct(product("p1", "19.99"))
	s.AddProduct(product("p1", "19.99"))
	s.AddProduct(product("p2", "5"))
	s.SetDiscount(d("3.50"))
	s.SetTax(d("11"))
	customer := &gateway.Customer{ID: "c1", Name: "Budi"}
	s.SetCustomer(customer)
	before := s.Snapshot()

	info, ok := s.Hold()
	require.True(t, ok)
	require.Equal(t, 3, info.Items)
	require.Equal(t, "Budi", info.Customer)

	// a fresh tab is promoted; held bill no longer in the strip
	mid := s.Snapshot()
	require.Len(t, mid.Tabs, 1)
	require.NotEqual(t, before.ActiveTabID, mid.ActiveTabID)
	require.Zero(t, mid.Tabs[0].ItemCount)
	require.Len(t, mid.Held, 1)

	require.True(t, s.Resume(info.ID))
	after := s.Snapshot()
	require.Empty(t, after.Held)
	require.Equal(t, before.ActiveTabID, after.ActiveTabID)

	var restored billing.TabView
	for _, tab := range after.Tabs {
		if tab.ID == before.ActiveTabID {
			restored = tab
		}
	}
	require.Equal(t, 3, restored.ItemCount)
	require.True(t, restored.DiscountAmount.Equal(d("3.50")))
	require.True(t, restored.TaxPercent.Equal(d("11")))
	require.Equal(t, "c1", restored.Customer.ID)
	require.Equal(t, before.Totals, after.Totals)
}

func TestResumeUnknownIDIsNoOp(t *testing.T) {
	s := newSession(nil)
	require.False(t, s.Resume("ghost"))
}

func TestHoldPromotesExistingNeighbour(t *testing.T) {
	s := newSession(nil)
	s.NewTab()
	s.AddProduct(product("p1", "10"))
	active := s.Snapshot().ActiveTabID

	_, ok := s.Hold()
	require.True(t, ok)
	snap := s.Snapshot()
	require.Len(t, snap.Tabs, 1)
	require.NotEqual(t, active, snap.ActiveTabID)
	require.Equal(t, "Tab 1", snap.Tabs[0].Name)
}

func TestClearResetsCartAndDiscountOnly(t *testing.T) {
	s := newSession(nil)
	require.False(t, s.Clear(), "clear on empty cart is a no-op")

	s.AddProduct(product("p1", "10"))
	s.SetDiscount(d("2"))
	s.SetTax(d("10"))
	s.SetCustomer(&gateway.Customer{ID: "c1"})

	require.True(t, s.Clear())
	snap := s.Snapshot()
	require.Zero(t, snap.Tabs[0].ItemCount)
	require.True(t, snap.Tabs[0].DiscountAmount.IsZero())
	require.True(t, snap.Tabs[0].TaxPercent.IsZero())
	require.NotNil(t, snap.Tabs[0].Customer, "clear keeps the customer selection")
}

func TestStockCeilingEnforcedThroughSession(t *testing.T) {
	s := newSession(nil)
	stock := 2
	s.AddProduct(cart.Product{ID: "p1", Price: dp("5"), Stock: &stock})
	s.Increment("p1")
	s.Increment("p1")
	require.Equal(t, 2, s.Snapshot().Tabs[0].ItemCount)
}

func TestCreateInvoiceRefusedAtZeroTotal(t *testing.T) {
	store := &fakeStore{}
	s := newSession(store)

	_, err := s.CreateInvoice(context.Background(), "user-1")
	require.ErrorIs(t, err, billing.ErrNothingToBill)
	require.Zero(t, store.calls, "no gateway call may be issued")

	// discount swallowing the whole subtotal also yields total 0
	s.AddProduct(product("p1", "50"))
	s.Increment("p1")
	s.Increment("p1")
	s.SetDiscount(d("200"))
	_, err = s.CreateInvoice(context.Background(), "user-1")
	require.ErrorIs(t, err, billing.ErrNothingToBill)
	require.Zero(t, store.calls)
}

func TestCreateInvoiceSubmitsAndClears(t *testing.T) {
	store := &fakeStore{}
	s := newSession(store)
	s.AddProduct(product("p1", "100"))
	s.Increment("p1")
	s.SetTax(d("18"))
	s.SetCustomer(&gateway.Customer{ID: "c1", Name: "Budi"})

	inv, err := s.CreateInvoice(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "inv-1", inv.ID)
	require.Equal(t, 1, store.calls)

	draft := store.drafts[0]
	require.Len(t, draft.Items, 1)
	require.Equal(t, 2, draft.Items[0].Quantity)
	require.True(t, draft.Amount.SubTotal.Equal(d("200")))
	require.True(t, draft.Amount.Tax.Equal(d("36")))
	require.True(t, draft.Amount.Total.Equal(d("236")))
	require.Empty(t, draft.Discounts)
	require.Equal(t, "user-1", draft.Salesman)
	require.Equal(t, "POS", draft.Type)
	require.Equal(t, "c1", draft.Customer.ID)

	snap := s.Snapshot()
	require.Zero(t, snap.Tabs[0].ItemCount, "implicit clear follows successful creation")
	require.True(t, snap.Tabs[0].DiscountAmount.IsZero())
	require.False(t, snap.Tabs[0].Unsaved)
}

func TestCreateInvoiceFailureLeavesStateUntouched(t *testing.T) {
	store := &fakeStore{err: context.DeadlineExceeded}
	s := newSession(store)
	s.AddProduct(product("p1", "10"))

	_, err := s.CreateInvoice(context.Background(), "user-1")
	require.Error(t, err)

	snap := s.Snapshot()
	require.Equal(t, 1, snap.Tabs[0].ItemCount)
	require.True(t, snap.Tabs[0].Unsaved)
}

func TestCreateInvoiceIncludesClampedDiscountLine(t *testing.T) {
	store := &fakeStore{}
	s := newSession(store)
	s.AddProduct(product("p1", "50"))
	s.SetDiscount(d("20"))

	_, err := s.CreateInvoice(context.Background(), "")
	require.NoError(t, err)
	draft := store.drafts[0]
	require.Len(t, draft.Discounts, 1)
	require.Equal(t, "Discount", draft.Discounts[0].Name)
	require.True(t, draft.Discounts[0].Amount.Equal(d("20")))
}

func TestCreateInvoiceEmitsEvent(t *testing.T) {
	var got []events.Event
	bus := &events.Bus{Notifiers: []events.Notifier{notifierFunc(func(_ context.Context, ev events.Event) error {
		got = append(got, ev)
		return nil
	})}}
	s := billing.NewSession(billing.SessionConfig{Store: &fakeStore{}, Events: bus})
	s.AddProduct(product("p1", "10"))

	_, err := s.CreateInvoice(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, events.TopicInvoiceCreated, got[0].Topic)
	payload, ok := got[0].Payload.(events.InvoiceCreated)
	require.True(t, ok)
	require.Equal(t, "inv-1", payload.InvoiceID)
	require.Equal(t, "10", payload.Total)
}

type notifierFunc func(context.Context, events.Event) error

func (f notifierFunc) Notify(ctx context.Context, ev events.Event) error { return f(ctx, ev) }

func TestUnsavedFlagLifecycle(t *testing.T) {
	s := newSession(&fakeStore{})
	require.False(t, s.Snapshot().Tabs[0].Unsaved)

	s.AddProduct(product("p1", "10"))
	require.True(t, s.Snapshot().Tabs[0].Unsaved)

	_, err := s.CreateInvoice(context.Background(), "")
	require.NoError(t, err)
	require.False(t, s.Snapshot().Tabs[0].Unsaved)

	s.SetTax(d("5"))
	require.True(t, s.Snapshot().Tabs[0].Unsaved)
}

func TestDefaultTaxAppliedToNewTabs(t *testing.T) {
	s := billing.NewSession(billing.SessionConfig{DefaultTax: d("11")})
	snap := s.Snapshot()
	require.True(t, snap.Tabs[0].TaxPercent.Equal(d("11")))
}

func TestHeldBillTimestampUsesClock(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	s := billing.NewSession(billing.SessionConfig{Now: func() time.Time { return fixed }})
	s.AddProduct(product("p1", "10"))
	info, ok := s.Hold()
	require.True(t, ok)
	require.Equal(t, fixed, info.HeldAt)
}

func TestManagerIsolatesTerminals(t *testing.T) {
	m := billing.NewManager()
	a := m.Session("kasse-1")
	b := m.Session("kasse-2")
	require.NotSame(t, a, b)
	require.Same(t, a, m.Session("kasse-1"))

	a.AddProduct(product("p1", "10"))
	require.Zero(t, b.Snapshot().Tabs[0].ItemCount)
	require.Equal(t, 2, m.Terminals())
}

func TestHeldBillGaugeFollowsParkAndResume(t *testing.T) {
	obs.MustRegisterDomainMetrics("kasirtest", prometheus.NewRegistry())
	base := testutil.ToFloat64(obs.HeldBills)

	s := newSession(nil)
	s.AddProduct(product("p1", "10"))
	info, ok := s.Hold()
	require.True(t, ok)
	require.Equal(t, base+1, testutil.ToFloat64(obs.HeldBills))

	require.True(t, s.Resume(info.ID))
	require.Equal(t, base, testutil.ToFloat64(obs.HeldBills))

	info, ok = s.Hold()
	require.True(t, ok)
	require.True(t, s.ClearHeld(info.ID))
	require.Equal(t, base, testutil.ToFloat64(obs.HeldBills))
}
