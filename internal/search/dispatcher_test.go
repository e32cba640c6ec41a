package search_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/gateway"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/search"
)

type fakeSearcher struct {
	mu      sync.Mutex
	filters []gateway.ProductFilter
	results []gateway.Product
	err     error
	block   chan struct{}
}

func (f *fakeSearcher) ListProducts(ctx context.Context, filter gateway.ProductFilter) ([]gateway.Product, error) {
	f.mu.Lock()
	f.filters = append(f.filters, filter)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.results, f.err
}

func (f *fakeSearcher) lastFilter() gateway.ProductFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filters[len(f.filters)-1]
}

func TestDispatchModesBuildDistinctFilters(t *testing.T) {
	fake := &fakeSearcher{results: []gateway.Product{{ID: "p1"}}}
	d := &search.Dispatcher{Products: fake, Limit: 15}

	_, err := d.Dispatch(context.Background(), search.ModeText, "teh botol")
	require.NoError(t, err)
	require.Equal(t, gateway.ProductFilter{Search: "teh botol", Limit: 15}, fake.lastFilter())

	_, err = d.Dispatch(context.Background(), search.ModeBarcode, "8991234567")
	require.NoError(t, err)
	require.Equal(t, gateway.ProductFilter{Barcode: "8991234567", Limit: 1}, fake.lastFilter())

	_, err = d.Dispatch(context.Background(), search.ModePLU, "4011")
	require.NoError(t, err)
	require.Equal(t, gateway.ProductFilter{PLU: "4011", Limit: 1}, fake.lastFilter())
}

func TestDispatchEmptyTermIssuesNoQuery(t *testing.T) {
	fake := &fakeSearcher{}
	d := &search.Dispatcher{Products: fake}
	products, err := d.Dispatch(context.Background(), search.ModeText, "   ")
	require.NoError(t, err)
	require.Nil(t, products)
	require.Empty(t, fake.filters)
}

func TestDispatchUnknownMode(t *testing.T) {
	d := &search.Dispatcher{Products: &fakeSearcher{}}
	_, err := d.Dispatch(context.Background(), search.Mode("fuzzy"), "x")
	require.Error(t, err)
}

func TestSupersededResponseIsDropped(t *testing.T) {
	block := make(chan struct{})
	fake := &fakeSearcher{results: []gateway.Product{{ID: "stale"}}, block: block}
	d := &search.Dispatcher{Products: fake}

	type outcome struct {
		products []gateway.Product
		err      error
	}
	first := make(chan outcome, 1)
	go func() {
		p, err := d.Dispatch(context.Background(), search.ModeText, "te")
		first <- outcome{p, err}
	}()

	// wait until the first query is in flight, then issue a newer one
	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.filters) == 1
	}, time.Second, time.Millisecond)

	fake.mu.Lock()
	fake.block = nil
	fake.mu.Unlock()
	_, err := d.Dispatch(context.Background(), search.ModeText, "teh")
	require.NoError(t, err)

	close(block)
	got := <-first
	require.ErrorIs(t, got.err, search.ErrSuperseded)
	require.Nil(t, got.products)
}

func TestDispatchCountsOutcomes(t *testing.T) {
	obs.MustRegisterDomainMetrics("kasirtest", prometheus.NewRegistry())
	okBase := testutil.ToFloat64(obs.SearchDispatchTotal.WithLabelValues("barcode", "ok"))
	errBase := testutil.ToFloat64(obs.SearchDispatchTotal.WithLabelValues("text", "error"))

	d := &search.Dispatcher{Products: &fakeSearcher{results: []gateway.Product{{ID: "p1"}}}}
	_, err := d.Dispatch(context.Background(), search.ModeBarcode, "8991234567")
	require.NoError(t, err)
	require.Equal(t, okBase+1, testutil.ToFloat64(obs.SearchDispatchTotal.WithLabelValues("barcode", "ok")))

	failing := &search.Dispatcher{Products: &fakeSearcher{err: errors.New("store unreachable")}}
	_, err = failing.Dispatch(context.Background(), search.ModeText, "teh")
	require.Error(t, err)
	require.Equal(t, errBase+1, testutil.ToFloat64(obs.SearchDispatchTotal.WithLabelValues("text", "error")))
}

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]search.Mode{
		"":        search.ModeText,
		"text":    search.ModeText,
		"BARCODE": search.ModeBarcode,
		" plu ":   search.ModePLU,
	} {
		mode, ok := search.ParseMode(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, mode)
	}
	_, ok := search.ParseMode("fuzzy")
	require.False(t, ok)
}
