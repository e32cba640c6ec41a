package search_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/gateway"
	"github.com/noah-isme/backend-kasir/internal/search"
)

type resultSink struct {
	mu      sync.Mutex
	batches [][]gateway.Product
	errs    []error
}

func (s *resultSink) onResults(products []gateway.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, products)
}

func (s *resultSink) onError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *resultSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func TestBoxDebouncesTyping(t *testing.T) {
	fake := &fakeSearcher{results: []gateway.Product{{ID: "p1", Name: "Teh Botol"}}}
	sink := &resultSink{}
	box := search.NewBox(search.BoxConfig{
		Dispatcher: &search.Dispatcher{Products: fake},
		Debounce:   search.NewDebouncer(15 * time.Millisecond),
		OnResults:  sink.onResults,
		OnError:    sink.onError,
	})
	defer box.Close()

	box.SetTerm("t")
	box.SetTerm("te")
	box.SetTerm("teh")

	require.Eventually(t, func() bool {
		return sink.batchCount() == 1
	}, time.Second, 5*time.Millisecond)

	// only the final term reached the store
	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.filters, 1)
	require.Equal(t, "teh", fake.filters[0].Search)
	require.Empty(t, sink.errs)
}

func TestBoxEmptyTermClearsResults(t *testing.T) {
	fake := &fakeSearcher{}
	sink := &resultSink{}
	box := search.NewBox(search.BoxConfig{
		Dispatcher: &search.Dispatcher{Products: fake},
		Debounce:   search.NewDebouncer(15 * time.Millisecond),
		OnResults:  sink.onResults,
	})
	defer box.Close()

	box.SetTerm("teh")
	box.SetTerm("")

	// clearing reports an empty batch immediately and cancels the pending query
	require.Equal(t, 1, sink.batchCount())
	time.Sleep(60 * time.Millisecond)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Empty(t, fake.filters)
}

func TestBoxModeSwitchReissuesImmediately(t *testing.T) {
	fake := &fakeSearcher{results: []gateway.Product{{ID: "p1"}}}
	sink := &resultSink{}
	box := search.NewBox(search.BoxConfig{
		Dispatcher: &search.Dispatcher{Products: fake},
		Debounce:   search.NewDebouncer(time.Hour),
		OnResults:  sink.onResults,
	})
	defer box.Close()

	box.SetTerm("8991234567")
	box.SetMode(search.ModeBarcode)

	// the hour-long debounce never fires; the mode switch dispatched directly
	require.Eventually(t, func() bool {
		return sink.batchCount() == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "8991234567", fake.lastFilter().Barcode)
}

func TestBoxCloseDropsInflightResponse(t *testing.T) {
	block := make(chan struct{})
	fake := &fakeSearcher{results: []gateway.Product{{ID: "stale"}}, block: block}
	sink := &resultSink{}
	box := search.NewBox(search.BoxConfig{
		Dispatcher: &search.Dispatcher{Products: fake},
		Debounce:   search.NewDebouncer(time.Millisecond),
		OnResults:  sink.onResults,
		OnError:    sink.onError,
	})

	box.SetTerm("teh")
	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.filters) == 1
	}, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		box.Close()
		close(done)
	}()
	close(block)
	<-done

	require.Equal(t, 0, sink.batchCount())
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Empty(t, sink.errs)
}
