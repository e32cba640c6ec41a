package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/noah-isme/backend-kasir/internal/gateway"
)

// BoxConfig groups Box dependencies.
type BoxConfig struct {
	Dispatcher *Dispatcher
	Debounce   *Debouncer
	OnResults  func([]gateway.Product)
	OnError    func(error)
}

// Box models an interactive quick-search field: typing debounces the query,
// switching mode with a non-empty term re-issues it immediately, and closing
// the box drops any in-flight response instead of applying it to stale
// state.
type Box struct {
	mu       sync.Mutex
	mode     Mode
	term     string
	cfg      BoxConfig
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	// Delivery ordering. seq numbers every dispatch; deliverMu serialises
	// callback invocation and delivered records the newest generation whose
	// outcome reached a callback. The dispatcher's own supersede check runs
	// before its result travels back here, so a stale result could otherwise
	// still overtake a newer one in the gap.
	seq       atomic.Uint64
	deliverMu sync.Mutex
	delivered uint64
}

// NewBox constructs a quick-search box starting in text mode.
func NewBox(cfg BoxConfig) *Box {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.Debounce == nil {
		cfg.Debounce = NewDebouncer(DefaultDebounce)
	}
	return &Box{mode: ModeText, cfg: cfg, ctx: ctx, cancel: cancel}
}

// SetTerm records new input and schedules a dispatch after the idle period.
// An empty term cancels pending work and clears results.
func (b *Box) SetTerm(term string) {
	b.mu.Lock()
	b.term = term
	mode := b.mode
	b.mu.Unlock()

	if term == "" {
		b.cfg.Debounce.Cancel()
		// Clearing counts as a generation so a slower in-flight response
		// cannot repopulate the emptied box.
		b.deliver(b.seq.Add(1), nil, nil)
		return
	}
	b.cfg.Debounce.Trigger(func() {
		b.dispatch(mode, term)
	})
}

// SetMode switches the interpretation of the current term. A non-empty term
// is re-issued immediately under the new mode, skipping the debounce.
func (b *Box) SetMode(mode Mode) {
	b.mu.Lock()
	b.mode = mode
	term := b.term
	b.mu.Unlock()

	if term == "" {
		return
	}
	b.cfg.Debounce.Cancel()
	b.dispatch(mode, term)
}

// Close tears the box down: pending debounce work is cancelled and in-flight
// responses are dropped.
func (b *Box) Close() {
	b.cfg.Debounce.Stop()
	b.cancel()
	b.inflight.Wait()
}

func (b *Box) dispatch(mode Mode, term string) {
	gen := b.seq.Add(1)
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		products, err := b.cfg.Dispatcher.Dispatch(b.ctx, mode, term)
		b.deliver(gen, products, err)
	}()
}

// deliver applies one dispatch outcome. Generations are applied strictly
// in order: anything at or below the newest delivered generation is dropped,
// whether it carries results or an error.
func (b *Box) deliver(gen uint64, products []gateway.Product, err error) {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()
	if b.ctx.Err() != nil || gen <= b.delivered {
		return
	}
	b.delivered = gen
	if err != nil {
		if errors.Is(err, ErrSuperseded) || errors.Is(err, context.Canceled) {
			return
		}
		if b.cfg.OnError != nil {
			b.cfg.OnError(err)
		}
		return
	}
	if b.cfg.OnResults != nil {
		b.cfg.OnResults(products)
	}
}
