package cart

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// Product is the subset of catalog data the cart needs when a product is
// added. Price fields mirror the store's tiered pricing; the first defined
// one wins in the order retail, regular, wholesale.
type Product struct {
	ID             string
	Name           string
	RetailPrice    *decimal.Decimal
	Price          *decimal.Decimal
	WholesalePrice *decimal.Decimal
	Stock          *int
}

// LineItem is one product entry in a cart. Stock is the maximum allowed
// quantity; nil means the ceiling is unknown and not enforced.
type LineItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
	Stock     *int            `json:"stock,omitempty"`
}

// Subtotal returns price × qty for the line.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Cart is an insertion-ordered collection of line items keyed by product id.
// Operations never block and never return errors: mutations that would break
// an invariant are silent no-ops, matching the defensive contract of the
// store. Cart is not safe for concurrent use; the owning session serialises
// access.
type Cart struct {
	order []string
	items map[string]*LineItem
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{items: make(map[string]*LineItem)}
}

// Add inserts the product with quantity one, or increments the existing line
// when the product is already present (subject to the stock ceiling).
func (c *Cart) Add(p Product) {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return
	}
	if existing, ok := c.items[id]; ok {
		c.bump(existing)
		return
	}
	item := &LineItem{
		ID:        id,
		Name:      p.Name,
		UnitPrice: resolvePrice(p),
		Qty:       1,
		Stock:     p.Stock,
	}
	if item.Stock != nil && *item.Stock < 1 {
		// Nothing left to sell; refuse the insert rather than persist an
		// unsatisfiable line.
		return
	}
	c.items[id] = item
	c.order = append(c.order, id)
}

// Increment raises the quantity of the identified line by one. The call is a
// silent no-op when the id is unknown or the stock ceiling would be exceeded.
func (c *Cart) Increment(id string) {
	if item, ok := c.items[id]; ok {
		c.bump(item)
	}
}

func (c *Cart) bump(item *LineItem) {
	if item.Stock != nil && item.Qty+1 > *item.Stock {
		return
	}
	item.Qty++
}

// Decrement lowers the quantity of the identified line by one, removing the
// line entirely when the quantity would drop to zero. Unknown ids are a no-op.
func (c *Cart) Decrement(id string) {
	item, ok := c.items[id]
	if !ok {
		return
	}
	item.Qty--
	if item.Qty <= 0 {
		c.Remove(id)
	}
}

// Remove deletes the line unconditionally. Unknown ids are a no-op.
func (c *Cart) Remove(id string) {
	if _, ok := c.items[id]; !ok {
		return
	}
	delete(c.items, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Clear empties the cart. Discount and customer state belong to the owning
// tab and are cleared separately.
func (c *Cart) Clear() {
	c.order = c.order[:0]
	c.items = make(map[string]*LineItem)
}

// Items returns the line items in insertion order. The returned slice is a
// copy; mutating it does not affect the cart.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.items[id])
	}
	return out
}

// Lines converts the cart contents into pricing input.
func (c *Cart) Lines() []pricing.Line {
	out := make([]pricing.Line, 0, len(c.order))
	for _, id := range c.order {
		it := c.items[id]
		out = append(out, pricing.Line{Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	return out
}

// TotalItemCount is the sum of all line quantities.
func (c *Cart) TotalItemCount() int {
	var n int
	for _, it := range c.items {
		n += it.Qty
	}
	return n
}

// Subtotal is the sum of price × qty over all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, id := range c.order {
		sum = sum.Add(c.items[id].Subtotal())
	}
	return sum
}

// Len reports the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.order)
}

// Clone returns a deep copy of the cart, used by the session manager when a
// tab is snapshotted for hold.
func (c *Cart) Clone() *Cart {
	cp := New()
	cp.order = append([]string(nil), c.order...)
	for id, it := range c.items {
		dup := *it
		if it.Stock != nil {
			s := *it.Stock
			dup.Stock = &s
		}
		cp.items[id] = &dup
	}
	return cp
}

func resolvePrice(p Product) decimal.Decimal {
	switch {
	case p.RetailPrice != nil:
		return *p.RetailPrice
	case p.Price != nil:
		return *p.Price
	case p.WholesalePrice != nil:
		return *p.WholesalePrice
	default:
		return decimal.Zero
	}
}
