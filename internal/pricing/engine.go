package pricing

import "github.com/shopspring/decimal"

// Line is a single cart entry used for total calculation.
type Line struct {
	Qty       int
	UnitPrice decimal.Decimal
}

// DiscountConfig carries the flat discount and the tax rate applied to a bill.
// TaxPercent is expressed as a percentage in the range [0, 100].
type DiscountConfig struct {
	DiscountAmount decimal.Decimal
	TaxPercent     decimal.Decimal
}

// Summary aggregates the computed components of a bill. Values carry full
// precision; callers round at display time via Round2.
type Summary struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Compute calculates bill totals from the provided lines and discount
// configuration. The discount is clamped so it never exceeds the subtotal,
// tax applies to the post-discount base, and the total is floored at zero.
// Pure function: identical inputs always produce identical output.
func Compute(lines []Line, cfg DiscountConfig) Summary {
	subtotal := decimal.Zero
	for _, ln := range lines {
		if ln.Qty <= 0 {
			continue
		}
		subtotal = subtotal.Add(ln.UnitPrice.Mul(decimal.NewFromInt(int64(ln.Qty))))
	}

	discount := cfg.DiscountAmount
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}

	percent := cfg.TaxPercent
	if percent.IsNegative() {
		percent = decimal.Zero
	} else if percent.GreaterThan(hundred) {
		percent = hundred
	}
	tax := taxable.Mul(percent).Div(hundred)

	total := taxable.Add(tax)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Summary{Subtotal: subtotal, Discount: discount, Tax: tax, Total: total}
}

// Round2 rounds a monetary value to two decimal places for display and wire
// payloads.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Rounded returns a copy of the summary with every component rounded to two
// decimal places.
func (s Summary) Rounded() Summary {
	return Summary{
		Subtotal: Round2(s.Subtotal),
		Discount: Round2(s.Discount),
		Tax:      Round2(s.Tax),
		Total:    Round2(s.Total),
	}
}
