package gateway

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/cart"
)

// Product mirrors the catalog store's product payload. Price tiers are
// optional; CartProduct resolves the effective one.
type Product struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	RetailPrice    *decimal.Decimal `json:"retailPrice,omitempty"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	WholesalePrice *decimal.Decimal `json:"wholesalePrice,omitempty"`
	Stock          *int             `json:"stock,omitempty"`
	Barcode        string           `json:"barcode,omitempty"`
	PLUCode        string           `json:"pluCode,omitempty"`
	Unit           string           `json:"unit,omitempty"`
	Category       string           `json:"category,omitempty"`
}

// CartProduct converts the catalog payload into the cart's add input.
func (p Product) CartProduct() cart.Product {
	return cart.Product{
		ID:             p.ID,
		Name:           p.Name,
		RetailPrice:    p.RetailPrice,
		Price:          p.Price,
		WholesalePrice: p.WholesalePrice,
		Stock:          p.Stock,
	}
}

// ProductFilter narrows a product listing. Barcode and PLU are exact-match
// lookups; Search is free text.
type ProductFilter struct {
	Search  string
	Barcode string
	PLU     string
	Limit   int
}

// Customer is referenced by the billing core, never mutated by it.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// CustomerFilter narrows a customer search.
type CustomerFilter struct {
	Search string
	Email  string
	Phone  string
	Limit  int
}

// CustomerDraft is the create payload for a new customer record.
type CustomerDraft struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty"`
}

// InvoiceItem is one billed line inside an invoice payload.
type InvoiceItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// InvoiceAmount carries the derived totals of an invoice.
type InvoiceAmount struct {
	SubTotal decimal.Decimal `json:"subTotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// InvoiceDiscount is one discount entry applied to an invoice.
type InvoiceDiscount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Code   string          `json:"code,omitempty"`
}

// InvoiceDraft is the payload submitted to the store when a bill is
// finalised.
type InvoiceDraft struct {
	Items     []InvoiceItem     `json:"items"`
	Amount    InvoiceAmount     `json:"amount"`
	Discounts []InvoiceDiscount `json:"discounts"`
	Customer  *Customer         `json:"customer,omitempty"`
	Salesman  string            `json:"salesman,omitempty"`
	Type      string            `json:"type"`
}

// Invoice is the store's response for a created or fetched invoice.
type Invoice struct {
	ID        string            `json:"id"`
	Items     []InvoiceItem     `json:"items"`
	Amount    InvoiceAmount     `json:"amount"`
	Discounts []InvoiceDiscount `json:"discounts,omitempty"`
	Customer  *Customer         `json:"customer,omitempty"`
	Salesman  string            `json:"salesman,omitempty"`
	Type      string            `json:"type,omitempty"`
	CreatedAt string            `json:"createdAt,omitempty"`
	CreatedBy string            `json:"createdBy,omitempty"`
}

// InvoiceFilter narrows an invoice listing.
type InvoiceFilter struct {
	Search    string
	CreatedBy string
	Limit     int
	Page      int
}
