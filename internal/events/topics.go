package events

// Topic constants for domain events emitted by the billing core.
const (
	TopicInvoiceCreated = "invoice.created"
)

// InvoiceCreated is the payload emitted after a bill is finalised into an
// invoice at the store.
type InvoiceCreated struct {
	InvoiceID string `json:"invoiceId"`
	Salesman  string `json:"salesman,omitempty"`
	Total     string `json:"total"`
	Items     int    `json:"items"`
}
