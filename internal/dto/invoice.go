package dto

// InvoiceListItem is one row of the invoice listing view.
type InvoiceListItem struct {
	ID           string `json:"id"`
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name,omitempty"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status"`
	Date         string `json:"date"`
}

// InvoiceListing is the rendered listing view, cached under its path.
type InvoiceListing struct {
	Invoices []InvoiceListItem `json:"invoices"`
}
