package invoicerequest

import "time"

// State enumerates the request lifecycle. Pending is the initial state;
// approved is terminal and always carries a generated invoice.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
)

// InvoiceRequest is one customer's ask to be invoiced for a sale order.
// Partner, sale order and invoice are ERP records referenced by id; only the
// request itself is owned here.
type InvoiceRequest struct {
	ID             int64      `json:"id" db:"id"`
	PartnerID      int64      `json:"partner_id" db:"partner_id"`
	SaleID         *int64     `json:"sale_id,omitempty" db:"sale_id"`
	InvoiceID      *int64     `json:"invoice_id,omitempty" db:"invoice_id"`
	State          State      `json:"state" db:"state"`
	ExternalToken  string     `json:"external_token" db:"external_token"`
	RequestDate    time.Time  `json:"request_date" db:"request_date"`
	ProcessingDate *time.Time `json:"processing_date,omitempty" db:"processing_date"`
}
