package erp

import "time"

// Sale order lifecycle states as stored by the object layer.
const (
	SaleStateDraft  = "draft"
	SaleStateSent   = "sent"
	SaleStateSale   = "sale"
	SaleStateDone   = "done"
	SaleStateCancel = "cancel"
)

// Invoice status values on a sale order.
const (
	InvoiceStatusToInvoice = "to invoice"
	InvoiceStatusInvoiced  = "invoiced"
	InvoiceStatusNo        = "no"
)

// Invoice (account.move) states.
const (
	InvoiceStateDraft  = "draft"
	InvoiceStatePosted = "posted"
)

// Record is one row as returned by the object layer's generic reads. Field
// selection is caller-driven on the facade, so these stay dynamic; typed
// accessors below cover the fields this system interprets.
type Record map[string]any

// SaleOrder is the typed view of a sale order used by the portal.
type SaleOrder struct {
	ID            int64
	Name          string
	PartnerID     int64
	PartnerName   string
	DateOrder     time.Time
	AmountTotal   float64
	State         string
	InvoiceStatus string
	CurrencyCode  string
	LineCount     int
}

// Partner is a customer identity, referenced but never created here.
type Partner struct {
	ID    int64
	Name  string
	Email string
	Phone string
}

// Invoice is the typed view of a generated customer invoice.
type Invoice struct {
	ID          int64
	Name        string
	State       string
	AmountTotal float64
}

// ListQuery shapes a generic sale-order listing call.
type ListQuery struct {
	Domain Domain
	Fields []string
	Offset int
	Limit  int
	Order  string
}

// DefaultSaleOrderFields is the facade's default field selection.
var DefaultSaleOrderFields = []string{"name", "partner_id", "date_order", "amount_total", "state"}

const wireTimeLayout = "2006-01-02 15:04:05"

// Int returns the named field as int64. The object layer serializes integers
// as JSON numbers and empty relations as false.
func (r Record) Int(field string) int64 {
	v, _ := toInt64(r[field])
	return v
}

// Str returns the named field as a string; false (unset) becomes "".
func (r Record) Str(field string) string {
	s, _ := r[field].(string)
	return s
}

// Float returns the named field as float64.
func (r Record) Float(field string) float64 {
	switch v := r[field].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

// Ref decodes a many-to-one field, which arrives as [id, display_name] or
// false when unset.
func (r Record) Ref(field string) (int64, string) {
	pair, ok := r[field].([]any)
	if !ok || len(pair) < 2 {
		return 0, ""
	}
	id, _ := toInt64(pair[0])
	name, _ := pair[1].(string)
	return id, name
}

// IDs decodes a one-to-many field, which arrives as a list of ids.
func (r Record) IDs(field string) []int64 {
	list, ok := r[field].([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(list))
	for _, v := range list {
		if id, ok := toInt64(v); ok {
			out = append(out, id)
		}
	}
	return out
}

// Time parses the named datetime field from the wire layout.
func (r Record) Time(field string) time.Time {
	s, ok := r[field].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(wireTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func saleOrderFromRecord(r Record) SaleOrder {
	partnerID, partnerName := r.Ref("partner_id")
	_, currency := r.Ref("currency_id")
	return SaleOrder{
		ID:            r.Int("id"),
		Name:          r.Str("name"),
		PartnerID:     partnerID,
		PartnerName:   partnerName,
		DateOrder:     r.Time("date_order"),
		AmountTotal:   r.Float("amount_total"),
		State:         r.Str("state"),
		InvoiceStatus: r.Str("invoice_status"),
		CurrencyCode:  currency,
		LineCount:     len(r.IDs("order_line")),
	}
}
