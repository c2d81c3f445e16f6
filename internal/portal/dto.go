package portal

// Wire shapes for the external form. The form script predates this service,
// so unset ids travel as JSON false rather than null.

type submitRequest struct {
	Token     string `json:"token"`
	PartnerID int64  `json:"partner_id" validate:"required,gt=0"`
	SaleID    int64  `json:"sale_id" validate:"required,gt=0"`
}

type submitSuccess struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	InvoiceID any    `json:"invoice_id"`
	State     string `json:"state"`
	Token     string `json:"token"`
}

type submitError struct {
	Error string `json:"error"`
}

type partnerPayload struct {
	ID    any    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type salePartnerPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type salePayload struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	DateOrder   string             `json:"date_order"`
	AmountTotal float64            `json:"amount_total"`
	Partner     salePartnerPayload `json:"partner"`
}

type invoicePayload struct {
	ID    any    `json:"id"`
	State string `json:"state"`
}

type formPayload struct {
	Token             string         `json:"token"`
	Partner           partnerPayload `json:"partner"`
	Sales             []salePayload  `json:"sales"`
	HasPartner        bool           `json:"has_partner"`
	PreselectedSaleID any            `json:"preselected_sale_id"`
	Invoice           invoicePayload `json:"invoice"`
}

// orderRow backs the backoffice listing template.
type orderRow struct {
	ID          int64
	Name        string
	PartnerName string
	DateOrder   string
	Amount      string
	LineCount   int
}
