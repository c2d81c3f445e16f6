package invoicerequest

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Approval outcome errors. The record is left untouched in both cases; the
// original behavior was a silent skip, callers that want to report it can.
var (
	ErrNotApprovable    = errors.New("invoicerequest: request is not pending or has no sale order")
	ErrNothingToInvoice = errors.New("invoicerequest: sale order produced no invoice")
)

// RepositoryPort defines data access methods for invoice requests.
type RepositoryPort interface {
	Create(ctx context.Context, partnerID int64, saleID *int64) (*InvoiceRequest, error)
	GetByID(ctx context.Context, id int64) (*InvoiceRequest, error)
	GetByToken(ctx context.Context, token string) (*InvoiceRequest, error)
	LatestByPartner(ctx context.Context, partnerID int64) (*InvoiceRequest, error)
	ExistsForInvoice(ctx context.Context, invoiceID int64) (bool, error)
	MarkApproved(ctx context.Context, id, invoiceID int64, processedAt time.Time) (*InvoiceRequest, error)
	List(ctx context.Context, limit, offset int) ([]InvoiceRequest, error)
}

// Invoicer is the slice of the ERP client approval depends on.
type Invoicer interface {
	CreateInvoicesFromSale(ctx context.Context, saleID int64) (int64, error)
	PostInvoice(ctx context.Context, invoiceID int64) error
}

// Service handles the invoice-request lifecycle.
type Service struct {
	repo RepositoryPort
	erp  Invoicer
	now  func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, invoicer Invoicer) *Service {
	return &Service{
		repo: repo,
		erp:  invoicer,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateFromExternal records a submission from the public form. Eligibility
// of the sale order is the caller's responsibility; this only persists.
func (s *Service) CreateFromExternal(ctx context.Context, partnerID, saleID int64) (*InvoiceRequest, error) {
	if partnerID == 0 {
		return nil, errors.New("invoicerequest: partner required")
	}
	var salePtr *int64
	if saleID != 0 {
		salePtr = &saleID
	}
	return s.repo.Create(ctx, partnerID, salePtr)
}

// Approve generates and posts the invoice for a pending request, then links
// it and stamps the processing time. A non-pending or sale-less request is
// never mutated.
func (s *Service) Approve(ctx context.Context, id int64) (*InvoiceRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.State != StatePending || req.SaleID == nil {
		return req, ErrNotApprovable
	}

	invoiceID, err := s.erp.CreateInvoicesFromSale(ctx, *req.SaleID)
	if err != nil {
		return nil, fmt.Errorf("create invoices: %w", err)
	}
	if invoiceID == 0 {
		return req, ErrNothingToInvoice
	}
	if err := s.erp.PostInvoice(ctx, invoiceID); err != nil {
		return nil, fmt.Errorf("post invoice: %w", err)
	}

	approved, err := s.repo.MarkApproved(ctx, id, invoiceID, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark approved: %w", err)
	}
	return approved, nil
}

// TokenForPartner returns the partner's current external token, minting a
// fresh sale-less pending request when none exists. Repeated calls without an
// intervening submission return the identical token.
func (s *Service) TokenForPartner(ctx context.Context, partnerID int64) (string, error) {
	req, err := s.repo.LatestByPartner(ctx, partnerID)
	if err == nil {
		return req.ExternalToken, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	created, err := s.repo.Create(ctx, partnerID, nil)
	if err != nil {
		return "", err
	}
	return created.ExternalToken, nil
}

// GetByToken resolves a request by exact token match, nil when unknown.
func (s *Service) GetByToken(ctx context.Context, token string) (*InvoiceRequest, error) {
	if token == "" {
		return nil, nil
	}
	req, err := s.repo.GetByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return req, err
}

// HasRequestForInvoice reports whether any request references the invoice.
func (s *Service) HasRequestForInvoice(ctx context.Context, invoiceID int64) (bool, error) {
	return s.repo.ExistsForInvoice(ctx, invoiceID)
}

// List returns requests for the backoffice listing, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]InvoiceRequest, error) {
	return s.repo.List(ctx, limit, offset)
}
