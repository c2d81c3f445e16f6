package invoicerequest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mce-digital/salesbridge/internal/platform/httpx"
)

// ErrNotFound indicates the request does not exist. It wraps the boundary
// sentinel so RespondError maps it to a 404.
var ErrNotFound = fmt.Errorf("invoicerequest: %w", httpx.ErrNotFound)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for invoice requests.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestColumns = "id, partner_id, sale_id, invoice_id, state, external_token, request_date, processing_date"

func scanRequest(row pgx.Row) (*InvoiceRequest, error) {
	var req InvoiceRequest
	err := row.Scan(
		&req.ID,
		&req.PartnerID,
		&req.SaleID,
		&req.InvoiceID,
		&req.State,
		&req.ExternalToken,
		&req.RequestDate,
		&req.ProcessingDate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Create inserts a new pending request. The external token is issued here,
// exactly once per record, and never rewritten afterwards.
func (r *Repository) Create(ctx context.Context, partnerID int64, saleID *int64) (*InvoiceRequest, error) {
	query := `
		INSERT INTO invoice_requests (partner_id, sale_id, state, external_token, request_date)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + requestColumns

	// A token collision is vanishingly unlikely but cheap to recover from.
	for attempt := 0; ; attempt++ {
		token := uuid.NewString()
		req, err := scanRequest(r.pool.QueryRow(ctx, query, partnerID, saleID, StatePending, token))
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if attempt == 0 {
				continue
			}
			return nil, fmt.Errorf("invoicerequest: token collision: %w", httpx.ErrDuplicate)
		}
		return req, err
	}
}

// GetByID reads one request.
func (r *Repository) GetByID(ctx context.Context, id int64) (*InvoiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM invoice_requests WHERE id = $1`
	return scanRequest(r.pool.QueryRow(ctx, query, id))
}

// GetByToken reads one request by exact token match.
func (r *Repository) GetByToken(ctx context.Context, token string) (*InvoiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM invoice_requests WHERE external_token = $1`
	return scanRequest(r.pool.QueryRow(ctx, query, token))
}

// LatestByPartner returns the partner's most recently created request, the
// record the default ordering surfaces first.
func (r *Repository) LatestByPartner(ctx context.Context, partnerID int64) (*InvoiceRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM invoice_requests
		WHERE partner_id = $1
		ORDER BY request_date DESC, id DESC
		LIMIT 1`
	return scanRequest(r.pool.QueryRow(ctx, query, partnerID))
}

// ExistsForInvoice reports whether any request references the invoice. The
// download route requires one before streaming anything.
func (r *Repository) ExistsForInvoice(ctx context.Context, invoiceID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM invoice_requests WHERE invoice_id = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, invoiceID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MarkApproved moves a pending request to approved, linking the generated
// invoice and stamping the processing time in one statement.
func (r *Repository) MarkApproved(ctx context.Context, id, invoiceID int64, processedAt time.Time) (*InvoiceRequest, error) {
	query := `
		UPDATE invoice_requests
		SET invoice_id = $2, state = $3, processing_date = $4
		WHERE id = $1 AND state = $5
		RETURNING ` + requestColumns
	return scanRequest(r.pool.QueryRow(ctx, query, id, invoiceID, StateApproved, processedAt, StatePending))
}

// List returns requests newest first, for the backoffice view.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]InvoiceRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + requestColumns + `
		FROM invoice_requests
		ORDER BY request_date DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvoiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}
