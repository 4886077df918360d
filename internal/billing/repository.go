package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/meridian/internal/platform/db"
)

const pgUniqueViolation = "23505"

var _ Store = (*Repository)(nil)

// Repository provides PostgreSQL backed persistence for billing
// documents. It is the authoritative document store: reads always
// reflect the most recent committed status write.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository over the given pool. The pool
// carries the connection configuration; nothing here is ambient.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

// ============================================================================
// QUOTATIONS
// ============================================================================

const quotationColumns = `
	q.id, q.quotation_number, q.customer_id, COALESCE(c.name, ''),
	q.quotation_date, q.expiry_date, q.currency,
	q.total_amount::text, q.status, q.notes, q.created_at, q.updated_at`

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	err := row.Scan(
		&q.ID, &q.QuotationNumber, &q.CustomerID, &q.CustomerName,
		&q.QuotationDate, &q.ExpiryDate, &q.Currency,
		&q.TotalAmount, &q.Status, &q.Notes, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

// GetQuotation fetches a quotation with its line items.
func (r *Repository) GetQuotation(ctx context.Context, id string) (*Quotation, error) {
	query := `SELECT ` + quotationColumns + `
		FROM quotations q
		LEFT JOIN customers c ON c.id = q.customer_id
		WHERE q.id = $1`
	q, err := scanQuotation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	items, err := r.quotationLines(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}
	q.LineItems = items
	return q, nil
}

func (r *Repository) quotationLines(ctx context.Context, quotationID string) ([]LineItem, error) {
	query := `SELECT
		l.id, l.product_service_id, p.name, l.description,
		l.quantity::text, l.unit_price::text, l.tax_rate::text, l.line_total::text, l.position
	FROM quotation_line_items l
	LEFT JOIN product_services p ON p.id = l.product_service_id
	WHERE l.quotation_id = $1
	ORDER BY l.position`
	rows, err := r.pool.Query(ctx, query, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLineItems(rows)
}

func scanLineItems(rows pgx.Rows) ([]LineItem, error) {
	var items []LineItem
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(
			&item.ID, &item.ProductServiceID, &item.ProductServiceName, &item.Description,
			&item.Quantity, &item.UnitPrice, &item.TaxRate, &item.LineTotal, &item.Position,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListQuotations returns quotation headers matching the filters, newest
// first, without line items.
func (r *Repository) ListQuotations(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	n := 0
	if req.Status != nil {
		n++
		where += fmt.Sprintf(" AND q.status = $%d", n)
		args = append(args, *req.Status)
	}
	if req.CustomerID != nil {
		n++
		where += fmt.Sprintf(" AND q.customer_id = $%d", n)
		args = append(args, *req.CustomerID)
	}
	if req.Search != nil {
		n++
		where += fmt.Sprintf(" AND (q.quotation_number ILIKE $%d OR c.name ILIKE $%d)", n, n)
		args = append(args, "%"+*req.Search+"%")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM quotations q LEFT JOIN customers c ON c.id = q.customer_id` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + quotationColumns + `
		FROM quotations q
		LEFT JOIN customers c ON c.id = q.customer_id` + where +
		fmt.Sprintf(` ORDER BY q.created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *q)
	}
	return result, total, rows.Err()
}

// CreateQuotation inserts a quotation header and its line items in one
// transaction.
func (r *Repository) CreateQuotation(ctx context.Context, q *Quotation) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO quotations
				(id, quotation_number, customer_id, quotation_date, expiry_date,
				 currency, total_amount, status, notes, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			q.ID, q.QuotationNumber, q.CustomerID, q.QuotationDate, q.ExpiryDate,
			q.Currency, q.TotalAmount, q.Status, q.Notes, q.CreatedAt, q.UpdatedAt,
		)
		if err != nil {
			return mapPgError(err)
		}
		return insertQuotationLines(ctx, tx, q.ID, q.LineItems)
	})
}

// UpdateQuotation rewrites the header and replaces all line items.
func (r *Repository) UpdateQuotation(ctx context.Context, q *Quotation) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE quotations SET
				customer_id = $2, quotation_date = $3, expiry_date = $4,
				total_amount = $5, notes = $6, updated_at = $7
			WHERE id = $1`,
			q.ID, q.CustomerID, q.QuotationDate, q.ExpiryDate,
			q.TotalAmount, q.Notes, q.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM quotation_line_items WHERE quotation_id = $1`, q.ID); err != nil {
			return err
		}
		return insertQuotationLines(ctx, tx, q.ID, q.LineItems)
	})
}

func insertQuotationLines(ctx context.Context, tx pgx.Tx, quotationID string, items []LineItem) error {
	for _, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO quotation_line_items
				(id, quotation_id, product_service_id, description,
				 quantity, unit_price, tax_rate, line_total, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			item.ID, quotationID, item.ProductServiceID, item.Description,
			item.Quantity, item.UnitPrice, item.TaxRate, item.LineTotal, item.Position,
		)
		if err != nil {
			return fmt.Errorf("insert quotation line: %w", err)
		}
	}
	return nil
}

// DeleteQuotation removes a quotation and its line items. Invoiced
// quotations are never deleted; the store rejects the request even if a
// caller skipped the service-level check.
func (r *Repository) DeleteQuotation(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM quotations WHERE id = $1 AND status <> $2`,
		id, QuotationStatusInvoiced,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var status QuotationStatus
		err := r.pool.QueryRow(ctx, `SELECT status FROM quotations WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrQuotationInvoiced, id)
	}
	return nil
}

// UpdateQuotationStatus sets the status, optionally conditional on the
// expected current status. A failed condition returns ErrConflict and
// leaves the row untouched.
func (r *Repository) UpdateQuotationStatus(ctx context.Context, id string, target QuotationStatus, expected QuotationStatus) (*Quotation, error) {
	query := `UPDATE quotations SET status = $2, updated_at = $3 WHERE id = $1`
	args := []any{id, target, time.Now()}
	if expected != "" {
		query += ` AND status = $4`
		args = append(args, expected)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		var current QuotationStatus
		err := r.pool.QueryRow(ctx, `SELECT status FROM quotations WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: expected %s, found %s", ErrConflict, expected, current)
	}
	return r.GetQuotation(ctx, id)
}

// ============================================================================
// INVOICES
// ============================================================================

const invoiceColumns = `
	i.id, i.invoice_number, i.customer_id, COALESCE(c.name, ''),
	i.invoice_date, i.due_date, i.currency,
	i.total_amount::text, i.status, i.notes, i.created_at, i.updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &inv.CustomerName,
		&inv.InvoiceDate, &inv.DueDate, &inv.Currency,
		&inv.TotalAmount, &inv.Status, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// GetInvoice fetches an invoice with its line items.
func (r *Repository) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices i
		LEFT JOIN customers c ON c.id = i.customer_id
		WHERE i.id = $1`
	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	items, err := r.invoiceLines(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}
	inv.LineItems = items
	return inv, nil
}

func (r *Repository) invoiceLines(ctx context.Context, invoiceID string) ([]LineItem, error) {
	query := `SELECT
		l.id, l.product_service_id, p.name, l.description,
		l.quantity::text, l.unit_price::text, l.tax_rate::text, l.line_total::text, l.position
	FROM invoice_line_items l
	LEFT JOIN product_services p ON p.id = l.product_service_id
	WHERE l.invoice_id = $1
	ORDER BY l.position`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLineItems(rows)
}

// ListInvoices returns invoice headers matching the filters, newest
// first, without line items.
func (r *Repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	n := 0
	if req.Status != nil {
		n++
		where += fmt.Sprintf(" AND i.status = $%d", n)
		args = append(args, *req.Status)
	}
	if req.CustomerID != nil {
		n++
		where += fmt.Sprintf(" AND i.customer_id = $%d", n)
		args = append(args, *req.CustomerID)
	}
	if req.Search != nil {
		n++
		where += fmt.Sprintf(" AND (i.invoice_number ILIKE $%d OR c.name ILIKE $%d)", n, n)
		args = append(args, "%"+*req.Search+"%")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM invoices i LEFT JOIN customers c ON c.id = i.customer_id` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + invoiceColumns + `
		FROM invoices i
		LEFT JOIN customers c ON c.id = i.customer_id` + where +
		fmt.Sprintf(` ORDER BY i.created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *inv)
	}
	return result, total, rows.Err()
}

// CreateInvoice inserts an invoice header and its line items in one
// transaction. A number collision surfaces as ErrDuplicateNumber so the
// caller can regenerate and retry.
func (r *Repository) CreateInvoice(ctx context.Context, inv *Invoice) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoices
				(id, invoice_number, customer_id, invoice_date, due_date,
				 currency, total_amount, status, notes, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			inv.ID, inv.InvoiceNumber, inv.CustomerID, inv.InvoiceDate, inv.DueDate,
			inv.Currency, inv.TotalAmount, inv.Status, inv.Notes, inv.CreatedAt, inv.UpdatedAt,
		)
		if err != nil {
			return mapPgError(err)
		}
		for _, item := range inv.LineItems {
			_, err := tx.Exec(ctx, `
				INSERT INTO invoice_line_items
					(id, invoice_id, product_service_id, description,
					 quantity, unit_price, tax_rate, line_total, position)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				item.ID, inv.ID, item.ProductServiceID, item.Description,
				item.Quantity, item.UnitPrice, item.TaxRate, item.LineTotal, item.Position,
			)
			if err != nil {
				return fmt.Errorf("insert invoice line: %w", err)
			}
		}
		return nil
	})
}

// DeleteInvoice removes an invoice and its line items.
func (r *Repository) DeleteInvoice(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateInvoiceStatus sets the status, optionally conditional on the
// expected current status.
func (r *Repository) UpdateInvoiceStatus(ctx context.Context, id string, target InvoiceStatus, expected InvoiceStatus) (*Invoice, error) {
	query := `UPDATE invoices SET status = $2, updated_at = $3 WHERE id = $1`
	args := []any{id, target, time.Now()}
	if expected != "" {
		query += ` AND status = $4`
		args = append(args, expected)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		var current InvoiceStatus
		err := r.pool.QueryRow(ctx, `SELECT status FROM invoices WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: expected %s, found %s", ErrConflict, expected, current)
	}
	return r.GetInvoice(ctx, id)
}

// ============================================================================
// SWEEPS
// ============================================================================

// ExpireQuotations marks Sent quotations past their expiry date as
// Expired, following the Sent -> Expired edge of the state machine.
func (r *Repository) ExpireQuotations(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE quotations SET status = $1, updated_at = $2
		WHERE status = $3 AND expiry_date IS NOT NULL AND expiry_date < $2`,
		QuotationStatusExpired, asOf, QuotationStatusSent,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkInvoicesOverdue marks Sent invoices past their due date as
// Overdue, following the Sent -> Overdue edge of the state machine.
func (r *Repository) MarkInvoicesOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET status = $1, updated_at = $2
		WHERE status = $3 AND due_date < $2`,
		InvoiceStatusOverdue, asOf, InvoiceStatusSent,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, pgErr.ConstraintName)
	}
	return err
}
