package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgForeignKeyViolation = "23503"

var _ Store = (*Repository)(nil)

// Store defines the persistence operations the customer service needs.
type Store interface {
	Get(ctx context.Context, id string) (*Customer, error)
	GetByEmail(ctx context.Context, email string) (*Customer, error)
	List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error)
	Create(ctx context.Context, c *Customer) error
	Update(ctx context.Context, c *Customer) error
	Delete(ctx context.Context, id string) error
}

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `
	id, name, email, phone, tax_id,
	address_line1, address_line2, city, postal_code, country,
	notes, is_active, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.TaxID,
		&c.AddressLine1, &c.AddressLine2, &c.City, &c.PostalCode, &c.Country,
		&c.Notes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	return scanCustomer(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE email = $1`
	return scanCustomer(r.pool.QueryRow(ctx, query, email))
}

func (r *Repository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}
	if req.Search != nil && *req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+*req.Search+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM customers %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM customers %s ORDER BY name LIMIT $%d OFFSET $%d`,
		customerColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *c)
	}
	return result, total, rows.Err()
}

func (r *Repository) Create(ctx context.Context, c *Customer) error {
	query := `INSERT INTO customers (
			id, name, email, phone, tax_id,
			address_line1, address_line2, city, postal_code, country,
			notes, is_active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := r.pool.Exec(ctx, query,
		c.ID, c.Name, c.Email, c.Phone, c.TaxID,
		c.AddressLine1, c.AddressLine2, c.City, c.PostalCode, c.Country,
		c.Notes, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *Repository) Update(ctx context.Context, c *Customer) error {
	query := `UPDATE customers SET
			name = $2, email = $3, phone = $4, tax_id = $5,
			address_line1 = $6, address_line2 = $7, city = $8,
			postal_code = $9, country = $10, notes = $11,
			is_active = $12, updated_at = $13
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		c.ID, c.Name, c.Email, c.Phone, c.TaxID,
		c.AddressLine1, c.AddressLine2, c.City,
		c.PostalCode, c.Country, c.Notes,
		c.IsActive, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a customer. Referential integrity blocks deletion of
// customers that still own quotations or invoices; that surfaces as
// ErrInUse.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("%w: %s", ErrInUse, id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
