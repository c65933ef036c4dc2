package clients

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/importpro/importpro/internal/shared"
)

// RepositoryPort abstracts the registry storage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, c Client) (int64, error)
	Update(ctx context.Context, c Client) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Client, error)
	List(ctx context.Context, search string, p shared.Pagination) ([]Client, int, error)
	History(ctx context.Context, clientID int64) ([]OrderSummary, error)
}

// Repository stores clients in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, name, phone, phone_normalized, whatsapp, city, email, address, total_orders, total_spent, date_added`

// Create inserts a new client. A normalized phone collision maps to
// ErrDuplicatePhone.
func (r *Repository) Create(ctx context.Context, c Client) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO clients (name, phone, phone_normalized, whatsapp, city, email, address, date_added)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
		RETURNING id`,
		c.Name, c.Phone, c.PhoneNormalized, c.Whatsapp, c.City, c.Email, c.Address, c.DateAdded).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicatePhone
		}
		return 0, err
	}
	return id, nil
}

// Update rewrites the editable client fields.
func (r *Repository) Update(ctx context.Context, c Client) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET name = $2, phone = $3, phone_normalized = $4, whatsapp = $5,
			city = $6, email = NULLIF($7, ''), address = NULLIF($8, '')
		WHERE id = $1`,
		c.ID, c.Name, c.Phone, c.PhoneNormalized, c.Whatsapp, c.City, c.Email, c.Address)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePhone
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the client. The foreign key from orders blocks deletion
// of clients with order history; that surfaces as ErrHasOrders.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrHasOrders
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one client.
func (r *Repository) Get(ctx context.Context, id int64) (*Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

// List returns a page of clients matching the search term against name or
// phone, newest first, plus the total match count.
func (r *Repository) List(ctx context.Context, search string, p shared.Pagination) ([]Client, int, error) {
	pattern := "%" + search + "%"
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM clients
		WHERE ($1 = '%%' OR name ILIKE $1 OR phone ILIKE $1 OR phone_normalized ILIKE $1)`, pattern).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE ($1 = '%%' OR name ILIKE $1 OR phone ILIKE $1 OR phone_normalized ILIKE $1)
		ORDER BY date_added DESC, id DESC
		LIMIT $2 OFFSET $3`, pattern, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// History returns the client's orders, most recent first.
func (r *Repository) History(ctx context.Context, clientID int64) ([]OrderSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.date, o.status, o.total, o.advance, o.balance,
			(SELECT COUNT(*) FROM order_items i WHERE i.order_id = o.id)
		FROM orders o
		WHERE o.client_id = $1
		ORDER BY o.date DESC, o.id DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []OrderSummary{}
	for rows.Next() {
		var s OrderSummary
		if err := rows.Scan(&s.ID, &s.Date, &s.Status, &s.Total, &s.Advance, &s.Balance, &s.ItemCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanClient(row pgx.Row) (*Client, error) {
	var (
		c       Client
		email   *string
		address *string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.PhoneNormalized, &c.Whatsapp, &c.City,
		&email, &address, &c.TotalOrders, &c.TotalSpent, &c.DateAdded)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if email != nil {
		c.Email = *email
	}
	if address != nil {
		c.Address = *address
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ RepositoryPort = (*Repository)(nil)
