package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/importpro/importpro/internal/finance"
	"github.com/importpro/importpro/internal/platform/db"
)

// DeliveryUpdate carries the order mutation applied when a delivery is
// processed.
type DeliveryUpdate struct {
	OrderID        int64
	Status         string
	DriverName     string
	VehicleNumber  string
	Phone          string
	Address        string
	Note           string
	DeliveredAt    time.Time
	DeliveryFee    float64
	Balance        float64
	IsDeliveryPaid bool
	PaymentMethod  string
}

// RepositoryPort abstracts dispatch storage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, orderID int64) (*Delivery, error)
	ListPending(ctx context.Context, search string) ([]Delivery, error)
	ListHistory(ctx context.Context, search string) ([]Delivery, error)
	Slip(ctx context.Context, orderID int64) (*Slip, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	ApplyDelivery(ctx context.Context, u DeliveryUpdate) error
	AppendLedgerEntry(ctx context.Context, e finance.Entry) (int64, error)
}

// Repository reads and mutates orders from the dispatch point of view.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const deliveryColumns = `o.id, o.client_id, c.name, c.phone, o.date, o.status, o.total, o.advance, o.balance,
	o.delivery_fee, o.is_delivery_paid, COALESCE(o.payment_method, ''),
	COALESCE(o.driver_name, ''), COALESCE(o.vehicle_number, ''), COALESCE(o.delivery_note, ''), o.delivery_date,
	(SELECT COUNT(*) FROM order_items i WHERE i.order_id = o.id)`

// Get loads one order as a dispatch row.
func (r *Repository) Get(ctx context.Context, orderID int64) (*Delivery, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+`
		FROM orders o JOIN clients c ON c.id = o.client_id
		WHERE o.id = $1`, orderID)
	return scanDelivery(row)
}

// ListPending returns READY orders awaiting dispatch, oldest first, with
// an optional search over client name and phone.
func (r *Repository) ListPending(ctx context.Context, search string) ([]Delivery, error) {
	return r.list(ctx, `o.status = 'READY' AND ($1 = '%%' OR c.name ILIKE $1 OR c.phone ILIKE $1)
		ORDER BY o.date ASC, o.id ASC`, search)
}

// ListHistory returns DELIVERED orders, most recently delivered first.
func (r *Repository) ListHistory(ctx context.Context, search string) ([]Delivery, error) {
	return r.list(ctx, `o.status = 'DELIVERED' AND ($1 = '%%' OR c.name ILIKE $1 OR c.phone ILIKE $1)
		ORDER BY o.delivery_date DESC NULLS LAST, o.id DESC`, search)
}

func (r *Repository) list(ctx context.Context, tail, search string) ([]Delivery, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+deliveryColumns+`
		FROM orders o JOIN clients c ON c.id = o.client_id
		WHERE `+tail, "%"+search+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Slip builds the delivery slip for one order.
func (r *Repository) Slip(ctx context.Context, orderID int64) (*Slip, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT o.id, c.name, c.phone, COALESCE(o.delivery_address, COALESCE(c.address, '')),
			o.date, o.delivery_date, COALESCE(o.driver_name, ''),
			o.total, o.advance, o.balance, o.delivery_fee
		FROM orders o JOIN clients c ON c.id = o.client_id
		WHERE o.id = $1`, orderID)

	var s Slip
	err := row.Scan(&s.OrderID, &s.ClientName, &s.ClientPhone, &s.Address,
		&s.Date, &s.DeliveredAt, &s.DriverName,
		&s.Total, &s.Advance, &s.Balance, &s.DeliveryFee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.AmountDue = s.Balance + s.DeliveryFee

	rows, err := r.pool.Query(ctx, `
		SELECT product_name, unit, unit_price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s.Items = []SlipItem{}
	for rows.Next() {
		var item SlipItem
		if err := rows.Scan(&item.ProductName, &item.Unit, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		item.LineTotal = item.UnitPrice * float64(item.Quantity)
		s.Items = append(s.Items, item)
	}
	return &s, rows.Err()
}

func (t *txRepo) ApplyDelivery(ctx context.Context, u DeliveryUpdate) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET status = $2, driver_name = $3, vehicle_number = NULLIF($4, ''),
			delivery_phone = NULLIF($5, ''), delivery_address = NULLIF($6, ''), delivery_note = NULLIF($7, ''),
			delivery_date = $8, delivery_fee = $9, balance = $10, is_delivery_paid = $11,
			payment_method = NULLIF($12, '')
		WHERE id = $1`,
		u.OrderID, u.Status, u.DriverName, u.VehicleNumber, u.Phone, u.Address, u.Note,
		u.DeliveredAt, u.DeliveryFee, u.Balance, u.IsDeliveryPaid, u.PaymentMethod)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) AppendLedgerEntry(ctx context.Context, e finance.Entry) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO ledger_transactions (date, type, category, amount, description, ref_module, ref_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, 0))
		RETURNING id`,
		e.Date, e.Type, e.Category, e.Amount, e.Description, e.RefModule, e.RefID).Scan(&id)
	return id, err
}

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	err := row.Scan(&d.OrderID, &d.ClientID, &d.ClientName, &d.ClientPhone, &d.Date, &d.Status,
		&d.Total, &d.Advance, &d.Balance, &d.DeliveryFee, &d.IsDeliveryPaid, &d.PaymentMethod,
		&d.DriverName, &d.VehicleNumber, &d.Note, &d.DeliveredAt, &d.ItemCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

var _ RepositoryPort = (*Repository)(nil)
