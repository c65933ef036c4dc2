package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/importpro/importpro/internal/finance"
	"github.com/importpro/importpro/internal/platform/db"
	"github.com/importpro/importpro/internal/shared"
)

// ListFilter narrows the order listing.
type ListFilter struct {
	Status     OrderStatus
	ClientID   int64
	GroupageID int64
}

// RepositoryPort abstracts order storage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, filter ListFilter, p shared.Pagination) ([]Order, int, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertItems(ctx context.Context, orderID int64, items []OrderItem) error
	ReserveStock(ctx context.Context, productID int64, qty int) error
	AddClientSpend(ctx context.Context, clientID int64, amount float64) error
	UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error
	SettleOrder(ctx context.Context, id int64, paymentMethod string) error
	AppendLedgerEntry(ctx context.Context, e finance.Entry) (int64, error)
}

// Repository persists orders in PostgreSQL.
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

const orderColumns = `id, client_id, groupage_id, date, status, total, advance, balance,
	delivery_fee, is_delivery_paid, payment_method,
	driver_name, vehicle_number, delivery_phone, delivery_address, delivery_note, delivery_date`

// Get loads one order with its items.
func (r *Repository) Get(ctx context.Context, id int64) (*Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	items, err := r.itemsFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	if o.Items == nil {
		o.Items = []OrderItem{}
	}
	return o, nil
}

// List returns a page of orders matching the filter, newest first, plus
// the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter, p shared.Pagination) ([]Order, int, error) {
	where := `($1 = '' OR status = $1) AND ($2 = 0 OR client_id = $2) AND ($3 = 0 OR groupage_id = $3)`
	args := []any{string(filter.Status), filter.ClientID, filter.GroupageID}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+where+` ORDER BY date DESC, id DESC LIMIT $4 OFFSET $5`,
		append(args, p.PerPage, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		orders []Order
		ids    []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return []Order{}, total, nil
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []OrderItem{}
		}
	}
	return orders, total, nil
}

func (r *Repository) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, product_name, unit, unit_price, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]OrderItem)
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Unit, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		out[item.OrderID] = append(out[item.OrderID], item)
	}
	return out, rows.Err()
}

func (t *txRepo) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (client_id, groupage_id, date, status, total, advance, balance,
			delivery_fee, is_delivery_paid, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		RETURNING id`,
		o.ClientID, o.GroupageID, o.Date, o.Status, o.Total, o.Advance, o.Balance,
		o.DeliveryFee, o.IsDeliveryPaid, o.PaymentMethod).Scan(&id)
	return id, err
}

func (t *txRepo) InsertItems(ctx context.Context, orderID int64, items []OrderItem) error {
	for _, item := range items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, unit, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, item.ProductID, item.ProductName, item.Unit, item.UnitPrice, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// ReserveStock bumps quantity_sold with an oversell guard. Zero affected
// rows means the product is gone or the remaining stock is short.
func (t *txRepo) ReserveStock(ctx context.Context, productID int64, qty int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products SET quantity_sold = quantity_sold + $2
		WHERE id = $1 AND quantity_sold + $2 <= quantity_total`, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (t *txRepo) AddClientSpend(ctx context.Context, clientID int64, amount float64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE clients SET total_spent = total_spent + $2, total_orders = total_orders + 1
		WHERE id = $1`, clientID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidOrder
	}
	return nil
}

func (t *txRepo) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SettleOrder(ctx context.Context, id int64, paymentMethod string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET balance = 0, payment_method = NULLIF($2, '')
		WHERE id = $1`, id, paymentMethod)
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

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o             Order
		paymentMethod *string
		driver        *string
		vehicle       *string
		phone         *string
		address       *string
		note          *string
	)
	err := row.Scan(&o.ID, &o.ClientID, &o.GroupageID, &o.Date, &o.Status, &o.Total, &o.Advance, &o.Balance,
		&o.DeliveryFee, &o.IsDeliveryPaid, &paymentMethod,
		&driver, &vehicle, &phone, &address, &note, &o.Delivery.DeliveredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if paymentMethod != nil {
		o.PaymentMethod = *paymentMethod
	}
	if driver != nil {
		o.Delivery.DriverName = *driver
	}
	if vehicle != nil {
		o.Delivery.VehicleNumber = *vehicle
	}
	if phone != nil {
		o.Delivery.Phone = *phone
	}
	if address != nil {
		o.Delivery.Address = *address
	}
	if note != nil {
		o.Delivery.Note = *note
	}
	return &o, nil
}

var _ RepositoryPort = (*Repository)(nil)
