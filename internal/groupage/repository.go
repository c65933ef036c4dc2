package groupage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/importpro/importpro/internal/finance"
	"github.com/importpro/importpro/internal/platform/db"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Groupage, error)
	List(ctx context.Context) ([]Groupage, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertGroupage(ctx context.Context, g Groupage) (int64, error)
	UpdateGroupage(ctx context.Context, g Groupage) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	DeleteGroupage(ctx context.Context, id int64) (int64, error)
	InsertProduct(ctx context.Context, p Product) (int64, error)
	ReplaceOptions(ctx context.Context, productID int64, opts []SellingOption) error
	UpdateProductSellingPrice(ctx context.Context, productID int64, price float64) error
	AppendLedgerEntry(ctx context.Context, e finance.Entry) (int64, error)
}

// Repository persists groupages and their products in PostgreSQL.
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

const groupageColumns = `id, name, start_date, end_date, status, origin_country, transport_mode,
	min_advance_amount, is_shipping_included, estimated_transport_cost, estimated_customs_cost`

const productColumns = `id, groupage_id, name, buying_price, buying_unit, cost_price, selling_price,
	transport_fee, customs_fee, quantity_total, quantity_sold, image_url, supplier, date_added`

// Get loads one groupage with its products and selling options.
func (r *Repository) Get(ctx context.Context, id int64) (*Groupage, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+groupageColumns+` FROM groupages WHERE id = $1`, id)
	g, err := scanGroupage(row)
	if err != nil {
		return nil, err
	}
	products, err := r.productsFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	g.Products = products[id]
	if g.Products == nil {
		g.Products = []Product{}
	}
	return g, nil
}

// List returns every groupage with products attached, newest first.
func (r *Repository) List(ctx context.Context) ([]Groupage, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+groupageColumns+` FROM groupages ORDER BY start_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		groupages []Groupage
		ids       []int64
	)
	for rows.Next() {
		g, err := scanGroupage(rows)
		if err != nil {
			return nil, err
		}
		groupages = append(groupages, *g)
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Groupage{}, nil
	}

	products, err := r.productsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range groupages {
		groupages[i].Products = products[groupages[i].ID]
		if groupages[i].Products == nil {
			groupages[i].Products = []Product{}
		}
	}
	return groupages, nil
}

// GetProduct loads one product with its selling options.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, err
	}
	opts, err := r.optionsFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	p.SellingOptions = opts[id]
	if p.SellingOptions == nil {
		p.SellingOptions = []SellingOption{}
	}
	return p, nil
}

func (r *Repository) productsFor(ctx context.Context, groupageIDs []int64) (map[int64][]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE groupage_id = ANY($1) ORDER BY id`, groupageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byGroupage := make(map[int64][]Product)
	var productIDs []int64
	index := make(map[int64]*Product)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		byGroupage[p.GroupageID] = append(byGroupage[p.GroupageID], *p)
		productIDs = append(productIDs, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for gid := range byGroupage {
		for i := range byGroupage[gid] {
			index[byGroupage[gid][i].ID] = &byGroupage[gid][i]
		}
	}

	if len(productIDs) > 0 {
		opts, err := r.optionsFor(ctx, productIDs)
		if err != nil {
			return nil, err
		}
		for pid, list := range opts {
			if p, ok := index[pid]; ok {
				p.SellingOptions = list
			}
		}
	}
	for _, list := range byGroupage {
		for i := range list {
			if list[i].SellingOptions == nil {
				list[i].SellingOptions = []SellingOption{}
			}
		}
	}
	return byGroupage, nil
}

func (r *Repository) optionsFor(ctx context.Context, productIDs []int64) (map[int64][]SellingOption, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, unit, price, is_default FROM selling_options WHERE product_id = ANY($1) ORDER BY id`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]SellingOption)
	for rows.Next() {
		var opt SellingOption
		if err := rows.Scan(&opt.ID, &opt.ProductID, &opt.Unit, &opt.Price, &opt.IsDefault); err != nil {
			return nil, err
		}
		out[opt.ProductID] = append(out[opt.ProductID], opt)
	}
	return out, rows.Err()
}

func (t *txRepo) InsertGroupage(ctx context.Context, g Groupage) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO groupages (name, start_date, end_date, status, origin_country, transport_mode,
			min_advance_amount, is_shipping_included, estimated_transport_cost, estimated_customs_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		g.Name, g.StartDate, g.EndDate, g.Status, g.OriginCountry, g.TransportMode,
		g.MinAdvanceAmount, g.IsShippingIncluded, g.EstimatedTransportCost, g.EstimatedCustomsCost).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateGroupage(ctx context.Context, g Groupage) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE groupages SET name = $2, start_date = $3, end_date = $4, status = $5,
			origin_country = $6, transport_mode = $7, min_advance_amount = $8, is_shipping_included = $9
		WHERE id = $1`,
		g.ID, g.Name, g.StartDate, g.EndDate, g.Status,
		g.OriginCountry, g.TransportMode, g.MinAdvanceAmount, g.IsShippingIncluded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE groupages SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGroupage removes the groupage; products and selling options go with
// it through ON DELETE CASCADE. Orders and ledger entries referencing its
// products are intentionally left untouched.
func (t *txRepo) DeleteGroupage(ctx context.Context, id int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM groupages WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) InsertProduct(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO products (groupage_id, name, buying_price, buying_unit, cost_price, selling_price,
			transport_fee, customs_fee, quantity_total, quantity_sold, image_url, supplier, date_added)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13)
		RETURNING id`,
		p.GroupageID, p.Name, p.BuyingPrice, p.BuyingUnit, p.CostPrice, p.SellingPrice,
		p.TransportFee, p.CustomsFee, p.QuantityTotal, p.QuantitySold, p.ImageURL, p.Supplier, p.DateAdded).Scan(&id)
	return id, err
}

func (t *txRepo) ReplaceOptions(ctx context.Context, productID int64, opts []SellingOption) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM selling_options WHERE product_id = $1`, productID); err != nil {
		return err
	}
	for _, opt := range opts {
		if _, err := t.tx.Exec(ctx,
			`INSERT INTO selling_options (product_id, unit, price, is_default) VALUES ($1, $2, $3, $4)`,
			productID, opt.Unit, opt.Price, opt.IsDefault); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) UpdateProductSellingPrice(ctx context.Context, productID int64, price float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE products SET selling_price = $2 WHERE id = $1`, productID, price)
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
	date := e.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO ledger_transactions (date, type, category, amount, description, ref_module, ref_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, 0))
		RETURNING id`,
		date, e.Type, e.Category, e.Amount, e.Description, e.RefModule, e.RefID).Scan(&id)
	return id, err
}

func scanGroupage(row pgx.Row) (*Groupage, error) {
	var g Groupage
	err := row.Scan(&g.ID, &g.Name, &g.StartDate, &g.EndDate, &g.Status, &g.OriginCountry, &g.TransportMode,
		&g.MinAdvanceAmount, &g.IsShippingIncluded, &g.EstimatedTransportCost, &g.EstimatedCustomsCost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p        Product
		supplier *string
	)
	err := row.Scan(&p.ID, &p.GroupageID, &p.Name, &p.BuyingPrice, &p.BuyingUnit, &p.CostPrice, &p.SellingPrice,
		&p.TransportFee, &p.CustomsFee, &p.QuantityTotal, &p.QuantitySold, &p.ImageURL, &supplier, &p.DateAdded)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if supplier != nil {
		p.Supplier = *supplier
	}
	return &p, nil
}

var _ RepositoryPort = (*Repository)(nil)
