package finance

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/importpro/importpro/internal/shared"
)

// LedgerFilter narrows the ledger listing.
type LedgerFilter struct {
	Type     EntryType
	Category Category
}

// RepositoryPort abstracts ledger storage for the service.
type RepositoryPort interface {
	Append(ctx context.Context, e Entry) (int64, error)
	List(ctx context.Context, filter LedgerFilter, p shared.Pagination) ([]Entry, int, error)
	Summary(ctx context.Context) (*Summary, error)
}

// Repository reads the append-only ledger and the stock counters.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append writes one ledger entry. Entries are never updated or deleted.
func (r *Repository) Append(ctx context.Context, e Entry) (int64, error) {
	date := e.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ledger_transactions (date, type, category, amount, description, ref_module, ref_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, 0))
		RETURNING id`,
		date, e.Type, e.Category, e.Amount, e.Description, e.RefModule, e.RefID).Scan(&id)
	return id, err
}

// List returns a page of ledger entries, newest first, plus the total
// match count.
func (r *Repository) List(ctx context.Context, filter LedgerFilter, p shared.Pagination) ([]Entry, int, error) {
	where := `($1 = '' OR type = $1) AND ($2 = '' OR category = $2)`
	args := []any{string(filter.Type), string(filter.Category)}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_transactions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, date, type, category, amount, description, COALESCE(ref_module, ''), COALESCE(ref_id, 0)
		FROM ledger_transactions WHERE `+where+`
		ORDER BY date DESC, id DESC
		LIMIT $3 OFFSET $4`, append(args, p.PerPage, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Date, &e.Type, &e.Category, &e.Amount,
			&e.Description, &e.RefModule, &e.RefID); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// Summary aggregates the ledger and the stock counters into the finance
// read model.
func (r *Repository) Summary(ctx context.Context) (*Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'INCOME'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'EXPENSE'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'INCOME' AND category = 'VENTE'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'INCOME' AND category = 'TRANSPORT'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'EXPENSE' AND category = 'ACHAT_STOCK'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'EXPENSE' AND category IN ('TRANSPORT', 'DOUANE')), 0)
		FROM ledger_transactions`).Scan(
		&s.TotalIncome, &s.TotalExpense,
		&s.IncomeSales, &s.IncomeDelivery,
		&s.ExpenseStock, &s.ExpenseTransportDuty)
	if err != nil {
		return nil, err
	}
	s.Balance = s.TotalIncome - s.TotalExpense
	s.IncomeOther = s.TotalIncome - s.IncomeSales - s.IncomeDelivery
	s.ExpenseOther = s.TotalExpense - s.ExpenseStock - s.ExpenseTransportDuty

	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity_sold), 0), COALESCE(SUM(quantity_total - quantity_sold), 0)
		FROM products`).Scan(&s.StockUnitsSold, &s.StockUnitsRemaining)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

var _ RepositoryPort = (*Repository)(nil)
