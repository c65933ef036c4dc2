package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/importpro/importpro/internal/shared"
)

// RepositoryPort abstracts article storage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, a Article) (int64, error)
	Update(ctx context.Context, a Article) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Article, error)
	List(ctx context.Context, search, category string, p shared.Pagination) ([]Article, int, error)
	Categories(ctx context.Context) ([]string, error)
}

// Repository stores articles in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const articleColumns = `id, name, category, COALESCE(description, ''), COALESCE(image_url, ''), COALESCE(supplier, ''), created_at`

// Create inserts a new article.
func (r *Repository) Create(ctx context.Context, a Article) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO articles (name, category, description, image_url, supplier, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING id`,
		a.Name, a.Category, a.Description, a.ImageURL, a.Supplier, a.CreatedAt).Scan(&id)
	return id, err
}

// Update rewrites the editable article fields.
func (r *Repository) Update(ctx context.Context, a Article) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE articles SET name = $2, category = $3, description = NULLIF($4, ''),
			image_url = NULLIF($5, ''), supplier = NULLIF($6, '')
		WHERE id = $1`,
		a.ID, a.Name, a.Category, a.Description, a.ImageURL, a.Supplier)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the article. Products copied from it keep their own
// data, so deletion is unconditional.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one article.
func (r *Repository) Get(ctx context.Context, id int64) (*Article, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	return scanArticle(row)
}

// List returns a page of articles matching the search term over name and
// description, optionally pinned to one category, plus the total count.
func (r *Repository) List(ctx context.Context, search, category string, p shared.Pagination) ([]Article, int, error) {
	pattern := "%" + search + "%"
	where := `($1 = '%%' OR name ILIKE $1 OR description ILIKE $1) AND ($2 = '' OR category = $2)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles WHERE `+where, pattern, category).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+articleColumns+` FROM articles WHERE `+where+`
		ORDER BY name ASC, id ASC
		LIMIT $3 OFFSET $4`, pattern, category, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

// Categories returns the distinct categories in use.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM articles ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanArticle(row pgx.Row) (*Article, error) {
	var a Article
	err := row.Scan(&a.ID, &a.Name, &a.Category, &a.Description, &a.ImageURL, &a.Supplier, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

var _ RepositoryPort = (*Repository)(nil)
