package catalog

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/importpro/importpro/internal/groupage"
	"github.com/importpro/importpro/internal/shared"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockRepository struct {
	articles map[int64]*Article
	nextID   int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{articles: make(map[int64]*Article), nextID: 1}
}

func (m *mockRepository) Create(ctx context.Context, a Article) (int64, error) {
	id := m.nextID
	m.nextID++
	a.ID = id
	m.articles[id] = &a
	return id, nil
}

func (m *mockRepository) Update(ctx context.Context, a Article) error {
	if _, ok := m.articles[a.ID]; !ok {
		return ErrNotFound
	}
	m.articles[a.ID] = &a
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.articles[id]; !ok {
		return ErrNotFound
	}
	delete(m.articles, id)
	return nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Article, error) {
	a, ok := m.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *mockRepository) List(ctx context.Context, search, category string, p shared.Pagination) ([]Article, int, error) {
	result := []Article{}
	for _, a := range m.articles {
		if search != "" && !strings.Contains(strings.ToLower(a.Name), strings.ToLower(search)) {
			continue
		}
		if category != "" && a.Category != category {
			continue
		}
		result = append(result, *a)
	}
	return result, len(result), nil
}

func (m *mockRepository) Categories(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	for _, a := range m.articles {
		seen[a.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func newTestService(t *testing.T) (*Service, *mockRepository) {
	t.Helper()
	repo := newMockRepository()
	return NewService(repo, nil, testLogger()), repo
}

func TestCreateArticleTrimsFields(t *testing.T) {
	svc, _ := newTestService(t)

	a, err := svc.Create(context.Background(), ArticleRequest{
		Name:     "  Riz parfumé  ",
		Category: " Alimentation ",
		Supplier: " Guangzhou Trading ",
	})
	require.NoError(t, err)

	assert.Equal(t, "Riz parfumé", a.Name)
	assert.Equal(t, "Alimentation", a.Category)
	assert.Equal(t, "Guangzhou Trading", a.Supplier)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestCreateArticleValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), ArticleRequest{Name: "", Category: "Alimentation"})
	assert.ErrorIs(t, err, ErrInvalidArticle)

	_, err = svc.Create(context.Background(), ArticleRequest{Name: "Riz", Category: "  "})
	assert.ErrorIs(t, err, ErrInvalidArticle)
}

func TestUpdateArticleRewrites(t *testing.T) {
	svc, _ := newTestService(t)
	created, err := svc.Create(context.Background(), ArticleRequest{Name: "Riz", Category: "Alimentation", Description: "25kg"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, ArticleRequest{Name: "Riz brisé", Category: "Alimentation"})
	require.NoError(t, err)

	assert.Equal(t, "Riz brisé", updated.Name)
	// Update is a full rewrite: omitted fields are cleared.
	assert.Empty(t, updated.Description)
}

func TestDeleteArticle(t *testing.T) {
	svc, _ := newTestService(t)
	created, err := svc.Create(context.Background(), ArticleRequest{Name: "Riz", Category: "Alimentation"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), created.ID), ErrNotFound)
}

func TestCategories(t *testing.T) {
	svc, _ := newTestService(t)
	for _, req := range []ArticleRequest{
		{Name: "Riz", Category: "Alimentation"},
		{Name: "Telephone", Category: "Electronique"},
		{Name: "Huile", Category: "Alimentation"},
	} {
		_, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
	}

	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alimentation", "Electronique"}, categories)
}

func TestArticleTemplate(t *testing.T) {
	svc, _ := newTestService(t)
	created, err := svc.Create(context.Background(), ArticleRequest{
		Name:     "Riz parfumé",
		Category: "Alimentation",
		Supplier: "Guangzhou Trading",
	})
	require.NoError(t, err)

	tpl, err := svc.ArticleTemplate(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, tpl.ID)
	assert.Equal(t, "Riz parfumé", tpl.Name)
	assert.Equal(t, "Guangzhou Trading", tpl.Supplier)
}

func TestArticleTemplateMissingMapsToGroupageNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ArticleTemplate(context.Background(), 404)
	assert.ErrorIs(t, err, groupage.ErrNotFound)
}
