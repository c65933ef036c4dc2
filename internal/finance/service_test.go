package finance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/importpro/importpro/internal/shared"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	entries      []Entry
	summary      Summary
	summaryCalls int
	nextID       int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{nextID: 1}
}

func (m *mockRepository) Append(ctx context.Context, e Entry) (int64, error) {
	id := m.nextID
	m.nextID++
	e.ID = id
	m.entries = append(m.entries, e)
	return id, nil
}

func (m *mockRepository) List(ctx context.Context, filter LedgerFilter, p shared.Pagination) ([]Entry, int, error) {
	result := []Entry{}
	for _, e := range m.entries {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		result = append(result, e)
	}
	return result, len(result), nil
}

func (m *mockRepository) Summary(ctx context.Context) (*Summary, error) {
	m.summaryCalls++
	copied := m.summary
	return &copied, nil
}

func redisCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, ttl)
}

// ============================================================================
// TESTS
// ============================================================================

func TestEntryValidate(t *testing.T) {
	valid := Entry{Type: EntryIncome, Category: CategorySale, Amount: 100}
	assert.NoError(t, valid.Validate())

	badType := valid
	badType.Type = "TRANSFER"
	assert.ErrorIs(t, badType.Validate(), ErrInvalidEntry)

	badCategory := valid
	badCategory.Category = "LOYER"
	assert.ErrorIs(t, badCategory.Validate(), ErrInvalidEntry)

	zeroAmount := valid
	zeroAmount.Amount = 0
	assert.ErrorIs(t, zeroAmount.Validate(), ErrInvalidEntry)
}

func TestGetSummaryUsesCache(t *testing.T) {
	repo := newMockRepository()
	repo.summary = Summary{TotalIncome: 500000, TotalExpense: 360000, Balance: 140000}
	svc := NewService(repo, redisCache(t, time.Minute), nil, testLogger())

	first, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(500000), first.TotalIncome)
	assert.Equal(t, 1, repo.summaryCalls)

	// Second read is served from cache.
	second, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Balance, second.Balance)
	assert.Equal(t, 1, repo.summaryCalls)
}

func TestInvalidateSummaryForcesReload(t *testing.T) {
	repo := newMockRepository()
	repo.summary = Summary{TotalIncome: 500000}
	svc := NewService(repo, redisCache(t, time.Minute), nil, testLogger())

	_, err := svc.GetSummary(context.Background())
	require.NoError(t, err)

	repo.summary.TotalIncome = 600000
	svc.InvalidateSummary(context.Background())

	reloaded, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(600000), reloaded.TotalIncome)
	assert.Equal(t, 2, repo.summaryCalls)
}

func TestGetSummaryWithoutCache(t *testing.T) {
	repo := newMockRepository()
	repo.summary = Summary{Balance: 42}
	svc := NewService(repo, nil, nil, testLogger())

	summary, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(42), summary.Balance)
}

func TestWarmSummaryPopulatesCache(t *testing.T) {
	repo := newMockRepository()
	repo.summary = Summary{TotalIncome: 900}
	svc := NewService(repo, redisCache(t, time.Minute), nil, testLogger())

	require.NoError(t, svc.WarmSummary(context.Background()))
	assert.Equal(t, 1, repo.summaryCalls)

	// Warm load means the first read hits the cache only.
	summary, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(900), summary.TotalIncome)
	assert.Equal(t, 1, repo.summaryCalls)
}

func TestAppendEntryDefaultsDateAndBumps(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, redisCache(t, time.Minute), nil, testLogger())

	entry, err := svc.AppendEntry(context.Background(), Entry{
		Type:        EntryExpense,
		Category:    CategoryCustoms,
		Amount:      25000,
		Description: "Dédouanement conteneur",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), entry.ID)
	assert.False(t, entry.Date.IsZero())
	require.Len(t, repo.entries, 1)
}

func TestAppendEntryRejectsInvalid(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil, testLogger())

	_, err := svc.AppendEntry(context.Background(), Entry{Type: EntryIncome, Category: CategorySale, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidEntry)
	assert.Empty(t, repo.entries)
}

func TestListLedgerFilters(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil, testLogger())

	for _, e := range []Entry{
		{Type: EntryIncome, Category: CategorySale, Amount: 7200, Description: "Avance"},
		{Type: EntryIncome, Category: CategoryTransport, Amount: 2000, Description: "Livraison"},
		{Type: EntryExpense, Category: CategoryStockPurchase, Amount: 360000, Description: "Achat"},
	} {
		_, err := svc.AppendEntry(context.Background(), e)
		require.NoError(t, err)
	}

	incomes, total, err := svc.ListLedger(context.Background(), LedgerFilter{Type: EntryIncome}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, incomes, 2)

	sales, _, err := svc.ListLedger(context.Background(), LedgerFilter{Type: EntryIncome, Category: CategorySale}, 1)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "Avance", sales[0].Description)
}
