package groupage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/importpro/importpro/internal/finance"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	groupages     map[int64]*Groupage
	products      map[int64]*Product
	ledger        []finance.Entry
	nextGroupage  int64
	nextProduct   int64
	nextOption    int64
	txError       error
	deletedGroups []int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		groupages:    make(map[int64]*Groupage),
		products:     make(map[int64]*Product),
		nextGroupage: 1,
		nextProduct:  1,
		nextOption:   1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(ctx, &mockTxRepo{mock: m})
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Groupage, error) {
	g, ok := m.groupages[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *g
	copied.Products = nil
	for _, p := range m.products {
		if p.GroupageID == id {
			copied.Products = append(copied.Products, *p)
		}
	}
	return &copied, nil
}

func (m *mockRepository) List(ctx context.Context) ([]Groupage, error) {
	result := []Groupage{}
	for _, g := range m.groupages {
		result = append(result, *g)
	}
	return result, nil
}

func (m *mockRepository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	copied.SellingOptions = append([]SellingOption(nil), p.SellingOptions...)
	return &copied, nil
}

type mockTxRepo struct {
	mock *mockRepository
}

func (tx *mockTxRepo) InsertGroupage(ctx context.Context, g Groupage) (int64, error) {
	id := tx.mock.nextGroupage
	tx.mock.nextGroupage++
	g.ID = id
	tx.mock.groupages[id] = &g
	return id, nil
}

func (tx *mockTxRepo) UpdateGroupage(ctx context.Context, g Groupage) error {
	if _, ok := tx.mock.groupages[g.ID]; !ok {
		return ErrNotFound
	}
	tx.mock.groupages[g.ID] = &g
	return nil
}

func (tx *mockTxRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	g, ok := tx.mock.groupages[id]
	if !ok {
		return ErrNotFound
	}
	g.Status = status
	return nil
}

func (tx *mockTxRepo) DeleteGroupage(ctx context.Context, id int64) (int64, error) {
	if _, ok := tx.mock.groupages[id]; !ok {
		return 0, nil
	}
	delete(tx.mock.groupages, id)
	for pid, p := range tx.mock.products {
		if p.GroupageID == id {
			delete(tx.mock.products, pid)
		}
	}
	tx.mock.deletedGroups = append(tx.mock.deletedGroups, id)
	return 1, nil
}

func (tx *mockTxRepo) InsertProduct(ctx context.Context, p Product) (int64, error) {
	id := tx.mock.nextProduct
	tx.mock.nextProduct++
	p.ID = id
	tx.mock.products[id] = &p
	return id, nil
}

func (tx *mockTxRepo) ReplaceOptions(ctx context.Context, productID int64, opts []SellingOption) error {
	p, ok := tx.mock.products[productID]
	if !ok {
		return ErrNotFound
	}
	replaced := make([]SellingOption, 0, len(opts))
	for _, opt := range opts {
		opt.ID = tx.mock.nextOption
		tx.mock.nextOption++
		opt.ProductID = productID
		replaced = append(replaced, opt)
	}
	p.SellingOptions = replaced
	return nil
}

func (tx *mockTxRepo) UpdateProductSellingPrice(ctx context.Context, productID int64, price float64) error {
	p, ok := tx.mock.products[productID]
	if !ok {
		return ErrNotFound
	}
	p.SellingPrice = price
	return nil
}

func (tx *mockTxRepo) AppendLedgerEntry(ctx context.Context, e finance.Entry) (int64, error) {
	tx.mock.ledger = append(tx.mock.ledger, e)
	return int64(len(tx.mock.ledger)), nil
}

// ============================================================================
// MOCK ARTICLE SOURCE
// ============================================================================

type mockArticles struct {
	articles map[int64]ArticleTemplate
}

func (m *mockArticles) ArticleTemplate(ctx context.Context, id int64) (ArticleTemplate, error) {
	a, ok := m.articles[id]
	if !ok {
		return ArticleTemplate{}, ErrNotFound
	}
	return a, nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) InvalidateSummary(ctx context.Context) { c.calls++ }

// ============================================================================
// FIXTURES
// ============================================================================

func phoneDraft() ProductDraft {
	return ProductDraft{
		Name:          "Telephone X20",
		BuyingPrice:   15000,
		BuyingUnit:    "Piece",
		TransportFee:  500,
		CustomsFee:    300,
		QuantityTotal: 40,
		SellingOptions: []SellingOptionDraft{
			{Unit: "Piece", Price: 24000, IsDefault: true},
			{Unit: "Carton", Price: 220000},
		},
	}
}

func newTestSetup(t *testing.T) (*Service, *mockRepository, *mockArticles, *countingInvalidator) {
	t.Helper()
	repo := newMockRepository()
	articles := &mockArticles{articles: map[int64]ArticleTemplate{
		5: {ID: 5, Name: "Riz parfumé", Category: "Alimentation", Supplier: "Guangzhou Trading"},
	}}
	inv := &countingInvalidator{}
	svc := NewService(repo, articles, nil, inv, testLogger())
	return svc, repo, articles, inv
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateGroupageWithProducts(t *testing.T) {
	svc, repo, _, inv := newTestSetup(t)

	g, err := svc.Create(context.Background(), CreateGroupageRequest{
		Name:      "Groupage Mars",
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Products:  []ProductDraft{phoneDraft()},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusOpen, g.Status)
	require.Len(t, g.Products, 1)
	p := g.Products[0]
	// At creation the cost price is the bare buying price; the per unit
	// fees only apply to products added later.
	assert.Equal(t, float64(15000), p.CostPrice)
	assert.Zero(t, p.TransportFee)
	assert.Zero(t, p.CustomsFee)
	assert.Equal(t, float64(24000), p.SellingPrice)
	require.Len(t, p.SellingOptions, 2)
	assert.True(t, p.SellingOptions[0].IsDefault)
	assert.False(t, p.SellingOptions[1].IsDefault)
	assert.Equal(t, 1, inv.calls)
	assert.Empty(t, repo.ledger)
}

func TestCreateGroupageWithoutProducts(t *testing.T) {
	svc, _, _, inv := newTestSetup(t)

	g, err := svc.Create(context.Background(), CreateGroupageRequest{
		Name:      "Groupage vide",
		StartDate: time.Now(),
	})
	require.NoError(t, err)
	assert.Empty(t, g.Products)
	assert.Equal(t, 0, inv.calls)
}

func TestCreateGroupageInvalidStatus(t *testing.T) {
	svc, _, _, _ := newTestSetup(t)

	_, err := svc.Create(context.Background(), CreateGroupageRequest{
		Name:      "Groupage",
		StartDate: time.Now(),
		Status:    Status("SHIPPED"),
	})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCreateGroupageRejectsBadDraft(t *testing.T) {
	svc, repo, _, _ := newTestSetup(t)

	draft := phoneDraft()
	draft.SellingOptions = nil
	_, err := svc.Create(context.Background(), CreateGroupageRequest{
		Name:      "Groupage",
		StartDate: time.Now(),
		Products:  []ProductDraft{draft},
	})
	assert.ErrorIs(t, err, ErrInvalidDraft)
	assert.Empty(t, repo.groupages)
}

func TestAddProductFoldsFeesIntoCost(t *testing.T) {
	svc, repo, _, _ := newTestSetup(t)
	repo.groupages[1] = &Groupage{ID: 1, Name: "Groupage Mars", Status: StatusOpen}

	p, err := svc.AddProduct(context.Background(), 1, phoneDraft())
	require.NoError(t, err)

	assert.Equal(t, float64(15800), p.CostPrice)
	assert.Equal(t, float64(500), p.TransportFee)
	assert.Equal(t, float64(300), p.CustomsFee)
	assert.Equal(t, float64(24000), p.SellingPrice)
}

func TestCreateGroupageSellingPriceUsesFirstOption(t *testing.T) {
	svc, _, _, _ := newTestSetup(t)

	draft := phoneDraft()
	draft.SellingOptions = []SellingOptionDraft{
		{Unit: "Piece", Price: 9000},
		{Unit: "Lot", Price: 80000, IsDefault: true},
	}
	g, err := svc.Create(context.Background(), CreateGroupageRequest{
		Name:      "Groupage Juin",
		StartDate: time.Now(),
		Products:  []ProductDraft{draft},
	})
	require.NoError(t, err)

	require.Len(t, g.Products, 1)
	p := g.Products[0]
	// The headline price is always the first option's, even when another
	// option is flagged as the default sale unit.
	assert.Equal(t, float64(9000), p.SellingPrice)
	require.Len(t, p.SellingOptions, 2)
	assert.False(t, p.SellingOptions[0].IsDefault)
	assert.True(t, p.SellingOptions[1].IsDefault)
}

func TestAddProductSellingPriceUsesFirstOption(t *testing.T) {
	svc, repo, _, _ := newTestSetup(t)
	repo.groupages[1] = &Groupage{ID: 1, Name: "Groupage Mars", Status: StatusOpen}

	draft := phoneDraft()
	draft.SellingOptions = []SellingOptionDraft{
		{Unit: "Piece", Price: 9000},
		{Unit: "Lot", Price: 80000, IsDefault: true},
	}
	p, err := svc.AddProduct(context.Background(), 1, draft)
	require.NoError(t, err)

	assert.Equal(t, float64(9000), p.SellingPrice)
}

func TestAddProductUnknownGroupage(t *testing.T) {
	svc, _, _, _ := newTestSetup(t)

	_, err := svc.AddProduct(context.Background(), 99, phoneDraft())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNormalizeOptionsPromotesFirst(t *testing.T) {
	opts := normalizeOptions([]SellingOptionDraft{
		{Unit: "Piece", Price: 100},
		{Unit: "Carton", Price: 900},
	})
	assert.True(t, opts[0].IsDefault)
	assert.False(t, opts[1].IsDefault)
}

func TestNormalizeOptionsKeepsSingleDefault(t *testing.T) {
	opts := normalizeOptions([]SellingOptionDraft{
		{Unit: "Piece", Price: 100, IsDefault: true},
		{Unit: "Carton", Price: 900, IsDefault: true},
	})
	assert.True(t, opts[0].IsDefault)
	assert.False(t, opts[1].IsDefault)
}

func TestRecordPurchase(t *testing.T) {
	svc, repo, _, inv := newTestSetup(t)
	repo.groupages[1] = &Groupage{ID: 1, Name: "Groupage Mars", Status: StatusOpen}

	p, err := svc.RecordPurchase(context.Background(), RecordPurchaseRequest{
		GroupageID:      1,
		ArticleID:       5,
		BuyingPrice:     12000,
		BuyingUnit:      "Sac",
		Quantity:        30,
		SellingUnitEst:  "Sac",
		SellingPriceEst: 18000,
	})
	require.NoError(t, err)

	assert.Equal(t, "Riz parfumé", p.Name)
	assert.Equal(t, "Guangzhou Trading", p.Supplier)
	assert.Equal(t, float64(12000), p.CostPrice)
	assert.Equal(t, float64(18000), p.SellingPrice)
	require.Len(t, p.SellingOptions, 1)
	assert.True(t, p.SellingOptions[0].IsDefault)

	require.Len(t, repo.ledger, 1)
	entry := repo.ledger[0]
	assert.Equal(t, finance.EntryExpense, entry.Type)
	assert.Equal(t, finance.CategoryStockPurchase, entry.Category)
	assert.Equal(t, float64(360000), entry.Amount)
	assert.Equal(t, "Achat stock: Riz parfumé x30", entry.Description)
	assert.Equal(t, 1, inv.calls)
}

func TestRecordPurchaseSupplierOverride(t *testing.T) {
	svc, repo, _, _ := newTestSetup(t)
	repo.groupages[1] = &Groupage{ID: 1, Status: StatusOpen}

	p, err := svc.RecordPurchase(context.Background(), RecordPurchaseRequest{
		GroupageID:      1,
		ArticleID:       5,
		Supplier:        "Marché local",
		BuyingPrice:     12000,
		BuyingUnit:      "Sac",
		Quantity:        10,
		SellingUnitEst:  "Sac",
		SellingPriceEst: 18000,
	})
	require.NoError(t, err)
	assert.Equal(t, "Marché local", p.Supplier)
}

func TestRecordPurchaseUnknownArticle(t *testing.T) {
	svc, repo, _, _ := newTestSetup(t)
	repo.groupages[1] = &Groupage{ID: 1, Status: StatusOpen}

	_, err := svc.RecordPurchase(context.Background(), RecordPurchaseRequest{
		GroupageID:      1,
		ArticleID:       404,
		BuyingPrice:     12000,
		BuyingUnit:      "Sac",
		Quantity:        10,
		SellingUnitEst:  "Sac",
		SellingPriceEst: 18000,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, repo.ledger)
}

func TestUpdateMetaMergesFields(t *testing.T) {
	svc, repo, _, _ := newTestSetup(t)
	repo.groupages[1] = &Groupage{ID: 1, Name: "Ancien nom", Status: StatusOpen, OriginCountry: "Chine"}

	name := "Nouveau nom"
	status := StatusInTransit
	g, err := svc.UpdateMeta(context.Background(), 1, UpdateGroupageRequest{Name: &name, Status: &status})
	require.NoError(t, err)

	assert.Equal(t, "Nouveau nom", g.Name)
	assert.Equal(t, StatusInTransit, g.Status)
	assert.Equal(t, "Chine", g.OriginCountry)
}

func TestUpdateStatus(t *testing.T) {
	svc, repo, _, _ := newTestSetup(t)
	repo.groupages[1] = &Groupage{ID: 1, Status: StatusOpen}

	require.NoError(t, svc.UpdateStatus(context.Background(), 1, StatusArrived))
	assert.Equal(t, StatusArrived, repo.groupages[1].Status)

	err := svc.UpdateStatus(context.Background(), 1, Status("LOST"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDeleteGroupageCascades(t *testing.T) {
	svc, repo, _, _ := newTestSetup(t)
	repo.groupages[1] = &Groupage{ID: 1, Status: StatusOpen}
	repo.products[10] = &Product{ID: 10, GroupageID: 1, Name: "Telephone X20"}

	require.NoError(t, svc.Delete(context.Background(), 1))
	assert.Empty(t, repo.groupages)
	assert.Empty(t, repo.products)

	assert.ErrorIs(t, svc.Delete(context.Background(), 1), ErrNotFound)
}

func TestAddOptionDemotesPreviousDefault(t *testing.T) {
	svc, repo, _, _ := newTestSetup(t)
	repo.products[10] = &Product{
		ID: 10, GroupageID: 1, Name: "Telephone X20", SellingPrice: 24000,
		SellingOptions: []SellingOption{{ID: 1, ProductID: 10, Unit: "Piece", Price: 24000, IsDefault: true}},
	}

	p, err := svc.AddOption(context.Background(), 10, SellingOptionDraft{Unit: "Carton", Price: 220000, IsDefault: true})
	require.NoError(t, err)

	require.Len(t, p.SellingOptions, 2)
	opt, ok := p.DefaultOption()
	require.True(t, ok)
	assert.Equal(t, "Carton", opt.Unit)
	assert.Equal(t, float64(220000), p.SellingPrice)
}

func TestAddOptionValidation(t *testing.T) {
	svc, _, _, _ := newTestSetup(t)

	_, err := svc.AddOption(context.Background(), 10, SellingOptionDraft{Unit: "", Price: 100})
	assert.ErrorIs(t, err, ErrInvalidDraft)

	_, err = svc.AddOption(context.Background(), 10, SellingOptionDraft{Unit: "Piece", Price: 0})
	assert.ErrorIs(t, err, ErrInvalidDraft)
}

func TestRemoveOptionKeepsLast(t *testing.T) {
	svc, repo, _, _ := newTestSetup(t)
	repo.products[10] = &Product{
		ID: 10, GroupageID: 1,
		SellingOptions: []SellingOption{{ID: 1, ProductID: 10, Unit: "Piece", Price: 24000, IsDefault: true}},
	}

	_, err := svc.RemoveOption(context.Background(), 10, 1)
	assert.ErrorIs(t, err, ErrLastOption)
}

func TestRemoveDefaultOptionPromotesNext(t *testing.T) {
	svc, repo, _, _ := newTestSetup(t)
	repo.products[10] = &Product{
		ID: 10, GroupageID: 1, SellingPrice: 24000,
		SellingOptions: []SellingOption{
			{ID: 1, ProductID: 10, Unit: "Piece", Price: 24000, IsDefault: true},
			{ID: 2, ProductID: 10, Unit: "Carton", Price: 220000},
		},
	}

	p, err := svc.RemoveOption(context.Background(), 10, 1)
	require.NoError(t, err)

	require.Len(t, p.SellingOptions, 1)
	assert.True(t, p.SellingOptions[0].IsDefault)
	assert.Equal(t, "Carton", p.SellingOptions[0].Unit)
	assert.Equal(t, float64(220000), p.SellingPrice)
}

func TestSetDefaultOption(t *testing.T) {
	svc, repo, _, _ := newTestSetup(t)
	repo.products[10] = &Product{
		ID: 10, GroupageID: 1, SellingPrice: 24000,
		SellingOptions: []SellingOption{
			{ID: 1, ProductID: 10, Unit: "Piece", Price: 24000, IsDefault: true},
			{ID: 2, ProductID: 10, Unit: "Carton", Price: 220000},
		},
	}

	p, err := svc.SetDefaultOption(context.Background(), 10, 2)
	require.NoError(t, err)

	opt, ok := p.DefaultOption()
	require.True(t, ok)
	assert.Equal(t, "Carton", opt.Unit)
	assert.Equal(t, float64(220000), p.SellingPrice)

	_, err = svc.SetDefaultOption(context.Background(), 10, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}
