package clients

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

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
	clients    map[int64]*Client
	history    map[int64][]OrderSummary
	withOrders map[int64]bool
	nextID     int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		clients:    make(map[int64]*Client),
		history:    make(map[int64][]OrderSummary),
		withOrders: make(map[int64]bool),
		nextID:     1,
	}
}

func (m *mockRepository) Create(ctx context.Context, c Client) (int64, error) {
	for _, existing := range m.clients {
		if existing.PhoneNormalized == c.PhoneNormalized {
			return 0, ErrDuplicatePhone
		}
	}
	id := m.nextID
	m.nextID++
	c.ID = id
	m.clients[id] = &c
	return id, nil
}

func (m *mockRepository) Update(ctx context.Context, c Client) error {
	if _, ok := m.clients[c.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range m.clients {
		if id != c.ID && existing.PhoneNormalized == c.PhoneNormalized {
			return ErrDuplicatePhone
		}
	}
	m.clients[c.ID] = &c
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.clients[id]; !ok {
		return ErrNotFound
	}
	if m.withOrders[id] {
		return ErrHasOrders
	}
	delete(m.clients, id)
	return nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *mockRepository) List(ctx context.Context, search string, p shared.Pagination) ([]Client, int, error) {
	result := []Client{}
	for _, c := range m.clients {
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) &&
			!strings.Contains(c.Phone, search) {
			continue
		}
		result = append(result, *c)
	}
	return result, len(result), nil
}

func (m *mockRepository) History(ctx context.Context, clientID int64) ([]OrderSummary, error) {
	return m.history[clientID], nil
}

func newTestService(t *testing.T) (*Service, *mockRepository) {
	t.Helper()
	repo := newMockRepository()
	return NewService(repo, nil, testLogger(), "SN"), repo
}

// ============================================================================
// TESTS
// ============================================================================

func TestNormalizePhoneLocalNumber(t *testing.T) {
	normalized, err := NormalizePhone("77 123 45 67", "SN")
	require.NoError(t, err)
	assert.Equal(t, "+221771234567", normalized)
}

func TestNormalizePhoneInternationalPrefixWins(t *testing.T) {
	normalized, err := NormalizePhone("+33 6 12 34 56 78", "SN")
	require.NoError(t, err)
	assert.Equal(t, "+33612345678", normalized)
}

func TestNormalizePhoneRejectsGarbage(t *testing.T) {
	_, err := NormalizePhone("not a phone", "SN")
	assert.ErrorIs(t, err, ErrInvalidClient)

	_, err = NormalizePhone("", "SN")
	assert.ErrorIs(t, err, ErrInvalidClient)
}

func TestCreateClientDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.Create(context.Background(), CreateClientRequest{
		Name:  "Awa Diop",
		Phone: "77 123 45 67",
	})
	require.NoError(t, err)

	assert.Equal(t, "Awa Diop", c.Name)
	assert.Equal(t, "+221771234567", c.PhoneNormalized)
	// Whatsapp falls back to the phone, city to the placeholder.
	assert.Equal(t, "77 123 45 67", c.Whatsapp)
	assert.Equal(t, "Non renseigné", c.City)
	assert.Zero(t, c.TotalOrders)
	assert.Zero(t, c.TotalSpent)
}

func TestCreateClientExplicitWhatsappAndCity(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.Create(context.Background(), CreateClientRequest{
		Name:     "Awa Diop",
		Phone:    "77 123 45 67",
		Whatsapp: "+221781112233",
		City:     "Dakar",
	})
	require.NoError(t, err)
	assert.Equal(t, "+221781112233", c.Whatsapp)
	assert.Equal(t, "Dakar", c.City)
}

func TestCreateClientDuplicatePhone(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateClientRequest{Name: "Awa Diop", Phone: "771234567"})
	require.NoError(t, err)

	// Same number in a different formatting is still a duplicate.
	_, err = svc.Create(context.Background(), CreateClientRequest{Name: "A. Diop", Phone: "+221 77 123 45 67"})
	assert.ErrorIs(t, err, ErrDuplicatePhone)
}

func TestCreateClientMissingName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateClientRequest{Name: "  ", Phone: "771234567"})
	assert.ErrorIs(t, err, ErrInvalidClient)
}

func TestUpdateClientRenormalizesPhone(t *testing.T) {
	svc, repo := newTestService(t)
	created, err := svc.Create(context.Background(), CreateClientRequest{Name: "Awa Diop", Phone: "771234567"})
	require.NoError(t, err)

	phone := "78 999 88 77"
	updated, err := svc.Update(context.Background(), created.ID, UpdateClientRequest{Phone: &phone})
	require.NoError(t, err)

	assert.Equal(t, "+221789998877", updated.PhoneNormalized)
	assert.Equal(t, "Awa Diop", updated.Name)
	assert.Equal(t, repo.clients[created.ID].PhoneNormalized, updated.PhoneNormalized)
}

func TestUpdateClientInvalidPhone(t *testing.T) {
	svc, _ := newTestService(t)
	created, err := svc.Create(context.Background(), CreateClientRequest{Name: "Awa Diop", Phone: "771234567"})
	require.NoError(t, err)

	phone := "abc"
	_, err = svc.Update(context.Background(), created.ID, UpdateClientRequest{Phone: &phone})
	assert.ErrorIs(t, err, ErrInvalidClient)
}

func TestDeleteClientWithOrdersBlocked(t *testing.T) {
	svc, repo := newTestService(t)
	created, err := svc.Create(context.Background(), CreateClientRequest{Name: "Awa Diop", Phone: "771234567"})
	require.NoError(t, err)
	repo.withOrders[created.ID] = true

	err = svc.Delete(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrHasOrders)

	_, err = svc.Get(context.Background(), created.ID)
	assert.NoError(t, err)
}

func TestDeleteClient(t *testing.T) {
	svc, _ := newTestService(t)
	created, err := svc.Create(context.Background(), CreateClientRequest{Name: "Awa Diop", Phone: "771234567"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	_, err = svc.Get(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryUnknownClient(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.History(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistory(t *testing.T) {
	svc, repo := newTestService(t)
	created, err := svc.Create(context.Background(), CreateClientRequest{Name: "Awa Diop", Phone: "771234567"})
	require.NoError(t, err)
	repo.history[created.ID] = []OrderSummary{
		{ID: 9, Date: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), Status: "DELIVERED", Total: 60000, ItemCount: 2},
	}

	orders, err := svc.History(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(9), orders[0].ID)
}

func TestListSearch(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateClientRequest{Name: "Awa Diop", Phone: "771234567"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateClientRequest{Name: "Cheikh Ba", Phone: "781112233"})
	require.NoError(t, err)

	found, total, err := svc.List(context.Background(), "awa", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, "Awa Diop", found[0].Name)
}
