package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/importpro/importpro/internal/shared"
)

// ==== MOCK REPOSITORY ====

type mockRepository struct {
	users    map[string]*User
	sessions map[string]int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:    make(map[string]*User),
		sessions: make(map[string]int64),
	}
}

func (m *mockRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	user, ok := m.users[username]
	if !ok {
		return nil, errors.New("no rows")
	}
	return user, nil
}

func (m *mockRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("no rows")
}

func (m *mockRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	m.sessions[id] = userID
	return nil
}

func (m *mockRepository) DeleteSession(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

// ==== TEST SETUP ====

type commitOnWriteRecorder struct {
	http.ResponseWriter
	t         *testing.T
	sm        *shared.SessionManager
	sess      *shared.Session
	req       *http.Request
	committed bool
}

func (w *commitOnWriteRecorder) WriteHeader(statusCode int) {
	w.commit()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitOnWriteRecorder) Write(data []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(data)
}

func (w *commitOnWriteRecorder) commit() {
	if w.committed {
		return
	}
	w.committed = true
	require.NoError(w.t, w.sm.Commit(w.req.Context(), w.ResponseWriter, w.req, w.sess))
}

type testEnv struct {
	handler *Handler
	repo    *mockRepository
	sm      *shared.SessionManager
	router  chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sm := shared.NewSessionManager(client, "test_session", "session-secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")

	repo := newMockRepository()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users["amadou"] = &User{
		ID:           1,
		Username:     "amadou",
		Name:         "Amadou Ba",
		Role:         "ADMIN",
		PasswordHash: string(hash),
		IsActive:     true,
	}

	service := NewService(repo)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, service, service, sm, csrf)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sm.Load(req.Context(), req)
			require.NoError(t, err)
			req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
			// Commit before the first header write, mirroring the production
			// session middleware, so the cookie reaches the recorded response.
			cw := &commitOnWriteRecorder{ResponseWriter: w, t: t, sm: sm, sess: sess, req: req}
			next.ServeHTTP(cw, req)
			cw.commit()
		})
	})
	r.Route("/auth", handler.MountRoutes)

	return &testEnv{handler: handler, repo: repo, sm: sm, router: r}
}

func (e *testEnv) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func cookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test_session" {
			return c
		}
	}
	t.Fatal("session cookie missing")
	return nil
}

// ==== TESTS ====

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)

	rec := env.login(t, "amadou", "secret123")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, "amadou", resp.Username)
	assert.Equal(t, "ADMIN", resp.Role)
	assert.NotEmpty(t, resp.CSRFToken)

	cookie := cookieFrom(t, rec)
	assert.Contains(t, env.repo.sessions, cookie.Value)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.login(t, "amadou", "wrong-pass")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, env.repo.sessions)
}

func TestLoginUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.login(t, "nobody", "secret123")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	env.repo.users["amadou"].IsActive = false

	rec := env.login(t, "amadou", "secret123")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.login(t, "amadou", "ab")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeAfterLogin(t *testing.T) {
	env := newTestEnv(t)

	loginRec := env.login(t, "amadou", "secret123")
	cookie := cookieFrom(t, loginRec)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Amadou Ba", resp.Name)
}

func TestLogoutDestroysSession(t *testing.T) {
	env := newTestEnv(t)

	loginRec := env.login(t, "amadou", "secret123")
	cookie := cookieFrom(t, loginRec)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.repo.sessions)

	me := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	me.AddCookie(cookie)
	meRec := httptest.NewRecorder()
	env.router.ServeHTTP(meRec, me)
	assert.Equal(t, http.StatusUnauthorized, meRec.Code)
}

func TestCSRFTokenEndpoint(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["csrf_token"])
}
