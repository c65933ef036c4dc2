package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/importpro/importpro/internal/observability"
	"github.com/importpro/importpro/internal/platform/httpx"
	"github.com/importpro/importpro/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics
}

// MiddlewareStack builds the middleware chain in the order it must run:
// request identity, session, recovery, timeout, headers, compression,
// rate limiting, CSRF, metrics.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	stack := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		cfg.sessionLoader,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		cfg.secureHeaders(),
		middleware.Compress(5),
		httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		cfg.csrfGuard,
	}
	if cfg.Metrics != nil {
		stack = append(stack, cfg.Metrics.Middleware)
	}
	return stack
}

// sessionLoader attaches the redis session to the request context and commits
// the cookie before the first header write.
func (cfg MiddlewareConfig) sessionLoader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := cfg.SessionManager.Load(ctx, r)
		if err != nil {
			cfg.Logger.Error("failed to load session", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		ctx = shared.ContextWithSession(ctx, sess)
		r = r.WithContext(ctx)

		wrapped := &committingWriter{
			ResponseWriter: w,
			sess:           sess,
			manager:        cfg.SessionManager,
			ctx:            ctx,
			req:            r,
		}
		next.ServeHTTP(wrapped, r)
	})
}

// csrfGuard rejects state-changing requests that do not echo the session's
// CSRF token. The token travels in a header only; every client speaks JSON.
func (cfg MiddlewareConfig) csrfGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "session required")
			return
		}
		token := r.Header.Get(shared.CSRFHeader)
		if err := cfg.CSRFManager.VerifyToken(r.Context(), sess, token); err != nil {
			cfg.Logger.Warn("csrf validation failed", slog.String("path", r.URL.Path))
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "invalid csrf token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (cfg MiddlewareConfig) secureHeaders() func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sec.Process(w, r); err != nil {
				cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type committingWriter struct {
	http.ResponseWriter
	sess          *shared.Session
	manager       *shared.SessionManager
	ctx           context.Context
	req           *http.Request
	headerWritten bool
}

func (w *committingWriter) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		_ = w.manager.Commit(w.ctx, w.ResponseWriter, w.req, w.sess)
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *committingWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}
