package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rolegate/rolegate/internal/shared"
	_ "github.com/rolegate/rolegate/testing"
)

func newMiddlewareHarness(t *testing.T, inner http.Handler) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := MiddlewareConfig{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		SessionManager: shared.NewSessionManager(client, "rolegate_session", "secret", time.Hour, false),
		CSRFManager:    shared.NewCSRFManager("csrf-secret"),
	}
	handler := inner
	stack := MiddlewareStack(cfg)
	for i := len(stack) - 1; i >= 0; i-- {
		handler = stack[i](handler)
	}
	return handler, mr
}

func TestSessionCommittedWhenHandlerWritesNothing(t *testing.T) {
	handler, mr := newMiddlewareHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			t.Error("session missing from context")
			return
		}
		// Mutate the session without touching the response.
		sess.Set("last_seen", "now")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "rolegate_session" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected session cookie, got %v", rec.Result().Cookies())
	}
	if !mr.Exists("session:" + cookie.Value) {
		t.Fatalf("session %s not persisted in redis", cookie.Value)
	}
}

func TestSessionCommittedBeforeFirstBodyByte(t *testing.T) {
	handler, _ := newMiddlewareHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "rolegate_session" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected session cookie alongside the response")
	}
}
