package authapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reel/cmd/identity"
	"reel/cmd/internal/auth/session"
)

// countingStore records GetUserByID calls so tests can assert the
// middleware short-circuits before any lookup.
type countingStore struct {
	*identity.MemoryStore
	lookups int
}

func (s *countingStore) GetUserByID(ctx context.Context, id string) (identity.User, error) {
	s.lookups++
	return s.MemoryStore.GetUserByID(ctx, id)
}

func newMiddlewareEnv(t *testing.T) (*Handler, *countingStore, *session.Service) {
	t.Helper()
	t.Setenv("REEL_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("REEL_ARGON2_ITERATIONS", "1")
	t.Setenv("REEL_ARGON2_PARALLELISM", "1")

	sessCfg := session.DefaultConfig()
	sessCfg.AccessSecret = []byte(strings.Repeat("a", 32))
	sessCfg.RefreshSecret = []byte(strings.Repeat("r", 32))

	users := &countingStore{MemoryStore: identity.NewMemoryStore()}
	sessions, err := session.NewService(sessCfg, session.NewMemoryStore())
	if err != nil {
		t.Fatalf("session.NewService: %v", err)
	}

	cfg := LoadConfigFromEnv()
	h, err := NewHandler(nil, cfg, users, sessions)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h, users, sessions
}

func protectedProbe(h *Handler, sawUser *bool) http.Handler {
	return h.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, *sawUser = UserFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestAuthenticate_NoTokenNoLookup(t *testing.T) {
	h, users, _ := newMiddlewareEnv(t)

	var sawUser bool
	rr := httptest.NewRecorder()
	protectedProbe(h, &sawUser).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if users.lookups != 0 {
		t.Fatalf("middleware hit the store %d times for a tokenless request", users.lookups)
	}
	if sawUser {
		t.Fatalf("inner handler ran without a token")
	}
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	h, users, _ := newMiddlewareEnv(t)

	var sawUser bool
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()
	protectedProbe(h, &sawUser).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if users.lookups != 0 {
		t.Fatalf("garbage token reached the store")
	}
}

func TestAuthenticate_CookiePreferredOverHeader(t *testing.T) {
	h, users, sessions := newMiddlewareEnv(t)

	u, err := users.CreateUser(context.Background(), identity.CreateUserInput{
		Username: "alice", Email: "alice@example.com", FullName: "Alice",
		Password: "pw-secret-1", Now: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	pair, err := sessions.Issue(context.Background(), time.Now().UTC(), u.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var sawUser bool
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: h.cfg.AccessCookieName, Value: pair.AccessToken})
	req.Header.Set("Authorization", "Bearer garbage")
	rr := httptest.NewRecorder()
	protectedProbe(h, &sawUser).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if !sawUser {
		t.Fatalf("user not attached to context")
	}
}

func TestAuthenticate_BearerFallback(t *testing.T) {
	h, users, sessions := newMiddlewareEnv(t)

	u, err := users.CreateUser(context.Background(), identity.CreateUserInput{
		Username: "alice", Email: "alice@example.com", FullName: "Alice",
		Password: "pw-secret-1", Now: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	pair, err := sessions.Issue(context.Background(), time.Now().UTC(), u.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var sawUser bool
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rr := httptest.NewRecorder()
	protectedProbe(h, &sawUser).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if !sawUser {
		t.Fatalf("user not attached to context")
	}
}

func TestAuthenticate_RefreshTokenRejected(t *testing.T) {
	h, users, sessions := newMiddlewareEnv(t)

	u, err := users.CreateUser(context.Background(), identity.CreateUserInput{
		Username: "alice", Email: "alice@example.com", FullName: "Alice",
		Password: "pw-secret-1", Now: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	pair, err := sessions.Issue(context.Background(), time.Now().UTC(), u.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var sawUser bool
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rr := httptest.NewRecorder()
	protectedProbe(h, &sawUser).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token passed the access middleware: %d", rr.Code)
	}
}
