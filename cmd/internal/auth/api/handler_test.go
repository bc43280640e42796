package authapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"reel/cmd/identity"
	"reel/cmd/internal/auth/session"
)

type testEnv struct {
	srv   *httptest.Server
	users *identity.MemoryStore
	now   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("REEL_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("REEL_ARGON2_ITERATIONS", "1")
	t.Setenv("REEL_ARGON2_PARALLELISM", "1")

	sessCfg := session.DefaultConfig()
	sessCfg.AccessSecret = []byte(strings.Repeat("a", 32))
	sessCfg.RefreshSecret = []byte(strings.Repeat("r", 32))

	users := identity.NewMemoryStore()
	sessions, err := session.NewService(sessCfg, session.NewMemoryStore())
	if err != nil {
		t.Fatalf("session.NewService: %v", err)
	}

	env := &testEnv{users: users, now: time.Now().UTC()}

	cfg := LoadConfigFromEnv()
	cfg.CookieSecure = false
	h, err := NewHandler(nil, cfg, users, sessions, WithClock(func() time.Time { return env.now }))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	r := chi.NewRouter()
	r.Mount("/api/v1/users", h.Routes())

	env.srv = httptest.NewServer(r)
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) post(t *testing.T, path string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return res
}

func decodeEnvelope(t *testing.T, res *http.Response) envelope {
	t.Helper()
	defer res.Body.Close()
	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func (e *testEnv) register(t *testing.T, username, email, password string) {
	t.Helper()
	res := e.post(t, "/api/v1/users/register", registerRequest{
		Username: username,
		Email:    email,
		FullName: username + " Test",
		Password: password,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", res.StatusCode)
	}
	res.Body.Close()
}

func (e *testEnv) login(t *testing.T, identifier, password string) []*http.Cookie {
	t.Helper()
	res := e.post(t, "/api/v1/users/login", loginRequest{Username: identifier, Password: password})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", res.StatusCode)
	}
	cookies := res.Cookies()
	res.Body.Close()
	return cookies
}

func cookieNamed(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	res := env.post(t, "/api/v1/users/register", registerRequest{
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Test",
		Password: "pw-secret-1",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", res.StatusCode)
	}
	e := decodeEnvelope(t, res)
	if !e.Success || e.Status != http.StatusCreated {
		t.Fatalf("envelope = %+v", e)
	}
	user, _ := e.Data.(map[string]any)
	if user["username"] != "alice" {
		t.Fatalf("data = %v", e.Data)
	}
	if _, leaked := user["password"]; leaked {
		t.Fatalf("response leaks password field")
	}
}

func TestRegister_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	res := env.post(t, "/api/v1/users/register", registerRequest{Username: "alice"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
	if e := decodeEnvelope(t, res); e.Success {
		t.Fatalf("error envelope has success=true")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "pw-secret-1")

	res := env.post(t, "/api/v1/users/register", registerRequest{
		Username: "ALICE",
		Email:    "other@example.com",
		FullName: "Other",
		Password: "pw-secret-2",
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", res.StatusCode)
	}
	res.Body.Close()
}

func TestLogin_SetsBothCookies(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "pw-secret-1")

	cookies := env.login(t, "alice", "pw-secret-1")
	access := cookieNamed(t, cookies, "accessToken")
	refresh := cookieNamed(t, cookies, "refreshToken")

	for _, c := range []*http.Cookie{access, refresh} {
		if !c.HttpOnly {
			t.Fatalf("cookie %q is not HttpOnly", c.Name)
		}
	}
	if access.Value == refresh.Value {
		t.Fatalf("access and refresh cookies carry the same token")
	}
}

func TestLogin_ByEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "pw-secret-1")

	res := env.post(t, "/api/v1/users/login", loginRequest{Email: "Alice@Example.com", Password: "pw-secret-1"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login by email status = %d, want 200", res.StatusCode)
	}
	res.Body.Close()
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "pw-secret-1")

	cases := []struct {
		name string
		req  loginRequest
		want int
	}{
		{"wrong password", loginRequest{Username: "alice", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", loginRequest{Username: "mallory", Password: "pw-secret-1"}, http.StatusNotFound},
		{"missing password", loginRequest{Username: "alice"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := env.post(t, "/api/v1/users/login", tc.req)
			if res.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", res.StatusCode, tc.want)
			}
			res.Body.Close()
		})
	}
}

func TestRefresh_FromCookie(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "pw-secret-1")
	cookies := env.login(t, "alice", "pw-secret-1")
	refresh := cookieNamed(t, cookies, "refreshToken")

	env.now = env.now.Add(time.Minute)
	res := env.post(t, "/api/v1/users/refresh-token", nil, refresh)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", res.StatusCode)
	}
	next := cookieNamed(t, res.Cookies(), "refreshToken")
	if next.Value == refresh.Value {
		t.Fatalf("refresh did not rotate the cookie")
	}
	res.Body.Close()

	// The consumed token is dead.
	env.now = env.now.Add(time.Minute)
	res = env.post(t, "/api/v1/users/refresh-token", nil, refresh)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed refresh status = %d, want 401", res.StatusCode)
	}
	res.Body.Close()
}

func TestRefresh_FromBody(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "pw-secret-1")
	cookies := env.login(t, "alice", "pw-secret-1")
	refresh := cookieNamed(t, cookies, "refreshToken")

	env.now = env.now.Add(time.Minute)
	res := env.post(t, "/api/v1/users/refresh-token", refreshRequest{RefreshToken: refresh.Value})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("refresh from body status = %d, want 200", res.StatusCode)
	}
	res.Body.Close()
}

func TestRefresh_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	res := env.post(t, "/api/v1/users/refresh-token", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh without token status = %d, want 401", res.StatusCode)
	}
	res.Body.Close()
}

func TestLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "pw-secret-1")
	cookies := env.login(t, "alice", "pw-secret-1")
	access := cookieNamed(t, cookies, "accessToken")
	refresh := cookieNamed(t, cookies, "refreshToken")

	res := env.post(t, "/api/v1/users/logout", nil, access)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", res.StatusCode)
	}
	for _, c := range res.Cookies() {
		if c.Value != "" || c.MaxAge >= 0 {
			t.Fatalf("logout left cookie %q alive", c.Name)
		}
	}
	res.Body.Close()

	// Refresh is blocked after logout.
	env.now = env.now.Add(time.Minute)
	res = env.post(t, "/api/v1/users/refresh-token", nil, refresh)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", res.StatusCode)
	}
	res.Body.Close()

	// The access token stays valid until it expires.
	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/v1/users/me", nil)
	req.AddCookie(access)
	meRes, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /me: %v", err)
	}
	if meRes.StatusCode != http.StatusOK {
		t.Fatalf("me after logout status = %d, want 200", meRes.StatusCode)
	}
	meRes.Body.Close()
}

func TestChangePassword_RevokesRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "old-secret-1")
	cookies := env.login(t, "alice", "old-secret-1")
	access := cookieNamed(t, cookies, "accessToken")
	refresh := cookieNamed(t, cookies, "refreshToken")

	res := env.post(t, "/api/v1/users/change-password", changePasswordRequest{
		OldPassword: "old-secret-1",
		NewPassword: "new-secret-1",
	}, access)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("change-password status = %d, want 200", res.StatusCode)
	}
	res.Body.Close()

	env.now = env.now.Add(time.Minute)
	res = env.post(t, "/api/v1/users/refresh-token", nil, refresh)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after password change status = %d, want 401", res.StatusCode)
	}
	res.Body.Close()

	env.login(t, "alice", "new-secret-1")
}

func TestChangePassword_WrongOld(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "old-secret-1")
	access := cookieNamed(t, env.login(t, "alice", "old-secret-1"), "accessToken")

	res := env.post(t, "/api/v1/users/change-password", changePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "new-secret-1",
	}, access)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("change-password wrong old status = %d, want 401", res.StatusCode)
	}
	res.Body.Close()
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "pw-secret-1")
	access := cookieNamed(t, env.login(t, "alice", "pw-secret-1"), "accessToken")

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/v1/users/me", nil)
	req.AddCookie(access)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /me: %v", err)
	}
	e := decodeEnvelope(t, res)
	if res.StatusCode != http.StatusOK || !e.Success {
		t.Fatalf("me status = %d envelope = %+v", res.StatusCode, e)
	}
	user, _ := e.Data.(map[string]any)
	if user["username"] != "alice" {
		t.Fatalf("me data = %v", e.Data)
	}
}

func TestMe_ExpiredAccessToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "pw-secret-1")
	access := cookieNamed(t, env.login(t, "alice", "pw-secret-1"), "accessToken")

	env.now = env.now.Add(16*time.Minute + time.Minute)
	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/v1/users/me", nil)
	req.AddCookie(access)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /me: %v", err)
	}
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me with expired token status = %d, want 401", res.StatusCode)
	}
	res.Body.Close()
}

func TestSecondLoginInvalidatesFirstRefreshCookie(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "pw-secret-1")

	first := cookieNamed(t, env.login(t, "alice", "pw-secret-1"), "refreshToken")
	env.now = env.now.Add(time.Second)
	env.login(t, "alice", "pw-secret-1")

	env.now = env.now.Add(time.Minute)
	res := env.post(t, "/api/v1/users/refresh-token", nil, first)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("superseded refresh status = %d, want 401", res.StatusCode)
	}
	res.Body.Close()
}

func TestUnknownFieldRejected(t *testing.T) {
	env := newTestEnv(t)

	res := env.post(t, "/api/v1/users/register", map[string]any{
		"username": "alice", "email": "a@b.c", "full_name": "A", "password": "pw-secret-1",
		"is_admin": true,
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d, want 400", res.StatusCode)
	}
	res.Body.Close()
}

// Full lifecycle: register, login, reach a protected route, outlive the
// access token, rotate, and reach the protected route again with the new
// access token.
func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "pw-secret-1")

	cookies := env.login(t, "alice", "pw-secret-1")
	access := cookieNamed(t, cookies, "accessToken")
	refresh := cookieNamed(t, cookies, "refreshToken")

	me := func(c *http.Cookie) int {
		req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/v1/users/me", nil)
		req.AddCookie(c)
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET /me: %v", err)
		}
		res.Body.Close()
		return res.StatusCode
	}

	if got := me(access); got != http.StatusOK {
		t.Fatalf("me with fresh access = %d, want 200", got)
	}

	// Past the access TTL but well within the refresh TTL.
	env.now = env.now.Add(20 * time.Minute)
	if got := me(access); got != http.StatusUnauthorized {
		t.Fatalf("me with expired access = %d, want 401", got)
	}

	res := env.post(t, "/api/v1/users/refresh-token", nil, refresh)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", res.StatusCode)
	}
	rotated := res.Cookies()
	res.Body.Close()

	newAccess := cookieNamed(t, rotated, "accessToken")
	if newAccess.Value == access.Value {
		t.Fatalf("rotation returned the same access token")
	}
	if got := me(newAccess); got != http.StatusOK {
		t.Fatalf("me with rotated access = %d, want 200", got)
	}
}
