package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"reel/cmd/identity"
	"reel/cmd/internal/auth/session"
)

// Handler wires HTTP auth endpoints to identity/session services.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.Store
	auth     *identity.Authenticator
	sessions *session.Service

	now func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides the handler clock, for tests.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler over the given services.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Service, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil || sessions == nil {
		return nil, errors.New("authapi: nil dependency")
	}

	auth, err := identity.NewAuthenticator(users)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		auth:     auth,
		sessions: sessions,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h, nil
}

// Routes returns the /users route group.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/refresh-token", h.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)
		r.Post("/logout", h.handleLogout)
		r.Post("/change-password", h.handleChangePassword)
		r.Get("/me", h.handleMe)
	})

	return r
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	for _, f := range []string{req.Username, req.Email, req.FullName, req.Password} {
		if strings.TrimSpace(f) == "" {
			writeError(w, http.StatusBadRequest, "all fields are required")
			return
		}
	}

	now := h.now()
	user, err := h.users.CreateUser(r.Context(), identity.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Now:      now,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.log.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, toUserResponse(user), "user registered successfully")
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username or email and password are required")
		return
	}

	now := h.now()
	user, err := h.auth.Login(r.Context(), identifier, req.Password)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	pair, err := h.sessions.Issue(r.Context(), now, user.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.setSessionCookies(w, pair)
	h.log.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		User:   toUserResponse(user),
		Tokens: toTokenResponse(pair),
	}, "logged in successfully")
}

// handleRefresh rotates the refresh credential. The token is taken from the
// refresh cookie when present, otherwise from the request body, so both
// browser and non-browser clients are served.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refresh, ok := tokenFromCookie(r, h.cfg.RefreshCookieName)
	if !ok {
		var req refreshRequest
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err == nil {
			refresh = strings.TrimSpace(req.RefreshToken)
		}
	}
	if refresh == "" {
		writeError(w, http.StatusUnauthorized, "refresh token is required")
		return
	}

	pair, err := h.sessions.Rotate(r.Context(), h.now(), refresh)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, toTokenResponse(pair), "tokens refreshed successfully")
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.sessions.Logout(r.Context(), h.now(), user.ID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.clearSessionCookies(w)
	h.log.Info("user logged out", "user_id", user.ID)
	writeJSON(w, http.StatusOK, nil, "logged out successfully")
}

// handleChangePassword verifies the old password, stores the new hash, and
// revokes the refresh credential so stolen refresh tokens die with the old
// password.
func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "old and new password are required")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if err := h.sessions.Revoke(r.Context(), h.now(), user.ID); err != nil {
		h.log.Error("revoke after password change failed", "user_id", user.ID, "err", err)
	}

	h.log.Info("password changed", "user_id", user.ID)
	writeJSON(w, http.StatusOK, nil, "password changed successfully")
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user), "current user fetched successfully")
}

func toTokenResponse(pair session.Pair) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExp,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExp,
	}
}

// writeDomainError maps identity/session errors to HTTP statuses. Refresh
// failures collapse to a uniform 401 so that a probe cannot distinguish a
// rotated credential from a logged-out one.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case identity.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid input")
	case identity.IsConflict(err):
		writeError(w, http.StatusConflict, "username or email already in use")
	case identity.IsNotFound(err):
		writeError(w, http.StatusNotFound, "user does not exist")
	case identity.IsBadCredentials(err):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, session.ErrExpired),
		errors.Is(err, session.ErrSignatureInvalid),
		errors.Is(err, session.ErrMalformed),
		errors.Is(err, session.ErrNoCredential),
		errors.Is(err, session.ErrCredentialMismatch):
		writeError(w, http.StatusUnauthorized, "refresh token is expired or already used")
	default:
		h.log.Error("internal error", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
