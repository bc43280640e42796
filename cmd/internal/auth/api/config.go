package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and cookie transport defaults.
type Config struct {
	// Cookie names for the two tokens. Browsers send both on every
	// request; only the access cookie is read by the middleware.
	AccessCookieName  string
	RefreshCookieName string

	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	MaxBodyBytes int64
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
//
// Optional:
//   - REEL_COOKIE_SECURE (default true)
//   - REEL_COOKIE_DOMAIN
//   - REEL_COOKIE_SAMESITE (strict|lax|none, default strict)
//   - REEL_AUTH_MAX_BODY_BYTES
func LoadConfigFromEnv() Config {
	cfg := Config{
		AccessCookieName:  "accessToken",
		RefreshCookieName: "refreshToken",
		CookiePath:        "/",
		CookieDomain:      strings.TrimSpace(os.Getenv("REEL_COOKIE_DOMAIN")),
		CookieSecure:      envBool("REEL_COOKIE_SECURE", true),
		CookieSameSite:    http.SameSiteStrictMode,
		MaxBodyBytes:      envInt64("REEL_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
	}

	switch strings.ToLower(strings.TrimSpace(os.Getenv("REEL_COOKIE_SAMESITE"))) {
	case "lax":
		cfg.CookieSameSite = http.SameSiteLaxMode
	case "none":
		cfg.CookieSameSite = http.SameSiteNoneMode
	case "", "strict":
		// default
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
