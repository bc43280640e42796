package app

import "time"

// Session store backends selectable via REEL_SESSION_STORE.
const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
	SessionStoreMemory   = "memory"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogPretty bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	AutoMigrate bool

	// SessionStore selects where refresh credentials live. Postgres keeps
	// them next to the user rows, redis trades that for latency, memory is
	// for development without either.
	SessionStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigins []string

	// If true, /readyz returns 503 unless the DB is configured and
	// reachable.
	ReadinessRequireDB bool

	// If true, REEL_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and credential
	// hashing must be HMAC-based.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("REEL_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("REEL_LOG_LEVEL", "info"),
		LogPretty: EnvBool("REEL_LOG_PRETTY", false),

		ReadHeaderTimeout: EnvDuration("REEL_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("REEL_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("REEL_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("REEL_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("REEL_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("REEL_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("REEL_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("REEL_DB_MIN_CONNS", 0),
		AutoMigrate: EnvBool("REEL_DB_AUTO_MIGRATE", true),

		SessionStore:  EnvString("REEL_SESSION_STORE", ""),
		RedisAddr:     EnvString("REEL_REDIS_ADDR", ""),
		RedisPassword: EnvString("REEL_REDIS_PASSWORD", ""),
		RedisDB:       EnvInt("REEL_REDIS_DB", 0),

		CORSOrigins: EnvStrings("REEL_CORS_ORIGINS", []string{"http://localhost:3000"}),

		ReadinessRequireDB: EnvBool("REEL_READINESS_REQUIRE_DB", false),
		RequireTokenHMAC:   EnvBool("REEL_REQUIRE_TOKEN_HMAC", false),
	}
}

// sessionStoreKind resolves the effective backend: explicit config wins,
// otherwise postgres when a database is configured, memory when not.
func (c Config) sessionStoreKind() string {
	switch c.SessionStore {
	case SessionStorePostgres, SessionStoreRedis, SessionStoreMemory:
		return c.SessionStore
	}
	if c.DatabaseURL != "" {
		return SessionStorePostgres
	}
	return SessionStoreMemory
}
