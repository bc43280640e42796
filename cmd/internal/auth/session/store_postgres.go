package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on PostgreSQL, using the
// refresh_token_hash column of reel.user_credentials. The compare step of
// Swap is a conditional UPDATE, so row-level locking gives the single-winner
// guarantee without an explicit transaction.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var sessionIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresStoreOption customizes a PostgresStore.
type PostgresStoreOption func(*PostgresStore) error

// WithPostgresSchema overrides the default "reel" schema.
func WithPostgresSchema(schema string) PostgresStoreOption {
	return func(s *PostgresStore) error {
		if !sessionIdentRe.MatchString(schema) {
			return ErrConfig
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed credential store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresStoreOption) (*PostgresStore, error) {
	if pool == nil {
		return nil, ErrConfig
	}

	s := &PostgresStore{pool: pool, schema: "reel"}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PostgresStore) table() string {
	return fmt.Sprintf("%s.user_credentials", s.schema)
}

// Get returns the stored credential for userID.
func (s *PostgresStore) Get(ctx context.Context, userID string) (Credential, error) {
	var (
		hash *string
		exp  *time.Time
	)

	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT refresh_token_hash, refresh_token_expires_at
		FROM %s
		WHERE user_id = $1
	`, s.table()), userID).Scan(&hash, &exp)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, ErrNoCredential
	}
	if err != nil {
		return Credential{}, err
	}

	if hash == nil || exp == nil || !exp.After(time.Now()) {
		return Credential{}, ErrNoCredential
	}
	return Credential{Hash: *hash, ExpiresAt: *exp}, nil
}

// Set unconditionally overwrites the credential for userID.
func (s *PostgresStore) Set(ctx context.Context, now time.Time, userID, hash string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET refresh_token_hash = $2,
		    refresh_token_expires_at = $3,
		    updated_at = $4
		WHERE user_id = $1
	`, s.table()), userID, hash, expiresAt, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoCredential
	}
	return nil
}

// Swap replaces the credential only if the stored hash equals oldHash.
func (s *PostgresStore) Swap(ctx context.Context, now time.Time, userID, oldHash, newHash string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET refresh_token_hash = $3,
		    refresh_token_expires_at = $4,
		    updated_at = $5
		WHERE user_id = $1
		  AND refresh_token_hash = $2
		  AND refresh_token_expires_at > $5
	`, s.table()), userID, oldHash, newHash, expiresAt, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// The conditional UPDATE missed. Distinguish an absent credential from
	// a rotated one for the caller's replay accounting.
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	return ErrCredentialMismatch
}

// Clear removes the credential for userID.
func (s *PostgresStore) Clear(ctx context.Context, now time.Time, userID string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET refresh_token_hash = NULL,
		    refresh_token_expires_at = NULL,
		    updated_at = $2
		WHERE user_id = $1
	`, s.table()), userID, now)
	return err
}
