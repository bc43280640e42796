package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"reel/cmd/identity"
)

// Integration tests are enabled when REEL_DATABASE_URL is set. They assume a
// migrated schema (reel.users, reel.user_credentials).

func mustPGXPool(ctx context.Context, t *testing.T, dbURL string) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("postgres unreachable; skipping: %v", err)
	}
	return pool
}

func integrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("REEL_DATABASE_URL")
	if dbURL == "" {
		t.Skip("REEL_DATABASE_URL is not set; skipping Postgres integration test")
	}
	pool := mustPGXPool(context.Background(), t, dbURL)
	t.Cleanup(pool.Close)
	return pool
}

// seedUser inserts a user row so the credentials row exists for Swap/Set.
func seedUser(ctx context.Context, t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	t.Setenv("REEL_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("REEL_ARGON2_ITERATIONS", "1")
	t.Setenv("REEL_ARGON2_PARALLELISM", "1")

	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("identity.NewPostgresStore: %v", err)
	}

	id, err := identity.NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	u, err := users.CreateUser(ctx, identity.CreateUserInput{
		Username: "it-" + id[:16],
		Email:    "it-" + id[:16] + "@example.com",
		FullName: "Integration Test",
		Password: "pw-secret-1",
		Now:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM reel.users WHERE id = $1`, u.ID)
	})
	return u.ID
}

func TestPostgresStore_SetSwapClear(t *testing.T) {
	ctx := context.Background()
	pool := integrationPool(t)
	userID := seedUser(ctx, t, pool)

	store, err := NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	now := time.Now().UTC()
	exp := now.Add(time.Hour)

	if _, err := store.Get(ctx, userID); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("Get before Set err = %v, want ErrNoCredential", err)
	}

	if err := store.Set(ctx, now, userID, "h1", exp); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c, err := store.Get(ctx, userID)
	if err != nil || c.Hash != "h1" {
		t.Fatalf("Get = (%+v, %v), want h1", c, err)
	}

	if err := store.Swap(ctx, now, userID, "wrong", "h2", exp); !errors.Is(err, ErrCredentialMismatch) {
		t.Fatalf("Swap wrong old err = %v, want ErrCredentialMismatch", err)
	}
	if err := store.Swap(ctx, now, userID, "h1", "h2", exp); err != nil {
		t.Fatalf("Swap: %v", err)
	}

	if err := store.Clear(ctx, now, userID); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Get(ctx, userID); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("Get after Clear err = %v, want ErrNoCredential", err)
	}
}

func TestPostgresStore_ConcurrentSwapSingleWinner(t *testing.T) {
	ctx := context.Background()
	pool := integrationPool(t)
	userID := seedUser(ctx, t, pool)

	store, err := NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	now := time.Now().UTC()
	exp := now.Add(time.Hour)
	if err := store.Set(ctx, now, userID, "current", exp); err != nil {
		t.Fatalf("Set: %v", err)
	}

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		next := "next-" + string(rune('a'+i))
		go func(newHash string) {
			defer wg.Done()
			<-start
			results <- store.Swap(ctx, now, userID, "current", newHash, exp)
		}(next)
	}

	close(start)
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrCredentialMismatch):
		default:
			t.Fatalf("unexpected swap error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one winner, got %d", success)
	}
}

func TestPostgresStore_ExpiredCredentialIsAbsent(t *testing.T) {
	ctx := context.Background()
	pool := integrationPool(t)
	userID := seedUser(ctx, t, pool)

	store, err := NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	now := time.Now().UTC()
	if err := store.Set(ctx, now.Add(-2*time.Hour), userID, "h1", now.Add(-time.Hour)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := store.Get(ctx, userID); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("Get expired err = %v, want ErrNoCredential", err)
	}
	if err := store.Swap(ctx, now, userID, "h1", "h2", now.Add(time.Hour)); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("Swap expired err = %v, want ErrNoCredential", err)
	}
}
