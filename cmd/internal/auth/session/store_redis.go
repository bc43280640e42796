package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "reel:refresh:"

	swapStatusMissing  int64 = 0
	swapStatusMismatch int64 = 1
	swapStatusSwapped  int64 = 2
)

// Compare-and-swap in a single script so concurrent rotations for the same
// user serialize inside Redis. Expiry rides on the key TTL.
const swapScript = `
local cur = redis.call("GET", KEYS[1])
if not cur then
  return 0
end
if cur ~= ARGV[1] then
  return 1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 2
`

var swapLua = redis.NewScript(swapScript)

// RedisStore implements Store on Redis. The credential hash is the key
// value; expiry is enforced by the key's TTL, so Get never returns a stale
// credential.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore creates a Redis-backed credential store.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(userID string) string { return redisKeyPrefix + userID }

// Get returns the stored credential for userID. The expiry is reconstructed
// from the key TTL.
func (s *RedisStore) Get(ctx context.Context, userID string) (Credential, error) {
	pipe := s.rdb.Pipeline()
	getCmd := pipe.Get(ctx, redisKey(userID))
	ttlCmd := pipe.PTTL(ctx, redisKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return Credential{}, ErrNoCredential
		}
		return Credential{}, err
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return Credential{}, ErrNoCredential
	}

	return Credential{
		Hash:      getCmd.Val(),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// Set unconditionally overwrites the credential for userID.
func (s *RedisStore) Set(ctx context.Context, now time.Time, userID, hash string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return ErrConfig
	}
	return s.rdb.Set(ctx, redisKey(userID), hash, ttl).Err()
}

// Swap replaces the credential only if the stored hash equals oldHash.
func (s *RedisStore) Swap(ctx context.Context, now time.Time, userID, oldHash, newHash string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return ErrConfig
	}

	status, err := swapLua.Run(ctx, s.rdb,
		[]string{redisKey(userID)},
		oldHash, newHash, ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return err
	}

	switch status {
	case swapStatusSwapped:
		return nil
	case swapStatusMissing:
		return ErrNoCredential
	case swapStatusMismatch:
		return ErrCredentialMismatch
	default:
		return ErrCredentialMismatch
	}
}

// Clear removes the credential for userID.
func (s *RedisStore) Clear(ctx context.Context, _ time.Time, userID string) error {
	return s.rdb.Del(ctx, redisKey(userID)).Err()
}
