package session

import (
	"context"
	"time"

	"reel/cmd/security/token"
)

// Service implements the high-level credential operations for Reel.
//
// It issues token pairs, validates access tokens, rotates refresh tokens
// with single-use semantics, and clears credentials on logout. Each user
// holds exactly one valid refresh credential; Issue replaces it, Rotate
// swaps it atomically, Logout removes it.
type Service struct {
	cfg     Config
	codec   *Codec
	store   Store
	observe Observer
}

// Observer receives the outcome of every credential operation, for metrics.
// It must be safe for concurrent use. A nil observer disables reporting.
type Observer func(op string, err error)

// Option configures optional Service behavior.
type Option func(*Service)

// WithObserver installs an outcome observer on the service.
func WithObserver(obs Observer) Option {
	return func(s *Service) { s.observe = obs }
}

// Pair is the result of issuing or rotating a session: a short-lived access
// token and a long-lived refresh token with their expiries.
type Pair struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// NewService constructs a Service over the given store.
func NewService(cfg Config, store Store, opts ...Option) (*Service, error) {
	codec, err := NewCodec(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrConfig
	}
	s := &Service{cfg: cfg, codec: codec, store: store}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Service) report(op string, err error) {
	if s.observe != nil {
		s.observe(op, err)
	}
}

// Codec exposes the service's token codec for callers that only need
// verification.
func (s *Service) Codec() *Codec { return s.codec }

// Issue mints a fresh token pair for userID and stores the refresh
// credential, unconditionally replacing any previous one. A second login
// therefore invalidates the refresh token from the first.
func (s *Service) Issue(ctx context.Context, now time.Time, userID string) (_ Pair, err error) {
	defer func() { s.report("issue", err) }()

	access, accessExp, err := s.codec.Issue(KindAccess, userID, now)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := s.codec.Issue(KindRefresh, userID, now)
	if err != nil {
		return Pair{}, err
	}

	// Only the hash is persisted, never the token itself.
	if err := s.store.Set(ctx, now, userID, token.HashCredentialHex(refresh), refreshExp); err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   refreshExp,
	}, nil
}

// Validate verifies an access token and returns its claims. Validation is
// purely cryptographic; the store is never consulted, which keeps the hot
// path free of round trips. Revocation takes effect when the access token
// expires and the cleared refresh credential blocks renewal.
func (s *Service) Validate(accessToken string, now time.Time) (Claims, error) {
	claims, err := s.codec.Verify(KindAccess, accessToken, now)
	s.report("validate", err)
	return claims, err
}

// Rotate redeems a refresh token for a fresh pair. The presented token must
// both verify and match the stored credential hash; the stored credential is
// then swapped to the new refresh hash in one atomic step. Of N concurrent
// rotations with the same token, exactly one wins. A failed swap leaves the
// previous credential untouched and returns no new pair.
func (s *Service) Rotate(ctx context.Context, now time.Time, refreshToken string) (_ Pair, err error) {
	defer func() { s.report("rotate", err) }()

	claims, err := s.codec.Verify(KindRefresh, refreshToken, now)
	if err != nil {
		return Pair{}, err
	}
	userID := claims.Subject

	access, accessExp, err := s.codec.Issue(KindAccess, userID, now)
	if err != nil {
		return Pair{}, err
	}
	newRefresh, refreshExp, err := s.codec.Issue(KindRefresh, userID, now)
	if err != nil {
		return Pair{}, err
	}

	oldHash := token.HashCredentialHex(refreshToken)
	newHash := token.HashCredentialHex(newRefresh)

	if err := s.store.Swap(ctx, now, userID, oldHash, newHash, refreshExp); err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: newRefresh,
		RefreshExp:   refreshExp,
	}, nil
}

// Logout clears the stored refresh credential for userID. Outstanding
// access tokens remain valid until they expire; no new pair can be minted
// afterwards. Logout of a user with no credential is a no-op.
func (s *Service) Logout(ctx context.Context, now time.Time, userID string) error {
	err := s.store.Clear(ctx, now, userID)
	s.report("logout", err)
	return err
}

// Revoke is Logout under its security name: it invalidates the user's
// refresh credential out-of-band, for example after a password change.
func (s *Service) Revoke(ctx context.Context, now time.Time, userID string) error {
	err := s.store.Clear(ctx, now, userID)
	s.report("revoke", err)
	return err
}
