package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in dev mode and tests.
//
// It mirrors the PostgresStore contract, including uniqueness of normalized
// username/email and projection semantics. Safe for concurrent use.
type MemoryStore struct {
	mu sync.Mutex

	byID    map[string]*memUser
	byUser  map[string]string // username_norm -> id
	byEmail map[string]string // email_norm -> id
}

type memUser struct {
	user         User
	passwordHash string
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*memUser),
		byUser:  make(map[string]string),
		byEmail: make(map[string]string),
	}
}

// CreateUser creates a new user with a hashed password.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username is required"}
	}
	if email == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email is required"}
	}
	if strings.TrimSpace(in.Password) == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password is required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// Hash outside the lock; argon2id is deliberately slow.
	pwHash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}

	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	userNorm := NormalizeUsername(username)
	emailNorm := NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[userNorm]; exists {
		return User{}, ConflictError{Op: op, Field: "username"}
	}
	if _, exists := s.byEmail[emailNorm]; exists {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	u := User{
		ID:        id,
		Username:  username,
		Email:     email,
		FullName:  strings.TrimSpace(in.FullName),
		CreatedAt: now,
	}
	s.byID[id] = &memUser{user: u, passwordHash: pwHash}
	s.byUser[userNorm] = id
	s.byEmail[emailNorm] = id

	return u, nil
}

// GetUserByID loads a user projection by ID.
func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}
	return rec.user, nil
}

// GetUserAuthByIdentifier resolves identifier by username or email.
func (s *MemoryStore) GetUserAuthByIdentifier(ctx context.Context, identifier string) (UserAuth, error) {
	const op = "identity.GetUserAuthByIdentifier"

	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	norm := NormalizeUsername(identifier)
	if norm == "" {
		return UserAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing identifier"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUser[norm]
	if !ok {
		id, ok = s.byEmail[norm]
	}
	if !ok {
		return UserAuth{}, OpError{Op: op, Kind: ErrNotFound}
	}

	rec := s.byID[id]
	return UserAuth{User: rec.user, PasswordHash: rec.passwordHash}, nil
}

// UpdatePassword replaces the stored password hash.
func (s *MemoryStore) UpdatePassword(ctx context.Context, userID, newHash string, now time.Time) error {
	const op = "identity.UpdatePassword"

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(newHash) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing password hash"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[strings.TrimSpace(userID)]
	if !ok {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	rec.passwordHash = newHash
	return nil
}
