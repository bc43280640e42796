package identity

import (
	"context"
	"time"
)

// User is Reel's canonical security principal.
//
// The struct is a projection: it never carries the password hash or the
// stored refresh credential. Callers needing the hash use UserAuth.
type User struct {
	ID       string
	Username string
	Email    string
	FullName string

	CreatedAt time.Time
}

// UserAuth couples a user projection with its password hash for login checks.
// It must never be serialized to clients or logs.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a registration request.
// Username and Email are both required and each must be unique.
type CreateUserInput struct {
	Username string
	Email    string
	FullName string
	Password string
	Now      time.Time
}

// Store is the user-record persistence boundary.
//
// Implementations must enforce uniqueness of the normalized username and
// email, and must report duplicates as ConflictError so the API layer can map
// them to 409.
type Store interface {
	// CreateUser creates a new user with a hashed password.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// GetUserByID loads a user projection by ID. Missing -> ErrNotFound.
	GetUserByID(ctx context.Context, id string) (User, error)

	// GetUserAuthByIdentifier resolves a login identifier against the
	// normalized username OR email, whichever matches. Missing -> ErrNotFound.
	GetUserAuthByIdentifier(ctx context.Context, identifier string) (UserAuth, error)

	// UpdatePassword replaces the stored password hash for a user.
	// Missing -> ErrNotFound.
	UpdatePassword(ctx context.Context, userID, newHash string, now time.Time) error
}
