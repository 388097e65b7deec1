package model

import "time"

// Role names stored in users.role.  ADMIN manages the platform,
// STORE_OWNER views aggregated ratings for stores they own, USER
// browses stores and submits ratings.
const (
	RoleAdmin      = "ADMIN"
	RoleStoreOwner = "STORE_OWNER"
	RoleUser       = "USER"
)

// ValidRole reports whether the given string is one of the three
// recognised role names.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleStoreOwner || r == RoleUser
}

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name.
//  Email        – unique email address.
//  Address      – optional postal address (empty when absent).
//  PasswordHash – bcrypt hashed password.
//  Role         – one of ADMIN, STORE_OWNER, USER.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Name         string    // users.name
	Email        string    // users.email
	Address      string    // users.address
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// PublicUser is the identity shape attached to ratings and store
// listings. It never carries the password hash.
type PublicUser struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public returns the redacted projection of a user.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}
