// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrEmailExists signals that a signup or an admin create
// collided with the unique email constraint.
package repository

import "errors"

// ErrEmailExists is returned when inserting a user collides with
// the unique constraint on users.email. Handlers should translate
// this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrStoreNotFound is returned when a store lookup matches no row.
// Handlers should translate this into an HTTP 404 response.
var ErrStoreNotFound = errors.New("store not found")
