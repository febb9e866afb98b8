// Package store persists dashboard user profiles.
//
// Only the user table lives here. CRM entities are never stored: pipelines
// and boxes are fetched from Streak on every request.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when no user row exists for an ID.
var ErrUserNotFound = errors.New("user not found")

// User is a signed-in dashboard user.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName,omitempty"`
	LastName        string    `json:"lastName,omitempty"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// UserStore reads and writes users.
type UserStore interface {
	// GetUser returns the user with id or ErrUserNotFound.
	GetUser(ctx context.Context, id string) (*User, error)

	// UpsertUser inserts u or updates the profile columns of an existing
	// row with the same ID. CreatedAt is preserved on update.
	UpsertUser(ctx context.Context, u User) (*User, error)
}
