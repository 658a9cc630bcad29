// Package persistence stores journal entries and user profiles.
package persistence

import (
	"context"
	"errors"

	"innersight/internal/core"
)

// ErrNotFound is returned when a record does not exist or belongs to another user.
var ErrNotFound = errors.New("not found")

// EntryRepository handles journal entry persistence operations
type EntryRepository interface {
	// Save inserts the entry or replaces the existing one with the same ID
	Save(ctx context.Context, entry *core.Entry) error

	// Get retrieves an entry owned by userID
	Get(ctx context.Context, userID, id string) (*core.Entry, error)

	// Delete removes an entry owned by userID
	Delete(ctx context.Context, userID, id string) error

	// ListByUser retrieves a user's entries, newest first
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]core.Entry, error)
}

// ProfileRepository handles user profile persistence operations
type ProfileRepository interface {
	// Save inserts or replaces a profile
	Save(ctx context.Context, profile *core.Profile) error

	// Get retrieves a profile by user ID
	Get(ctx context.Context, userID string) (*core.Profile, error)
}

// ListOptions provides pagination for list queries
type ListOptions struct {
	Limit  int
	Offset int
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 || o.Limit > 500 {
		return 100
	}
	return o.Limit
}

// Database aggregates all repositories
type Database interface {
	Entries() EntryRepository
	Profiles() ProfileRepository

	// Close closes the database connection
	Close() error

	// Ping verifies the database connection
	Ping(ctx context.Context) error
}
