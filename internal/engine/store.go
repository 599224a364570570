// Package engine defines the persistence contract for membership profiles and its embedded implementation.
package engine

import (
	"context"
	"errors"

	"github.com/covercompare/membergate/pkg/schema"
	"github.com/google/uuid"
)

var (
	// ErrProfileNotFound is returned when no profile exists for an account.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileExists is returned by Create when the account already has a profile.
	ErrProfileExists = errors.New("profile already exists")
)

// ProfileStore is the persistence backend for membership profiles.
// Both the embedded MemStore and the SQL store implement this contract.
type ProfileStore interface {
	// Get returns the profile for an account.
	Get(ctx context.Context, id uuid.UUID) (schema.Profile, error)
	// Create inserts a new profile.
	Create(ctx context.Context, p schema.Profile) error
	// Update replaces every mutable field of an existing profile in a single atomic write.
	Update(ctx context.Context, p schema.Profile) error
	// List returns profiles ordered by username. An empty status returns all of them.
	List(ctx context.Context, status schema.Status) ([]schema.Profile, error)
}
