package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/covercompare/membergate/pkg/schema"
)

var (
	// ErrUnauthenticated is returned when the token is missing, expired or rejected.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the caller is not an admin or the target is protected.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a requested profile does not exist.
	ErrNotFound = errors.New("profile not found")
	// ErrInvalidRequest is returned when the daemon rejects the input.
	ErrInvalidRequest = errors.New("invalid request")
)

// APIError is a non-2xx response from the daemon. It matches the sentinels above with errors.Is.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%d): %s", e.Message, e.StatusCode, e.Details)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrInvalidRequest:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}

// Result confirms a successful write.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// --- Functional Interfaces (Interface Segregation) ---

// ProfileReader reads the caller's own membership.
type ProfileReader interface {
	Profile(ctx context.Context) (schema.Profile, error)
	Banner(ctx context.Context) (schema.Banner, error)
}

// LifecycleWriter changes another account's membership. Admin only.
type LifecycleWriter interface {
	SetMembershipStatus(ctx context.Context, accountID, status string, note *string) (Result, error)
	ConfirmPayment(ctx context.Context, accountID, paidUntil string, note *string) (Result, error)
}

// Dashboard backs the admin member list.
type Dashboard interface {
	ListProfiles(ctx context.Context, filter string) ([]schema.Profile, error)
	PublishFilter(ctx context.Context, filter string) (Result, error)
	StreamFilters(ctx context.Context) (<-chan schema.FilterChanged, error)
}

// --- Composite Interface ---

// Membergate is the complete client surface of the daemon.
type Membergate interface {
	ProfileReader
	LifecycleWriter
	Dashboard
}
