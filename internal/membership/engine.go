// Package membership computes membership lifecycle transitions.
//
// Every function here is pure: it takes the current profile and returns the next one.
// Any status is reachable from any other so an administrator is never blocked by current state.
package membership

import (
	"errors"
	"fmt"
	"time"

	"github.com/covercompare/membergate/pkg/schema"
)

// GracePeriod is how long a pending account has to settle its status.
const GracePeriod = 7 * 24 * time.Hour

var (
	// ErrInvalidStatus is returned for a requested status outside active|pending|suspended|deleted.
	ErrInvalidStatus = errors.New("invalid membership status")
	// ErrMissingPaidUntil is returned when a payment confirmation has no paid-until date.
	ErrMissingPaidUntil = errors.New("paidUntil is required")
)

// Inputs carries the values a status transition applies.
type Inputs struct {
	Now  time.Time
	Note *string
}

// PaymentInputs carries the values a payment confirmation applies.
type PaymentInputs struct {
	PaidUntil time.Time
	Now       time.Time
	Note      *string
}

// ParseStatus validates a requested status. It does not normalize suspended.
func ParseStatus(s string) (schema.Status, error) {
	switch st := schema.Status(s); st {
	case schema.StatusActive, schema.StatusPending, schema.StatusSuspended, schema.StatusDeleted:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Normalize maps a requested status onto the value that is stored.
func Normalize(s schema.Status) schema.Status {
	if s == schema.StatusSuspended {
		return schema.StatusPending
	}
	return s
}

// Transition returns current with the requested status and its dependent fields applied.
func Transition(requested schema.Status, current schema.Profile, in Inputs) (schema.Profile, error) {
	if _, err := ParseStatus(string(requested)); err != nil {
		return schema.Profile{}, err
	}

	now := in.Now.UTC()
	next := current.Clone()
	next.PaymentNote = cloneNote(in.Note)
	next.UpdatedAt = now

	switch Normalize(requested) {
	case schema.StatusActive:
		next.Status = schema.StatusActive
		next.SuspendedAt = nil
		next.GracePeriodUntil = nil
		next.DeletedAt = nil
		next.IsApproved = true

	case schema.StatusPending:
		grace := now.Add(GracePeriod)
		next.Status = schema.StatusPending
		next.GracePeriodUntil = &grace
		next.SuspendedAt = nil

	case schema.StatusDeleted:
		next.Status = schema.StatusDeleted
		next.DeletedAt = &now
	}

	return next, nil
}

// ConfirmPayment records a received payment and activates the membership.
// Unlike Transition to active it leaves IsApproved untouched.
func ConfirmPayment(current schema.Profile, in PaymentInputs) (schema.Profile, error) {
	if in.PaidUntil.IsZero() {
		return schema.Profile{}, ErrMissingPaidUntil
	}

	now := in.Now.UTC()
	paidUntil := in.PaidUntil.UTC()

	next := current.Clone()
	next.Status = schema.StatusActive
	next.PaidUntil = &paidUntil
	next.LastPaymentAt = &now
	next.GracePeriodUntil = nil
	next.SuspendedAt = nil
	next.PaymentNote = cloneNote(in.Note)
	next.UpdatedAt = now

	return next, nil
}

func cloneNote(note *string) *string {
	if note == nil {
		return nil
	}
	v := *note
	return &v
}
