// Package schema defines the data structures shared by the membergate service and its clients.
package schema

import (
	"time"

	"github.com/google/uuid"
)

// Status is the membership state of an account.
type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending"
	// StatusSuspended is accepted as a request value only. It is stored as StatusPending.
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// Role classifies an account. Only RoleAdmin may administer memberships.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Profile is the membership record kept for every account.
// Lifecycle fields are only ever changed through the membership engine.
type Profile struct {
	AccountID  uuid.UUID `json:"accountId"`
	Username   string    `json:"username"`
	Department string    `json:"department,omitempty"`
	Role       Role      `json:"role"`
	// Exempt marks a protected account that no lifecycle transition may touch.
	Exempt bool `json:"exempt"`

	Status           Status     `json:"status"`
	PaidUntil        *time.Time `json:"paidUntil"`
	GracePeriodUntil *time.Time `json:"gracePeriodUntil"`
	SuspendedAt      *time.Time `json:"suspendedAt"`
	DeletedAt        *time.Time `json:"deletedAt"`
	LastPaymentAt    *time.Time `json:"lastPaymentAt"`
	IsApproved       bool       `json:"isApproved"`
	PaymentNote      *string    `json:"paymentNote"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewProfile returns the record created alongside a new account: pending and unapproved.
func NewProfile(id uuid.UUID, username string, now time.Time) Profile {
	now = now.UTC()
	return Profile{
		AccountID: id,
		Username:  username,
		Role:      RoleMember,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers can hand out profiles without sharing pointer fields.
func (p Profile) Clone() Profile {
	out := p
	out.PaidUntil = cloneTime(p.PaidUntil)
	out.GracePeriodUntil = cloneTime(p.GracePeriodUntil)
	out.SuspendedAt = cloneTime(p.SuspendedAt)
	out.DeletedAt = cloneTime(p.DeletedAt)
	out.LastPaymentAt = cloneTime(p.LastPaymentAt)
	if p.PaymentNote != nil {
		note := *p.PaymentNote
		out.PaymentNote = &note
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
