package schema

import "github.com/google/uuid"

// Principal is the authenticated caller of an operation.
type Principal struct {
	AccountID uuid.UUID `json:"accountId"`
	Email     string    `json:"email,omitempty"`
}
