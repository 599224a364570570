package gateway

import "fmt"

// Kind classifies gateway failures for the transport layer.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindInvalidRequest  Kind = "invalid_request"
	KindNotFound        Kind = "not_found"
	KindPersistence     Kind = "persistence"
)

// Error is the only error type the gateway returns.
// Message is safe to show to any caller; Detail carries backend diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "authentication required"}
}

func forbidden(reason error) *Error {
	return &Error{Kind: KindForbidden, Message: reason.Error(), Err: reason}
}

func invalidRequest(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func notFound() *Error {
	return &Error{Kind: KindNotFound, Message: "profile not found"}
}

func persistence(err error) *Error {
	return &Error{Kind: KindPersistence, Message: "operation failed", Detail: err.Error(), Err: err}
}
