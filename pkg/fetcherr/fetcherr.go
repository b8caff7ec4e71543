// Package fetcherr defines the error taxonomy shared by the upstream clients
// and the enrichment pipeline.
//
// Every failure is classified by one of the sentinel kinds below. Callers test
// the kind with errors.Is and can still reach the underlying cause:
//
//	if errors.Is(err, fetcherr.ErrAuth) { ... }
//	if errors.Is(err, context.DeadlineExceeded) { ... }
package fetcherr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds.
var (
	// ErrAuth means credentials were missing or the token exchange failed.
	ErrAuth = errors.New("authentication failed")

	// ErrTransport means the request could not be completed or the
	// server answered with an unexpected status.
	ErrTransport = errors.New("transport failure")

	// ErrParse means the response body was not in the expected shape.
	ErrParse = errors.New("malformed response")

	// ErrNotFound means the provider has no record for the requested ident.
	ErrNotFound = errors.New("not found")

	// ErrBudgetExceeded means the per-pass call budget was used up.
	ErrBudgetExceeded = errors.New("call budget exceeded")
)

// Error carries the context of a failed upstream operation.
type Error struct {
	// Kind is one of the sentinel errors above
	Kind error

	// Op names the operation, e.g. "token", "states", "flight-info"
	Op string

	// Endpoint is the URL that was called (without credentials)
	Endpoint string

	// Status is the HTTP status code, 0 if no response was received
	Status int

	// Ident is the flight identifier for per-flight operations
	Ident string

	// Err is the underlying cause, may be nil
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Ident != "" {
		fmt.Fprintf(&b, " (ident %s)", e.Ident)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New builds an *Error of the given kind.
func New(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// WithEndpoint sets the endpoint and returns the receiver.
func (e *Error) WithEndpoint(endpoint string) *Error {
	e.Endpoint = endpoint
	return e
}

// WithStatus sets the HTTP status and returns the receiver.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// WithIdent sets the flight ident and returns the receiver.
func (e *Error) WithIdent(ident string) *Error {
	e.Ident = ident
	return e
}

// KindOf returns the sentinel kind of err, or nil if err is not classified.
func KindOf(err error) error {
	for _, kind := range []error{ErrAuth, ErrTransport, ErrParse, ErrNotFound, ErrBudgetExceeded} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Details returns the fetch error carried by err, if any.
func Details(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
