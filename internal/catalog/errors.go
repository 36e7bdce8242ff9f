package catalog

import (
	"errors"
	"fmt"
)

// ErrAuthExpired marks transport failures that look like an expired
// upstream credential: an HTML document where JSON was expected, or a 400
// with an empty body. Matched with errors.Is so callers can trigger a
// session refresh.
var ErrAuthExpired = errors.New("upstream credential expired")

// bodyExcerptLimit bounds how much response body a TransportError carries.
const bodyExcerptLimit = 256

// TransportError is raised for any failed upstream call. It carries the
// HTTP status (zero when the request never completed) and a truncated body
// excerpt for diagnostics. Session tokens and cookies are never included.
type TransportError struct {
	Op          string
	StatusCode  int
	BodyExcerpt string
	AuthExpired bool
	Err         error
}

// NewTransportError builds a TransportError, truncating the body excerpt.
func NewTransportError(op string, status int, body []byte, err error) *TransportError {
	excerpt := string(body)
	if len(excerpt) > bodyExcerptLimit {
		excerpt = excerpt[:bodyExcerptLimit]
	}
	return &TransportError{
		Op:          op,
		StatusCode:  status,
		BodyExcerpt: excerpt,
		Err:         err,
	}
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.BodyExcerpt != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.BodyExcerpt)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
}

// Unwrap exposes the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports ErrAuthExpired matches for auth-flagged transport errors.
func (e *TransportError) Is(target error) bool {
	return target == ErrAuthExpired && e.AuthExpired
}
