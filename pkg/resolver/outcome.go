package resolver

import (
	"errors"
	"fmt"
)

// Kind classifies the response to a single lookup.
type Kind int

const (
	KindUnclassified Kind = iota
	KindFound
	KindNotFound
	KindRedirect
	KindAccessDenied
)

func (k Kind) String() string {
	switch k {
	case KindFound:
		return "found"
	case KindNotFound:
		return "not_found"
	case KindRedirect:
		return "redirect"
	case KindAccessDenied:
		return "access_denied"
	default:
		return "unclassified"
	}
}

// NotFoundMarker is stored as translation and origin note for words the site does not know.
const NotFoundMarker = "Not found"

// Outcome is the classified result of a lookup. Only the fields relevant to
// Kind are set.
type Outcome struct {
	Kind        Kind
	Translation string // Found, NotFound
	OriginNote  string // Found, NotFound
	TargetURL   string // Redirect
}

// Page is a fetched dictionary page.
type Page struct {
	URL       string
	Title     string
	BodyText  string
	RawMarkup string
}

// ErrAccessDenied reports that the site served its home page instead of
// dictionary content, so no lookup in the batch can succeed.
var ErrAccessDenied = errors.New("no access to the dictionary site (home page served)")

// TransportError wraps a failure to fetch a page.
type TransportError struct {
	URL    string
	Status int // HTTP status, 0 if no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
