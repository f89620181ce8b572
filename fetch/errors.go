package fetch

import (
	"errors"
	"fmt"

	"github.com/hupe1980/docdb/blobstore"
)

var (
	// ErrNotFound is reported by a Source for a reference that does not exist.
	ErrNotFound = blobstore.ErrNotFound
	// ErrNetworkFailure matches every KindNetwork error.
	ErrNetworkFailure = errors.New("network failure")
	// ErrMalformedContent matches every KindMalformed error.
	ErrMalformedContent = errors.New("malformed content")
)

// Kind classifies a fetch failure.
type Kind uint8

const (
	// KindNetwork covers transport errors, timeouts and cancellation.
	KindNetwork Kind = iota + 1
	// KindNotFound means the source has nothing under the reference.
	KindNotFound
	// KindMalformed means the content was retrieved but is unusable.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindNotFound:
		return "not found"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Error is the failure recorded on an Outcome.
type Error struct {
	Kind      Kind
	Reference string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %q: %s", e.Reference, e.Kind)
	}
	return fmt.Sprintf("fetch %q: %s: %v", e.Reference, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetworkFailure:
		return e.Kind == KindNetwork
	case ErrMalformedContent:
		return e.Kind == KindMalformed
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

func classify(ref string, err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	kind := KindNetwork
	switch {
	case errors.Is(err, ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, blobstore.ErrTooLarge):
		kind = KindMalformed
	}
	return &Error{Kind: kind, Reference: ref, Err: err}
}

func malformed(ref string, err error) *Error {
	return &Error{Kind: KindMalformed, Reference: ref, Err: err}
}
