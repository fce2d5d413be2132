// Package cowerr defines the overlay engine's error kinds (§7).
package cowerr

import "errors"

// Kind classifies an overlay engine failure. All engine operations
// surface failures to the caller; none are retried internally.
type Kind int

const (
	// Corrupted means the diff sidecar is shorter than its required
	// header, or an index write would encode an invalid payload offset.
	// Fatal to the request.
	Corrupted Kind = iota
	// ShortIO means a backing-file read returned fewer bytes than
	// required. Fatal to the request.
	ShortIO
	// BackingIO is any other failure from the base, diff, or extra file.
	// Fatal to the request.
	BackingIO
	// SyncFailure means a durability primitive (flush/fsync) failed.
	SyncFailure
)

func (k Kind) String() string {
	switch k {
	case Corrupted:
		return "corrupted diff"
	case ShortIO:
		return "short read"
	case BackingIO:
		return "backing I/O failure"
	case SyncFailure:
		return "sync failure"
	default:
		return "unknown overlay error"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch with
// errors.As without caring which backing file produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a cowerr.Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
