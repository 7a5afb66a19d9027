// Package errs defines the sentinel error kinds of spec.md §7: the only two
// domain errors the core engine raises itself. Substrate errors and schema
// registration errors propagate unchanged from their origin and are not
// modeled here.
package errs

import "github.com/pkg/errors"

// LockedInformation is returned by any write to an already-sealed Version,
// SetPointer, or Commit. It is not recoverable except by cloning the sealed
// entity or starting a new draft Commit.
var LockedInformation = errors.New("locked information: cannot modify a sealed record")

// ParentNotCommitted is returned when a Commit attempts to seal with a
// non-null parent whose checksum is still null.
var ParentNotCommitted = errors.New("parent commit has not been committed")

// Locked wraps LockedInformation with a description of what was locked, so
// callers get a stack trace and a readable message while errors.Is(err,
// LockedInformation) keeps working.
func Locked(what string) error {
	return errors.Wrap(LockedInformation, what)
}

// ParentUnsealed wraps ParentNotCommitted with a description of the
// refused commit, so errors.Is(err, ParentNotCommitted) keeps working.
func ParentUnsealed(what string) error {
	return errors.Wrap(ParentNotCommitted, what)
}
