// Package errs defines the error taxonomy shared by every sketch in this
// module. Errors are sentinel values wrapped with github.com/pkg/errors so
// callers can both match on kind (errors.Is) and read call-site context.
package errs

import "github.com/pkg/errors"

// Sentinel error kinds. These are the "kinds, not type names" taxonomy from
// the error handling design: match on these with errors.Is, the wrapped
// message carries the call-site detail.
var (
	// ErrInitialization covers invalid constructor parameters and mismatched
	// operand shapes passed to union/intersection/join.
	ErrInitialization = errors.New("initialization error")

	// ErrCuckooFull is returned when an insert exhausts max_swaps with
	// auto-expand disabled. Adding a key that is already present is not an
	// error: CuckooFilter.Add treats it as a no-op.
	ErrCuckooFull = errors.New("cuckoo filter full")

	// ErrNotSupported names operations unavailable under a receiver's
	// current policy. No function in this module returns it at present: a
	// plain bloom.Filter, for example, has no Remove method at all.
	ErrNotSupported = errors.New("operation not supported")

	// ErrCountMinPolicy is returned when a Count-Min sketch carries an
	// unrecognized aggregation policy tag.
	ErrCountMinPolicy = errors.New("unrecognized count-min policy")

	// ErrPersistence covers malformed, truncated, or size-mismatched
	// serialized data.
	ErrPersistence = errors.New("persistence error")
)

// Init wraps ErrInitialization with msg as added context.
func Init(msg string) error {
	return errors.Wrap(ErrInitialization, msg)
}

// Initf is the formatted form of Init.
func Initf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInitialization, format, args...)
}

// Persist wraps ErrPersistence with added context.
func Persist(msg string) error {
	return errors.Wrap(ErrPersistence, msg)
}

// Persistf is the formatted form of Persist.
func Persistf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrPersistence, format, args...)
}

// CountMinPolicyf wraps ErrCountMinPolicy with added context.
func CountMinPolicyf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCountMinPolicy, format, args...)
}
