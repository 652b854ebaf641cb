package pergola

import "errors"

// Sentinel errors for caller contract violations. Store failures are not
// wrapped in sentinels here: transient engine errors propagate to the caller
// unchanged, prefixed with the operation that hit them. This layer never
// retries.
var (
	// ErrMalformedPermission is returned when DecodePermission is handed a
	// string that was not produced by EncodePermission: the wrong number of
	// fields, or an empty field. This is a caller bug, not a store condition.
	ErrMalformedPermission = errors.New("pergola: malformed permission key")

	// ErrConflictingFieldPolicy is returned when a field policy matrix has
	// the same row checked in both the allow and deny lists. The store is
	// set-based, so both rules would coexist with no defined winner; the
	// write path rejects the matrix instead of guessing.
	ErrConflictingFieldPolicy = errors.New("pergola: field checked in both allow and deny")
)

// IsMalformedPermissionErr returns true if err is or wraps ErrMalformedPermission.
func IsMalformedPermissionErr(err error) bool {
	return errors.Is(err, ErrMalformedPermission)
}

// IsConflictingFieldPolicyErr returns true if err is or wraps ErrConflictingFieldPolicy.
func IsConflictingFieldPolicyErr(err error) bool {
	return errors.Is(err, ErrConflictingFieldPolicy)
}
