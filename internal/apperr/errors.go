// Package apperr defines the error kinds from spec.md §7 as plain sentinel
// errors, matched with errors.Is/As the way the teacher repo does error
// handling (errors.New + wrapping, no custom error-kind framework).
package apperr

import "errors"

// NotFound kind.
var (
	ErrProjectNotFound     = errors.New("project not found")
	ErrRoleNotFound        = errors.New("role not found")
	ErrInviteNotFound      = errors.New("invite not found")
	ErrGroupNotFound       = errors.New("group not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrServiceHostNotFound = errors.New("service host not found")
	ErrThumbnailNotFound   = errors.New("thumbnail not found")
)

// Conflict kind.
var (
	ErrGroupExists                  = errors.New("group already exists")
	ErrInviteAlreadyExists          = errors.New("a pending invite already exists")
	ErrServiceHostAlreadyAuthorized = errors.New("service host already authorized")
)

// Precondition kind.
var (
	ErrCannotDeleteLastRole = errors.New("cannot delete the last role of a project")
	ErrInvalidName          = errors.New("invalid name")
	ErrInvalidClientID      = errors.New("invalid client id")
)

// Internal kind. These are logged with correlation ids and surfaced to
// external clients as an opaque "internal error" (§7 propagation policy);
// they are never shown verbatim over HTTP.
var (
	ErrStoreUnavailable             = errors.New("store unavailable")
	ErrBlobUnavailable              = errors.New("blob store unavailable")
	ErrThumbnailDecode              = errors.New("failed to decode thumbnail")
	ErrThumbnailEncode              = errors.New("failed to encode thumbnail")
	ErrBase64Decode                 = errors.New("failed to decode base64 payload")
	ErrUnexpectedInvariantViolation = errors.New("unexpected invariant violation")
)

// IsInternal reports whether err (or anything it wraps) is one of the
// Internal-kind sentinels above, i.e. should be logged with detail and
// returned to external clients as an opaque message.
func IsInternal(err error) bool {
	switch {
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrBlobUnavailable),
		errors.Is(err, ErrThumbnailDecode),
		errors.Is(err, ErrThumbnailEncode),
		errors.Is(err, ErrBase64Decode),
		errors.Is(err, ErrUnexpectedInvariantViolation):
		return true
	default:
		return false
	}
}
