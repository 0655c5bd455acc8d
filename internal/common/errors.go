// Package common defines shared constants and sentinel errors used across
// the storage, sync and cloud layers of the video diary. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Storage-provider errors.
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("unavailable in this environment")
	ErrQuotaExceeded    = errors.New("storage quota exceeded")
	ErrCorrupt          = errors.New("corrupt metadata")

	// Cloud / sync errors.
	ErrAuthExpired = errors.New("authorization expired")
	ErrTransient   = errors.New("transient upload failure")
)

// IsQuota reports whether err is a quota rejection. Quota failures abort a
// sync batch instead of being retried.
func IsQuota(err error) bool { return errors.Is(err, ErrQuotaExceeded) }

// IsAuth reports whether err is an authorization failure. Auth failures
// preserve queue items for retry after re-authentication.
func IsAuth(err error) bool { return errors.Is(err, ErrAuthExpired) }

// IsRetryable reports whether err should be retried under backoff. Quota and
// auth failures have dedicated handling; everything else is assumed
// transient.
func IsRetryable(err error) bool {
	return err != nil && !IsQuota(err) && !IsAuth(err)
}
