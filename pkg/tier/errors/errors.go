// Package errors provides the error taxonomy shared by the tiers, the
// union view, and the migration scheduler. It is a leaf package with no
// internal dependencies so every layer can import it without cycles.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies a tier-level failure.
type ErrorCode int

const (
	// ErrNotFound indicates the requested path does not exist in the
	// resolved tier.
	ErrNotFound ErrorCode = iota + 1

	// ErrRemoteUnavailable indicates the remote store could not be
	// reached. Retryable.
	ErrRemoteUnavailable

	// ErrQuotaExceeded indicates provider-side throttling or quota
	// exhaustion. Retryable with backoff.
	ErrQuotaExceeded

	// ErrInsufficientSpace indicates a local write would drop free
	// space below the configured floor.
	ErrInsufficientSpace

	// ErrCrossTierRename indicates a rename whose endpoints resolve to
	// different tiers.
	ErrCrossTierRename

	// ErrNotReady indicates an operation arrived before both tiers
	// reported ready. Transient; callers should retry after readiness.
	ErrNotReady

	// ErrReadOnlyTier indicates a mutation that would have to be
	// applied to the remote tier, which the union view treats as
	// strictly read-only.
	ErrReadOnlyTier

	// ErrConfigInvalid indicates unusable configuration. Fatal at
	// startup, before the serve loop.
	ErrConfigInvalid

	// ErrAlreadyExists indicates the destination path already exists.
	ErrAlreadyExists

	// ErrNotEmpty indicates a directory delete on a non-empty directory.
	ErrNotEmpty

	// ErrIsDirectory indicates a file operation on a directory.
	ErrIsDirectory

	// ErrNotDirectory indicates a directory operation on a file.
	ErrNotDirectory

	// ErrInvalidPath indicates a path that escapes the tier root or is
	// otherwise malformed.
	ErrInvalidPath

	// ErrIOError indicates an underlying I/O failure with no more
	// specific classification.
	ErrIOError
)

// String returns the canonical name for the code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrRemoteUnavailable:
		return "RemoteUnavailable"
	case ErrQuotaExceeded:
		return "QuotaExceeded"
	case ErrInsufficientSpace:
		return "InsufficientSpace"
	case ErrCrossTierRename:
		return "CrossTierRenameUnsupported"
	case ErrNotReady:
		return "NotReady"
	case ErrReadOnlyTier:
		return "ReadOnlyTier"
	case ErrConfigInvalid:
		return "ConfigInvalid"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrNotEmpty:
		return "NotEmpty"
	case ErrIsDirectory:
		return "IsDirectory"
	case ErrNotDirectory:
		return "NotDirectory"
	case ErrInvalidPath:
		return "InvalidPath"
	case ErrIOError:
		return "IOError"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// TierError is the concrete error type carried across tier boundaries.
// It propagates unchanged through the union view to the caller.
type TierError struct {
	Code    ErrorCode
	Message string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *TierError) Error() string {
	switch {
	case e.Path != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s (path: %s): %v", e.Code, e.Message, e.Path, e.Cause)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (path: %s)", e.Code, e.Message, e.Path)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *TierError) Unwrap() error {
	return e.Cause
}

// CodeOf extracts the ErrorCode from err, or 0 if err carries none.
func CodeOf(err error) ErrorCode {
	var te *TierError
	if stderrors.As(err, &te) {
		return te.Code
	}
	return 0
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether the error class is worth retrying with
// backoff (connection loss and provider throttling).
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrRemoteUnavailable, ErrQuotaExceeded:
		return true
	default:
		return false
	}
}

// NewNotFound creates a NotFound error.
func NewNotFound(path string) *TierError {
	return &TierError{Code: ErrNotFound, Message: "path not found", Path: path}
}

// NewRemoteUnavailable creates a RemoteUnavailable error wrapping cause.
func NewRemoteUnavailable(cause error) *TierError {
	return &TierError{Code: ErrRemoteUnavailable, Message: "remote store unreachable", Cause: cause}
}

// NewQuotaExceeded creates a QuotaExceeded error wrapping cause.
func NewQuotaExceeded(cause error) *TierError {
	return &TierError{Code: ErrQuotaExceeded, Message: "remote provider throttled the request", Cause: cause}
}

// NewInsufficientSpace creates an InsufficientSpace error. The message
// carries the floor and projected free space for the diagnostic.
func NewInsufficientSpace(path string, free, need, floor uint64) *TierError {
	return &TierError{
		Code:    ErrInsufficientSpace,
		Message: fmt.Sprintf("write of %d bytes would drop free space %d below floor %d", need, free, floor),
		Path:    path,
	}
}

// NewCrossTierRename creates a CrossTierRenameUnsupported error.
func NewCrossTierRename(oldPath, newPath string) *TierError {
	return &TierError{
		Code:    ErrCrossTierRename,
		Message: fmt.Sprintf("rename to %q crosses tiers", newPath),
		Path:    oldPath,
	}
}

// NewNotReady creates a NotReady error naming the mount that is not up.
func NewNotReady(mount string) *TierError {
	return &TierError{Code: ErrNotReady, Message: fmt.Sprintf("%s tier is not ready", mount)}
}

// NewReadOnlyTier creates a ReadOnlyTier error.
func NewReadOnlyTier(path string) *TierError {
	return &TierError{Code: ErrReadOnlyTier, Message: "remote tier is read-only", Path: path}
}

// NewConfigInvalid creates a ConfigInvalid error.
func NewConfigInvalid(msg string, cause error) *TierError {
	return &TierError{Code: ErrConfigInvalid, Message: msg, Cause: cause}
}

// NewAlreadyExists creates an AlreadyExists error.
func NewAlreadyExists(path string) *TierError {
	return &TierError{Code: ErrAlreadyExists, Message: "path already exists", Path: path}
}

// NewNotEmpty creates a NotEmpty error.
func NewNotEmpty(path string) *TierError {
	return &TierError{Code: ErrNotEmpty, Message: "directory not empty", Path: path}
}

// NewIsDirectory creates an IsDirectory error.
func NewIsDirectory(path string) *TierError {
	return &TierError{Code: ErrIsDirectory, Message: "is a directory", Path: path}
}

// NewNotDirectory creates a NotDirectory error.
func NewNotDirectory(path string) *TierError {
	return &TierError{Code: ErrNotDirectory, Message: "not a directory", Path: path}
}

// NewInvalidPath creates an InvalidPath error.
func NewInvalidPath(path string) *TierError {
	return &TierError{Code: ErrInvalidPath, Message: "invalid path", Path: path}
}

// NewIOError creates an IOError wrapping cause.
func NewIOError(path string, cause error) *TierError {
	return &TierError{Code: ErrIOError, Message: "i/o error", Path: path, Cause: cause}
}
