package s3

import (
	"errors"
	"strings"

	tiererrors "github.com/marmos91/tierfs/pkg/tier/errors"
)

// classify maps an S3 SDK error onto the tier error taxonomy. Already
// classified errors pass through unchanged.
func classify(err error, path string) error {
	if err == nil {
		return nil
	}

	var te *tiererrors.TierError
	if errors.As(err, &te) {
		return err
	}

	switch {
	case isNotFoundError(err):
		return tiererrors.NewNotFound(path)
	case isThrottleError(err):
		return tiererrors.NewQuotaExceeded(err)
	default:
		return tiererrors.NewRemoteUnavailable(err)
	}
}

// isNotFoundError checks for S3 missing-key/bucket responses.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") ||
		strings.Contains(msg, "NoSuchBucket") ||
		strings.Contains(msg, "NotFound") ||
		strings.Contains(msg, "404")
}

// isThrottleError checks for provider-side throttling responses.
func isThrottleError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SlowDown") ||
		strings.Contains(msg, "Throttling") ||
		strings.Contains(msg, "TooManyRequests") ||
		strings.Contains(msg, "RequestLimitExceeded") ||
		strings.Contains(msg, "503")
}
