package access

import (
	"fmt"
	"net/http"
)

// Status classifies what the configured credentials may do with a repository.
type Status string

// Access statuses.
const (
	StatusReadWrite    Status = "read-write"
	StatusReadOnly     Status = "read-only"
	StatusInaccessible Status = "inaccessible"
	StatusCheckFailed  Status = "check_failed"
	StatusUnknown      Status = "unknown"
)

const (
	checkErrorTemplateConstant           = "access check for %s failed: %s"
	checkErrorWithStatusTemplateConstant = "access check for %s failed with HTTP %d: %s"
)

// IsProblematic reports whether the status needs operator attention.
func (status Status) IsProblematic() bool {
	switch status {
	case StatusInaccessible, StatusCheckFailed, StatusUnknown:
		return true
	default:
		return false
	}
}

// ClassifyHTTPOutcome maps an API response status to an access status.
// hasWrite is consulted only for successful responses.
func ClassifyHTTPOutcome(statusCode int, hasWrite func() bool) Status {
	switch {
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		if hasWrite != nil && hasWrite() {
			return StatusReadWrite
		}
		return StatusReadOnly
	case statusCode == http.StatusNotFound:
		return StatusInaccessible
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return StatusReadOnly
	default:
		return StatusCheckFailed
	}
}

// CheckError describes a transient failure talking to a platform API.
type CheckError struct {
	RepositoryPath string
	HTTPStatus     int
	Cause          error
}

// Error describes the failure.
func (checkError CheckError) Error() string {
	causeDescription := "unknown error"
	if checkError.Cause != nil {
		causeDescription = checkError.Cause.Error()
	}
	if checkError.HTTPStatus > 0 {
		return fmt.Sprintf(checkErrorWithStatusTemplateConstant, checkError.RepositoryPath, checkError.HTTPStatus, causeDescription)
	}
	return fmt.Sprintf(checkErrorTemplateConstant, checkError.RepositoryPath, causeDescription)
}

// Unwrap exposes the underlying cause.
func (checkError CheckError) Unwrap() error {
	return checkError.Cause
}
