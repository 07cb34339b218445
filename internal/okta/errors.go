package okta

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// errorCodeNotFound is the directory error code for a missing resource.
	errorCodeNotFound = "E0000007"
)

var (
	// ErrMissingCredentials is returned when neither a client id with a
	// private key nor an API token is configured.
	ErrMissingCredentials = errors.New("okta credentials missing: configure clientid/privatekey or token")

	// ErrConflictingFilter is returned when deprovisioned users are requested
	// together with a custom search expression. The deprovisioned lookup is
	// itself a search and the two can not be combined.
	ErrConflictingFilter = errors.New("cannot combine a search expression with IncludeDeprovisioned")
)

// APIError is a structured error answer from the directory API.
type APIError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorSummary string `json:"errorSummary"`
	ErrorID      string `json:"errorId"`
	Status       int    `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("okta api error %s (http %d): %s", e.ErrorCode, e.Status, e.ErrorSummary)
}

// IsNotFound reports whether err represents a missing directory resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == errorCodeNotFound || apiErr.Status == http.StatusNotFound
	}

	return false
}
