package notion

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the store, carrying the structured
// status so callers dispatch on data instead of matching error strings.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion API error: status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion API error: status %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether the error is the store's throttling signal.
// Only these errors are worth retrying with backoff; everything else fails
// fast.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
