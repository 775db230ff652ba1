package notion

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned by Handle when no integration token is configured.
var ErrMissingAPIKey = errors.New("notion: API key is not configured")

// APIError represents a non-2xx response from the Notion API. Notion
// returns {"object":"error","status":...,"code":...,"message":...}.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (err *APIError) Error() string {
	if err.Code != "" {
		return fmt.Sprintf("notion: HTTP %d %s: %s", err.StatusCode, err.Code, err.Message)
	}
	return fmt.Sprintf("notion: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsNotFound reports whether err is a 404 / object_not_found response.
func IsNotFound(err error) bool {
	var apiError *APIError
	if !errors.As(err, &apiError) {
		return false
	}
	return apiError.StatusCode == 404 || apiError.Code == "object_not_found"
}
