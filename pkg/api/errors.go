package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a non-2xx response from the service.
// Error() returns the service's own message so it can be shown to the user as-is.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Code       int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// errorBody is the JSON error envelope the service returns
type errorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// newError builds an Error from a response body, tolerating non-JSON bodies
func newError(method, path string, status int, body []byte) *Error {
	apiErr := &Error{
		Method:     method,
		Path:       path,
		StatusCode: status,
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		apiErr.Message = eb.Message
		apiErr.Code = eb.Code
		return apiErr
	}

	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		apiErr.Message = text
	}
	return apiErr
}

// StatusCode extracts the HTTP status from an error chain, 0 if there is none
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
