package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a document or asset does not exist.
	ErrNotFound = errors.New("content: not found")
	// ErrConflict is returned when a create collides with an existing id.
	ErrConflict = errors.New("content: document already exists")
	// ErrUnauthorized is returned for writes without a token, or when the
	// store rejects the token.
	ErrUnauthorized = errors.New("content: unauthorized")
)

// APIError is a non-2xx answer from the hosted store.
type APIError struct {
	StatusCode  int
	Type        string
	Description string
	Body        string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("content api: status %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("content api: status %d", e.StatusCode)
}

// Is maps status codes onto the package sentinels so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var payload struct {
		Error struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Type = payload.Error.Type
		apiErr.Description = payload.Error.Description
		if apiErr.Description == "" {
			apiErr.Description = payload.Message
		}
	}
	return apiErr
}
