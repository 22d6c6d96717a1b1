// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error variables for common backend failures. A *FetchError matches the
// one for its status with errors.Is.
var (
	// ErrCredentialExpired means the gate refused the request; nothing was
	// sent.
	ErrCredentialExpired = errors.New("credential expired")

	// ErrAuthFailed indicates the backend rejected the credential.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNotFound indicates the thread does not exist on the backend.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")
)

// fallbackErrorMessage is used when the error body cannot be decoded.
const fallbackErrorMessage = "Failed to retrieve detailed error message"

// FetchError is a non-2xx response.
type FetchError struct {
	URL        string
	Status     int
	StatusText string
	Message    string
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("request to %s failed: %d %s: %s", e.URL, e.Status, e.StatusText, e.Message)
}

// Is maps well-known statuses to the package sentinels.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// Temporary reports whether retrying may help.
func (e *FetchError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// newFetchError builds a FetchError from a failed response body. The message
// is "<error> (Status: <status>)", preferring the body's fields.
func newFetchError(url string, resp *http.Response, body []byte) *FetchError {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	msg := eb.Error
	if msg == "" {
		msg = fallbackErrorMessage
	}
	status := eb.Status
	if status == 0 {
		status = resp.StatusCode
	}
	return &FetchError{
		URL:        url,
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Message:    fmt.Sprintf("%s (Status: %d)", msg, status),
	}
}
