// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultAuthReason is shown when a 401 carries no reason.
const DefaultAuthReason = "Authentication Error"

// AuthError is a 401 from any endpoint. It is the only error that ends
// the session. Callers extract it with errors.As:
//
//	var authErr *taskapi.AuthError
//	if errors.As(err, &authErr) {
//	    manager.Teardown(authErr.DisplayReason())
//	}
type AuthError struct {
	// Reason is the server's human-readable message, possibly empty.
	Reason string
	Method string
	Path   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("taskapi: %s %s: unauthorized: %s", e.Method, e.Path, e.DisplayReason())
}

// DisplayReason returns Reason, or DefaultAuthReason when it is empty.
func (e *AuthError) DisplayReason() string {
	if e.Reason == "" {
		return DefaultAuthReason
	}
	return e.Reason
}

// ValidationError is any other 4xx: the server rejected the request
// as given, for example a create without a title.
type ValidationError struct {
	StatusCode int
	Message    string
	Method     string
	Path       string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("taskapi: %s %s: rejected (%d)", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("taskapi: %s %s: rejected (%d): %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// NetworkError covers transport failures, timeouts, 5xx responses, and
// responses that could not be decoded. StatusCode is zero when no
// response was received.
type NetworkError struct {
	StatusCode int
	Method     string
	Path       string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode >= 500:
		return fmt.Sprintf("taskapi: %s %s: server error (%d): %v", e.Method, e.Path, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("taskapi: %s %s (%d): %v", e.Method, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("taskapi: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsNetworkError reports whether err is or wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var networkErr *NetworkError
	return errors.As(err, &networkErr)
}

// errorMessage pulls a human-readable message out of an error body.
// The task server uses "msg"; "message" and "error" are also accepted.
// A non-JSON body is used verbatim, trimmed.
// maxMessageBytes bounds a non-JSON error body shown to the user.
const maxMessageBytes = 200

func errorMessage(body []byte) string {
	var fields struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		text := strings.TrimSpace(string(body))
		if len(text) > maxMessageBytes {
			cut := maxMessageBytes
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut] + "..."
		}
		return text
	}
	switch {
	case fields.Msg != "":
		return fields.Msg
	case fields.Message != "":
		return fields.Message
	default:
		return fields.Error
	}
}
