// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies command errors so scripts can decide
// whether to fix input, sign in again, or retry.
type ErrorCategory string

const (
	// CategoryValidation: missing arguments, unparseable values, or a
	// request the server rejected as given.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound: the referenced task is not in the list.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryForbidden: the caller may not change the task.
	CategoryForbidden ErrorCategory = "forbidden"

	// CategoryUnauthenticated: no session, or the server rejected the
	// credential. The caller should run "taskctl login".
	CategoryUnauthenticated ErrorCategory = "unauthenticated"

	// CategoryTransient: network failure, timeout, or a server error.
	// Retrying may help.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal: anything else.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized error. It wraps the underlying error so
// errors.Is and errors.As see the full chain.
type ToolError struct {
	Category ErrorCategory
	Err      error
}

func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }

// Validation creates a validation error.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Forbidden creates a forbidden error.
func Forbidden(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryForbidden, Err: fmt.Errorf(format, args...)}
}

// Unauthenticated creates an unauthenticated error.
func Unauthenticated(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryUnauthenticated, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// CategoryOf returns the category of the first ToolError in err's
// chain, or CategoryInternal.
func CategoryOf(err error) ErrorCategory {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Category
	}
	return CategoryInternal
}
