// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import "fmt"

// NoticeKind classifies a [Notice].
type NoticeKind int

const (
	// NoticeSuccess reports a confirmed mutation.
	NoticeSuccess NoticeKind = iota + 1

	// NoticeFailure reports a failed request. The session continues.
	NoticeFailure

	// NoticeAuth reports an authentication failure. The session is
	// torn down after the engine's teardown delay.
	NoticeAuth
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeSuccess:
		return "success"
	case NoticeFailure:
		return "failure"
	case NoticeAuth:
		return "auth"
	default:
		return fmt.Sprintf("NoticeKind(%d)", int(k))
	}
}

// Notice is a transient, user-facing message.
type Notice struct {
	Kind    NoticeKind
	Message string

	// Err is the underlying error for failures, nil for successes.
	Err error
}

// User-facing notice texts.
const (
	MessageTaskAdded   = "Task added successfully!"
	MessageTaskUpdated = "Task updated successfully!"
	MessageTaskDeleted = "Task deleted successfully!"

	MessageFetchTasksFailed   = "Failed to fetch tasks!"
	MessageAddTaskFailed      = "Failed to add task!"
	MessageUpdateTaskFailed   = "Failed to update task!"
	MessageDeleteTaskFailed   = "Failed to delete task!"
	MessageFetchUsersFailed   = "Failed to fetch users!"
	MessageFetchProfileFailed = "Failed to fetch user profile!"
)
