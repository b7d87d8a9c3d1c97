// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package permission is the local, advisory ownership check applied
// before mutation requests. The server remains the authority.
package permission

import (
	"github.com/bureau-foundation/tasklist/lib/schema"
	"github.com/bureau-foundation/tasklist/lib/session"
)

// CanMutate reports whether identity may update or delete task: true
// iff identity is non-nil and is the task's creator. The creator is
// compared by bare identifier whether the server embedded it or not.
func CanMutate(task schema.Task, identity *session.Identity) bool {
	if identity == nil || identity.SubjectID == "" {
		return false
	}
	return task.CreatedBy.ID == identity.SubjectID
}
