// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the task list wire types shared by the
// gateway, the cache, and presentation.
//
// [Task] is the server-owned record. Its CreatedBy and AssignedUser
// fields are [UserRef] values, which the server sends either as a bare
// user identifier or as an embedded user summary; UserRef.ID is always
// the resolved bare identifier. [Status] has exactly two values and
// decoding anything else fails. [Date] is a day-granularity civil date
// used for due-date filtering.
//
// [Query] is the filter and sort state sent with a list request.
// [CreateTaskRequest] and [UpdateTaskRequest] are mutation payloads;
// both normalize due dates to UTC on the wire.
//
// This package depends on no other packages in this module.
package schema
