// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Status is the task lifecycle state.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
)

// ParseStatus accepts either status name, case-insensitively.
func ParseStatus(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pending":
		return StatusPending, nil
	case "completed":
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("invalid status %q (expected Pending or Completed)", value)
}

// Valid reports whether s is one of the two defined statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Toggled returns the other status.
func (s Status) Toggled() Status {
	if s == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}

// UnmarshalJSON rejects anything but the two defined statuses.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	status := Status(raw)
	if !status.Valid() {
		return fmt.Errorf("status: unknown value %q", raw)
	}
	*s = status
	return nil
}

// SortOrder is the due-date sort direction applied by the server.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// Toggled returns the opposite direction. The zero value counts as
// ascending.
func (o SortOrder) Toggled() SortOrder {
	if o == SortDescending {
		return SortAscending
	}
	return SortDescending
}

// Normalized maps the zero value to SortAscending.
func (o SortOrder) Normalized() SortOrder {
	if o == SortDescending {
		return SortDescending
	}
	return SortAscending
}

// Task is a server-owned task record.
type Task struct {
	ID           string
	Title        string
	Description  string
	DueDate      time.Time
	Status       Status
	CreatedBy    UserRef
	AssignedUser *UserRef
}

// DueDay returns the due date at day granularity (UTC).
func (t Task) DueDay() Date {
	if t.DueDate.IsZero() {
		return Date{}
	}
	return DateOf(t.DueDate.UTC())
}

type taskWire struct {
	MongoID      string          `json:"_id,omitempty"`
	ID           string          `json:"id,omitempty"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	DueDate      json.RawMessage `json:"dueDate,omitempty"`
	Status       Status          `json:"status"`
	CreatedBy    UserRef         `json:"createdBy"`
	AssignedUser *UserRef        `json:"assignedUser,omitempty"`
}

// UnmarshalJSON accepts the server's "_id" (or "id") and a due date in
// RFC 3339 or YYYY-MM-DD form.
func (t *Task) UnmarshalJSON(data []byte) error {
	var wire taskWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	id := wire.MongoID
	if id == "" {
		id = wire.ID
	}
	if id == "" {
		return fmt.Errorf("task: missing _id")
	}
	dueDate, err := parseTimestamp(wire.DueDate)
	if err != nil {
		return fmt.Errorf("task %s: dueDate: %w", id, err)
	}
	if wire.AssignedUser != nil && wire.AssignedUser.ID == "" {
		wire.AssignedUser = nil
	}
	*t = Task{
		ID:           id,
		Title:        wire.Title,
		Description:  wire.Description,
		DueDate:      dueDate,
		Status:       wire.Status,
		CreatedBy:    wire.CreatedBy,
		AssignedUser: wire.AssignedUser,
	}
	if !t.Status.Valid() {
		return fmt.Errorf("task %s: missing status", id)
	}
	return nil
}

// MarshalJSON writes the server's field names, with the due date in UTC.
func (t Task) MarshalJSON() ([]byte, error) {
	wire := taskWire{
		MongoID:      t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		CreatedBy:    t.CreatedBy,
		AssignedUser: t.AssignedUser,
	}
	if !t.DueDate.IsZero() {
		encoded, err := json.Marshal(formatTimestamp(t.DueDate))
		if err != nil {
			return nil, err
		}
		wire.DueDate = encoded
	}
	return json.Marshal(wire)
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed, nil
	}
	date, err := ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
	}
	return date.Time(), nil
}

// formatTimestamp is the UTC wire form, e.g. 2024-01-01T00:00:00Z.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Query is the filter and sort state of a list request. Zero-valued
// filter fields mean "no filter".
type Query struct {
	Status  Status
	DueDate Date
	Sort    SortOrder
}

// Values encodes the query string. Filter fields are sent only when
// set; sortOrder is always sent.
func (q Query) Values() url.Values {
	values := url.Values{}
	if q.Status != "" {
		values.Set("status", string(q.Status))
	}
	if !q.DueDate.IsZero() {
		values.Set("dueDate", q.DueDate.String())
	}
	values.Set("sortOrder", string(q.Sort.Normalized()))
	return values
}

// CreateTaskRequest is the body of a create call. CreatedBy is always
// the caller's own subject identifier.
type CreateTaskRequest struct {
	Title        string
	Description  string
	DueDate      time.Time
	Status       Status
	CreatedBy    string
	AssignedUser string
}

// MarshalJSON normalizes the due date to UTC.
func (r CreateTaskRequest) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"title":       r.Title,
		"description": r.Description,
		"status":      r.Status,
		"createdBy":   r.CreatedBy,
	}
	if !r.DueDate.IsZero() {
		body["dueDate"] = formatTimestamp(r.DueDate)
	}
	if r.AssignedUser != "" {
		body["assignedUser"] = r.AssignedUser
	}
	return json.Marshal(body)
}

// UpdateTaskRequest carries only the fields being changed. Nil fields
// are omitted from the body.
type UpdateTaskRequest struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	Status       *Status
	AssignedUser *string

	// CreatedBy is sent when non-empty. The client only ever fills it
	// with the task's recorded creator, never a different user.
	CreatedBy string
}

// IsEmpty reports whether no task field is being changed.
func (r UpdateTaskRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.DueDate == nil &&
		r.Status == nil && r.AssignedUser == nil
}

// MarshalJSON writes only the set fields, due date in UTC.
func (r UpdateTaskRequest) MarshalJSON() ([]byte, error) {
	body := map[string]any{}
	if r.Title != nil {
		body["title"] = *r.Title
	}
	if r.Description != nil {
		body["description"] = *r.Description
	}
	if r.DueDate != nil {
		body["dueDate"] = formatTimestamp(*r.DueDate)
	}
	if r.Status != nil {
		body["status"] = *r.Status
	}
	if r.AssignedUser != nil {
		body["assignedUser"] = *r.AssignedUser
	}
	if r.CreatedBy != "" {
		body["createdBy"] = r.CreatedBy
	}
	return json.Marshal(body)
}
