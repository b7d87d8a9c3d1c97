// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UserProfile is a user directory record.
type UserProfile struct {
	ID    string `json:"userId"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type userWire struct {
	UserID   string `json:"userId"`
	MongoID  string `json:"_id"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (w userWire) resolvedID() string {
	switch {
	case w.UserID != "":
		return w.UserID
	case w.MongoID != "":
		return w.MongoID
	default:
		return w.ID
	}
}

func (w userWire) resolvedName() string {
	if w.Name != "" {
		return w.Name
	}
	return w.Username
}

// UnmarshalJSON accepts "userId", "_id" or "id" for the identifier and
// "name" or "username" for the display name.
func (p *UserProfile) UnmarshalJSON(data []byte) error {
	var wire userWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*p = UserProfile{ID: wire.resolvedID(), Name: wire.resolvedName(), Email: wire.Email}
	return nil
}

// DisplayName returns the name, falling back to the email and then the id.
func (p UserProfile) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	default:
		return p.ID
	}
}

// UserRef references a user from a task. The server sends either a
// bare identifier or an embedded summary; Embedded records which.
type UserRef struct {
	ID       string
	Name     string
	Email    string
	Embedded bool
}

// Ref returns a bare reference to id.
func Ref(id string) UserRef { return UserRef{ID: id} }

// UnmarshalJSON accepts a string, an object, or null.
func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = UserRef{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = UserRef{ID: id}
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var wire userWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return err
		}
		*r = UserRef{ID: wire.resolvedID(), Name: wire.resolvedName(), Email: wire.Email, Embedded: true}
		return nil
	}
	return fmt.Errorf("user reference: expected string or object, got %s", data)
}

// MarshalJSON writes the form the reference was decoded from.
func (r UserRef) MarshalJSON() ([]byte, error) {
	if !r.Embedded {
		return json.Marshal(r.ID)
	}
	body := map[string]string{"_id": r.ID}
	if r.Name != "" {
		body["username"] = r.Name
	}
	if r.Email != "" {
		body["email"] = r.Email
	}
	return json.Marshal(body)
}

// Label is the best human-readable name for the reference.
func (r UserRef) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}
