// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

type record struct {
	Version  int       `cbor:"version"`
	Token    string    `cbor:"token"`
	StoredAt time.Time `cbor:"stored_at"`
}

func TestMarshalIsDeterministic(t *testing.T) {
	value := record{Version: 1, Token: "abc", StoredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("two encodings of the same value differ")
	}

	var decoded record
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Token != "abc" || !decoded.StoredAt.Equal(value.StoredAt) {
		t.Errorf("decoded %+v, want %+v", decoded, value)
	}
}

func TestUnmarshalRejectsUnknownField(t *testing.T) {
	data, err := Marshal(map[string]any{"version": 1, "token": "abc", "refresh_token": "x"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded record
	if err := Unmarshal(data, &decoded); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
