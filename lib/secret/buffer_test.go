// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFromBytesZeroesSource(t *testing.T) {
	source := []byte("eyJhbGciOiJIUzI1NiJ9.payload.signature")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "eyJhbGciOiJIUzI1NiJ9.payload.signature" {
		t.Errorf("String() = %q", got)
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source byte %d not zeroed", index)
		}
	}
}

func TestNewFromBytesRejectsEmpty(t *testing.T) {
	if _, err := NewFromBytes(nil); err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	buffer, err := NewFromString("token")
	if err != nil {
		t.Fatalf("NewFromString: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if buffer.Len() != 0 {
		t.Errorf("Len() after Close = %d", buffer.Len())
	}
}

func TestStringPanicsAfterClose(t *testing.T) {
	buffer, err := NewFromString("token")
	if err != nil {
		t.Fatalf("NewFromString: %v", err)
	}
	buffer.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("String() on closed buffer did not panic")
		}
	}()
	_ = buffer.String()
}

func TestRead(t *testing.T) {
	t.Run("trims whitespace", func(t *testing.T) {
		buffer, err := Read(strings.NewReader("  abc.def.ghi \n"))
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		defer buffer.Close()
		if got := buffer.String(); got != "abc.def.ghi" {
			t.Errorf("Read = %q", got)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := Read(strings.NewReader("   \n")); err == nil {
			t.Fatal("expected error for blank input")
		}
		if _, err := Read(strings.NewReader("")); err == nil {
			t.Fatal("expected error for empty input")
		}
	})
}

func TestReadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	buffer, err := ReadFromPath(path)
	if err != nil {
		t.Fatalf("ReadFromPath: %v", err)
	}
	defer buffer.Close()
	if got := buffer.String(); got != "from-file" {
		t.Errorf("ReadFromPath = %q", got)
	}
}
