// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestToolErrorWrapping(t *testing.T) {
	sentinel := errors.New("boom")
	err := fmt.Errorf("outer: %w", Transient("request failed: %w", sentinel))

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is does not reach the wrapped error")
	}
	if CategoryOf(err) != CategoryTransient {
		t.Errorf("category = %q", CategoryOf(err))
	}
	if CategoryOf(sentinel) != CategoryInternal {
		t.Errorf("plain error category = %q", CategoryOf(sentinel))
	}
	if Unauthenticated("x").Error() != "x" {
		t.Error("ToolError.Error adds decoration")
	}
}

func TestWriteJSONNilSlice(t *testing.T) {
	var buffer bytes.Buffer
	var empty []string
	if err := WriteJSON(&buffer, empty); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buffer.String()) != "[]" {
		t.Errorf("nil slice encoded as %q", buffer.String())
	}
}

func TestReadSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  abc.def.ghi\n"), 0600); err != nil {
		t.Fatal(err)
	}
	buffer, err := ReadSecret(path, "Token", nil, nil)
	if err != nil {
		t.Fatalf("ReadSecret(file): %v", err)
	}
	if buffer.String() != "abc.def.ghi" {
		t.Errorf("file secret = %q", buffer.String())
	}
	buffer.Close()

	buffer, err = ReadSecret("-", "Token", strings.NewReader("from-stdin\n"), nil)
	if err != nil {
		t.Fatalf("ReadSecret(-): %v", err)
	}
	if buffer.String() != "from-stdin" {
		t.Errorf("stdin secret = %q", buffer.String())
	}
	buffer.Close()

	if _, err := ReadSecret("", "Token", strings.NewReader("\n"), nil); CategoryOf(err) != CategoryValidation {
		t.Errorf("empty piped input: %v", err)
	}
	if _, err := ReadSecret(filepath.Join(t.TempDir(), "missing"), "Token", nil, nil); CategoryOf(err) != CategoryValidation {
		t.Errorf("missing file: %v", err)
	}
}
