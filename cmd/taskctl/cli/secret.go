// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/tasklist/lib/secret"
)

// ReadSecret reads a secret for a command. path names a file, "-"
// reads one line from stdin, and "" prompts on the terminal with echo
// disabled (or reads stdin when it is not a terminal). The prompt is
// written to prompter.
func ReadSecret(path, label string, stdin io.Reader, prompter io.Writer) (*secret.Buffer, error) {
	switch path {
	case "-":
		return readSecretFrom(stdin, "stdin")
	case "":
		file, ok := stdin.(*os.File)
		if !ok || !term.IsTerminal(int(file.Fd())) {
			return readSecretFrom(stdin, "stdin")
		}
		fmt.Fprintf(prompter, "%s: ", label)
		value, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(prompter)
		if err != nil {
			return nil, Internal("reading %s: %w", label, err)
		}
		if len(value) == 0 {
			return nil, Validation("%s is empty", label)
		}
		buffer, err := secret.NewFromBytes(value)
		if err != nil {
			secret.Zero(value)
			return nil, Internal("protecting %s: %w", label, err)
		}
		return buffer, nil
	default:
		buffer, err := secret.ReadFromPath(path)
		if err != nil {
			return nil, Validation("reading secret from %s: %w", path, err)
		}
		return buffer, nil
	}
}

func readSecretFrom(reader io.Reader, source string) (*secret.Buffer, error) {
	buffer, err := secret.Read(reader)
	if err != nil {
		return nil, Validation("reading secret from %s: %w", source, err)
	}
	return buffer, nil
}
