// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string
	root := &Command{
		Name: "taskctl",
		Subcommands: []*Command{
			{Name: "list", Run: func(context.Context, []string) error { called = "list"; return nil }},
			{Name: "add", Run: func(context.Context, []string) error { called = "add"; return nil }},
		},
	}

	if err := root.Execute(context.Background(), []string{"add"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "add" {
		t.Errorf("dispatched to %q, want %q", called, "add")
	}
}

func TestCommand_Execute_ParsesFlagsAndArgs(t *testing.T) {
	var status string
	var received []string
	command := &Command{
		Name: "list",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.StringVar(&status, "status", "", "status filter")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error {
			received = args
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"one", "--status", "Pending", "two"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if status != "Pending" {
		t.Errorf("status = %q", status)
	}
	if strings.Join(received, ",") != "one,two" {
		t.Errorf("args = %v", received)
	}
}

func TestCommand_Execute_UnknownCommandSuggests(t *testing.T) {
	root := &Command{
		Name:        "taskctl",
		Subcommands: []*Command{{Name: "delete"}, {Name: "done"}},
	}
	err := root.Execute(context.Background(), []string{"delte"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), `did you mean "delete"`) {
		t.Errorf("error = %q", err)
	}
	if CategoryOf(err) != CategoryValidation {
		t.Errorf("category = %q", CategoryOf(err))
	}
}

func TestCommand_Execute_UnknownFlagSuggests(t *testing.T) {
	command := &Command{
		Name: "taskctl",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("taskctl", pflag.ContinueOnError)
			flagSet.String("status", "", "")
			return flagSet
		},
		Run: func(context.Context, []string) error { return nil },
	}
	err := command.Execute(context.Background(), []string{"--stauts", "x"})
	if err == nil || !strings.Contains(err.Error(), "did you mean --status?") {
		t.Fatalf("error = %v", err)
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	var help bytes.Buffer
	root := &Command{
		Name:        "taskctl",
		HelpOutput:  &help,
		Subcommands: []*Command{{Name: "list", Summary: "List tasks"}},
	}
	if err := root.Execute(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(help.String(), "list") || !strings.Contains(help.String(), "List tasks") {
		t.Errorf("help = %q", help.String())
	}
}

func TestCommand_Help(t *testing.T) {
	var help bytes.Buffer
	root := &Command{
		Name:       "taskctl",
		HelpOutput: &help,
		Subcommands: []*Command{{
			Name:        "list",
			Description: "List tasks on the server.",
			Examples:    []Example{{Description: "Completed first", Command: "taskctl list --status Completed --desc"}},
			Flags: func() *pflag.FlagSet {
				flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
				flagSet.Bool("desc", false, "sort descending")
				return flagSet
			},
			Run: func(context.Context, []string) error { t.Fatal("Run called for --help"); return nil },
		}},
	}
	if err := root.Execute(context.Background(), []string{"list", "--help"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	output := help.String()
	for _, want := range []string{"List tasks on the server.", "Usage:\n  taskctl list [flags]", "--desc", "# Completed first"} {
		if !strings.Contains(output, want) {
			t.Errorf("help missing %q:\n%s", want, output)
		}
	}
}
