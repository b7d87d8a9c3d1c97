// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for taskctl: a [Command] tree
// dispatched by name with pflag flag sets, structured help, typo
// suggestions for commands and flags, and categorized errors
// ([ToolError]) that the entry point turns into an exit status.
package cli
