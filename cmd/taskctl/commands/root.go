// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the taskctl command tree.
package commands

import (
	"github.com/bureau-foundation/tasklist/cmd/taskctl/cli"
)

// Root returns the taskctl command tree bound to streams.
func Root(streams Streams) *cli.Command {
	globals := &globalOptions{}
	return &cli.Command{
		Name:    "taskctl",
		Summary: "Task list client",
		Description: `taskctl signs in to a task server and manages the signed-in user's
tasks: listing with filters, adding, editing, completing and deleting.
"taskctl board" opens an interactive two-column view that keeps itself
in sync with the server and with the credential file.

Every command accepts --config, --server, --credential-file and
--log-level. The config file defaults to $TASKLIST_CONFIG.`,
		HelpOutput: streams.Err,
		Subcommands: []*cli.Command{
			loginCommand(globals, streams),
			logoutCommand(globals, streams),
			whoamiCommand(globals, streams),
			keygenCommand(globals, streams),
			listCommand(globals, streams),
			addCommand(globals, streams),
			updateCommand(globals, streams),
			statusCommand(globals, streams, "done"),
			statusCommand(globals, streams, "reopen"),
			deleteCommand(globals, streams),
			usersCommand(globals, streams),
			boardCommand(globals, streams),
		},
	}
}
