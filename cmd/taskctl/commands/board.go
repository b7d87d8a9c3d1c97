// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/tasklist/cmd/taskctl/cli"
	"github.com/bureau-foundation/tasklist/lib/credential"
	"github.com/bureau-foundation/tasklist/lib/taskui"
	"github.com/bureau-foundation/tasklist/lib/tasksync"
)

func boardCommand(globals *globalOptions, streams Streams) *cli.Command {
	return &cli.Command{
		Name:    "board",
		Summary: "Open the interactive task board",
		Description: `Open a full-screen board with Pending and Completed columns.

The board refetches whenever a filter changes and follows the
credential file: signing in or out from another terminal takes effect
here too. When the server rejects the session the board shows the
reason, then exits after session.teardown_delay.

Log output is held until the board exits.`,
		Usage: "taskctl board",
		Flags: globals.flags("board", nil),
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			held := &lockedBuffer{}
			defer held.flushTo(streams.Err)
			boardStreams := Streams{In: streams.In, Out: streams.Out, Err: held}

			env, err := globals.open(boardStreams, "board")
			if err != nil {
				return err
			}
			defer env.Close()

			delay := env.config.Session.TeardownDelay
			if delay == 0 {
				delay = boardTeardownDelay
			}
			run, err := env.resumeEngine(tasksync.Config{TeardownDelay: delay})
			if err != nil {
				return err
			}
			defer run.close()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				err := credential.Watch(ctx, credential.WatchConfig{
					Path:     env.store.Path(),
					OnChange: func() { env.manager.Reload() },
					Logger:   env.logger,
				})
				if err != nil {
					env.logger.Warn("credential watch stopped", "error", err)
				}
			}()

			model := taskui.NewModel(ctx, run.engine)
			defer model.Close()
			program := tea.NewProgram(model,
				tea.WithContext(ctx),
				tea.WithInput(streams.In),
				tea.WithOutput(streams.Out),
				tea.WithAltScreen(),
			)
			final, err := program.Run()
			if err != nil && ctx.Err() == nil {
				return cli.Internal("board: %w", err)
			}
			if finalModel, ok := final.(taskui.Model); ok && finalModel.TeardownReason() != "" {
				return cli.Unauthenticated("signed out: %s", finalModel.TeardownReason())
			}
			return nil
		},
	}
}

// lockedBuffer collects output written while the board owns the
// terminal.
type lockedBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *lockedBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(data)
}

func (b *lockedBuffer) flushTo(w io.Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffer.WriteTo(w)
}
