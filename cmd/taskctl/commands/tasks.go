// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tasklist/cmd/taskctl/cli"
	"github.com/bureau-foundation/tasklist/lib/schema"
	"github.com/bureau-foundation/tasklist/lib/taskfilter"
	"github.com/bureau-foundation/tasklist/lib/tasksync"
)

func listCommand(globals *globalOptions, streams Streams) *cli.Command {
	var (
		status     string
		due        string
		descending bool
		jsonOutput bool
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List tasks",
		Description: `List tasks visible to the signed-in user. Filters are applied by the
server. Tasks the caller did not create are marked read-only.`,
		Usage: "taskctl list [--status Pending|Completed] [--due YYYY-MM-DD] [--desc] [--json]",
		Examples: []cli.Example{
			{Description: "Completed tasks, newest due date first", Command: "taskctl list --status Completed --desc"},
			{Description: "Everything due on a day", Command: "taskctl list --due 2024-06-01"},
		},
		Flags: globals.flags("list", func(flagSet *pflag.FlagSet) {
			flagSet.StringVar(&status, "status", "", "only tasks with this status")
			flagSet.StringVar(&due, "due", "", "only tasks due on this day (YYYY-MM-DD)")
			flagSet.BoolVar(&descending, "desc", false, "sort by due date, latest first")
			flagSet.BoolVar(&jsonOutput, "json", false, "write JSON")
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			filter := taskfilter.New()
			if err := filter.SetFilter(taskfilter.FieldStatus, status); err != nil {
				return cli.Validation("--status: %w", err)
			}
			if err := filter.SetFilter(taskfilter.FieldDueDate, due); err != nil {
				return cli.Validation("--due: %w", err)
			}
			if descending {
				filter.SetSort(schema.SortDescending)
			}

			env, err := globals.open(streams, "list")
			if err != nil {
				return err
			}
			defer env.Close()
			run, err := env.resumeEngine(tasksync.Config{Filter: filter})
			if err != nil {
				return err
			}
			defer run.close()
			if err := run.failure(tasksync.MessageFetchTasksFailed); err != nil {
				return err
			}

			tasks := run.engine.Cache().Snapshot()
			if jsonOutput {
				return cli.WriteJSON(streams.Out, tasks)
			}
			writeTaskTable(streams.Out, tasks, run.engine.CanMutate)
			return nil
		},
	}
}

func writeTaskTable(w io.Writer, tasks []schema.Task, canMutate func(schema.Task) bool) {
	table := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(table, "ID\tSTATUS\tDUE\tTITLE\tCREATED BY\t")
	for _, task := range tasks {
		due := "-"
		if !task.DueDay().IsZero() {
			due = task.DueDay().String()
		}
		owner := task.CreatedBy.Label()
		if !canMutate(task) {
			owner += " (read-only)"
		}
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\t\n", task.ID, task.Status, due, task.Title, owner)
	}
	table.Flush()
}

// taskFields are the editable task flags shared by add and update.
type taskFields struct {
	title       string
	description string
	due         string
	status      string
	assign      string
}

func (fields *taskFields) register(flagSet *pflag.FlagSet, withTitle bool) {
	if withTitle {
		flagSet.StringVar(&fields.title, "title", "", "new title")
	}
	flagSet.StringVar(&fields.description, "description", "", "description (Markdown)")
	flagSet.StringVar(&fields.due, "due", "", "due date (YYYY-MM-DD)")
	flagSet.StringVar(&fields.status, "status", "", "Pending or Completed")
	flagSet.StringVar(&fields.assign, "assign", "", "assign to this user id")
}

func parseDue(value string) (time.Time, error) {
	date, err := schema.ParseDate(value)
	if err != nil {
		return time.Time{}, cli.Validation("--due: %w", err)
	}
	return date.Time(), nil
}

func parseStatus(value string) (schema.Status, error) {
	status, err := schema.ParseStatus(value)
	if err != nil {
		return "", cli.Validation("--status: %w", err)
	}
	return status, nil
}

func addCommand(globals *globalOptions, streams Streams) *cli.Command {
	var (
		fields     taskFields
		jsonOutput bool
	)
	return &cli.Command{
		Name:    "add",
		Summary: "Add a task",
		Description: `Add a task created by the signed-in user. The status defaults to
Pending. The new task's id is written to stdout.`,
		Usage: "taskctl add <title> [--description <text>] [--due YYYY-MM-DD] [--status <status>] [--assign <user-id>]",
		Examples: []cli.Example{
			{Description: "Add a task due on a day", Command: `taskctl add "Buy milk" --due 2024-01-01`},
		},
		Flags: globals.flags("add", func(flagSet *pflag.FlagSet) {
			fields.register(flagSet, false)
			flagSet.BoolVar(&jsonOutput, "json", false, "write the created task as JSON")
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("add takes exactly one argument: the title")
			}
			request := schema.CreateTaskRequest{
				Title:        args[0],
				Description:  fields.description,
				AssignedUser: fields.assign,
			}
			if fields.due != "" {
				dueDate, err := parseDue(fields.due)
				if err != nil {
					return err
				}
				request.DueDate = dueDate
			}
			if fields.status != "" {
				status, err := parseStatus(fields.status)
				if err != nil {
					return err
				}
				request.Status = status
			}

			env, err := globals.open(streams, "add")
			if err != nil {
				return err
			}
			defer env.Close()
			run, err := env.resumeEngine(tasksync.Config{})
			if err != nil {
				return err
			}
			defer run.close()
			if err := run.failure(); err != nil {
				return err
			}

			task, err := run.engine.CreateTask(ctx, request)
			if err != nil {
				return classify(err)
			}
			if jsonOutput {
				return cli.WriteJSON(streams.Out, task)
			}
			fmt.Fprintln(streams.Out, task.ID)
			return nil
		},
	}
}

func updateCommand(globals *globalOptions, streams Streams) *cli.Command {
	var (
		fields  taskFields
		flagSet *pflag.FlagSet
	)
	return &cli.Command{
		Name:    "update",
		Summary: "Change fields of a task",
		Description: `Change the given fields of a task created by the signed-in user.
Only flags that are passed are sent.`,
		Usage: "taskctl update <id> [--title <text>] [--description <text>] [--due YYYY-MM-DD] [--status <status>] [--assign <user-id>]",
		Flags: globals.flags("update", func(defined *pflag.FlagSet) {
			flagSet = defined
			fields.register(defined, true)
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("update takes exactly one argument: the task id")
			}
			var changes schema.UpdateTaskRequest
			if flagSet.Changed("title") {
				changes.Title = &fields.title
			}
			if flagSet.Changed("description") {
				changes.Description = &fields.description
			}
			if flagSet.Changed("due") {
				dueDate, err := parseDue(fields.due)
				if err != nil {
					return err
				}
				changes.DueDate = &dueDate
			}
			if flagSet.Changed("status") {
				status, err := parseStatus(fields.status)
				if err != nil {
					return err
				}
				changes.Status = &status
			}
			if flagSet.Changed("assign") {
				changes.AssignedUser = &fields.assign
			}
			if changes.IsEmpty() {
				return cli.Validation("nothing to change (pass at least one of --title, --description, --due, --status, --assign)")
			}

			return mutateTask(ctx, globals, streams, "update", func(run *engineRun) error {
				_, err := run.engine.UpdateTask(ctx, args[0], changes)
				return err
			})
		},
	}
}

func statusCommand(globals *globalOptions, streams Streams, name string) *cli.Command {
	summary, target := "Mark a task Completed", schema.StatusCompleted
	if name == "reopen" {
		summary, target = "Mark a task Pending", schema.StatusPending
	}
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   fmt.Sprintf("taskctl %s <id>", name),
		Flags:   globals.flags(name, nil),
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("%s takes exactly one argument: the task id", name)
			}
			return mutateTask(ctx, globals, streams, name, func(run *engineRun) error {
				var err error
				if target == schema.StatusCompleted {
					_, err = run.engine.Complete(ctx, args[0])
				} else {
					_, err = run.engine.Reopen(ctx, args[0])
				}
				return err
			})
		},
	}
}

func deleteCommand(globals *globalOptions, streams Streams) *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a task",
		Usage:   "taskctl delete <id>",
		Flags:   globals.flags("delete", nil),
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("delete takes exactly one argument: the task id")
			}
			return mutateTask(ctx, globals, streams, "delete", func(run *engineRun) error {
				return run.engine.DeleteTask(ctx, args[0])
			})
		},
	}
}

// mutateTask resumes the session, loads the task list the ownership
// check runs against, and applies mutate.
func mutateTask(ctx context.Context, globals *globalOptions, streams Streams, command string, mutate func(*engineRun) error) error {
	env, err := globals.open(streams, command)
	if err != nil {
		return err
	}
	defer env.Close()
	run, err := env.resumeEngine(tasksync.Config{})
	if err != nil {
		return err
	}
	defer run.close()
	if err := run.failure(tasksync.MessageFetchTasksFailed); err != nil {
		return err
	}
	return classify(mutate(run))
}

func usersCommand(globals *globalOptions, streams Streams) *cli.Command {
	var jsonOutput bool
	return &cli.Command{
		Name:    "users",
		Summary: "List users tasks can be assigned to",
		Usage:   "taskctl users [--json]",
		Flags: globals.flags("users", func(flagSet *pflag.FlagSet) {
			flagSet.BoolVar(&jsonOutput, "json", false, "write JSON")
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			env, err := globals.open(streams, "users")
			if err != nil {
				return err
			}
			defer env.Close()
			run, err := env.resumeEngine(tasksync.Config{})
			if err != nil {
				return err
			}
			defer run.close()
			if err := run.failure(tasksync.MessageFetchUsersFailed); err != nil {
				return err
			}

			users, err := run.engine.Users(ctx)
			if err != nil {
				return classify(err)
			}
			if jsonOutput {
				return cli.WriteJSON(streams.Out, users)
			}
			table := tabwriter.NewWriter(streams.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(table, "ID\tNAME\tEMAIL\t")
			for _, user := range users {
				fmt.Fprintf(table, "%s\t%s\t%s\t\n", user.ID, user.Name, user.Email)
			}
			table.Flush()
			return nil
		},
	}
}
