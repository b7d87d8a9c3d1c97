// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tasklist/cmd/taskctl/cli"
	"github.com/bureau-foundation/tasklist/lib/sealed"
	"github.com/bureau-foundation/tasklist/lib/tasksync"
)

func loginCommand(globals *globalOptions, streams Streams) *cli.Command {
	var tokenFile string
	return &cli.Command{
		Name:    "login",
		Summary: "Sign in with a bearer token",
		Description: `Sign in with a bearer token issued by the task server.

The token is read from --token-file ("-" for stdin), or prompted for
on the terminal with echo disabled. It is checked by loading the
caller's profile before it is saved to the credential file. A later
login replaces the saved credential.`,
		Usage: "taskctl login [--token-file <path>]",
		Examples: []cli.Example{
			{Description: "Sign in interactively", Command: "taskctl login"},
			{Description: "Sign in from a pipe", Command: "print-token | taskctl login --token-file -"},
		},
		Flags: globals.flags("login", func(flagSet *pflag.FlagSet) {
			flagSet.StringVar(&tokenFile, "token-file", "", `file holding the token, "-" for stdin (default: prompt)`)
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			env, err := globals.open(streams, "login")
			if err != nil {
				return err
			}
			defer env.Close()

			token, err := cli.ReadSecret(tokenFile, "Token", streams.In, streams.Err)
			if err != nil {
				return err
			}
			defer token.Close()

			run, err := env.startEngine(tasksync.Config{}, func() error {
				if _, ok := env.manager.Establish(token.String()); !ok {
					return cli.Validation("the token is not a usable session credential")
				}
				return nil
			})
			if err != nil {
				return err
			}
			defer run.close()
			if err := run.failure(tasksync.MessageFetchProfileFailed); err != nil {
				return err
			}

			identity, ok := run.engine.Identity()
			if !ok {
				return cli.Unauthenticated("the session ended during sign-in")
			}
			name := identity.SubjectID
			if profile, ok := run.engine.Profile(); ok {
				name = profile.DisplayName()
			}
			fmt.Fprintf(streams.Out, "Signed in as %s (%s)\n", name, identity.SubjectID)
			return nil
		},
	}
}

func logoutCommand(globals *globalOptions, streams Streams) *cli.Command {
	return &cli.Command{
		Name:    "logout",
		Summary: "Sign out and remove the saved credential",
		Usage:   "taskctl logout",
		Flags:   globals.flags("logout", nil),
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			env, err := globals.open(streams, "logout")
			if err != nil {
				return err
			}
			defer env.Close()

			env.manager.Resume()
			env.manager.Teardown("signed out")
			fmt.Fprintln(streams.Out, "Signed out")
			return nil
		},
	}
}

type whoamiResult struct {
	Subject   string     `json:"subject"`
	Name      string     `json:"name,omitempty"`
	Email     string     `json:"email,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func whoamiCommand(globals *globalOptions, streams Streams) *cli.Command {
	var jsonOutput bool
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the signed-in user",
		Usage:   "taskctl whoami [--json]",
		Flags: globals.flags("whoami", func(flagSet *pflag.FlagSet) {
			flagSet.BoolVar(&jsonOutput, "json", false, "write JSON")
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			env, err := globals.open(streams, "whoami")
			if err != nil {
				return err
			}
			defer env.Close()

			run, err := env.resumeEngine(tasksync.Config{})
			if err != nil {
				return err
			}
			defer run.close()
			if err := run.failure(tasksync.MessageFetchProfileFailed); err != nil {
				return err
			}

			identity, ok := run.engine.Identity()
			if !ok {
				return cli.Unauthenticated("not signed in (run 'taskctl login')")
			}
			result := whoamiResult{Subject: identity.SubjectID}
			if profile, ok := run.engine.Profile(); ok {
				result.Name = profile.Name
				result.Email = profile.Email
			}
			if expires := identity.Claims.ExpiresAt; !expires.IsZero() {
				expires = expires.UTC()
				result.ExpiresAt = &expires
			}

			if jsonOutput {
				return cli.WriteJSON(streams.Out, result)
			}
			fmt.Fprintf(streams.Out, "subject: %s\n", result.Subject)
			if result.Name != "" {
				fmt.Fprintf(streams.Out, "name:    %s\n", result.Name)
			}
			if result.Email != "" {
				fmt.Fprintf(streams.Out, "email:   %s\n", result.Email)
			}
			if result.ExpiresAt != nil {
				fmt.Fprintf(streams.Out, "expires: %s\n", result.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func keygenCommand(globals *globalOptions, streams Streams) *cli.Command {
	var output string
	return &cli.Command{
		Name:    "keygen",
		Summary: "Create an identity for sealing the credential file",
		Description: `Create an age x25519 identity for encrypting the credential file at
rest. The identity is written with mode 0600 and never overwritten.

Point credential.seal_identity at the file and sign in again; from then
on the credential file holds only ciphertext.`,
		Usage: "taskctl keygen [--output <path>]",
		Flags: globals.flags("keygen", func(flagSet *pflag.FlagSet) {
			flagSet.StringVarP(&output, "output", "o", "", "identity file (default: credential.seal_identity, else next to the credential file)")
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			cfg, err := globals.loadConfig()
			if err != nil {
				return err
			}
			path := output
			if path == "" {
				path = cfg.Credential.SealIdentity
			}
			if path == "" {
				path = filepath.Join(filepath.Dir(cfg.Credential.Path), "identity")
			}
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return cli.Internal("creating %s: %w", filepath.Dir(path), err)
			}

			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return cli.Internal("%w", err)
			}
			defer keypair.Close()
			if err := sealed.WriteIdentityFile(path, keypair, time.Now()); err != nil {
				if errors.Is(err, fs.ErrExist) {
					return cli.Validation("%s already exists; choose another --output", path)
				}
				return cli.Internal("%w", err)
			}

			fmt.Fprintln(streams.Out, keypair.PublicKey)
			fmt.Fprintf(streams.Err, "Identity written to %s\n", path)
			if cfg.Credential.SealIdentity != path {
				fmt.Fprintf(streams.Err, "Set credential.seal_identity: %s and sign in again to seal the credential file.\n", path)
			}
			return nil
		},
	}
}
