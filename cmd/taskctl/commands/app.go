// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tasklist/cmd/taskctl/cli"
	"github.com/bureau-foundation/tasklist/lib/config"
	"github.com/bureau-foundation/tasklist/lib/credential"
	"github.com/bureau-foundation/tasklist/lib/sealed"
	"github.com/bureau-foundation/tasklist/lib/session"
	"github.com/bureau-foundation/tasklist/lib/tasksync"
	"github.com/bureau-foundation/tasklist/taskapi"
)

// Streams are the standard streams a command reads and writes.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StandardStreams returns the process's stdin, stdout and stderr.
func StandardStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// globalOptions are the flags every command accepts.
type globalOptions struct {
	configPath     string
	serverURL      string
	credentialFile string
	logLevel       string
}

func (g *globalOptions) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&g.configPath, "config", "", "config file (default $"+config.EnvVar+")")
	flagSet.StringVar(&g.serverURL, "server", "", "task server base URL (overrides server.url)")
	flagSet.StringVar(&g.credentialFile, "credential-file", "", "credential file (overrides credential.path)")
	flagSet.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")
}

// flags returns a new flag set named name carrying the global flags
// and whatever define adds.
func (g *globalOptions) flags(name string, define func(*pflag.FlagSet)) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
		if define != nil {
			define(flagSet)
		}
		g.register(flagSet)
		return flagSet
	}
}

// loadConfig resolves the configuration: the --config file, else the
// TASKLIST_CONFIG file, else defaults; then flag overrides.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	path := g.configPath
	if path == "" {
		path = os.Getenv(config.EnvVar)
	}
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, cli.Validation("%w", err)
		}
		cfg = loaded
	}
	if g.serverURL != "" {
		cfg.Server.URL = g.serverURL
	}
	if g.credentialFile != "" {
		cfg.Credential.Path = g.credentialFile
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// environment is everything a command needs, built from the resolved
// configuration. Close releases it.
type environment struct {
	config   *config.Config
	streams  Streams
	logger   *slog.Logger
	identity *sealed.Keypair
	store    *credential.FileStore
	client   *taskapi.Client
	manager  *session.Manager
}

func (g *globalOptions) open(streams Streams, command string) (*environment, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := cli.NewCommandLogger(streams.Err, cfg.SlogLevel(), cfg.Log.Format).With("command", command)

	env := &environment{config: cfg, streams: streams, logger: logger}
	if cfg.Credential.SealIdentity != "" {
		env.identity, err = sealed.ReadIdentityFile(cfg.Credential.SealIdentity)
		if err != nil {
			return nil, cli.Validation("credential.seal_identity: %w", err)
		}
	}

	env.store, err = credential.NewFileStore(credential.FileStoreConfig{
		Path:     cfg.Credential.Path,
		Identity: env.identity,
		Logger:   logger,
	})
	if err != nil {
		env.Close()
		return nil, cli.Internal("%w", err)
	}

	env.client, err = taskapi.NewClient(taskapi.ClientConfig{
		BaseURL: cfg.Server.URL,
		Tokens:  taskapi.StoreTokens(env.store),
		Timeout: cfg.Server.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		env.Close()
		return nil, cli.Validation("%w", err)
	}

	env.manager, err = session.NewManager(session.Config{Store: env.store, Logger: logger})
	if err != nil {
		env.Close()
		return nil, cli.Internal("%w", err)
	}
	return env, nil
}

func (env *environment) Close() {
	if env.store != nil {
		env.store.Close()
	}
	if env.identity != nil {
		env.identity.Close()
	}
}

// resume restores the persisted session or fails with an
// unauthenticated error.
func (env *environment) resume() (session.Identity, error) {
	identity, ok := env.manager.Resume()
	if !ok {
		return session.Identity{}, cli.Unauthenticated("not signed in (run 'taskctl login')")
	}
	return identity, nil
}

// engineRun is an engine plus the notices it produced.
type engineRun struct {
	engine *tasksync.Engine

	mu      sync.Mutex
	notices []tasksync.Notice
}

// startEngine builds an engine over the environment, then runs begin
// (which establishes or resumes the session) and waits for the session
// loads and the first fetch. Notices are echoed to stderr as they
// arrive and kept for [engineRun.failure].
func (env *environment) startEngine(cfg tasksync.Config, begin func() error) (*engineRun, error) {
	cfg.Gateway = env.client
	cfg.Session = env.manager
	cfg.Logger = env.logger
	engine, err := tasksync.New(cfg)
	if err != nil {
		return nil, cli.Internal("%w", err)
	}

	run := &engineRun{engine: engine}
	engine.SubscribeNotices(func(notice tasksync.Notice) {
		run.mu.Lock()
		run.notices = append(run.notices, notice)
		run.mu.Unlock()
		fmt.Fprintln(env.streams.Err, notice.Message)
	})
	if err := begin(); err != nil {
		engine.Close()
		return nil, err
	}
	engine.Drain()
	return run, nil
}

// resumeEngine is startEngine over the persisted session.
func (env *environment) resumeEngine(cfg tasksync.Config) (*engineRun, error) {
	return env.startEngine(cfg, func() error {
		_, err := env.resume()
		return err
	})
}

// failure returns the first authentication notice as an error, or the
// first failure notice with one of messages.
func (run *engineRun) failure(messages ...string) error {
	run.mu.Lock()
	defer run.mu.Unlock()
	for _, notice := range run.notices {
		if notice.Kind == tasksync.NoticeAuth {
			return cli.Unauthenticated("signed out: %s", notice.Message)
		}
	}
	for _, notice := range run.notices {
		if notice.Kind != tasksync.NoticeFailure {
			continue
		}
		for _, message := range messages {
			if notice.Message == message {
				return classify(notice.Err)
			}
		}
	}
	return nil
}

func (run *engineRun) close() {
	run.engine.Close()
}

// classify maps engine and gateway errors onto CLI error categories.
func classify(err error) error {
	var authErr *taskapi.AuthError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tasksync.ErrNotAuthenticated):
		return cli.Unauthenticated("not signed in (run 'taskctl login')")
	case errors.As(err, &authErr):
		return cli.Unauthenticated("signed out: %s", authErr.DisplayReason())
	case errors.Is(err, tasksync.ErrPermissionDenied):
		return cli.Forbidden("%w", err)
	case errors.Is(err, tasksync.ErrUnknownTask):
		return cli.NotFound("%w", err)
	case errors.Is(err, tasksync.ErrNoChanges), taskapi.IsValidationError(err):
		return cli.Validation("%w", err)
	case taskapi.IsNetworkError(err), errors.Is(err, context.DeadlineExceeded):
		return cli.Transient("%w", err)
	default:
		return cli.Internal("%w", err)
	}
}

// boardTeardownDelay is used by the board when the configuration does
// not set session.teardown_delay.
const boardTeardownDelay = 3 * time.Second
