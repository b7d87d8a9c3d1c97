// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tasksync wires the session, gateway, cache, filter and
// profile components into one synchronization engine.
//
// The [Engine] subscribes to session transitions and filter requests.
// When a session is established it loads the profile and the user
// directory and asks the filter controller for the first fetch. Every
// filter request fetches the list; a fetch is applied to the cache
// only if it is still the most recent request, and starting a new
// fetch cancels the previous one. Mutations check ownership locally,
// call the server, and apply the server's answer to the cache. Nothing
// is updated optimistically.
//
// Every request failure becomes a [Notice]. A 401 from any call also
// tears the session down, after the configured delay so the reason can
// be read. Tearing down cancels in-flight fetches and forgets the
// profile; the cache is left as it was.
package tasksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/tasklist/lib/clock"
	"github.com/bureau-foundation/tasklist/lib/permission"
	"github.com/bureau-foundation/tasklist/lib/profile"
	"github.com/bureau-foundation/tasklist/lib/schema"
	"github.com/bureau-foundation/tasklist/lib/session"
	"github.com/bureau-foundation/tasklist/lib/taskcache"
	"github.com/bureau-foundation/tasklist/lib/taskfilter"
	"github.com/bureau-foundation/tasklist/taskapi"
)

// Local precondition failures. No request is sent.
var (
	ErrNotAuthenticated = errors.New("tasksync: not signed in")
	ErrUnknownTask      = errors.New("tasksync: task is not in the current list")
	ErrPermissionDenied = errors.New("tasksync: only the task's creator can change it")
	ErrNoChanges        = errors.New("tasksync: no fields to update")
)

// Gateway is the server API the engine drives. *taskapi.Client
// implements it.
type Gateway interface {
	ListTasks(ctx context.Context, query schema.Query) ([]schema.Task, error)
	CreateTask(ctx context.Context, request schema.CreateTaskRequest) (schema.Task, error)
	UpdateTask(ctx context.Context, id string, request schema.UpdateTaskRequest) (schema.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]schema.UserProfile, error)
	FetchProfile(ctx context.Context, id string) (schema.UserProfile, error)
}

// Config wires an [Engine]. Gateway and Session are required; the
// other components are created when nil.
type Config struct {
	Gateway  Gateway
	Session  *session.Manager
	Cache    *taskcache.Cache
	Filter   *taskfilter.Controller
	Profiles *profile.Loader

	// TeardownDelay is how long an authentication failure's reason
	// stays visible before the session is torn down. Zero tears down
	// immediately.
	TeardownDelay time.Duration

	// Clock drives the teardown delay. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Engine is the synchronization layer. It is safe for concurrent use.
type Engine struct {
	gateway       Gateway
	session       *session.Manager
	cache         *taskcache.Cache
	filter        *taskfilter.Controller
	profiles      *profile.Loader
	teardownDelay time.Duration
	clock         clock.Clock
	logger        *slog.Logger

	unsubscribe []func()

	// background counts fetches and session loads in flight.
	background sync.WaitGroup

	mu sync.Mutex
	// latest is the sequence of the most recent fetch started.
	latest      uint64
	cancelFetch context.CancelFunc
	// sessionCtx is cancelled when the current session ends.
	sessionCtx    context.Context
	cancelSession context.CancelFunc
	users         []schema.UserProfile
	usersLoaded   bool
	// teardownPending is set between an authentication failure and
	// the teardown it triggers, so repeated 401s produce one notice.
	teardownPending bool
	teardownTimer   *clock.Timer
	closed          bool
	noticeHandlers  map[int]func(Notice)
	nextHandlerID   int
}

// New builds an Engine and subscribes it to cfg.Session and
// cfg.Filter. If the session is already established the first fetch
// starts immediately. Call Close to detach.
func New(cfg Config) (*Engine, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("tasksync: gateway is required")
	}
	if cfg.Session == nil {
		return nil, fmt.Errorf("tasksync: session manager is required")
	}
	if cfg.TeardownDelay < 0 {
		return nil, fmt.Errorf("tasksync: negative teardown delay %s", cfg.TeardownDelay)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Cache == nil {
		cfg.Cache = taskcache.New()
	}
	if cfg.Filter == nil {
		cfg.Filter = taskfilter.New()
	}
	if cfg.Profiles == nil {
		cfg.Profiles = profile.NewLoader(cfg.Gateway, cfg.Logger)
	}

	sessionCtx, cancelSession := context.WithCancel(context.Background())
	engine := &Engine{
		gateway:        cfg.Gateway,
		session:        cfg.Session,
		cache:          cfg.Cache,
		filter:         cfg.Filter,
		profiles:       cfg.Profiles,
		teardownDelay:  cfg.TeardownDelay,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		sessionCtx:     sessionCtx,
		cancelSession:  cancelSession,
		noticeHandlers: make(map[int]func(Notice)),
	}

	engine.unsubscribe = append(engine.unsubscribe,
		cfg.Filter.Subscribe(engine.handleRequest),
		cfg.Session.Subscribe(engine.handleSessionEvent),
	)

	if identity, ok := cfg.Session.Current(); ok {
		engine.sessionStarted(identity)
	}
	return engine, nil
}

// Cache returns the task cache the engine writes.
func (e *Engine) Cache() *taskcache.Cache { return e.cache }

// Filter returns the filter controller the engine follows.
func (e *Engine) Filter() *taskfilter.Controller { return e.filter }

// Session returns the session manager.
func (e *Engine) Session() *session.Manager { return e.session }

// Identity returns the current identity.
func (e *Engine) Identity() (session.Identity, bool) { return e.session.Current() }

// Profile returns the loaded profile of the current identity.
func (e *Engine) Profile() (schema.UserProfile, bool) { return e.profiles.Current() }

// CanMutate reports whether the current identity may change task.
func (e *Engine) CanMutate(task schema.Task) bool {
	identity, ok := e.session.Current()
	if !ok {
		return false
	}
	return permission.CanMutate(task, &identity)
}

// SubscribeNotices registers fn for every subsequent notice. Callbacks
// run on whichever goroutine produced the notice and must not block.
func (e *Engine) SubscribeNotices(fn func(Notice)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextHandlerID
	e.nextHandlerID++
	e.noticeHandlers[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.noticeHandlers, id)
	}
}

// Drain waits until no fetch or session load is in flight. It must not
// race with calls that start new background work.
func (e *Engine) Drain() {
	e.background.Wait()
}

// Close detaches the engine from its components, cancels background
// work and any pending teardown, and waits for it to finish.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	if e.cancelFetch != nil {
		e.cancelFetch()
	}
	e.cancelSession()
	if e.teardownTimer != nil {
		e.teardownTimer.Stop()
	}
	e.mu.Unlock()

	for _, cancel := range unsubscribe {
		cancel()
	}
	e.Drain()
}

func (e *Engine) handleSessionEvent(event session.Event) {
	switch event.Kind {
	case session.Established:
		e.sessionStarted(event.Identity)
	case session.TornDown:
		e.sessionEnded()
	}
}

// sessionStarted loads per-identity data and requests the first fetch.
func (e *Engine) sessionStarted(identity session.Identity) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.cancelSession()
	e.sessionCtx, e.cancelSession = context.WithCancel(context.Background())
	ctx := e.sessionCtx
	e.users = nil
	e.usersLoaded = false
	// A teardown scheduled for the previous credential must not end
	// this session.
	if e.teardownTimer != nil {
		e.teardownTimer.Stop()
		e.teardownTimer = nil
	}
	e.teardownPending = false
	e.mu.Unlock()

	e.profiles.Reset()
	e.background.Add(2)
	go func() {
		defer e.background.Done()
		e.loadProfile(ctx, identity)
	}()
	go func() {
		defer e.background.Done()
		e.RefreshUsers(ctx)
	}()

	e.filter.Refresh()
}

func (e *Engine) sessionEnded() {
	e.mu.Lock()
	if e.cancelFetch != nil {
		e.cancelFetch()
		e.cancelFetch = nil
	}
	e.cancelSession()
	e.users = nil
	e.usersLoaded = false
	if e.teardownTimer != nil {
		e.teardownTimer.Stop()
		e.teardownTimer = nil
	}
	e.teardownPending = false
	e.mu.Unlock()

	e.profiles.Reset()
}

func (e *Engine) loadProfile(ctx context.Context, identity session.Identity) {
	if _, err := e.profiles.Load(ctx, identity); err != nil {
		if ctx.Err() != nil {
			return
		}
		e.handleFailure(err, MessageFetchProfileFailed)
	}
}

// handleRequest starts the fetch for a filter request, superseding any
// fetch in flight. Requests while signed out are ignored.
func (e *Engine) handleRequest(request taskfilter.Request) {
	if _, ok := e.session.Current(); !ok {
		e.logger.Debug("ignoring fetch request while signed out", "sequence", request.Sequence)
		return
	}

	e.mu.Lock()
	if e.closed || request.Sequence <= e.latest {
		e.mu.Unlock()
		return
	}
	e.latest = request.Sequence
	if e.cancelFetch != nil {
		e.cancelFetch()
	}
	ctx, cancel := context.WithCancel(e.sessionCtx)
	e.cancelFetch = cancel
	e.background.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.background.Done()
		defer cancel()
		e.fetch(ctx, request)
	}()
}

func (e *Engine) fetch(ctx context.Context, request taskfilter.Request) {
	tasks, err := e.gateway.ListTasks(ctx, request.Query)
	if ctx.Err() != nil {
		e.logger.Debug("fetch superseded", "sequence", request.Sequence)
		return
	}
	if err != nil {
		e.handleFailure(err, MessageFetchTasksFailed)
		return
	}

	e.mu.Lock()
	current := request.Sequence == e.latest
	e.mu.Unlock()
	if !current {
		e.logger.Debug("discarding stale fetch", "sequence", request.Sequence)
		return
	}
	if !e.cache.ReplaceAll(request.Sequence, tasks) {
		e.logger.Debug("cache rejected stale fetch", "sequence", request.Sequence)
		return
	}
	e.logger.Debug("task list applied", "sequence", request.Sequence, "count", len(tasks))
}

// Users returns the user directory for the current session, fetching
// it if it has not been loaded.
func (e *Engine) Users(ctx context.Context) ([]schema.UserProfile, error) {
	e.mu.Lock()
	if e.usersLoaded {
		users := slices.Clone(e.users)
		e.mu.Unlock()
		return users, nil
	}
	e.mu.Unlock()
	return e.RefreshUsers(ctx)
}

// RefreshUsers re-fetches the user directory.
func (e *Engine) RefreshUsers(ctx context.Context) ([]schema.UserProfile, error) {
	if _, ok := e.session.Current(); !ok {
		return nil, ErrNotAuthenticated
	}
	users, err := e.gateway.ListUsers(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.handleFailure(err, MessageFetchUsersFailed)
		}
		return nil, err
	}
	e.mu.Lock()
	e.users = slices.Clone(users)
	e.usersLoaded = true
	e.mu.Unlock()
	return users, nil
}

// CreateTask creates a task owned by the current identity. The
// request's CreatedBy is always replaced with the caller's subject,
// and an empty status defaults to Pending.
func (e *Engine) CreateTask(ctx context.Context, request schema.CreateTaskRequest) (schema.Task, error) {
	identity, ok := e.session.Current()
	if !ok {
		return schema.Task{}, ErrNotAuthenticated
	}
	if request.Status == "" {
		request.Status = schema.StatusPending
	}
	if !request.Status.Valid() {
		return schema.Task{}, fmt.Errorf("tasksync: invalid status %q", request.Status)
	}
	request.CreatedBy = identity.SubjectID

	task, err := e.gateway.CreateTask(ctx, request)
	if err != nil {
		e.handleFailure(err, MessageAddTaskFailed)
		return schema.Task{}, err
	}
	e.cache.Upsert(task)
	e.logger.Info("task created", "task_id", task.ID, "subject", identity.SubjectID)
	e.notify(Notice{Kind: NoticeSuccess, Message: MessageTaskAdded})
	return task, nil
}

// UpdateTask changes the fields set in changes on task id. The task
// must be in the cache and owned by the current identity. CreatedBy
// is always sent as the task's recorded creator.
func (e *Engine) UpdateTask(ctx context.Context, id string, changes schema.UpdateTaskRequest) (schema.Task, error) {
	current, err := e.mutable(id)
	if err != nil {
		return schema.Task{}, err
	}
	if changes.IsEmpty() {
		return schema.Task{}, ErrNoChanges
	}
	if changes.Status != nil && !changes.Status.Valid() {
		return schema.Task{}, fmt.Errorf("tasksync: invalid status %q", *changes.Status)
	}
	changes.CreatedBy = current.CreatedBy.ID

	updated, err := e.gateway.UpdateTask(ctx, id, changes)
	if err != nil {
		e.handleFailure(err, MessageUpdateTaskFailed)
		return schema.Task{}, err
	}
	e.cache.Upsert(updated)
	e.logger.Info("task updated", "task_id", id)
	e.notify(Notice{Kind: NoticeSuccess, Message: MessageTaskUpdated})
	return updated, nil
}

// Complete marks task id Completed.
func (e *Engine) Complete(ctx context.Context, id string) (schema.Task, error) {
	status := schema.StatusCompleted
	return e.UpdateTask(ctx, id, schema.UpdateTaskRequest{Status: &status})
}

// Reopen marks task id Pending.
func (e *Engine) Reopen(ctx context.Context, id string) (schema.Task, error) {
	status := schema.StatusPending
	return e.UpdateTask(ctx, id, schema.UpdateTaskRequest{Status: &status})
}

// ToggleStatus flips task id between Pending and Completed.
func (e *Engine) ToggleStatus(ctx context.Context, id string) (schema.Task, error) {
	task, ok := e.cache.Get(id)
	if !ok {
		return schema.Task{}, ErrUnknownTask
	}
	status := task.Status.Toggled()
	return e.UpdateTask(ctx, id, schema.UpdateTaskRequest{Status: &status})
}

// DeleteTask deletes task id, which must be in the cache and owned by
// the current identity.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	if _, err := e.mutable(id); err != nil {
		return err
	}
	if err := e.gateway.DeleteTask(ctx, id); err != nil {
		e.handleFailure(err, MessageDeleteTaskFailed)
		return err
	}
	e.cache.Remove(id)
	e.logger.Info("task deleted", "task_id", id)
	e.notify(Notice{Kind: NoticeSuccess, Message: MessageTaskDeleted})
	return nil
}

// mutable returns the cached task if the current identity may change it.
func (e *Engine) mutable(id string) (schema.Task, error) {
	identity, ok := e.session.Current()
	if !ok {
		return schema.Task{}, ErrNotAuthenticated
	}
	task, ok := e.cache.Get(id)
	if !ok {
		return schema.Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	if !permission.CanMutate(task, &identity) {
		e.logger.Warn("mutation refused locally",
			"task_id", id,
			"subject", identity.SubjectID,
			"creator", task.CreatedBy.ID,
		)
		return schema.Task{}, fmt.Errorf("%w: %s", ErrPermissionDenied, id)
	}
	return task, nil
}

// handleFailure turns a request error into a notice. Authentication
// failures also schedule the teardown.
func (e *Engine) handleFailure(err error, message string) {
	var authErr *taskapi.AuthError
	if errors.As(err, &authErr) {
		e.authenticationFailed(authErr.DisplayReason())
		return
	}
	e.logger.Warn(message, "error", err)
	e.notify(Notice{Kind: NoticeFailure, Message: message, Err: err})
}

func (e *Engine) authenticationFailed(reason string) {
	e.mu.Lock()
	if e.teardownPending || e.closed {
		e.mu.Unlock()
		return
	}
	e.teardownPending = true
	if e.cancelFetch != nil {
		e.cancelFetch()
	}
	delay := e.teardownDelay
	e.mu.Unlock()

	e.logger.Warn("server rejected credential", "reason", reason, "teardown_delay", delay)
	e.notify(Notice{Kind: NoticeAuth, Message: reason})

	if delay <= 0 {
		e.session.Teardown(reason)
		return
	}
	timer := e.clock.AfterFunc(delay, func() { e.session.Teardown(reason) })

	e.mu.Lock()
	if e.teardownPending && !e.closed {
		e.teardownTimer = timer
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	timer.Stop()
}

func (e *Engine) notify(notice Notice) {
	e.mu.Lock()
	ids := make([]int, 0, len(e.noticeHandlers))
	for id := range e.noticeHandlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]func(Notice), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, e.noticeHandlers[id])
	}
	e.mu.Unlock()

	for _, handler := range handlers {
		handler(notice)
	}
}
