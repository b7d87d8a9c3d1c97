// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tasksync

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/tasklist/lib/clock"
	"github.com/bureau-foundation/tasklist/lib/credential"
	"github.com/bureau-foundation/tasklist/lib/permission"
	"github.com/bureau-foundation/tasklist/lib/schema"
	"github.com/bureau-foundation/tasklist/lib/session"
	"github.com/bureau-foundation/tasklist/lib/taskcache"
	"github.com/bureau-foundation/tasklist/lib/testutil"
	"github.com/bureau-foundation/tasklist/taskapi"
	"github.com/bureau-foundation/tasklist/taskapi/taskapitest"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	t       *testing.T
	server  *taskapitest.Server
	store   *credential.MemoryStore
	clock   *clock.FakeClock
	client  *taskapi.Client
	manager *session.Manager
	engine  *Engine
	notices chan Notice

	eventsMu sync.Mutex
	events   []session.Event
}

type harnessOption func(*Config)

func withTeardownDelay(delay time.Duration) harnessOption {
	return func(cfg *Config) { cfg.TeardownDelay = delay }
}

func withGateway(wrap func(Gateway) Gateway) harnessOption {
	return func(cfg *Config) { cfg.Gateway = wrap(cfg.Gateway) }
}

func newHarness(t *testing.T, options ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		server:  taskapitest.NewServer(t),
		store:   credential.NewMemoryStore(),
		clock:   clock.Fake(epoch),
		notices: make(chan Notice, 64),
	}
	h.server.AddUser(schema.UserProfile{ID: "u1", Name: "alice", Email: "alice@example.com"})
	h.server.AddUser(schema.UserProfile{ID: "u2", Name: "bob", Email: "bob@example.com"})

	client, err := taskapi.NewClient(taskapi.ClientConfig{
		BaseURL: h.server.URL,
		Tokens:  taskapi.StoreTokens(h.store),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	h.client = client

	manager, err := session.NewManager(session.Config{Store: h.store, Clock: h.clock})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	h.manager = manager
	manager.Subscribe(func(event session.Event) {
		h.eventsMu.Lock()
		defer h.eventsMu.Unlock()
		h.events = append(h.events, event)
	})

	cfg := Config{Gateway: client, Session: manager, Clock: h.clock}
	for _, option := range options {
		option(&cfg)
	}
	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.engine = engine
	engine.SubscribeNotices(func(notice Notice) { h.notices <- notice })
	t.Cleanup(engine.Close)
	return h
}

// login establishes subject and waits for the session loads and the
// first fetch.
func (h *harness) login(subject string) string {
	h.t.Helper()
	token := testutil.CredentialFor(h.t, subject, epoch)
	if _, ok := h.manager.Establish(token); !ok {
		h.t.Fatalf("Establish(%s) failed", subject)
	}
	h.engine.Drain()
	return token
}

func (h *harness) sessionEvents() []session.EventKind {
	h.eventsMu.Lock()
	defer h.eventsMu.Unlock()
	kinds := make([]session.EventKind, len(h.events))
	for i, event := range h.events {
		kinds[i] = event.Kind
	}
	return kinds
}

func (h *harness) requireNotice(kind NoticeKind, message string) Notice {
	h.t.Helper()
	notice := testutil.RequireReceive(h.t, h.notices, 5*time.Second, "waiting for %s notice", kind)
	if notice.Kind != kind || notice.Message != message {
		h.t.Fatalf("notice = %s %q, want %s %q", notice.Kind, notice.Message, kind, message)
	}
	return notice
}

func (h *harness) requireNoNotice() {
	h.t.Helper()
	testutil.RequireNoReceive(h.t, h.notices, 20*time.Millisecond, "expected no notice")
}

func taskIDs(tasks []schema.Task) []string {
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	return ids
}

func day(year int, month time.Month, dayOfMonth int) time.Time {
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func TestNewValidation(t *testing.T) {
	manager, _ := session.NewManager(session.Config{Store: credential.NewMemoryStore()})
	if _, err := New(Config{Session: manager}); err == nil {
		t.Error("New without gateway succeeded")
	}
	if _, err := New(Config{Gateway: &taskapi.Client{}}); err == nil {
		t.Error("New without session succeeded")
	}
	if _, err := New(Config{Gateway: &taskapi.Client{}, Session: manager, TeardownDelay: -time.Second}); err == nil {
		t.Error("New with negative delay succeeded")
	}
}

func TestEstablishLoadsProfileUsersAndFirstFetch(t *testing.T) {
	h := newHarness(t)
	h.server.AddTask(schema.Task{Title: "first", CreatedBy: schema.Ref("u1"), DueDate: day(2024, 1, 2)})
	h.server.AddTask(schema.Task{Title: "second", CreatedBy: schema.Ref("u2"), DueDate: day(2024, 1, 1)})

	if h.server.CountRequests(http.MethodGet, "/api/tasks") != 0 {
		t.Fatal("fetched before any session")
	}
	h.login("u1")

	if got := h.engine.Cache().Len(); got != 2 {
		t.Fatalf("cache has %d tasks after first fetch, want 2", got)
	}
	// Default state is ascending by due date.
	if got := taskIDs(h.engine.Cache().Snapshot()); !reflect.DeepEqual(got, []string{"task-2", "task-1"}) {
		t.Fatalf("order = %v", got)
	}
	profile, ok := h.engine.Profile()
	if !ok || profile.Name != "alice" {
		t.Fatalf("profile = %+v, %v", profile, ok)
	}
	users, err := h.engine.Users(context.Background())
	if err != nil || len(users) != 2 {
		t.Fatalf("users = %+v, %v", users, err)
	}
	if got := h.server.CountRequests(http.MethodGet, "/api/users/all"); got != 1 {
		t.Fatalf("directory fetched %d times, want 1 (cached)", got)
	}
	requests := h.server.Requests()
	for _, request := range requests {
		if request.Authorization == "" {
			t.Errorf("%s %s sent without credential", request.Method, request.Path)
		}
	}
}

func TestFetchRequestsIgnoredWhileSignedOut(t *testing.T) {
	h := newHarness(t)
	h.engine.Filter().Refresh()
	h.engine.Filter().ToggleSort()
	h.engine.Drain()

	if got := h.server.CountRequests(http.MethodGet, "/api/tasks"); got != 0 {
		t.Fatalf("%d list requests while signed out", got)
	}
	if _, err := h.engine.CreateTask(context.Background(), schema.CreateTaskRequest{Title: "x"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("CreateTask signed out: %v", err)
	}
	if _, err := h.engine.RefreshUsers(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("RefreshUsers signed out: %v", err)
	}
}

// A user with subject u1 creates "Buy milk": u1 may change it, u2 may not.
func TestBuyMilkOwnership(t *testing.T) {
	h := newHarness(t)
	h.login("u1")

	created, err := h.engine.CreateTask(context.Background(), schema.CreateTaskRequest{
		Title:     "Buy milk",
		Status:    schema.StatusPending,
		DueDate:   day(2024, 1, 1),
		CreatedBy: "someone-else",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	h.requireNotice(NoticeSuccess, MessageTaskAdded)

	if created.CreatedBy.ID != "u1" {
		t.Fatalf("created by %q, want the caller u1", created.CreatedBy.ID)
	}
	if cached, ok := h.engine.Cache().Get(created.ID); !ok || cached.Title != "Buy milk" {
		t.Fatalf("created task not cached: %+v", cached)
	}
	if !permission.CanMutate(created, &session.Identity{SubjectID: "u1"}) {
		t.Error("u1 cannot mutate their own task")
	}
	if permission.CanMutate(created, &session.Identity{SubjectID: "u2"}) {
		t.Error("u2 can mutate u1's task")
	}
	if !h.engine.CanMutate(created) {
		t.Error("engine.CanMutate false for the creator")
	}

	// Signed in as u2, the engine refuses locally and sends nothing.
	h.login("u2")
	puts := h.server.CountRequests(http.MethodPut, "/api/tasks/updateTask/")
	if _, err := h.engine.Complete(context.Background(), created.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Complete as u2: %v, want ErrPermissionDenied", err)
	}
	if err := h.engine.DeleteTask(context.Background(), created.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("DeleteTask as u2: %v, want ErrPermissionDenied", err)
	}
	if h.server.CountRequests(http.MethodPut, "/api/tasks/updateTask/") != puts ||
		h.server.CountRequests(http.MethodDelete, "/api/tasks/deleteTask/") != 0 {
		t.Fatal("a refused mutation reached the server")
	}
}

// Listing Completed tasks in descending order over two Pending and one
// Completed task leaves exactly the Completed one in the cache.
func TestCompletedDescendingFilter(t *testing.T) {
	h := newHarness(t)
	h.server.AddTask(schema.Task{Title: "p1", Status: schema.StatusPending, CreatedBy: schema.Ref("u1")})
	done := h.server.AddTask(schema.Task{Title: "c1", Status: schema.StatusCompleted, CreatedBy: schema.Ref("u1")})
	h.server.AddTask(schema.Task{Title: "p2", Status: schema.StatusPending, CreatedBy: schema.Ref("u2")})
	h.login("u1")
	if h.engine.Cache().Len() != 3 {
		t.Fatalf("initial cache = %d tasks", h.engine.Cache().Len())
	}

	if err := h.engine.Filter().SetFilter("status", "Completed"); err != nil {
		t.Fatal(err)
	}
	h.engine.Filter().ToggleSort()
	h.engine.Drain()

	snapshot := h.engine.Cache().Snapshot()
	if got := taskIDs(snapshot); !reflect.DeepEqual(got, []string{done.ID}) {
		t.Fatalf("cache = %v, want only %s", got, done.ID)
	}
	pending, completed := h.engine.Cache().Partition()
	if len(pending) != 0 || len(completed) != 1 {
		t.Fatalf("partition = %d pending, %d completed", len(pending), len(completed))
	}

	requests := h.server.Requests()
	last := requests[len(requests)-1]
	if last.Path != "/api/tasks" || last.Query != "sortOrder=desc&status=Completed" {
		t.Fatalf("last request = %s?%s", last.Path, last.Query)
	}
}

// holdPending makes list responses for the Pending filter wait until
// the returned release function is called.
func holdPending(t *testing.T, server *taskapitest.Server) (arrived <-chan struct{}, release func()) {
	arrivals := make(chan struct{}, 4)
	gate := make(chan struct{})
	var once sync.Once
	server.SetListHook(func(query schema.Query) {
		if query.Status == schema.StatusPending {
			arrivals <- struct{}{}
			<-gate
		}
	})
	release = func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)
	return arrivals, release
}

// F1 (Pending) starts first, F2 (Completed) second, and F1's response
// arrives after F2's. The cache must reflect F2.
func TestOverlappingFetchesKeepLatest(t *testing.T) {
	h := newHarness(t)
	h.server.AddTask(schema.Task{Title: "pending", Status: schema.StatusPending, CreatedBy: schema.Ref("u1")})
	completed := h.server.AddTask(schema.Task{Title: "completed", Status: schema.StatusCompleted, CreatedBy: schema.Ref("u1")})
	h.login("u1")

	arrived, release := holdPending(t, h.server)
	h.engine.Filter().SetStatus(schema.StatusPending)
	testutil.RequireReceive(t, arrived, 5*time.Second, "F1 reached the server")
	h.engine.Filter().SetStatus(schema.StatusCompleted)
	h.engine.Drain()

	if got := taskIDs(h.engine.Cache().Snapshot()); !reflect.DeepEqual(got, []string{completed.ID}) {
		t.Fatalf("cache after F2 = %v", got)
	}
	release()
	h.engine.Drain()

	if got := taskIDs(h.engine.Cache().Snapshot()); !reflect.DeepEqual(got, []string{completed.ID}) {
		t.Fatalf("cache after late F1 = %v, want F2's result", got)
	}
	h.requireNoNotice()
}

// uncancellable ignores the caller's context for list calls, so a
// superseded fetch still delivers its response late.
type uncancellable struct {
	Gateway
}

func (u uncancellable) ListTasks(_ context.Context, query schema.Query) ([]schema.Task, error) {
	return u.Gateway.ListTasks(context.Background(), query)
}

func TestLateResponseOfSupersededFetchIsDiscarded(t *testing.T) {
	h := newHarness(t, withGateway(func(g Gateway) Gateway { return uncancellable{g} }))
	h.server.AddTask(schema.Task{Title: "pending", Status: schema.StatusPending, CreatedBy: schema.Ref("u1")})
	completed := h.server.AddTask(schema.Task{Title: "completed", Status: schema.StatusCompleted, CreatedBy: schema.Ref("u1")})
	h.login("u1")

	applied := make(chan uint64, 8)
	h.engine.Cache().Subscribe(func(change taskcache.Change) {
		if change.Kind == taskcache.Replaced {
			applied <- change.Sequence
		}
	})

	arrived, release := holdPending(t, h.server)
	h.engine.Filter().SetStatus(schema.StatusPending)
	testutil.RequireReceive(t, arrived, 5*time.Second, "F1 reached the server")
	h.engine.Filter().SetStatus(schema.StatusCompleted)
	f2 := h.engine.Filter().Sequence()
	if got := testutil.RequireReceive(t, applied, 5*time.Second, "F2 applied"); got != f2 {
		t.Fatalf("applied sequence %d, want %d", got, f2)
	}

	release()
	h.engine.Drain()
	testutil.RequireNoReceive(t, applied, 20*time.Millisecond, "late F1 must not be applied")
	if got := taskIDs(h.engine.Cache().Snapshot()); !reflect.DeepEqual(got, []string{completed.ID}) {
		t.Fatalf("cache = %v, want F2's result", got)
	}
}

func TestTeardownTwiceIsTeardownOnce(t *testing.T) {
	h := newHarness(t)
	h.login("u1")

	if !h.manager.Teardown("signed out") {
		t.Fatal("first teardown returned false")
	}
	if h.manager.Teardown("signed out") {
		t.Fatal("second teardown returned true")
	}
	if _, ok := h.manager.Current(); ok {
		t.Fatal("identity survived teardown")
	}
	if _, err := h.store.Get(); !errors.Is(err, credential.ErrNoCredential) {
		t.Fatalf("credential survived teardown: %v", err)
	}
	if kinds := h.sessionEvents(); !reflect.DeepEqual(kinds, []session.EventKind{session.Established, session.TornDown}) {
		t.Fatalf("session events = %v", kinds)
	}
	if _, ok := h.engine.Profile(); ok {
		t.Fatal("profile survived teardown")
	}
}

// A 401 on update tears the session down and leaves the cache as it was.
func TestUnauthorizedUpdateTearsDownAndKeepsCache(t *testing.T) {
	h := newHarness(t)
	h.server.AddTask(schema.Task{Title: "Buy milk", CreatedBy: schema.Ref("u1")})
	token := h.login("u1")
	before := h.engine.Cache().Snapshot()

	h.server.Revoke(token, "Token is not valid")
	_, err := h.engine.Complete(context.Background(), before[0].ID)
	if !taskapi.IsAuthError(err) {
		t.Fatalf("Complete error = %v, want AuthError", err)
	}
	h.requireNotice(NoticeAuth, "Token is not valid")

	if _, ok := h.manager.Current(); ok {
		t.Fatal("session survived a 401")
	}
	if _, err := h.store.Get(); !errors.Is(err, credential.ErrNoCredential) {
		t.Fatal("credential survived a 401")
	}
	if after := h.engine.Cache().Snapshot(); !reflect.DeepEqual(after, before) {
		t.Fatalf("cache changed: before %+v, after %+v", before, after)
	}
	h.requireNoNotice()
}

func TestDelayedTeardownNotifiesOnce(t *testing.T) {
	h := newHarness(t, withTeardownDelay(3*time.Second))
	token := h.login("u1")

	h.server.Revoke(token, "")
	h.engine.Filter().Refresh()
	h.engine.Drain()
	if _, err := h.engine.RefreshUsers(context.Background()); !taskapi.IsAuthError(err) {
		t.Fatalf("RefreshUsers error = %v", err)
	}

	h.requireNotice(NoticeAuth, taskapi.DefaultAuthReason)
	h.requireNoNotice()

	if _, ok := h.manager.Current(); !ok {
		t.Fatal("session torn down before the delay elapsed")
	}
	if h.clock.Pending() != 1 {
		t.Fatalf("%d teardown timers pending, want 1", h.clock.Pending())
	}
	h.clock.Advance(3 * time.Second)

	if _, ok := h.manager.Current(); ok {
		t.Fatal("session not torn down after the delay")
	}
	if kinds := h.sessionEvents(); !reflect.DeepEqual(kinds, []session.EventKind{session.Established, session.TornDown}) {
		t.Fatalf("session events = %v", kinds)
	}
	if reason := h.events[1].Reason; reason != taskapi.DefaultAuthReason {
		t.Fatalf("teardown reason = %q", reason)
	}
}

func TestReloginCancelsScheduledTeardown(t *testing.T) {
	h := newHarness(t, withTeardownDelay(3*time.Second))
	token := h.login("u1")

	h.server.Revoke(token, "expired")
	h.engine.Filter().Refresh()
	h.engine.Drain()
	h.requireNotice(NoticeAuth, "expired")

	h.login("u2")
	h.clock.Advance(5 * time.Second)
	if identity, ok := h.manager.Current(); !ok || identity.SubjectID != "u2" {
		t.Fatalf("new session ended by the old teardown: %+v, %v", identity, ok)
	}
}

func TestRequestFailuresBecomeNotices(t *testing.T) {
	h := newHarness(t)
	h.server.AddTask(schema.Task{Title: "kept", CreatedBy: schema.Ref("u1")})
	h.login("u1")
	before := h.engine.Cache().Snapshot()

	h.server.FailNext(http.MethodPost, "/api/tasks", http.StatusBadRequest, `{"msg":"Title is required"}`)
	_, err := h.engine.CreateTask(context.Background(), schema.CreateTaskRequest{Title: "x"})
	if !taskapi.IsValidationError(err) {
		t.Fatalf("CreateTask error = %v, want ValidationError", err)
	}
	notice := h.requireNotice(NoticeFailure, MessageAddTaskFailed)
	if !errors.Is(notice.Err, err) {
		t.Errorf("notice error = %v", notice.Err)
	}

	h.server.FailNext(http.MethodGet, "/api/tasks", http.StatusInternalServerError, `{"msg":"db down"}`)
	h.engine.Filter().Refresh()
	h.engine.Drain()
	h.requireNotice(NoticeFailure, MessageFetchTasksFailed)

	if after := h.engine.Cache().Snapshot(); !reflect.DeepEqual(after, before) {
		t.Fatal("a failed request changed the cache")
	}
	if _, ok := h.manager.Current(); !ok {
		t.Fatal("a non-auth failure ended the session")
	}
}

func TestProfileFailureKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.server.FailNext(http.MethodGet, "/api/users/fetchUser/", http.StatusInternalServerError, "")
	h.login("u1")

	h.requireNotice(NoticeFailure, MessageFetchProfileFailed)
	if _, ok := h.manager.Current(); !ok {
		t.Fatal("profile failure ended the session")
	}
	if _, ok := h.engine.Profile(); ok {
		t.Fatal("profile set despite failure")
	}
}

func TestUpdatePreservesRecordedCreator(t *testing.T) {
	h := newHarness(t)
	h.login("u1")
	created, err := h.engine.CreateTask(context.Background(), schema.CreateTaskRequest{Title: "draft"})
	if err != nil {
		t.Fatal(err)
	}
	h.requireNotice(NoticeSuccess, MessageTaskAdded)
	if created.Status != schema.StatusPending {
		t.Fatalf("default status = %q", created.Status)
	}

	if _, err := h.engine.UpdateTask(context.Background(), created.ID, schema.UpdateTaskRequest{}); !errors.Is(err, ErrNoChanges) {
		t.Fatalf("empty update: %v", err)
	}

	title := "final"
	due := day(2024, 6, 1)
	updated, err := h.engine.UpdateTask(context.Background(), created.ID, schema.UpdateTaskRequest{
		Title:     &title,
		DueDate:   &due,
		CreatedBy: "u2",
	})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	h.requireNotice(NoticeSuccess, MessageTaskUpdated)
	if updated.Title != "final" || updated.CreatedBy.ID != "u1" {
		t.Fatalf("updated = %+v", updated)
	}
	if cached, _ := h.engine.Cache().Get(created.ID); cached.Title != "final" {
		t.Fatalf("cache not updated from server response: %+v", cached)
	}

	var put taskapitest.Request
	for _, request := range h.server.Requests() {
		if request.Method == http.MethodPut {
			put = request
		}
	}
	want := map[string]any{"title": "final", "dueDate": "2024-06-01T00:00:00Z", "createdBy": "u1"}
	if !reflect.DeepEqual(put.Body, want) {
		t.Fatalf("PUT body = %v, want %v", put.Body, want)
	}
}

func TestToggleAndDelete(t *testing.T) {
	h := newHarness(t)
	h.server.AddTask(schema.Task{Title: "chore", CreatedBy: schema.Ref("u1")})
	h.login("u1")
	id := h.engine.Cache().Snapshot()[0].ID

	toggled, err := h.engine.ToggleStatus(context.Background(), id)
	if err != nil || toggled.Status != schema.StatusCompleted {
		t.Fatalf("ToggleStatus = %+v, %v", toggled, err)
	}
	h.requireNotice(NoticeSuccess, MessageTaskUpdated)
	reopened, err := h.engine.Reopen(context.Background(), id)
	if err != nil || reopened.Status != schema.StatusPending {
		t.Fatalf("Reopen = %+v, %v", reopened, err)
	}
	h.requireNotice(NoticeSuccess, MessageTaskUpdated)

	if err := h.engine.DeleteTask(context.Background(), id); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	h.requireNotice(NoticeSuccess, MessageTaskDeleted)
	if h.engine.Cache().Len() != 0 {
		t.Fatal("deleted task still cached")
	}
	if err := h.engine.DeleteTask(context.Background(), id); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("second delete: %v, want ErrUnknownTask", err)
	}

	h.server.FailNext(http.MethodDelete, "/api/tasks/deleteTask/", http.StatusNotFound, `{"msg":"Task not found"}`)
	other, _ := h.engine.CreateTask(context.Background(), schema.CreateTaskRequest{Title: "other"})
	h.requireNotice(NoticeSuccess, MessageTaskAdded)
	if err := h.engine.DeleteTask(context.Background(), other.ID); !taskapi.IsValidationError(err) {
		t.Fatalf("delete with server 404: %v", err)
	}
	h.requireNotice(NoticeFailure, MessageDeleteTaskFailed)
	if _, ok := h.engine.Cache().Get(other.ID); !ok {
		t.Fatal("failed delete removed the task locally")
	}
}

func TestNoticeSubscriptionCancel(t *testing.T) {
	h := newHarness(t)
	h.login("u1")
	var count int
	cancel := h.engine.SubscribeNotices(func(Notice) { count++ })
	h.engine.CreateTask(context.Background(), schema.CreateTaskRequest{Title: "a"})
	cancel()
	h.engine.CreateTask(context.Background(), schema.CreateTaskRequest{Title: "b"})
	if count != 1 {
		t.Fatalf("cancelled subscriber saw %d notices", count)
	}
}
