// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskapitest provides an in-memory task server for tests.
//
// [Server] implements the task API endpoints over httptest. It filters
// and sorts like the real server, records every request, and lets a
// test inject failures ([Server.FailNext]), revoke credentials
// ([Server.Revoke]) or hold list responses ([Server.SetListHook]) to
// control arrival order.
package taskapitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/tasklist/lib/schema"
)

// Request is one recorded request.
type Request struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	Body          map[string]any
}

type failure struct {
	status int
	body   string
}

// Server is an in-memory task server. It is safe for concurrent use.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	tasks    []schema.Task
	users    []schema.UserProfile
	revoked  map[string]string
	failures map[string][]failure
	requests []Request
	listHook func(query schema.Query)
	nextID   int
}

// NewServer starts a Server. It is closed when the test ends.
func NewServer(t interface{ Cleanup(func()) }) *Server {
	server := &Server{
		revoked:  make(map[string]string),
		failures: make(map[string][]failure),
	}
	server.Server = httptest.NewServer(http.HandlerFunc(server.serveHTTP))
	t.Cleanup(server.Close)
	return server
}

// AddUser adds a user to the directory.
func (s *Server) AddUser(profile schema.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, profile)
}

// AddTask stores task, assigning an id when it has none, and returns it.
func (s *Server) AddTask(task schema.Task) schema.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == "" {
		task.ID = s.allocateID()
	}
	if task.Status == "" {
		task.Status = schema.StatusPending
	}
	s.tasks = append(s.tasks, task)
	return task
}

// Tasks returns the stored tasks in insertion order.
func (s *Server) Tasks() []schema.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.Task(nil), s.tasks...)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CountRequests returns how many requests matched method and path
// prefix.
func (s *Server) CountRequests(method, pathPrefix string) int {
	count := 0
	for _, request := range s.Requests() {
		if request.Method == method && strings.HasPrefix(request.Path, pathPrefix) {
			count++
		}
	}
	return count
}

// Revoke makes every request bearing token fail with 401 and reason
// as the "msg" field.
func (s *Server) Revoke(token, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = reason
}

// FailNext makes the next request matching method and path prefix
// respond with status and body instead of being served.
func (s *Server) FailNext(method, pathPrefix string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + pathPrefix
	s.failures[key] = append(s.failures[key], failure{status: status, body: body})
}

// SetListHook installs fn to run, without the server lock, before each
// list response is computed. A hook that blocks holds that response.
func (s *Server) SetListHook(fn func(query schema.Query)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listHook = fn
}

func (s *Server) allocateID() string {
	s.nextID++
	return fmt.Sprintf("task-%d", s.nextID)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	recorded := Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
	}
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &recorded.Body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "invalid JSON body"})
				return
			}
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, recorded)
	injected, injectedOK := s.takeFailure(r.Method, r.URL.Path)
	token := strings.TrimPrefix(recorded.Authorization, "Bearer ")
	reason, revoked := s.revoked[token]
	listHook := s.listHook
	s.mu.Unlock()

	if injectedOK {
		w.WriteHeader(injected.status)
		io.WriteString(w, injected.body)
		return
	}
	if !strings.HasPrefix(recorded.Authorization, "Bearer ") || token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "No token, authorization denied"})
		return
	}
	if revoked {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": reason})
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/tasks":
		s.handleList(w, r, listHook)
	case r.Method == http.MethodPost && r.URL.Path == "/api/tasks":
		s.handleCreate(w, recorded.Body)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/tasks/updateTask/"):
		s.handleUpdate(w, strings.TrimPrefix(r.URL.Path, "/api/tasks/updateTask/"), recorded.Body)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/tasks/deleteTask/"):
		s.handleDelete(w, strings.TrimPrefix(r.URL.Path, "/api/tasks/deleteTask/"))
	case r.Method == http.MethodGet && r.URL.Path == "/api/users/all":
		s.mu.Lock()
		users := append([]schema.UserProfile{}, s.users...)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, users)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/users/fetchUser/"):
		s.handleProfile(w, strings.TrimPrefix(r.URL.Path, "/api/users/fetchUser/"))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"msg": "Not found"})
	}
}

// takeFailure must be called with mu held.
func (s *Server) takeFailure(method, path string) (failure, bool) {
	for key, queued := range s.failures {
		keyMethod, prefix, _ := strings.Cut(key, " ")
		if keyMethod != method || !strings.HasPrefix(path, prefix) || len(queued) == 0 {
			continue
		}
		s.failures[key] = queued[1:]
		return queued[0], true
	}
	return failure{}, false
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, hook func(schema.Query)) {
	values := r.URL.Query()
	query := schema.Query{Sort: schema.SortOrder(values.Get("sortOrder"))}
	if status := values.Get("status"); status != "" {
		parsed, err := schema.ParseStatus(status)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": err.Error()})
			return
		}
		query.Status = parsed
	}
	if dueDate := values.Get("dueDate"); dueDate != "" {
		parsed, err := schema.ParseDate(dueDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": err.Error()})
			return
		}
		query.DueDate = parsed
	}
	if hook != nil {
		hook(query)
	}

	s.mu.Lock()
	matched := make([]schema.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if query.Status != "" && task.Status != query.Status {
			continue
		}
		if !query.DueDate.IsZero() && task.DueDay() != query.DueDate {
			continue
		}
		matched = append(matched, task)
	}
	s.mu.Unlock()

	descending := query.Sort == schema.SortDescending
	sort.SliceStable(matched, func(i, j int) bool {
		if descending {
			return matched[i].DueDate.After(matched[j].DueDate)
		}
		return matched[i].DueDate.Before(matched[j].DueDate)
	})
	writeJSON(w, http.StatusOK, matched)
}

func (s *Server) handleCreate(w http.ResponseWriter, body map[string]any) {
	title, _ := body["title"].(string)
	if title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Title is required"})
		return
	}
	task := schema.Task{Title: title}
	if err := applyFields(&task, body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": err.Error()})
		return
	}
	if task.Status == "" {
		task.Status = schema.StatusPending
	}

	s.mu.Lock()
	task.ID = s.allocateID()
	task.CreatedBy = s.embedUser(task.CreatedBy.ID)
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdate(w http.ResponseWriter, id string, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		updated := s.tasks[i]
		if err := applyFields(&updated, body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": err.Error()})
			return
		}
		if title, ok := body["title"].(string); ok {
			updated.Title = title
		}
		if updated.CreatedBy.ID != s.tasks[i].CreatedBy.ID {
			updated.CreatedBy = s.embedUser(updated.CreatedBy.ID)
		}
		s.tasks[i] = updated
		writeJSON(w, http.StatusOK, updated)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"msg": "Task not found"})
}

func (s *Server) handleDelete(w http.ResponseWriter, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"msg": "Task not found"})
}

func (s *Server) handleProfile(w http.ResponseWriter, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			writeJSON(w, http.StatusOK, user)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"msg": "User not found"})
}

// embedUser must be called with mu held. Known users are embedded the
// way the real server populates createdBy; unknown ones stay bare.
func (s *Server) embedUser(id string) schema.UserRef {
	for _, user := range s.users {
		if user.ID == id {
			return schema.UserRef{ID: id, Name: user.Name, Email: user.Email, Embedded: true}
		}
	}
	return schema.Ref(id)
}

func applyFields(task *schema.Task, body map[string]any) error {
	if description, ok := body["description"].(string); ok {
		task.Description = description
	}
	if status, ok := body["status"].(string); ok {
		parsed, err := schema.ParseStatus(status)
		if err != nil {
			return err
		}
		task.Status = parsed
	}
	if dueDate, ok := body["dueDate"].(string); ok && dueDate != "" {
		parsed, err := time.Parse(time.RFC3339, dueDate)
		if err != nil {
			return fmt.Errorf("invalid dueDate %q", dueDate)
		}
		task.DueDate = parsed.UTC()
	}
	if createdBy, ok := body["createdBy"].(string); ok && createdBy != "" {
		task.CreatedBy = schema.Ref(createdBy)
	}
	if assigned, ok := body["assignedUser"].(string); ok {
		if assigned == "" {
			task.AssignedUser = nil
		} else {
			reference := schema.Ref(assigned)
			task.AssignedUser = &reference
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
