// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bureau-foundation/tasklist/cmd/taskctl/cli"
	"github.com/bureau-foundation/tasklist/lib/tasksync"
	"github.com/bureau-foundation/tasklist/taskapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want cli.ErrorCategory
	}{
		{"signed out", tasksync.ErrNotAuthenticated, cli.CategoryUnauthenticated},
		{"server 401", &taskapi.AuthError{Reason: "expired"}, cli.CategoryUnauthenticated},
		{"not the creator", fmt.Errorf("%w: task-1", tasksync.ErrPermissionDenied), cli.CategoryForbidden},
		{"unknown task", fmt.Errorf("%w: task-9", tasksync.ErrUnknownTask), cli.CategoryNotFound},
		{"nothing to change", tasksync.ErrNoChanges, cli.CategoryValidation},
		{"server rejected", &taskapi.ValidationError{StatusCode: 400, Message: "Title is required"}, cli.CategoryValidation},
		{"server down", &taskapi.NetworkError{StatusCode: 503, Err: errors.New("unavailable")}, cli.CategoryTransient},
		{"deadline", context.DeadlineExceeded, cli.CategoryTransient},
		{"anything else", errors.New("boom"), cli.CategoryInternal},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			classified := classify(test.err)
			if got := cli.CategoryOf(classified); got != test.want {
				t.Errorf("category = %s, want %s", got, test.want)
			}
			if test.want != cli.CategoryUnauthenticated && !errors.Is(classified, test.err) {
				t.Errorf("classified error %v does not wrap %v", classified, test.err)
			}
		})
	}
	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}
