// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskui implements the terminal task board. Built on
// bubbletea, it shows the cached list as two columns (Pending and
// Completed), a detail pane with the selected task's description
// rendered as markdown, and a status bar carrying notices and the
// current filter and sort state.
//
// The board reads and drives a [Source], which *tasksync.Engine
// implements. It never talks to the server directly: filter keys go
// to the filter controller, mutation keys go to the engine, and the
// columns are rebuilt from the cache whenever it changes. Mutation
// keys act only on tasks the current identity may change.
//
// When the session is torn down the board records the reason and
// exits. [Model.TeardownReason] returns it for the caller to print.
//
// Data flow:
//
//	[taskcache / notices / session events]
//	        | (bridge)
//	    [Model] <- bubbletea event loop
//	        |
//	  [terminal output]
package taskui
