// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads tasklist client configuration.
//
// Configuration comes from a single file named either by the
// TASKLIST_CONFIG environment variable (via [Load]) or by a --config
// flag (via [LoadFile]). There is no directory search. A command that
// runs without either uses [Default] unchanged.
//
// Files ending in .yaml or .yml are parsed as YAML. Files ending in
// .json or .jsonc are parsed as JSON with comments and trailing commas
// allowed. Both forms use the same field names:
//
//	server:
//	  url: https://tasks.example.com
//	  request_timeout: 30s
//	credential:
//	  path: ${HOME}/.config/tasklist/credential
//	  seal_identity: ${HOME}/.config/tasklist/identity.age
//	session:
//	  teardown_delay: 3s
//	log:
//	  level: info
//	  format: auto
//
// ${VAR} and ${VAR:-default} patterns are expanded in the server URL
// and in path fields after loading. No environment variable overrides
// a value the file sets.
//
// This package depends on no other tasklist packages.
package config
