// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential persists the bearer credential that authenticates
// the client to the task server.
//
// [Store] is the get/set/clear contract the session layer depends on.
// [FileStore] keeps the credential in one file, written atomically with
// mode 0600 and survives restarts until it is cleared. The file holds a
// CBOR record (see lib/codec), optionally encrypted with age to a local
// identity (see lib/sealed). [MemoryStore] holds the credential for the
// life of the process only and is what tests use.
//
// Both stores keep the credential in a secret.Buffer between calls, so
// the token lives in locked memory that is zeroed on replacement. Get
// returns a heap copy because the HTTP layer needs a string.
//
// Credentials never appear in logs. [Fingerprint] gives a stable short
// digest to log instead.
//
// [Watch] reports changes made to the credential file by other
// processes, such as a "taskctl login" in another terminal while a
// board is running.
package credential
