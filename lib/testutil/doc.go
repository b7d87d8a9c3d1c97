// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by tasklist tests.
//
// [RequireReceive], [RequireNoReceive] and [RequireClosed] bound every
// channel wait with a wall-clock timeout, so a broken test fails
// instead of hanging. They are the only real-clock waits in the test
// suite; anything with timing semantics runs on lib/clock's fake.
//
// [Credential] and [CredentialFor] mint signed bearer credentials the
// session layer can decode.
package testutil
