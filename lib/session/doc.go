// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session derives the authenticated identity from the stored
// credential and owns the single teardown path.
//
// A session is either unauthenticated or authenticated. [Manager.Establish]
// moves to authenticated when the credential decodes; [Manager.Teardown]
// moves back, clearing the credential store. There are no other states.
//
// [Decode] is a pure function from a credential to an [Identity] or a
// [*DecodeError]. The credential's claims are read without verifying
// its signature: the server verifies every request, and the client
// only needs the subject to pick the profile to load and to evaluate
// ownership locally. A credential that does not decode, has no subject,
// or has expired produces no identity. It is never an error the
// caller must handle beyond "not authenticated".
//
// Observers subscribe with [Manager.Subscribe] and receive an [Event]
// for each transition. Events are delivered synchronously and in order,
// after the state change is visible through [Manager.Current].
package session
