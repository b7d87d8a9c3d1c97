// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the session and
// synchronization layer.
//
// Credential expiry checks and the delayed teardown after an
// authentication failure both depend on "now". Production code takes a
// [Clock] and passes [Real]; tests pass [Fake] and move time forward
// explicitly with [FakeClock.Advance], so expiry and delay behavior is
// deterministic.
package clock
