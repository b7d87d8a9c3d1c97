// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds bearer credentials in memory that the garbage
// collector never sees.
//
// A [Buffer] is an anonymous mmap region locked into RAM (mlock) and
// excluded from core dumps (MADV_DONTDUMP). Close zeroes and unmaps it.
// The credential store keeps the current bearer token in a Buffer and
// converts it to a string only at the HTTP header boundary.
package secret
