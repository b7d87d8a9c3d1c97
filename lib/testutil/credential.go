// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signingKey is only ever used by tests. The client never verifies
// signatures, so any key works.
var signingKey = []byte("tasklist-test-signing-key")

// Credential returns an HS256-signed token carrying claims.
//
//	token := testutil.Credential(t, map[string]any{"id": "u1"})
func Credential(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, claims map[string]any) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	signed, err := token.SignedString(signingKey)
	if err != nil {
		t.Fatalf("signing test credential: %v", err)
	}
	return signed
}

// CredentialFor returns a credential for subject that expires an hour
// after issuedAt.
func CredentialFor(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, subject string, issuedAt time.Time) string {
	t.Helper()
	return Credential(t, map[string]any{
		"id":  subject,
		"iat": issuedAt.Unix(),
		"exp": issuedAt.Add(time.Hour).Unix(),
	})
}
