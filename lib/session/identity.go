// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the decoded claims the client uses.
type Claims struct {
	// Subject is the resolved subject identifier.
	Subject string

	// IssuedAt is zero when the credential carries no iat claim.
	IssuedAt time.Time

	// ExpiresAt is zero when the credential carries no exp claim.
	ExpiresAt time.Time
}

// Identity is the authenticated subject derived from a credential.
type Identity struct {
	SubjectID string
	Claims    Claims
}

// DecodeError explains why a credential produced no identity.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "session: " + e.Reason + ": " + e.Err.Error()
	}
	return "session: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// subjectClaims are tried in order. The task server issues "id"; "sub"
// is the registered claim, and some servers use "userId".
var subjectClaims = []string{"id", "sub", "userId"}

// Decode reads the identity from a credential without verifying its
// signature. now is compared against the exp claim. Every failure is
// returned as a *DecodeError.
func Decode(credential string, now time.Time) (Identity, error) {
	if credential == "" {
		return Identity{}, &DecodeError{Reason: "empty credential"}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return Identity{}, &DecodeError{Reason: "malformed credential", Err: err}
	}

	subject, err := resolveSubject(claims)
	if err != nil {
		return Identity{}, &DecodeError{Reason: "invalid subject", Err: err}
	}
	if subject == "" {
		return Identity{}, &DecodeError{Reason: "credential carries no subject"}
	}

	result := Claims{Subject: subject}
	issuedAt, err := claims.GetIssuedAt()
	if err != nil {
		return Identity{}, &DecodeError{Reason: "invalid iat claim", Err: err}
	}
	if issuedAt != nil {
		result.IssuedAt = issuedAt.Time.UTC()
	}
	expiresAt, err := claims.GetExpirationTime()
	if err != nil {
		return Identity{}, &DecodeError{Reason: "invalid exp claim", Err: err}
	}
	if expiresAt != nil {
		result.ExpiresAt = expiresAt.Time.UTC()
		if !now.Before(result.ExpiresAt) {
			return Identity{}, &DecodeError{
				Reason: fmt.Sprintf("credential expired at %s", result.ExpiresAt.Format(time.RFC3339)),
			}
		}
	}

	return Identity{SubjectID: subject, Claims: result}, nil
}

// resolveSubject returns the first present subject claim. Numeric
// identifiers are formatted as decimal strings.
func resolveSubject(claims jwt.MapClaims) (string, error) {
	for _, name := range subjectClaims {
		value, present := claims[name]
		if !present || value == nil {
			continue
		}
		switch typed := value.(type) {
		case string:
			if typed != "" {
				return typed, nil
			}
		case float64:
			if math.Abs(typed) >= 1<<53 || typed != math.Trunc(typed) {
				return "", fmt.Errorf("claim %q is not an exact integer: %v", name, typed)
			}
			return strconv.FormatInt(int64(typed), 10), nil
		default:
			return "", fmt.Errorf("claim %q has unsupported type %T", name, value)
		}
	}
	return "", nil
}
