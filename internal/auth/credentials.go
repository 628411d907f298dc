// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialStore verifies login credentials with bcrypt.
// The password is hashed once at initialization to avoid hashing on every
// request.
type CredentialStore struct {
	username     string
	passwordHash []byte
}

// NewCredentialStore creates a credential store for the configured admin user.
func NewCredentialStore(username, password string) (*CredentialStore, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	// Cost factor 12 balances security and login latency.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &CredentialStore{
		username:     username,
		passwordHash: hash,
	}, nil
}

// Verify checks a username/password pair. Both comparisons are timing-safe
// and both always run, so a wrong username costs the same as a wrong
// password.
func (s *CredentialStore) Verify(username, password string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(s.username), []byte(username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
	return usernameMatch && passwordMatch
}
