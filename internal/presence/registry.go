// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

// Package presence tracks which users are currently reachable and through
// which connections. The registry is the sole source of truth for "is user X
// online" and "enumerate all online users".
//
// Presence is in-memory only: it lives for the duration of the server process
// and resets on restart.
package presence

import (
	"sort"
	"sync"
)

// Registry maps user ids to the set of live connection ids for that user.
//
// Invariant: a user id appears in the map iff at least one live connection
// for that user exists. Entries are created lazily on first connection and
// deleted exactly when their connection set becomes empty.
//
// Connect and disconnect paths run on independent goroutines, so every
// access is mutex-guarded.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]struct{}
}

// NewRegistry creates an empty registry. Construct once at process start and
// inject into the hub; there is no package-level singleton.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]map[string]struct{}),
	}
}

// AddConnection inserts connID into userID's connection set, creating the
// set if absent. Idempotent for a repeated (userID, connID) pair.
func (r *Registry) AddConnection(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	set[connID] = struct{}{}
}

// RemoveConnection removes connID from userID's set. When the set becomes
// empty the user entry is deleted entirely, so IsOnline transitions to false
// exactly at this point. No-op if the pair was not present.
func (r *Registry) RemoveConnection(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
}

// IsOnline reports whether userID has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// OnlineUsers returns the ids of all currently online users, sorted for
// deterministic ordering.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.conns))
	for id := range r.conns {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// OnlineCount returns the number of distinct online users.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ConnectionCount returns the number of live connections for userID.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}
