// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session implements the legacy session-cookie credential source.
//
// A session cookie carries an opaque session id which maps server-side to
// a "username" or "username:token" value. This source is deprecated; it is
// kept while older browser clients migrate to bearer tokens and should be
// removed once that migration completes.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Store errors.
var (
	// ErrSessionNotFound means the session id has no server-side entry.
	// Resolution treats this as recoverable and tries the next source.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStoreUnavailable wraps session-store I/O failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Store maps opaque session ids to their stored values.
type Store interface {
	// Lookup returns the stored "username" or "username:token" value.
	Lookup(ctx context.Context, sessionID string) (string, error)
}

// Username extracts the username from a stored session value. The legacy
// format is either "username" or "username:token"; only the username part
// matters for identity resolution.
func Username(value string) string {
	username, _, _ := strings.Cut(value, ":")
	return strings.TrimSpace(username)
}

// PostgresStore is the production session store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a session store backed by the given database.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresStore{db: db}, nil
}

// Lookup implements Store. Expired sessions are treated as not found.
func (s *PostgresStore) Lookup(ctx context.Context, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrSessionNotFound
	}

	var value string
	const q = `SELECT value FROM legacy_sessions WHERE session_id = $1 AND expires_at > NOW()`
	if err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("%w: query session: %v", ErrStoreUnavailable, err)
	}
	return value, nil
}

// MemoryStore is an in-memory session store for tests and development.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
}

type memorySession struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memorySession)}
}

// Put stores a session value with the given lifetime.
func (m *MemoryStore) Put(sessionID, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = memorySession{value: value, expiresAt: time.Now().Add(ttl)}
}

// Lookup implements Store.
func (m *MemoryStore) Lookup(ctx context.Context, sessionID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok || time.Now().After(sess.expiresAt) {
		return "", ErrSessionNotFound
	}
	return sess.value, nil
}
