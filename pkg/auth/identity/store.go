// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Store errors.
var (
	// ErrUnknownSubject means no identity record exists for the subject.
	// Authentication must fail: identities are provisioned out of band,
	// never created as a side effect of a login.
	ErrUnknownSubject = errors.New("unknown subject")

	// ErrStoreUnavailable wraps identity-store I/O failures.
	ErrStoreUnavailable = errors.New("identity store unavailable")
)

// Store looks up identities for authentication. It is the only component
// permitted to read the identity store on the authentication path.
type Store interface {
	// Lookup resolves a username to its Identity, case-insensitively.
	// Returns ErrUnknownSubject when no record exists.
	Lookup(ctx context.Context, username string) (*Identity, error)
}

// PostgresStore is the production identity store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates an identity store backed by the given database.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresStore{db: db}, nil
}

// Lookup implements Store. The username comparison is case-insensitive;
// the identities table carries a unique index on LOWER(username).
func (s *PostgresStore) Lookup(ctx context.Context, username string) (*Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUnknownSubject
	}

	var (
		id       Identity
		roleStr  string
		personID sql.NullString
	)
	const q = `SELECT id, username, role, person_id FROM identities WHERE LOWER(username) = LOWER($1)`
	err := s.db.QueryRowContext(ctx, q, username).Scan(&id.ID, &id.Username, &roleStr, &personID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownSubject
		}
		return nil, fmt.Errorf("%w: query identity: %v", ErrStoreUnavailable, err)
	}

	role, err := ParseRole(roleStr)
	if err != nil {
		return nil, fmt.Errorf("%w: identity %s: %v", ErrStoreUnavailable, id.ID, err)
	}
	id.Role = role

	if personID.Valid {
		pid, err := uuid.Parse(personID.String)
		if err != nil {
			return nil, fmt.Errorf("%w: identity %s: invalid person id: %v", ErrStoreUnavailable, id.ID, err)
		}
		id.PersonID = &pid
	}

	return &id, nil
}

// MemoryStore is an in-memory identity store for tests and development.
// The map key is the lowercased username.
type MemoryStore struct {
	identities map[string]*Identity
}

// NewMemoryStore creates a MemoryStore holding the given identities.
func NewMemoryStore(ids ...*Identity) *MemoryStore {
	m := &MemoryStore{identities: make(map[string]*Identity, len(ids))}
	for _, id := range ids {
		m.identities[strings.ToLower(id.Username)] = id
	}
	return m
}

// Lookup implements Store.
func (m *MemoryStore) Lookup(ctx context.Context, username string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	id, ok := m.identities[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, ErrUnknownSubject
	}
	return id, nil
}
