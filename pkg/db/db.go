// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package db provides role-scoped access to the Postgres database.
//
// Row-level security policies key on the current database role, so every
// query runs inside a scoped session: acquire a connection, bind the role,
// run the caller's queries, reset the role, release the connection. The
// role is reset on every exit path, including panics; a connection whose
// reset failed is discarded rather than returned to the pool. There is no
// standalone "set role" operation.
package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/briefdesk/briefdesk/pkg/auth/identity"
	"github.com/briefdesk/briefdesk/pkg/logger"
	"github.com/briefdesk/briefdesk/pkg/telemetry"
)

// resetTimeout bounds the RESET ROLE call. The reset uses its own deadline
// because the request context may already be canceled by the time the
// session unwinds.
const resetTimeout = 5 * time.Second

// Querier is the query surface handed to role-scoped closures. Both
// *sql.Conn and *sql.Tx satisfy it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Pool wraps the shared *sql.DB with role-scoped session helpers.
type Pool struct {
	db          *sql.DB
	defaultRole string
	metrics     *telemetry.Metrics
}

// Open connects to Postgres and returns a Pool. defaultRole is the
// unprivileged role bound for unauthenticated work.
func Open(databaseURL, defaultRole string, metrics *telemetry.Metrics) (*Pool, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return NewPool(sqlDB, defaultRole, metrics), nil
}

// NewPool wraps an existing database handle. Used by tests to inject a
// mocked handle.
func NewPool(sqlDB *sql.DB, defaultRole string, metrics *telemetry.Metrics) *Pool {
	return &Pool{db: sqlDB, defaultRole: defaultRole, metrics: metrics}
}

// DB exposes the underlying handle for the identity and session stores.
// Their lookups run before a role is known, so they deliberately execute
// at the connection's login role, outside the role-scoped sessions.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Ping verifies database connectivity.
func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (p *Pool) Close() error {
	return p.db.Close()
}

// WithRole runs fn on a connection bound to the database role derived
// from the given application role.
func (p *Pool) WithRole(ctx context.Context, role identity.Role, fn func(q Querier) error) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	return p.withDatabaseRole(ctx, role.DatabaseRole(), fn)
}

// WithDefaultRole runs fn bound to the unprivileged default role.
func (p *Pool) WithDefaultRole(ctx context.Context, fn func(q Querier) error) error {
	return p.withDatabaseRole(ctx, p.defaultRole, fn)
}

func (p *Pool) withDatabaseRole(ctx context.Context, dbRole string, fn func(q Querier) error) (err error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		p.metrics.RecordRoleSession(dbRole, "acquire_error")
		return fmt.Errorf("failed to acquire connection: %w", err)
	}

	// The role name comes from a closed set but is quoted anyway; SET ROLE
	// does not take bind parameters.
	if _, err := conn.ExecContext(ctx, "SET ROLE "+pq.QuoteIdentifier(dbRole)); err != nil {
		_ = conn.Close()
		p.metrics.RecordRoleSession(dbRole, "bind_error")
		return fmt.Errorf("failed to bind role %s: %w", dbRole, err)
	}

	// The reset runs on every exit path, panics included, and the conn is
	// returned to the pool only after the role is cleared.
	defer func() {
		resetCtx, cancel := context.WithTimeout(context.Background(), resetTimeout)
		defer cancel()

		if _, resetErr := conn.ExecContext(resetCtx, "RESET ROLE"); resetErr != nil {
			// A connection still carrying a role must never be reused.
			// Raw returning ErrBadConn makes the pool discard it.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			logger.Errorw("failed to reset database role, discarding connection",
				"role", dbRole, "error", resetErr)
			if err == nil {
				err = fmt.Errorf("failed to reset role %s: %w", dbRole, resetErr)
			}
		}
		_ = conn.Close()
	}()

	if err := fn(conn); err != nil {
		p.metrics.RecordRoleSession(dbRole, "error")
		return err
	}

	p.metrics.RecordRoleSession(dbRole, "success")
	return nil
}

// WithRoleTx runs fn inside a transaction with the role bound via SET
// LOCAL, so both commit and rollback clear the binding with the
// transaction itself.
func (p *Pool) WithRoleTx(ctx context.Context, role identity.Role, fn func(tx *sql.Tx) error) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	dbRole := role.DatabaseRole()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		p.metrics.RecordRoleSession(dbRole, "acquire_error")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "SET LOCAL ROLE "+pq.QuoteIdentifier(dbRole)); err != nil {
		p.metrics.RecordRoleSession(dbRole, "bind_error")
		return fmt.Errorf("failed to bind role %s: %w", dbRole, err)
	}

	if err := fn(tx); err != nil {
		p.metrics.RecordRoleSession(dbRole, "error")
		return err
	}

	if err := tx.Commit(); err != nil {
		p.metrics.RecordRoleSession(dbRole, "error")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	committed = true
	p.metrics.RecordRoleSession(dbRole, "success")
	return nil
}
