// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lookupQuery = `SELECT id, username, role, person_id FROM identities WHERE LOWER\(username\) = LOWER\(\$1\)`

func TestPostgresStoreLookup(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	id := uuid.New()
	personID := uuid.New()
	mock.ExpectQuery(lookupQuery).
		WithArgs("Admin@Example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "person_id"}).
			AddRow(id.String(), "admin@example.com", "admin", personID.String()))

	got, err := store.Lookup(t.Context(), "Admin@Example.com")
	require.NoError(t, err)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, "admin@example.com", got.Username)
	assert.Equal(t, RoleAdmin, got.Role)
	require.NotNil(t, got.PersonID)
	assert.Equal(t, personID, *got.PersonID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLookupUnknownSubject(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	mock.ExpectQuery(lookupQuery).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err = store.Lookup(t.Context(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrUnknownSubject)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLookupStoreUnavailable(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	mock.ExpectQuery(lookupQuery).
		WithArgs("admin@example.com").
		WillReturnError(errors.New("connection refused"))

	_, err = store.Lookup(t.Context(), "admin@example.com")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestPostgresStoreLookupNullPersonID(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	mock.ExpectQuery(lookupQuery).
		WithArgs("staff@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "person_id"}).
			AddRow(uuid.NewString(), "staff@example.com", "staff", nil))

	got, err := store.Lookup(t.Context(), "staff@example.com")
	require.NoError(t, err)
	assert.Nil(t, got.PersonID)
}

func TestPostgresStoreLookupRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	mock.ExpectQuery(lookupQuery).
		WithArgs("odd@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "person_id"}).
			AddRow(uuid.NewString(), "odd@example.com", "superuser", nil))

	_, err = store.Lookup(t.Context(), "odd@example.com")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestPostgresStoreLookupEmptyUsername(t *testing.T) {
	t.Parallel()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	_, err = store.Lookup(t.Context(), "   ")
	assert.ErrorIs(t, err, ErrUnknownSubject)
}

func TestMemoryStoreCaseInsensitive(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(&Identity{ID: uuid.New(), Username: "Admin@Example.com", Role: RoleAdmin})

	got, err := store.Lookup(t.Context(), "admin@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "Admin@Example.com", got.Username)

	_, err = store.Lookup(t.Context(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrUnknownSubject)
}

func TestRoleOrdering(t *testing.T) {
	t.Parallel()

	assert.True(t, RoleAdmin.AtLeast(RoleStaff))
	assert.True(t, RoleAdmin.AtLeast(RoleAdmin))
	assert.True(t, RoleStaff.AtLeast(RoleCustomer))
	assert.False(t, RoleCustomer.AtLeast(RoleStaff))
	assert.False(t, RoleStaff.AtLeast(RoleAdmin))
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	role, err := ParseRole("staff")
	require.NoError(t, err)
	assert.Equal(t, RoleStaff, role)
	assert.Equal(t, "briefdesk_staff", role.DatabaseRole())

	_, err = ParseRole("root")
	assert.Error(t, err)
}
