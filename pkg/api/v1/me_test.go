// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefdesk/briefdesk/pkg/auth"
	"github.com/briefdesk/briefdesk/pkg/auth/credential"
	"github.com/briefdesk/briefdesk/pkg/auth/identity"
)

func requestWithIdentity(t *testing.T, path string, id *identity.Identity, source credential.Source) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	ctx := auth.WithRequestIdentity(req.Context(), &auth.RequestIdentity{Identity: id, Source: source})
	return req.WithContext(ctx)
}

func TestGetMe(t *testing.T) {
	t.Parallel()

	id := &identity.Identity{
		ID:       uuid.New(),
		Username: "alice@example.com",
		Role:     identity.RoleCustomer,
	}

	rec := httptest.NewRecorder()
	MeRouter().ServeHTTP(rec, requestWithIdentity(t, "/", id, credential.SourceBearer))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp meResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id.ID, resp.ID)
	assert.Equal(t, "alice@example.com", resp.Username)
	assert.Equal(t, "customer", resp.Role)
	assert.Equal(t, "bearer", resp.Source)
	assert.Nil(t, resp.PersonID)
}

func TestGetMeWithoutIdentity(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	MeRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
