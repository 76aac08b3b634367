// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogin(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	LoginRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?redirect=%2Fapp", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Sign in to BriefDesk")
	assert.Contains(t, rec.Body.String(), "/app")
}

func TestGetVersion(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	VersionRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["version"])
	assert.NotEmpty(t, resp["go_version"])
}
