// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/briefdesk/briefdesk/pkg/logger"
	"github.com/briefdesk/briefdesk/pkg/versions"
)

// VersionRouter sets up the version route.
func VersionRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", getVersion)
	return r
}

func getVersion(w http.ResponseWriter, _ *http.Request) {
	if err := json.NewEncoder(w).Encode(versions.GetVersionInfo()); err != nil {
		logger.Errorw("failed to encode version response", "error", err)
	}
}
