// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package v1 contains the briefdesk HTTP handlers.
package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/briefdesk/briefdesk/pkg/auth"
	"github.com/briefdesk/briefdesk/pkg/logger"
)

// MeRouter sets up the current-identity route.
func MeRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", getMe)
	return r
}

// meResponse is the wire form of the resolved identity.
type meResponse struct {
	ID       uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	Role     string     `json:"role"`
	PersonID *uuid.UUID `json:"person_id,omitempty"`
	Source   string     `json:"credential_source"`
}

func getMe(w http.ResponseWriter, r *http.Request) {
	// Route policy guarantees an identity here; the check guards against
	// the route being mounted outside the middleware.
	ri, ok := auth.RequestIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, `{"message":"authentication required"}`, http.StatusUnauthorized)
		return
	}

	resp := meResponse{
		ID:       ri.Identity.ID,
		Username: ri.Identity.Username,
		Role:     string(ri.Identity.Role),
		PersonID: ri.Identity.PersonID,
		Source:   string(ri.Source),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Errorw("failed to encode identity response", "error", err)
	}
}
