// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/briefdesk/briefdesk/pkg/auth"
	"github.com/briefdesk/briefdesk/pkg/db"
	"github.com/briefdesk/briefdesk/pkg/logger"
)

// AdminUsersRouter sets up the admin user-listing routes. Route policy
// restricts the /admin prefix to admins before these handlers run.
func AdminUsersRouter(pool *db.Pool) http.Handler {
	routes := &adminRoutes{pool: pool}
	r := chi.NewRouter()
	r.Get("/", routes.listUsers)
	return r
}

type adminRoutes struct {
	pool *db.Pool
}

type userRecord struct {
	ID       uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	Role     string     `json:"role"`
	PersonID *uuid.UUID `json:"person_id,omitempty"`
}

type userListResponse struct {
	Users []userRecord `json:"users"`
}

func (a *adminRoutes) listUsers(w http.ResponseWriter, r *http.Request) {
	ri, ok := auth.RequestIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, `{"message":"authentication required"}`, http.StatusUnauthorized)
		return
	}

	resp := userListResponse{Users: []userRecord{}}
	err := a.pool.WithRole(r.Context(), ri.Identity.Role, func(q db.Querier) error {
		rows, err := q.QueryContext(r.Context(),
			`SELECT id, username, role, person_id FROM identities ORDER BY username`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				u        userRecord
				personID sql.NullString
			)
			if err := rows.Scan(&u.ID, &u.Username, &u.Role, &personID); err != nil {
				return err
			}
			if personID.Valid {
				if pid, err := uuid.Parse(personID.String); err == nil {
					u.PersonID = &pid
				}
			}
			resp.Users = append(resp.Users, u)
		}
		return rows.Err()
	})
	if err != nil {
		logger.Errorw("failed to list users", "username", ri.Identity.Username, "error", err)
		http.Error(w, `{"message":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Errorw("failed to encode users response", "error", err)
	}
}
