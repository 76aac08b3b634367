// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/briefdesk/briefdesk/pkg/auth"
	"github.com/briefdesk/briefdesk/pkg/db"
	"github.com/briefdesk/briefdesk/pkg/logger"
)

// MattersRouter sets up the legal-matter routes.
func MattersRouter(pool *db.Pool) http.Handler {
	routes := &matterRoutes{pool: pool}
	r := chi.NewRouter()
	r.Get("/", routes.listMatters)
	return r
}

type matterRoutes struct {
	pool *db.Pool
}

// matter is the wire form of one legal matter.
type matter struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Status   string    `json:"status"`
	OpenedAt time.Time `json:"opened_at"`
}

type matterListResponse struct {
	Matters []matter `json:"matters"`
}

// listMatters returns the matters visible to the caller. The query runs
// under the caller's database role, so row-level security decides which
// rows come back; the handler adds no visibility filtering of its own.
func (m *matterRoutes) listMatters(w http.ResponseWriter, r *http.Request) {
	ri, ok := auth.RequestIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, `{"message":"authentication required"}`, http.StatusUnauthorized)
		return
	}

	resp := matterListResponse{Matters: []matter{}}
	err := m.pool.WithRole(r.Context(), ri.Identity.Role, func(q db.Querier) error {
		rows, err := q.QueryContext(r.Context(),
			`SELECT id, title, status, opened_at FROM matters ORDER BY opened_at DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var mt matter
			if err := rows.Scan(&mt.ID, &mt.Title, &mt.Status, &mt.OpenedAt); err != nil {
				return err
			}
			resp.Matters = append(resp.Matters, mt)
		}
		return rows.Err()
	})
	if err != nil {
		logger.Errorw("failed to list matters", "username", ri.Identity.Username, "error", err)
		http.Error(w, `{"message":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Errorw("failed to encode matters response", "error", err)
	}
}
