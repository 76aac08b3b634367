// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/briefdesk/briefdesk/pkg/auth"
	"github.com/briefdesk/briefdesk/pkg/auth/identity"
	"github.com/briefdesk/briefdesk/pkg/auth/session"
	"github.com/briefdesk/briefdesk/pkg/auth/token"
	"github.com/briefdesk/briefdesk/pkg/logger"
)

// Responder turns authentication failures into HTTP responses.
//
// Every authentication failure on an API route gets the same 401 body, so
// a caller cannot distinguish "no such user" from "no credential" or
// "expired token". The distinction lives only in the server logs.
type Responder struct {
	// LoginPath is where browser clients are redirected on failure.
	LoginPath string
}

// NewResponder creates a Responder redirecting browsers to loginPath.
func NewResponder(loginPath string) *Responder {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Responder{LoginPath: loginPath}
}

// Unauthenticated responds to a request that needed an identity and has
// none. resolveErr may be nil when no credential was present at all.
func (rp *Responder) Unauthenticated(w http.ResponseWriter, r *http.Request, resolveErr error) {
	rp.logFailure(r, resolveErr)

	if wantsHTML(r) {
		target := rp.LoginPath + "?redirect=" + url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	writeJSONMessage(w, http.StatusUnauthorized, "authentication required")
}

// Forbidden responds to an authenticated request whose role is too low.
func (rp *Responder) Forbidden(w http.ResponseWriter, r *http.Request, ri *auth.RequestIdentity, required identity.Role) {
	if ri != nil {
		logger.Debugw("request forbidden",
			"path", r.URL.Path,
			"username", ri.Identity.Username,
			"role", ri.Identity.Role,
			"required_role", required)
	}

	writeJSONMessage(w, http.StatusForbidden, "insufficient role")
}

// logFailure records why authentication failed. Infrastructure failures
// are errors; everything else is debug noise from ordinary unauthenticated
// traffic.
func (rp *Responder) logFailure(r *http.Request, err error) {
	switch {
	case err == nil, errors.Is(err, auth.ErrMissingCredential):
		logger.Debugw("unauthenticated request", "path", r.URL.Path)
	case errors.Is(err, token.ErrTokenExpired):
		logger.Debugw("expired credential", "path", r.URL.Path)
	case errors.Is(err, identity.ErrUnknownSubject):
		logger.Debugw("credential for unknown subject", "path", r.URL.Path)
	case errors.Is(err, identity.ErrStoreUnavailable),
		errors.Is(err, session.ErrStoreUnavailable),
		errors.Is(err, token.ErrKeySetUnavailable):
		logger.Errorw("authentication infrastructure failure", "path", r.URL.Path, "error", err)
	default:
		logger.Debugw("authentication failed", "path", r.URL.Path, "error", err)
	}
}

// wantsHTML reports whether the client is a browser navigation rather
// than an API caller.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeJSONMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"message": message}); err != nil {
		logger.Errorw("failed to write response", "error", err)
	}
}
