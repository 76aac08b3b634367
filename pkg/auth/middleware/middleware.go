// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package middleware wires credential resolution and route policy into the
// HTTP request path.
//
// The pipeline is composed once at startup and never changes per request:
// resolve credentials, evaluate route policy, bind the identity into the
// request context, call the handler. Denied requests never reach a handler.
package middleware

import (
	"errors"
	"net/http"

	"github.com/briefdesk/briefdesk/pkg/auth"
	"github.com/briefdesk/briefdesk/pkg/auth/identity"
	"github.com/briefdesk/briefdesk/pkg/auth/policy"
	"github.com/briefdesk/briefdesk/pkg/auth/session"
	"github.com/briefdesk/briefdesk/pkg/auth/token"
	"github.com/briefdesk/briefdesk/pkg/telemetry"
)

// Authenticator is the authentication middleware.
type Authenticator struct {
	resolver  *auth.Resolver
	policy    *policy.Policy
	responder *Responder
	metrics   *telemetry.Metrics
}

// NewAuthenticator composes the authentication pipeline. The metrics
// instance may be nil.
func NewAuthenticator(
	resolver *auth.Resolver,
	routePolicy *policy.Policy,
	responder *Responder,
	metrics *telemetry.Metrics,
) *Authenticator {
	return &Authenticator{
		resolver:  resolver,
		policy:    routePolicy,
		responder: responder,
		metrics:   metrics,
	}
}

// Handler returns the middleware. Identity is resolved even on public
// routes so handlers can personalize responses, but a failed resolution
// only denies the request when the route requires authentication.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ri, resolveErr := a.resolver.Resolve(r.Context(), r)

		var role *identity.Role
		source := ""
		if resolveErr == nil {
			role = &ri.Identity.Role
			source = string(ri.Source)
		}

		decision := a.policy.Evaluate(r.URL.Path, role)

		switch decision.Outcome {
		case policy.Allow:
			a.metrics.RecordResolution(outcomeLabel(resolveErr), source)
			if ri != nil {
				r = r.WithContext(auth.WithRequestIdentity(r.Context(), ri))
			}
			next.ServeHTTP(w, r)

		case policy.Unauthenticated:
			a.metrics.RecordResolution(outcomeLabel(resolveErr), source)
			a.responder.Unauthenticated(w, r, resolveErr)

		case policy.Forbidden:
			a.metrics.RecordResolution("forbidden", source)
			a.responder.Forbidden(w, r, ri, decision.RequiredRole)
		}
	})
}

// outcomeLabel maps a resolution result onto a bounded metric label set.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, auth.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, token.ErrTokenExpired):
		return "expired"
	case errors.Is(err, identity.ErrUnknownSubject):
		return "unknown_subject"
	case errors.Is(err, identity.ErrStoreUnavailable),
		errors.Is(err, session.ErrStoreUnavailable),
		errors.Is(err, token.ErrKeySetUnavailable):
		return "store_error"
	default:
		return "error"
	}
}
