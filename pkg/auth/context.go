// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package auth resolves inbound credentials to a canonical identity and
// carries it through one request's lifetime.
package auth

import (
	"context"

	"github.com/briefdesk/briefdesk/pkg/auth/credential"
	"github.com/briefdesk/briefdesk/pkg/auth/identity"
)

// RequestIdentity binds the resolved identity to one request, together
// with the credential source that produced it for audit logging. It is
// created at request entry and is never shared across requests: the value
// travels only on the request's own context, so goroutine or connection
// reuse cannot leak it into another request.
type RequestIdentity struct {
	Identity *identity.Identity
	Source   credential.Source
}

// requestIdentityKey is the context key for the request identity.
//
// Using an empty struct as the key prevents collisions with other context
// keys, as each empty struct type is distinct even if they have the same
// name in different packages.
type requestIdentityKey struct{}

// WithRequestIdentity stores a RequestIdentity in the context.
// If ri is nil, the original context is returned unchanged.
func WithRequestIdentity(ctx context.Context, ri *RequestIdentity) context.Context {
	if ri == nil {
		return ctx
	}
	return context.WithValue(ctx, requestIdentityKey{}, ri)
}

// RequestIdentityFromContext retrieves the RequestIdentity from the
// context. Returns the identity and true if present, nil and false
// otherwise (absent means the request is unauthenticated).
func RequestIdentityFromContext(ctx context.Context) (*RequestIdentity, bool) {
	ri, ok := ctx.Value(requestIdentityKey{}).(*RequestIdentity)
	return ri, ok
}
