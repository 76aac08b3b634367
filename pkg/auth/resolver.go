// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/briefdesk/briefdesk/pkg/auth/credential"
	"github.com/briefdesk/briefdesk/pkg/auth/identity"
	"github.com/briefdesk/briefdesk/pkg/auth/session"
	"github.com/briefdesk/briefdesk/pkg/auth/token"
	"github.com/briefdesk/briefdesk/pkg/logger"
)

// ErrMissingCredential means the request carried no usable credential.
var ErrMissingCredential = errors.New("missing credential")

// TokenValidator validates bearer-style credentials. Implemented by
// *token.Validator; narrowed to an interface so resolution can be tested
// without a key server.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*token.ValidatedClaims, error)
	ValidateProxyClaims(ctx context.Context, username, encodedClaims string) (*token.ValidatedClaims, error)
}

// Resolver turns a request's credential candidates into a single resolved
// identity. It owns the cross-source resolution loop: candidates are
// tried in precedence order, recoverable failures fall through to the
// next source, hard failures stop resolution immediately.
type Resolver struct {
	extractor  *credential.Extractor
	tokens     TokenValidator
	identities identity.Store
	sessions   session.Store
}

// NewResolver creates a Resolver. The token validator may be nil (dev
// mode without an issuer); bearer and proxy credentials are then rejected
// as recoverable failures so lower-precedence sources still work.
func NewResolver(
	extractor *credential.Extractor,
	tokens TokenValidator,
	identities identity.Store,
	sessions session.Store,
) *Resolver {
	return &Resolver{
		extractor:  extractor,
		tokens:     tokens,
		identities: identities,
		sessions:   sessions,
	}
}

// errNoValidator is recoverable: without a validator the credential is
// treated like a malformed one.
var errNoValidator = fmt.Errorf("%w: no token validator configured", token.ErrMalformedToken)

// Resolve extracts, validates, and resolves the request's credentials.
// On success the returned RequestIdentity carries the winning source.
//
// Failure modes, in terms the responder understands:
//   - ErrMissingCredential: no candidate present or all fell through.
//   - token.ErrTokenExpired: an expired credential; no fallthrough.
//   - identity.ErrUnknownSubject: valid credential, unprovisioned user.
//   - identity.ErrStoreUnavailable / session.ErrStoreUnavailable /
//     token.ErrKeySetUnavailable: infrastructure failure.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*RequestIdentity, error) {
	for _, cand := range r.extractor.Extract(req) {
		subject, err := r.validate(ctx, cand)
		if err != nil {
			if isRecoverable(err) {
				logger.Debugw("credential rejected, trying next source",
					"source", cand.Source, "error", err)
				continue
			}
			return nil, err
		}

		// Looked up fresh on every request so role changes take effect
		// immediately. The store never creates a record here.
		id, err := r.identities.Lookup(ctx, subject)
		if err != nil {
			return nil, err
		}

		return &RequestIdentity{Identity: id, Source: cand.Source}, nil
	}

	return nil, ErrMissingCredential
}

// validate checks one candidate and returns the subject it asserts.
func (r *Resolver) validate(ctx context.Context, cand credential.Credential) (string, error) {
	switch cand.Source {
	case credential.SourceBearer:
		if r.tokens == nil {
			return "", errNoValidator
		}
		claims, err := r.tokens.ValidateToken(ctx, cand.Raw)
		if err != nil {
			return "", err
		}
		return claims.Subject, nil

	case credential.SourceLegacySession:
		value, err := r.sessions.Lookup(ctx, cand.Raw)
		if err != nil {
			return "", err
		}
		username := session.Username(value)
		if username == "" {
			return "", fmt.Errorf("%w: session value has no username", token.ErrMalformedToken)
		}
		return username, nil

	case credential.SourceProxyHeader:
		if r.tokens == nil {
			return "", errNoValidator
		}
		claims, err := r.tokens.ValidateProxyClaims(ctx, cand.Raw, cand.EncodedClaims)
		if err != nil {
			return "", err
		}
		return claims.Subject, nil

	case credential.SourceDevOverride:
		return cand.Raw, nil

	default:
		return "", fmt.Errorf("%w: unknown credential source %q", token.ErrMalformedToken, cand.Source)
	}
}

// isRecoverable reports whether a validation failure permits falling
// through to the next credential source. Expired credentials and
// infrastructure failures are deliberately not recoverable.
func isRecoverable(err error) bool {
	return errors.Is(err, token.ErrMalformedToken) ||
		errors.Is(err, token.ErrInvalidIssuer) ||
		errors.Is(err, token.ErrInvalidAudience) ||
		errors.Is(err, token.ErrInvalidSignature) ||
		errors.Is(err, session.ErrSessionNotFound)
}
