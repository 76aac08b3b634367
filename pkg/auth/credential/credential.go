// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package credential extracts candidate credentials from inbound requests.
//
// Extraction is pure parsing: no credential is validated here and no I/O
// occurs. Each source has exactly one decoder, and the extractor returns
// candidates highest-precedence first.
package credential

import (
	"errors"
	"net/http"
	"os"
	"strings"
)

// Source identifies where a credential came from.
type Source string

// Credential sources, in precedence order.
const (
	// SourceBearer is the Authorization: Bearer header.
	SourceBearer Source = "bearer"
	// SourceLegacySession is the legacy session cookie.
	SourceLegacySession Source = "legacy_session"
	// SourceProxyHeader is the load-balancer-injected identity header.
	SourceProxyHeader Source = "proxy_header"
	// SourceDevOverride is the development-only synthetic identity.
	SourceDevOverride Source = "dev_override"
)

// Bearer header parse errors.
var (
	ErrAuthHeaderMissing       = errors.New("authorization header missing")
	ErrInvalidAuthHeaderFormat = errors.New("invalid authorization header format")
	ErrEmptyBearerToken        = errors.New("empty bearer token")
)

// Credential is one unvalidated credential candidate. It exists only for
// the duration of a single resolution pass and is never persisted.
type Credential struct {
	Source Source

	// Raw is the credential material: the bearer token, the opaque
	// session id, or the proxy-asserted username.
	Raw string

	// EncodedClaims carries the companion claims header for
	// proxy-injected credentials (base64 JSON or a signed token).
	EncodedClaims string
}

// Extractor inspects requests and produces candidate credentials.
type Extractor struct {
	// CookieName is the legacy session cookie name.
	CookieName string

	// IdentityHeader and ClaimsHeader are the proxy-injected header
	// names. Both are ignored unless TrustProxyHeaders is set.
	IdentityHeader string
	ClaimsHeader   string

	TrustProxyHeaders bool

	// AllowDevOverride enables the ?as_user= query parameter and the
	// BRIEFDESK_DEV_USER environment variable as a credential source.
	// Never enabled by default.
	AllowDevOverride bool
}

// ExtractBearerToken extracts the bearer token from the Authorization
// header. The "Bearer " prefix is matched case-sensitively per RFC 6750.
func ExtractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrAuthHeaderMissing
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", ErrInvalidAuthHeaderFormat
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if strings.TrimSpace(token) == "" {
		return "", ErrEmptyBearerToken
	}

	return token, nil
}

// Extract returns the credential candidates present on the request,
// highest-precedence first. An empty result is not an error; it becomes
// one only when route policy requires authentication.
func (e *Extractor) Extract(r *http.Request) []Credential {
	var candidates []Credential

	if token, err := ExtractBearerToken(r); err == nil {
		candidates = append(candidates, Credential{
			Source: SourceBearer,
			Raw:    token,
		})
	}

	if e.CookieName != "" {
		if cookie, err := r.Cookie(e.CookieName); err == nil && cookie.Value != "" {
			candidates = append(candidates, Credential{
				Source: SourceLegacySession,
				Raw:    cookie.Value,
			})
		}
	}

	if e.TrustProxyHeaders && e.IdentityHeader != "" {
		if username := strings.TrimSpace(r.Header.Get(e.IdentityHeader)); username != "" {
			candidates = append(candidates, Credential{
				Source:        SourceProxyHeader,
				Raw:           username,
				EncodedClaims: r.Header.Get(e.ClaimsHeader),
			})
		}
	}

	if e.AllowDevOverride {
		if username := devOverrideUser(r); username != "" {
			candidates = append(candidates, Credential{
				Source: SourceDevOverride,
				Raw:    username,
			})
		}
	}

	return candidates
}

func devOverrideUser(r *http.Request) string {
	if username := r.URL.Query().Get("as_user"); username != "" {
		return username
	}
	return os.Getenv("BRIEFDESK_DEV_USER")
}
