// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ValidatedClaims is the claim set extracted from a credential after all
// signature, issuer, audience, and expiry checks passed. Immutable.
type ValidatedClaims struct {
	Subject  string
	Issuer   string
	Audience []string
	Expiry   time.Time
	Email    string
	Name     string
}

// fromMapClaims converts raw JWT claims into ValidatedClaims. The 'sub'
// claim is required per OIDC Core 1.0 § 5.1.
func fromMapClaims(claims jwt.MapClaims) (*ValidatedClaims, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: missing or invalid 'sub' claim", ErrMalformedToken)
	}

	vc := &ValidatedClaims{Subject: sub}

	if iss, err := claims.GetIssuer(); err == nil {
		vc.Issuer = iss
	}
	if aud, err := claims.GetAudience(); err == nil {
		vc.Audience = aud
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		vc.Expiry = exp.Time
	}
	if email, ok := claims["email"].(string); ok {
		vc.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		vc.Name = name
	}

	return vc, nil
}

// decodeProxyClaims decodes the companion claims header injected by the
// load balancer: base64 (standard or URL alphabet, padded or not) JSON.
func decodeProxyClaims(encoded string) (jwt.MapClaims, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty claims header", ErrMalformedToken)
	}

	var raw []byte
	var err error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		raw, err = enc.DecodeString(encoded)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: claims header is not base64: %v", ErrMalformedToken, err)
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: claims header is not JSON: %v", ErrMalformedToken, err)
	}
	return claims, nil
}
