// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package token validates bearer-style credentials against the trusted
// issuer configuration and extracts their claims.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/briefdesk/briefdesk/pkg/auth/oidc"
	"github.com/briefdesk/briefdesk/pkg/networking"
)

// Validation errors. Each failure mode is distinct so the resolver can
// decide whether to fall through to the next credential source.
var (
	ErrMalformedToken          = errors.New("malformed token")
	ErrInvalidSignature        = errors.New("invalid token signature")
	ErrInvalidIssuer           = errors.New("invalid issuer")
	ErrInvalidAudience         = errors.New("invalid audience")
	ErrTokenExpired            = errors.New("token expired")
	ErrKeySetUnavailable       = errors.New("key set unavailable")
	ErrMissingIssuerAndJWKSURL = errors.New("either issuer or JWKS URL must be provided")
)

// Validator validates JWT credentials using the trusted issuer's key set.
// The key set is cached with background refresh; steady-state validation
// never blocks on a network call.
type Validator struct {
	issuer     string
	audience   string
	clientID   string
	jwksURL    string
	jwksClient *jwk.Cache

	// Lazy JWKS registration
	jwksRegistered      bool
	jwksRegistrationMu  sync.Mutex
	jwksRegistrationErr error
}

// ValidatorConfig contains configuration for the token validator.
type ValidatorConfig struct {
	// Issuer is the OIDC issuer URL (e.g. https://auth.example.com)
	Issuer string

	// Audience is the expected audience for the token. When empty, the
	// ClientID is used as the expected audience.
	Audience string

	// ClientID is the OAuth client ID of this backend.
	ClientID string

	// JWKSURL overrides discovery of the key set URL from the issuer.
	JWKSURL string

	// CACertPath is the path to a CA bundle for reaching the issuer.
	CACertPath string

	// AllowPrivateIP allows JWKS/OIDC endpoints on private IP addresses.
	AllowPrivateIP bool
}

// NewValidator creates a new token validator. When no JWKS URL is
// configured it is discovered from the issuer's well-known endpoint.
func NewValidator(ctx context.Context, config ValidatorConfig) (*Validator, error) {
	jwksURL := config.JWKSURL

	if jwksURL == "" && config.Issuer != "" {
		doc, err := oidc.DiscoverEndpoints(ctx, config.Issuer, config.CACertPath, config.AllowPrivateIP)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
		}
		jwksURL = doc.JWKSURI
	}

	if jwksURL == "" {
		return nil, ErrMissingIssuerAndJWKSURL
	}

	httpClient, err := networking.NewHttpClientBuilder().
		WithCABundle(config.CACertPath).
		WithPrivateIPs(config.AllowPrivateIP).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	// jwk.Cache swaps key-set snapshots atomically; refresh happens in
	// the background and never blocks in-flight validations.
	httprcClient := httprc.NewClient(httprc.WithHTTPClient(httpClient))
	cache, err := jwk.NewCache(ctx, httprcClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS cache: %w", err)
	}

	return &Validator{
		issuer:     config.Issuer,
		audience:   config.Audience,
		clientID:   config.ClientID,
		jwksURL:    jwksURL,
		jwksClient: cache,
	}, nil
}

// ensureJWKSRegistered ensures that the JWKS URL is registered with the
// cache. Done lazily on first use to avoid blocking startup.
func (v *Validator) ensureJWKSRegistered(ctx context.Context) error {
	v.jwksRegistrationMu.Lock()
	defer v.jwksRegistrationMu.Unlock()

	if v.jwksRegistered {
		return v.jwksRegistrationErr
	}

	registrationCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := v.jwksClient.Register(registrationCtx, v.jwksURL)
	if err != nil {
		v.jwksRegistrationErr = fmt.Errorf("%w: failed to register JWKS URL: %v", ErrKeySetUnavailable, err)
	} else {
		v.jwksRegistrationErr = nil
	}

	v.jwksRegistered = true
	return v.jwksRegistrationErr
}

// getKeyFromJWKS gets the signing key for the token from the cached set.
func (v *Validator) getKeyFromJWKS(ctx context.Context, token *jwt.Token) (interface{}, error) {
	if err := v.ensureJWKSRegistered(ctx); err != nil {
		return nil, err
	}

	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("%w: unexpected signing method: %v", ErrInvalidSignature, token.Header["alg"])
	}

	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: token header missing kid", ErrInvalidSignature)
	}

	keySet, err := v.jwksClient.Lookup(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to lookup JWKS: %v", ErrKeySetUnavailable, err)
	}

	key, found := keySet.LookupKeyID(kid)
	if !found {
		return nil, fmt.Errorf("%w: key ID %s not found in JWKS", ErrInvalidSignature, kid)
	}

	var rawKey interface{}
	if err := jwk.Export(key, &rawKey); err != nil {
		return nil, fmt.Errorf("%w: failed to export raw key: %v", ErrKeySetUnavailable, err)
	}

	return rawKey, nil
}

// expectedAudience returns the audience value tokens must carry.
func (v *Validator) expectedAudience() string {
	if v.audience != "" {
		return v.audience
	}
	return v.clientID
}

// validateClaims validates issuer, audience, and expiry.
func (v *Validator) validateClaims(claims jwt.MapClaims) error {
	if v.issuer != "" {
		issuerClaim, err := claims.GetIssuer()
		if err != nil {
			return fmt.Errorf("%w: failed to get issuer from claims: %v", ErrInvalidIssuer, err)
		}
		if strings.TrimSpace(issuerClaim) != strings.TrimSpace(v.issuer) {
			return ErrInvalidIssuer
		}
	}

	if expected := v.expectedAudience(); expected != "" {
		audiences, err := claims.GetAudience()
		if err != nil {
			return ErrInvalidAudience
		}

		found := false
		for _, aud := range audiences {
			if aud == expected {
				found = true
				break
			}
		}

		if !found {
			return ErrInvalidAudience
		}
	}

	expirationTime, err := claims.GetExpirationTime()
	if err != nil || expirationTime == nil {
		return fmt.Errorf("%w: missing expiry", ErrMalformedToken)
	}
	if expirationTime.Before(time.Now()) {
		return ErrTokenExpired
	}

	return nil
}

// classifyParseError maps golang-jwt parse failures onto the validator's
// error taxonomy.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, ErrKeySetUnavailable):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, ErrInvalidSignature):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}

// ValidateToken validates a bearer token and extracts its claims. A nil
// receiver rejects every token as malformed rather than panicking, so a
// typed-nil validator behind an interface still degrades to a recoverable
// failure.
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*ValidatedClaims, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: no token validator configured", ErrMalformedToken)
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return v.getKeyFromJWKS(ctx, token)
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: failed to get claims from token", ErrMalformedToken)
	}

	if err := v.validateClaims(claims); err != nil {
		return nil, err
	}

	return fromMapClaims(claims)
}

// ValidateProxyClaims validates the claims asserted by a trusted proxy.
// The companion claims header may carry a signed JWT (validated like any
// bearer token) or plain base64 JSON from the load balancer. In both
// cases the subject must match the identity header; a proxy asserting one
// user in one header and another in the second is rejected.
func (v *Validator) ValidateProxyClaims(ctx context.Context, username, encodedClaims string) (*ValidatedClaims, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: no token validator configured", ErrMalformedToken)
	}
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: empty identity header", ErrMalformedToken)
	}

	// Identity header without a companion claims header: the proxy only
	// asserts the subject.
	if strings.TrimSpace(encodedClaims) == "" {
		return &ValidatedClaims{Subject: username}, nil
	}

	var vc *ValidatedClaims
	if strings.Count(encodedClaims, ".") == 2 {
		claims, err := v.ValidateToken(ctx, encodedClaims)
		if err != nil {
			return nil, err
		}
		vc = claims
	} else {
		raw, err := decodeProxyClaims(encodedClaims)
		if err != nil {
			return nil, err
		}
		if exp, err := raw.GetExpirationTime(); err == nil && exp != nil && exp.Before(time.Now()) {
			return nil, ErrTokenExpired
		}
		claims, err := fromMapClaims(raw)
		if err != nil {
			return nil, err
		}
		vc = claims
	}

	if !strings.EqualFold(vc.Subject, username) {
		return nil, fmt.Errorf("%w: claims subject %q does not match identity header %q",
			ErrMalformedToken, vc.Subject, username)
	}
	return vc, nil
}

// JWKSURL returns the JWKS URL used by the validator.
func (v *Validator) JWKSURL() string {
	return v.jwksURL
}
