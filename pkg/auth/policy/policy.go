// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package policy decides what level of authentication each route requires.
//
// The policy is an ordered table of path-prefix rules evaluated at request
// entry, before any handler runs. It only classifies; producing a response
// for a denied request is the responder's job.
package policy

import (
	"sort"
	"strings"

	"github.com/briefdesk/briefdesk/pkg/auth/identity"
)

// Requirement is the authentication level a rule demands.
type Requirement int

const (
	// Public routes serve authenticated and anonymous requests alike.
	Public Requirement = iota
	// Authenticated routes require a resolved identity of any role.
	Authenticated
	// RequiresRole routes require a resolved identity at or above a role.
	RequiresRole
)

// Rule maps a path prefix to a requirement. Role is only meaningful when
// Requirement is RequiresRole.
type Rule struct {
	Prefix      string
	Requirement Requirement
	Role        identity.Role
}

// Outcome is the policy's verdict for one request.
type Outcome int

const (
	// Allow lets the request through to the handler.
	Allow Outcome = iota
	// Unauthenticated means the route needs an identity and none resolved.
	Unauthenticated
	// Forbidden means an identity resolved but its role is insufficient.
	Forbidden
)

// Decision is the result of evaluating the policy for one request.
type Decision struct {
	Outcome Outcome

	// RequiredRole is set when Outcome is Forbidden.
	RequiredRole identity.Role
}

// Policy is an ordered route table. The most specific (longest) matching
// prefix decides; rules are sorted at construction so lookup order does
// not depend on declaration order.
type Policy struct {
	rules []Rule
}

// New creates a Policy from the given rules. When no rule matches a path
// the request is treated as requiring authentication, which fails closed
// for routes added without a policy entry.
func New(rules []Rule) *Policy {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Policy{rules: sorted}
}

// Default returns the route table for the briefdesk service.
func Default() *Policy {
	return New([]Rule{
		{Prefix: "/admin", Requirement: RequiresRole, Role: identity.RoleAdmin},
		{Prefix: "/api", Requirement: Authenticated},
		{Prefix: "/app", Requirement: Authenticated},
		{Prefix: "/", Requirement: Public},
	})
}

// Requirement returns the rule governing the given path.
func (p *Policy) Requirement(path string) Rule {
	for _, rule := range p.rules {
		if matchesPrefix(path, rule.Prefix) {
			return rule
		}
	}
	return Rule{Requirement: Authenticated}
}

// Evaluate decides whether a request for path, resolved to the given role,
// may proceed. A nil role pointer means the request is unauthenticated.
func (p *Policy) Evaluate(path string, role *identity.Role) Decision {
	rule := p.Requirement(path)

	switch rule.Requirement {
	case Public:
		return Decision{Outcome: Allow}

	case Authenticated:
		if role == nil {
			return Decision{Outcome: Unauthenticated}
		}
		return Decision{Outcome: Allow}

	case RequiresRole:
		if role == nil {
			return Decision{Outcome: Unauthenticated}
		}
		if !role.AtLeast(rule.Role) {
			return Decision{Outcome: Forbidden, RequiredRole: rule.Role}
		}
		return Decision{Outcome: Allow}

	default:
		return Decision{Outcome: Unauthenticated}
	}
}

// matchesPrefix reports whether path falls under prefix on path-segment
// boundaries, so "/admin" matches "/admin/users" but not "/administrator".
func matchesPrefix(path, prefix string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
