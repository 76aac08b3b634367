// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package identity defines the canonical resolved caller and its store.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is the authorization role of an identity. The set is closed; RLS
// policies in the database are written against exactly these roles.
type Role string

// The role hierarchy, lowest to highest.
const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleCustomer: 1,
	RoleStaff:    2,
	RoleAdmin:    3,
}

// ParseRole converts a stored role string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether the role is a member of the closed role set.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether the role meets or exceeds the required role.
func (r Role) AtLeast(required Role) bool {
	return roleRank[r] >= roleRank[required]
}

// DatabaseRole returns the Postgres role RLS policies evaluate against.
func (r Role) DatabaseRole() string {
	return "briefdesk_" + string(r)
}

// Identity is the canonical resolved caller. It is only ever loaded from
// the identity store; authentication never synthesizes one.
type Identity struct {
	// ID is the stable identifier of the identity record.
	ID uuid.UUID

	// Username is unique case-insensitively; lookups normalize case.
	Username string

	// Role determines route access and the database role bound for RLS.
	Role Role

	// PersonID links to the person profile, when one exists.
	PersonID *uuid.UUID
}

// String returns a compact representation safe for logging.
func (i *Identity) String() string {
	if i == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Identity{Username:%q, Role:%q}", i.Username, i.Role)
}
