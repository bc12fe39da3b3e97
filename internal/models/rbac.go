// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package models

// Role constants name the two roles the platform issues in JWT claims.
// The Casbin policy in internal/authz keys on these values.
const (
	// RoleMember is the default role: may vote and comment.
	RoleMember = "member"

	// RoleModerator inherits member permissions and may delete any comment.
	RoleModerator = "moderator"
)

// ValidRoles contains all valid role names for validation.
var ValidRoles = []string{RoleMember, RoleModerator}

// IsValidRole checks if a role name is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
