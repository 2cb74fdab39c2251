package types

import "fmt"

// Role is the author of a conversation turn
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleSystem     Role = "system"
	RoleCapability Role = "capability"
)

// IsValid checks if the role is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleCapability:
		return true
	default:
		return false
	}
}

// IsClientRole reports whether clients may submit turns with this role.
func (r Role) IsClientRole() bool {
	return r == RoleUser || r == RoleAssistant
}

func (r Role) String() string {
	return string(r)
}

// ParseRole parses a string into a Role
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid role: %s", s)
	}
	return role, nil
}
