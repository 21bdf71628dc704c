package enums

import (
	"fmt"
	"strings"
)

// Role identifies which side of the marketplace an account acts for.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleBuyer  Role = "buyer"
	RoleDriver Role = "driver"
)

var validRoles = []Role{
	RoleFarmer,
	RoleBuyer,
	RoleDriver,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsNegotiator reports whether the role takes part in offer negotiation.
func (r Role) IsNegotiator() bool {
	return r == RoleFarmer || r == RoleBuyer
}

// Counterparty returns the opposite negotiating role.
func (r Role) Counterparty() Role {
	switch r {
	case RoleFarmer:
		return RoleBuyer
	case RoleBuyer:
		return RoleFarmer
	default:
		return ""
	}
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
