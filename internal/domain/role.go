package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned when a role label is not one of the known roles.
var ErrUnknownRole = errors.New("unknown role")

// Role is a label granting access to a subset of operations.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

//nolint:gochecknoglobals
var (
	knownRoles = []Role{RoleAdmin, RoleUser}

	roleBits = map[Role]RoleSet{
		RoleAdmin: 1 << 0,
		RoleUser:  1 << 1,
	}
)

// ParseRole parses a role label. Surrounding whitespace and case are ignored.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleBits[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}

	return role, nil
}

func (r Role) String() string {
	return string(r)
}

// RoleSet is a set of roles.
type RoleSet uint8

// NewRoleSet returns the set containing the given roles. Unknown roles are ignored.
func NewRoleSet(roles ...Role) RoleSet {
	var set RoleSet

	for _, role := range roles {
		set = set.Add(role)
	}

	return set
}

// ParseRoleSet parses a list of role labels.
func ParseRoleSet(labels []string) (RoleSet, error) {
	var set RoleSet

	for _, label := range labels {
		role, err := ParseRole(label)
		if err != nil {
			return 0, err
		}

		set = set.Add(role)
	}

	return set, nil
}

// Add returns a copy of the set with role added.
func (s RoleSet) Add(role Role) RoleSet {
	return s | roleBits[role]
}

// Has reports whether role is in the set.
func (s RoleSet) Has(role Role) bool {
	bit, ok := roleBits[role]

	return ok && s&bit != 0
}

// HasAll reports whether every role of other is in the set.
func (s RoleSet) HasAll(other RoleSet) bool {
	return s&other == other
}

func (s RoleSet) IsEmpty() bool {
	return s == 0
}

// Roles returns the roles in the set in a stable order.
func (s RoleSet) Roles() []Role {
	roles := make([]Role, 0, len(knownRoles))

	for _, role := range knownRoles {
		if s.Has(role) {
			roles = append(roles, role)
		}
	}

	return roles
}

// Strings returns the role labels in the set in a stable order.
func (s RoleSet) Strings() []string {
	roles := s.Roles()
	labels := make([]string, len(roles))

	for i, role := range roles {
		labels[i] = role.String()
	}

	return labels
}

func (s RoleSet) String() string {
	return strings.Join(s.Strings(), ",")
}

// MarshalJSON encodes the set as an array of role labels.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	//nolint:wrapcheck
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes an array of role labels.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return fmt.Errorf("unmarshal roles: %w", err)
	}

	set, err := ParseRoleSet(labels)
	if err != nil {
		return err
	}

	*s = set

	return nil
}
