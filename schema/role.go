package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Role maps a permission action to the roles allowed to perform it.
// The literal values "any" and "public" both mean unrestricted access.
type Role map[string][]string

const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"

	RoleAny = "any"
)

// UnmarshalJSON accepts both a single role string and a list of role
// strings per action.
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	role := Role{}
	for action, value := range raw {
		if len(value) > 0 && value[0] == '[' {
			var many []string
			if err := json.Unmarshal(value, &many); err != nil {
				return fmt.Errorf("invalid roles for action %q: %w", action, err)
			}
			role[action] = many
			continue
		}

		var one string
		if err := json.Unmarshal(value, &one); err != nil {
			return fmt.Errorf("invalid role for action %q: %w", action, err)
		}
		role[action] = []string{one}
	}

	*r = role
	return nil
}

// Permissions translates the role map into backend permission strings.
// An empty or absent role map yields read-any only; the collection stays
// locked down for writes until roles are added.
func (r Role) Permissions() []string {
	if len(r) == 0 {
		return []string{`read("any")`}
	}

	actions := make([]string, 0, len(r))
	for action := range r {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	perms := []string{}
	for _, action := range actions {
		for _, role := range r[action] {
			if role == "public" {
				role = RoleAny
			}
			perms = append(perms, fmt.Sprintf("%s(%q)", action, role))
		}
	}
	return perms
}
