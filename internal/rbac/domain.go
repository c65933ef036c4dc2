package rbac

import (
	"github.com/importpro/importpro/internal/shared"
)

// Role identifies one of the two operator profiles.
type Role string

const (
	// RoleAdmin has every capability including the finance ledger.
	RoleAdmin Role = "ADMIN"
	// RoleAssistant covers day to day operations but not finance.
	RoleAssistant Role = "ASSISTANT"
)

// Valid reports whether the role is one of the known profiles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAssistant
}

// capabilities maps each role to its granted permission names. The table is
// the single source of truth: the HTTP middleware and the service-layer
// guards both consult it.
var capabilities = map[Role][]string{
	RoleAdmin: allScopes(),
	RoleAssistant: concatScopes(
		shared.CatalogScopes(),
		shared.GroupageScopes(),
		shared.ClientScopes(),
		shared.OrderScopes(),
		shared.DeliveryScopes(),
	),
}

// Permissions returns the permission names granted to a role.
func Permissions(role Role) []string {
	perms, ok := capabilities[role]
	if !ok {
		return nil
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

func allScopes() []string {
	return concatScopes(
		shared.CatalogScopes(),
		shared.GroupageScopes(),
		shared.ClientScopes(),
		shared.OrderScopes(),
		shared.DeliveryScopes(),
		shared.FinanceScopes(),
	)
}

func concatScopes(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
