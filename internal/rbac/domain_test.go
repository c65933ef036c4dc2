package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/importpro/importpro/internal/shared"
)

func TestAdminHasEveryPermission(t *testing.T) {
	perms := Permissions(RoleAdmin)

	assert.Contains(t, perms, shared.PermFinanceView)
	assert.Contains(t, perms, shared.PermOrderCreate)
	assert.Contains(t, perms, shared.PermDeliveryProcess)
	assert.Contains(t, perms, shared.PermArticleDelete)
}

func TestAssistantLacksFinance(t *testing.T) {
	perms := Permissions(RoleAssistant)

	assert.NotContains(t, perms, shared.PermFinanceView)
	assert.Contains(t, perms, shared.PermOrderCreate)
	assert.Contains(t, perms, shared.PermDeliveryProcess)
	assert.Contains(t, perms, shared.PermClientEdit)
}

func TestUnknownRoleHasNothing(t *testing.T) {
	assert.Empty(t, Permissions(Role("INTERN")))
}

func TestPermissionsReturnsCopy(t *testing.T) {
	perms := Permissions(RoleAssistant)
	perms[0] = "tampered"
	assert.NotContains(t, Permissions(RoleAssistant), "tampered")
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("INTERN").Valid())
}

func TestNormalizePermissions(t *testing.T) {
	got := normalizePermissions([]string{" Finance.View ", "finance.view", "", "sales.order.create"})
	assert.Len(t, got, 2)
	assert.Contains(t, got, "finance.view")
	assert.Contains(t, got, "sales.order.create")
}

func TestHasAnyPermission(t *testing.T) {
	granted := []string{"finance.view", "sales.order.create"}

	assert.True(t, hasAnyPermission(granted, []string{"finance.view"}))
	assert.True(t, hasAnyPermission(granted, []string{"delivery.process", "sales.order.create"}))
	assert.False(t, hasAnyPermission(granted, []string{"delivery.process"}))
	assert.True(t, hasAnyPermission(granted, nil))
}

func TestHasAllPermissions(t *testing.T) {
	granted := []string{"finance.view", "sales.order.create"}

	assert.True(t, hasAllPermissions(granted, []string{"finance.view", "sales.order.create"}))
	assert.False(t, hasAllPermissions(granted, []string{"finance.view", "delivery.process"}))
	assert.True(t, hasAllPermissions(granted, nil))
}
