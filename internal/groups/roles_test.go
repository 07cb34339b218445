package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/db/models"
	"github.com/irvingleonard/go-okta-client/internal/events"
)

// setupRoleTest wires a reconciler and a role deriver on one bus.
func setupRoleTest(t *testing.T, superGroups, staffGroups []string) (*gorm.DB, *Reconciler) {
	t.Helper()

	db := setupTestDB(t)
	bus := events.NewBus()

	NewRoleDeriver(db, superGroups, staffGroups).Register(bus)

	return db, NewReconciler(db, bus)
}

func loadRoles(t *testing.T, db *gorm.DB, login string) (isStaff, isSuperuser bool) {
	t.Helper()

	var u models.User
	require.NoError(t, db.Where("login = ?", login).First(&u).Error)

	return u.IsStaff, u.IsSuperuser
}

func TestJoiningSuperuserGroupGrantsBothRoles(t *testing.T) {
	db, r := setupRoleTest(t, []string{"Admins"}, []string{"Staff"})
	u := seedUser(t, db, "alice@example.com")

	require.NoError(t, r.Reconcile(u, []string{"Admins"}))

	isStaff, isSuperuser := loadRoles(t, db, u.Login)
	assert.True(t, isStaff, "superuser group implies staff")
	assert.True(t, isSuperuser)
}

func TestJoiningStaffGroupGrantsStaffOnly(t *testing.T) {
	db, r := setupRoleTest(t, []string{"Admins"}, []string{"Staff"})
	u := seedUser(t, db, "alice@example.com")

	require.NoError(t, r.Reconcile(u, []string{"Staff"}))

	isStaff, isSuperuser := loadRoles(t, db, u.Login)
	assert.True(t, isStaff)
	assert.False(t, isSuperuser)
}

func TestJoiningUnrelatedGroupGrantsNothing(t *testing.T) {
	db, r := setupRoleTest(t, []string{"Admins"}, []string{"Staff"})
	u := seedUser(t, db, "alice@example.com")

	require.NoError(t, r.Reconcile(u, []string{"Everyone"}))

	isStaff, isSuperuser := loadRoles(t, db, u.Login)
	assert.False(t, isStaff)
	assert.False(t, isSuperuser)
}

func TestJoiningGroupSkipsRolesAlreadyHeld(t *testing.T) {
	db, r := setupRoleTest(t, []string{"Admins", "Operators"}, nil)
	u := seedUser(t, db, "alice@example.com")

	require.NoError(t, r.Reconcile(u, []string{"Admins"}))

	var roleWrites int

	require.NoError(t, db.Callback().Update().After("gorm:update").
		Register("count_role_writes", func(*gorm.DB) { roleWrites++ }))

	// the second superuser group grants nothing new
	require.NoError(t, r.Reconcile(u, []string{"Admins", "Operators"}))

	assert.Zero(t, roleWrites, "roles already held are not rewritten")

	isStaff, isSuperuser := loadRoles(t, db, u.Login)
	assert.True(t, isStaff)
	assert.True(t, isSuperuser)
}

func TestLeavingSuperuserGroupRevokesBothRoles(t *testing.T) {
	db, r := setupRoleTest(t, []string{"Admins"}, []string{"Staff"})
	u := seedUser(t, db, "alice@example.com")

	require.NoError(t, r.Reconcile(u, []string{"Admins"}))
	require.NoError(t, r.Reconcile(u, nil))

	isStaff, isSuperuser := loadRoles(t, db, u.Login)
	assert.False(t, isStaff)
	assert.False(t, isSuperuser)
}

func TestLeavingSuperuserGroupKeepsStaffFromStaffGroup(t *testing.T) {
	db, r := setupRoleTest(t, []string{"Admins"}, []string{"Staff"})
	u := seedUser(t, db, "alice@example.com")

	require.NoError(t, r.Reconcile(u, []string{"Admins", "Staff"}))
	require.NoError(t, r.Reconcile(u, []string{"Staff"}))

	isStaff, isSuperuser := loadRoles(t, db, u.Login)
	assert.True(t, isStaff, "staff group still grants staff")
	assert.False(t, isSuperuser)
}

func TestLeavingOneOfTwoSuperuserGroupsKeepsBothRoles(t *testing.T) {
	db, r := setupRoleTest(t, []string{"Admins", "Operators"}, nil)
	u := seedUser(t, db, "alice@example.com")

	require.NoError(t, r.Reconcile(u, []string{"Admins", "Operators"}))
	require.NoError(t, r.Reconcile(u, []string{"Operators"}))

	isStaff, isSuperuser := loadRoles(t, db, u.Login)
	assert.True(t, isStaff)
	assert.True(t, isSuperuser)
}

func TestLeavingStaffGroupDoesNotTouchSuperuser(t *testing.T) {
	db, r := setupRoleTest(t, []string{"Admins"}, []string{"Staff"})
	u := seedUser(t, db, "alice@example.com")

	require.NoError(t, r.Reconcile(u, []string{"Admins", "Staff"}))
	require.NoError(t, r.Reconcile(u, []string{"Admins"}))

	isStaff, isSuperuser := loadRoles(t, db, u.Login)
	assert.True(t, isStaff)
	assert.True(t, isSuperuser)
}

func TestLeavingUnrelatedGroupKeepsRoles(t *testing.T) {
	db, r := setupRoleTest(t, []string{"Admins"}, nil)
	u := seedUser(t, db, "alice@example.com")

	require.NoError(t, r.Reconcile(u, []string{"Admins", "Everyone"}))
	require.NoError(t, r.Reconcile(u, []string{"Admins"}))

	isStaff, isSuperuser := loadRoles(t, db, u.Login)
	assert.True(t, isStaff)
	assert.True(t, isSuperuser)
}
