package groups

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/db/models"
	"github.com/irvingleonard/go-okta-client/internal/events"
)

// RoleDeriver turns group memberships into staff and superuser flags.
//
// Superuser groups imply staff. Losing a superuser group keeps staff when
// another configured group still grants it, so the staff decision is made
// before the superuser flag is revoked.
type RoleDeriver struct {
	db          *gorm.DB
	superGroups map[string]bool
	staffGroups map[string]bool
}

// NewRoleDeriver creates a deriver for the configured group names.
func NewRoleDeriver(db *gorm.DB, superGroups, staffGroups []string) *RoleDeriver {
	d := &RoleDeriver{
		db:          db,
		superGroups: make(map[string]bool, len(superGroups)),
		staffGroups: make(map[string]bool, len(staffGroups)),
	}

	for _, name := range superGroups {
		d.superGroups[name] = true
	}

	for _, name := range staffGroups {
		d.staffGroups[name] = true
	}

	return d
}

// Register subscribes the deriver to membership events.
func (d *RoleDeriver) Register(bus *events.Bus) {
	bus.Subscribe(events.UserJoinedGroup, "role_deriver", d.handleJoin)
	bus.Subscribe(events.UserLeftGroup, "role_deriver", d.handleLeave)
}

func (d *RoleDeriver) handleJoin(p events.Payload) error {
	grantSuper := d.superGroups[p.Group]
	if !grantSuper && !d.staffGroups[p.Group] {
		return nil
	}

	var current models.User

	err := d.db.Select("is_staff", "is_superuser").
		Where("login = ?", p.Login).First(&current).Error
	if err != nil {
		return err
	}

	updates := make(map[string]interface{})

	if !current.IsStaff {
		updates["is_staff"] = true
	}

	if grantSuper && !current.IsSuperuser {
		updates["is_superuser"] = true
	}

	// everything the group grants is already held
	if len(updates) == 0 {
		return nil
	}

	log.Info().Str("user", p.Login).Str("group", p.Group).
		Bool("superuser", grantSuper).Msg("granting elevated roles")

	return d.saveRoles(p.Login, updates)
}

func (d *RoleDeriver) handleLeave(p events.Payload) error {
	if !d.superGroups[p.Group] && !d.staffGroups[p.Group] {
		return nil
	}

	remaining, err := d.remainingGroups(p.Login)
	if err != nil {
		return err
	}

	// staff is decided first so a parallel staff group survives the
	// superuser revocation below
	keepStaff := false
	stillSuper := false

	for name := range remaining {
		if d.superGroups[name] || d.staffGroups[name] {
			keepStaff = true
		}

		if d.superGroups[name] {
			stillSuper = true
		}
	}

	updates := map[string]interface{}{"is_staff": keepStaff}
	if d.superGroups[p.Group] {
		updates["is_superuser"] = stillSuper
	}

	log.Info().Str("user", p.Login).Str("group", p.Group).
		Bool("is_staff", keepStaff).Msg("recomputing roles after group loss")

	return d.saveRoles(p.Login, updates)
}

// remainingGroups returns the group names the user still belongs to.
func (d *RoleDeriver) remainingGroups(login string) (map[string]bool, error) {
	var names []string

	err := d.db.Model(&models.Group{}).
		Joins("JOIN user_groups ON user_groups.group_id = groups.id").
		Where("user_groups.user_login = ?", login).
		Pluck("groups.name", &names).Error
	if err != nil {
		return nil, err
	}

	remaining := make(map[string]bool, len(names))
	for _, name := range names {
		remaining[name] = true
	}

	return remaining, nil
}

// saveRoles persists only the role columns, leaving the rest of the user
// record untouched.
func (d *RoleDeriver) saveRoles(login string, updates map[string]interface{}) error {
	return d.db.Model(&models.User{}).Where("login = ?", login).Updates(updates).Error
}
