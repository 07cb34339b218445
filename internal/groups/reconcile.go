// Package groups keeps local group memberships aligned with the directory
// and derives staff and superuser roles from them.
package groups

import (
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/db/models"
	"github.com/irvingleonard/go-okta-client/internal/events"
)

// ErrGroupInconsistency is returned when a membership should be removed but
// the group record does not exist. That state can only come from concurrent
// writes outside the reconciler.
var ErrGroupInconsistency = errors.New("membership refers to a missing group")

// Reconciler aligns stored group memberships with a target set.
type Reconciler struct {
	db  *gorm.DB
	bus *events.Bus
}

// NewReconciler creates a reconciler publishing membership changes on bus.
func NewReconciler(db *gorm.DB, bus *events.Bus) *Reconciler {
	return &Reconciler{db: db, bus: bus}
}

// Reconcile makes the stored memberships of the user match target exactly.
// Missing groups are created, gained and lost memberships fire events.
// Reconciling the same target twice is a no-op.
func (r *Reconciler) Reconcile(u *models.User, target []string) error {
	current, err := r.currentGroups(u.Login)
	if err != nil {
		return err
	}

	targetSet := make(map[string]bool, len(target))
	for _, name := range target {
		targetSet[name] = true
	}

	for _, name := range target {
		if _, ok := current[name]; ok {
			continue
		}

		if err = r.join(u, name); err != nil {
			return err
		}
	}

	for name, group := range current {
		if targetSet[name] {
			continue
		}

		if err = r.leave(u, group); err != nil {
			return err
		}
	}

	return nil
}

// currentGroups resolves the membership rows of a user to group records.
// A membership pointing at a missing group is an inconsistency and aborts
// the reconciliation.
func (r *Reconciler) currentGroups(login string) (map[string]models.Group, error) {
	var memberships []models.UserGroup

	if err := r.db.Where("user_login = ?", login).Find(&memberships).Error; err != nil {
		return nil, err
	}

	current := make(map[string]models.Group, len(memberships))

	for _, membership := range memberships {
		var group models.Group

		result := r.db.First(&group, membership.GroupID)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrGroupInconsistency
		}

		if result.Error != nil {
			return nil, result.Error
		}

		current[group.Name] = group
	}

	return current, nil
}

// join adds a membership, creating the group record when needed.
func (r *Reconciler) join(u *models.User, name string) error {
	var group models.Group

	result := r.db.Where("name = ?", name).First(&group)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		group = models.Group{Name: name}
		if err := r.db.Create(&group).Error; err != nil {
			return err
		}

		log.Info().Str("group", name).Msg("created group from directory")
		events.ReportOutcomes(events.GroupCreated, r.bus.Publish(events.GroupCreated, events.Payload{Group: name}))
	} else if result.Error != nil {
		return result.Error
	}

	membership := models.UserGroup{UserLogin: u.Login, GroupID: group.ID}
	if err := r.db.Create(&membership).Error; err != nil {
		return err
	}

	log.Debug().Str("user", u.Login).Str("group", name).Msg("user joined group")
	events.ReportOutcomes(events.UserJoinedGroup,
		r.bus.Publish(events.UserJoinedGroup, events.Payload{Login: u.Login, Group: name}))

	return nil
}

// leave removes a membership. The group record itself stays.
func (r *Reconciler) leave(u *models.User, group models.Group) error {
	err := r.db.Where("user_login = ? AND group_id = ?", u.Login, group.ID).
		Delete(&models.UserGroup{}).Error
	if err != nil {
		return err
	}

	log.Debug().Str("user", u.Login).Str("group", group.Name).Msg("user left group")
	events.ReportOutcomes(events.UserLeftGroup,
		r.bus.Publish(events.UserLeftGroup, events.Payload{Login: u.Login, Group: group.Name}))

	return nil
}
