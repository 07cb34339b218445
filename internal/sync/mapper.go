// Package sync maps remote directory records onto local users and drives
// the administrative bulk refresh.
package sync

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/irvingleonard/go-okta-client/internal/db/models"
	"github.com/irvingleonard/go-okta-client/internal/okta"
)

// fieldSetters maps directory profile attribute names to local user fields.
// Attributes without an entry are logged and discarded.
var fieldSetters = map[string]func(u *models.User, v string){
	"login":             func(u *models.User, v string) { u.Login = v },
	"email":             func(u *models.User, v string) { u.Email = v },
	"secondEmail":       func(u *models.User, v string) { u.SecondEmail = v },
	"firstName":         func(u *models.User, v string) { u.FirstName = v },
	"lastName":          func(u *models.User, v string) { u.LastName = v },
	"middleName":        func(u *models.User, v string) { u.MiddleName = v },
	"honorificPrefix":   func(u *models.User, v string) { u.HonorificPrefix = v },
	"honorificSuffix":   func(u *models.User, v string) { u.HonorificSuffix = v },
	"title":             func(u *models.User, v string) { u.Title = v },
	"displayName":       func(u *models.User, v string) { u.DisplayName = v },
	"nickName":          func(u *models.User, v string) { u.NickName = v },
	"profileUrl":        func(u *models.User, v string) { u.ProfileURL = v },
	"primaryPhone":      func(u *models.User, v string) { u.PrimaryPhone = v },
	"mobilePhone":       func(u *models.User, v string) { u.MobilePhone = v },
	"streetAddress":     func(u *models.User, v string) { u.StreetAddress = v },
	"city":              func(u *models.User, v string) { u.City = v },
	"state":             func(u *models.User, v string) { u.State = v },
	"zipCode":           func(u *models.User, v string) { u.ZipCode = v },
	"countryCode":       func(u *models.User, v string) { u.CountryCode = v },
	"postalAddress":     func(u *models.User, v string) { u.PostalAddress = v },
	"preferredLanguage": func(u *models.User, v string) { u.PreferredLanguage = v },
	"locale":            func(u *models.User, v string) { u.Locale = v },
	"timezone":          func(u *models.User, v string) { u.Timezone = v },
	"userType":          func(u *models.User, v string) { u.UserType = v },
	"employeeNumber":    func(u *models.User, v string) { u.EmployeeNumber = v },
	"costCenter":        func(u *models.User, v string) { u.CostCenter = v },
	"organization":      func(u *models.User, v string) { u.Organization = v },
	"division":          func(u *models.User, v string) { u.Division = v },
	"department":        func(u *models.User, v string) { u.Department = v },
	"managerId":         func(u *models.User, v string) { u.ManagerID = v },
	"manager":           func(u *models.User, v string) { u.Manager = v },
}

// Apply copies the remote record onto the local user, field by field.
//
// Empty remote values never clear a local field. Attributes without a
// matching local field are logged and skipped. A non-ACTIVE lifecycle
// status deactivates the user, but no status ever reactivates one.
func Apply(u *models.User, remote *okta.User) {
	for key, raw := range remote.Profile {
		value := coerce(raw)
		if value == "" {
			continue
		}

		setter, ok := fieldSetters[key]
		if !ok {
			log.Debug().Str("attribute", key).Str("user", u.Login).
				Msg("directory attribute has no local field")

			continue
		}

		setter(u, value)
	}

	applyMeta(u, remote)
}

// applyMeta captures the directory identifier, lifecycle status and
// lifecycle timestamps.
func applyMeta(u *models.User, remote *okta.User) {
	if remote.ID != "" {
		u.OktaID = remote.ID
	}

	if remote.Created != nil {
		u.OktaCreated = remote.Created
	}

	if remote.Activated != nil {
		u.OktaActivated = remote.Activated
	}

	if remote.StatusChanged != nil {
		u.OktaStatusChanged = remote.StatusChanged
	}

	if remote.Status == "" {
		return
	}

	status := models.OktaStatus(remote.Status)
	if !status.Valid() {
		log.Warn().Str("status", remote.Status).Str("user", u.Login).
			Msg("unknown lifecycle status from directory")

		return
	}

	u.OktaStatus = status

	// deactivation follows the directory, activation stays a deliberate
	// local decision
	if status != models.OktaStatusActive {
		u.IsActive = false
	}
}

// coerce renders a profile value as a string. Non-scalar values and nulls
// map to the empty string and are skipped by the caller.
func coerce(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool, float64, int:
		return fmt.Sprint(v)
	default:
		return ""
	}
}
