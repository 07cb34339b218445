package models

import (
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// User represents a local principal mirrored from an Okta profile.
// The field set follows the default Okta profile properties; Login is the
// primary identity and stays stable across directory syncs. Accounts can
// also be created locally (administration) in which case the Okta fields
// stay empty until the first successful sync.
type User struct {
	// Login is the unique identifier for the user (username).
	Login string `gorm:"primaryKey;size:100" json:"login"`
	// Email is the primary email address of the user.
	Email string `gorm:"size:255" json:"email"`
	// SecondEmail is a secondary email address, typically used for account recovery.
	SecondEmail string `gorm:"size:255" json:"secondEmail"`
	// FirstName is the given name of the user.
	FirstName string `gorm:"size:50" json:"firstName"`
	// LastName is the family name of the user.
	LastName string `gorm:"size:50" json:"lastName"`
	// MiddleName is the middle name(s) of the user.
	MiddleName string `gorm:"size:50" json:"middleName"`
	// HonorificPrefix is the honorific prefix(es) of the user, or title in most Western languages.
	HonorificPrefix string `gorm:"size:50" json:"honorificPrefix"`
	// HonorificSuffix is the honorific suffix(es) of the user.
	HonorificSuffix string `gorm:"size:50" json:"honorificSuffix"`
	// Title is the user's title, such as "Vice President".
	Title string `gorm:"size:100" json:"title"`
	// DisplayName is the name of the user, suitable for display to end users.
	DisplayName string `gorm:"size:250" json:"displayName"`
	// NickName is a casual way to address the user in real life.
	NickName string `gorm:"size:50" json:"nickName"`
	// ProfileURL is the URL of the user's online profile.
	ProfileURL string `gorm:"size:255" json:"profileUrl"`
	// PrimaryPhone is the primary phone number of the user, such as a home number.
	PrimaryPhone string `gorm:"size:100" json:"primaryPhone"`
	// MobilePhone is the mobile phone number of the user.
	MobilePhone string `gorm:"size:100" json:"mobilePhone"`
	// StreetAddress is the full street address component of the user's address.
	StreetAddress string `gorm:"size:100" json:"streetAddress"`
	// City is the city or locality component of the user's address.
	City string `gorm:"size:100" json:"city"`
	// State is the state or region component of the user's address.
	State string `gorm:"size:100" json:"state"`
	// ZipCode is the ZIP code or postal code component of the user's address.
	ZipCode string `gorm:"size:100" json:"zipCode"`
	// CountryCode is the country code component of the user's address.
	CountryCode string `gorm:"size:2" json:"countryCode"`
	// PostalAddress is the mailing address component of the user's address.
	PostalAddress string `gorm:"size:100" json:"postalAddress"`
	// PreferredLanguage is the user's preferred written or spoken language.
	PreferredLanguage string `gorm:"size:100" json:"preferredLanguage"`
	// Locale is the user's default location for localization purposes.
	Locale string `gorm:"size:5" json:"locale"`
	// Timezone is the user's time zone.
	Timezone string `gorm:"size:100" json:"timezone"`
	// UserType describes the organization-to-user relationship, such as "Employee" or "Contractor".
	UserType string `gorm:"size:100" json:"userType"`
	// EmployeeNumber is the organization-assigned unique identifier for the user.
	EmployeeNumber string `gorm:"size:100" json:"employeeNumber"`
	// CostCenter is the name of the cost center assigned to the user.
	CostCenter string `gorm:"size:100" json:"costCenter"`
	// Organization is the name of the user's organization.
	Organization string `gorm:"size:100" json:"organization"`
	// Division is the name of the user's division.
	Division string `gorm:"size:100" json:"division"`
	// Department is the name of the user's department.
	Department string `gorm:"size:100" json:"department"`
	// ManagerID is the id of the user's manager.
	ManagerID string `gorm:"column:managerId;size:100" json:"managerId"`
	// Manager is the display name of the user's manager.
	Manager string `gorm:"size:100" json:"manager"`

	// OktaID is the stable identifier of the identity in the Okta directory.
	OktaID string `gorm:"column:okta_id;size:100" json:"-"`
	// OktaStatus is the directory lifecycle status captured at the last sync.
	OktaStatus OktaStatus `gorm:"column:okta_status;type:varchar(20)" json:"-"`
	// OktaCreated is when the identity was created in the directory.
	OktaCreated *time.Time `gorm:"column:okta_created" json:"-"`
	// OktaActivated is when the identity was activated in the directory.
	OktaActivated *time.Time `gorm:"column:okta_activated" json:"-"`
	// OktaStatusChanged is when the directory status last changed.
	OktaStatusChanged *time.Time `gorm:"column:okta_status_changed" json:"-"`

	// IsActive designates whether this user should be treated as active.
	// Unset this instead of deleting accounts.
	IsActive bool `gorm:"column:is_active;default:true" json:"-"`
	// IsStaff designates whether the user can log into the admin site.
	IsStaff bool `gorm:"column:is_staff" json:"-"`
	// IsSuperuser designates that the user has all permissions without
	// explicitly assigning them.
	IsSuperuser bool `gorm:"column:is_superuser" json:"-"`

	// LastRefresh is when the Okta-derived attributes were last synced.
	// Nil means the user was never synced from the directory.
	LastRefresh *time.Time `gorm:"column:last_refresh" json:"-"`
	// DateJoined is when the local record was created.
	DateJoined time.Time `gorm:"column:date_joined;autoCreateTime" json:"-"`

	// Password is the Argon2id hashed password (only used for locally
	// administered accounts; SAML users never have a usable password).
	Password string `gorm:"size:255" json:"-"`

	// Groups are the groups this user belongs to.
	Groups []Group `gorm:"many2many:user_groups;foreignKey:Login;joinForeignKey:UserLogin;References:ID;joinReferences:GroupID" json:"-"`
}

// TableName specifies the database table name for the User model.
func (User) TableName() string {
	return "users"
}

// String returns the login, the user's primary identity.
func (u *User) String() string {
	return u.Login
}

// FullName assembles a display-ready full name, preferring DisplayName and
// falling back to the name components that are present.
func (u *User) FullName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}

	components := []string{u.HonorificPrefix, u.FirstName, u.MiddleName, u.LastName, u.HonorificSuffix}
	present := make([]string, 0, len(components))

	for _, component := range components {
		if component != "" {
			present = append(present, component)
		}
	}

	return strings.Join(present, " ")
}

// ShortName returns the nickname if set, otherwise the first name.
func (u *User) ShortName() string {
	if u.NickName != "" {
		return u.NickName
	}

	return u.FirstName
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
// This is only used for locally administered accounts.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the user's stored hash.
// Users materialized from SAML assertions have no usable password and always
// fail verification.
func (u *User) VerifyPassword(password string) bool {
	if u.Password == "" {
		return false
	}

	match, err := argon2id.ComparePasswordAndHash(password, u.Password)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}
