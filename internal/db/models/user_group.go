package models

import "time"

// UserGroup represents the many-to-many relationship between users and groups.
// Memberships for SAML/Okta users are synchronized on every authentication
// and by the administrative bulk update.
type UserGroup struct {
	// UserLogin is the login of the user in this membership.
	UserLogin string `gorm:"primaryKey;column:user_login;size:100"`
	// GroupID is the ID of the group in this membership.
	GroupID uint `gorm:"primaryKey;column:group_id"`
	// User is the associated user; deleting the user removes its memberships.
	User User `gorm:"foreignKey:UserLogin;references:Login;constraint:OnDelete:CASCADE"`
	// Group is the associated group; deleting the group removes its memberships.
	Group Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the user was added to the group (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the UserGroup model.
func (UserGroup) TableName() string {
	return "user_groups"
}
