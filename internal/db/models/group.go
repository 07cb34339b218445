package models

import "time"

// Group represents a named user group. Local group names mirror the Okta
// group display names 1:1; the name is the join key and no remote group
// identifier is persisted beyond it. Groups are lazily created the first
// time a membership for their name is reconciled.
type Group struct {
	// ID is the unique identifier for the group.
	ID uint `gorm:"primaryKey"`
	// Name is the display name of the group, unique across the system.
	Name string `gorm:"size:150;not null;uniqueIndex"`
	// CreatedAt is the timestamp when the group was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the group was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Group model.
func (Group) TableName() string {
	return "groups"
}
