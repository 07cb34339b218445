// Package user provides CRUD operations for managing local user accounts.
package user

import (
	"errors"

	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/db/models"
)

const (
	loginQueryPattern = "login = ?"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserLoginEmpty is returned when attempting to create or fetch a user with an empty login.
	ErrUserLoginEmpty = errors.New("user login cannot be empty")
	// ErrUserAlreadyExists is returned when attempting to create a user that already exists.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves a user by login, with group memberships preloaded.
func Get(db *gorm.DB, login string) (*models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if login == "" {
		return nil, ErrUserLoginEmpty
	}

	var u models.User
	result := db.Preload("Groups").Where(loginQueryPattern, login).First(&u)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}

	return &u, nil
}

// GetAll retrieves all users from the database.
func GetAll(db *gorm.DB) ([]models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var users []models.User
	result := db.Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}

	return users, nil
}

// Create creates a new user in the database.
func Create(db *gorm.DB, u *models.User) (*models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if u == nil || u.Login == "" {
		return nil, ErrUserLoginEmpty
	}

	// Check if user already exists
	var existing models.User
	result := db.Where(loginQueryPattern, u.Login).First(&existing)
	if result.Error == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	result = db.Create(u)
	if result.Error != nil {
		return nil, result.Error
	}

	return u, nil
}

// Save persists changes to an existing user.
func Save(db *gorm.DB, u *models.User) error {
	if db == nil {
		return ErrDBNil
	}
	if u == nil || u.Login == "" {
		return ErrUserLoginEmpty
	}

	return db.Save(u).Error
}

// CreateSuperuser creates a local superuser account with a password.
// Used by the seeding step on first startup.
func CreateSuperuser(db *gorm.DB, login, email, password string) (*models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if login == "" {
		return nil, ErrUserLoginEmpty
	}

	u := &models.User{
		Login:       login,
		Email:       email,
		IsActive:    true,
		IsStaff:     true,
		IsSuperuser: true,
		Password:    models.HashPassword(password),
	}

	return Create(db, u)
}

// Delete deletes a user by login.
func Delete(db *gorm.DB, login string) error {
	if db == nil {
		return ErrDBNil
	}
	if login == "" {
		return ErrUserLoginEmpty
	}

	result := db.Where(loginQueryPattern, login).Delete(&models.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}
