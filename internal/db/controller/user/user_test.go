package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	// Migrate the schema
	err = db.AutoMigrate(&models.User{}, &models.Group{}, &models.UserGroup{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

// seedUsers inserts test data into the database.
func seedUsers(t *testing.T, db *gorm.DB, users []models.User) {
	t.Helper()
	for _, u := range users {
		err := db.Create(&u).Error
		require.NoError(t, err, "failed to seed test data")
	}
}

func TestGet(t *testing.T) {
	db := setupTestDB(t)

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		login         string
		seedData      []models.User
		expectedError error
		expectedEmail string
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			login:         "alice@example.com",
			expectedError: ErrDBNil,
		},
		{
			name:          "empty login",
			dbParam:       db,
			login:         "",
			expectedError: ErrUserLoginEmpty,
		},
		{
			name:          "user not found",
			dbParam:       db,
			login:         "nobody@example.com",
			expectedError: ErrUserNotFound,
		},
		{
			name:    "successful get",
			dbParam: db,
			login:   "alice@example.com",
			seedData: []models.User{
				{Login: "alice@example.com", Email: "alice@example.com", FirstName: "Alice"},
			},
			expectedEmail: "alice@example.com",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Clean database for each test
			if tc.dbParam != nil {
				tc.dbParam.Exec("DELETE FROM users")
			}

			if tc.seedData != nil {
				seedUsers(t, tc.dbParam, tc.seedData)
			}

			u, err := Get(tc.dbParam, tc.login)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, u)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, u)
				assert.Equal(t, tc.login, u.Login)
				assert.Equal(t, tc.expectedEmail, u.Email)
			}
		})
	}
}

func TestGetPreloadsGroups(t *testing.T) {
	db := setupTestDB(t)

	seedUsers(t, db, []models.User{{Login: "bob@example.com"}})

	group := models.Group{Name: "Staff"}
	require.NoError(t, db.Create(&group).Error)
	require.NoError(t, db.Create(&models.UserGroup{UserLogin: "bob@example.com", GroupID: group.ID}).Error)

	u, err := Get(db, "bob@example.com")
	require.NoError(t, err)
	require.Len(t, u.Groups, 1)
	assert.Equal(t, "Staff", u.Groups[0].Name)
}

func TestCreate(t *testing.T) {
	db := setupTestDB(t)

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		user          *models.User
		seedData      []models.User
		expectedError error
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			user:          &models.User{Login: "alice@example.com"},
			expectedError: ErrDBNil,
		},
		{
			name:          "empty login",
			dbParam:       db,
			user:          &models.User{},
			expectedError: ErrUserLoginEmpty,
		},
		{
			name:    "already exists",
			dbParam: db,
			user:    &models.User{Login: "alice@example.com"},
			seedData: []models.User{
				{Login: "alice@example.com"},
			},
			expectedError: ErrUserAlreadyExists,
		},
		{
			name:    "successful create",
			dbParam: db,
			user:    &models.User{Login: "carol@example.com", Email: "carol@example.com"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.dbParam != nil {
				tc.dbParam.Exec("DELETE FROM users")
			}

			if tc.seedData != nil {
				seedUsers(t, tc.dbParam, tc.seedData)
			}

			u, err := Create(tc.dbParam, tc.user)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, u)

				stored, getErr := Get(tc.dbParam, tc.user.Login)
				require.NoError(t, getErr)
				assert.Equal(t, tc.user.Login, stored.Login)
			}
		})
	}
}

func TestCreateSuperuser(t *testing.T) {
	db := setupTestDB(t)

	u, err := CreateSuperuser(db, "admin", "admin@example.com", "s3cret")
	require.NoError(t, err)

	assert.True(t, u.IsActive)
	assert.True(t, u.IsStaff)
	assert.True(t, u.IsSuperuser)
	assert.True(t, u.VerifyPassword("s3cret"))
	assert.False(t, u.VerifyPassword("wrong"))
}

func TestSave(t *testing.T) {
	db := setupTestDB(t)

	seedUsers(t, db, []models.User{{Login: "alice@example.com", FirstName: "Alice"}})

	u, err := Get(db, "alice@example.com")
	require.NoError(t, err)

	u.FirstName = "Alicia"
	require.NoError(t, Save(db, u))

	stored, err := Get(db, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", stored.FirstName)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		login         string
		seedData      []models.User
		expectedError error
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			login:         "alice@example.com",
			expectedError: ErrDBNil,
		},
		{
			name:          "empty login",
			dbParam:       db,
			login:         "",
			expectedError: ErrUserLoginEmpty,
		},
		{
			name:          "not found",
			dbParam:       db,
			login:         "nobody@example.com",
			expectedError: ErrUserNotFound,
		},
		{
			name:    "successful delete",
			dbParam: db,
			login:   "alice@example.com",
			seedData: []models.User{
				{Login: "alice@example.com"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.dbParam != nil {
				tc.dbParam.Exec("DELETE FROM users")
			}

			if tc.seedData != nil {
				seedUsers(t, tc.dbParam, tc.seedData)
			}

			err := Delete(tc.dbParam, tc.login)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
			} else {
				require.NoError(t, err)

				_, getErr := Get(tc.dbParam, tc.login)
				require.ErrorIs(t, getErr, ErrUserNotFound)
			}
		})
	}
}
