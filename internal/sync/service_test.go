package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/config"
	"github.com/irvingleonard/go-okta-client/internal/db/controller/user"
	"github.com/irvingleonard/go-okta-client/internal/db/models"
	"github.com/irvingleonard/go-okta-client/internal/events"
	"github.com/irvingleonard/go-okta-client/internal/groups"
	"github.com/irvingleonard/go-okta-client/internal/okta"
)

// directoryFixture serves a small fake Okta org.
type directoryFixture struct {
	users      map[string]map[string]interface{}
	userGroups map[string][]string
	empty      bool
}

func (f *directoryFixture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/users":
			if f.empty {
				_, _ = w.Write([]byte(`[]`))

				return
			}

			var list []map[string]interface{}
			for _, u := range f.users {
				list = append(list, u)
			}

			if r.URL.Query().Get("limit") == "1" && len(list) > 1 {
				list = list[:1]
			}

			_ = json.NewEncoder(w).Encode(list)
		case len(r.URL.Path) > len("/api/v1/users/") && r.URL.Path[len(r.URL.Path)-7:] == "/groups":
			id := r.URL.Path[len("/api/v1/users/") : len(r.URL.Path)-7]

			var list []map[string]interface{}
			for _, name := range f.userGroups[id] {
				list = append(list, map[string]interface{}{
					"id":      "g-" + name,
					"profile": map[string]string{"name": name},
				})
			}

			if list == nil {
				list = []map[string]interface{}{}
			}

			_ = json.NewEncoder(w).Encode(list)
		default:
			login := r.URL.Path[len("/api/v1/users/"):]

			u, ok := f.users[login]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = fmt.Fprintf(w, `{"errorCode":"E0000007","errorSummary":"Not found: %s"}`, login)

				return
			}

			_ = json.NewEncoder(w).Encode(u)
		}
	}
}

func setupServiceTest(t *testing.T, fixture *directoryFixture) (*Service, *gorm.DB, func()) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Group{}, &models.UserGroup{}))

	server := httptest.NewServer(fixture.handler())

	directory := okta.New(config.Okta{OrgURL: server.URL, Token: "00testtoken"})
	reconciler := groups.NewReconciler(db, events.NewBus())

	return NewService(db, directory, reconciler), db, server.Close
}

func remoteUser(id, login string, extra map[string]interface{}) map[string]interface{} {
	profile := map[string]interface{}{"login": login}
	for k, v := range extra {
		profile[k] = v
	}

	return map[string]interface{}{
		"id":      id,
		"status":  "ACTIVE",
		"profile": profile,
	}
}

func TestRefreshUserCreatesLocalRecord(t *testing.T) {
	fixture := &directoryFixture{
		users: map[string]map[string]interface{}{
			"alice@example.com": remoteUser("u1", "alice@example.com", map[string]interface{}{
				"firstName": "Alice",
			}),
		},
		userGroups: map[string][]string{"u1": {"Engineering"}},
	}

	s, db, done := setupServiceTest(t, fixture)
	defer done()

	groupCount, err := s.RefreshUser(context.Background(), "alice@example.com", true)
	require.NoError(t, err)
	assert.Equal(t, 1, groupCount)

	local, err := user.Get(db, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice", local.FirstName)
	assert.Equal(t, "u1", local.OktaID)
	require.NotNil(t, local.LastRefresh)
	require.Len(t, local.Groups, 1)
	assert.Equal(t, "Engineering", local.Groups[0].Name)
}

func TestRefreshUserOrphanRollback(t *testing.T) {
	fixture := &directoryFixture{users: map[string]map[string]interface{}{}}

	s, db, done := setupServiceTest(t, fixture)
	defer done()

	_, err := s.RefreshUser(context.Background(), "ghost@example.com", false)
	require.Error(t, err)
	assert.True(t, okta.IsNotFound(err))

	// the just-created record must not be left behind
	_, err = user.Get(db, "ghost@example.com")
	require.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestRefreshUserKeepsExistingRecordOnFailure(t *testing.T) {
	fixture := &directoryFixture{users: map[string]map[string]interface{}{}}

	s, db, done := setupServiceTest(t, fixture)
	defer done()

	_, err := user.Create(db, &models.User{Login: "alice@example.com", FirstName: "Alice"})
	require.NoError(t, err)

	_, err = s.RefreshUser(context.Background(), "alice@example.com", false)
	require.Error(t, err)

	// a record that existed before the refresh survives the failure
	local, err := user.Get(db, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice", local.FirstName)
}

func TestRefreshUserSkipsEmptyGroupResult(t *testing.T) {
	fixture := &directoryFixture{
		users: map[string]map[string]interface{}{
			"alice@example.com": remoteUser("u1", "alice@example.com", nil),
		},
		userGroups: map[string][]string{},
	}

	s, db, done := setupServiceTest(t, fixture)
	defer done()

	// existing membership from an earlier sync
	_, err := user.Create(db, &models.User{Login: "alice@example.com"})
	require.NoError(t, err)

	local, err := user.Get(db, "alice@example.com")
	require.NoError(t, err)

	reconciler := groups.NewReconciler(db, events.NewBus())
	require.NoError(t, reconciler.Reconcile(local, []string{"Engineering"}))

	groupCount, err := s.RefreshUser(context.Background(), "alice@example.com", true)
	require.NoError(t, err)
	assert.Zero(t, groupCount)

	// an empty directory answer must not clear the membership
	local, err = user.Get(db, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, local.Groups, 1)
}

func TestUpdateAllUsers(t *testing.T) {
	fixture := &directoryFixture{
		users: map[string]map[string]interface{}{
			"alice@example.com": remoteUser("u1", "alice@example.com", map[string]interface{}{
				"firstName": "Alice",
			}),
			"bob@example.com": remoteUser("u2", "bob@example.com", map[string]interface{}{
				"firstName": "Bob",
			}),
		},
		userGroups: map[string][]string{
			"u1": {"Engineering"},
			"u2": {"Engineering", "Staff"},
		},
	}

	s, db, done := setupServiceTest(t, fixture)
	defer done()

	report, err := s.UpdateAllUsers(context.Background(), BulkOptions{WithGroups: true})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Users)
	assert.Equal(t, 3, report.Groups)
	assert.Empty(t, report.Failures)

	local, err := user.Get(db, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Bob", local.FirstName)
	assert.Len(t, local.Groups, 2)
}

func TestUpdateAllUsersCountsGrowingDirectory(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Group{}, &models.UserGroup{}))

	firstPage := []map[string]interface{}{
		remoteUser("u1", "alice@example.com", nil),
		remoteUser("u2", "bob@example.com", nil),
	}

	// more users than the first page implied, as if the org grew while
	// the pages were being walked
	secondPage := []map[string]interface{}{
		remoteUser("u3", "carol@example.com", nil),
		remoteUser("u4", "dave@example.com", nil),
		remoteUser("u5", "erin@example.com", nil),
	}

	var server *httptest.Server

	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") != "" {
			_ = json.NewEncoder(w).Encode(secondPage)

			return
		}

		if r.URL.Query().Get("limit") == "1" {
			_ = json.NewEncoder(w).Encode(firstPage[:1])

			return
		}

		w.Header().Set("Link", fmt.Sprintf(`<%s/api/v1/users?after=u2>; rel="next"`, server.URL))
		_ = json.NewEncoder(w).Encode(firstPage)
	}))
	defer server.Close()

	directory := okta.New(config.Okta{OrgURL: server.URL, Token: "00testtoken"})
	s := NewService(db, directory, groups.NewReconciler(db, events.NewBus()))

	report, err := s.UpdateAllUsers(context.Background(), BulkOptions{})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Users)
	assert.Empty(t, report.Failures)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 5, count)
}

func TestUpdateAllUsersIsolatesFailures(t *testing.T) {
	fixture := &directoryFixture{
		users: map[string]map[string]interface{}{
			"alice@example.com": remoteUser("u1", "alice@example.com", nil),
			"broken":            {"id": "u2", "status": "ACTIVE", "profile": map[string]interface{}{}},
		},
	}

	s, _, done := setupServiceTest(t, fixture)
	defer done()

	report, err := s.UpdateAllUsers(context.Background(), BulkOptions{})
	require.NoError(t, err)

	// the record without a login fails, the other one still goes through
	assert.Equal(t, 1, report.Users)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures, "u2")
}

func TestUpdateAllUsersDirectoryUnavailable(t *testing.T) {
	fixture := &directoryFixture{empty: true}

	s, _, done := setupServiceTest(t, fixture)
	defer done()

	_, err := s.UpdateAllUsers(context.Background(), BulkOptions{})
	require.ErrorIs(t, err, ErrDirectoryUnavailable)
}

func TestUpdateUsers(t *testing.T) {
	fixture := &directoryFixture{
		users: map[string]map[string]interface{}{
			"alice@example.com": remoteUser("u1", "alice@example.com", nil),
		},
	}

	s, _, done := setupServiceTest(t, fixture)
	defer done()

	report, err := s.UpdateUsers(context.Background(),
		[]string{"alice@example.com", "ghost@example.com"}, BulkOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Users)
	require.Len(t, report.Failures, 1)
	assert.True(t, okta.IsNotFound(report.Failures["ghost@example.com"]))
}
