package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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
	syncpkg "github.com/irvingleonard/go-okta-client/internal/sync"
)

func setupAuthDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Group{}, &models.UserGroup{}))

	return db
}

// newOrchestrator wires an orchestrator with a role deriver for the given
// group allow-lists.
func newOrchestrator(db *gorm.DB, directory *okta.Client, ttlSeconds int,
	superGroups, staffGroups []string,
) *Service {
	bus := events.NewBus()
	groups.NewRoleDeriver(db, superGroups, staffGroups).Register(bus)

	return New(db, directory, syncpkg.NewFreshness(ttlSeconds),
		groups.NewReconciler(db, bus), bus, "groups")
}

func TestAuthenticateMaterializesNewUser(t *testing.T) {
	var requests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++

		switch r.URL.Path {
		case "/api/v1/users":
			_, _ = w.Write([]byte(`[{"id":"u0","profile":{"login":"someone@example.com"}}]`))
		case "/api/v1/users/alice12345":
			_, _ = w.Write([]byte(`{"id":"u1","status":"ACTIVE","profile":{"login":"alice12345","firstName":"Alice"}}`))
		case "/api/v1/users/u1/groups":
			_, _ = w.Write([]byte(`[{"id":"g1","profile":{"name":"Engineering"}}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	db := setupAuthDB(t)
	directory := okta.New(config.Okta{OrgURL: server.URL, Token: "00testtoken"})
	s := newOrchestrator(db, directory, 300, nil, []string{"Engineering"})

	u, err := s.Authenticate(context.Background(), "alice12345", nil)
	require.NoError(t, err)

	assert.True(t, u.IsActive)
	assert.True(t, u.IsStaff, "Engineering grants staff")
	assert.False(t, u.IsSuperuser)
	assert.Equal(t, "Alice", u.FirstName)
	require.NotNil(t, u.LastRefresh)
	require.Len(t, u.Groups, 1)
	assert.Equal(t, "Engineering", u.Groups[0].Name)
}

func TestAuthenticateSkipsSyncWithinTTL(t *testing.T) {
	var requests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	db := setupAuthDB(t)

	now := time.Now()
	_, err := user.Create(db, &models.User{
		Login:       "alice@example.com",
		FirstName:   "Alice",
		LastRefresh: &now,
	})
	require.NoError(t, err)

	directory := okta.New(config.Okta{OrgURL: server.URL, Token: "00testtoken"})
	s := newOrchestrator(db, directory, 300, nil, nil)

	u, err := s.Authenticate(context.Background(), "alice@example.com", nil)
	require.NoError(t, err)

	// a fresh record performs zero directory calls
	assert.Zero(t, requests)
	assert.Equal(t, "Alice", u.FirstName)
	assert.True(t, u.IsActive)
}

func TestAuthenticateDegradesWhenPingFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// an empty page means the endpoint is not usable
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	db := setupAuthDB(t)
	directory := okta.New(config.Okta{OrgURL: server.URL, Token: "00testtoken"})
	s := newOrchestrator(db, directory, 0, nil, nil)

	u, err := s.Authenticate(context.Background(), "alice@example.com",
		map[string][]string{"firstName": {"Alice"}})
	require.NoError(t, err)

	assert.True(t, u.IsActive)
	assert.Equal(t, "Alice", u.FirstName, "assertion attributes still apply")
	assert.Nil(t, u.LastRefresh, "no sync happened")
}

func TestAuthenticateWithoutDirectory(t *testing.T) {
	db := setupAuthDB(t)
	s := newOrchestrator(db, nil, 0, []string{"Admins"}, nil)

	u, err := s.Authenticate(context.Background(), "alice@example.com", map[string][]string{
		"firstName": {"Alice"},
		"groups":    {"Admins", "Everyone"},
	})
	require.NoError(t, err)

	assert.True(t, u.IsActive)
	assert.Equal(t, "Alice", u.FirstName)
	assert.True(t, u.IsSuperuser, "assertion groups drive role derivation")
	assert.True(t, u.IsStaff)
	assert.Len(t, u.Groups, 2)
}

func TestAuthenticateEmptyAssertionGroupsClearsMemberships(t *testing.T) {
	db := setupAuthDB(t)
	s := newOrchestrator(db, nil, 0, nil, []string{"Engineering"})

	u, err := s.Authenticate(context.Background(), "alice@example.com",
		map[string][]string{"groups": {"Engineering"}})
	require.NoError(t, err)
	require.Len(t, u.Groups, 1)
	assert.True(t, u.IsStaff)

	// a present but empty groups attribute is authoritative and clears
	// the stale memberships
	u, err = s.Authenticate(context.Background(), "alice@example.com",
		map[string][]string{"groups": {}})
	require.NoError(t, err)

	assert.Empty(t, u.Groups)
	assert.False(t, u.IsStaff, "leaving the last staff group revokes the role")
}

func TestAuthenticateDropsMultiValuedAttributes(t *testing.T) {
	db := setupAuthDB(t)
	s := newOrchestrator(db, nil, 0, nil, nil)

	u, err := s.Authenticate(context.Background(), "alice@example.com", map[string][]string{
		"firstName":   {"Alice"},
		"displayName": {"Alice A", "Alice B"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Alice", u.FirstName)
	assert.Empty(t, u.DisplayName, "ambiguous multi-valued attribute is not applied")
}

func TestAuthenticateUnknownRemoteIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/users" {
			_, _ = w.Write([]byte(`[{"id":"u0","profile":{"login":"someone@example.com"}}]`))

			return
		}

		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorCode":"E0000007","errorSummary":"Not found"}`))
	}))
	defer server.Close()

	db := setupAuthDB(t)
	directory := okta.New(config.Okta{OrgURL: server.URL, Token: "00testtoken"})
	s := newOrchestrator(db, directory, 0, nil, nil)

	// not found remotely is non-fatal, a bare record is created
	u, err := s.Authenticate(context.Background(), "local-only@example.com", nil)
	require.NoError(t, err)

	assert.True(t, u.IsActive)
	assert.Empty(t, u.OktaID)
	assert.Nil(t, u.LastRefresh)
}

func TestAuthenticateRejectsOnTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/users" {
			_, _ = w.Write([]byte(`[{"id":"u0","profile":{"login":"someone@example.com"}}]`))

			return
		}

		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errorCode":"E0000009","errorSummary":"Internal error"}`))
	}))
	defer server.Close()

	db := setupAuthDB(t)
	directory := okta.New(config.Okta{OrgURL: server.URL, Token: "00testtoken"})
	s := newOrchestrator(db, directory, 0, nil, nil)

	_, err := s.Authenticate(context.Background(), "alice@example.com", nil)
	require.ErrorIs(t, err, ErrAuthenticationFailed)

	// no half-materialized record is left behind
	_, err = user.Get(db, "alice@example.com")
	require.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestAuthenticateFederatedAttributesWinOverDirectory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/users":
			_, _ = w.Write([]byte(`[{"id":"u0","profile":{"login":"someone@example.com"}}]`))
		case "/api/v1/users/alice@example.com":
			_, _ = w.Write([]byte(`{"id":"u1","status":"ACTIVE","profile":{"login":"alice@example.com","displayName":"Directory Name"}}`))
		case "/api/v1/users/u1/groups":
			_, _ = w.Write([]byte(`[{"id":"g1","profile":{"name":"Everyone"}}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	db := setupAuthDB(t)
	directory := okta.New(config.Okta{OrgURL: server.URL, Token: "00testtoken"})
	s := newOrchestrator(db, directory, 0, nil, nil)

	u, err := s.Authenticate(context.Background(), "alice@example.com",
		map[string][]string{"displayName": {"Assertion Name"}})
	require.NoError(t, err)

	assert.Equal(t, "Assertion Name", u.DisplayName)
}

func TestAuthenticateEmptyLogin(t *testing.T) {
	db := setupAuthDB(t)
	s := newOrchestrator(db, nil, 0, nil, nil)

	_, err := s.Authenticate(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}
