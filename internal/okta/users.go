package okta

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	usersPath = "/api/v1/users"

	// deprovisionedSearch is the search expression selecting deactivated users.
	// The users endpoint hides them from plain listings.
	deprovisionedSearch = `status eq "DEPROVISIONED"`
)

// User is one directory user record.
type User struct {
	ID              string                 `json:"id"`
	Status          string                 `json:"status"`
	Created         *time.Time             `json:"created"`
	Activated       *time.Time             `json:"activated"`
	StatusChanged   *time.Time             `json:"statusChanged"`
	LastLogin       *time.Time             `json:"lastLogin"`
	LastUpdated     *time.Time             `json:"lastUpdated"`
	PasswordChanged *time.Time             `json:"passwordChanged"`
	Profile         map[string]interface{} `json:"profile"`
}

// Login returns the profile login, the natural key of a user.
func (u *User) Login() string {
	login, _ := u.Profile["login"].(string)

	return login
}

// Group is one directory group record.
type Group struct {
	ID      string `json:"id"`
	Profile struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"profile"`
}

// ListUsersOptions narrows a ListUsers call.
type ListUsersOptions struct {
	// Filter is passed through as the filter parameter.
	Filter string

	// Search is passed through as the search parameter.
	Search string

	// IncludeDeprovisioned additionally fetches deactivated users with a
	// second search query. Conflicts with Search.
	IncludeDeprovisioned bool
}

// ListUsers fetches users from the directory, following paging links.
// With IncludeDeprovisioned the deactivated users are appended after the
// regular listing.
func (c *Client) ListUsers(ctx context.Context, opts ListUsersOptions) ([]User, error) {
	if opts.IncludeDeprovisioned && opts.Search != "" {
		return nil, ErrConflictingFilter
	}

	query := url.Values{}
	if opts.Filter != "" {
		query.Set("filter", opts.Filter)
	}

	if opts.Search != "" {
		query.Set("search", opts.Search)
	}

	users, err := c.fetchUsers(ctx, query)
	if err != nil {
		return nil, err
	}

	if opts.IncludeDeprovisioned {
		deprovisioned, depErr := c.fetchUsers(ctx, url.Values{"search": {deprovisionedSearch}})
		if depErr != nil {
			return nil, depErr
		}

		users = append(users, deprovisioned...)
	}

	return users, nil
}

// fetchUsers collects every page of one users listing.
func (c *Client) fetchUsers(ctx context.Context, query url.Values) ([]User, error) {
	pages, err := c.getAll(ctx, usersPath, query)
	if err != nil {
		return nil, err
	}

	var users []User

	for _, page := range pages {
		var pageUsers []User
		if err = page.Decode(&pageUsers); err != nil {
			return nil, err
		}

		users = append(users, pageUsers...)
	}

	return users, nil
}

// ForEachUserPage streams the user listing page by page through fn.
// Bulk updates use this to avoid holding the full directory in memory.
// Returning an error from fn stops the iteration.
func (c *Client) ForEachUserPage(ctx context.Context, opts ListUsersOptions, fn func(page []User) error) error {
	if opts.IncludeDeprovisioned && opts.Search != "" {
		return ErrConflictingFilter
	}

	query := url.Values{}
	if opts.Filter != "" {
		query.Set("filter", opts.Filter)
	}

	if opts.Search != "" {
		query.Set("search", opts.Search)
	}

	if err := c.forEachPage(ctx, query, fn); err != nil {
		return err
	}

	if opts.IncludeDeprovisioned {
		return c.forEachPage(ctx, url.Values{"search": {deprovisionedSearch}}, fn)
	}

	return nil
}

func (c *Client) forEachPage(ctx context.Context, query url.Values, fn func(page []User) error) error {
	next := usersPath

	for next != "" {
		resp, err := c.get(ctx, next, query)
		if err != nil {
			return err
		}

		var pageUsers []User
		if err = resp.Decode(&pageUsers); err != nil {
			return err
		}

		if err = fn(pageUsers); err != nil {
			return err
		}

		next = resp.Next
		query = nil
	}

	return nil
}

// PingUsersEndpoint checks that the users endpoint answers with at least one
// user. A single user is requested and paging links are ignored.
func (c *Client) PingUsersEndpoint(ctx context.Context) (bool, error) {
	resp, err := c.get(ctx, usersPath, url.Values{"limit": {strconv.Itoa(1)}})
	if err != nil {
		return false, err
	}

	var users []User
	if err = resp.Decode(&users); err != nil {
		return false, err
	}

	return len(users) > 0, nil
}

// GetUser fetches one user by id or login.
// Use IsNotFound on the error to detect a missing user.
func (c *Client) GetUser(ctx context.Context, idOrLogin string) (*User, error) {
	resp, err := c.get(ctx, usersPath+"/"+url.PathEscape(idOrLogin), nil)
	if err != nil {
		return nil, err
	}

	var u User
	if err = resp.Decode(&u); err != nil {
		return nil, err
	}

	return &u, nil
}

// ListUserGroups fetches the directory groups a user belongs to.
func (c *Client) ListUserGroups(ctx context.Context, idOrLogin string) ([]Group, error) {
	pages, err := c.getAll(ctx, usersPath+"/"+url.PathEscape(idOrLogin)+"/groups", nil)
	if err != nil {
		return nil, err
	}

	var groups []Group

	for _, page := range pages {
		var pageGroups []Group
		if err = page.Decode(&pageGroups); err != nil {
			return nil, err
		}

		groups = append(groups, pageGroups...)
	}

	log.Debug().Str("user", idOrLogin).Int("group_count", len(groups)).Msg("fetched directory groups")

	return groups, nil
}

// GroupNames extracts the profile names of groups.
func GroupNames(groups []Group) []string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.Profile.Name)
	}

	return names
}
