package config

import (
	"time"

	"github.com/irvingleonard/go-okta-client/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Okta      Okta
	SAML      SAML
}

// Webserver implement webserver settings.
type Webserver struct {
	Port         int     // listening port for the webserver
	ShutDownTime int     // wait time for shutdown
	URL          string  // base url for the webserver
	Session      Session // session settings
}

// Okta holds the directory API settings.
//
// Two credential modes are supported: ClientID plus PrivateKey for OAuth2
// private_key_jwt, or a static API Token. ClientID/PrivateKey wins when
// both are present.
type Okta struct {
	OrgURL          string   // org base url, e.g. https://example.okta.com
	ClientID        string   // OAuth2 service app client id
	PrivateKey      string   // PEM encoded RSA private key for private_key_jwt
	Scopes          []string // OAuth2 scopes, defaults to okta.users.read and okta.groups.read
	Token           string   // static SSWS API token, fallback credential
	UserTTL         int      // seconds before a local user profile is considered outdated
	SuperUserGroups []string // directory groups granting superuser (implies staff)
	StaffUserGroups []string // directory groups granting staff only
	GroupsAttribute string   // assertion attribute carrying group names
}

// Configured reports whether any directory credential is present.
// An unconfigured directory degrades logins to assertion-only mode.
func (o Okta) Configured() bool {
	return o.OrgURL != "" && ((o.ClientID != "" && o.PrivateKey != "") || o.Token != "")
}

// SAML holds the service provider settings.
type SAML struct {
	MetadataURL        string // IdP metadata url, fetched at startup
	MetadataFile       string // local IdP metadata file, used when MetadataURL is empty
	EntityID           string // service provider entity id
	AssertionDomainURL string // base url for the assertion consumer service
	NameIDFormat       string // requested NameID format
	DefaultNextURL     string // redirect target after login when no next url is stored
	Certificate        string // PEM encoded SP certificate, paired with PrivateKey
	PrivateKey         string // PEM encoded RSA private key, enables authn request signing
}
