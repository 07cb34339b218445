// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/BurntSushi/toml"
)

// defaultScopes are the OAuth2 scopes requested when none are configured.
var defaultScopes = []string{"okta.users.read", "okta.groups.read"}

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	if _, err = toml.DecodeFile(path+"main.toml", &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv("GO_OKTA_CLIENT_CONFIG_JSON")

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	return c, validate(&c)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c *Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate minimal config settings and fill in defaults.
// Validates only the settings the server can not start without;
// the directory credentials stay optional so the app can run in
// assertion-only mode.
func validate(c *Config) error {
	// validate webserver listening port
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	// validate access-control-allow-origin
	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	if c.Webserver.Session.ExpiryTime == 0 {
		c.Webserver.Session.ExpiryTime = 24 * time.Hour
	}

	// a private key without a client id can never authenticate
	if c.Okta.PrivateKey != "" && c.Okta.ClientID == "" {
		return errors.Wrap(ErrOktaPrivateKeyWithoutClientID, invalidErrMessage)
	}

	if len(c.Okta.Scopes) == 0 {
		c.Okta.Scopes = defaultScopes
	}

	if c.Okta.GroupsAttribute == "" {
		c.Okta.GroupsAttribute = "groups"
	}

	if c.SAML.EntityID != "" && c.SAML.MetadataURL == "" && c.SAML.MetadataFile == "" {
		return errors.Wrap(ErrSAMLMetadataMissing, invalidErrMessage)
	}

	// a signing key without its certificate can never produce a
	// verifiable signature
	if c.SAML.PrivateKey != "" && c.SAML.Certificate == "" {
		return errors.Wrap(ErrSAMLKeyWithoutCertificate, invalidErrMessage)
	}

	return nil
}
