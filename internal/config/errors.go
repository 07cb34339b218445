package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("toml config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrOktaPrivateKeyWithoutClientID error if a private key is set without a client id.
	ErrOktaPrivateKeyWithoutClientID = errors.New("toml config okta.privatekey requires okta.clientid")

	// ErrSAMLMetadataMissing error if SAML is enabled without any IdP metadata source.
	ErrSAMLMetadataMissing = errors.New("toml config saml needs either metadataurl or metadatafile")

	// ErrSAMLKeyWithoutCertificate error if an SP signing key is set without its certificate.
	ErrSAMLKeyWithoutCertificate = errors.New("toml config saml.privatekey requires saml.certificate")
)
