// Package saml wires the SAML 2.0 service provider used for single sign-on.
// Assertion validation itself is delegated to gosaml2, this package only
// loads the IdP metadata and translates validated assertions into a
// verified identity for the authentication orchestrator.
package saml

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	saml2 "github.com/russellhaering/gosaml2"
	"github.com/russellhaering/gosaml2/types"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/irvingleonard/go-okta-client/internal/config"
)

const (
	metadataFetchTimeout = 30 * time.Second

	// acsPath is where the IdP posts assertions back to us.
	acsPath = "/saml/acs"
)

// ErrNoMetadataSource is returned when neither a metadata url nor a file
// is configured.
var ErrNoMetadataSource = errors.New("saml needs a metadata url or file")

// Identity is a validated assertion, reduced to what the orchestrator needs.
type Identity struct {
	// Login is the principal, from the login attribute or the NameID.
	Login string

	// Attributes carries every assertion attribute with all its values.
	Attributes map[string][]string
}

// Provider is the configured service provider.
type Provider struct {
	sp  *saml2.SAMLServiceProvider
	cfg config.SAML
}

// New loads the IdP metadata and builds the service provider.
func New(cfg config.SAML) (*Provider, error) {
	raw, err := loadMetadata(cfg)
	if err != nil {
		return nil, err
	}

	metadata := &types.EntityDescriptor{}
	if err = xml.Unmarshal(raw, metadata); err != nil {
		return nil, errors.Wrap(err, "failed to parse idp metadata")
	}

	certStore, err := certificatesFromMetadata(metadata)
	if err != nil {
		return nil, err
	}

	if metadata.IDPSSODescriptor == nil || len(metadata.IDPSSODescriptor.SingleSignOnServices) == 0 {
		return nil, errors.New("idp metadata has no single sign-on service")
	}

	keyStore, err := spKeyStore(cfg)
	if err != nil {
		return nil, err
	}

	sp := &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      metadata.IDPSSODescriptor.SingleSignOnServices[0].Location,
		IdentityProviderIssuer:      metadata.EntityID,
		ServiceProviderIssuer:       cfg.EntityID,
		AssertionConsumerServiceURL: cfg.AssertionDomainURL + acsPath,
		AudienceURI:                 cfg.EntityID,
		IDPCertificateStore:         certStore,
		SPKeyStore:                  keyStore,
		SignAuthnRequests:           keyStore != nil,
	}

	if cfg.NameIDFormat != "" {
		sp.NameIdFormat = cfg.NameIDFormat
	}

	log.Info().Str("idp", metadata.EntityID).
		Str("sso_url", sp.IdentityProviderSSOURL).Msg("saml service provider configured")

	return &Provider{sp: sp, cfg: cfg}, nil
}

// spKeyStore builds the signing key store from the configured SP key pair.
// Without a key the authn requests stay unsigned and no store is needed.
func spKeyStore(cfg config.SAML) (dsig.X509KeyStore, error) {
	if cfg.PrivateKey == "" {
		return nil, nil
	}

	block, _ := pem.Decode([]byte(cfg.PrivateKey))
	if block == nil {
		return nil, errors.New("failed to decode sp private key pem")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		parsed, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if pkcs8Err != nil {
			return nil, errors.Wrap(err, "failed to parse sp private key")
		}

		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("sp private key is not an rsa key")
		}

		key = rsaKey
	}

	certBlock, _ := pem.Decode([]byte(cfg.Certificate))
	if certBlock == nil {
		return nil, errors.New("failed to decode sp certificate pem")
	}

	return &dsig.TLSCertKeyStore{
		PrivateKey:  key,
		Certificate: [][]byte{certBlock.Bytes},
	}, nil
}

// loadMetadata reads the IdP metadata from the configured source.
// The url wins over the file when both are set.
func loadMetadata(cfg config.SAML) ([]byte, error) {
	if cfg.MetadataURL != "" {
		client := &http.Client{Timeout: metadataFetchTimeout}

		resp, err := client.Get(cfg.MetadataURL) //nolint:noctx // startup-only fetch
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch idp metadata")
		}
		defer resp.Body.Close() //nolint:errcheck

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read idp metadata")
		}

		return raw, nil
	}

	if cfg.MetadataFile != "" {
		raw, err := os.ReadFile(cfg.MetadataFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read idp metadata file")
		}

		return raw, nil
	}

	return nil, ErrNoMetadataSource
}

// certificatesFromMetadata collects the IdP signing certificates.
func certificatesFromMetadata(metadata *types.EntityDescriptor) (*dsig.MemoryX509CertificateStore, error) {
	certStore := &dsig.MemoryX509CertificateStore{}

	if metadata.IDPSSODescriptor == nil {
		return nil, errors.New("idp metadata has no idp descriptor")
	}

	for _, kd := range metadata.IDPSSODescriptor.KeyDescriptors {
		for _, xcert := range kd.KeyInfo.X509Data.X509Certificates {
			if xcert.Data == "" {
				continue
			}

			certData, err := base64.StdEncoding.DecodeString(xcert.Data)
			if err != nil {
				return nil, errors.Wrap(err, "failed to decode idp certificate")
			}

			idpCert, err := x509.ParseCertificate(certData)
			if err != nil {
				return nil, errors.Wrap(err, "failed to parse idp certificate")
			}

			certStore.Roots = append(certStore.Roots, idpCert)
		}
	}

	if len(certStore.Roots) == 0 {
		return nil, errors.New("idp metadata carries no signing certificate")
	}

	return certStore, nil
}

// BuildAuthURL creates the redirect url starting a login at the IdP.
func (p *Provider) BuildAuthURL(relayState string) (string, error) {
	authURL, err := p.sp.BuildAuthURL(relayState)
	if err != nil {
		return "", errors.Wrap(err, "failed to build auth url")
	}

	return authURL, nil
}

// DefaultNextURL is where a login without a stored next url lands.
func (p *Provider) DefaultNextURL() string {
	if p.cfg.DefaultNextURL != "" {
		return p.cfg.DefaultNextURL
	}

	return "/"
}

// ParseResponse validates a posted SAMLResponse and extracts the identity.
func (p *Provider) ParseResponse(encodedResponse string) (*Identity, error) {
	assertionInfo, err := p.sp.RetrieveAssertionInfo(encodedResponse)
	if err != nil {
		return nil, errors.Wrap(err, "failed to validate assertion")
	}

	if assertionInfo.WarningInfo.InvalidTime {
		return nil, errors.New("assertion is outside its validity window")
	}

	if assertionInfo.WarningInfo.NotInAudience {
		return nil, errors.New("assertion is not for this audience")
	}

	return identityFromAssertion(assertionInfo), nil
}

// identityFromAssertion flattens the assertion attributes.
// The login attribute wins over the NameID as principal.
func identityFromAssertion(info *saml2.AssertionInfo) *Identity {
	identity := &Identity{
		Login:      info.NameID,
		Attributes: make(map[string][]string, len(info.Values)),
	}

	for _, attr := range info.Values {
		values := make([]string, 0, len(attr.Values))
		for _, v := range attr.Values {
			values = append(values, v.Value)
		}

		identity.Attributes[attr.Name] = values
	}

	if logins, ok := identity.Attributes["login"]; ok && len(logins) == 1 && logins[0] != "" {
		identity.Login = logins[0]
	}

	return identity
}
