// Package okta implements a thin client for the Okta directory API.
//
// Credentials are built lazily on first use. A client id with a private key
// selects OAuth2 private_key_jwt, a configured API token selects the static
// SSWS authorization scheme. Without either, every call fails with
// ErrMissingCredentials.
package okta

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/irvingleonard/go-okta-client/internal/config"
)

const (
	defaultTimeout = 30 * time.Second

	// assertionLifetime is how long a signed client assertion stays valid.
	assertionLifetime = time.Minute
)

// Client talks to one Okta org.
type Client struct {
	cfg        config.Okta
	httpClient *http.Client

	credOnce  sync.Once
	credErr   error
	authorize func(req *http.Request) error
}

// New creates a directory client for the configured org.
// No network traffic happens until the first API call.
func New(cfg config.Okta) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// ensureCredentials builds the authorization strategy exactly once.
// ClientID with PrivateKey wins over a static token.
func (c *Client) ensureCredentials() error {
	c.credOnce.Do(func() {
		switch {
		case c.cfg.ClientID != "" && c.cfg.PrivateKey != "":
			c.credErr = c.useOAuth2()
		case c.cfg.Token != "":
			c.useSSWSToken()
		default:
			c.credErr = ErrMissingCredentials
		}
	})

	return c.credErr
}

// useSSWSToken authorizes requests with the static API token.
func (c *Client) useSSWSToken() {
	token := c.cfg.Token
	c.authorize = func(req *http.Request) error {
		req.Header.Set("Authorization", "SSWS "+token)

		return nil
	}

	log.Debug().Str("org", c.cfg.OrgURL).Msg("okta client using SSWS token credentials")
}

// useOAuth2 sets up a cached OAuth2 token source using private_key_jwt.
func (c *Client) useOAuth2() error {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(c.cfg.PrivateKey))
	if err != nil {
		return errors.Wrap(err, "failed to parse okta private key")
	}

	source := oauth2.ReuseTokenSource(nil, &assertionTokenSource{
		tokenURL:   c.cfg.OrgURL + "/oauth2/v1/token",
		clientID:   c.cfg.ClientID,
		scopes:     c.cfg.Scopes,
		key:        key,
		httpClient: c.httpClient,
	})

	c.authorize = func(req *http.Request) error {
		token, tokenErr := source.Token()
		if tokenErr != nil {
			return errors.Wrap(tokenErr, "failed to obtain okta access token")
		}

		token.SetAuthHeader(req)

		return nil
	}

	log.Debug().Str("org", c.cfg.OrgURL).Str("client_id", c.cfg.ClientID).
		Msg("okta client using private_key_jwt credentials")

	return nil
}

// assertionTokenSource fetches access tokens from the org token endpoint,
// authenticating with a freshly signed client assertion each time.
type assertionTokenSource struct {
	tokenURL   string
	clientID   string
	scopes     []string
	key        interface{}
	httpClient *http.Client
}

// Token implements oauth2.TokenSource.
func (s *assertionTokenSource) Token() (*oauth2.Token, error) {
	assertion, err := s.signAssertion()
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type":            {"client_credentials"},
		"scope":                 {strings.Join(s.scopes, " ")},
		"client_assertion_type": {"urn:ietf:params:oauth:client-assertion-type:jwt-bearer"},
		"client_assertion":      {assertion},
	}

	resp, err := s.httpClient.PostForm(s.tokenURL, form) //nolint:noctx // token source has no caller context
	if err != nil {
		return nil, errors.Wrap(err, "token endpoint request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read token endpoint answer")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("token endpoint answered %d: %s", resp.StatusCode, string(body))
	}

	var answer struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}

	if err = json.Unmarshal(body, &answer); err != nil {
		return nil, errors.Wrap(err, "failed to decode token endpoint answer")
	}

	return &oauth2.Token{
		AccessToken: answer.AccessToken,
		TokenType:   answer.TokenType,
		Expiry:      time.Now().Add(time.Duration(answer.ExpiresIn) * time.Second),
	}, nil
}

// signAssertion creates the RS256 signed client assertion for the token call.
func (s *assertionTokenSource) signAssertion() (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": s.clientID,
		"sub": s.clientID,
		"aud": s.tokenURL,
		"iat": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
		"jti": uuid.NewString(),
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign client assertion")
	}

	return signed, nil
}

// Response carries one page of an API call answer.
type Response struct {
	Body []byte

	// Next holds the url of the next page, empty on the last page.
	Next string
}

// Decode unmarshals the answer body into out.
func (r *Response) Decode(out interface{}) error {
	return errors.Wrap(json.Unmarshal(r.Body, out), "failed to decode okta answer")
}

// get performs an authorized GET against the API.
// rawURL may be a path below the org url or an absolute paging url.
func (c *Client) get(ctx context.Context, rawURL string, query url.Values) (*Response, error) {
	if err := c.ensureCredentials(); err != nil {
		return nil, err
	}

	if !strings.HasPrefix(rawURL, "http") {
		rawURL = c.cfg.OrgURL + rawURL
	}

	if len(query) > 0 {
		rawURL = rawURL + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build okta request")
	}

	req.Header.Set("Accept", "application/json")

	if err = c.authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "okta request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read okta answer")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(body, apiErr); jsonErr != nil {
			apiErr.ErrorSummary = string(body)
		}

		return nil, apiErr
	}

	return &Response{
		Body: body,
		Next: nextLink(resp.Header),
	}, nil
}

// nextLink extracts the rel="next" url from the Link headers.
func nextLink(header http.Header) string {
	for _, link := range header.Values("Link") {
		for _, part := range strings.Split(link, ",") {
			if !strings.Contains(part, `rel="next"`) {
				continue
			}

			start := strings.Index(part, "<")
			end := strings.Index(part, ">")
			if start >= 0 && end > start {
				return part[start+1 : end]
			}
		}
	}

	return ""
}

// getAll follows the paging links and collects every page body.
func (c *Client) getAll(ctx context.Context, path string, query url.Values) ([]*Response, error) {
	var (
		pages []*Response
		next  = path
	)

	for next != "" {
		resp, err := c.get(ctx, next, query)
		if err != nil {
			return nil, err
		}

		pages = append(pages, resp)
		next = resp.Next
		// the paging url already carries the query parameters
		query = nil
	}

	return pages, nil
}

// Ping reports whether the users endpoint is reachable with the configured
// credentials. Used to decide between full and degraded operation.
func (c *Client) Ping(ctx context.Context) bool {
	ok, err := c.PingUsersEndpoint(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("okta users endpoint unreachable")

		return false
	}

	return ok
}
