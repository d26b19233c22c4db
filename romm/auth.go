package romm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-romm-sync/utils/fileio"
)

const oauthScope = "roms,platforms,saves,states"

// Authenticate tries the three strategies of spec.md §4.1 in order against
// a probe request: an inherited session cookie, HTTP Basic, then an OAuth2
// password grant. The first that the probe accepts wins.
func (c *Client) Authenticate(username, password string) error {
	c.mu.Lock()
	c.username = username
	c.password = password
	c.mu.Unlock()

	if c.probeWithMode(AuthSession) {
		c.mu.Lock()
		c.mode = AuthSession
		c.authenticated = true
		c.mu.Unlock()
		return nil
	}

	if c.probeWithMode(AuthBasic) {
		c.mu.Lock()
		c.mode = AuthBasic
		c.authenticated = true
		c.mu.Unlock()
		return nil
	}

	return c.authenticateOAuth2(username, password)
}

// probeWithMode issues GET /api/roms?limit=1 under the given mode and
// reports whether the server accepted it.
func (c *Client) probeWithMode(mode AuthMode) bool {
	req, err := http.NewRequest(http.MethodGet, c.url("/api/roms?limit=1"), http.NoBody)
	if err != nil {
		return false
	}

	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return false
	}
	defer fileio.Close(resp.Body, nil, "probeWithMode: failed to close response body")

	return resp.StatusCode == http.StatusOK
}

func (c *Client) authenticateOAuth2(username, password string) error {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	form.Set("scope", oauthScope)

	tok, err := c.requestToken(form)
	if err != nil {
		return fmt.Errorf("oauth2 password grant failed: %w", err)
	}

	c.mu.Lock()
	c.mode = AuthOAuth2
	c.authenticated = true
	c.applyToken(tok)
	c.mu.Unlock()
	return nil
}

// refreshLocked exchanges the refresh token for a new access token. Caller
// must hold c.mu.
func (c *Client) refreshLocked() error {
	if c.refreshToken == "" {
		return fmt.Errorf("no refresh token available")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.refreshToken)
	form.Set("scope", oauthScope)

	c.mu.Unlock()
	tok, err := c.requestToken(form)
	c.mu.Lock()
	if err != nil {
		return err
	}

	c.applyToken(tok)
	return nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func (c *Client) requestToken(form url.Values) (tokenResponse, error) {
	req, err := http.NewRequest(http.MethodPost, c.url("/api/token"), strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("failed to perform token request: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "requestToken: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return tokenResponse{}, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return tokenResponse{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	return tok, nil
}

// applyToken stores a token response and computes its expiry. Caller must
// hold c.mu.
func (c *Client) applyToken(tok tokenResponse) {
	c.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	c.tokenType = tok.TokenType

	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
}

// Authenticated reports whether the client currently believes it has a
// usable session, without triggering a refresh.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}
