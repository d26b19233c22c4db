// Package romm is the authenticated HTTP client for the RomM-style catalog
// server described in spec.md §6: ROMs, platforms, saves, states, firmware,
// collections, and devices, all served as JSON over plain REST with a
// handful of multipart uploads.
package romm

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Timeouts per spec.md §4.1.
const (
	timeoutSmallJSON = 10 * time.Second
	timeoutStreaming = 30 * time.Second
	timeoutUpload    = 60 * time.Second
)

// AuthMode records which of the three strategies in spec.md §4.1 succeeded.
type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthSession
	AuthBasic
	AuthOAuth2
)

// Client is a thread-safe authenticated client for one RomM server.
type Client struct {
	BaseURL string
	Log     zerolog.Logger

	httpSmall  *http.Client
	httpStream *http.Client
	httpUpload *http.Client

	mu       sync.Mutex
	mode     AuthMode
	username string
	password string

	accessToken  string
	refreshToken string
	tokenType    string
	tokenExpiry  time.Time

	authenticated bool

	countCacheAt    time.Time
	countCacheValue int
}

// NewClient creates a client for baseURL. Call Authenticate before any other
// call; all other methods return ErrNotAuthenticated until it succeeds.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Log:        log,
		httpSmall:  &http.Client{Timeout: timeoutSmallJSON, Jar: jar},
		httpStream: &http.Client{Timeout: timeoutStreaming, Jar: jar},
		httpUpload: &http.Client{Timeout: timeoutUpload, Jar: jar},
	}
}

// ErrNotAuthenticated is returned by every call made before a successful
// Authenticate, or after a refresh failure poisons the session (spec.md §7).
var ErrNotAuthenticated = fmt.Errorf("not authenticated")

// ensureAuthenticated is the "request preamble" of spec.md §4.1: it attempts
// a token refresh if the OAuth2 access token is stale, and otherwise
// verifies that some authentication mode has already succeeded.
func (c *Client) ensureAuthenticated() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.authenticated {
		return ErrNotAuthenticated
	}
	if c.mode != AuthOAuth2 {
		return nil
	}
	if time.Until(c.tokenExpiry) > 300*time.Second {
		return nil
	}
	if err := c.refreshLocked(); err != nil {
		c.authenticated = false
		return fmt.Errorf("%w: refresh failed: %v", ErrNotAuthenticated, err)
	}
	return nil
}

// applyAuthHeader sets the appropriate Authorization header for the current
// auth mode. Session-mode auth rides on the shared client's cookie jar.
func (c *Client) applyAuthHeader(req *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case AuthBasic:
		req.SetBasicAuth(c.username, c.password)
	case AuthOAuth2:
		tokenType := c.tokenType
		if tokenType == "" {
			tokenType = "Bearer"
		}
		req.Header.Set("Authorization", tokenType+" "+c.accessToken)
	}
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}
