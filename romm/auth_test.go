package romm

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, zerolog.Nop())
}

func TestAuthenticateSessionMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	err := c.Authenticate("user", "pass")
	require.NoError(t, err)
	assert.Equal(t, AuthSession, c.mode)
	assert.True(t, c.Authenticated())
}

func TestAuthenticateBasicModeWhenSessionRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if ok && user == "user" && pass == "pass" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	err := c.Authenticate("user", "pass")
	require.NoError(t, err)
	assert.Equal(t, AuthBasic, c.mode)
}

func TestAuthenticateOAuth2FallbackAndRefresh(t *testing.T) {
	refreshed := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/roms":
			w.WriteHeader(http.StatusUnauthorized)
		case r.URL.Path == "/api/token":
			r.ParseForm()
			if r.Form.Get("grant_type") == "refresh_token" {
				refreshed = true
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"tok-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	err := c.Authenticate("user", "pass")
	require.NoError(t, err)
	assert.Equal(t, AuthOAuth2, c.mode)
	assert.Equal(t, "tok-1", c.accessToken)

	c.tokenExpiry = time.Now().Add(-time.Minute)
	require.NoError(t, c.ensureAuthenticated())
	c.mu.Lock()
	err = c.refreshLocked()
	c.mu.Unlock()
	require.NoError(t, err)
	assert.True(t, refreshed)
}

func TestEnsureAuthenticatedFailsBeforeLogin(t *testing.T) {
	c := newTestClient("http://example.invalid")
	err := c.ensureAuthenticated()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
