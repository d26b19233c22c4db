package romm

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadAssetContentDeviceScopedSuccess(t *testing.T) {
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/saves/5/content" && r.URL.Query().Get("device_id") == "dev-1":
			w.Write([]byte("save-bytes"))
		case r.URL.Path == "/api/saves/5/downloaded":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
	defer server.Close()

	var buf bytes.Buffer
	outcome, err := c.DownloadAssetContent(context.Background(), KindSave, 5, "dev-1", "", &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, DownloadOK, outcome)
	assert.Equal(t, "save-bytes", buf.String())
}

func TestDownloadAssetContentRetriesWithoutDeviceIDOn404(t *testing.T) {
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/saves/5/content" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.URL.Query().Get("device_id") == "dev-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("fallback-bytes"))
	})
	defer server.Close()

	var buf bytes.Buffer
	outcome, err := c.DownloadAssetContent(context.Background(), KindSave, 5, "dev-1", "", &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, DownloadOK, outcome)
	assert.Equal(t, "fallback-bytes", buf.String())
}

func TestDownloadAssetContentUsesFallbackURLOnPersistentFailure(t *testing.T) {
	var fallbackServer *httptest.Server
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/saves/5/content" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	fallbackServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("legacy-path-bytes"))
	}))
	defer fallbackServer.Close()

	var buf bytes.Buffer
	outcome, err := c.DownloadAssetContent(context.Background(), KindSave, 5, "", fallbackServer.URL, &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, DownloadOK, outcome)
	assert.Equal(t, "legacy-path-bytes", buf.String())
}

func TestDownloadAssetContentRejectsHTMLErrorPage(t *testing.T) {
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/saves/5/content" {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>error</html>"))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	var buf bytes.Buffer
	outcome, err := c.DownloadAssetContent(context.Background(), KindSave, 5, "", "", &buf, nil)
	require.Error(t, err)
	assert.Equal(t, DownloadFailed, outcome)
}

func TestDownloadAssetContentHonoursCancellation(t *testing.T) {
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/saves/5/content" {
			w.Write(bytes.Repeat([]byte("x"), 1<<20))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	var buf bytes.Buffer
	cancelled := func() bool { return true }
	outcome, err := c.DownloadAssetContent(context.Background(), KindSave, 5, "", "", &buf, cancelled)
	require.NoError(t, err)
	assert.Equal(t, DownloadCancelled, outcome)
}
