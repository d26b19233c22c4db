package romm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authedTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	c := newTestClient(server.URL)
	require.NoError(t, c.Authenticate("user", "pass"))
	return server, c
}

func TestFetchAllROMsPaginatesAcrossChunks(t *testing.T) {
	var pageHits int32
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/roms" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		offset := r.URL.Query().Get("offset")
		atomic.AddInt32(&pageHits, 1)
		w.Header().Set("Content-Type", "application/json")
		if offset == "0" {
			fmt.Fprint(w, `{"items":[{"id":1,"name":"Game One"}],"total":501}`)
			return
		}
		fmt.Fprint(w, `{"items":[{"id":2,"name":"Game Two"}],"total":501}`)
	})
	defer server.Close()

	var pages int
	games, err := c.FetchAllROMs(context.Background(), func(PageProgress) { pages++ }, nil)
	require.NoError(t, err)
	assert.Len(t, games, 2)
	assert.Equal(t, 2, pages)
	assert.True(t, pageHits >= 2)
}

func TestFetchAllROMsReturnsNilWhenEmpty(t *testing.T) {
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[],"total":0}`)
	})
	defer server.Close()

	games, err := c.FetchAllROMs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestFetchAllROMsSurvivesAPageFailure(t *testing.T) {
	var offsets []string
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)
		if offset == "500" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[{"id":1,"name":"Game One"}],"total":600}`)
	})
	defer server.Close()

	games, err := c.FetchAllROMs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, games, 1)
}

func TestCountIsCached(t *testing.T) {
	var hits int32
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[],"total":42}`)
	})
	defer server.Close()

	n, err := c.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n2, err := c.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n2)
	assert.Equal(t, int32(2), hits) // one auth probe + one count fetch, second Count served from cache
}

func TestGetRomDecodesNestedSavesAndStates(t *testing.T) {
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/roms/7" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":7,"name":"Game","user_saves":[{"id":1,"file_name":"a.srm"}],"user_states":[{"id":2,"file_name":"b.state"}]}`)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	details, err := c.GetRom(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint(7), details.ID)
	require.Len(t, details.UserSaves, 1)
	assert.Equal(t, "a.srm", details.UserSaves[0].FileName)
	require.Len(t, details.UserStates, 1)
	assert.Equal(t, "b.state", details.UserStates[0].FileName)
}

func TestGetPlatformsAcceptsBareArrayOrPaginatedShape(t *testing.T) {
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":1,"name":"Super Nintendo","slug":"snes"}]`)
	})
	defer server.Close()

	platforms, err := c.GetPlatforms(context.Background())
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	assert.Equal(t, "snes", platforms[0].Slug)
}
