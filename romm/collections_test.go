package romm

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCollectionROMIDsBuildsSetFromPages(t *testing.T) {
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/roms" {
			w.WriteHeader(http.StatusOK)
			return
		}
		assert.Equal(t, "9", r.URL.Query().Get("collection_id"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "0" {
			w.Write([]byte(`{"items":[{"id":1,"name":"A"},{"id":2,"name":"B"}],"total":2}`))
			return
		}
		w.Write([]byte(`{"items":[],"total":2}`))
	})
	defer server.Close()

	ids, err := c.GetCollectionROMIDs(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, map[uint]struct{}{1: {}, 2: {}}, ids)
}

func TestGetCollectionsDecodesList(t *testing.T) {
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/collections" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"name":"Favorites"}]`))
	})
	defer server.Close()

	collections, err := c.GetCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, "Favorites", collections[0].Name)
}
