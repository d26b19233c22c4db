package collections

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-romm-sync/catalog"
	"go-romm-sync/library"
	"go-romm-sync/romm"
	"go-romm-sync/types"
)

type stubUI struct {
	infos, errors, events []string
}

func (s *stubUI) LogInfof(format string, args ...interface{})  { s.infos = append(s.infos, format) }
func (s *stubUI) LogErrorf(format string, args ...interface{}) { s.errors = append(s.errors, format) }
func (s *stubUI) EventsEmit(eventName string, args ...interface{}) {
	s.events = append(s.events, eventName)
}

func newTestEngine(t *testing.T, handler http.HandlerFunc, autoDownload, autoDelete bool) (*Engine, string, *stubUI) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := romm.NewClient(server.URL, zerolog.Nop())
	require.NoError(t, client.Authenticate("user", "pass"))

	libDir := t.TempDir()
	ui := &stubUI{}
	lib := library.New(client, libDir, ui)

	cache, err := catalog.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	eng := NewEngine(EngineConfig{
		Client:       client,
		Library:      lib,
		Cache:        cache,
		UI:           ui,
		SyncInterval: time.Hour,
		AutoDownload: autoDownload,
		AutoDelete:   autoDelete,
	})
	return eng, libDir, ui
}

func TestInitializeCollectionDownloadsMissingROMs(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/roms" && r.URL.Query().Get("collection_id") == "5":
			fmt.Fprint(w, `[{"id":1,"fs_name":"Game.sfc","full_path":"SNES/Game.sfc","fs_size_bytes":9}]`)
		case r.URL.Path == "/api/roms/1/content/SNES/Game.sfc":
			fmt.Fprint(w, "ROM BYTES")
		default:
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "[]")
		}
	}
	eng, libDir, _ := newTestEngine(t, handler, true, false)

	eng.initializeCollection(context.Background(), types.Collection{ID: 5, Name: "Favorites"})

	_, err := os.Stat(libDir + "/SNES/1/Game.sfc")
	assert.NoError(t, err)
	assert.Len(t, eng.membership[5], 1)
}

func TestSyncOneDetectsAddedAndRemoved(t *testing.T) {
	call := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/roms" && r.URL.Query().Get("collection_id") == "5":
			call++
			if call == 1 {
				fmt.Fprint(w, `[{"id":1},{"id":2}]`)
			} else {
				fmt.Fprint(w, `[{"id":2},{"id":3}]`)
			}
		default:
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "[]")
		}
	}
	eng, _, ui := newTestEngine(t, handler, false, false)

	// First pass seeds membership {1,2} via GetCollectionROMIDs (uses the
	// same underlying fetch), the second pass sees {2,3}: 3 added, 1 removed.
	eng.syncOne(context.Background(), 5, "Favorites")
	eng.syncOne(context.Background(), 5, "Favorites")

	assert.Contains(t, eng.membership[5], uint(2))
	assert.Contains(t, eng.membership[5], uint(3))
	assert.NotContains(t, eng.membership[5], uint(1))
	assert.Contains(t, ui.infos, "handleAdded: auto-download disabled, skipping %d new rom(s) in %q")
}

func TestSetSelectedInitializesNewCollectionsWithoutBlocking(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "[]")
	}
	eng, _, _ := newTestEngine(t, handler, false, false)

	eng.SetSelected([]types.Collection{{ID: 1, Name: "A"}})
	assert.Contains(t, eng.Selected(), uint(1))

	eng.SetSelected(nil)
	assert.NotContains(t, eng.Selected(), uint(1))
}

func TestHandleRemovedSkipsDeletionWhenCoveredByOtherCollection(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "[]")
	}
	eng, _, _ := newTestEngine(t, handler, false, true)
	eng.membership[6] = map[uint]struct{}{42: {}}

	eng.handleRemoved(5, "Favorites", []uint{42})

	removals := eng.Removals()
	assert.Equal(t, 1, removals["Favorites"].RemovedCount)
	assert.Equal(t, 0, removals["Favorites"].DeletedCount)
}
