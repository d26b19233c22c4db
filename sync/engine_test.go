package sync

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-romm-sync/catalog"
	"go-romm-sync/romm"
	"go-romm-sync/types"
)

type stubUI struct {
	infos, errors []string
	events        []string
}

func (s *stubUI) LogInfof(format string, args ...interface{})  { s.infos = append(s.infos, format) }
func (s *stubUI) LogErrorf(format string, args ...interface{}) { s.errors = append(s.errors, format) }
func (s *stubUI) EventsEmit(eventName string, args ...interface{}) {
	s.events = append(s.events, eventName)
}

func newTestEngine(t *testing.T, client *romm.Client) *Engine {
	t.Helper()
	cache, err := catalog.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	cache.Update([]types.Game{{ID: 7, Name: "Chrono Trigger", FileName: "Chrono Trigger.sfc", PlatformSlug: "snes"}})

	eng, err := NewEngine(EngineConfig{
		Client:        client,
		Cache:         cache,
		LockDir:       t.TempDir(),
		InstanceLabel: "test",
		UI:            &stubUI{},
	})
	require.NoError(t, err)
	return eng
}

func TestHandleFSEventDropsDuringStartupGrace(t *testing.T) {
	eng := newTestEngine(t, nil)
	eng.startedAt = time.Now()

	eng.handleFSEvent(fsnotify.Event{Name: "/saves/game.srm", Op: fsnotify.Write})
	assert.Empty(t, eng.pending)
}

func TestHandleFSEventRecordsAfterGrace(t *testing.T) {
	eng := newTestEngine(t, nil)
	eng.startedAt = time.Now().Add(-10 * time.Second)

	eng.handleFSEvent(fsnotify.Event{Name: "/saves/game.srm", Op: fsnotify.Write})
	assert.Len(t, eng.pending, 1)
}

func TestHandleFSEventIgnoresUntrackedExtension(t *testing.T) {
	eng := newTestEngine(t, nil)
	eng.startedAt = time.Now().Add(-10 * time.Second)

	eng.handleFSEvent(fsnotify.Event{Name: "/saves/game.cfg", Op: fsnotify.Write})
	assert.Empty(t, eng.pending)
}

func TestHandleFSEventSuppressesRedundantTrigger(t *testing.T) {
	eng := newTestEngine(t, nil)
	eng.startedAt = time.Now().Add(-10 * time.Second)

	eng.handleFSEvent(fsnotify.Event{Name: "/saves/game.srm", Op: fsnotify.Write})
	first := eng.pending["/saves/game.srm"]

	eng.handleFSEvent(fsnotify.Event{Name: "/saves/game.srm", Op: fsnotify.Write})
	assert.Equal(t, first, eng.pending["/saves/game.srm"])
}

func TestProcessPendingUploadsWaitsForDebounce(t *testing.T) {
	eng := newTestEngine(t, nil)
	eng.pending["/saves/game.srm"] = time.Now()

	eng.processPendingUploads()
	assert.Len(t, eng.pending, 1, "a file dirtied just now should still be pending")
}

func TestMatchPathFindsROMByFileName(t *testing.T) {
	eng := newTestEngine(t, nil)
	id, ok := eng.MatchPath("Chrono Trigger [2024-01-01 10-00-00-000]")
	require.True(t, ok)
	assert.Equal(t, uint(7), id)
}

func TestUploadOneStampsFilenameAndLinksScreenshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "states")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "SMW.state")
	require.NoError(t, os.WriteFile(path, []byte("state data"), 0o644))
	require.NoError(t, os.WriteFile(path+".png", []byte("png data"), 0o644))

	var uploadedStateName, uploadedShotName string
	var verifyCalled bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/roms":
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `[]`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/states":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			uploadedStateName = r.MultipartForm.File["stateFile"][0].Filename
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":99,"file_name":"`+uploadedStateName+`"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/screenshots":
			require.Equal(t, "42", r.URL.Query().Get("rom_id"))
			require.Equal(t, "99", r.URL.Query().Get("state_id"))
			require.NoError(t, r.ParseMultipartForm(1<<20))
			uploadedShotName = r.MultipartForm.File["screenshotFile"][0].Filename
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":5}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/states/99":
			verifyCalled = true
			fmt.Fprint(w, `{"screenshot":{"id":5}}`)
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()
	client := romm.NewClient(server.URL, zerolog.Nop())
	require.NoError(t, client.Authenticate("user", "pass"))

	eng := newTestEngine(t, client)
	eng.cache.Update([]types.Game{{ID: 42, Name: "Super Mario World", FileName: "SMW.sfc", PlatformSlug: "snes"}})

	eng.uploadOne(path)

	require.NotEmpty(t, uploadedStateName)
	assert.Regexp(t, `^SMW \[\d{4}-\d{2}-\d{2} \d{2}-\d{2}-\d{2}-\d{3}\]\.state$`, uploadedStateName)
	assert.Equal(t, strings.TrimSuffix(uploadedStateName, ".state")+".png", uploadedShotName)
	assert.True(t, verifyCalled)
}

func TestSuppressUploadSkipsUpload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.srm")
	require.NoError(t, os.WriteFile(path, []byte("save data"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upload should have been suppressed")
	}))
	defer server.Close()
	client := romm.NewClient(server.URL, zerolog.Nop())

	eng := newTestEngine(t, client)
	eng.SuppressUpload(path)
	eng.uploadOne(path)
}
