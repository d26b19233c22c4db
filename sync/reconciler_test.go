package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-romm-sync/catalog"
	"go-romm-sync/constants"
	"go-romm-sync/romm"
)

func newReconcilerTestEngine(t *testing.T, handler http.HandlerFunc, policy, deviceID string) (*Engine, string, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := romm.NewClient(server.URL, zerolog.Nop())
	require.NoError(t, client.Authenticate("user", "pass"))

	cache, err := catalog.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	savesDir := t.TempDir()
	statesDir := t.TempDir()

	eng, err := NewEngine(EngineConfig{
		Client:          client,
		Cache:           cache,
		LockDir:         t.TempDir(),
		InstanceLabel:   "test",
		UI:              &stubUI{},
		SavesDir:        savesDir,
		StatesDir:       statesDir,
		DeviceID:        deviceID,
		OverwritePolicy: policy,
	})
	require.NoError(t, err)
	return eng, savesDir, statesDir
}

func TestReconcileDownloadsNewestSave(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/roms/7":
			fmt.Fprint(w, `{"id":7,"name":"Chrono Trigger","user_saves":[
				{"id":1,"file_name":"Chrono Trigger [2024-01-01 10-00-00-000].srm","download_path":"/dl/1","updated_at":"2024-01-01T10:00:00Z"},
				{"id":2,"file_name":"Chrono Trigger [2024-06-01 10-00-00-000].srm","download_path":"/dl/2","updated_at":"2024-06-01T10:00:00Z"}
			],"user_states":[]}`)
		case r.URL.Path == "/api/saves/2/content":
			fmt.Fprint(w, "save-bytes")
		default:
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "[]")
		}
	}
	eng, savesDir, _ := newReconcilerTestEngine(t, handler, constants.PolicyPreferServer, "")

	require.NoError(t, eng.Reconcile(context.Background(), 7))

	content, err := os.ReadFile(filepath.Join(savesDir, "Chrono Trigger.srm"))
	require.NoError(t, err)
	assert.Equal(t, "save-bytes", string(content))
}

func TestReconcilePlacesSaveUnderEmulatorFolder(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/roms/7":
			fmt.Fprint(w, `{"id":7,"user_saves":[
				{"id":1,"file_name":"Chrono Trigger.srm","download_path":"/dl/1","updated_at":"2024-06-01T10:00:00Z","emulator":"snes9x"}
			],"user_states":[]}`)
		case r.URL.Path == "/api/saves/1/content":
			fmt.Fprint(w, "save-bytes")
		default:
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "[]")
		}
	}
	eng, savesDir, _ := newReconcilerTestEngine(t, handler, constants.PolicyPreferServer, "")

	require.NoError(t, eng.Reconcile(context.Background(), 7))

	content, err := os.ReadFile(filepath.Join(savesDir, "Snes9x", "Chrono Trigger.srm"))
	require.NoError(t, err)
	assert.Equal(t, "save-bytes", string(content))
}

func TestReconcileSkipsWhenOptimisticDeviceSyncCurrent(t *testing.T) {
	called := false
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/roms/7":
			fmt.Fprint(w, `{"id":7,"user_saves":[
				{"id":1,"file_name":"Chrono Trigger.srm","download_path":"/dl/1","updated_at":"2024-06-01T10:00:00Z",
				 "device_syncs":[{"device_id":"dev-1","is_current":true}]}
			],"user_states":[]}`)
		case r.URL.Path == "/api/saves/1/content":
			called = true
			fmt.Fprint(w, "should-not-be-fetched")
		default:
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "[]")
		}
	}
	eng, _, _ := newReconcilerTestEngine(t, handler, constants.PolicyPreferServer, "dev-1")

	require.NoError(t, eng.Reconcile(context.Background(), 7))
	assert.False(t, called, "optimistic skip should prevent a content download")
}

func TestReconcileKeepsLocalUnderPreferLocalPolicy(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/roms/7":
			fmt.Fprint(w, `{"id":7,"user_saves":[
				{"id":1,"file_name":"Chrono Trigger.srm","download_path":"/dl/1","updated_at":"2024-06-01T10:00:00Z"}
			],"user_states":[]}`)
		case r.URL.Path == "/api/saves/1/content":
			t.Fatal("prefer-local policy must not download")
		default:
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "[]")
		}
	}
	eng, savesDir, _ := newReconcilerTestEngine(t, handler, constants.PolicyPreferLocal, "")

	local := filepath.Join(savesDir, "Chrono Trigger.srm")
	require.NoError(t, os.WriteFile(local, []byte("local-bytes"), 0o644))

	require.NoError(t, eng.Reconcile(context.Background(), 7))

	content, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "local-bytes", string(content))
}

func TestReconcileProcessesAutoStateSeparatelyFromQuicksave(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/roms/7":
			fmt.Fprint(w, `{"id":7,"user_saves":[],"user_states":[
				{"id":10,"file_name":"Chrono Trigger.state","slot":"quicksave","download_path":"/dl/10","updated_at":"2024-06-01T10:00:00Z"},
				{"id":11,"file_name":"Chrono Trigger.state.auto","slot":"auto","download_path":"/dl/11","updated_at":"2024-06-01T10:00:00Z"}
			]}`)
		case r.URL.Path == "/api/states/10/content":
			fmt.Fprint(w, "quicksave-bytes")
		case r.URL.Path == "/api/states/11/content":
			fmt.Fprint(w, "auto-bytes")
		default:
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "[]")
		}
	}
	eng, _, statesDir := newReconcilerTestEngine(t, handler, constants.PolicyPreferServer, "")

	require.NoError(t, eng.Reconcile(context.Background(), 7))

	quick, err := os.ReadFile(filepath.Join(statesDir, "Chrono Trigger.state"))
	require.NoError(t, err)
	assert.Equal(t, "quicksave-bytes", string(quick))

	auto, err := os.ReadFile(filepath.Join(statesDir, "Chrono Trigger.state.auto"))
	require.NoError(t, err)
	assert.Equal(t, "auto-bytes", string(auto))
}
