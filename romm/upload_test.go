package romm

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAssetSuccess(t *testing.T) {
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/saves" {
			w.WriteHeader(http.StatusOK)
			return
		}
		assert.Equal(t, "3", r.URL.Query().Get("rom_id"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":99,"file_name":"slot0.srm"}`))
	})
	defer server.Close()

	result, err := c.UploadAsset(context.Background(), KindSave, "slot0.srm", []byte("data"), UploadAssetParams{RomID: 3})
	require.NoError(t, err)
	assert.Equal(t, UploadOK, result.Outcome)
	assert.Equal(t, uint(99), result.ID)
}

func TestUploadAssetConflictNeverAutoRetries(t *testing.T) {
	var uploadAttempts int
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/saves" {
			uploadAttempts++
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	result, err := c.UploadAsset(context.Background(), KindSave, "slot0.srm", []byte("data"), UploadAssetParams{RomID: 3})
	require.NoError(t, err)
	assert.Equal(t, UploadConflict, result.Outcome)
	assert.Equal(t, 1, uploadAttempts)
}

func TestUploadAssetInvalidYieldsError(t *testing.T) {
	server, c := authedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/saves" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"detail":"bad file"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	result, err := c.UploadAsset(context.Background(), KindSave, "slot0.srm", []byte("data"), UploadAssetParams{RomID: 3})
	require.Error(t, err)
	assert.Equal(t, UploadInvalid, result.Outcome)
}
