package romm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"go-romm-sync/utils/fileio"
)

// UploadOutcome classifies the server's response to an upload per spec.md
// §4.1: success, an unresolvable conflict (409 — "download first"; the
// caller must never auto-retry with overwrite=true), or a validation
// failure (400/422).
type UploadOutcome int

const (
	UploadOK UploadOutcome = iota
	UploadConflict
	UploadInvalid
	UploadFailedOther
)

// UploadAssetParams bundles the query parameters of spec.md §4.1/§6.
type UploadAssetParams struct {
	RomID            uint
	Emulator         string
	DeviceID         string
	Overwrite        bool
	Slot             string
	Autocleanup      bool
	AutocleanupLimit int
}

// UploadResult carries the server-assigned ID on success, for screenshot
// linking (states only).
type UploadResult struct {
	Outcome  UploadOutcome
	ID       uint
	FileName string
}

// UploadAsset uploads content as the given kind, using filename as the
// timestamp-stamped multipart filename (spec.md §4.1). It never retries a
// 409 with overwrite=true automatically.
func (c *Client) UploadAsset(ctx context.Context, kind AssetKind, filename string, content []byte, params UploadAssetParams) (UploadResult, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return UploadResult{}, err
	}

	q := url.Values{}
	q.Set("rom_id", strconvUint(params.RomID))
	if params.Emulator != "" {
		q.Set("emulator", params.Emulator)
	}
	if params.DeviceID != "" {
		q.Set("device_id", params.DeviceID)
	}
	if params.Overwrite {
		q.Set("overwrite", "true")
	}
	if params.Slot != "" {
		q.Set("slot", params.Slot)
	}
	if params.Autocleanup {
		q.Set("autocleanup", "true")
		if params.AutocleanupLimit > 0 {
			q.Set("autocleanup_limit", fmt.Sprintf("%d", params.AutocleanupLimit))
		}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(kind.field(), filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return UploadResult{}, fmt.Errorf("failed to write multipart content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	u := c.url(fmt.Sprintf("/api/%s?%s", kind, q.Encode()))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	c.applyAuthHeader(req)

	resp, err := c.httpUpload.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to perform upload request: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "UploadAsset: failed to close response body")

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var parsed struct {
			ID       uint   `json:"id"`
			FileName string `json:"file_name"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&parsed)
		return UploadResult{Outcome: UploadOK, ID: parsed.ID, FileName: parsed.FileName}, nil
	case http.StatusConflict:
		return UploadResult{Outcome: UploadConflict}, nil
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		respBody, _ := io.ReadAll(resp.Body)
		return UploadResult{Outcome: UploadInvalid}, fmt.Errorf("upload validation failed: %s", string(respBody))
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return UploadResult{Outcome: UploadFailedOther}, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(respBody))
	}
}
