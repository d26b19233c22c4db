package romm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go-romm-sync/utils/fileio"
)

// UploadScreenshot uploads a state's co-located .png at
// /api/screenshots?rom_id=&state_id= with a filename sharing the exact same
// timestamp bracket as the uploaded state (spec.md §4.1).
func (c *Client) UploadScreenshot(ctx context.Context, romID, stateID uint, filename string, content []byte) (uint, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return 0, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("screenshotFile", filename)
	if err != nil {
		return 0, fmt.Errorf("failed to create screenshot multipart field: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return 0, fmt.Errorf("failed to write screenshot content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to close screenshot multipart writer: %w", err)
	}

	u := c.url(fmt.Sprintf("/api/screenshots?rom_id=%d&state_id=%d", romID, stateID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create screenshot upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.applyAuthHeader(req)

	resp, err := c.httpUpload.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to perform screenshot upload: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "UploadScreenshot: failed to close response body")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("screenshot upload failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		ID uint `json:"id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&parsed)
	return parsed.ID, nil
}

// VerifyScreenshotLink re-fetches /api/states/{id} and compares
// screenshot.id against the expected screenshot ID (spec.md §4.1).
func (c *Client) VerifyScreenshotLink(ctx context.Context, stateID, expectedScreenshotID uint) (bool, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(fmt.Sprintf("/api/states/%d", stateID)), http.NoBody)
	if err != nil {
		return false, fmt.Errorf("failed to build state verify request: %w", err)
	}
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to perform state verify request: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "VerifyScreenshotLink: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("state verify failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Screenshot *struct {
			ID uint `json:"id"`
		} `json:"screenshot"`
	}
	if err := decodeJSON(resp.Body, &parsed); err != nil {
		return false, err
	}
	return parsed.Screenshot != nil && parsed.Screenshot.ID == expectedScreenshotID, nil
}

// LinkScreenshotExplicit tries the three fallback link endpoints spec.md
// §4.1 names when verification fails: PATCH /api/states/{id},
// PATCH /api/screenshots/{id}, POST /api/states/{id}/screenshot.
func (c *Client) LinkScreenshotExplicit(ctx context.Context, stateID, screenshotID uint) error {
	if err := c.ensureAuthenticated(); err != nil {
		return err
	}

	attempts := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPatch, fmt.Sprintf("/api/states/%d", stateID), fmt.Sprintf(`{"screenshot_id":%d}`, screenshotID)},
		{http.MethodPatch, fmt.Sprintf("/api/screenshots/%d", screenshotID), fmt.Sprintf(`{"state_id":%d}`, stateID)},
		{http.MethodPost, fmt.Sprintf("/api/states/%d/screenshot", stateID), fmt.Sprintf(`{"screenshot_id":%d}`, screenshotID)},
	}

	var lastErr error
	for _, a := range attempts {
		req, err := http.NewRequestWithContext(ctx, a.method, c.url(a.path), bytes.NewReader([]byte(a.body)))
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		c.applyAuthHeader(req)

		resp, err := c.httpSmall.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		ok := resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent
		fileio.Close(resp.Body, nil, "LinkScreenshotExplicit: failed to close response body")
		if ok {
			return nil
		}
		lastErr = fmt.Errorf("%s %s returned status %d", a.method, a.path, resp.StatusCode)
	}
	return fmt.Errorf("all explicit screenshot link attempts failed: %w", lastErr)
}
