package romm

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go-romm-sync/utils/fileio"
)

// Firmware is a BIOS file available for a platform (spec.md §4.1, §6).
type Firmware struct {
	ID       uint   `json:"id"`
	FileName string `json:"file_name"`
}

// GetFirmware resolves platformSlug to a platform ID via GET /api/platforms
// and returns the firmware list for it (spec.md §4.1).
func (c *Client) GetFirmware(ctx context.Context, platformSlug string) ([]Firmware, error) {
	platforms, err := c.GetPlatforms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve platform for firmware lookup: %w", err)
	}

	var platformID uint
	for _, p := range platforms {
		if p.Slug == platformSlug {
			platformID = p.ID
			break
		}
	}
	if platformID == 0 {
		return nil, fmt.Errorf("unknown platform slug %q", platformSlug)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(fmt.Sprintf("/api/firmware?platform_id=%d", platformID)), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build firmware request: %w", err)
	}
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform firmware request: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "GetFirmware: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("firmware fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var items []Firmware
	if err := decodeJSON(resp.Body, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// DownloadFirmware streams GET /api/firmware/{id}/content/{name} to w.
func (c *Client) DownloadFirmware(ctx context.Context, firmwareID uint, fileName string, w io.Writer) error {
	if err := c.ensureAuthenticated(); err != nil {
		return err
	}

	u := c.url(fmt.Sprintf("/api/firmware/%d/content/%s", firmwareID, fileName))
	resp, err := c.doStreamGet(ctx, u)
	if err != nil {
		return fmt.Errorf("failed to download firmware: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "DownloadFirmware: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("firmware download failed with status %d: %s", resp.StatusCode, string(body))
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to write firmware content: %w", err)
	}
	return nil
}
