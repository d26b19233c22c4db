package romm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go-romm-sync/utils/fileio"
)

// DownloadROMContent streams /api/roms/{id}/content/{fullPath}, the whole-ROM
// analogue of DownloadAssetContent, reporting progress via onChunk after
// every write (spec.md §4.5, "per-chunk callback"). onChunk may be nil.
func (c *Client) DownloadROMContent(ctx context.Context, romID uint, fullPath string, w io.Writer, onChunk func(written int64)) error {
	if err := c.ensureAuthenticated(); err != nil {
		return err
	}

	u := c.url(fmt.Sprintf("/api/roms/%d/content/%s", romID, strings.TrimPrefix(fullPath, "/")))
	resp, err := c.doStreamGet(ctx, u)
	if err != nil {
		return fmt.Errorf("failed to download rom %d content: %w", romID, err)
	}
	defer fileio.Close(resp.Body, nil, "DownloadROMContent: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("rom content download failed with status %d: %s", resp.StatusCode, string(body))
	}
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return fmt.Errorf("server returned an error page (text/html) for rom %d content", romID)
	}

	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("failed to write rom %d content: %w", romID, writeErr)
			}
			total += int64(n)
			if onChunk != nil {
				onChunk(total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to read rom %d content: %w", romID, readErr)
		}
	}
	if total == 0 {
		return fmt.Errorf("rom %d content download produced an empty file", romID)
	}
	return nil
}
