package romm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go-romm-sync/utils/fileio"
)

// AssetKind distinguishes saves from states for the shared download/upload
// plumbing in spec.md §4.1.
type AssetKind string

const (
	KindSave  AssetKind = "saves"
	KindState AssetKind = "states"
)

func (k AssetKind) field() string {
	if k == KindSave {
		return "saveFile"
	}
	return "stateFile"
}

// DownloadAssetOutcome distinguishes the terminal states a download can end
// in, per spec.md §7's error taxonomy.
type DownloadAssetOutcome int

const (
	DownloadOK DownloadAssetOutcome = iota
	DownloadCancelled
	DownloadFailed
)

// DownloadAssetContent streams /api/{saves|states}/{id}/content to w. On a
// 404 with a non-empty deviceID it retries once without device scoping; if
// that still fails and fallbackURL is non-empty, it fetches fallbackURL
// instead (spec.md §4.1 step 5). A "text/html" response is rejected as an error
// page rather than written to disk.
func (c *Client) DownloadAssetContent(ctx context.Context, kind AssetKind, saveID uint, deviceID, fallbackURL string, w io.Writer, cancelled func() bool) (DownloadAssetOutcome, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return DownloadFailed, err
	}

	primary := c.url(fmt.Sprintf("/api/%s/%d/content", kind, saveID))
	usedFallback := false

	var resp *http.Response
	var err error

	if deviceID != "" {
		u := primary + fmt.Sprintf("?device_id=%s&optimistic=true", deviceID)
		resp, err = c.doStreamGet(ctx, u)
		if err == nil && resp.StatusCode == http.StatusNotFound {
			fileio.Close(resp.Body, nil, "DownloadAssetContent: failed to close 404 response body")
			resp, err = c.doStreamGet(ctx, primary)
		}
	} else {
		resp, err = c.doStreamGet(ctx, primary)
	}

	if (err != nil || resp.StatusCode != http.StatusOK) && fallbackURL != "" {
		if resp != nil {
			fileio.Close(resp.Body, nil, "DownloadAssetContent: failed to close failed response body")
		}
		resp, err = c.doStreamGet(ctx, fallbackURL)
		usedFallback = true
	}

	if err != nil {
		return DownloadFailed, fmt.Errorf("failed to download %s content: %w", kind, err)
	}
	defer fileio.Close(resp.Body, nil, "DownloadAssetContent: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return DownloadFailed, fmt.Errorf("%s content download failed with status %d: %s", kind, resp.StatusCode, string(body))
	}

	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return DownloadFailed, fmt.Errorf("server returned an error page (text/html) for %s content", kind)
	}

	written, err := c.copyWithCancellation(resp.Body, w, cancelled)
	if err != nil {
		if err == errDownloadCancelled {
			return DownloadCancelled, nil
		}
		return DownloadFailed, fmt.Errorf("failed to write %s content: %w", kind, err)
	}
	if written == 0 {
		return DownloadFailed, fmt.Errorf("%s content download produced an empty file", kind)
	}

	if !usedFallback && deviceID != "" {
		c.confirmDownloaded(ctx, kind, saveID, deviceID)
	}
	return DownloadOK, nil
}

var errDownloadCancelled = fmt.Errorf("download cancelled")

// copyWithCancellation copies src to dst in 32KiB chunks, polling cancelled
// between chunks (spec.md §5, "cancellation_checker").
func (c *Client) copyWithCancellation(src io.Reader, dst io.Writer, cancelled func() bool) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		if cancelled != nil && cancelled() {
			return total, errDownloadCancelled
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

func (c *Client) doStreamGet(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	c.applyAuthHeader(req)
	return c.httpStream.Do(req)
}

func (c *Client) confirmDownloaded(ctx context.Context, kind AssetKind, saveID uint, deviceID string) {
	payload := strings.NewReader(fmt.Sprintf(`{"device_id":%q}`, deviceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(fmt.Sprintf("/api/%s/%d/downloaded", kind, saveID)), payload)
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		c.Log.Warn().Err(err).Msg("failed to confirm asset download")
		return
	}
	fileio.Close(resp.Body, nil, "confirmDownloaded: failed to close response body")
}

// TrackAsset and UntrackAsset call POST /api/{saves|states}/{id}/track and
// /untrack respectively (spec.md §6). Wired for device-scoped optimistic
// sync bookkeeping even though no §4 paragraph names the call site.
func (c *Client) TrackAsset(ctx context.Context, kind AssetKind, id uint, deviceID string) error {
	return c.trackAction(ctx, kind, id, deviceID, "track")
}

func (c *Client) UntrackAsset(ctx context.Context, kind AssetKind, id uint, deviceID string) error {
	return c.trackAction(ctx, kind, id, deviceID, "untrack")
}

func (c *Client) trackAction(ctx context.Context, kind AssetKind, id uint, deviceID, action string) error {
	if err := c.ensureAuthenticated(); err != nil {
		return err
	}
	payload := strings.NewReader(fmt.Sprintf(`{"device_id":%q}`, deviceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(fmt.Sprintf("/api/%s/%d/%s", kind, id, action)), payload)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform %s request: %w", action, err)
	}
	defer fileio.Close(resp.Body, nil, "trackAction: failed to close response body")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed with status %d: %s", action, resp.StatusCode, string(body))
	}
	return nil
}

// AssetSummary is the response of GET /api/{saves|states}/summary?rom_id
// (spec.md §6): a per-ROM record count without fetching full records.
type AssetSummary struct {
	Count int `json:"count"`
}

func (c *Client) AssetSummary(ctx context.Context, kind AssetKind, romID uint) (AssetSummary, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return AssetSummary{}, err
	}
	u := c.url(fmt.Sprintf("/api/%s/summary?rom_id=%d", kind, romID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return AssetSummary{}, fmt.Errorf("failed to build summary request: %w", err)
	}
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return AssetSummary{}, fmt.Errorf("failed to perform summary request: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "AssetSummary: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return AssetSummary{}, fmt.Errorf("summary fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var summary AssetSummary
	if err := decodeJSON(resp.Body, &summary); err != nil {
		return AssetSummary{}, err
	}
	return summary, nil
}

// strconvUint is a tiny helper shared by upload.go for the rom_id query
// param built from a uint ID.
func strconvUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
