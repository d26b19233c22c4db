package romm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go-romm-sync/types"
	"go-romm-sync/utils/fileio"
)

const (
	romFields  = "id,name,fs_name,platform_name,platform_slug,files,multi"
	chunkSize  = 500
	batchPages = 2
	maxWorkers = 4
	flushEvery = 200
)

// PageProgress is reported once per completed chunk during FetchAllROMs.
type PageProgress struct {
	PagesDone   int
	TotalPages  int
	ItemsSoFar  int
}

// BatchProgress is reported once per completed batch of batchPages, carrying
// the accumulated list so a caller can render progressively (spec.md §4.1).
type BatchProgress struct {
	Accumulated []types.Game
}

// Count returns the total ROM count on the server, field-restricted and
// cached for 30s (spec.md §4.1).
func (c *Client) Count(ctx context.Context) (int, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	if !c.countCacheAt.IsZero() && time.Since(c.countCacheAt) < 30*time.Second {
		n := c.countCacheValue
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	_, total, err := c.fetchROMPage(ctx, 1, 0, "", "")
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.countCacheAt = time.Now()
	c.countCacheValue = total
	c.mu.Unlock()
	return total, nil
}

// FetchAllROMs performs the paginated, parallel catalog fetch of spec.md
// §4.1: chunks of 500 rows, fetched in batches of 2 pages with up to 4
// concurrent requests, flushed into the result in 200-item bursts. Either
// progress callback may be nil.
func (c *Client) FetchAllROMs(ctx context.Context, onPage func(PageProgress), onBatch func(BatchProgress)) ([]types.Game, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return nil, err
	}

	total, err := c.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, nil
	}

	totalPages := (total + chunkSize - 1) / chunkSize
	result := make([]types.Game, 0, total)
	flushBuf := make([]types.Game, 0, flushEvery)
	pagesDone := 0

	for batchStart := 0; batchStart < totalPages; batchStart += batchPages {
		batchEnd := batchStart + batchPages
		if batchEnd > totalPages {
			batchEnd = totalPages
		}

		pageResults := make([][]types.Game, batchEnd-batchStart)
		sem := make(chan struct{}, maxWorkers)
		var wg sync.WaitGroup

		for i := batchStart; i < batchEnd; i++ {
			wg.Add(1)
			sem <- struct{}{}
			go func(pageIdx int) {
				defer wg.Done()
				defer func() { <-sem }()

				offset := pageIdx * chunkSize
				items, _, err := c.fetchROMPage(ctx, chunkSize, offset, "", "")
				if err != nil {
					// A single failed page yields an empty list but does not abort the run.
					c.Log.Warn().Err(err).Int("offset", offset).Msg("rom page fetch failed")
					items = nil
				}
				pageResults[pageIdx-batchStart] = items
			}(i)
		}
		wg.Wait()

		for _, items := range pageResults {
			pagesDone++
			flushBuf = append(flushBuf, items...)
			if len(flushBuf) >= flushEvery {
				result = append(result, flushBuf...)
				flushBuf = flushBuf[:0]
			}
			if onPage != nil {
				onPage(PageProgress{PagesDone: pagesDone, TotalPages: totalPages, ItemsSoFar: len(result) + len(flushBuf)})
			}
		}

		if len(flushBuf) > 0 {
			result = append(result, flushBuf...)
			flushBuf = flushBuf[:0]
		}
		if onBatch != nil {
			onBatch(BatchProgress{Accumulated: append([]types.Game(nil), result...)})
		}
	}

	return result, nil
}

// FetchUpdatedSince returns a single filtered page of ROMs updated after t
// (spec.md §4.1, "a single filtered page is returned").
func (c *Client) FetchUpdatedSince(ctx context.Context, t time.Time) ([]types.Game, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return nil, err
	}
	items, _, err := c.fetchROMPage(ctx, chunkSize, 0, "", t.UTC().Format(time.RFC3339))
	return items, err
}

func (c *Client) fetchROMPage(ctx context.Context, limit, offset int, collectionID, updatedAfter string) ([]types.Game, int, error) {
	u, err := url.Parse(c.url("/api/roms"))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("fields", romFields)
	if collectionID != "" {
		q.Set("collection_id", collectionID)
	}
	if updatedAfter != "" {
		q.Set("updated_after", updatedAfter)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create roms request: %w", err)
	}
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to perform roms request: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "fetchROMPage: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, 0, fmt.Errorf("roms fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, 0, fmt.Errorf("failed to decode roms response: %w", err)
	}

	var items []types.Game
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, len(items), nil
	}

	var paginated struct {
		Items []types.Game `json:"items"`
		Total int          `json:"total"`
	}
	if err := json.Unmarshal(raw, &paginated); err != nil {
		return nil, 0, fmt.Errorf("unknown roms response format: %s", string(raw))
	}
	return paginated.Items, paginated.Total, nil
}

// GetRom fetches the catalog and save/state records for a single ROM.
func (c *Client) GetRom(ctx context.Context, id uint) (types.RomDetails, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return types.RomDetails{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(fmt.Sprintf("/api/roms/%d", id)), http.NoBody)
	if err != nil {
		return types.RomDetails{}, fmt.Errorf("failed to create rom request: %w", err)
	}
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return types.RomDetails{}, fmt.Errorf("failed to perform rom request: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "GetRom: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.RomDetails{}, fmt.Errorf("rom fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var details types.RomDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return types.RomDetails{}, fmt.Errorf("failed to decode rom response: %w", err)
	}
	return details, nil
}

// GetPlatforms fetches the server's platform list.
func (c *Client) GetPlatforms(ctx context.Context) ([]types.Platform, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/platforms"), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create platforms request: %w", err)
	}
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform platforms request: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "GetPlatforms: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("platforms fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode platforms response: %w", err)
	}

	var items []types.Platform
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	var paginated struct {
		Items []types.Platform `json:"items"`
	}
	if err := json.Unmarshal(raw, &paginated); err != nil {
		return nil, fmt.Errorf("unknown platforms response format: %s", string(raw))
	}
	return paginated.Items, nil
}
