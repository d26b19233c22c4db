package romm

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go-romm-sync/types"
	"go-romm-sync/utils/fileio"
)

// GetCollections fetches the server's collection list.
func (c *Client) GetCollections(ctx context.Context) ([]types.Collection, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/collections"), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build collections request: %w", err)
	}
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform collections request: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "GetCollections: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("collections fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var items []types.Collection
	if err := decodeJSON(resp.Body, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetCollectionROMIDs fetches the ROM IDs that currently belong to a
// collection (GET /api/roms?collection_id=, spec.md §6), used by the
// collection sync loop (C6) to compute its membership diff.
func (c *Client) GetCollectionROMIDs(ctx context.Context, collectionID uint) (map[uint]struct{}, error) {
	games, err := c.FetchAllROMsInCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	ids := make(map[uint]struct{}, len(games))
	for _, g := range games {
		ids[g.ID] = struct{}{}
	}
	return ids, nil
}

// FetchAllROMsInCollection returns every ROM currently in collectionID.
func (c *Client) FetchAllROMsInCollection(ctx context.Context, collectionID uint) ([]types.Game, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return nil, err
	}

	var all []types.Game
	offset := 0
	for {
		items, total, err := c.fetchROMPage(ctx, chunkSize, offset, fmt.Sprintf("%d", collectionID), "")
		if err != nil {
			return nil, fmt.Errorf("failed to fetch collection %d page at offset %d: %w", collectionID, offset, err)
		}
		all = append(all, items...)
		offset += len(items)
		if len(items) == 0 || offset >= total {
			break
		}
	}
	return all, nil
}
