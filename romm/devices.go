package romm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go-romm-sync/types"
	"go-romm-sync/utils/fileio"
)

// RegisterDevice registers this installation with the server, per spec.md
// §4.1: allow_existing=true, allow_duplicate=false.
func (c *Client) RegisterDevice(ctx context.Context, d types.Device) (types.Device, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return types.Device{}, err
	}

	d.AllowExisting = true
	d.AllowDuplicate = false

	payload, err := json.Marshal(d)
	if err != nil {
		return types.Device{}, fmt.Errorf("failed to encode device registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/devices"), bytes.NewReader(payload))
	if err != nil {
		return types.Device{}, fmt.Errorf("failed to build device registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return types.Device{}, fmt.Errorf("failed to perform device registration: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "RegisterDevice: failed to close response body")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return types.Device{}, fmt.Errorf("device registration failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out types.Device
	if err := decodeJSON(resp.Body, &out); err != nil {
		return types.Device{}, err
	}
	return out, nil
}

// GetDevice, UpdateDevice, and DeleteDevice follow REST conventions; a 404
// on delete is treated as success (spec.md §4.1).
func (c *Client) GetDevice(ctx context.Context, id uint) (types.Device, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return types.Device{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(fmt.Sprintf("/api/devices/%d", id)), http.NoBody)
	if err != nil {
		return types.Device{}, fmt.Errorf("failed to build get-device request: %w", err)
	}
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return types.Device{}, fmt.Errorf("failed to perform get-device request: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "GetDevice: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.Device{}, fmt.Errorf("get-device failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out types.Device
	if err := decodeJSON(resp.Body, &out); err != nil {
		return types.Device{}, err
	}
	return out, nil
}

func (c *Client) UpdateDevice(ctx context.Context, d types.Device) error {
	if err := c.ensureAuthenticated(); err != nil {
		return err
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode device update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url(fmt.Sprintf("/api/devices/%d", d.ID)), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build update-device request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform update-device request: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "UpdateDevice: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("update-device failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) DeleteDevice(ctx context.Context, id uint) error {
	if err := c.ensureAuthenticated(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.url(fmt.Sprintf("/api/devices/%d", id)), http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build delete-device request: %w", err)
	}
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform delete-device request: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "DeleteDevice: failed to close response body")

	if resp.StatusCode == http.StatusNotFound {
		return nil // already gone, treated as success
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete-device failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// GetSavesByDevice queries /api/{saves|states}?device_id=&rom_id= — the
// device-scoped optimistic query of spec.md §4.4.5 step 4.
func (c *Client) GetSavesByDevice(ctx context.Context, kind AssetKind, deviceID string, romID uint) ([]uint, error) {
	if err := c.ensureAuthenticated(); err != nil {
		return nil, err
	}
	u := c.url(fmt.Sprintf("/api/%s?device_id=%s&rom_id=%d", kind, deviceID, romID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build device-scoped query: %w", err)
	}
	c.applyAuthHeader(req)

	resp, err := c.httpSmall.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform device-scoped query: %w", err)
	}
	defer fileio.Close(resp.Body, nil, "GetSavesByDevice: failed to close response body")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("device-scoped query failed with status %d: %s", resp.StatusCode, string(body))
	}

	var items []struct {
		ID uint `json:"id"`
	}
	if err := decodeJSON(resp.Body, &items); err != nil {
		return nil, err
	}
	ids := make([]uint, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids, nil
}
