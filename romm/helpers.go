package romm

import (
	"encoding/json"
	"fmt"
	"io"
)

// decodeJSON decodes a JSON response body, wrapping decode errors with
// context the way every other method in this package does.
func decodeJSON(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
