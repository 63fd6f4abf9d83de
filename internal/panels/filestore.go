package panels

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

// FileStore persists the panel list as a JSON file for sessions running
// without Redis.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed panel store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// SavePanels writes the full panel list, replacing any previous content.
func (s *FileStore) SavePanels(ctx context.Context, panels []types.VehiclePanel) error {
	data, err := json.MarshalIndent(panels, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal panels: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create panel store directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write panel store: %w", err)
	}
	return nil
}

// LoadPanels reads the persisted panel list. A missing file is an empty
// list, not an error.
func (s *FileStore) LoadPanels(ctx context.Context) ([]types.VehiclePanel, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read panel store: %w", err)
	}

	var panels []types.VehiclePanel
	if err := json.Unmarshal(data, &panels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal panels: %w", err)
	}
	return panels, nil
}
