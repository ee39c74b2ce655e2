package blueprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Encode renders a blueprint as indented JSON, the on-disk form.
func Encode(bp *Blueprint) ([]byte, error) {
	data, err := json.MarshalIndent(bp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrBlueprint, err)
	}
	return data, nil
}

// Decode parses blueprint JSON and gates on the format version.
func Decode(data []byte) (*Blueprint, error) {
	var bp Blueprint
	if err := json.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrBlueprint, err)
	}
	if bp.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrBlueprint, bp.Version)
	}
	return &bp, nil
}

// Filename is the canonical blueprint file name for a retailer at t:
// retailer_<id>_<YYYYMMDD_HHMMSS>.json.
func Filename(retailerID int64, t time.Time) string {
	return fmt.Sprintf("retailer_%d_%s.json", retailerID, t.UTC().Format("20060102_150405"))
}

// Save writes bp under dir with the canonical file name, creating the
// directory if needed. Returns the written path.
func Save(dir string, bp *Blueprint) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrBlueprint, dir, err)
	}
	data, err := Encode(bp)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, Filename(bp.Metadata.RetailerID, bp.Metadata.GeneratedAt))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", ErrBlueprint, path, err)
	}
	return path, nil
}

// Load reads and decodes one blueprint file.
func Load(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrBlueprint, path, err)
	}
	return Decode(data)
}
