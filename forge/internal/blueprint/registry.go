package blueprint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Registry lists and resolves blueprints stored under one directory.
// Files are the source of truth; there is no index to go stale.
type Registry struct {
	dir string
}

func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

func (r *Registry) Dir() string { return r.dir }

// Entry summarises one stored blueprint file.
type Entry struct {
	Name        string    `json:"name"`
	RetailerID  int64     `json:"retailer_id"`
	SiteURL     string    `json:"site_url"`
	GeneratedAt time.Time `json:"generated_at"`
	Categories  int       `json:"categories"`
	Confidence  float64   `json:"confidence"`
}

// List returns an entry per readable blueprint, newest first. Files
// that are not valid blueprints are ignored; the directory may hold
// anything.
func (r *Registry) List() ([]Entry, error) {
	des, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %v", ErrBlueprint, r.dir, err)
	}

	var entries []Entry
	for _, de := range des {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		bp, err := Load(filepath.Join(r.dir, de.Name()))
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:        de.Name(),
			RetailerID:  bp.Metadata.RetailerID,
			SiteURL:     bp.Metadata.SiteURL,
			GeneratedAt: bp.Metadata.GeneratedAt,
			Categories:  bp.ExtractionStats.TotalCategories,
			Confidence:  bp.Metadata.ConfidenceScore,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].GeneratedAt.After(entries[j].GeneratedAt)
	})
	return entries, nil
}

// Resolve turns a bare blueprint file name into a path inside the
// registry directory. Names carrying separators or parent references
// are rejected so callers cannot address files outside it.
func (r *Registry) Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty blueprint name", ErrBlueprint)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: invalid blueprint name %q", ErrBlueprint, name)
	}
	path := filepath.Join(r.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: blueprint %s: %w", ErrBlueprint, name, err)
	}
	return path, nil
}

// Latest loads the newest blueprint recorded for a retailer.
func (r *Registry) Latest(retailerID int64) (*Blueprint, string, error) {
	entries, err := r.List()
	if err != nil {
		return nil, "", err
	}
	for _, e := range entries {
		if e.RetailerID == retailerID {
			path := filepath.Join(r.dir, e.Name)
			bp, err := Load(path)
			if err != nil {
				return nil, "", err
			}
			return bp, path, nil
		}
	}
	return nil, "", fmt.Errorf("%w: no blueprint for retailer %d", ErrBlueprint, retailerID)
}
