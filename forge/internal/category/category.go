// Package category defines the extracted category model and the
// finalisation pass (URL canonicalisation, dedup, parent validation)
// shared by every extraction path.
package category

import (
	"errors"
	"fmt"
)

// Category is one node in the extracted navigation hierarchy.
// Ids are local to a single extraction run; persistence translates
// them to database ids at save time.
type Category struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Depth    int    `json:"depth"`
	ParentID *int   `json:"parent_id"`
}

// ErrValidation is returned when a category or the assembled hierarchy
// fails structural validation. Fatal to the run.
var ErrValidation = errors.New("category: validation failed")

// Validate checks the per-category invariants: non-empty name and URL,
// non-negative depth.
func (c *Category) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if c.URL == "" {
		return fmt.Errorf("%w: url is required", ErrValidation)
	}
	if c.Depth < 0 {
		return fmt.Errorf("%w: negative depth %d", ErrValidation, c.Depth)
	}
	return nil
}

// Counter hands out run-local category ids. Ids start at 1, increase
// monotonically, and are never reused within a run. Each run owns its
// own Counter; nothing is shared across runs.
type Counter struct {
	next int
}

// NewCounter creates a Counter starting at 1.
func NewCounter() *Counter {
	return &Counter{next: 1}
}

// Next returns the next id and advances the counter.
func (c *Counter) Next() int {
	id := c.next
	c.next++
	return id
}

// Ref returns a pointer to id, for ParentID assignments.
func Ref(id int) *int {
	return &id
}
