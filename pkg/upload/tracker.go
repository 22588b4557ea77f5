package upload

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/perpetuallyhorni/fxthreads/internal/fs"
)

// Tracker remembers which tweet IDs were already uploaded. It is persisted as a sorted
// JSON array of IDs.
type Tracker struct {
	path string
	ids  map[string]struct{}
}

// LoadTracker reads the tracking file at path. A missing file yields an empty tracker.
func LoadTracker(path string) (*Tracker, error) {
	t := &Tracker{path: path, ids: make(map[string]struct{})}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("failed to read tracking file: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode tracking file %s: %w", path, err)
	}
	for _, id := range ids {
		t.ids[id] = struct{}{}
	}
	return t, nil
}

// Path returns the tracking file location.
func (t *Tracker) Path() string { return t.path }

// Has reports whether id was uploaded.
func (t *Tracker) Has(id string) bool {
	_, ok := t.ids[id]
	return ok
}

// Add records id as uploaded.
func (t *Tracker) Add(id string) { t.ids[id] = struct{}{} }

// Len returns the number of tracked IDs.
func (t *Tracker) Len() int { return len(t.ids) }

// Reset forgets every tracked ID. The file is only rewritten on the next Save.
func (t *Tracker) Reset() { clear(t.ids) }

// IDs returns the tracked IDs in sorted order.
func (t *Tracker) IDs() []string {
	ids := make([]string, 0, len(t.ids))
	for id := range t.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Save writes the tracked IDs to the tracking file.
func (t *Tracker) Save() error {
	if err := fs.WriteJSON(t.path, t.IDs()); err != nil {
		return fmt.Errorf("failed to save tracking file: %w", err)
	}
	return nil
}
