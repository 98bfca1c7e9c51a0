// Package roster owns the read-only catalog of selectable items. It is
// loaded once at startup and never mutated by the draft core.
package roster

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/smite-tools/draft-server/internal/draft"
)

//go:embed gods.json
var defaultData []byte

type Roster struct {
	items map[string]draft.Item
	order []draft.Item
}

// Default returns the roster built from the embedded god catalog.
func Default() (*Roster, error) {
	return Parse(defaultData)
}

// LoadFile reads a JSON item array from disk, replacing the embedded
// catalog.
func LoadFile(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Roster, error) {
	var items []draft.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	r := &Roster{items: make(map[string]draft.Item, len(items))}
	for _, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("roster item %q has no id", it.Name)
		}
		if _, dup := r.items[it.ID]; dup {
			return nil, fmt.Errorf("duplicate roster id %q", it.ID)
		}
		r.items[it.ID] = it
		r.order = append(r.order, it)
	}
	return r, nil
}

// Get resolves an item id against the catalog.
func (r *Roster) Get(id string) (draft.Item, bool) {
	it, ok := r.items[id]
	return it, ok
}

// Items returns the catalog in file order. Callers must not mutate it.
func (r *Roster) Items() []draft.Item {
	return r.order
}

func (r *Roster) Len() int {
	return len(r.items)
}
