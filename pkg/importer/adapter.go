package importer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hazyhaar/abnlookup/pkg/abn"
)

// Sink receives imported records. *registry.Store satisfies it.
type Sink interface {
	Upsert(ctx context.Context, recs ...abn.Record) error
}

// Adapter defines a bulk data source that downloads a register extract and
// loads it into a Sink.
type Adapter interface {
	// ID returns the unique identifier of this adapter (e.g. "abr-bulk-au").
	ID() string
	// Description returns a human-readable description.
	Description() string
	// DefaultURL returns the default source URL used for seeding the database.
	DefaultURL() string
	// License returns the license of the published data.
	License() string
	// Import downloads sourceURL, parses it and writes records into sink.
	// It returns the number of records written.
	Import(ctx context.Context, sourceURL string, sink Sink) (int, error)
}

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// Register adds an adapter to the global registry.
func Register(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	adapters[a.ID()] = a
}

// Get returns a registered adapter by ID, or an error if not found.
func Get(id string) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[id]
	if !ok {
		return nil, fmt.Errorf("unknown import source: %q", id)
	}
	return a, nil
}

// All returns all registered adapters sorted by ID.
func All() []Adapter {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}
