package vectorstore

import (
	"fmt"
	"strings"
	"sync"

	"github.com/codemem/codemem-mcp/pkg/types"
)

const collectionPrefix = "codemem"

// CollectionName returns the collection for one workspace context and memory
// kind. Context names are sanitized so they form a valid collection segment.
func CollectionName(contextName string, kind types.MemoryKind) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, contextName)
	return fmt.Sprintf("%s_%s_%s", collectionPrefix, safe, kind)
}

// AllCollections lists every per-kind collection for a context
func AllCollections(contextName string) []string {
	names := make([]string, 0, len(types.AllMemoryKinds))
	for _, kind := range types.AllMemoryKinds {
		names = append(names, CollectionName(contextName, kind))
	}
	return names
}

// ensurer is implemented by stores that must create collections before use
type ensurer interface {
	EnsureCollection(name string) error
}

// CollectionManager ensures collections exist on first use and caches the
// result in memory.
type CollectionManager struct {
	store Store
	mu    sync.RWMutex
	known map[string]bool
}

// NewCollectionManager creates a manager over a store
func NewCollectionManager(store Store) *CollectionManager {
	return &CollectionManager{
		store: store,
		known: make(map[string]bool),
	}
}

// Ensure creates the collection for a context and kind if needed and returns
// its name.
func (m *CollectionManager) Ensure(contextName string, kind types.MemoryKind) (string, error) {
	name := CollectionName(contextName, kind)

	m.mu.RLock()
	if m.known[name] {
		m.mu.RUnlock()
		return name, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if m.known[name] {
		return name, nil
	}

	if e, ok := m.store.(ensurer); ok {
		if err := e.EnsureCollection(name); err != nil {
			return "", fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}

	m.known[name] = true
	return name, nil
}
