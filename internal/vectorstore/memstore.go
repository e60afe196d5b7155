package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemStore is an in-process Store backed by maps. It serves tests and
// single-node deployments without a Qdrant instance.
type MemStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Point
	dims        map[string]int // fixed by the first upsert per collection
}

// NewMemStore creates an empty in-memory vector store
func NewMemStore() *MemStore {
	return &MemStore{
		collections: make(map[string]map[string]Point),
		dims:        make(map[string]int),
	}
}

// Upsert inserts or replaces points in a collection. The first upsert fixes
// the collection's dimension; later points must match it.
func (s *MemStore) Upsert(ctx context.Context, collection string, points []Point) error {
	for _, p := range points {
		if len(p.Vector) == 0 {
			return ErrEmptyVector
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim, known := s.dims[collection]
	for _, p := range points {
		if !known {
			dim, known = len(p.Vector), true
			continue
		}
		if len(p.Vector) != dim {
			return fmt.Errorf("collection %s expects dimension %d, got %d: %w",
				collection, dim, len(p.Vector), ErrDimensionMismatch)
		}
	}
	s.dims[collection] = dim

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Point)
		s.collections[collection] = coll
	}
	for _, p := range points {
		coll[p.ID] = p
	}
	return nil
}

// Query scans the collection, scoring by cosine similarity
func (s *MemStore) Query(ctx context.Context, collection string, vector []float32, topK int, minScore float64) ([]ScoredPoint, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if dim, ok := s.dims[collection]; ok && len(vector) != dim {
		return nil, fmt.Errorf("collection %s expects dimension %d, got %d: %w",
			collection, dim, len(vector), ErrDimensionMismatch)
	}

	coll := s.collections[collection]
	results := make([]ScoredPoint, 0, len(coll))
	for _, p := range coll {
		score := cosineSimilarity(vector, p.Vector)
		if score < minScore {
			continue
		}
		results = append(results, ScoredPoint{
			ID:      p.ID,
			Score:   score,
			Payload: p.Payload,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes points by ID; unknown IDs are ignored
func (s *MemStore) Delete(ctx context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

// Close releases the store's maps
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]map[string]Point)
	return nil
}

// Len reports the number of points in a collection, for tests
func (s *MemStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
