package vectorstore

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrUnavailable       = errors.New("vector store unavailable")
	ErrEmptyVector       = errors.New("vector cannot be empty")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Point is one embedding with its payload, keyed by memory ID
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a query hit with its similarity score
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Store defines the vector store contract. Collections are named per
// context and per memory kind; see CollectionName.
type Store interface {
	// Upsert inserts or replaces points in a collection
	Upsert(ctx context.Context, collection string, points []Point) error

	// Query returns the topK nearest points with similarity >= minScore,
	// ordered by descending score
	Query(ctx context.Context, collection string, vector []float32, topK int, minScore float64) ([]ScoredPoint, error)

	// Delete removes points by ID; unknown IDs are ignored
	Delete(ctx context.Context, collection string, ids []string) error

	// Close releases any resources held by the store
	Close() error
}
